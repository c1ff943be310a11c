// Package sparse implements the CSR/COO sparse matrix model and its
// format queries, conversions and lookups.
package sparse

import (
	"fmt"

	"github.com/gravel-ml/gravel/internal/tensor"
)

// CSR is a compressed sparse row matrix over integer ids.
//
// Indptr has length NumRows+1 with Indptr[0]=0 and Indptr[NumRows]=nnz;
// Indices holds column ids in [0, NumCols). Data optionally maps entry
// position to edge id; a nil Data means the identity mapping. Sorted is
// true iff every row's column ids are ascending.
type CSR struct {
	NumRows int
	NumCols int
	Indptr  *tensor.RawTensor
	Indices *tensor.RawTensor
	Data    *tensor.RawTensor
	Sorted  bool
}

// COO is a coordinate-list sparse matrix over integer ids.
//
// Row and Col are parallel arrays of length nnz. Duplicate (row, col)
// pairs are permitted and represent multi-edges. RowSorted/ColSorted are
// producer-tracked, never inferred.
type COO struct {
	NumRows   int
	NumCols   int
	Row       *tensor.RawTensor
	Col       *tensor.RawTensor
	Data      *tensor.RawTensor
	RowSorted bool
	ColSorted bool
}

// NNZ returns the number of stored entries.
func (m *CSR) NNZ() int { return m.Indices.Len() }

// NNZ returns the number of stored entries.
func (m *COO) NNZ() int { return m.Row.Len() }

// HasData reports whether an explicit edge-id array is present.
func (m *CSR) HasData() bool { return m.Data != nil }

// HasData reports whether an explicit edge-id array is present.
func (m *COO) HasData() bool { return m.Data != nil }

// IndexType returns the integer dtype of the matrix's id arrays.
func (m *CSR) IndexType() tensor.DataType { return m.Indices.DType() }

// IndexType returns the integer dtype of the matrix's id arrays.
func (m *COO) IndexType() tensor.DataType { return m.Row.DType() }

// NewCSR validates and wraps the given arrays. Data may be nil.
func NewCSR(numRows, numCols int, indptr, indices, data *tensor.RawTensor, sorted bool) *CSR {
	if indptr.Len() != numRows+1 {
		panic(fmt.Sprintf("sparse: indptr length %d, want %d", indptr.Len(), numRows+1))
	}
	checkIndexType("csr", indptr, indices)
	if data != nil {
		checkIndexType("csr", indptr, data)
		if data.Len() != indices.Len() {
			panic(fmt.Sprintf("sparse: data length %d, want nnz %d", data.Len(), indices.Len()))
		}
	}
	return &CSR{
		NumRows: numRows, NumCols: numCols,
		Indptr: indptr, Indices: indices, Data: data,
		Sorted: sorted,
	}
}

// NewCOO validates and wraps the given arrays. Data may be nil.
func NewCOO(numRows, numCols int, row, col, data *tensor.RawTensor, rowSorted, colSorted bool) *COO {
	checkIndexType("coo", row, col)
	if row.Len() != col.Len() {
		panic(fmt.Sprintf("sparse: row length %d != col length %d", row.Len(), col.Len()))
	}
	if data != nil {
		checkIndexType("coo", row, data)
		if data.Len() != row.Len() {
			panic(fmt.Sprintf("sparse: data length %d, want nnz %d", data.Len(), row.Len()))
		}
	}
	return &COO{
		NumRows: numRows, NumCols: numCols,
		Row: row, Col: col, Data: data,
		RowSorted: rowSorted, ColSorted: colSorted,
	}
}

// EnsureData materializes the implicit identity edge-id array in place.
func (m *CSR) EnsureData() {
	if m.Data == nil {
		m.Data = rangeIDs(m.NNZ(), m.IndexType())
	}
}

// EnsureData materializes the implicit identity edge-id array in place.
func (m *COO) EnsureData() {
	if m.Data == nil {
		m.Data = rangeIDs(m.NNZ(), m.IndexType())
	}
}

func rangeIDs(n int, dtype tensor.DataType) *tensor.RawTensor {
	out := tensor.NewVector(n, dtype)
	switch dtype {
	case tensor.Int32:
		data := out.AsInt32()
		for i := range data {
			data[i] = int32(i)
		}
	case tensor.Int64:
		data := out.AsInt64()
		for i := range data {
			data[i] = int64(i)
		}
	default:
		panic(fmt.Sprintf("sparse: %s is not an index type", dtype))
	}
	return out
}

// checkIndexType panics unless both arrays share one of the supported
// integer index dtypes.
func checkIndexType(where string, a, b *tensor.RawTensor) {
	if a.DType() != tensor.Int32 && a.DType() != tensor.Int64 {
		panic(fmt.Sprintf("sparse: %s index dtype %s, want int32 or int64", where, a.DType()))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("sparse: %s index dtype mismatch: %s vs %s", where, a.DType(), b.DType()))
	}
}

func checkRowIndex(row, numRows int64) {
	if row < 0 || row >= numRows {
		panic(fmt.Sprintf("sparse: invalid row index: %d", row))
	}
}

func checkColIndex(col, numCols int64) {
	if col < 0 || col >= numCols {
		panic(fmt.Sprintf("sparse: invalid col index: %d", col))
	}
}
