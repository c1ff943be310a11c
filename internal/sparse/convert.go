package sparse

import (
	"github.com/gravel-ml/gravel/internal/tensor"
)

// COOToCSR converts to CSR, preserving edge ids. When the input carries
// no Data, identity ids are assigned from entry positions. Row-sorted
// inputs convert in a single O(nnz) scan reusing the column array;
// unsorted inputs go through a stable counting sort so multi-edges keep
// their relative order.
func COOToCSR(coo *COO) *CSR {
	switch coo.IndexType() {
	case tensor.Int32:
		return cooToCSR(coo, coo.Row.AsInt32(), coo.Col.AsInt32())
	default:
		return cooToCSR(coo, coo.Row.AsInt64(), coo.Col.AsInt64())
	}
}

func cooToCSR[I tensor.Index](coo *COO, row, col []I) *CSR {
	nnz := coo.NNZ()
	indptr := tensor.NewVector(coo.NumRows+1, coo.IndexType())
	indptrData := asIndex[I](indptr)

	if coo.RowSorted {
		coo.EnsureData()
		r := I(0)
		for i := 0; i < nnz; i++ {
			for r != row[i] {
				r++
				indptrData[r] = I(i)
			}
		}
		for int64(r) < int64(coo.NumRows) {
			r++
			indptrData[r] = I(nnz)
		}
		return &CSR{
			NumRows: coo.NumRows, NumCols: coo.NumCols,
			Indptr: indptr, Indices: coo.Col.Clone(), Data: coo.Data.Clone(),
			Sorted: coo.ColSorted,
		}
	}

	// Count entries per row, prefix-sum, then stable scatter.
	for i := 0; i < nnz; i++ {
		indptrData[row[i]+1]++
	}
	for r := 0; r < coo.NumRows; r++ {
		indptrData[r+1] += indptrData[r]
	}

	indices := tensor.NewVector(nnz, coo.IndexType())
	data := tensor.NewVector(nnz, coo.IndexType())
	indicesData := asIndex[I](indices)
	eidData := asIndex[I](data)
	var srcEids []I
	if coo.HasData() {
		srcEids = asIndex[I](coo.Data)
	}

	next := make([]I, coo.NumRows)
	for i := 0; i < nnz; i++ {
		r := row[i]
		pos := int64(indptrData[r]) + int64(next[r])
		next[r]++
		indicesData[pos] = col[i]
		if srcEids != nil {
			eidData[pos] = srcEids[i]
		} else {
			eidData[pos] = I(i)
		}
	}

	return &CSR{
		NumRows: coo.NumRows, NumCols: coo.NumCols,
		Indptr: indptr, Indices: indices, Data: data,
		Sorted: false,
	}
}

// CSRToCOO expands the row pointer into an explicit row array. Edge ids
// are preserved (identity when absent).
func CSRToCOO(csr *CSR) *COO {
	switch csr.IndexType() {
	case tensor.Int32:
		return csrToCOO(csr, csr.Indptr.AsInt32())
	default:
		return csrToCOO(csr, csr.Indptr.AsInt64())
	}
}

func csrToCOO[I tensor.Index](csr *CSR, indptr []I) *COO {
	nnz := csr.NNZ()
	row := tensor.NewVector(nnz, csr.IndexType())
	rowData := asIndex[I](row)
	for r := 0; r < csr.NumRows; r++ {
		for i := indptr[r]; i < indptr[r+1]; i++ {
			rowData[i] = I(r)
		}
	}
	var data *tensor.RawTensor
	if csr.HasData() {
		data = csr.Data.Clone()
	}
	return &COO{
		NumRows: csr.NumRows, NumCols: csr.NumCols,
		Row: row, Col: csr.Indices.Clone(), Data: data,
		RowSorted: true, ColSorted: csr.Sorted,
	}
}

// COOTranspose swaps rows and columns without copying.
func COOTranspose(coo *COO) *COO {
	return &COO{
		NumRows: coo.NumCols, NumCols: coo.NumRows,
		Row: coo.Col, Col: coo.Row, Data: coo.Data,
		RowSorted: coo.ColSorted, ColSorted: coo.RowSorted,
	}
}

// CSRTranspose converts the matrix so incoming entries of each column
// become a row. Goes through COO, re-bucketing by the transposed row.
func CSRTranspose(csr *CSR) *CSR {
	coo := COOTranspose(CSRToCOO(csr))
	// The transposed COO is column-sorted, not row-sorted, so the
	// counting-sort path applies.
	coo.RowSorted = false
	coo.ColSorted = false
	return COOToCSR(coo)
}

// asIndex views an index tensor as its typed slice.
func asIndex[I tensor.Index](t *tensor.RawTensor) []I {
	var zero I
	switch any(zero).(type) {
	case int32:
		return any(t.AsInt32()).([]I)
	default:
		return any(t.AsInt64()).([]I)
	}
}
