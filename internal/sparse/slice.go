package sparse

import (
	"fmt"

	"github.com/gravel-ml/gravel/internal/tensor"
)

// CSRSliceRows returns the submatrix of rows [start, end), with row ids
// rebased to zero. Edge ids are preserved.
func CSRSliceRows(csr *CSR, start, end int) *CSR {
	if start < 0 || end > csr.NumRows || start > end {
		panic(fmt.Sprintf("sparse: invalid row slice [%d, %d) of %d rows", start, end, csr.NumRows))
	}
	switch csr.IndexType() {
	case tensor.Int32:
		return csrSliceRows(csr, csr.Indptr.AsInt32(), start, end)
	default:
		return csrSliceRows(csr, csr.Indptr.AsInt64(), start, end)
	}
}

func csrSliceRows[I tensor.Index](csr *CSR, indptr []I, start, end int) *CSR {
	lo, hi := int64(indptr[start]), int64(indptr[end])
	n := int(hi - lo)

	outIndptr := tensor.NewVector(end-start+1, csr.IndexType())
	outIndptrData := asIndex[I](outIndptr)
	for r := start; r <= end; r++ {
		outIndptrData[r-start] = indptr[r] - I(lo)
	}

	outIndices := tensor.NewVector(n, csr.IndexType())
	copy(asIndex[I](outIndices), asIndex[I](csr.Indices)[lo:hi])

	outData := tensor.NewVector(n, csr.IndexType())
	if csr.HasData() {
		copy(asIndex[I](outData), asIndex[I](csr.Data)[lo:hi])
	} else {
		eids := asIndex[I](outData)
		for i := range eids {
			eids[i] = I(lo) + I(i)
		}
	}

	return &CSR{
		NumRows: end - start, NumCols: csr.NumCols,
		Indptr: outIndptr, Indices: outIndices, Data: outData,
		Sorted: csr.Sorted,
	}
}

// COOSliceRows keeps entries whose row is in [start, end), rebasing row
// ids to zero. Edge ids are preserved.
func COOSliceRows(coo *COO, start, end int) *COO {
	if start < 0 || end > coo.NumRows || start > end {
		panic(fmt.Sprintf("sparse: invalid row slice [%d, %d) of %d rows", start, end, coo.NumRows))
	}
	switch coo.IndexType() {
	case tensor.Int32:
		return cooSliceRows(coo, coo.Row.AsInt32(), coo.Col.AsInt32(), start, end)
	default:
		return cooSliceRows(coo, coo.Row.AsInt64(), coo.Col.AsInt64(), start, end)
	}
}

func cooSliceRows[I tensor.Index](coo *COO, row, col []I, start, end int) *COO {
	var outRow, outCol, outData []I
	var eids []I
	if coo.HasData() {
		eids = asIndex[I](coo.Data)
	}
	for i := range row {
		r := int64(row[i])
		if r >= int64(start) && r < int64(end) {
			outRow = append(outRow, row[i]-I(start))
			outCol = append(outCol, col[i])
			if eids != nil {
				outData = append(outData, eids[i])
			} else {
				outData = append(outData, I(i))
			}
		}
	}
	return &COO{
		NumRows: end - start, NumCols: coo.NumCols,
		Row: fromIndex(outRow, coo.IndexType()), Col: fromIndex(outCol, coo.IndexType()),
		Data:      fromIndex(outData, coo.IndexType()),
		RowSorted: coo.RowSorted, ColSorted: coo.ColSorted,
	}
}

// COOSliceMatrix keeps entries whose row and column both appear in the
// given id sets, remapping ids to positions within those sets.
func COOSliceMatrix(coo *COO, rows, cols *tensor.RawTensor) *COO {
	checkIndexType("slice", coo.Row, rows)
	checkIndexType("slice", coo.Row, cols)
	switch coo.IndexType() {
	case tensor.Int32:
		return cooSliceMatrix(coo, coo.Row.AsInt32(), coo.Col.AsInt32(), rows.AsInt32(), cols.AsInt32())
	default:
		return cooSliceMatrix(coo, coo.Row.AsInt64(), coo.Col.AsInt64(), rows.AsInt64(), cols.AsInt64())
	}
}

func cooSliceMatrix[I tensor.Index](coo *COO, row, col, rows, cols []I) *COO {
	rowMap := idPositions(rows)
	colMap := idPositions(cols)

	var outRow, outCol, outData []I
	var eids []I
	if coo.HasData() {
		eids = asIndex[I](coo.Data)
	}
	for i := range row {
		newRow, ok := rowMap[row[i]]
		if !ok {
			continue
		}
		newCol, ok := colMap[col[i]]
		if !ok {
			continue
		}
		outRow = append(outRow, newRow)
		outCol = append(outCol, newCol)
		if eids != nil {
			outData = append(outData, eids[i])
		} else {
			outData = append(outData, I(i))
		}
	}
	return &COO{
		NumRows: len(rows), NumCols: len(cols),
		Row: fromIndex(outRow, coo.IndexType()), Col: fromIndex(outCol, coo.IndexType()),
		Data: fromIndex(outData, coo.IndexType()),
	}
}

// CSRSliceMatrix slices by row and column id sets through the COO form.
func CSRSliceMatrix(csr *CSR, rows, cols *tensor.RawTensor) *CSR {
	return COOToCSR(COOSliceMatrix(CSRToCOO(csr), rows, cols))
}

// COOReorder relabels every entry through the given row and column
// permutations. newRowIDs[i] is the new id of current row i.
func COOReorder(coo *COO, newRowIDs, newColIDs *tensor.RawTensor) *COO {
	checkIndexType("reorder", coo.Row, newRowIDs)
	checkIndexType("reorder", coo.Row, newColIDs)
	if newRowIDs.Len() != coo.NumRows {
		panic(fmt.Sprintf("sparse: row permutation length %d, want %d", newRowIDs.Len(), coo.NumRows))
	}
	if newColIDs.Len() != coo.NumCols {
		panic(fmt.Sprintf("sparse: col permutation length %d, want %d", newColIDs.Len(), coo.NumCols))
	}
	switch coo.IndexType() {
	case tensor.Int32:
		return cooReorder(coo, coo.Row.AsInt32(), coo.Col.AsInt32(), newRowIDs.AsInt32(), newColIDs.AsInt32())
	default:
		return cooReorder(coo, coo.Row.AsInt64(), coo.Col.AsInt64(), newRowIDs.AsInt64(), newColIDs.AsInt64())
	}
}

func cooReorder[I tensor.Index](coo *COO, row, col, newRowIDs, newColIDs []I) *COO {
	nnz := coo.NNZ()
	outRow := tensor.NewVector(nnz, coo.IndexType())
	outCol := tensor.NewVector(nnz, coo.IndexType())
	outRowData := asIndex[I](outRow)
	outColData := asIndex[I](outCol)
	for i := 0; i < nnz; i++ {
		outRowData[i] = newRowIDs[row[i]]
		outColData[i] = newColIDs[col[i]]
	}
	var data *tensor.RawTensor
	if coo.HasData() {
		data = coo.Data.Clone()
	}
	return &COO{
		NumRows: coo.NumRows, NumCols: coo.NumCols,
		Row: outRow, Col: outCol, Data: data,
	}
}

// CSRReorder relabels a CSR matrix through the COO form.
func CSRReorder(csr *CSR, newRowIDs, newColIDs *tensor.RawTensor) *CSR {
	return COOToCSR(COOReorder(CSRToCOO(csr), newRowIDs, newColIDs))
}

func idPositions[I tensor.Index](ids []I) map[I]I {
	m := make(map[I]I, len(ids))
	for pos, id := range ids {
		m[id] = I(pos)
	}
	return m
}

func fromIndex[I tensor.Index](data []I, dtype tensor.DataType) *tensor.RawTensor {
	out := tensor.NewVector(len(data), dtype)
	copy(asIndex[I](out), data)
	return out
}
