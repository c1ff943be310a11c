package sparse

import (
	"fmt"
	"sort"

	"github.com/gravel-ml/gravel/internal/parallel"
	"github.com/gravel-ml/gravel/internal/tensor"
)

// pairLookupHashThreshold is the lookup count at which batched (row, col)
// queries switch from linear scans to a prebuilt hash multimap. Tuned
// empirically; not a correctness boundary.
const pairLookupHashThreshold = 200

// COOIsNonZero reports whether the entry (row, col) is present.
func COOIsNonZero(coo *COO, row, col int64) bool {
	checkRowIndex(row, int64(coo.NumRows))
	checkColIndex(col, int64(coo.NumCols))
	switch coo.IndexType() {
	case tensor.Int32:
		return cooIsNonZero(coo.Row.AsInt32(), coo.Col.AsInt32(), row, col)
	default:
		return cooIsNonZero(coo.Row.AsInt64(), coo.Col.AsInt64(), row, col)
	}
}

func cooIsNonZero[I tensor.Index](rowData, colData []I, row, col int64) bool {
	for i := range rowData {
		if int64(rowData[i]) == row && int64(colData[i]) == col {
			return true
		}
	}
	return false
}

// COOIsNonZeroVec answers a batch of presence queries, writing 1 or 0
// per pair into a vector of the matrix's index type. Either argument
// may have length 1 to broadcast against the other.
func COOIsNonZeroVec(coo *COO, rows, cols *tensor.RawTensor) *tensor.RawTensor {
	checkIndexType("lookup", coo.Row, rows)
	checkIndexType("lookup", coo.Row, cols)
	checkBroadcastablePair(rows.Len(), cols.Len())
	switch coo.IndexType() {
	case tensor.Int32:
		return cooIsNonZeroVec(coo, coo.Row.AsInt32(), coo.Col.AsInt32(), rows.AsInt32(), cols.AsInt32())
	default:
		return cooIsNonZeroVec(coo, coo.Row.AsInt64(), coo.Col.AsInt64(), rows.AsInt64(), cols.AsInt64())
	}
}

func cooIsNonZeroVec[I tensor.Index](coo *COO, cooRow, cooCol, rows, cols []I) *tensor.RawTensor {
	rowStride, colStride := broadcastStrides(len(rows), len(cols))
	retLen := max(len(rows), len(cols))

	ret := tensor.NewVector(retLen, coo.IndexType())
	retData := asIndex[I](ret)

	parallel.For(retLen, func(p int) {
		rowID := int64(rows[p*rowStride])
		colID := int64(cols[p*colStride])
		checkRowIndex(rowID, int64(coo.NumRows))
		checkColIndex(colID, int64(coo.NumCols))
		if cooIsNonZero(cooRow, cooCol, rowID, colID) {
			retData[p] = 1
		}
	}, parallel.DefaultConfig())
	return ret
}

// COOHasDuplicate reports whether any (row, col) pair occurs twice.
func COOHasDuplicate(coo *COO) bool {
	switch coo.IndexType() {
	case tensor.Int32:
		return cooHasDuplicate(coo.Row.AsInt32(), coo.Col.AsInt32())
	default:
		return cooHasDuplicate(coo.Row.AsInt64(), coo.Col.AsInt64())
	}
}

func cooHasDuplicate[I tensor.Index](rowData, colData []I) bool {
	seen := make(map[[2]int64]struct{}, len(rowData))
	for i := range rowData {
		p := [2]int64{int64(rowData[i]), int64(colData[i])}
		if _, ok := seen[p]; ok {
			return true
		}
		seen[p] = struct{}{}
	}
	return false
}

// COOGetRowNNZ counts the entries in one row.
func COOGetRowNNZ(coo *COO, row int64) int64 {
	checkRowIndex(row, int64(coo.NumRows))
	switch coo.IndexType() {
	case tensor.Int32:
		return cooGetRowNNZ(coo.Row.AsInt32(), row)
	default:
		return cooGetRowNNZ(coo.Row.AsInt64(), row)
	}
}

func cooGetRowNNZ[I tensor.Index](rowData []I, row int64) int64 {
	var n int64
	for i := range rowData {
		if int64(rowData[i]) == row {
			n++
		}
	}
	return n
}

// COOGetRowNNZVec counts the entries in each queried row.
func COOGetRowNNZVec(coo *COO, rows *tensor.RawTensor) *tensor.RawTensor {
	checkIndexType("lookup", coo.Row, rows)
	ret := tensor.NewVector(rows.Len(), coo.IndexType())
	switch coo.IndexType() {
	case tensor.Int32:
		cooGetRowNNZVec(coo, coo.Row.AsInt32(), rows.AsInt32(), ret.AsInt32())
	default:
		cooGetRowNNZVec(coo, coo.Row.AsInt64(), rows.AsInt64(), ret.AsInt64())
	}
	return ret
}

func cooGetRowNNZVec[I tensor.Index](coo *COO, rowData, rows, ret []I) {
	parallel.For(len(rows), func(p int) {
		checkRowIndex(int64(rows[p]), int64(coo.NumRows))
		ret[p] = I(cooGetRowNNZ(rowData, int64(rows[p])))
	}, parallel.DefaultConfig())
}

// CSRGetRowNNZ counts the entries in one row.
func CSRGetRowNNZ(csr *CSR, row int64) int64 {
	checkRowIndex(row, int64(csr.NumRows))
	switch csr.IndexType() {
	case tensor.Int32:
		indptr := csr.Indptr.AsInt32()
		return int64(indptr[row+1] - indptr[row])
	default:
		indptr := csr.Indptr.AsInt64()
		return indptr[row+1] - indptr[row]
	}
}

// CSRGetRowNNZVec counts the entries in each queried row.
func CSRGetRowNNZVec(csr *CSR, rows *tensor.RawTensor) *tensor.RawTensor {
	checkIndexType("lookup", csr.Indices, rows)
	ret := tensor.NewVector(rows.Len(), csr.IndexType())
	switch csr.IndexType() {
	case tensor.Int32:
		csrGetRowNNZVec(csr, csr.Indptr.AsInt32(), rows.AsInt32(), ret.AsInt32())
	default:
		csrGetRowNNZVec(csr, csr.Indptr.AsInt64(), rows.AsInt64(), ret.AsInt64())
	}
	return ret
}

func csrGetRowNNZVec[I tensor.Index](csr *CSR, indptr, rows, ret []I) {
	parallel.For(len(rows), func(p int) {
		row := rows[p]
		checkRowIndex(int64(row), int64(csr.NumRows))
		ret[p] = indptr[row+1] - indptr[row]
	}, parallel.DefaultConfig())
}

// COOGetData looks up the edge id of each (rows[i], cols[i]) pair,
// returning -1 where no entry exists. Either argument may have length 1
// to broadcast against the other. Row-sorted matrices use a binary
// search; otherwise each lookup is a linear scan. For multi-edges the
// first match in storage order wins.
func COOGetData(coo *COO, rows, cols *tensor.RawTensor) *tensor.RawTensor {
	checkIndexType("lookup", coo.Row, rows)
	checkIndexType("lookup", coo.Row, cols)
	checkBroadcastablePair(rows.Len(), cols.Len())
	switch coo.IndexType() {
	case tensor.Int32:
		return cooGetData(coo, coo.Row.AsInt32(), coo.Col.AsInt32(), rows.AsInt32(), cols.AsInt32())
	default:
		return cooGetData(coo, coo.Row.AsInt64(), coo.Col.AsInt64(), rows.AsInt64(), cols.AsInt64())
	}
}

func cooGetData[I tensor.Index](coo *COO, cooRow, cooCol, rows, cols []I) *tensor.RawTensor {
	rowStride, colStride := broadcastStrides(len(rows), len(cols))
	retLen := max(len(rows), len(cols))
	var eids []I
	if coo.HasData() {
		eids = asIndex[I](coo.Data)
	}

	ret := tensor.NewVector(retLen, coo.IndexType())
	retData := asIndex[I](ret)

	lookup := func(p int) {
		rowID := rows[p*rowStride]
		colID := cols[p*colStride]
		retData[p] = -1
		if coo.RowSorted {
			lo := sort.Search(len(cooRow), func(i int) bool { return cooRow[i] >= rowID })
			for i := lo; i < len(cooRow) && cooRow[i] == rowID; i++ {
				if cooCol[i] == colID {
					retData[p] = entryID(eids, i)
					return
				}
			}
			return
		}
		for i := range cooRow {
			if cooRow[i] == rowID && cooCol[i] == colID {
				retData[p] = entryID(eids, i)
				return
			}
		}
	}
	parallel.For(retLen, lookup, parallel.DefaultConfig())
	return ret
}

// COOGetDataAndIndices returns the (row, col, edge-id) triples matching
// the queried pairs, including every duplicate. Above
// pairLookupHashThreshold lookups, a hash multimap over the matrix is
// built first so each query is O(1) average instead of O(nnz).
func COOGetDataAndIndices(coo *COO, rows, cols *tensor.RawTensor) (*tensor.RawTensor, *tensor.RawTensor, *tensor.RawTensor) {
	checkIndexType("lookup", coo.Row, rows)
	checkIndexType("lookup", coo.Row, cols)
	checkBroadcastablePair(rows.Len(), cols.Len())
	switch coo.IndexType() {
	case tensor.Int32:
		return cooGetDataAndIndices(coo, coo.Row.AsInt32(), coo.Col.AsInt32(), rows.AsInt32(), cols.AsInt32())
	default:
		return cooGetDataAndIndices(coo, coo.Row.AsInt64(), coo.Col.AsInt64(), rows.AsInt64(), cols.AsInt64())
	}
}

func cooGetDataAndIndices[I tensor.Index](coo *COO, cooRow, cooCol, rows, cols []I) (*tensor.RawTensor, *tensor.RawTensor, *tensor.RawTensor) {
	rowStride, colStride := broadcastStrides(len(rows), len(cols))
	numLookups := max(len(rows), len(cols))
	var eids []I
	if coo.HasData() {
		eids = asIndex[I](coo.Data)
	}

	var retRows, retCols, retData []I

	if numLookups >= pairLookupHashThreshold {
		pairMap := make(map[[2]I][]I, len(cooRow))
		for k := range cooRow {
			p := [2]I{cooRow[k], cooCol[k]}
			pairMap[p] = append(pairMap[p], entryID(eids, k))
		}
		for p := 0; p < numLookups; p++ {
			rowID := rows[p*rowStride]
			colID := cols[p*colStride]
			checkRowIndex(int64(rowID), int64(coo.NumRows))
			checkColIndex(int64(colID), int64(coo.NumCols))
			for _, eid := range pairMap[[2]I{rowID, colID}] {
				retRows = append(retRows, rowID)
				retCols = append(retCols, colID)
				retData = append(retData, eid)
			}
		}
	} else {
		for p := 0; p < numLookups; p++ {
			rowID := rows[p*rowStride]
			colID := cols[p*colStride]
			checkRowIndex(int64(rowID), int64(coo.NumRows))
			checkColIndex(int64(colID), int64(coo.NumCols))
			for k := range cooRow {
				if cooRow[k] == rowID && cooCol[k] == colID {
					retRows = append(retRows, rowID)
					retCols = append(retCols, colID)
					retData = append(retData, entryID(eids, k))
				}
			}
		}
	}

	dtype := coo.IndexType()
	return fromIndex(retRows, dtype), fromIndex(retCols, dtype), fromIndex(retData, dtype)
}

// CSRGetData looks up the edge id of each (rows[i], cols[i]) pair,
// returning -1 where no entry exists. Sorted rows use binary search over
// the row's column slice; unsorted rows fall back to a linear scan.
func CSRGetData(csr *CSR, rows, cols *tensor.RawTensor) *tensor.RawTensor {
	checkIndexType("lookup", csr.Indices, rows)
	checkIndexType("lookup", csr.Indices, cols)
	checkBroadcastablePair(rows.Len(), cols.Len())
	switch csr.IndexType() {
	case tensor.Int32:
		return csrGetData(csr, csr.Indptr.AsInt32(), csr.Indices.AsInt32(), rows.AsInt32(), cols.AsInt32())
	default:
		return csrGetData(csr, csr.Indptr.AsInt64(), csr.Indices.AsInt64(), rows.AsInt64(), cols.AsInt64())
	}
}

func csrGetData[I tensor.Index](csr *CSR, indptr, indices, rows, cols []I) *tensor.RawTensor {
	rowStride, colStride := broadcastStrides(len(rows), len(cols))
	retLen := max(len(rows), len(cols))
	var eids []I
	if csr.HasData() {
		eids = asIndex[I](csr.Data)
	}

	ret := tensor.NewVector(retLen, csr.IndexType())
	retData := asIndex[I](ret)

	parallel.For(retLen, func(p int) {
		rowID := rows[p*rowStride]
		colID := cols[p*colStride]
		checkRowIndex(int64(rowID), int64(csr.NumRows))
		checkColIndex(int64(colID), int64(csr.NumCols))
		start, end := int(indptr[rowID]), int(indptr[rowID+1])
		retData[p] = -1
		if csr.Sorted {
			rowCols := indices[start:end]
			i := sort.Search(len(rowCols), func(i int) bool { return rowCols[i] >= colID })
			if i < len(rowCols) && rowCols[i] == colID {
				retData[p] = entryID(eids, start+i)
			}
			return
		}
		for i := start; i < end; i++ {
			if indices[i] == colID {
				retData[p] = entryID(eids, i)
				return
			}
		}
	}, parallel.DefaultConfig())
	return ret
}

// CSRGetDataAndIndices returns the (row, col, edge-id) triples matching
// the queried pairs, including every duplicate. Sorted rows narrow the
// scan with a binary search over the row's column slice.
func CSRGetDataAndIndices(csr *CSR, rows, cols *tensor.RawTensor) (*tensor.RawTensor, *tensor.RawTensor, *tensor.RawTensor) {
	checkIndexType("lookup", csr.Indices, rows)
	checkIndexType("lookup", csr.Indices, cols)
	checkBroadcastablePair(rows.Len(), cols.Len())
	switch csr.IndexType() {
	case tensor.Int32:
		return csrGetDataAndIndices(csr, csr.Indptr.AsInt32(), csr.Indices.AsInt32(), rows.AsInt32(), cols.AsInt32())
	default:
		return csrGetDataAndIndices(csr, csr.Indptr.AsInt64(), csr.Indices.AsInt64(), rows.AsInt64(), cols.AsInt64())
	}
}

func csrGetDataAndIndices[I tensor.Index](csr *CSR, indptr, indices, rows, cols []I) (*tensor.RawTensor, *tensor.RawTensor, *tensor.RawTensor) {
	rowStride, colStride := broadcastStrides(len(rows), len(cols))
	numLookups := max(len(rows), len(cols))
	var eids []I
	if csr.HasData() {
		eids = asIndex[I](csr.Data)
	}

	var retRows, retCols, retData []I
	for p := 0; p < numLookups; p++ {
		rowID := rows[p*rowStride]
		colID := cols[p*colStride]
		checkRowIndex(int64(rowID), int64(csr.NumRows))
		checkColIndex(int64(colID), int64(csr.NumCols))
		start, end := int(indptr[rowID]), int(indptr[rowID+1])
		if csr.Sorted {
			rowCols := indices[start:end]
			i := sort.Search(len(rowCols), func(i int) bool { return rowCols[i] >= colID })
			for ; i < len(rowCols) && rowCols[i] == colID; i++ {
				retRows = append(retRows, rowID)
				retCols = append(retCols, colID)
				retData = append(retData, entryID(eids, start+i))
			}
			continue
		}
		for i := start; i < end; i++ {
			if indices[i] == colID {
				retRows = append(retRows, rowID)
				retCols = append(retCols, colID)
				retData = append(retData, entryID(eids, i))
			}
		}
	}

	dtype := csr.IndexType()
	return fromIndex(retRows, dtype), fromIndex(retCols, dtype), fromIndex(retData, dtype)
}

func entryID[I tensor.Index](eids []I, pos int) I {
	if eids != nil {
		return eids[pos]
	}
	return I(pos)
}

func broadcastStrides(rowLen, colLen int) (int, int) {
	rowStride, colStride := 1, 1
	if rowLen == 1 && colLen != 1 {
		rowStride = 0
	}
	if colLen == 1 && rowLen != 1 {
		colStride = 0
	}
	return rowStride, colStride
}

func checkBroadcastablePair(rowLen, colLen int) {
	if rowLen != colLen && rowLen != 1 && colLen != 1 {
		panic(fmt.Sprintf("sparse: invalid row and col id arrays: lengths %d and %d", rowLen, colLen))
	}
}
