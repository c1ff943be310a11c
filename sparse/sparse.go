// Copyright 2025 The Gravel Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package sparse provides the CSR and COO sparse matrix formats, format
// conversion, sorting, slicing and entry lookup.
//
// Both formats share the same conventions: rows index source nodes,
// columns index destination nodes, and the optional Data array carries
// edge ids. A nil Data array means the identity mapping, where an
// entry's edge id is its storage position. Every transformation in this
// package preserves edge ids, so features keyed by edge id survive
// conversion, transposition, sorting and slicing.
package sparse

import (
	"github.com/gravel-ml/gravel/internal/parallel"
	internalsparse "github.com/gravel-ml/gravel/internal/sparse"
	"github.com/gravel-ml/gravel/tensor"
)

// CSR is a compressed sparse row matrix.
type CSR = internalsparse.CSR

// COO is a coordinate-format sparse matrix.
type COO = internalsparse.COO

// NewCSR validates and builds a CSR matrix. Data may be nil for
// identity edge ids.
func NewCSR(numRows, numCols int, indptr, indices, data *tensor.RawTensor, sorted bool) *CSR {
	return internalsparse.NewCSR(numRows, numCols, indptr, indices, data, sorted)
}

// NewCOO validates and builds a COO matrix. Data may be nil for
// identity edge ids.
func NewCOO(numRows, numCols int, row, col, data *tensor.RawTensor, rowSorted, colSorted bool) *COO {
	return internalsparse.NewCOO(numRows, numCols, row, col, data, rowSorted, colSorted)
}

// COOToCSR converts to CSR, preserving edge ids. Unsorted inputs go
// through a stable counting sort so multi-edges keep their relative
// order.
func COOToCSR(coo *COO) *CSR {
	return internalsparse.COOToCSR(coo)
}

// CSRToCOO expands the row pointer into an explicit row array.
func CSRToCOO(csr *CSR) *COO {
	return internalsparse.CSRToCOO(csr)
}

// COOTranspose swaps rows and columns without copying.
func COOTranspose(coo *COO) *COO {
	return internalsparse.COOTranspose(coo)
}

// CSRTranspose converts the matrix so incoming entries of each column
// become a row.
func CSRTranspose(csr *CSR) *CSR {
	return internalsparse.CSRTranspose(csr)
}

// IsSorted scans each CSR row and reports whether all column ids are
// ascending. It does not consult or update the Sorted flag.
func IsSorted(csr *CSR) bool {
	return internalsparse.IsSorted(csr)
}

// Sort reorders each row's (column, edge-id) pairs ascending by column,
// in place, parallel across rows.
func Sort(csr *CSR) {
	internalsparse.Sort(csr, parallel.DefaultConfig())
}

// SortByTag stable-partitions each row's entries into numTags contiguous
// buckets ordered by the tag of the destination column. Returns the
// partitioned matrix and a [NumRows, numTags+1] table of cumulative
// bucket boundaries relative to each row start.
func SortByTag(csr *CSR, tags *tensor.RawTensor, numTags int) (*CSR, *tensor.RawTensor) {
	return internalsparse.SortByTag(csr, tags, numTags, parallel.DefaultConfig())
}

// CSRSliceRows returns the submatrix of rows [start, end), with row ids
// rebased to zero.
func CSRSliceRows(csr *CSR, start, end int) *CSR {
	return internalsparse.CSRSliceRows(csr, start, end)
}

// COOSliceRows keeps entries whose row is in [start, end), rebasing row
// ids to zero.
func COOSliceRows(coo *COO, start, end int) *COO {
	return internalsparse.COOSliceRows(coo, start, end)
}

// COOSliceMatrix keeps entries whose row and column both appear in the
// given id sets, remapping ids to positions within those sets.
func COOSliceMatrix(coo *COO, rows, cols *tensor.RawTensor) *COO {
	return internalsparse.COOSliceMatrix(coo, rows, cols)
}

// CSRSliceMatrix slices by row and column id sets through the COO form.
func CSRSliceMatrix(csr *CSR, rows, cols *tensor.RawTensor) *CSR {
	return internalsparse.CSRSliceMatrix(csr, rows, cols)
}

// COOReorder relabels every entry through the given row and column
// permutations. newRowIDs[i] is the new id of current row i.
func COOReorder(coo *COO, newRowIDs, newColIDs *tensor.RawTensor) *COO {
	return internalsparse.COOReorder(coo, newRowIDs, newColIDs)
}

// CSRReorder relabels a CSR matrix through the COO form.
func CSRReorder(csr *CSR, newRowIDs, newColIDs *tensor.RawTensor) *CSR {
	return internalsparse.CSRReorder(csr, newRowIDs, newColIDs)
}

// COOIsNonZero reports whether the entry (row, col) is present.
func COOIsNonZero(coo *COO, row, col int64) bool {
	return internalsparse.COOIsNonZero(coo, row, col)
}

// COOIsNonZeroVec answers a batch of presence queries, writing 1 or 0
// per pair into a vector of the matrix's index type.
func COOIsNonZeroVec(coo *COO, rows, cols *tensor.RawTensor) *tensor.RawTensor {
	return internalsparse.COOIsNonZeroVec(coo, rows, cols)
}

// COOHasDuplicate reports whether any (row, col) pair occurs twice.
func COOHasDuplicate(coo *COO) bool {
	return internalsparse.COOHasDuplicate(coo)
}

// COOGetRowNNZ counts the entries in one row.
func COOGetRowNNZ(coo *COO, row int64) int64 {
	return internalsparse.COOGetRowNNZ(coo, row)
}

// COOGetRowNNZVec counts the entries in each queried row.
func COOGetRowNNZVec(coo *COO, rows *tensor.RawTensor) *tensor.RawTensor {
	return internalsparse.COOGetRowNNZVec(coo, rows)
}

// CSRGetRowNNZ counts the entries in one row.
func CSRGetRowNNZ(csr *CSR, row int64) int64 {
	return internalsparse.CSRGetRowNNZ(csr, row)
}

// CSRGetRowNNZVec counts the entries in each queried row.
func CSRGetRowNNZVec(csr *CSR, rows *tensor.RawTensor) *tensor.RawTensor {
	return internalsparse.CSRGetRowNNZVec(csr, rows)
}

// COOGetData looks up the edge id of each (rows[i], cols[i]) pair,
// returning -1 where no entry exists. Either argument may have length 1
// to broadcast against the other.
func COOGetData(coo *COO, rows, cols *tensor.RawTensor) *tensor.RawTensor {
	return internalsparse.COOGetData(coo, rows, cols)
}

// COOGetDataAndIndices returns the (row, col, edge-id) triples matching
// the queried pairs, including every duplicate.
func COOGetDataAndIndices(coo *COO, rows, cols *tensor.RawTensor) (*tensor.RawTensor, *tensor.RawTensor, *tensor.RawTensor) {
	return internalsparse.COOGetDataAndIndices(coo, rows, cols)
}

// CSRGetData looks up the edge id of each (rows[i], cols[i]) pair,
// returning -1 where no entry exists.
func CSRGetData(csr *CSR, rows, cols *tensor.RawTensor) *tensor.RawTensor {
	return internalsparse.CSRGetData(csr, rows, cols)
}

// CSRGetDataAndIndices returns the (row, col, edge-id) triples matching
// the queried pairs, including every duplicate.
func CSRGetDataAndIndices(csr *CSR, rows, cols *tensor.RawTensor) (*tensor.RawTensor, *tensor.RawTensor, *tensor.RawTensor) {
	return internalsparse.CSRGetDataAndIndices(csr, rows, cols)
}
