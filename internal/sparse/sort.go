package sparse

import (
	"fmt"
	"sort"

	"github.com/gravel-ml/gravel/internal/parallel"
	"github.com/gravel-ml/gravel/internal/tensor"
)

// IsSorted scans each CSR row and reports whether all column ids are
// ascending. It does not consult or update the Sorted flag.
func IsSorted(csr *CSR) bool {
	switch csr.IndexType() {
	case tensor.Int32:
		return csrIsSorted(csr, csr.Indptr.AsInt32(), csr.Indices.AsInt32())
	default:
		return csrIsSorted(csr, csr.Indptr.AsInt64(), csr.Indices.AsInt64())
	}
}

func csrIsSorted[I tensor.Index](csr *CSR, indptr, indices []I) bool {
	for row := 0; row < csr.NumRows; row++ {
		for i := indptr[row] + 1; i < indptr[row+1]; i++ {
			if indices[i-1] > indices[i] {
				return false
			}
		}
	}
	return true
}

// rowView sorts one CSR row's (column, edge-id) pairs together.
type rowView[I tensor.Index] struct {
	col []I
	eid []I
}

func (v rowView[I]) Len() int           { return len(v.col) }
func (v rowView[I]) Less(i, j int) bool { return v.col[i] < v.col[j] }
func (v rowView[I]) Swap(i, j int) {
	v.col[i], v.col[j] = v.col[j], v.col[i]
	v.eid[i], v.eid[j] = v.eid[j], v.eid[i]
}

// Sort reorders each row's (column, edge-id) pairs ascending by column,
// in place, parallel across rows. The identity edge-id array is
// materialized first so the permutation stays recoverable.
func Sort(csr *CSR, cfg parallel.Config) {
	csr.EnsureData()
	switch csr.IndexType() {
	case tensor.Int32:
		csrSort(csr, csr.Indptr.AsInt32(), csr.Indices.AsInt32(), csr.Data.AsInt32(), cfg)
	default:
		csrSort(csr, csr.Indptr.AsInt64(), csr.Indices.AsInt64(), csr.Data.AsInt64(), cfg)
	}
	csr.Sorted = true
}

func csrSort[I tensor.Index](csr *CSR, indptr, indices, eids []I, cfg parallel.Config) {
	parallel.For(csr.NumRows, func(row int) {
		start, end := indptr[row], indptr[row+1]
		sort.Sort(rowView[I]{col: indices[start:end], eid: eids[start:end]})
	}, cfg)
}

// SortByTag stable-partitions each row's entries into numTags contiguous
// buckets ordered by the tag of the destination column. The input matrix
// is left untouched; the partitioned matrix is returned together with a
// [NumRows, numTags+1] table of cumulative bucket boundaries (offsets
// relative to the row start). Panics if any referenced tag >= numTags.
func SortByTag(csr *CSR, tags *tensor.RawTensor, numTags int, cfg parallel.Config) (*CSR, *tensor.RawTensor) {
	if numTags <= 0 {
		panic(fmt.Sprintf("sparse: invalid tag count %d", numTags))
	}
	checkIndexType("tags", csr.Indices, tags)
	if tags.Len() != csr.NumCols {
		panic(fmt.Sprintf("sparse: tag array length %d, want num_cols %d", tags.Len(), csr.NumCols))
	}
	csr.EnsureData()

	out := &CSR{
		NumRows: csr.NumRows,
		NumCols: csr.NumCols,
		Indptr:  csr.Indptr.Clone(),
		Indices: tensor.NewVector(csr.NNZ(), csr.IndexType()),
		Data:    tensor.NewVector(csr.NNZ(), csr.IndexType()),
		Sorted:  false,
	}
	tagPos := tensor.MustNew(tensor.Shape{csr.NumRows, numTags + 1}, csr.IndexType(), tensor.CPU)

	switch csr.IndexType() {
	case tensor.Int32:
		csrSortByTag(csr, out, csr.Indptr.AsInt32(), csr.Indices.AsInt32(), csr.Data.AsInt32(),
			out.Indices.AsInt32(), out.Data.AsInt32(), tags.AsInt32(), tagPos.AsInt32(), numTags, cfg)
	default:
		csrSortByTag(csr, out, csr.Indptr.AsInt64(), csr.Indices.AsInt64(), csr.Data.AsInt64(),
			out.Indices.AsInt64(), out.Data.AsInt64(), tags.AsInt64(), tagPos.AsInt64(), numTags, cfg)
	}
	return out, tagPos
}

func csrSortByTag[I tensor.Index](csr, out *CSR, indptr, indices, eids, outIndices, outEids, tags, tagPos []I, numTags int, cfg parallel.Config) {
	parallel.ForRange(csr.NumRows, func(rowStart, rowEnd int) {
		filled := make([]I, numTags)
		for row := rowStart; row < rowEnd; row++ {
			start, end := indptr[row], indptr[row+1]
			posRow := tagPos[row*(numTags+1) : (row+1)*(numTags+1)]

			// Count per-tag entries, then cumulate into boundaries.
			for ptr := start; ptr < end; ptr++ {
				dst := indices[ptr]
				tag := tags[dst]
				if int64(tag) >= int64(numTags) || tag < 0 {
					panic(fmt.Sprintf("sparse: tag %d out of range [0, %d)", tag, numTags))
				}
				posRow[tag+1]++
			}
			for t := 1; t <= numTags; t++ {
				posRow[t] += posRow[t-1]
			}

			// Stable scatter into buckets.
			for i := range filled {
				filled[i] = 0
			}
			for ptr := start; ptr < end; ptr++ {
				dst := indices[ptr]
				eid := eids[ptr]
				tag := tags[dst]
				offset := posRow[tag] + filled[tag]
				filled[tag]++
				outIndices[int64(start)+int64(offset)] = dst
				outEids[int64(start)+int64(offset)] = eid
			}
		}
	}, cfg)
}
