package sparse

import (
	"testing"

	"github.com/gravel-ml/gravel/internal/parallel"
	"github.com/gravel-ml/gravel/internal/tensor"
)

func unsortedCSR() *CSR {
	return NewCSR(2, 5,
		tensor.FromInt64([]int64{0, 3, 5}),
		tensor.FromInt64([]int64{3, 1, 2, 4, 0}),
		nil, false)
}

func TestIsSorted(t *testing.T) {
	if IsSorted(unsortedCSR()) {
		t.Fatal("columns [3 1 2] should not count as sorted")
	}
	if !IsSorted(testCSR()) {
		t.Fatal("fixture rows are ascending")
	}
}

func TestSortReordersColumnsAndEdgeIDs(t *testing.T) {
	csr := unsortedCSR()
	Sort(csr, parallel.DefaultConfig())

	if !csr.Sorted {
		t.Fatal("Sorted flag not set")
	}
	wantInt64s(t, "indices", csr.Indices.AsInt64(), []int64{1, 2, 3, 0, 4})
	// Edge ids follow their columns through the permutation.
	wantInt64s(t, "data", csr.Data.AsInt64(), []int64{1, 2, 0, 4, 3})
	if !IsSorted(csr) {
		t.Fatal("scan disagrees with the flag")
	}
}

func TestSortIsIdempotent(t *testing.T) {
	csr := unsortedCSR()
	Sort(csr, parallel.DefaultConfig())
	Sort(csr, parallel.DefaultConfig())

	wantInt64s(t, "indices", csr.Indices.AsInt64(), []int64{1, 2, 3, 0, 4})
	wantInt64s(t, "data", csr.Data.AsInt64(), []int64{1, 2, 0, 4, 3})
}

func TestSortByTagPartitionsRows(t *testing.T) {
	// One row, four destinations with tags [1 0 1 0]: bucket 0 must hold
	// columns 1 and 3 in storage order, bucket 1 columns 0 and 2.
	csr := NewCSR(1, 4,
		tensor.FromInt64([]int64{0, 4}),
		tensor.FromInt64([]int64{0, 1, 2, 3}),
		nil, true)
	tags := tensor.FromInt64([]int64{1, 0, 1, 0})

	out, tagPos := SortByTag(csr, tags, 2, parallel.DefaultConfig())

	wantInt64s(t, "indices", out.Indices.AsInt64(), []int64{1, 3, 0, 2})
	wantInt64s(t, "data", out.Data.AsInt64(), []int64{1, 3, 0, 2})
	wantInt64s(t, "tagPos", tagPos.AsInt64(), []int64{0, 2, 4})
	if tagPos.Shape()[0] != 1 || tagPos.Shape()[1] != 3 {
		t.Fatalf("tagPos shape %v, want [1 3]", tagPos.Shape())
	}

	// The input matrix must be untouched.
	wantInt64s(t, "input indices", csr.Indices.AsInt64(), []int64{0, 1, 2, 3})
}

func TestSortByTagMultipleRows(t *testing.T) {
	csr := testCSR()
	tags := tensor.FromInt64([]int64{0, 1, 0, 1})

	out, tagPos := SortByTag(csr, tags, 2, parallel.DefaultConfig())

	// Row 0: cols [0 1] -> tags [0 1]. Row 1: [1] -> tag 1.
	// Row 2: cols [0 2] -> both tag 0.
	wantInt64s(t, "indices", out.Indices.AsInt64(), []int64{0, 1, 1, 0, 2})
	wantInt64s(t, "data", out.Data.AsInt64(), []int64{0, 1, 2, 3, 4})
	wantInt64s(t, "tagPos", tagPos.AsInt64(), []int64{
		0, 1, 2,
		0, 0, 1,
		0, 2, 2,
	})
}

func TestSortByTagRejectsBadTag(t *testing.T) {
	csr := testCSR()
	tags := tensor.FromInt64([]int64{0, 5, 0, 1})

	defer func() {
		if recover() == nil {
			t.Fatal("tag 5 with 2 buckets should panic")
		}
	}()
	SortByTag(csr, tags, 2, parallel.DefaultConfig())
}
