package sparse

import (
	"testing"

	"github.com/gravel-ml/gravel/internal/tensor"
)

// testCSR builds the 3x4 matrix used across the package tests:
//
//	edge 0: (0, 0)
//	edge 1: (0, 1)
//	edge 2: (1, 1)
//	edge 3: (2, 0)
//	edge 4: (2, 2)
func testCSR() *CSR {
	return NewCSR(3, 4,
		tensor.FromInt64([]int64{0, 2, 3, 5}),
		tensor.FromInt64([]int64{0, 1, 1, 0, 2}),
		nil, true)
}

func wantInt64s(t *testing.T, name string, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %v, want %v", name, got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("%s: got %v, want %v", name, got, want)
		}
	}
}

func TestCSRToCOOPreservesEntries(t *testing.T) {
	coo := CSRToCOO(testCSR())

	if coo.NumRows != 3 || coo.NumCols != 4 {
		t.Fatalf("got %dx%d, want 3x4", coo.NumRows, coo.NumCols)
	}
	if !coo.RowSorted {
		t.Fatal("expanded row array should be marked row-sorted")
	}
	wantInt64s(t, "row", coo.Row.AsInt64(), []int64{0, 0, 1, 2, 2})
	wantInt64s(t, "col", coo.Col.AsInt64(), []int64{0, 1, 1, 0, 2})
	if coo.HasData() {
		t.Fatal("identity edge ids should stay implicit")
	}
}

func TestCOOToCSRRoundTrip(t *testing.T) {
	csr := COOToCSR(CSRToCOO(testCSR()))

	wantInt64s(t, "indptr", csr.Indptr.AsInt64(), []int64{0, 2, 3, 5})
	wantInt64s(t, "indices", csr.Indices.AsInt64(), []int64{0, 1, 1, 0, 2})
	wantInt64s(t, "data", csr.Data.AsInt64(), []int64{0, 1, 2, 3, 4})
}

func TestCOOToCSRUnsortedIsStable(t *testing.T) {
	// Rows arrive out of order with a multi-edge on (0, 1); the counting
	// sort must keep the two copies in arrival order.
	coo := NewCOO(3, 4,
		tensor.FromInt64([]int64{2, 0, 0, 1, 0}),
		tensor.FromInt64([]int64{3, 1, 1, 0, 2}),
		nil, false, false)
	csr := COOToCSR(coo)

	wantInt64s(t, "indptr", csr.Indptr.AsInt64(), []int64{0, 3, 4, 5})
	wantInt64s(t, "indices", csr.Indices.AsInt64(), []int64{1, 1, 2, 0, 3})
	wantInt64s(t, "data", csr.Data.AsInt64(), []int64{1, 2, 4, 3, 0})
}

func TestCOOToCSRCarriesExplicitData(t *testing.T) {
	coo := NewCOO(2, 2,
		tensor.FromInt64([]int64{1, 0}),
		tensor.FromInt64([]int64{0, 1}),
		tensor.FromInt64([]int64{7, 9}), false, false)
	csr := COOToCSR(coo)

	wantInt64s(t, "indptr", csr.Indptr.AsInt64(), []int64{0, 1, 2})
	wantInt64s(t, "indices", csr.Indices.AsInt64(), []int64{1, 0})
	wantInt64s(t, "data", csr.Data.AsInt64(), []int64{9, 7})
}

func TestCOOTransposeSwapsInPlace(t *testing.T) {
	coo := CSRToCOO(testCSR())
	tr := COOTranspose(coo)

	if tr.NumRows != 4 || tr.NumCols != 3 {
		t.Fatalf("got %dx%d, want 4x3", tr.NumRows, tr.NumCols)
	}
	if tr.Row != coo.Col || tr.Col != coo.Row {
		t.Fatal("transpose should swap the arrays without copying")
	}
	if !tr.ColSorted || tr.RowSorted {
		t.Fatal("sorted flags should swap with the arrays")
	}
}

func TestCSRTransposePreservesEdgeIDs(t *testing.T) {
	tr := CSRTranspose(testCSR())

	if tr.NumRows != 4 || tr.NumCols != 3 {
		t.Fatalf("got %dx%d, want 4x3", tr.NumRows, tr.NumCols)
	}
	wantInt64s(t, "indptr", tr.Indptr.AsInt64(), []int64{0, 2, 4, 5, 5})
	wantInt64s(t, "indices", tr.Indices.AsInt64(), []int64{0, 2, 0, 1, 2})
	// Edge ids must still name positions in the original matrix.
	wantInt64s(t, "data", tr.Data.AsInt64(), []int64{0, 3, 1, 2, 4})
}

func TestCSRTransposeTwiceRestoresStructure(t *testing.T) {
	back := CSRTranspose(CSRTranspose(testCSR()))

	wantInt64s(t, "indptr", back.Indptr.AsInt64(), []int64{0, 2, 3, 5})
	wantInt64s(t, "indices", back.Indices.AsInt64(), []int64{0, 1, 1, 0, 2})
	wantInt64s(t, "data", back.Data.AsInt64(), []int64{0, 1, 2, 3, 4})
}

func TestConvertInt32Indices(t *testing.T) {
	coo := NewCOO(2, 3,
		tensor.FromInt32([]int32{1, 0}),
		tensor.FromInt32([]int32{2, 1}),
		nil, false, false)
	csr := COOToCSR(coo)

	if csr.IndexType() != tensor.Int32 {
		t.Fatalf("index type %s, want int32", csr.IndexType())
	}
	got := csr.Indptr.AsInt32()
	want := []int32{0, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("indptr: got %v, want %v", got, want)
		}
	}
}
