package cpu

import (
	"testing"

	"github.com/gravel-ml/gravel/internal/bcast"
	"github.com/gravel-ml/gravel/internal/binop"
	"github.com/gravel-ml/gravel/internal/tensor"
)

func TestSDDMMCSRSrcDst(t *testing.T) {
	b := New()
	csr := testGraph(t)
	bc := bcast.Calc(binop.Mul, tensor.Shape{1}, tensor.Shape{1})
	ufeat := tensor.FromFloat32([]float32{1, 2, 3}, tensor.Shape{3, 1})
	vfeat := tensor.FromFloat32([]float32{7, 8, 9, 11}, tensor.Shape{4, 1})
	out := tensor.MustNew(tensor.Shape{5, 1}, tensor.Float32, tensor.CPU)

	b.SDDMMCSR(binop.Mul, bc, csr, ufeat, vfeat, out, binop.TargetSrc, binop.TargetDst)

	checkFloats(t, "out", out.AsFloat32(), []float32{
		7,  // 0->0: 1*7
		8,  // 0->1: 1*8
		16, // 1->1: 2*8
		21, // 2->0: 3*7
		27, // 2->2: 3*9
	})
}

func TestSDDMMCSREdgeTarget(t *testing.T) {
	b := New()
	csr := testGraph(t)
	bc := bcast.Calc(binop.Add, tensor.Shape{2}, tensor.Shape{2})
	ufeat := nodeFeat()
	out := tensor.MustNew(tensor.Shape{5, 2}, tensor.Float32, tensor.CPU)

	b.SDDMMCSR(binop.Add, bc, csr, ufeat, edgeFeat(), out, binop.TargetSrc, binop.TargetEdge)

	checkFloats(t, "out", out.AsFloat32(), []float32{
		11, 22, // u0 + e0
		31, 42, // u0 + e1
		53, 64, // u1 + e2
		75, 86, // u2 + e3
		95, 106, // u2 + e4
	})
}

func TestSDDMMCOOMatchesCSR(t *testing.T) {
	b := New()
	csr := testGraph(t)
	coo := testGraphCOO(t)
	bc := bcast.Calc(binop.Sub, tensor.Shape{2}, tensor.Shape{2})

	outCSR := tensor.MustNew(tensor.Shape{5, 2}, tensor.Float32, tensor.CPU)
	outCOO := tensor.MustNew(tensor.Shape{5, 2}, tensor.Float32, tensor.CPU)
	b.SDDMMCSR(binop.Sub, bc, csr, edgeFeat(), nodeFeat(), outCSR, binop.TargetEdge, binop.TargetSrc)
	b.SDDMMCOO(binop.Sub, bc, coo, edgeFeat(), nodeFeat(), outCOO, binop.TargetEdge, binop.TargetSrc)

	checkFloats(t, "coo vs csr", outCOO.AsFloat32(), outCSR.AsFloat32())
}

func TestSDDMMCopyLhsIgnoresRhs(t *testing.T) {
	b := New()
	coo := testGraphCOO(t)
	bc := bcast.Calc(binop.CopyLhs, tensor.Shape{2}, nil)
	out := tensor.MustNew(tensor.Shape{5, 2}, tensor.Float32, tensor.CPU)

	b.SDDMMCOO(binop.CopyLhs, bc, coo, edgeFeat(), nil, out, binop.TargetEdge, binop.TargetDst)

	checkFloats(t, "out", out.AsFloat32(), edgeFeat().AsFloat32())
}

func TestSDDMMRespectsEdgeIDs(t *testing.T) {
	// Explicit edge ids permute the output rows: entry p carries id
	// data[p], and its result lands on out[data[p]].
	b := New()
	csr := testGraph(t)
	csr.Data = tensor.FromInt64([]int64{4, 3, 2, 1, 0})
	bc := bcast.Calc(binop.CopyLhs, tensor.Shape{1}, nil)
	ufeat := tensor.FromFloat32([]float32{1, 2, 3}, tensor.Shape{3, 1})
	out := tensor.MustNew(tensor.Shape{5, 1}, tensor.Float32, tensor.CPU)

	b.SDDMMCSR(binop.CopyLhs, bc, csr, ufeat, nil, out, binop.TargetSrc, binop.TargetDst)

	checkFloats(t, "out", out.AsFloat32(), []float32{3, 3, 2, 1, 1})
}
