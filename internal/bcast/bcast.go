// Package bcast computes feature-dimension broadcasting plans for binary
// operators whose operands share a leading node/edge dimension.
package bcast

import (
	"fmt"

	"github.com/gravel-ml/gravel/internal/binop"
	"github.com/gravel-ml/gravel/internal/tensor"
)

// Off is a broadcasting plan. When UseBcast is false the operand feature
// shapes are identical and kernels skip the offset tables entirely.
// Otherwise LhsOffset[i] and RhsOffset[i] give the flat offset into one
// operand feature row for output element i (row-major over OutShape);
// stretched length-1 dimensions map to offset-stride zero.
type Off struct {
	UseBcast  bool
	LhsLen    int
	RhsLen    int
	OutLen    int
	OutShape  tensor.Shape
	LhsOffset []int
	RhsOffset []int
}

// Calc builds the plan for op over the given operand feature shapes
// (trailing dims only, leading node/edge dim excluded). Shorter shapes
// are treated as having implicit leading 1-dims. copy_lhs/copy_rhs ops
// only consult the operand they read. Panics on incompatible dims.
func Calc(op binop.Op, lhsShape, rhsShape tensor.Shape) *Off {
	if !op.UseLhs() {
		lhsShape = rhsShape
	}
	if !op.UseRhs() {
		rhsShape = lhsShape
	}

	out := &Off{
		LhsLen: lhsShape.NumElements(),
		RhsLen: rhsShape.NumElements(),
	}
	out.UseBcast = op.UseLhs() && op.UseRhs() && !lhsShape.Equal(rhsShape)

	ndim := max(len(lhsShape), len(rhsShape))
	outShape := make(tensor.Shape, ndim)
	for i := 1; i <= ndim; i++ {
		l, r := 1, 1
		if i <= len(lhsShape) {
			l = lhsShape[len(lhsShape)-i]
		}
		if i <= len(rhsShape) {
			r = rhsShape[len(rhsShape)-i]
		}
		if l != r && l != 1 && r != 1 {
			panic(fmt.Sprintf("bcast: operand shapes %v and %v do not broadcast", lhsShape, rhsShape))
		}
		outShape[ndim-i] = max(l, r)
	}
	out.OutShape = outShape
	out.OutLen = outShape.NumElements()

	if out.UseBcast {
		out.LhsOffset = offsetTable(lhsShape, outShape)
		out.RhsOffset = offsetTable(rhsShape, outShape)
	}
	return out
}

// offsetTable maps each row-major output element to the flat offset of
// the element it reads from in, with zero strides on stretched dims.
func offsetTable(in, out tensor.Shape) []int {
	ndim := len(out)
	pad := ndim - len(in)
	inStrides := in.ComputeStrides()
	outStrides := out.ComputeStrides()

	table := make([]int, out.NumElements())
	for i := range table {
		rem := i
		flat := 0
		for d := 0; d < ndim; d++ {
			coord := rem / outStrides[d]
			rem %= outStrides[d]
			if d < pad || in[d-pad] == 1 {
				continue
			}
			flat += coord * inStrides[d-pad]
		}
		table[i] = flat
	}
	return table
}
