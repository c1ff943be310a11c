// Package kernel is the dispatch layer over the sparse compute engines.
// It resolves operator and reducer names, builds broadcast plans from
// operand shapes, validates every shape and dtype before launch, widens
// fp16 operands to f32, and hands off to the CPU backend.
package kernel

import (
	"fmt"

	"github.com/gravel-ml/gravel/internal/backend/cpu"
	"github.com/gravel-ml/gravel/internal/bcast"
	"github.com/gravel-ml/gravel/internal/binop"
	"github.com/gravel-ml/gravel/internal/sparse"
	"github.com/gravel-ml/gravel/internal/tensor"
)

// Target selects which feature array an SDDMM operand reads.
type Target = binop.Target

// Operand targets. The numeric values are part of the public contract.
const (
	TargetSrc  = binop.TargetSrc
	TargetDst  = binop.TargetDst
	TargetEdge = binop.TargetEdge
)

var backend = cpu.New()

// SpMMCSR reduces op(ufeat[src], efeat[edge]) over each destination's
// incoming edges. The matrix is source-major: row ids are sources,
// column ids are destinations, so out has csr.NumCols rows. For max/min
// the aux outputs argU/argE receive the selected source and edge id
// (-1 for zero-degree destinations); either may be nil.
func SpMMCSR(op, reduce string, csr *sparse.CSR, ufeat, efeat, out, argU, argE *tensor.RawTensor) {
	opv, red := parseOpReduce("spmm", op, reduce)
	bc := featBcast(opv, ufeat, efeat)
	validateSpMM(opv, red, bc, csr.NumRows, csr.NNZ(), csr.NumCols, csr.IndexType(),
		ufeat, efeat, out, argU, argE)
	runWidened(ufeat, efeat, out, func(u, e, o *tensor.RawTensor) {
		backend.SpMMCSR(opv, red, bc, csr, u, e, o, argU, argE)
	})
}

// SpMMCOO is SpMMCSR over coordinate form. Sum-family reducers scatter
// with atomics; max/min run a deterministic sequential pass.
func SpMMCOO(op, reduce string, coo *sparse.COO, ufeat, efeat, out, argU, argE *tensor.RawTensor) {
	opv, red := parseOpReduce("spmm", op, reduce)
	bc := featBcast(opv, ufeat, efeat)
	validateSpMM(opv, red, bc, coo.NumRows, coo.NNZ(), coo.NumCols, coo.IndexType(),
		ufeat, efeat, out, argU, argE)
	runWidened(ufeat, efeat, out, func(u, e, o *tensor.RawTensor) {
		backend.SpMMCOO(opv, red, bc, coo, u, e, o, argU, argE)
	})
}

// SDDMMCSR computes op(lhs[·], rhs[·]) once per stored entry, writing one
// output row per edge id. Each operand reads the source, destination or
// edge feature array as selected by its target.
func SDDMMCSR(op string, csr *sparse.CSR, lhs, rhs, out *tensor.RawTensor, lhsTarget, rhsTarget Target) {
	opv := parseOp("sddmm", op)
	bc := featBcast(opv, lhs, rhs)
	validateSDDMM(opv, bc, csr.NumRows, csr.NumCols, csr.NNZ(),
		lhs, rhs, out, lhsTarget, rhsTarget)
	runWidened(lhs, rhs, out, func(l, r, o *tensor.RawTensor) {
		backend.SDDMMCSR(opv, bc, csr, l, r, o, lhsTarget, rhsTarget)
	})
}

// SDDMMCOO is SDDMMCSR over coordinate form; both agree entry for entry.
func SDDMMCOO(op string, coo *sparse.COO, lhs, rhs, out *tensor.RawTensor, lhsTarget, rhsTarget Target) {
	opv := parseOp("sddmm", op)
	bc := featBcast(opv, lhs, rhs)
	validateSDDMM(opv, bc, coo.NumRows, coo.NumCols, coo.NNZ(),
		lhs, rhs, out, lhsTarget, rhsTarget)
	runWidened(lhs, rhs, out, func(l, r, o *tensor.RawTensor) {
		backend.SDDMMCOO(opv, bc, coo, l, r, o, lhsTarget, rhsTarget)
	})
}

// SegmentReduce folds consecutive feat rows into one output row per
// segment (sum, prod, max or min). offsets is monotonically
// non-decreasing with length out rows + 1. For max/min, arg receives the
// global source row index of each selected element, -1 for empty
// segments.
func SegmentReduce(reduce string, feat, offsets, out, arg *tensor.RawTensor) {
	red := parseReduce("segment_reduce", reduce)
	if red != binop.ReduceSum && red != binop.ReduceProd && !red.IsCmp() {
		panic(fmt.Sprintf("segment_reduce: unsupported reducer %q", reduce))
	}
	if offsets.Len() != out.Len()+1 {
		panic(fmt.Sprintf("segment_reduce: offsets length %d, want %d segments + 1",
			offsets.Len(), out.Len()))
	}
	checkFeatLen("segment_reduce", "out", out, feat.Shape().FeatLen())
	checkSameFloat("segment_reduce", feat, out)
	if arg != nil && red.IsCmp() {
		checkIndexArg("segment_reduce", arg, offsets.DType(), out.NumElements())
	}
	runWidened(feat, nil, out, func(f, _, o *tensor.RawTensor) {
		backend.SegmentReduce(red, f, offsets, o, arg)
	})
}

// ScatterAdd accumulates feat rows into out rows selected by idx:
// out[idx[i]] += feat[i]. out is not cleared first, so repeated calls
// keep accumulating.
func ScatterAdd(feat, idx, out *tensor.RawTensor) {
	if idx.Len() != feat.Len() {
		panic(fmt.Sprintf("scatter_add: idx has %d entries, feat has %d rows",
			idx.Len(), feat.Len()))
	}
	checkFeatLen("scatter_add", "out", out, feat.Shape().FeatLen())
	checkSameFloat("scatter_add", feat, out)
	runWidened(feat, nil, out, func(f, _, o *tensor.RawTensor) {
		backend.ScatterAdd(f, idx, o)
	})
}

// BackwardSegmentCmp routes upstream gradients of a max/min segment
// reduction back to the selected rows: out[arg[i,j]][j] = feat[i,j].
// arg entries of -1 (empty segments) are skipped.
func BackwardSegmentCmp(feat, arg, out *tensor.RawTensor) {
	if arg.NumElements() != feat.NumElements() {
		panic(fmt.Sprintf("backward_segment_cmp: arg has %d elements, feat has %d",
			arg.NumElements(), feat.NumElements()))
	}
	checkFeatLen("backward_segment_cmp", "out", out, feat.Shape().FeatLen())
	checkSameFloat("backward_segment_cmp", feat, out)
	runWidened(feat, nil, out, func(f, _, o *tensor.RawTensor) {
		backend.BackwardSegmentCmp(f, arg, o)
	})
}

func parseOp(where, op string) binop.Op {
	opv, err := binop.ParseOp(op)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", where, err))
	}
	return opv
}

func parseReduce(where, reduce string) binop.Reducer {
	red, err := binop.ParseReducer(reduce)
	if err != nil {
		panic(fmt.Sprintf("%s: %v", where, err))
	}
	return red
}

func parseOpReduce(where, op, reduce string) (binop.Op, binop.Reducer) {
	return parseOp(where, op), parseReduce(where, reduce)
}

// featBcast builds the broadcast plan from the operands' trailing
// feature dims. A nil operand contributes an empty shape; Calc ignores
// the side a copy op does not read.
func featBcast(op binop.Op, lhs, rhs *tensor.RawTensor) *bcast.Off {
	var lhsShape, rhsShape tensor.Shape
	if lhs != nil {
		lhsShape = lhs.Shape().FeatShape()
	}
	if rhs != nil {
		rhsShape = rhs.Shape().FeatShape()
	}
	return bcast.Calc(op, lhsShape, rhsShape)
}

func validateSpMM(op binop.Op, red binop.Reducer, bc *bcast.Off,
	numSrc, nnz, numDst int, indexType tensor.DataType,
	ufeat, efeat, out, argU, argE *tensor.RawTensor) {
	if red == binop.ReduceNone {
		panic(`spmm: reducer "none" is only valid for SDDMM`)
	}
	if op.UseLhs() {
		checkRows("spmm", "ufeat", ufeat, numSrc)
		checkFeatLen("spmm", "ufeat", ufeat, bc.LhsLen)
	}
	if op.UseRhs() {
		checkRows("spmm", "efeat", efeat, nnz)
		checkFeatLen("spmm", "efeat", efeat, bc.RhsLen)
	}
	checkRows("spmm", "out", out, numDst)
	checkFeatLen("spmm", "out", out, bc.OutLen)
	checkSameFloat("spmm", ufeat, efeat, out)
	if red.IsCmp() {
		if argU != nil {
			checkIndexArg("spmm", argU, indexType, out.NumElements())
		}
		if argE != nil {
			checkIndexArg("spmm", argE, indexType, out.NumElements())
		}
	}
}

func validateSDDMM(op binop.Op, bc *bcast.Off, numSrc, numDst, nnz int,
	lhs, rhs, out *tensor.RawTensor, lhsTarget, rhsTarget Target) {
	if !lhsTarget.Valid() || !rhsTarget.Valid() {
		panic(fmt.Sprintf("sddmm: invalid operand targets %d, %d", lhsTarget, rhsTarget))
	}
	targetRows := func(t Target) int {
		switch t {
		case TargetSrc:
			return numSrc
		case TargetDst:
			return numDst
		default:
			return nnz
		}
	}
	if op.UseLhs() {
		checkRows("sddmm", "lhs", lhs, targetRows(lhsTarget))
		checkFeatLen("sddmm", "lhs", lhs, bc.LhsLen)
	}
	if op.UseRhs() {
		checkRows("sddmm", "rhs", rhs, targetRows(rhsTarget))
		checkFeatLen("sddmm", "rhs", rhs, bc.RhsLen)
	}
	checkRows("sddmm", "out", out, nnz)
	checkFeatLen("sddmm", "out", out, bc.OutLen)
	checkSameFloat("sddmm", lhs, rhs, out)
}

func checkRows(where, name string, t *tensor.RawTensor, want int) {
	if t == nil {
		panic(fmt.Sprintf("%s: %s is nil", where, name))
	}
	if t.Len() != want {
		panic(fmt.Sprintf("%s: %s has %d rows, want %d", where, name, t.Len(), want))
	}
}

func checkFeatLen(where, name string, t *tensor.RawTensor, want int) {
	if got := t.Shape().FeatLen(); got != want {
		panic(fmt.Sprintf("%s: %s feature length %d, want %d", where, name, got, want))
	}
}

// checkSameFloat requires every non-nil operand to share one floating
// dtype. Mixing f16 with f32 operands is rejected rather than silently
// widened asymmetrically.
func checkSameFloat(where string, ts ...*tensor.RawTensor) {
	var first *tensor.RawTensor
	for _, t := range ts {
		if t == nil {
			continue
		}
		if !t.DType().IsFloat() {
			panic(fmt.Sprintf("%s: feature dtype %s, want floating", where, t.DType()))
		}
		if first == nil {
			first = t
			continue
		}
		if t.DType() != first.DType() {
			panic(fmt.Sprintf("%s: feature dtype mismatch: %s vs %s",
				where, first.DType(), t.DType()))
		}
	}
}

func checkIndexArg(where string, arg *tensor.RawTensor, indexType tensor.DataType, numElements int) {
	if arg.DType() != indexType {
		panic(fmt.Sprintf("%s: aux output dtype %s, want matrix index dtype %s",
			where, arg.DType(), indexType))
	}
	if arg.NumElements() != numElements {
		panic(fmt.Sprintf("%s: aux output has %d elements, want %d",
			where, arg.NumElements(), numElements))
	}
}

// runWidened executes f directly for f32/f64 operands. Float16 operands
// are widened to fresh f32 tensors first and the output narrowed back
// afterwards; the compute engines only ever see f32/f64.
func runWidened(a, b, out *tensor.RawTensor, f func(a, b, out *tensor.RawTensor)) {
	if out.DType() != tensor.Float16 {
		f(a, b, out)
		return
	}
	wide := tensor.MustNew(out.Shape(), tensor.Float32, out.Device())
	f(widen(a), widen(b), wide)
	out.CopyFromFloat32(wide)
}

func widen(t *tensor.RawTensor) *tensor.RawTensor {
	if t == nil || t.DType() != tensor.Float16 {
		return t
	}
	return t.ToFloat32()
}
