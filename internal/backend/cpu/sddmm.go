package cpu

import (
	"github.com/gravel-ml/gravel/internal/bcast"
	"github.com/gravel-ml/gravel/internal/binop"
	"github.com/gravel-ml/gravel/internal/parallel"
	"github.com/gravel-ml/gravel/internal/sparse"
	"github.com/gravel-ml/gravel/internal/tensor"
)

// SDDMMCSR computes one output row per stored entry:
// out[eid] = op(lhs[lhsTarget id], rhs[rhsTarget id]), no reduction.
// Each operand independently reads the source node, destination node or
// edge feature array as selected by its target. Edges never collide on
// an output row, so the edge loop is embarrassingly parallel.
func (b *Backend) SDDMMCSR(op binop.Op, bc *bcast.Off, csr *sparse.CSR,
	lhs, rhs, out *tensor.RawTensor, lhsTarget, rhsTarget binop.Target) {
	checkFloatDType("sddmm", out.DType())

	switch csr.IndexType() {
	case tensor.Int32:
		dispatchIndex[int32]{}.runSDDMMCSR(b, op, bc, csr, lhs, rhs, out, lhsTarget, rhsTarget)
	default:
		dispatchIndex[int64]{}.runSDDMMCSR(b, op, bc, csr, lhs, rhs, out, lhsTarget, rhsTarget)
	}
}

// SDDMMCOO is the coordinate-form variant of SDDMMCSR. Both forms agree
// on the logical edge set, so results match the CSR path entry for entry.
func (b *Backend) SDDMMCOO(op binop.Op, bc *bcast.Off, coo *sparse.COO,
	lhs, rhs, out *tensor.RawTensor, lhsTarget, rhsTarget binop.Target) {
	checkFloatDType("sddmm", out.DType())

	switch coo.IndexType() {
	case tensor.Int32:
		dispatchIndex[int32]{}.runSDDMMCOO(b, op, bc, coo, lhs, rhs, out, lhsTarget, rhsTarget)
	default:
		dispatchIndex[int64]{}.runSDDMMCOO(b, op, bc, coo, lhs, rhs, out, lhsTarget, rhsTarget)
	}
}

func (dispatchIndex[I]) runSDDMMCSR(b *Backend, op binop.Op, bc *bcast.Off, csr *sparse.CSR,
	lhs, rhs, out *tensor.RawTensor, lhsTarget, rhsTarget binop.Target) {
	indptr := indexSlice[I](csr.Indptr)
	indices := indexSlice[I](csr.Indices)
	eids := indexSlice[I](csr.Data)

	switch out.DType() {
	case tensor.Float32:
		sddmmCSR(b, op, bc, indptr, indices, eids,
			floatSlice[float32](lhs), floatSlice[float32](rhs), floatSlice[float32](out),
			lhsTarget, rhsTarget)
	default:
		sddmmCSR(b, op, bc, indptr, indices, eids,
			floatSlice[float64](lhs), floatSlice[float64](rhs), floatSlice[float64](out),
			lhsTarget, rhsTarget)
	}
}

func (dispatchIndex[I]) runSDDMMCOO(b *Backend, op binop.Op, bc *bcast.Off, coo *sparse.COO,
	lhs, rhs, out *tensor.RawTensor, lhsTarget, rhsTarget binop.Target) {
	row := indexSlice[I](coo.Row)
	col := indexSlice[I](coo.Col)
	eids := indexSlice[I](coo.Data)

	switch out.DType() {
	case tensor.Float32:
		sddmmCOO(b, op, bc, row, col, eids,
			floatSlice[float32](lhs), floatSlice[float32](rhs), floatSlice[float32](out),
			lhsTarget, rhsTarget)
	default:
		sddmmCOO(b, op, bc, row, col, eids,
			floatSlice[float64](lhs), floatSlice[float64](rhs), floatSlice[float64](out),
			lhsTarget, rhsTarget)
	}
}

// targetID selects the operand row id for one edge.
func targetID(t binop.Target, src, dst, eid int) int {
	switch t {
	case binop.TargetSrc:
		return src
	case binop.TargetDst:
		return dst
	default:
		return eid
	}
}

func sddmmCSR[I tensor.Index, D tensor.Float](b *Backend, op binop.Op, bc *bcast.Off,
	indptr, indices, eids []I, lhs, rhs, out []D, lhsTarget, rhsTarget binop.Target) {
	f := binop.Func[D](op)
	useL, useR := op.UseLhs(), op.UseRhs()
	numRows := len(indptr) - 1

	parallel.For(numRows, func(src int) {
		for p := indptr[src]; p < indptr[src+1]; p++ {
			dst := int(indices[p])
			eid := int(p)
			if eids != nil {
				eid = int(eids[p])
			}
			lid := targetID(lhsTarget, src, dst, eid)
			rid := targetID(rhsTarget, src, dst, eid)
			outRow := out[eid*bc.OutLen : (eid+1)*bc.OutLen]
			for i := range outRow {
				outRow[i] = edgeValue(f, bc, useL, useR, lhs, rhs, lid, rid, i)
			}
		}
	}, b.par)
}

func sddmmCOO[I tensor.Index, D tensor.Float](b *Backend, op binop.Op, bc *bcast.Off,
	row, col, eids []I, lhs, rhs, out []D, lhsTarget, rhsTarget binop.Target) {
	f := binop.Func[D](op)
	useL, useR := op.UseLhs(), op.UseRhs()

	parallel.For(len(row), func(p int) {
		src, dst := int(row[p]), int(col[p])
		eid := p
		if eids != nil {
			eid = int(eids[p])
		}
		lid := targetID(lhsTarget, src, dst, eid)
		rid := targetID(rhsTarget, src, dst, eid)
		outRow := out[eid*bc.OutLen : (eid+1)*bc.OutLen]
		for i := range outRow {
			outRow[i] = edgeValue(f, bc, useL, useR, lhs, rhs, lid, rid, i)
		}
	}, b.par)
}
