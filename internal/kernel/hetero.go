package kernel

import (
	"fmt"

	"github.com/gravel-ml/gravel/internal/binop"
	"github.com/gravel-ml/gravel/internal/sparse"
	"github.com/gravel-ml/gravel/internal/tensor"
)

// Rel binds one relation of a heterogeneous graph to its feature slots:
// SrcType and DstType index the per-node-type tensor lists, EType the
// per-relation edge tensor list.
type Rel struct {
	SrcType int
	DstType int
	EType   int
}

// SpMMCSRHetero runs SpMM once per relation and sums the partial results
// into the shared per-destination-type outputs. Only the sum reducer is
// supported: destinations reached through several relations accumulate,
// and max/min cannot merge per-relation argmax ids meaningfully.
//
// csrs[r] is relation r's matrix; ufeats is indexed by source node type,
// efeats by relation, outs by destination node type. outs are cleared
// before accumulation.
func SpMMCSRHetero(op, reduce string, csrs []*sparse.CSR, rels []Rel,
	ufeats, efeats, outs []*tensor.RawTensor) {
	opv, red := parseOpReduce("spmm", op, reduce)
	if red != binop.ReduceSum {
		panic(fmt.Sprintf("spmm: unsupported reducer for heterogeneous graphs: %q", reduce))
	}
	if len(csrs) != len(rels) {
		panic(fmt.Sprintf("spmm: %d matrices for %d relations", len(csrs), len(rels)))
	}

	for _, out := range outs {
		out.Zero()
	}
	for r, csr := range csrs {
		ufeat := featSlot(ufeats, rels[r].SrcType)
		efeat := featSlot(efeats, rels[r].EType)
		out := outs[rels[r].DstType]

		bc := featBcast(opv, ufeat, efeat)
		validateSpMM(opv, red, bc, csr.NumRows, csr.NNZ(), csr.NumCols, csr.IndexType(),
			ufeat, efeat, out, nil, nil)

		partial := tensor.MustNew(out.Shape(), out.DType(), out.Device())
		runWidened(ufeat, efeat, partial, func(u, e, o *tensor.RawTensor) {
			backend.SpMMCSR(opv, red, bc, csr, u, e, o, nil, nil)
		})
		addInto(out, partial)
	}
}

// SDDMMCSRHetero runs SDDMM per relation. Edge outputs never cross
// relations, so outs is indexed by relation and there is no merge step.
func SDDMMCSRHetero(op string, csrs []*sparse.CSR, rels []Rel,
	lhs, rhs, outs []*tensor.RawTensor, lhsTarget, rhsTarget Target) {
	if len(csrs) != len(rels) {
		panic(fmt.Sprintf("sddmm: %d matrices for %d relations", len(csrs), len(rels)))
	}
	for r, csr := range csrs {
		SDDMMCSR(op, csr,
			operandSlot(lhs, rels[r], lhsTarget),
			operandSlot(rhs, rels[r], rhsTarget),
			outs[rels[r].EType], lhsTarget, rhsTarget)
	}
}

// SDDMMCOOHetero is SDDMMCSRHetero over coordinate-form relations.
func SDDMMCOOHetero(op string, coos []*sparse.COO, rels []Rel,
	lhs, rhs, outs []*tensor.RawTensor, lhsTarget, rhsTarget Target) {
	if len(coos) != len(rels) {
		panic(fmt.Sprintf("sddmm: %d matrices for %d relations", len(coos), len(rels)))
	}
	for r, coo := range coos {
		SDDMMCOO(op, coo,
			operandSlot(lhs, rels[r], lhsTarget),
			operandSlot(rhs, rels[r], rhsTarget),
			outs[rels[r].EType], lhsTarget, rhsTarget)
	}
}

// operandSlot picks the feature tensor an SDDMM operand reads for one
// relation: per-node-type for src/dst targets, per-relation for edge.
func operandSlot(feats []*tensor.RawTensor, rel Rel, t Target) *tensor.RawTensor {
	switch t {
	case TargetSrc:
		return featSlot(feats, rel.SrcType)
	case TargetDst:
		return featSlot(feats, rel.DstType)
	default:
		return featSlot(feats, rel.EType)
	}
}

func featSlot(feats []*tensor.RawTensor, slot int) *tensor.RawTensor {
	if feats == nil {
		return nil
	}
	if slot < 0 || slot >= len(feats) {
		panic(fmt.Sprintf("kernel: feature slot %d out of range [0, %d)", slot, len(feats)))
	}
	return feats[slot]
}

// addInto accumulates src into dst elementwise. Both tensors share shape
// and dtype (validated upstream).
func addInto(dst, src *tensor.RawTensor) {
	switch dst.DType() {
	case tensor.Float32:
		d, s := dst.AsFloat32(), src.AsFloat32()
		for i := range d {
			d[i] += s[i]
		}
	case tensor.Float64:
		d, s := dst.AsFloat64(), src.AsFloat64()
		for i := range d {
			d[i] += s[i]
		}
	case tensor.Float16:
		wide := dst.ToFloat32()
		s := src.ToFloat32().AsFloat32()
		d := wide.AsFloat32()
		for i := range d {
			d[i] += s[i]
		}
		dst.CopyFromFloat32(wide)
	default:
		panic(fmt.Sprintf("kernel: cannot accumulate dtype %s", dst.DType()))
	}
}
