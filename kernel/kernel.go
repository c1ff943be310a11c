// Copyright 2025 The Gravel Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package kernel exposes the generalized sparse kernels: SpMM (sparse
// matrix, dense matrix product with operator and reducer), SDDMM
// (sampled dense-dense product producing per-edge values), segment
// reduction and index scatter.
//
// Operators and reducers are selected by name. Operators: "add", "sub",
// "mul", "div", "copy_lhs", "copy_rhs" (with "copy_u"/"copy_e" aliases).
// Reducers: "sum", "max", "min", "mean", "prod". Unknown names panic;
// kernel configuration is decided by the caller, not by runtime input.
//
// Feature tensors may broadcast against each other in their trailing
// dimensions, NumPy style. Outputs and arg arrays are caller-allocated.
package kernel

import (
	internalkernel "github.com/gravel-ml/gravel/internal/kernel"
	"github.com/gravel-ml/gravel/sparse"
	"github.com/gravel-ml/gravel/tensor"
)

// Target selects which array an SDDMM operand reads: source node,
// destination node or edge features.
type Target = internalkernel.Target

// Operand targets.
const (
	TargetSrc  = internalkernel.TargetSrc
	TargetDst  = internalkernel.TargetDst
	TargetEdge = internalkernel.TargetEdge
)

// Rel names the node-type slots and edge-type slot of one relation in a
// heterogeneous graph.
type Rel = internalkernel.Rel

// SpMMCSR computes out[d] = reduce over incoming edges (s, d, e) of
// op(ufeat[s], efeat[e]). The matrix is source-major: rows index source
// nodes, columns index destinations, so out has csr.NumCols rows. For
// max/min reducers, argU and argE receive the source and edge id of the
// winning edge per output element, -1 where no edge arrived.
func SpMMCSR(op, reduce string, csr *sparse.CSR, ufeat, efeat, out, argU, argE *tensor.RawTensor) {
	internalkernel.SpMMCSR(op, reduce, csr, ufeat, efeat, out, argU, argE)
}

// SpMMCOO is SpMMCSR over a COO matrix, using edge-parallel atomic
// scatter for accumulating reducers.
func SpMMCOO(op, reduce string, coo *sparse.COO, ufeat, efeat, out, argU, argE *tensor.RawTensor) {
	internalkernel.SpMMCOO(op, reduce, coo, ufeat, efeat, out, argU, argE)
}

// SDDMMCSR computes one output row per edge: out[e] = op(lhs[·], rhs[·]),
// where each operand reads the array selected by its target. Output rows
// are indexed by edge id.
func SDDMMCSR(op string, csr *sparse.CSR, lhs, rhs, out *tensor.RawTensor, lhsTarget, rhsTarget Target) {
	internalkernel.SDDMMCSR(op, csr, lhs, rhs, out, lhsTarget, rhsTarget)
}

// SDDMMCOO is SDDMMCSR over a COO matrix.
func SDDMMCOO(op string, coo *sparse.COO, lhs, rhs, out *tensor.RawTensor, lhsTarget, rhsTarget Target) {
	internalkernel.SDDMMCOO(op, coo, lhs, rhs, out, lhsTarget, rhsTarget)
}

// SegmentReduce folds consecutive feature rows into one output row per
// segment. offsets has out.Len()+1 entries; segment s covers feat rows
// [offsets[s], offsets[s+1]). Reducers: "sum", "prod", "max", "min". For
// max and min, arg receives the global feat row of each winner, -1 for
// empty segments.
func SegmentReduce(reduce string, feat, offsets, out, arg *tensor.RawTensor) {
	internalkernel.SegmentReduce(reduce, feat, offsets, out, arg)
}

// ScatterAdd accumulates feat row r into out row idx[r]. The output is
// not cleared first, so existing contents participate in the sum.
func ScatterAdd(feat, idx, out *tensor.RawTensor) {
	internalkernel.ScatterAdd(feat, idx, out)
}

// BackwardSegmentCmp routes gradient rows back to the winners recorded
// by a max/min segment reduction: out[arg[s, i], i] += feat[s, i],
// skipping -1 entries.
func BackwardSegmentCmp(feat, arg, out *tensor.RawTensor) {
	internalkernel.BackwardSegmentCmp(feat, arg, out)
}

// SpMMCSRHetero runs SpMM per relation of a heterogeneous graph,
// accumulating into per-node-type outputs. Feature and output slices
// are indexed by the type slots in rels. Only the "sum" reducer is
// supported.
func SpMMCSRHetero(op, reduce string, csrs []*sparse.CSR, rels []Rel, ufeats, efeats, outs []*tensor.RawTensor) {
	internalkernel.SpMMCSRHetero(op, reduce, csrs, rels, ufeats, efeats, outs)
}

// SDDMMCSRHetero runs SDDMM per relation, writing each relation's edge
// values to the output slot of its edge type.
func SDDMMCSRHetero(op string, csrs []*sparse.CSR, rels []Rel, lhss, rhss, outs []*tensor.RawTensor, lhsTarget, rhsTarget Target) {
	internalkernel.SDDMMCSRHetero(op, csrs, rels, lhss, rhss, outs, lhsTarget, rhsTarget)
}

// SDDMMCOOHetero is SDDMMCSRHetero over COO matrices.
func SDDMMCOOHetero(op string, coos []*sparse.COO, rels []Rel, lhss, rhss, outs []*tensor.RawTensor, lhsTarget, rhsTarget Target) {
	internalkernel.SDDMMCOOHetero(op, coos, rels, lhss, rhss, outs, lhsTarget, rhsTarget)
}
