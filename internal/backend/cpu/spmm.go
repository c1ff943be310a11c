package cpu

import (
	"fmt"

	"github.com/gravel-ml/gravel/internal/bcast"
	"github.com/gravel-ml/gravel/internal/binop"
	"github.com/gravel-ml/gravel/internal/parallel"
	"github.com/gravel-ml/gravel/internal/sparse"
	"github.com/gravel-ml/gravel/internal/tensor"
)

// SpMMCSR computes, for every destination column of csr, the reduction
// of op(ufeat[src], efeat[edge]) over its incoming edges.
//
// Strategy: the matrix is transposed once into incoming-edge-major form
// so each output row is accumulated sequentially by the goroutine that
// owns it — no atomics. Within a row, edges are visited in ascending
// storage order, so max/min tie-breaking is deterministic: the first
// extremal edge wins.
//
// ufeat may be nil for copy_rhs, efeat may be nil for copy_lhs. argU and
// argE receive the selected source node and edge id for max/min (either
// may be nil to skip).
func (b *Backend) SpMMCSR(op binop.Op, red binop.Reducer, bc *bcast.Off, csr *sparse.CSR,
	ufeat, efeat, out, argU, argE *tensor.RawTensor) {
	csc := sparse.CSRTranspose(csr)
	checkFloatDType("spmm", out.DType())

	switch csc.IndexType() {
	case tensor.Int32:
		dispatchIndex[int32]{}.runIncoming(b, op, red, bc, csc, ufeat, efeat, out, argU, argE)
	default:
		dispatchIndex[int64]{}.runIncoming(b, op, red, bc, csc, ufeat, efeat, out, argU, argE)
	}
}

// SpMMCOO is the scatter strategy: edges are processed in parallel and
// accumulated into shared output rows with compare-and-swap atomics
// (sum/prod/mean). max/min run a single sequential pass in ascending
// edge order so the recorded arg ids stay deterministic.
func (b *Backend) SpMMCOO(op binop.Op, red binop.Reducer, bc *bcast.Off, coo *sparse.COO,
	ufeat, efeat, out, argU, argE *tensor.RawTensor) {
	checkFloatDType("spmm", out.DType())

	switch coo.IndexType() {
	case tensor.Int32:
		dispatchIndex[int32]{}.runScatter(b, op, red, bc, coo, ufeat, efeat, out, argU, argE)
	default:
		dispatchIndex[int64]{}.runScatter(b, op, red, bc, coo, ufeat, efeat, out, argU, argE)
	}
}

// dispatchIndex carries the index type parameter through the
// dtype-dispatch switch; methods on it instantiate the generic kernels.
type dispatchIndex[I tensor.Index] struct{}

func (dispatchIndex[I]) runIncoming(b *Backend, op binop.Op, red binop.Reducer, bc *bcast.Off, csc *sparse.CSR,
	ufeat, efeat, out, argU, argE *tensor.RawTensor) {
	indptr := indexSlice[I](csc.Indptr)
	indices := indexSlice[I](csc.Indices)
	eids := indexSlice[I](csc.Data)

	switch out.DType() {
	case tensor.Float32:
		spmmIncoming(b, op, red, bc, indptr, indices, eids,
			floatSlice[float32](ufeat), floatSlice[float32](efeat), floatSlice[float32](out),
			indexSlice[I](argU), indexSlice[I](argE))
	default:
		spmmIncoming(b, op, red, bc, indptr, indices, eids,
			floatSlice[float64](ufeat), floatSlice[float64](efeat), floatSlice[float64](out),
			indexSlice[I](argU), indexSlice[I](argE))
	}
}

func (dispatchIndex[I]) runScatter(b *Backend, op binop.Op, red binop.Reducer, bc *bcast.Off, coo *sparse.COO,
	ufeat, efeat, out, argU, argE *tensor.RawTensor) {
	row := indexSlice[I](coo.Row)
	col := indexSlice[I](coo.Col)
	eids := indexSlice[I](coo.Data)

	switch out.DType() {
	case tensor.Float32:
		spmmScatter(b, op, red, bc, row, col, eids,
			floatSlice[float32](ufeat), floatSlice[float32](efeat), floatSlice[float32](out),
			indexSlice[I](argU), indexSlice[I](argE))
	default:
		spmmScatter(b, op, red, bc, row, col, eids,
			floatSlice[float64](ufeat), floatSlice[float64](efeat), floatSlice[float64](out),
			indexSlice[I](argU), indexSlice[I](argE))
	}
}

// edgeValue reads one broadcast-resolved operand pair and applies f.
func edgeValue[D tensor.Float](f func(l, r D) D, bc *bcast.Off, useU, useE bool,
	u, e []D, src, eid, i int) D {
	var lv, rv D
	if useU {
		off := i
		if bc.UseBcast {
			off = bc.LhsOffset[i]
		}
		lv = u[src*bc.LhsLen+off]
	}
	if useE {
		off := i
		if bc.UseBcast {
			off = bc.RhsOffset[i]
		}
		rv = e[eid*bc.RhsLen+off]
	}
	return f(lv, rv)
}

func spmmIncoming[I tensor.Index, D tensor.Float](b *Backend, op binop.Op, red binop.Reducer,
	bc *bcast.Off, indptr, indices, eids []I, u, e, out []D, argU, argE []I) {
	switch red {
	case binop.ReduceSum, binop.ReduceProd:
		spmmAccRows(b, op, red, bc, indptr, indices, eids, u, e, out)
	case binop.ReduceMean:
		spmmAccRows(b, op, binop.ReduceSum, bc, indptr, indices, eids, u, e, out)
		divideByDegree(b, bc, indptr, out)
	case binop.ReduceMax, binop.ReduceMin:
		spmmCmpRows(b, op, red, bc, indptr, indices, eids, u, e, out, argU, argE)
	default:
		panic(fmt.Sprintf("spmm: unsupported reducer %s", red))
	}
}

func spmmAccRows[I tensor.Index, D tensor.Float](b *Backend, op binop.Op, red binop.Reducer,
	bc *bcast.Off, indptr, indices, eids []I, u, e, out []D) {
	f := binop.Func[D](op)
	combine := binop.Combine[D](red)
	identity := binop.Identity[D](red)
	useU, useE := op.UseLhs(), op.UseRhs()
	numRows := len(indptr) - 1

	parallel.For(numRows, func(dst int) {
		outRow := out[dst*bc.OutLen : (dst+1)*bc.OutLen]
		for i := range outRow {
			outRow[i] = identity
		}
		for p := indptr[dst]; p < indptr[dst+1]; p++ {
			src, eid := int(indices[p]), int(eids[p])
			for i := 0; i < bc.OutLen; i++ {
				outRow[i] = combine(outRow[i], edgeValue(f, bc, useU, useE, u, e, src, eid, i))
			}
		}
	}, b.par)
}

func spmmCmpRows[I tensor.Index, D tensor.Float](b *Backend, op binop.Op, red binop.Reducer,
	bc *bcast.Off, indptr, indices, eids []I, u, e, out []D, argU, argE []I) {
	f := binop.Func[D](op)
	better := binop.Better[D](red)
	identity := binop.Identity[D](red)
	useU, useE := op.UseLhs(), op.UseRhs()
	numRows := len(indptr) - 1

	parallel.For(numRows, func(dst int) {
		outRow := out[dst*bc.OutLen : (dst+1)*bc.OutLen]
		for i := range outRow {
			outRow[i] = identity
			if argU != nil {
				argU[dst*bc.OutLen+i] = -1
			}
			if argE != nil {
				argE[dst*bc.OutLen+i] = -1
			}
		}
		for p := indptr[dst]; p < indptr[dst+1]; p++ {
			src, eid := int(indices[p]), int(eids[p])
			for i := 0; i < bc.OutLen; i++ {
				v := edgeValue(f, bc, useU, useE, u, e, src, eid, i)
				if better(outRow[i], v) {
					outRow[i] = v
					if argU != nil {
						argU[dst*bc.OutLen+i] = I(src)
					}
					if argE != nil {
						argE[dst*bc.OutLen+i] = I(eid)
					}
				}
			}
		}
	}, b.par)
}

func divideByDegree[I tensor.Index, D tensor.Float](b *Backend, bc *bcast.Off, indptr []I, out []D) {
	numRows := len(indptr) - 1
	parallel.For(numRows, func(dst int) {
		deg := indptr[dst+1] - indptr[dst]
		if deg == 0 {
			return
		}
		outRow := out[dst*bc.OutLen : (dst+1)*bc.OutLen]
		for i := range outRow {
			outRow[i] /= D(deg)
		}
	}, b.par)
}

func spmmScatter[I tensor.Index, D tensor.Float](b *Backend, op binop.Op, red binop.Reducer,
	bc *bcast.Off, row, col, eids []I, u, e, out []D, argU, argE []I) {
	switch red {
	case binop.ReduceSum, binop.ReduceProd:
		spmmScatterAcc(b, op, red, bc, row, col, eids, u, e, out)
	case binop.ReduceMean:
		spmmScatterAcc(b, op, binop.ReduceSum, bc, row, col, eids, u, e, out)
		divideByInDegree(b, bc, col, out)
	case binop.ReduceMax, binop.ReduceMin:
		spmmScatterCmp(op, red, bc, row, col, eids, u, e, out, argU, argE)
	default:
		panic(fmt.Sprintf("spmm: unsupported reducer %s", red))
	}
}

func spmmScatterAcc[I tensor.Index, D tensor.Float](b *Backend, op binop.Op, red binop.Reducer,
	bc *bcast.Off, row, col, eids []I, u, e, out []D) {
	f := binop.Func[D](op)
	combine := binop.Combine[D](red)
	identity := binop.Identity[D](red)
	useU, useE := op.UseLhs(), op.UseRhs()

	for i := range out {
		out[i] = identity
	}
	parallel.For(len(row), func(p int) {
		src, dst := int(row[p]), int(col[p])
		eid := p
		if eids != nil {
			eid = int(eids[p])
		}
		for i := 0; i < bc.OutLen; i++ {
			v := edgeValue(f, bc, useU, useE, u, e, src, eid, i)
			atomicCombine(&out[dst*bc.OutLen+i], v, combine)
		}
	}, b.par)
}

// spmmScatterCmp runs sequentially: parallel extremum scatter would need
// a double-width CAS to keep value and arg id consistent.
func spmmScatterCmp[I tensor.Index, D tensor.Float](op binop.Op, red binop.Reducer,
	bc *bcast.Off, row, col, eids []I, u, e, out []D, argU, argE []I) {
	f := binop.Func[D](op)
	better := binop.Better[D](red)
	identity := binop.Identity[D](red)
	useU, useE := op.UseLhs(), op.UseRhs()

	for i := range out {
		out[i] = identity
	}
	if argU != nil {
		for i := range argU {
			argU[i] = -1
		}
	}
	if argE != nil {
		for i := range argE {
			argE[i] = -1
		}
	}
	for p := range row {
		src, dst := int(row[p]), int(col[p])
		eid := p
		if eids != nil {
			eid = int(eids[p])
		}
		for i := 0; i < bc.OutLen; i++ {
			v := edgeValue(f, bc, useU, useE, u, e, src, eid, i)
			pos := dst*bc.OutLen + i
			if better(out[pos], v) {
				out[pos] = v
				if argU != nil {
					argU[pos] = I(src)
				}
				if argE != nil {
					argE[pos] = I(eid)
				}
			}
		}
	}
}

func divideByInDegree[I tensor.Index, D tensor.Float](b *Backend, bc *bcast.Off, col []I, out []D) {
	numRows := len(out) / bc.OutLen
	degree := make([]int64, numRows)
	for _, dst := range col {
		degree[dst]++
	}
	parallel.For(numRows, func(dst int) {
		if degree[dst] == 0 {
			return
		}
		outRow := out[dst*bc.OutLen : (dst+1)*bc.OutLen]
		for i := range outRow {
			outRow[i] /= D(degree[dst])
		}
	}, b.par)
}
