package cpu

import (
	"fmt"

	"github.com/gravel-ml/gravel/internal/binop"
	"github.com/gravel-ml/gravel/internal/parallel"
	"github.com/gravel-ml/gravel/internal/tensor"
)

// SegmentReduce folds consecutive feature rows into one output row per
// segment. offsets has length numSegments+1 and is monotonically
// non-decreasing; segment s covers feat rows [offsets[s], offsets[s+1]).
// For max/min, arg receives the global source row index of the selected
// element (-1 for empty segments); it may be nil to skip. Segments are
// independent, so the segment loop is parallel with no atomics.
func (b *Backend) SegmentReduce(red binop.Reducer, feat, offsets, out, arg *tensor.RawTensor) {
	checkFloatDType("segment_reduce", out.DType())

	switch offsets.DType() {
	case tensor.Int32:
		dispatchIndex[int32]{}.runSegmentReduce(b, red, feat, offsets, out, arg)
	default:
		dispatchIndex[int64]{}.runSegmentReduce(b, red, feat, offsets, out, arg)
	}
}

// ScatterAdd accumulates feat rows into out rows selected by idx:
// out[idx[i]] += feat[i]. Multiple input rows may land on the same
// output row, so accumulation goes through compare-and-swap atomics.
func (b *Backend) ScatterAdd(feat, idx, out *tensor.RawTensor) {
	checkFloatDType("scatter_add", out.DType())

	switch idx.DType() {
	case tensor.Int32:
		dispatchIndex[int32]{}.runScatterAdd(b, feat, idx, out)
	default:
		dispatchIndex[int64]{}.runScatterAdd(b, feat, idx, out)
	}
}

// BackwardSegmentCmp routes upstream gradient rows back to the rows an
// earlier max/min segment reduction selected: out[arg[i,j]][j] = feat[i,j].
// Entries with arg -1 (empty segments) are skipped.
func (b *Backend) BackwardSegmentCmp(feat, arg, out *tensor.RawTensor) {
	checkFloatDType("backward_segment_cmp", out.DType())

	switch arg.DType() {
	case tensor.Int32:
		dispatchIndex[int32]{}.runBackwardSegmentCmp(b, feat, arg, out)
	default:
		dispatchIndex[int64]{}.runBackwardSegmentCmp(b, feat, arg, out)
	}
}

func (dispatchIndex[I]) runSegmentReduce(b *Backend, red binop.Reducer, feat, offsets, out, arg *tensor.RawTensor) {
	switch out.DType() {
	case tensor.Float32:
		segmentReduce(b, red, floatSlice[float32](feat), indexSlice[I](offsets),
			floatSlice[float32](out), indexSlice[I](arg), feat.Shape().FeatLen())
	default:
		segmentReduce(b, red, floatSlice[float64](feat), indexSlice[I](offsets),
			floatSlice[float64](out), indexSlice[I](arg), feat.Shape().FeatLen())
	}
}

func (dispatchIndex[I]) runScatterAdd(b *Backend, feat, idx, out *tensor.RawTensor) {
	switch out.DType() {
	case tensor.Float32:
		scatterAdd(b, floatSlice[float32](feat), indexSlice[I](idx),
			floatSlice[float32](out), feat.Shape().FeatLen())
	default:
		scatterAdd(b, floatSlice[float64](feat), indexSlice[I](idx),
			floatSlice[float64](out), feat.Shape().FeatLen())
	}
}

func (dispatchIndex[I]) runBackwardSegmentCmp(b *Backend, feat, arg, out *tensor.RawTensor) {
	switch out.DType() {
	case tensor.Float32:
		backwardSegmentCmp(b, floatSlice[float32](feat), indexSlice[I](arg),
			floatSlice[float32](out), feat.Shape().FeatLen())
	default:
		backwardSegmentCmp(b, floatSlice[float64](feat), indexSlice[I](arg),
			floatSlice[float64](out), feat.Shape().FeatLen())
	}
}

func segmentReduce[I tensor.Index, D tensor.Float](b *Backend, red binop.Reducer,
	feat []D, offsets []I, out []D, arg []I, featLen int) {
	numSegments := len(offsets) - 1

	switch red {
	case binop.ReduceSum, binop.ReduceProd:
		combine := binop.Combine[D](red)
		identity := binop.Identity[D](red)
		parallel.For(numSegments, func(s int) {
			outRow := out[s*featLen : (s+1)*featLen]
			for i := range outRow {
				outRow[i] = identity
			}
			for r := offsets[s]; r < offsets[s+1]; r++ {
				featRow := feat[int(r)*featLen : (int(r)+1)*featLen]
				for i := range outRow {
					outRow[i] = combine(outRow[i], featRow[i])
				}
			}
		}, b.par)
	case binop.ReduceMax, binop.ReduceMin:
		better := binop.Better[D](red)
		identity := binop.Identity[D](red)
		parallel.For(numSegments, func(s int) {
			outRow := out[s*featLen : (s+1)*featLen]
			for i := range outRow {
				outRow[i] = identity
				if arg != nil {
					arg[s*featLen+i] = -1
				}
			}
			for r := offsets[s]; r < offsets[s+1]; r++ {
				featRow := feat[int(r)*featLen : (int(r)+1)*featLen]
				for i := range outRow {
					if better(outRow[i], featRow[i]) {
						outRow[i] = featRow[i]
						if arg != nil {
							arg[s*featLen+i] = r
						}
					}
				}
			}
		}, b.par)
	default:
		panic(fmt.Sprintf("segment_reduce: unsupported reducer %s", red))
	}
}

func scatterAdd[I tensor.Index, D tensor.Float](b *Backend, feat []D, idx []I, out []D, featLen int) {
	add := func(acc, v D) D { return acc + v }
	parallel.For(len(idx), func(r int) {
		dst := int(idx[r])
		featRow := feat[r*featLen : (r+1)*featLen]
		for i := range featRow {
			atomicCombine(&out[dst*featLen+i], featRow[i], add)
		}
	}, b.par)
}

func backwardSegmentCmp[I tensor.Index, D tensor.Float](b *Backend, feat []D, arg []I, out []D, featLen int) {
	numSegments := len(arg) / featLen
	parallel.For(numSegments, func(s int) {
		for i := 0; i < featLen; i++ {
			src := arg[s*featLen+i]
			if src < 0 {
				continue
			}
			out[int(src)*featLen+i] = feat[s*featLen+i]
		}
	}, b.par)
}
