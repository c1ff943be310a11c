//go:build windows

package webgpu

import (
	"encoding/binary"
	"fmt"
	"math"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/gravel-ml/gravel/internal/binop"
	"github.com/gravel-ml/gravel/internal/sparse"
	"github.com/gravel-ml/gravel/internal/tensor"
)

// compileShader compiles WGSL into a ShaderModule, cached by name.
func (b *Backend) compileShader(name, code string) *wgpu.ShaderModule {
	b.mu.RLock()
	if shader, exists := b.shaders[name]; exists {
		b.mu.RUnlock()
		return shader
	}
	b.mu.RUnlock()

	shader := b.device.CreateShaderModuleWGSL(code)

	b.mu.Lock()
	b.shaders[name] = shader
	b.mu.Unlock()
	return shader
}

// getOrCreatePipeline returns a cached ComputePipeline or creates one
// with an auto layout.
func (b *Backend) getOrCreatePipeline(name string, shader *wgpu.ShaderModule) *wgpu.ComputePipeline {
	b.mu.RLock()
	if pipeline, exists := b.pipelines[name]; exists {
		b.mu.RUnlock()
		return pipeline
	}
	b.mu.RUnlock()

	pipeline := b.device.CreateComputePipelineSimple(nil, shader, "main")

	b.mu.Lock()
	b.pipelines[name] = pipeline
	b.mu.Unlock()
	return pipeline
}

// createBuffer creates a GPU buffer and uploads the given bytes.
// Zero-length uploads get a 4-byte placeholder, since empty bindings
// are invalid.
func (b *Backend) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	if len(data) == 0 {
		data = make([]byte, 4)
	}
	size := uint64(len(data))
	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	mapped := unsafe.Slice((*byte)(buffer.GetMappedRange(0, size)), size)
	copy(mapped, data)
	buffer.Unmap()
	return buffer
}

// createUniformBuffer uploads parameter bytes padded to the 16-byte
// alignment uniform buffers require.
func (b *Backend) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := (uint64(len(data)) + 15) &^ 15
	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	mapped := unsafe.Slice((*byte)(buffer.GetMappedRange(0, size)), size)
	copy(mapped, data)
	buffer.Unmap()
	return buffer
}

// readBuffer copies a storage buffer into a pooled staging buffer and
// maps it for reading.
func (b *Backend) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	const stagingUsage = wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst
	staging := b.bufferPool.Acquire(size, stagingUsage)
	defer b.bufferPool.Release(staging, size, stagingUsage)

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	b.queue.Submit(encoder.Finish(nil))

	if err := staging.MapAsync(b.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}
	mapped := unsafe.Slice((*byte)(staging.GetMappedRange(0, size)), size)
	result := make([]byte, size)
	copy(result, mapped)
	staging.Unmap()
	return result, nil
}

type binding struct {
	buf  *wgpu.Buffer
	size uint64
}

// dispatch runs one compute pass of the named shader over threads
// invocations, bound in binding-index order.
func (b *Backend) dispatch(name, code string, binds []binding, threads int) {
	shader := b.compileShader(name, code)
	pipeline := b.getOrCreatePipeline(name, shader)

	layout := pipeline.GetBindGroupLayout(0)
	entries := make([]wgpu.BindGroupEntry, len(binds))
	for i, bd := range binds {
		entries[i] = wgpu.BufferBindingEntry(uint32(i), bd.buf, 0, bd.size)
	}
	bindGroup := b.device.CreateBindGroupSimple(layout, entries)
	defer bindGroup.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	pass := encoder.BeginComputePass(nil)
	pass.SetPipeline(pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(uint32((threads+workgroupSize-1)/workgroupSize), 1, 1)
	pass.End()
	b.queue.Submit(encoder.Finish(nil))
}

// SpMMCOOSum reduces op(ufeat[src], efeat[edge]) with sum over each
// destination's incoming edges, entirely on GPU. Float32 features with
// matching feature shapes only; broadcasting stays on the CPU path.
func (b *Backend) SpMMCOOSum(op binop.Op, coo *sparse.COO, ufeat, efeat, out *tensor.RawTensor) error {
	featLen := out.Shape().FeatLen()
	if err := checkF32("spmm", out, featLen, coo.NumCols); err != nil {
		return err
	}
	if op.UseLhs() {
		if err := checkF32("spmm", ufeat, featLen, coo.NumRows); err != nil {
			return err
		}
	}
	if op.UseRhs() {
		if err := checkF32("spmm", efeat, featLen, coo.NNZ()); err != nil {
			return err
		}
	}

	rowBytes, err := indexToU32(coo.Row)
	if err != nil {
		return err
	}
	colBytes, err := indexToU32(coo.Col)
	if err != nil {
		return err
	}
	eidBytes, err := edgeIDsU32(coo.Data, coo.NNZ())
	if err != nil {
		return err
	}

	bufRow := b.createBuffer(rowBytes, wgpu.BufferUsageStorage)
	defer bufRow.Release()
	bufCol := b.createBuffer(colBytes, wgpu.BufferUsageStorage)
	defer bufCol.Release()
	bufEid := b.createBuffer(eidBytes, wgpu.BufferUsageStorage)
	defer bufEid.Release()
	bufU := b.createBuffer(featBytes(ufeat, op.UseLhs()), wgpu.BufferUsageStorage)
	defer bufU.Release()
	bufE := b.createBuffer(featBytes(efeat, op.UseRhs()), wgpu.BufferUsageStorage)
	defer bufE.Release()

	// The accumulator starts from zero regardless of out's contents,
	// matching the CPU path's identity prefill.
	outSize := uint64(out.ByteSize())
	bufOut := b.createBuffer(make([]byte, outSize),
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst)
	defer bufOut.Release()

	params := make([]byte, 16)
	binary.LittleEndian.PutUint32(params[0:4], uint32(coo.NNZ()))
	binary.LittleEndian.PutUint32(params[4:8], uint32(featLen))
	binary.LittleEndian.PutUint32(params[8:12], opCode(op))
	bufParams := b.createUniformBuffer(params)
	defer bufParams.Release()

	b.dispatch("spmm_coo_sum", spmmCOOSumShader, []binding{
		{bufRow, uint64(len(rowBytes))},
		{bufCol, uint64(len(colBytes))},
		{bufEid, uint64(len(eidBytes))},
		{bufU, bufferBindSize(ufeat, op.UseLhs())},
		{bufE, bufferBindSize(efeat, op.UseRhs())},
		{bufOut, outSize},
		{bufParams, 16},
	}, coo.NNZ()*featLen)

	return b.readInto(bufOut, out)
}

// SDDMMCOO computes op(lhs[·], rhs[·]) per edge on GPU, one output row
// per edge id. Operand targets: 0 = src, 1 = dst, 2 = edge.
func (b *Backend) SDDMMCOO(op binop.Op, coo *sparse.COO, lhs, rhs, out *tensor.RawTensor,
	lhsTarget, rhsTarget binop.Target) error {
	featLen := out.Shape().FeatLen()
	if err := checkF32("sddmm", out, featLen, coo.NNZ()); err != nil {
		return err
	}
	targetRows := func(t binop.Target) int {
		switch t {
		case binop.TargetSrc:
			return coo.NumRows
		case binop.TargetDst:
			return coo.NumCols
		default:
			return coo.NNZ()
		}
	}
	if op.UseLhs() {
		if err := checkF32("sddmm", lhs, featLen, targetRows(lhsTarget)); err != nil {
			return err
		}
	}
	if op.UseRhs() {
		if err := checkF32("sddmm", rhs, featLen, targetRows(rhsTarget)); err != nil {
			return err
		}
	}

	rowBytes, err := indexToU32(coo.Row)
	if err != nil {
		return err
	}
	colBytes, err := indexToU32(coo.Col)
	if err != nil {
		return err
	}
	eidBytes, err := edgeIDsU32(coo.Data, coo.NNZ())
	if err != nil {
		return err
	}

	bufRow := b.createBuffer(rowBytes, wgpu.BufferUsageStorage)
	defer bufRow.Release()
	bufCol := b.createBuffer(colBytes, wgpu.BufferUsageStorage)
	defer bufCol.Release()
	bufEid := b.createBuffer(eidBytes, wgpu.BufferUsageStorage)
	defer bufEid.Release()
	bufLhs := b.createBuffer(featBytes(lhs, op.UseLhs()), wgpu.BufferUsageStorage)
	defer bufLhs.Release()
	bufRhs := b.createBuffer(featBytes(rhs, op.UseRhs()), wgpu.BufferUsageStorage)
	defer bufRhs.Release()

	outSize := uint64(out.ByteSize())
	bufOut := b.createBuffer(make([]byte, outSize),
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst)
	defer bufOut.Release()

	params := make([]byte, 20)
	binary.LittleEndian.PutUint32(params[0:4], uint32(coo.NNZ()))
	binary.LittleEndian.PutUint32(params[4:8], uint32(featLen))
	binary.LittleEndian.PutUint32(params[8:12], opCode(op))
	binary.LittleEndian.PutUint32(params[12:16], uint32(lhsTarget))
	binary.LittleEndian.PutUint32(params[16:20], uint32(rhsTarget))
	bufParams := b.createUniformBuffer(params)
	defer bufParams.Release()

	b.dispatch("sddmm_coo", sddmmCOOShader, []binding{
		{bufRow, uint64(len(rowBytes))},
		{bufCol, uint64(len(colBytes))},
		{bufEid, uint64(len(eidBytes))},
		{bufLhs, bufferBindSize(lhs, op.UseLhs())},
		{bufRhs, bufferBindSize(rhs, op.UseRhs())},
		{bufOut, outSize},
		{bufParams, 32},
	}, coo.NNZ()*featLen)

	return b.readInto(bufOut, out)
}

// SegmentSum folds consecutive feat rows into one output row per
// segment on GPU.
func (b *Backend) SegmentSum(feat, offsets, out *tensor.RawTensor) error {
	featLen := feat.Shape().FeatLen()
	numSegments := out.Len()
	if err := checkF32("segment_sum", out, featLen, numSegments); err != nil {
		return err
	}
	if offsets.Len() != numSegments+1 {
		return fmt.Errorf("webgpu: segment_sum: offsets length %d, want %d", offsets.Len(), numSegments+1)
	}

	offBytes, err := indexToU32(offsets)
	if err != nil {
		return err
	}
	bufFeat := b.createBuffer(feat.Data(), wgpu.BufferUsageStorage)
	defer bufFeat.Release()
	bufOff := b.createBuffer(offBytes, wgpu.BufferUsageStorage)
	defer bufOff.Release()

	outSize := uint64(out.ByteSize())
	bufOut := b.createBuffer(make([]byte, outSize),
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst)
	defer bufOut.Release()

	params := make([]byte, 8)
	binary.LittleEndian.PutUint32(params[0:4], uint32(numSegments))
	binary.LittleEndian.PutUint32(params[4:8], uint32(featLen))
	bufParams := b.createUniformBuffer(params)
	defer bufParams.Release()

	b.dispatch("segment_sum", segmentSumShader, []binding{
		{bufFeat, uint64(feat.ByteSize())},
		{bufOff, uint64(len(offBytes))},
		{bufOut, outSize},
		{bufParams, 16},
	}, numSegments*featLen)

	return b.readInto(bufOut, out)
}

// ScatterAdd accumulates feat rows into out rows selected by idx on
// GPU. The accumulator is seeded from out's current contents.
func (b *Backend) ScatterAdd(feat, idx, out *tensor.RawTensor) error {
	featLen := feat.Shape().FeatLen()
	if err := checkF32("scatter_add", out, featLen, out.Len()); err != nil {
		return err
	}
	if idx.Len() != feat.Len() {
		return fmt.Errorf("webgpu: scatter_add: idx has %d entries, feat has %d rows",
			idx.Len(), feat.Len())
	}

	idxBytes, err := indexToU32(idx)
	if err != nil {
		return err
	}
	bufFeat := b.createBuffer(feat.Data(), wgpu.BufferUsageStorage)
	defer bufFeat.Release()
	bufIdx := b.createBuffer(idxBytes, wgpu.BufferUsageStorage)
	defer bufIdx.Release()

	outSize := uint64(out.ByteSize())
	bufOut := b.createBuffer(out.Data(),
		wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc|wgpu.BufferUsageCopyDst)
	defer bufOut.Release()

	params := make([]byte, 8)
	binary.LittleEndian.PutUint32(params[0:4], uint32(feat.Len()))
	binary.LittleEndian.PutUint32(params[4:8], uint32(featLen))
	bufParams := b.createUniformBuffer(params)
	defer bufParams.Release()

	b.dispatch("scatter_add", scatterAddShader, []binding{
		{bufFeat, uint64(feat.ByteSize())},
		{bufIdx, uint64(len(idxBytes))},
		{bufOut, outSize},
		{bufParams, 16},
	}, feat.Len()*featLen)

	return b.readInto(bufOut, out)
}

// readInto reads a result buffer back into the destination tensor.
func (b *Backend) readInto(buf *wgpu.Buffer, out *tensor.RawTensor) error {
	data, err := b.readBuffer(buf, uint64(out.ByteSize()))
	if err != nil {
		return err
	}
	copy(out.Data(), data)
	return nil
}

func checkF32(where string, t *tensor.RawTensor, featLen, rows int) error {
	if t == nil {
		return fmt.Errorf("webgpu: %s: missing operand", where)
	}
	if t.DType() != tensor.Float32 {
		return fmt.Errorf("webgpu: %s: only float32 is supported, got %s", where, t.DType())
	}
	if t.Len() != rows {
		return fmt.Errorf("webgpu: %s: operand has %d rows, want %d", where, t.Len(), rows)
	}
	if t.Shape().FeatLen() != featLen {
		return fmt.Errorf("webgpu: %s: feature length %d, want %d (no broadcasting on GPU)",
			where, t.Shape().FeatLen(), featLen)
	}
	return nil
}

// indexToU32 re-encodes an index tensor as little-endian u32, since
// WGSL has no 64-bit integers.
func indexToU32(t *tensor.RawTensor) ([]byte, error) {
	n := t.Len()
	out := make([]byte, 4*n)
	switch t.DType() {
	case tensor.Int32:
		for i, v := range t.AsInt32() {
			if v < 0 {
				return nil, fmt.Errorf("webgpu: negative index %d", v)
			}
			binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
		}
	case tensor.Int64:
		for i, v := range t.AsInt64() {
			if v < 0 || v > math.MaxUint32 {
				return nil, fmt.Errorf("webgpu: index %d not representable as u32", v)
			}
			binary.LittleEndian.PutUint32(out[i*4:], uint32(v))
		}
	default:
		return nil, fmt.Errorf("webgpu: index dtype %s, want int32 or int64", t.DType())
	}
	return out, nil
}

// edgeIDsU32 encodes the edge-id array, materializing the identity
// mapping when absent.
func edgeIDsU32(data *tensor.RawTensor, nnz int) ([]byte, error) {
	if data != nil {
		return indexToU32(data)
	}
	out := make([]byte, 4*nnz)
	for i := 0; i < nnz; i++ {
		binary.LittleEndian.PutUint32(out[i*4:], uint32(i))
	}
	return out, nil
}

// featBytes returns the upload bytes for a feature operand, or nil for
// a short-circuited one (createBuffer substitutes a placeholder).
func featBytes(t *tensor.RawTensor, used bool) []byte {
	if !used || t == nil {
		return nil
	}
	return t.Data()
}

func bufferBindSize(t *tensor.RawTensor, used bool) uint64 {
	if !used || t == nil {
		return 4
	}
	return uint64(t.ByteSize())
}

// opCode maps an operator to the code the WGSL op switch expects.
func opCode(op binop.Op) uint32 {
	switch op {
	case binop.Add:
		return shaderOpAdd
	case binop.Sub:
		return shaderOpSub
	case binop.Mul:
		return shaderOpMul
	case binop.Div:
		return shaderOpDiv
	case binop.CopyLhs:
		return shaderOpCopyLhs
	default:
		return shaderOpCopyRhs
	}
}
