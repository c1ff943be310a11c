//go:build windows

// Package webgpu runs the sparse kernels on GPU through WebGPU compute
// shaders. Float32 features only; index arrays are uploaded as u32.
package webgpu

// workgroupSize is the number of threads per workgroup.
const workgroupSize = 256

// Operator codes shared between the Go dispatch and the WGSL kernels.
// Must match the op switch in each shader.
const (
	shaderOpAdd     = 0
	shaderOpSub     = 1
	shaderOpMul     = 2
	shaderOpDiv     = 3
	shaderOpCopyLhs = 4
	shaderOpCopyRhs = 5
)

// spmmCOOSumShader scatters op(ufeat[row[e]], efeat[eid[e]]) into the
// destination row col[e] with an atomic f32 add. WGSL has no float
// atomics, so the accumulator is an array<atomic<u32>> updated with a
// compare-exchange loop over the f32 bit pattern.
const spmmCOOSumShader = `
@group(0) @binding(0) var<storage, read> row: array<u32>;
@group(0) @binding(1) var<storage, read> col: array<u32>;
@group(0) @binding(2) var<storage, read> eid: array<u32>;
@group(0) @binding(3) var<storage, read> ufeat: array<f32>;
@group(0) @binding(4) var<storage, read> efeat: array<f32>;
@group(0) @binding(5) var<storage, read_write> out: array<atomic<u32>>;

struct Params {
    nnz: u32,
    feat_len: u32,
    op: u32,
}
@group(0) @binding(6) var<uniform> params: Params;

fn apply_op(l: f32, r: f32) -> f32 {
    switch params.op {
        case 0u: { return l + r; }
        case 1u: { return l - r; }
        case 2u: { return l * r; }
        case 3u: { return l / r; }
        case 4u: { return l; }
        default: { return r; }
    }
}

fn atomic_add_f32(pos: u32, v: f32) {
    var old = atomicLoad(&out[pos]);
    loop {
        let next = bitcast<u32>(bitcast<f32>(old) + v);
        let r = atomicCompareExchangeWeak(&out[pos], old, next);
        if (r.exchanged) {
            break;
        }
        old = r.old_value;
    }
}

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.nnz * params.feat_len) {
        return;
    }
    let e = idx / params.feat_len;
    let i = idx % params.feat_len;

    var l: f32 = 0.0;
    var r: f32 = 0.0;
    if (params.op != 5u) {
        l = ufeat[row[e] * params.feat_len + i];
    }
    if (params.op != 4u) {
        r = efeat[eid[e] * params.feat_len + i];
    }
    atomic_add_f32(col[e] * params.feat_len + i, apply_op(l, r));
}
`

// sddmmCOOShader writes op(lhs[·], rhs[·]) to one output row per edge.
// Each operand reads the source node, destination node or edge array as
// selected by its target code (0 = src, 1 = dst, 2 = edge). Edges never
// collide, so plain stores suffice.
const sddmmCOOShader = `
@group(0) @binding(0) var<storage, read> row: array<u32>;
@group(0) @binding(1) var<storage, read> col: array<u32>;
@group(0) @binding(2) var<storage, read> eid: array<u32>;
@group(0) @binding(3) var<storage, read> lhs: array<f32>;
@group(0) @binding(4) var<storage, read> rhs: array<f32>;
@group(0) @binding(5) var<storage, read_write> out: array<f32>;

struct Params {
    nnz: u32,
    feat_len: u32,
    op: u32,
    lhs_target: u32,
    rhs_target: u32,
}
@group(0) @binding(6) var<uniform> params: Params;

fn apply_op(l: f32, r: f32) -> f32 {
    switch params.op {
        case 0u: { return l + r; }
        case 1u: { return l - r; }
        case 2u: { return l * r; }
        case 3u: { return l / r; }
        case 4u: { return l; }
        default: { return r; }
    }
}

fn target_id(target: u32, e: u32) -> u32 {
    switch target {
        case 0u: { return row[e]; }
        case 1u: { return col[e]; }
        default: { return eid[e]; }
    }
}

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.nnz * params.feat_len) {
        return;
    }
    let e = idx / params.feat_len;
    let i = idx % params.feat_len;

    var l: f32 = 0.0;
    var r: f32 = 0.0;
    if (params.op != 5u) {
        l = lhs[target_id(params.lhs_target, e) * params.feat_len + i];
    }
    if (params.op != 4u) {
        r = rhs[target_id(params.rhs_target, e) * params.feat_len + i];
    }
    out[eid[e] * params.feat_len + i] = apply_op(l, r);
}
`

// segmentSumShader folds consecutive feature rows into one output row
// per segment. One thread owns one output element, so no atomics.
const segmentSumShader = `
@group(0) @binding(0) var<storage, read> feat: array<f32>;
@group(0) @binding(1) var<storage, read> offsets: array<u32>;
@group(0) @binding(2) var<storage, read_write> out: array<f32>;

struct Params {
    num_segments: u32,
    feat_len: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= params.num_segments * params.feat_len) {
        return;
    }
    let s = idx / params.feat_len;
    let i = idx % params.feat_len;

    var acc: f32 = 0.0;
    for (var r = offsets[s]; r < offsets[s + 1u]; r = r + 1u) {
        acc = acc + feat[r * params.feat_len + i];
    }
    out[s * params.feat_len + i] = acc;
}
`

// scatterAddShader accumulates feat rows into out rows selected by idx,
// with the same compare-exchange f32 add as the SpMM scatter.
const scatterAddShader = `
@group(0) @binding(0) var<storage, read> feat: array<f32>;
@group(0) @binding(1) var<storage, read> idx: array<u32>;
@group(0) @binding(2) var<storage, read_write> out: array<atomic<u32>>;

struct Params {
    rows: u32,
    feat_len: u32,
}
@group(0) @binding(3) var<uniform> params: Params;

fn atomic_add_f32(pos: u32, v: f32) {
    var old = atomicLoad(&out[pos]);
    loop {
        let next = bitcast<u32>(bitcast<f32>(old) + v);
        let r = atomicCompareExchangeWeak(&out[pos], old, next);
        if (r.exchanged) {
            break;
        }
        old = r.old_value;
    }
}

@compute @workgroup_size(256)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let p = global_id.x;
    if (p >= params.rows * params.feat_len) {
        return;
    }
    let r = p / params.feat_len;
    let i = p % params.feat_len;
    atomic_add_f32(idx[r] * params.feat_len + i, feat[r * params.feat_len + i]);
}
`
