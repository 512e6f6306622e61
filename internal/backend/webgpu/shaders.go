package webgpu

// conv1Shader computes one pooled output element per invocation.
// Bindings: input [784], weights [3][3][1][32], bias [32], output [13*13*32].
const conv1Shader = `
const IMG_W: u32 = 28u;
const IMG_C: u32 = 1u;
const OUT_C: u32 = 32u;
const KSIZE: u32 = 3u;
const POOLED: u32 = 13u;

@group(0) @binding(0) var<storage, read> input: array<f32>;
@group(0) @binding(1) var<storage, read> weights: array<f32>;
@group(0) @binding(2) var<storage, read> bias: array<f32>;
@group(0) @binding(3) var<storage, read_write> output: array<f32>;

fn conv_relu(y: u32, x: u32, oc: u32) -> f32 {
    var sum: f32 = bias[oc];
    for (var ky: u32 = 0u; ky < KSIZE; ky = ky + 1u) {
        for (var kx: u32 = 0u; kx < KSIZE; kx = kx + 1u) {
            for (var ic: u32 = 0u; ic < IMG_C; ic = ic + 1u) {
                let v = input[(y + ky) * IMG_W * IMG_C + (x + kx) * IMG_C + ic];
                let w = weights[((ky * KSIZE + kx) * IMG_C + ic) * OUT_C + oc];
                sum = sum + v * w;
            }
        }
    }
    if (sum > 0.0) {
        return sum;
    }
    return 0.0;
}

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) global_id: vec3<u32>) {
    let idx = global_id.x;
    if (idx >= POOLED * POOLED * OUT_C) {
        return;
    }

    let oc = idx % OUT_C;
    let cell = idx / OUT_C;
    let y = (cell / POOLED) * 2u;
    let x = (cell % POOLED) * 2u;

    var m = conv_relu(y, x, oc);
    let tr = conv_relu(y, x + 1u, oc);
    if (tr > m) {
        m = tr;
    }
    let bl = conv_relu(y + 1u, x, oc);
    if (bl > m) {
        m = bl;
    }
    let br = conv_relu(y + 1u, x + 1u, oc);
    if (br > m) {
        m = br;
    }
    output[idx] = m;
}
`
