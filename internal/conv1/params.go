package conv1

// Table names used by weight providers.
const (
	WeightName = "conv1.weight"
	BiasName   = "conv1.bias"
)

// WeightShape returns the weight tensor shape, [K, K, ImgC, OutC].
func WeightShape() []int { return []int{K, K, ImgC, OutC} }

// BiasShape returns the bias vector shape, [OutC].
func BiasShape() []int { return []int{OutC} }

// Params holds the fixed weight and bias tables of the layer.
//
// Weights are indexed [ky][kx][ic][oc]; Bias is indexed [oc]. The kernel
// only ever reads a Params value, so one instance may be shared by any
// number of concurrent invocations.
type Params struct {
	Weights [K][K][ImgC][OutC]float32
	Bias    [OutC]float32
}

// NewParams builds Params from flat tables in [ky][kx][ic][oc] and [oc] order.
func NewParams(weights, bias []float32) (*Params, error) {
	if len(weights) != K*K*ImgC*OutC {
		return nil, &ShapeError{
			Tensor:   WeightName,
			Expected: WeightShape(),
			Actual:   []int{len(weights)},
			Details:  "flat length mismatch",
		}
	}
	if len(bias) != OutC {
		return nil, &ShapeError{
			Tensor:   BiasName,
			Expected: BiasShape(),
			Actual:   []int{len(bias)},
		}
	}

	p := &Params{}
	i := 0
	for ky := 0; ky < K; ky++ {
		for kx := 0; kx < K; kx++ {
			for ic := 0; ic < ImgC; ic++ {
				for oc := 0; oc < OutC; oc++ {
					p.Weights[ky][kx][ic][oc] = weights[i]
					i++
				}
			}
		}
	}
	copy(p.Bias[:], bias)
	return p, nil
}

// FlatWeights returns the weights as a new slice in [ky][kx][ic][oc] order.
func (p *Params) FlatWeights() []float32 {
	out := make([]float32, 0, K*K*ImgC*OutC)
	for ky := range p.Weights {
		for kx := range p.Weights[ky] {
			for ic := range p.Weights[ky][kx] {
				out = append(out, p.Weights[ky][kx][ic][:]...)
			}
		}
	}
	return out
}

// FlatBias returns a copy of the bias vector.
func (p *Params) FlatBias() []float32 {
	out := make([]float32, OutC)
	copy(out, p.Bias[:])
	return out
}

// Clone returns a deep copy.
func (p *Params) Clone() *Params {
	c := *p
	return &c
}
