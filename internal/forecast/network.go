package forecast

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Layer is a dense layer. W is out×in, B has one entry per output.
type Layer struct {
	W    *mat.Dense
	B    *mat.VecDense
	ReLU bool
}

// layerJSON is the on-disk form of a Layer; weights are indexed [output][input].
type layerJSON struct {
	Weights [][]float64 `json:"weights"`
	Biases  []float64   `json:"biases"`
	ReLU    bool        `json:"relu"`
}

func (l Layer) MarshalJSON() ([]byte, error) {
	out := layerJSON{ReLU: l.ReLU}
	if l.W != nil {
		r, _ := l.W.Dims()
		out.Weights = make([][]float64, r)
		for o := range out.Weights {
			out.Weights[o] = mat.Row(nil, o, l.W)
		}
	}
	if l.B != nil {
		out.Biases = mat.Col(nil, 0, l.B)
	}
	return json.Marshal(out)
}

func (l *Layer) UnmarshalJSON(data []byte) error {
	var in layerJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.Weights) == 0 || len(in.Weights[0]) == 0 {
		return fmt.Errorf("layer has no weights")
	}
	if len(in.Biases) != len(in.Weights) {
		return fmt.Errorf("layer has %d outputs but %d biases", len(in.Weights), len(in.Biases))
	}

	cols := len(in.Weights[0])
	flat := make([]float64, 0, len(in.Weights)*cols)
	for o, row := range in.Weights {
		if len(row) != cols {
			return fmt.Errorf("layer weight row %d has %d inputs, want %d", o, len(row), cols)
		}
		flat = append(flat, row...)
	}

	l.W = mat.NewDense(len(in.Weights), cols, flat)
	l.B = mat.NewVecDense(len(in.Biases), in.Biases)
	l.ReLU = in.ReLU
	return nil
}

// Network is a feed-forward regression network with a single linear output.
type Network struct {
	Layers []Layer `json:"layers"`
}

// NewNetwork builds a network with the given hidden layer widths. Weights
// use Glorot-uniform initialization drawn from rng; biases start at zero.
func NewNetwork(inputs int, hidden []int, rng *rand.Rand) *Network {
	sizes := append([]int{inputs}, hidden...)
	sizes = append(sizes, 1)

	n := &Network{Layers: make([]Layer, len(sizes)-1)}
	for i := 1; i < len(sizes); i++ {
		in, out := sizes[i-1], sizes[i]
		limit := math.Sqrt(6 / float64(in+out))

		w := make([]float64, out*in)
		for k := range w {
			w[k] = (rng.Float64()*2 - 1) * limit
		}
		n.Layers[i-1] = Layer{
			W:    mat.NewDense(out, in, w),
			B:    mat.NewVecDense(out, nil),
			ReLU: i < len(sizes)-1,
		}
	}
	return n
}

// Inputs returns the width of the input layer.
func (n *Network) Inputs() int {
	if len(n.Layers) == 0 || n.Layers[0].W == nil {
		return 0
	}
	_, c := n.Layers[0].W.Dims()
	return c
}

func relu(_, _ int, v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}

// forward maps a column of activations to the next layer's column.
func (l *Layer) forward(in mat.Matrix) *mat.Dense {
	var z mat.Dense
	z.Mul(l.W, in)
	z.Add(&z, l.B)
	if l.ReLU {
		z.Apply(relu, &z)
	}
	return &z
}

// Predict returns the network output for one scaled sample.
func (n *Network) Predict(x []float64) float64 {
	var a mat.Matrix = mat.NewDense(len(x), 1, x)
	for i := range n.Layers {
		a = n.Layers[i].forward(a)
	}
	return a.At(0, 0)
}

// gradients has the shape of a network's parameters.
type gradients struct {
	w []*mat.Dense
	b []*mat.VecDense
}

func newGradients(n *Network) *gradients {
	g := &gradients{w: make([]*mat.Dense, len(n.Layers)), b: make([]*mat.VecDense, len(n.Layers))}
	for i, l := range n.Layers {
		r, c := l.W.Dims()
		g.w[i] = mat.NewDense(r, c, nil)
		g.b[i] = mat.NewVecDense(l.B.Len(), nil)
	}
	return g
}

func (g *gradients) zero() {
	for i := range g.w {
		g.w[i].Zero()
		g.b[i].Zero()
	}
}

// accumulate adds the squared-error gradient of one sample to g and returns
// the sample's squared error.
func (n *Network) accumulate(x []float64, y float64, g *gradients) float64 {
	acts := make([]mat.Matrix, len(n.Layers)+1)
	acts[0] = mat.NewDense(len(x), 1, x)
	for i := range n.Layers {
		acts[i+1] = n.Layers[i].forward(acts[i])
	}

	diff := acts[len(n.Layers)].At(0, 0) - y
	delta := mat.NewDense(1, 1, []float64{2 * diff})

	var outer mat.Dense
	for i := len(n.Layers) - 1; i >= 0; i-- {
		in := acts[i]

		outer.Reset()
		outer.Mul(delta, in.T())
		g.w[i].Add(g.w[i], &outer)
		g.b[i].AddVec(g.b[i], delta.ColView(0))
		if i == 0 {
			break
		}

		// acts[i] is the ReLU output of layer i-1, positive exactly where
		// the derivative is 1.
		var prev mat.Dense
		prev.Mul(n.Layers[i].W.T(), delta)
		prev.Apply(func(r, _ int, v float64) float64 {
			if in.At(r, 0) <= 0 {
				return 0
			}
			return v
		}, &prev)
		delta = &prev
	}

	return diff * diff
}

// adam holds the optimizer moments of every parameter.
type adam struct {
	lr, beta1, beta2, eps float64
	t                     int
	m, v                  *gradients
}

func newAdam(n *Network, lr float64) *adam {
	return &adam{
		lr:    lr,
		beta1: 0.9,
		beta2: 0.999,
		eps:   1e-7,
		m:     newGradients(n),
		v:     newGradients(n),
	}
}

// step applies the mean gradient g*scale to n.
func (a *adam) step(n *Network, g *gradients, scale float64) {
	a.t++
	c1 := 1 - math.Pow(a.beta1, float64(a.t))
	c2 := 1 - math.Pow(a.beta2, float64(a.t))

	// Every matrix here comes from mat.NewDense or mat.NewVecDense, so the
	// backing slices are contiguous and share one layout per layer.
	update := func(p, m, v, grad []float64) {
		for k := range p {
			gk := grad[k] * scale
			m[k] = a.beta1*m[k] + (1-a.beta1)*gk
			v[k] = a.beta2*v[k] + (1-a.beta2)*gk*gk
			p[k] -= a.lr * (m[k] / c1) / (math.Sqrt(v[k]/c2) + a.eps)
		}
	}

	for i := range n.Layers {
		l := &n.Layers[i]
		update(l.W.RawMatrix().Data, a.m.w[i].RawMatrix().Data, a.v.w[i].RawMatrix().Data, g.w[i].RawMatrix().Data)
		update(l.B.RawVector().Data, a.m.b[i].RawVector().Data, a.v.b[i].RawVector().Data, g.b[i].RawVector().Data)
	}
}
