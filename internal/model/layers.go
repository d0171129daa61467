package model

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// activation is an element-wise non-linearity. df receives both the
// pre-activation z and the activation output a so either can be reused.
type activation struct {
	name string
	f    func(z float64) float64
	df   func(z, a float64) float64
}

var activations = map[string]activation{
	"linear": {
		name: "linear",
		f:    func(z float64) float64 { return z },
		df:   func(_, _ float64) float64 { return 1 },
	},
	"relu": {
		name: "relu",
		f:    func(z float64) float64 { return math.Max(0, z) },
		df: func(z, _ float64) float64 {
			if z > 0 {
				return 1
			}
			return 0
		},
	},
	"sigmoid": {
		name: "sigmoid",
		f:    sigmoid,
		df:   func(_, a float64) float64 { return a * (1 - a) },
	},
	"tanh": {
		name: "tanh",
		f:    math.Tanh,
		df:   func(_, a float64) float64 { return 1 - a*a },
	},
	"elu": {
		name: "elu",
		f: func(z float64) float64 {
			if z > 0 {
				return z
			}
			return math.Expm1(z)
		},
		df: func(z, a float64) float64 {
			if z > 0 {
				return 1
			}
			return a + 1
		},
	},
	"softplus": {
		name: "softplus",
		f: func(z float64) float64 {
			// log(1+e^z) without overflow for large z
			if z > 30 {
				return z
			}
			return math.Log1p(math.Exp(z))
		},
		df: func(z, _ float64) float64 { return sigmoid(z) },
	},
}

func lookupActivation(name string) (activation, error) {
	act, ok := activations[name]
	if !ok {
		return activation{}, fmt.Errorf("model: unknown activation %q", name)
	}
	return act, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

func softmax(logits []float64) []float64 {
	maxLogit := logits[0]
	for _, v := range logits {
		if v > maxLogit {
			maxLogit = v
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		exp := math.Exp(v - maxLogit)
		out[i] = exp
		sum += exp
	}
	inv := 1.0 / sum
	for i := range out {
		out[i] *= inv
	}
	return out
}

// dense is a fully connected layer: a = act(x·W + b).
type dense struct {
	in, out int
	w       *mat.Dense
	b       []float64
	act     activation

	// softmax is applied row-wise instead of act when set.
	softmax bool

	// cached by forward for backward
	x, z, a *mat.Dense

	dw *mat.Dense
	db []float64
}

func newDense(in, out int, act activation, rng *rand.Rand) *dense {
	limit := math.Sqrt(6 / float64(in+out))
	data := make([]float64, in*out)
	for i := range data {
		data[i] = (rng.Float64()*2 - 1) * limit
	}
	return &dense{
		in:  in,
		out: out,
		w:   mat.NewDense(in, out, data),
		b:   make([]float64, out),
		act: act,
		dw:  mat.NewDense(in, out, nil),
		db:  make([]float64, out),
	}
}

func (l *dense) forward(x *mat.Dense) *mat.Dense {
	rows, _ := x.Dims()
	z := mat.NewDense(rows, l.out, nil)
	z.Mul(x, l.w)
	for i := 0; i < rows; i++ {
		floats.Add(z.RawRowView(i), l.b)
	}
	a := mat.NewDense(rows, l.out, nil)
	if l.softmax {
		for i := 0; i < rows; i++ {
			a.SetRow(i, softmax(z.RawRowView(i)))
		}
	} else {
		a.Apply(func(_, _ int, v float64) float64 { return l.act.f(v) }, z)
	}
	l.x, l.z, l.a = x, z, a
	return a
}

// activationGrad converts dL/da into dL/dz for element-wise activations.
func (l *dense) activationGrad(da *mat.Dense) *mat.Dense {
	rows, cols := da.Dims()
	dz := mat.NewDense(rows, cols, nil)
	dz.Apply(func(i, j int, v float64) float64 {
		return v * l.act.df(l.z.At(i, j), l.a.At(i, j))
	}, da)
	return dz
}

// backward stores parameter gradients for dz (dL/dz) and returns dL/dx.
// l2 adds the gradient of l2·Σw² to the kernel gradient.
func (l *dense) backward(dz *mat.Dense, l2 float64) *mat.Dense {
	l.dw.Mul(l.x.T(), dz)
	if l2 > 0 {
		var reg mat.Dense
		reg.Scale(2*l2, l.w)
		l.dw.Add(l.dw, &reg)
	}
	rows, _ := dz.Dims()
	for j := range l.db {
		l.db[j] = 0
	}
	for i := 0; i < rows; i++ {
		floats.Add(l.db, dz.RawRowView(i))
	}
	var dx mat.Dense
	dx.Mul(dz, l.w.T())
	return &dx
}

// params and grads return views in matching order for the optimizer.
func (l *dense) params() [][]float64 {
	return [][]float64{l.w.RawMatrix().Data, l.b}
}

func (l *dense) grads() [][]float64 {
	return [][]float64{l.dw.RawMatrix().Data, l.db}
}

func (l *dense) squaredWeights() float64 {
	return floats.Dot(l.w.RawMatrix().Data, l.w.RawMatrix().Data)
}
