package model

import "math"

// adam implements the Adam update with the bias correction folded into the
// step size.
type adam struct {
	lr      float64
	beta1   float64
	beta2   float64
	epsilon float64

	m, v [][]float64
	t    int
}

func newAdam(lr float64) *adam {
	return &adam{lr: lr, beta1: 0.9, beta2: 0.999, epsilon: 1e-7}
}

func (o *adam) step(params, grads [][]float64) {
	if o.m == nil {
		o.m = make([][]float64, len(params))
		o.v = make([][]float64, len(params))
		for i, p := range params {
			o.m[i] = make([]float64, len(p))
			o.v[i] = make([]float64, len(p))
		}
	}
	o.t++
	lrT := o.lr * math.Sqrt(1-math.Pow(o.beta2, float64(o.t))) / (1 - math.Pow(o.beta1, float64(o.t)))

	for i, p := range params {
		g, m, v := grads[i], o.m[i], o.v[i]
		for j := range p {
			m[j] = o.beta1*m[j] + (1-o.beta1)*g[j]
			v[j] = o.beta2*v[j] + (1-o.beta2)*g[j]*g[j]
			p[j] -= lrT * m[j] / (math.Sqrt(v[j]) + o.epsilon)
		}
	}
}
