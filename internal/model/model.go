// Package model implements the feed-forward classifier used for motor-imagery
// windows: a flatten stage, a stack of dense hidden layers and a sigmoid or
// softmax output, trained with Adam.
package model

import (
	"errors"
	"fmt"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"eegmi/internal/tensor"
)

// DefaultLearningRate is the Adam step size used when Config.LearningRate is zero.
const DefaultLearningRate = 0.003

var (
	// ErrNotTrained is returned when history is requested before Fit.
	ErrNotTrained = errors.New("model has not been trained yet, call Fit first")
	// ErrShapeMismatch is returned when samples do not match the input shape.
	ErrShapeMismatch = errors.New("model: sample shape does not match input shape")
)

// Config describes the network. It is copied by New and never mutated.
type Config struct {
	InputShape   []int
	OutputShape  int
	Units        []int
	Activation   string
	LearningRate float64
	// L2 is the kernel penalty factor. Zero disables regularization.
	L2   float64
	Seed int64
}

// StageKind identifies a stage of the network.
type StageKind string

const (
	StageInput   StageKind = "input"
	StageFlatten StageKind = "flatten"
	StageDense   StageKind = "dense"
)

// Stage describes one stage of the constructed network.
type Stage struct {
	Kind       StageKind
	Shape      []int
	Units      int
	Activation string
}

// ANN is a compiled feed-forward classifier. It is not safe for concurrent use.
type ANN struct {
	cfg     Config
	stages  []Stage
	layers  []*dense
	opt     *adam
	loss    LossKind
	logger  *zap.Logger
	history *History
}

// Option customizes an ANN.
type Option func(*ANN)

// WithLogger routes per-epoch progress to logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *ANN) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// New builds and compiles the network described by cfg.
func New(cfg Config, opts ...Option) (*ANN, error) {
	flat, err := tensor.Size(cfg.InputShape)
	if err != nil {
		return nil, fmt.Errorf("model: input shape: %w", err)
	}
	if cfg.OutputShape <= 0 {
		return nil, fmt.Errorf("model: output width must be > 0 (got %d)", cfg.OutputShape)
	}
	hidden, err := lookupActivation(cfg.Activation)
	if err != nil {
		return nil, err
	}
	if cfg.LearningRate == 0 {
		cfg.LearningRate = DefaultLearningRate
	}
	if cfg.LearningRate < 0 {
		return nil, fmt.Errorf("model: learning rate must be > 0 (got %g)", cfg.LearningRate)
	}
	cfg.InputShape = append([]int(nil), cfg.InputShape...)
	cfg.Units = append([]int(nil), cfg.Units...)

	a := &ANN{
		cfg:    cfg,
		opt:    newAdam(cfg.LearningRate),
		loss:   lossFor(cfg.OutputShape),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}

	rng := rand.New(rand.NewSource(cfg.Seed))
	a.stages = append(a.stages,
		Stage{Kind: StageInput, Shape: cfg.InputShape},
		Stage{Kind: StageFlatten, Shape: []int{flat}},
	)
	in := flat
	for i, units := range cfg.Units {
		if units <= 0 {
			return nil, fmt.Errorf("model: hidden layer %d: units must be > 0 (got %d)", i, units)
		}
		a.layers = append(a.layers, newDense(in, units, hidden, rng))
		a.stages = append(a.stages, Stage{Kind: StageDense, Shape: []int{units}, Units: units, Activation: hidden.name})
		in = units
	}

	out := newDense(in, cfg.OutputShape, activations["sigmoid"], rng)
	outName := "sigmoid"
	if cfg.OutputShape > 1 {
		out.softmax = true
		outName = "softmax"
	}
	a.layers = append(a.layers, out)
	a.stages = append(a.stages, Stage{Kind: StageDense, Shape: []int{cfg.OutputShape}, Units: cfg.OutputShape, Activation: outName})
	return a, nil
}

// Config returns a copy of the construction parameters.
func (a *ANN) Config() Config {
	cfg := a.cfg
	cfg.InputShape = append([]int(nil), a.cfg.InputShape...)
	cfg.Units = append([]int(nil), a.cfg.Units...)
	return cfg
}

// Stages returns the network stages in order: input, flatten, hidden, output.
func (a *ANN) Stages() []Stage {
	out := make([]Stage, len(a.stages))
	copy(out, a.stages)
	return out
}

// HiddenLayers returns the number of dense stages before the output.
func (a *ANN) HiddenLayers() int {
	return len(a.layers) - 1
}

// OutputActivation returns "softmax" or "sigmoid".
func (a *ANN) OutputActivation() string {
	return a.stages[len(a.stages)-1].Activation
}

// Loss returns the compiled objective.
func (a *ANN) Loss() LossKind {
	return a.loss
}

// Predict returns output probabilities with shape (n, OutputShape).
func (a *ANN) Predict(x *tensor.Tensor) (*tensor.Tensor, error) {
	if err := a.checkShape(x); err != nil {
		return nil, err
	}
	probs := a.forward(mat.NewDense(x.Len(), x.Stride(), x.Data))
	return tensor.FromData(probs.RawMatrix().Data, x.Len(), a.cfg.OutputShape)
}

func (a *ANN) forward(x *mat.Dense) *mat.Dense {
	out := x
	for _, l := range a.layers {
		out = l.forward(out)
	}
	return out
}

func (a *ANN) backward(dz *mat.Dense) {
	last := len(a.layers) - 1
	grad := a.layers[last].backward(dz, a.cfg.L2)
	for i := last - 1; i >= 0; i-- {
		grad = a.layers[i].backward(a.layers[i].activationGrad(grad), a.cfg.L2)
	}
}

func (a *ANN) penalty() float64 {
	if a.cfg.L2 == 0 {
		return 0
	}
	sum := 0.0
	for _, l := range a.layers {
		sum += l.squaredWeights()
	}
	return a.cfg.L2 * sum
}

func (a *ANN) step() {
	var params, grads [][]float64
	for _, l := range a.layers {
		params = append(params, l.params()...)
		grads = append(grads, l.grads()...)
	}
	a.opt.step(params, grads)
}

func (a *ANN) checkShape(x *tensor.Tensor) error {
	if x == nil || x.Len() == 0 {
		return errors.New("model: empty input")
	}
	got := x.SampleShape()
	if len(got) != len(a.cfg.InputShape) {
		return fmt.Errorf("%w: got %v want %v", ErrShapeMismatch, got, a.cfg.InputShape)
	}
	for i := range got {
		if got[i] != a.cfg.InputShape[i] {
			return fmt.Errorf("%w: got %v want %v", ErrShapeMismatch, got, a.cfg.InputShape)
		}
	}
	return nil
}
