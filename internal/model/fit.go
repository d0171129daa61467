package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/mat"

	"eegmi/internal/metrics"
	"eegmi/internal/tensor"
)

// FitOptions controls the training loop. The first floor(n·(1-ValidationSplit))
// samples are trained on and the rest held out, before any shuffling; when
// Shuffle is set the training samples are permuted each epoch using Seed.
type FitOptions struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	Shuffle         bool
	Seed            int64
}

// DefaultFitOptions returns 10 epochs of 32-sample batches with a 20% trailing
// validation split and per-epoch shuffling.
func DefaultFitOptions() FitOptions {
	return FitOptions{
		Epochs:          10,
		BatchSize:       32,
		ValidationSplit: 0.2,
		Shuffle:         true,
		Seed:            1,
	}
}

// Batch is a minibatch of flattened samples and labels.
type Batch struct {
	Inputs *mat.Dense
	Labels []int
}

// Fit trains the network and replaces the stored history once the first epoch
// completes. If ctx is cancelled the epochs completed so far are kept as the
// history; when none completed the previous history is left in place.
func (a *ANN) Fit(ctx context.Context, x *tensor.Tensor, y []int, opts FitOptions) error {
	if err := a.checkShape(x); err != nil {
		return err
	}
	if len(y) != x.Len() {
		return fmt.Errorf("model: %d labels for %d samples", len(y), x.Len())
	}
	if opts.Epochs <= 0 {
		return fmt.Errorf("model: epochs must be > 0 (got %d)", opts.Epochs)
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.ValidationSplit < 0 || opts.ValidationSplit >= 1 {
		return fmt.Errorf("model: validation split must be in [0, 1) (got %g)", opts.ValidationSplit)
	}
	if err := a.checkLabels(y); err != nil {
		return err
	}

	n := x.Len()
	splitAt, err := splitPoint(n, opts.ValidationSplit)
	if err != nil {
		return err
	}
	train := make([]int, splitAt)
	for i := range train {
		train[i] = i
	}
	var val *Batch
	if splitAt < n {
		val = gather(x, y, rangeIndex(splitAt, n))
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	history := &History{}
	var window metrics.Window

	for epoch := 1; epoch <= opts.Epochs; epoch++ {
		start := time.Now()
		if opts.Shuffle {
			rng.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
		}

		var aucScores []float64
		var aucLabels []bool
		for lo := 0; lo < len(train); lo += opts.BatchSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			hi := min(lo+opts.BatchSize, len(train))
			batch := gather(x, y, train[lo:hi])

			stepStart := time.Now()
			probs := a.forward(batch.Inputs)
			loss, grad, correct := batchLoss(a.loss, probs, batch.Labels)
			aucScores, aucLabels = scores(probs, batch.Labels, aucScores, aucLabels)
			a.backward(grad)
			a.step()

			window.Record(hi-lo, time.Since(stepStart), loss+a.penalty(), correct)
		}

		snap := window.Snapshot()
		history.Loss = append(history.Loss, snap.Loss)
		history.Accuracy = append(history.Accuracy, snap.Accuracy)
		history.AUC = append(history.AUC, metrics.AUC(aucScores, aucLabels))

		fields := []zap.Field{
			zap.Int("epoch", epoch),
			zap.Int("epochs", opts.Epochs),
			zap.Float64("loss", snap.Loss),
			zap.Float64("accuracy", snap.Accuracy),
			zap.Float64("auc", history.AUC[len(history.AUC)-1]),
		}
		if val != nil {
			vl, vacc, vauc := a.evaluate(val)
			history.ValLoss = append(history.ValLoss, vl)
			history.ValAccuracy = append(history.ValAccuracy, vacc)
			history.ValAUC = append(history.ValAUC, vauc)
			fields = append(fields,
				zap.Float64("val_loss", vl),
				zap.Float64("val_accuracy", vacc),
				zap.Float64("val_auc", vauc),
			)
		}
		fields = append(fields,
			zap.Duration("duration", time.Since(start)),
			zap.Float64("samples_per_sec", snap.SamplesPerSec),
		)
		a.logger.Info("training epoch", fields...)
		a.history = history
	}
	return nil
}

// Evaluate returns loss, accuracy and AUC of the network on x and y.
func (a *ANN) Evaluate(x *tensor.Tensor, y []int) (loss, accuracy, auc float64, err error) {
	if err := a.checkShape(x); err != nil {
		return 0, 0, 0, err
	}
	if len(y) != x.Len() {
		return 0, 0, 0, fmt.Errorf("model: %d labels for %d samples", len(y), x.Len())
	}
	if err := a.checkLabels(y); err != nil {
		return 0, 0, 0, err
	}
	loss, accuracy, auc = a.evaluate(gather(x, y, rangeIndex(0, x.Len())))
	return loss, accuracy, auc, nil
}

func (a *ANN) evaluate(b *Batch) (float64, float64, float64) {
	probs := a.forward(b.Inputs)
	loss, _, correct := batchLoss(a.loss, probs, b.Labels)
	s, l := scores(probs, b.Labels, nil, nil)
	return loss + a.penalty(), float64(correct) / float64(len(b.Labels)), metrics.AUC(s, l)
}

func (a *ANN) checkLabels(y []int) error {
	limit := a.cfg.OutputShape
	if limit == 1 {
		limit = 2
	}
	for i, v := range y {
		if v < 0 || v >= limit {
			return fmt.Errorf("model: label %d at index %d outside [0, %d)", v, i, limit)
		}
	}
	return nil
}

func gather(x *tensor.Tensor, y []int, idx []int) *Batch {
	stride := x.Stride()
	data := make([]float64, 0, len(idx)*stride)
	labels := make([]int, len(idx))
	for i, k := range idx {
		data = append(data, x.Row(k)...)
		labels[i] = y[k]
	}
	return &Batch{Inputs: mat.NewDense(len(idx), stride, data), Labels: labels}
}

// splitPoint returns the number of leading samples used for training.
func splitPoint(n int, split float64) (int, error) {
	if split == 0 {
		return n, nil
	}
	at := int(math.Floor(float64(n) * (1 - split)))
	if at == 0 || at == n {
		return 0, fmt.Errorf("model: validation split %g of %d samples leaves an empty training or validation set", split, n)
	}
	return at, nil
}

func rangeIndex(lo, hi int) []int {
	idx := make([]int, hi-lo)
	for i := range idx {
		idx[i] = lo + i
	}
	return idx
}
