package metrics

import "time"

// Window accumulates loss and accuracy across the batches of one training epoch.
type Window struct {
	samples  int
	lossSum  float64
	correct  int
	compute  time.Duration
	steps    int
	lastLoss float64
}

// Record adds one batch to the window. loss is the batch mean.
func (w *Window) Record(batchSize int, computeTime time.Duration, loss float64, correct int) {
	w.samples += batchSize
	w.lossSum += loss * float64(batchSize)
	w.correct += correct
	w.compute += computeTime
	w.steps++
	w.lastLoss = loss
}

// Snapshot returns aggregated metrics and resets the window.
func (w *Window) Snapshot() Snapshot {
	snap := Snapshot{Steps: w.steps, Samples: w.samples, LastLoss: w.lastLoss}
	if w.samples > 0 {
		snap.Loss = w.lossSum / float64(w.samples)
		snap.Accuracy = float64(w.correct) / float64(w.samples)
	}
	if w.compute > 0 {
		snap.SamplesPerSec = float64(w.samples) / w.compute.Seconds()
	}
	if w.steps > 0 {
		snap.AvgComputeMS = (w.compute.Seconds() * 1000) / float64(w.steps)
	}

	*w = Window{}
	return snap
}

// Snapshot represents loggable metrics.
type Snapshot struct {
	Steps         int
	Samples       int
	Loss          float64
	Accuracy      float64
	SamplesPerSec float64
	AvgComputeMS  float64
	LastLoss      float64
}
