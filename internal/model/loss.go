package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const probEpsilon = 1e-7

// LossKind names the training objective.
type LossKind string

const (
	BinaryCrossEntropy            LossKind = "binary_crossentropy"
	SparseCategoricalCrossEntropy LossKind = "sparse_categorical_crossentropy"
)

// lossFor returns the objective used for an output width. Multi-class outputs
// use categorical cross-entropy over the softmax.
func lossFor(outputs int) LossKind {
	if outputs > 1 {
		return SparseCategoricalCrossEntropy
	}
	return BinaryCrossEntropy
}

// batchLoss returns the mean loss over probs, dL/dz for the output layer, and
// the number of correct predictions.
func batchLoss(kind LossKind, probs *mat.Dense, labels []int) (float64, *mat.Dense, int) {
	rows, cols := probs.Dims()
	grad := mat.NewDense(rows, cols, nil)
	inv := 1 / float64(rows)
	total := 0.0
	correct := 0
	for i := 0; i < rows; i++ {
		p := probs.RawRowView(i)
		g := grad.RawRowView(i)
		y := labels[i]
		switch kind {
		case BinaryCrossEntropy:
			yf := float64(y)
			q := clip(p[0])
			total += -(yf*math.Log(q) + (1-yf)*math.Log(1-q))
			g[0] = (p[0] - yf) * inv
			if (p[0] > 0.5) == (y == 1) {
				correct++
			}
		default:
			total += -math.Log(clip(p[y]))
			for j := range g {
				g[j] = p[j] * inv
			}
			g[y] -= inv
			if argmax(p) == y {
				correct++
			}
		}
	}
	return total * inv, grad, correct
}

// scores flattens probabilities and labels for ROC AUC: one entry per sample
// for a single output, one entry per (sample, class) otherwise.
func scores(probs *mat.Dense, labels []int, dstScores []float64, dstLabels []bool) ([]float64, []bool) {
	rows, cols := probs.Dims()
	for i := 0; i < rows; i++ {
		p := probs.RawRowView(i)
		if cols == 1 {
			dstScores = append(dstScores, p[0])
			dstLabels = append(dstLabels, labels[i] == 1)
			continue
		}
		for j, v := range p {
			dstScores = append(dstScores, v)
			dstLabels = append(dstLabels, labels[i] == j)
		}
	}
	return dstScores, dstLabels
}

func clip(p float64) float64 {
	return math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}
