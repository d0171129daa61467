package metrics

import (
	"math"
	"testing"
	"time"
)

func TestWindowSnapshot(t *testing.T) {
	var w Window
	w.Record(64, 20*time.Millisecond, 1.2, 32)
	w.Record(32, 10*time.Millisecond, 0.6, 32)
	snap := w.Snapshot()
	if math.Abs(snap.SamplesPerSec-3200) > 1 {
		t.Fatalf("unexpected throughput %.2f", snap.SamplesPerSec)
	}
	if math.Abs(snap.Loss-1.0) > 1e-9 {
		t.Fatalf("expected sample-weighted loss 1.0, got %.4f", snap.Loss)
	}
	if math.Abs(snap.Accuracy-2.0/3.0) > 1e-9 {
		t.Fatalf("unexpected accuracy %.4f", snap.Accuracy)
	}
	if w.samples != 0 || w.steps != 0 {
		t.Fatalf("window was not reset")
	}
	if snap.LastLoss != 0.6 {
		t.Fatalf("expected last loss 0.6, got %.2f", snap.LastLoss)
	}
}

func TestEmptyWindowSnapshot(t *testing.T) {
	var w Window
	snap := w.Snapshot()
	if snap.Loss != 0 || snap.Accuracy != 0 || snap.SamplesPerSec != 0 {
		t.Fatalf("expected zero snapshot, got %+v", snap)
	}
}
