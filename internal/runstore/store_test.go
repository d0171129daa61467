package runstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eegmi/internal/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndLoadHistory(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	h := model.History{
		Loss:        []float64{0.7, 0.5},
		ValLoss:     []float64{0.8, 0.6},
		Accuracy:    []float64{0.5, 0.75},
		ValAccuracy: []float64{0.4, 0.7},
		AUC:         []float64{0.55, 0.8},
		ValAUC:      []float64{0.5, 0.72},
	}
	cfg := map[string]any{"units": []int{32, 16}, "activation": "relu"}
	id, err := s.Save(ctx, Run{Name: "subject-1", Config: cfg, Samples: 45, History: h})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := s.History(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, h, got)

	var decoded struct {
		Units      []int  `json:"units"`
		Activation string `json:"activation"`
	}
	require.NoError(t, s.Config(ctx, id, &decoded))
	assert.Equal(t, []int{32, 16}, decoded.Units)

	runs, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)
	assert.Equal(t, 2, runs[0].Epochs)
	assert.Equal(t, 45, runs[0].Samples)
	assert.Equal(t, 0.5, runs[0].FinalLoss)
	assert.Equal(t, 0.7, runs[0].FinalValAccuracy)
}

func TestHistoryWithoutValidation(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	h := model.History{Loss: []float64{1}, Accuracy: []float64{0.5}, AUC: []float64{0.5}}
	id, err := s.Save(ctx, Run{Name: "no-val", Config: struct{}{}, History: h})
	require.NoError(t, err)

	got, err := s.History(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got.ValLoss)
	assert.Equal(t, h.Loss, got.Loss)
}

func TestUnknownRun(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	_, err := s.History(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, s.Config(ctx, "missing", &struct{}{}), ErrNotFound)

	_, err = s.Save(ctx, Run{Name: "empty"})
	require.Error(t, err)
}
