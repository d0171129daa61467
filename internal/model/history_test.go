package model

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlotHistoryBeforeFit(t *testing.T) {
	ann, err := New(Config{InputShape: []int{2, 3}, OutputShape: 1, Activation: "relu"})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.ErrorIs(t, ann.PlotHistory(&buf), ErrNotTrained)
	assert.Zero(t, buf.Len())

	_, err = ann.History()
	require.ErrorIs(t, err, ErrNotTrained)
}

func TestPlotHistoryWritesPNG(t *testing.T) {
	x, y := separable(t, 20, 10)
	ann, err := New(Config{InputShape: []int{2, 3}, OutputShape: 1, Units: []int{4}, Activation: "relu"})
	require.NoError(t, err)
	opts := DefaultFitOptions()
	opts.Epochs = 2
	require.NoError(t, ann.Fit(context.Background(), x, y, opts))

	var buf bytes.Buffer
	require.NoError(t, ann.PlotHistory(&buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG\r\n\x1a\n")))
}
