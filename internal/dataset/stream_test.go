package dataset

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func writeRuns(t *testing.T, dir string, n int) []string {
	t.Helper()
	paths := make([]string, n)
	for i := range paths {
		raw := synthRaw([]string{"C3", "C4"}, 100, i+1)
		paths[i] = filepath.Join(dir, fmt.Sprintf("S001R%02d.edf", i+1))
		require.NoError(t, WriteEDFFile(paths[i], raw))
	}
	return paths
}

func TestStreamRecordingsKeepsOrder(t *testing.T) {
	defer goleak.VerifyNone(t)
	paths := writeRuns(t, t.TempDir(), 6)

	stream, errCh := StreamRecordings(context.Background(), paths, 3)
	var got []int
	for rec := range stream {
		assert.Equal(t, paths[rec.Index], rec.Path)
		// File i holds i+1 seconds at 100 Hz.
		assert.Equal(t, (rec.Index+1)*100, rec.Raw.Samples())
		got = append(got, rec.Index)
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, got)
}

func TestReadRecordingsReportsDecodeError(t *testing.T) {
	defer goleak.VerifyNone(t)
	dir := t.TempDir()
	paths := writeRuns(t, dir, 3)
	broken := filepath.Join(dir, "broken.edf")
	require.NoError(t, os.WriteFile(broken, []byte("not an edf header"), 0o644))
	paths = append(paths[:1], append([]string{broken}, paths[1:]...)...)

	_, err := ReadRecordings(context.Background(), paths, 2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.edf")
}

func TestReadRecordingsCancelled(t *testing.T) {
	defer goleak.VerifyNone(t)
	paths := writeRuns(t, t.TempDir(), 4)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadRecordings(ctx, paths, 2)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReadRecordingsEmpty(t *testing.T) {
	raws, err := ReadRecordings(context.Background(), nil, 4)
	require.NoError(t, err)
	assert.Empty(t, raws)
}
