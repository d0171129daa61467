package viz

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eegmi/internal/dataset"
)

func bandEpochs(t *testing.T) map[string]*dataset.Epochs {
	t.Helper()
	ep := &dataset.Epochs{
		Channels: []dataset.Channel{{Name: "C3"}, {Name: "C4"}},
		SFreq:    100,
		Tmin:     -1,
	}
	for w := 0; w < 4; w++ {
		window := make([][]float64, 2)
		for c := range window {
			window[c] = make([]float64, 201)
			for i := range window[c] {
				window[c][i] = 1e-5 * math.Sin(2*math.Pi*float64(c+w+3)*float64(i)/100)
			}
		}
		ep.Data = append(ep.Data, window)
		ep.Events = append(ep.Events, dataset.Event{Sample: 300 * (w + 1), Code: 2 + w%2})
	}
	return dataset.SplitByFrequencyBand(ep)
}

func TestPlotBandUnknown(t *testing.T) {
	bands := bandEpochs(t)
	_, err := PlotBand(bands, "Gamma", "", t.TempDir())
	require.ErrorIs(t, err, ErrUnknownBand)
}

func TestPlotBandSingle(t *testing.T) {
	dir := t.TempDir()
	paths, err := PlotBand(bandEpochs(t), "Alpha", "", dir)
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(dir, "brain_wave_signal_alpha.png")}, paths)
	info, err := os.Stat(paths[0])
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestPlotBandAll(t *testing.T) {
	dir := t.TempDir()
	bands := bandEpochs(t)
	delete(bands, "Theta")

	paths, err := PlotBand(bands, AllBands, "Subject 1", dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "subject_1_delta.png"),
		filepath.Join(dir, "subject_1_alpha.png"),
		filepath.Join(dir, "subject_1_beta.png"),
	}, paths)
}

func TestEvokedPlotTitle(t *testing.T) {
	ev := bandEpochs(t)["Beta"].Average()
	p, err := EvokedPlot(ev, "Beta Band (12-40 Hz)")
	require.NoError(t, err)
	assert.Equal(t, "Beta Band (12-40 Hz)", p.Title.Text)
}
