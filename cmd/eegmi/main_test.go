package main

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eegmi/internal/dataset"
	"eegmi/internal/model"
	"eegmi/internal/runstore"
	"eegmi/internal/viz"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRunsListsAndShowsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	store, err := runstore.Open(path)
	require.NoError(t, err)
	id, err := store.Save(context.Background(), runstore.Run{
		Name:    "cli",
		Config:  map[string]int{"epochs": 2},
		Samples: 12,
		History: model.History{
			Loss:     []float64{0.7, 0.5},
			Accuracy: []float64{0.5, 0.75},
			AUC:      []float64{0.5, 0.8},
		},
	})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	out, err := execute(t, "--store", path, "runs")
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "cli")

	out, err = execute(t, "--store", path, "runs", id)
	require.NoError(t, err)
	assert.Contains(t, out, "EPOCH")
	assert.Contains(t, out, "0.5000")
}

func TestRunsRequiresStore(t *testing.T) {
	_, err := execute(t, "runs")
	require.ErrorContains(t, err, "run ledger")
}

func TestFetchRequiresDataPath(t *testing.T) {
	_, err := execute(t, "fetch")
	require.ErrorContains(t, err, "data.path")
}

func TestFetchListsExistingRecordings(t *testing.T) {
	root := t.TempDir()
	path := dataset.RecordingPath(root, 2, 4)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("edf"), 0o644))

	out, err := execute(t, "--path", root, "--subjects", "2", "--runs", "4", "fetch")
	require.NoError(t, err)
	assert.Equal(t, path+"\n", out)
}

func TestConfigFileAndLevel(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "eegmi.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: loud\n"), 0o644))

	_, err := execute(t, "--config", cfgPath, "runs")
	require.ErrorContains(t, err, "logging.level")
}

// writeRecording stores a 40 s, 160 Hz three-channel recording for subject 1
// run 6 with alternating T1/T2 markers every 5 s.
func writeRecording(t *testing.T, root string) {
	t.Helper()
	const sfreq = 160.0
	n := int(sfreq) * 40
	raw := &dataset.Raw{SFreq: sfreq}
	for c, name := range []string{"C3..", "Cz..", "C4.."} {
		raw.Channels = append(raw.Channels, dataset.Channel{Name: name, Unit: "uV"})
		data := make([]float64, n)
		for i := range data {
			data[i] = 20e-6 * math.Sin(2*math.Pi*float64(c+1)*5*float64(i)/sfreq)
		}
		raw.Data = append(raw.Data, data)
	}
	for i, onset := 0, 2.0; onset+4 < 40; i, onset = i+1, onset+5 {
		desc := "T1"
		if i%2 == 1 {
			desc = "T2"
		}
		raw.Annotations = append(raw.Annotations, dataset.Annotation{Onset: onset, Duration: 4, Description: desc})
	}
	require.NoError(t, dataset.WriteEDFFile(dataset.RecordingPath(root, 1, 6), raw))
}

func TestFetchListPrintsCachedRecordings(t *testing.T) {
	root := t.TempDir()
	writeRecording(t, root)

	out, err := execute(t, "--path", root, "fetch", "--list")
	require.NoError(t, err)
	assert.Equal(t, "S001\tR06\t"+dataset.RecordingPath(root, 1, 6)+"\n", out)
}

func TestBandsUnknownBand(t *testing.T) {
	root := t.TempDir()
	writeRecording(t, root)

	_, err := execute(t, "--path", root, "--subjects", "1", "--runs", "6", "--output", t.TempDir(),
		"bands", "--band", "Gamma")
	require.ErrorIs(t, err, viz.ErrUnknownBand)
}

func TestBandsWritesOnePlot(t *testing.T) {
	root := t.TempDir()
	writeRecording(t, root)
	outDir := t.TempDir()

	out, err := execute(t, "--path", root, "--subjects", "1", "--runs", "6", "--output", outDir,
		"bands", "--band", "Alpha", "--title", "S1")
	require.NoError(t, err)
	want := filepath.Join(outDir, "s1_alpha.png")
	assert.Equal(t, want+"\n", out)
	assert.FileExists(t, want)
}

func TestTrainRecordsRun(t *testing.T) {
	root := t.TempDir()
	writeRecording(t, root)
	outDir := t.TempDir()
	storePath := filepath.Join(outDir, "runs.db")

	out, err := execute(t, "--path", root, "--subjects", "1", "--runs", "6", "--output", outDir, "--store", storePath,
		"train", "--epochs", "2", "--batch-size", "2", "--seed", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "windows=7 shape=(3, 161) epochs=2")
	assert.Contains(t, out, "val_loss=")
	assert.Contains(t, out, filepath.Join(outDir, "history.png"))
	assert.FileExists(t, filepath.Join(outDir, "history.png"))

	store, err := runstore.Open(storePath)
	require.NoError(t, err)
	defer store.Close()
	runs, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, 7, runs[0].Samples)
	assert.Equal(t, 2, runs[0].Epochs)
}
