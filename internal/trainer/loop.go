package trainer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"eegmi/internal/config"
	"eegmi/internal/dataset"
	"eegmi/internal/model"
	"eegmi/internal/runstore"
	"eegmi/internal/viz"
)

// HistoryPlotName is the file written into OutputDir when PlotHistory is set.
const HistoryPlotName = "history.png"

// RunConfig captures the knobs required by the training pipeline.
type RunConfig struct {
	Name      string
	Load      dataset.LoadOptions
	Windows   dataset.WindowOptions
	CropStart float64
	CropEnd   float64
	Labels    dataset.LabelMap
	// Classes is the size of the label space. Zero derives it from the
	// labels present in the data.
	Classes int
	// Model.InputShape and Model.OutputShape are derived by Run.
	Model model.Config
	Fit   model.FitOptions

	OutputDir   string
	PlotHistory bool
	PlotBands   bool
	// StorePath enables the run ledger when non-empty.
	StorePath string
	// Settings is stored alongside the run history.
	Settings any
}

// Result describes a finished run.
type Result struct {
	Model       *model.ANN
	History     model.History
	Samples     int
	Channels    int
	Times       int
	HistoryPlot string
	BandPlots   []string
	RunID       string
}

// FromConfig translates a validated Config into a RunConfig.
func FromConfig(cfg *config.Config) RunConfig {
	rc := RunConfig{
		Name: fmt.Sprintf("subjects=%v runs=%v", cfg.Data.Subjects, cfg.Data.Runs),
		Load: dataset.LoadOptions{
			FetchOptions: dataset.FetchOptions{
				Path:     cfg.Data.Path,
				Subjects: cfg.Data.Subjects,
				Runs:     cfg.Data.Runs,
				BaseURL:  cfg.Data.BaseURL,
				Workers:  cfg.Data.Workers,
			},
			Montage: cfg.Data.Montage,
		},
		Windows: dataset.WindowOptions{
			Tmin:    cfg.Windows.Tmin,
			Tmax:    cfg.Windows.Tmax,
			EventID: cfg.Windows.EventID,
		},
		CropStart: cfg.Windows.CropStart,
		CropEnd:   cfg.Windows.CropEnd,
		Labels:    dataset.LabelMap(cfg.Windows.Labels),
		Classes:   cfg.Classes(),
		Model: model.Config{
			Units:        cfg.Model.Units,
			Activation:   cfg.Model.Activation,
			LearningRate: cfg.Model.LearningRate,
			L2:           cfg.Model.L2,
			Seed:         cfg.Model.Seed,
		},
		Fit: model.FitOptions{
			Epochs:          cfg.Training.Epochs,
			BatchSize:       cfg.Training.BatchSize,
			ValidationSplit: cfg.Training.ValidationSplit,
			Shuffle:         cfg.Training.Shuffle == nil || *cfg.Training.Shuffle,
			Seed:            cfg.Training.Seed,
		},
		OutputDir:   cfg.Output.Dir,
		PlotHistory: cfg.Output.PlotHistory,
		PlotBands:   cfg.Output.PlotBands,
		StorePath:   cfg.Output.Store,
		Settings:    cfg,
	}
	if len(cfg.Windows.Baseline) == 2 {
		rc.Windows.Baseline = &dataset.Baseline{Start: cfg.Windows.Baseline[0], End: cfg.Windows.Baseline[1]}
	}
	return rc
}

// Run loads the recordings, windows them, trains a classifier and writes the
// requested artifacts.
func Run(ctx context.Context, cfg RunConfig, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Fit.Epochs <= 0 {
		return nil, errors.New("trainer: epochs must be > 0")
	}
	if cfg.Fit.BatchSize <= 0 {
		return nil, errors.New("trainer: batch size must be > 0")
	}

	start := time.Now()
	cfg.Load.Logger = logger
	raw, err := dataset.LoadRecording(ctx, cfg.Load)
	if err != nil {
		return nil, fmt.Errorf("load recording: %w", err)
	}
	logger.Info("recording loaded",
		zap.Int("channels", len(raw.Channels)),
		zap.Float64("sfreq", raw.SFreq),
		zap.Float64("seconds", raw.Duration()),
		zap.Int("annotations", len(raw.Annotations)),
	)

	epochs, err := dataset.Segment(raw, cfg.Windows)
	if err != nil {
		return nil, fmt.Errorf("segment: %w", err)
	}
	if epochs.Len() == 0 {
		return nil, errors.New("trainer: no windows matched the requested events")
	}
	x, y, err := dataset.BuildTrainingSet(epochs, cfg.CropStart, cfg.CropEnd, cfg.Labels)
	if err != nil {
		return nil, fmt.Errorf("build training set: %w", err)
	}
	logger.Info("training set built",
		zap.Int("windows", x.Len()),
		zap.Ints("sample_shape", x.SampleShape()),
	)

	mcfg := cfg.Model
	mcfg.InputShape = x.SampleShape()
	mcfg.OutputShape = outputWidth(cfg.Classes, y)
	mdl, err := model.New(mcfg, model.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	if err := mdl.Fit(ctx, x, y, cfg.Fit); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	history, err := mdl.History()
	if err != nil {
		return nil, err
	}

	res := &Result{
		Model:    mdl,
		History:  history,
		Samples:  x.Len(),
		Channels: x.Shape[1],
		Times:    x.Shape[2],
	}

	if cfg.PlotHistory {
		res.HistoryPlot, err = writeHistory(mdl, cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		logger.Info("history plot written", zap.String("path", res.HistoryPlot))
	}
	if cfg.PlotBands {
		res.BandPlots, err = viz.PlotBand(dataset.SplitByFrequencyBand(epochs), viz.AllBands, "", cfg.OutputDir)
		if err != nil {
			return nil, fmt.Errorf("plot bands: %w", err)
		}
		logger.Info("band plots written", zap.Strings("paths", res.BandPlots))
	}
	if cfg.StorePath != "" {
		res.RunID, err = record(ctx, cfg, res)
		if err != nil {
			return nil, err
		}
		logger.Info("run recorded", zap.String("id", res.RunID), zap.String("store", cfg.StorePath))
	}

	logger.Info("run complete",
		zap.Int("epochs", history.Epochs()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res, nil
}

// outputWidth picks a single sigmoid unit for two classes and one unit per
// class otherwise.
func outputWidth(classes int, y []int) int {
	for _, label := range y {
		classes = max(classes, label+1)
	}
	if classes <= 2 {
		return 1
	}
	return classes
}

func writeHistory(mdl *model.ANN, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("history plot: %w", err)
	}
	path := filepath.Join(dir, HistoryPlotName)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("history plot: %w", err)
	}
	if err := mdl.PlotHistory(f); err != nil {
		f.Close()
		return "", fmt.Errorf("history plot: %w", err)
	}
	return path, f.Close()
}

func record(ctx context.Context, cfg RunConfig, res *Result) (string, error) {
	store, err := runstore.Open(cfg.StorePath)
	if err != nil {
		return "", err
	}
	defer store.Close()

	settings := cfg.Settings
	if settings == nil {
		settings = struct {
			Model model.Config     `json:"model"`
			Fit   model.FitOptions `json:"fit"`
		}{res.Model.Config(), cfg.Fit}
	}
	id, err := store.Save(ctx, runstore.Run{
		Name:    cfg.Name,
		Config:  settings,
		Samples: res.Samples,
		History: res.History,
	})
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return id, nil
}
