package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config captures the knobs for a load, window, train run.
type Config struct {
	Data     DataConfig     `yaml:"data" json:"data"`
	Windows  WindowConfig   `yaml:"windows" json:"windows"`
	Model    ModelConfig    `yaml:"model" json:"model"`
	Training TrainingConfig `yaml:"training" json:"training"`
	Output   OutputConfig   `yaml:"output" json:"output"`
	Logging  LoggingConfig  `yaml:"logging" json:"logging"`
}

// DataConfig locates the recordings.
type DataConfig struct {
	Path     string `yaml:"path" json:"path"`
	Subjects []int  `yaml:"subjects" json:"subjects"`
	Runs     []int  `yaml:"runs" json:"runs"`
	BaseURL  string `yaml:"base_url" json:"base_url,omitempty"`
	Workers  int    `yaml:"workers" json:"workers"`
	Montage  string `yaml:"montage" json:"montage"`
}

// WindowConfig shapes the labeled windows and the training crop.
type WindowConfig struct {
	Tmin      float64        `yaml:"tmin" json:"tmin"`
	Tmax      float64        `yaml:"tmax" json:"tmax"`
	EventID   map[string]int `yaml:"event_id" json:"event_id,omitempty"`
	Baseline  []*float64     `yaml:"baseline" json:"baseline,omitempty"`
	CropStart float64        `yaml:"crop_start" json:"crop_start"`
	CropEnd   float64        `yaml:"crop_end" json:"crop_end"`
	Labels    map[int]int    `yaml:"labels" json:"labels,omitempty"`
}

// ModelConfig describes the classifier.
type ModelConfig struct {
	Units        []int   `yaml:"units" json:"units"`
	Activation   string  `yaml:"activation" json:"activation"`
	LearningRate float64 `yaml:"learning_rate" json:"learning_rate"`
	L2           float64 `yaml:"l2" json:"l2"`
	Seed         int64   `yaml:"seed" json:"seed"`
}

// TrainingConfig controls Fit.
type TrainingConfig struct {
	Epochs          int     `yaml:"epochs" json:"epochs"`
	BatchSize       int     `yaml:"batch_size" json:"batch_size"`
	ValidationSplit float64 `yaml:"validation_split" json:"validation_split"`
	Shuffle         *bool   `yaml:"shuffle" json:"shuffle"`
	Seed            int64   `yaml:"seed" json:"seed"`
}

// OutputConfig says where artifacts go.
type OutputConfig struct {
	Dir         string `yaml:"dir" json:"dir"`
	PlotHistory bool   `yaml:"plot_history" json:"plot_history"`
	PlotBands   bool   `yaml:"plot_bands" json:"plot_bands"`
	Store       string `yaml:"store" json:"store,omitempty"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	DataPath  string
	Subjects  []int
	Runs      []int
	Epochs    int
	BatchSize int
	Seed      int64
	OutputDir string
	Store     string
}

// Default returns the configuration used for keys missing from a file.
func Default() *Config {
	shuffle := true
	return &Config{
		Data: DataConfig{
			Subjects: []int{1},
			Runs:     []int{6, 10, 14},
			Workers:  1,
			Montage:  "standard_1005",
		},
		Windows: WindowConfig{
			Tmin:      -1,
			Tmax:      4,
			EventID:   map[string]int{"hands": 2, "feet": 3},
			CropStart: 1,
			CropEnd:   2,
			Labels:    map[int]int{2: 0, 3: 1},
		},
		Model: ModelConfig{
			Units:        []int{64, 32},
			Activation:   "relu",
			LearningRate: 0.003,
		},
		Training: TrainingConfig{
			Epochs:          10,
			BatchSize:       32,
			ValidationSplit: 0.2,
			Shuffle:         &shuffle,
			Seed:            42,
		},
		Output: OutputConfig{
			Dir:         "out",
			PlotHistory: true,
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a Config from YAML on top of Default. It does not validate, so
// that overrides can still fill required fields.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// Parse decodes YAML from r on top of Default. Unknown keys are errors.
func Parse(r io.Reader) (*Config, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if len(bytes.TrimSpace(raw)) == 0 {
		return cfg, nil
	}
	// yaml.v3 merges into non-nil maps, so file maps must start empty to
	// replace the defaults rather than extend them.
	defaults := cfg.Windows
	cfg.Windows.EventID = nil
	cfg.Windows.Labels = nil

	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, err
	}
	if cfg.Windows.EventID == nil {
		cfg.Windows.EventID = defaults.EventID
	}
	if cfg.Windows.Labels == nil {
		cfg.Windows.Labels = defaults.Labels
	}
	return cfg, nil
}

// ApplyOverrides updates c using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.DataPath != "" {
		c.Data.Path = o.DataPath
	}
	if len(o.Subjects) > 0 {
		c.Data.Subjects = o.Subjects
	}
	if len(o.Runs) > 0 {
		c.Data.Runs = o.Runs
	}
	if o.Epochs > 0 {
		c.Training.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.Training.BatchSize = o.BatchSize
	}
	if o.Seed != 0 {
		c.Training.Seed = o.Seed
		c.Model.Seed = o.Seed
	}
	if o.OutputDir != "" {
		c.Output.Dir = o.OutputDir
	}
	if o.Store != "" {
		c.Output.Store = o.Store
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if c.Data.Path == "" {
		return errors.New("data.path must be set")
	}
	if len(c.Data.Subjects) == 0 {
		return errors.New("data.subjects must list at least one subject")
	}
	if len(c.Data.Runs) == 0 {
		return errors.New("data.runs must list at least one run")
	}
	if c.Data.Workers <= 0 {
		c.Data.Workers = 1
	}
	if c.Windows.Tmin >= c.Windows.Tmax {
		return fmt.Errorf("windows.tmin (%g) must be before windows.tmax (%g)", c.Windows.Tmin, c.Windows.Tmax)
	}
	if c.Windows.CropStart > c.Windows.CropEnd {
		return fmt.Errorf("windows.crop_start (%g) must not be after windows.crop_end (%g)", c.Windows.CropStart, c.Windows.CropEnd)
	}
	if c.Windows.CropStart < c.Windows.Tmin || c.Windows.CropEnd > c.Windows.Tmax {
		return fmt.Errorf("windows crop [%g, %g] must lie within [%g, %g]",
			c.Windows.CropStart, c.Windows.CropEnd, c.Windows.Tmin, c.Windows.Tmax)
	}
	if n := len(c.Windows.Baseline); n != 0 && n != 2 {
		return fmt.Errorf("windows.baseline must have two entries (got %d)", n)
	}
	if len(c.Windows.Labels) == 0 {
		return errors.New("windows.labels must map at least one event code")
	}
	for code, label := range c.Windows.Labels {
		if label < 0 {
			return fmt.Errorf("windows.labels[%d] must be >= 0 (got %d)", code, label)
		}
	}
	for i, u := range c.Model.Units {
		if u <= 0 {
			return fmt.Errorf("model.units[%d] must be > 0 (got %d)", i, u)
		}
	}
	if c.Model.Activation == "" {
		return errors.New("model.activation must be set")
	}
	if c.Model.LearningRate <= 0 {
		return fmt.Errorf("model.learning_rate must be > 0 (got %g)", c.Model.LearningRate)
	}
	if c.Model.L2 < 0 {
		return fmt.Errorf("model.l2 must be >= 0 (got %g)", c.Model.L2)
	}
	if c.Training.Epochs <= 0 {
		return fmt.Errorf("training.epochs must be > 0 (got %d)", c.Training.Epochs)
	}
	if c.Training.BatchSize <= 0 {
		return fmt.Errorf("training.batch_size must be > 0 (got %d)", c.Training.BatchSize)
	}
	if c.Training.ValidationSplit < 0 || c.Training.ValidationSplit >= 1 {
		return fmt.Errorf("training.validation_split must be in [0, 1) (got %g)", c.Training.ValidationSplit)
	}
	if c.Training.Shuffle == nil {
		shuffle := true
		c.Training.Shuffle = &shuffle
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "out"
	}
	return nil
}

// Classes returns the size of the label space: one more than the largest label.
func (c *Config) Classes() int {
	n := 0
	for _, v := range c.Windows.Labels {
		n = max(n, v+1)
	}
	return n
}
