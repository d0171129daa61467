package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"eegmi/internal/config"
)

// app holds the state shared by every subcommand.
type app struct {
	cfgPath   string
	verbose   bool
	overrides config.Overrides

	cfg    *config.Config
	logger *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "eegmi",
		Short: "EEG motor-imagery classification toolkit",
		Long: `eegmi downloads EEG Motor Movement/Imagery recordings, cuts them into
labeled windows around hands/feet events and trains a feed-forward classifier.

Settings come from a YAML file (--config) and can be overridden by flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgPath, "config", "c", "", "Path to YAML config")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "Enable debug logging")
	flags.StringVar(&a.overrides.DataPath, "path", "", "Dataset directory")
	flags.IntSliceVar(&a.overrides.Subjects, "subjects", nil, "Subjects to load (1-109)")
	flags.IntSliceVar(&a.overrides.Runs, "runs", nil, "Runs to load (1-14)")
	flags.StringVarP(&a.overrides.OutputDir, "output", "o", "", "Directory for plots")
	flags.StringVar(&a.overrides.Store, "store", "", "SQLite run ledger")

	root.AddCommand(a.fetchCmd(), a.trainCmd(), a.bandsCmd(), a.runsCmd())
	return root
}

// setup loads the configuration and builds the logger.
func (a *app) setup() error {
	cfg := config.Default()
	if a.cfgPath != "" {
		var err error
		cfg, err = config.Load(a.cfgPath)
		if err != nil {
			return err
		}
	}
	cfg.ApplyOverrides(a.overrides)
	a.cfg = cfg

	zcfg := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if a.verbose {
		level = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	a.logger, err = zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

func (a *app) validConfig() (*config.Config, error) {
	if a.cfg == nil {
		return nil, errors.New("config not loaded")
	}
	if err := a.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return a.cfg, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
