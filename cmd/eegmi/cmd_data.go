package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"eegmi/internal/config"
	"eegmi/internal/dataset"
	"eegmi/internal/trainer"
	"eegmi/internal/viz"
)

func (a *app) fetchCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Download the configured subjects and runs",
		Long: `Download the configured subjects and runs into the data path, skipping
recordings that are already stored there. With --list, print the stored
recordings instead of downloading.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.validConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if list {
				cached, err := dataset.Cached(cfg.Data.Path)
				if err != nil {
					return err
				}
				for _, c := range cached {
					fmt.Fprintf(out, "S%03d\tR%02d\t%s\n", c.Subject, c.Run, c.Path)
				}
				a.logger.Debug("cached recordings", zap.Int("count", len(cached)))
				return nil
			}

			opts := trainer.FromConfig(cfg).Load.FetchOptions
			opts.Logger = a.logger
			paths, err := dataset.Fetch(cmd.Context(), opts)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(out, p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "List recordings already stored under the data path")
	return cmd
}

func (a *app) bandsCmd() *cobra.Command {
	var band, title string
	cmd := &cobra.Command{
		Use:   "bands",
		Short: "Plot the averaged windows of each frequency band",
		Long: `Load the configured recordings, window them around events and write one
PNG per frequency band (Delta, Theta, Alpha, Beta) into the output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.validConfig()
			if err != nil {
				return err
			}
			rc := trainer.FromConfig(cfg)
			rc.Load.Logger = a.logger
			raw, err := dataset.LoadRecording(cmd.Context(), rc.Load)
			if err != nil {
				return err
			}
			ep, err := dataset.Segment(raw, rc.Windows)
			if err != nil {
				return err
			}
			a.logger.Debug("windows cut", zap.Int("windows", ep.Len()), zap.Int("samples", ep.Samples()))

			paths, err := viz.PlotBand(dataset.SplitByFrequencyBand(ep), band, title, cfg.Output.Dir)
			if err != nil {
				return err
			}
			for _, p := range paths {
				fmt.Fprintln(cmd.OutOrStdout(), p)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&band, "band", viz.AllBands, "Band to plot (Delta, Theta, Alpha, Beta or all)")
	cmd.Flags().StringVar(&title, "title", viz.DefaultTitle, "Plot title, also used as file name prefix")
	return cmd
}

func (a *app) trainCmd() *cobra.Command {
	var epochs, batchSize int
	var seed int64
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a classifier on hands/feet motor-imagery windows",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.cfg.ApplyOverrides(config.Overrides{Epochs: epochs, BatchSize: batchSize, Seed: seed})
			cfg, err := a.validConfig()
			if err != nil {
				return err
			}
			res, err := trainer.Run(cmd.Context(), trainer.FromConfig(cfg), a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			last := res.History.Epochs() - 1
			fmt.Fprintf(out, "windows=%d shape=(%d, %d) epochs=%d loss=%.4f accuracy=%.4f auc=%.4f\n",
				res.Samples, res.Channels, res.Times, res.History.Epochs(),
				res.History.Loss[last], res.History.Accuracy[last], res.History.AUC[last])
			if len(res.History.ValLoss) > 0 {
				fmt.Fprintf(out, "val_loss=%.4f val_accuracy=%.4f val_auc=%.4f\n",
					res.History.ValLoss[last], res.History.ValAccuracy[last], res.History.ValAUC[last])
			}
			if res.HistoryPlot != "" {
				fmt.Fprintln(out, res.HistoryPlot)
			}
			for _, p := range res.BandPlots {
				fmt.Fprintln(out, p)
			}
			if res.RunID != "" {
				fmt.Fprintf(out, "run %s\n", res.RunID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&epochs, "epochs", 0, "Number of training epochs")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Batch size")
	cmd.Flags().Int64Var(&seed, "seed", 0, "PRNG seed for initialization and shuffling")
	return cmd
}
