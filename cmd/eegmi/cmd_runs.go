package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"eegmi/internal/runstore"
)

func (a *app) runsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "runs [id]",
		Short: "List recorded training runs or show one run's history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.Output.Store == "" {
				return errors.New("no run ledger configured (set output.store or --store)")
			}
			store, err := runstore.Open(a.cfg.Output.Store)
			if err != nil {
				return err
			}
			defer store.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			defer w.Flush()

			if len(args) == 1 {
				h, err := store.History(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(w, "EPOCH\tLOSS\tACCURACY\tAUC\tVAL_LOSS\tVAL_ACCURACY\tVAL_AUC")
				for i := range h.Loss {
					fmt.Fprintf(w, "%d\t%.4f\t%.4f\t%.4f", i+1, h.Loss[i], h.Accuracy[i], h.AUC[i])
					if i < len(h.ValLoss) {
						fmt.Fprintf(w, "\t%.4f\t%.4f\t%.4f", h.ValLoss[i], h.ValAccuracy[i], h.ValAUC[i])
					} else {
						fmt.Fprint(w, "\t-\t-\t-")
					}
					fmt.Fprintln(w)
				}
				return nil
			}

			runs, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(w, "ID\tCREATED\tNAME\tWINDOWS\tEPOCHS\tLOSS\tVAL_ACCURACY")
			for _, r := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%.4f\t%.4f\n",
					r.ID, r.CreatedAt.Format(time.RFC3339), r.Name, r.Samples, r.Epochs, r.FinalLoss, r.FinalValAccuracy)
			}
			return nil
		},
	}
}
