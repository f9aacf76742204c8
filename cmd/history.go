package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/menu-scheduler/internal/history"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		key   string
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs recorded in the history database",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			d, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			repo := history.NewRepo(d)
			out := cmd.OutOrStdout()

			if runID != "" {
				ts, err := repo.Transitions(ctx, runID)
				if err != nil {
					return err
				}
				for _, t := range ts {
					line := fmt.Sprintf("%-30s %-8s %s (%s) visible=%t", t.Batch, t.Outcome, t.CategoryName, t.CategoryID, t.Visible)
					if t.Error != nil {
						line += " error=" + *t.Error
					}
					fmt.Fprintln(out, line)
				}
				return nil
			}

			runs, err := repo.Recent(ctx, key, limit)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %-14s %-24s %-9s applied=%d failed=%d  %s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"), r.Merchant, r.Event, r.Status, r.Applied, r.Failed, r.ID)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&key, "merchant", "", "only runs of this merchant")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	cmd.Flags().StringVar(&runID, "run", "", "show the transitions of one run")
	return cmd
}
