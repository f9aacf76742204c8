package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/example/menu-scheduler/internal/report"
	"github.com/example/menu-scheduler/internal/scheduler"
)

type runFlags struct {
	merchant string
	dryRun   bool
	asJSON   bool
	strict   bool
	at       string
}

func (f *runFlags) register(cmd *cobra.Command, withApply bool) {
	cmd.Flags().StringVar(&f.merchant, "merchant", "", "merchant key from the merchants file")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print the report as JSON")
	cmd.Flags().StringVar(&f.at, "at", "", "resolve the event at this RFC3339 instant instead of now")
	if withApply {
		cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "print the plan without calling the catalog")
		cmd.Flags().BoolVar(&f.strict, "strict", false, "exit non-zero when any transition failed")
	}
}

func (f *runFlags) instant() (time.Time, error) {
	if f.at == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, f.at)
	if err != nil {
		return time.Time{}, &usageError{err: fmt.Errorf("--at must be an RFC3339 time: %w", err)}
	}
	return t, nil
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run --merchant KEY EVENT",
		Short: "Resolve an event for a merchant and apply it to the catalog",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, f, args[0])
		},
	}
	f.register(cmd, true)
	return cmd
}

func newPlanCmd(a *app) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "plan --merchant KEY EVENT",
		Short: "Print what an event would change without calling the catalog",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f.dryRun = true
			return a.run(cmd, f, args[0])
		},
	}
	f.register(cmd, false)
	return cmd
}

func (a *app) run(cmd *cobra.Command, f runFlags, event string) error {
	if f.merchant == "" {
		return &usageError{err: fmt.Errorf("--merchant is required")}
	}
	at, err := f.instant()
	if err != nil {
		return err
	}
	reg, err := a.registry()
	if err != nil {
		return err
	}
	m, err := reg.Get(f.merchant)
	if err != nil {
		return &usageError{err: err}
	}
	// Unknown events fail before credentials are looked at.
	if _, err := m.Rules.Event(event); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var runner *scheduler.Runner
	if f.dryRun {
		runner = &scheduler.Runner{Logger: a.log}
	} else {
		if err := a.cfg.RequireCatalog(); err != nil {
			return err
		}
		var cleanup func()
		runner, cleanup = a.runner(ctx)
		defer cleanup()
	}

	rep, err := runner.Run(ctx, scheduler.Request{Merchant: m, Event: event, At: at, DryRun: f.dryRun})
	if err != nil {
		return err
	}
	if err := printReport(cmd.OutOrStdout(), rep, f.asJSON); err != nil {
		return err
	}
	if f.strict {
		return rep.StrictErr()
	}
	return rep.Err()
}

func printReport(w io.Writer, rep report.Report, asJSON bool) error {
	if asJSON {
		b, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	for _, line := range rep.Lines() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
