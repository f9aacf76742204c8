package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/menu-scheduler/internal/config"
	"github.com/example/menu-scheduler/internal/logger"
	"github.com/example/menu-scheduler/internal/schedule"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

// usageError marks errors caused by how the command was invoked.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// app carries what every command shares once flags and env are read.
type app struct {
	cfg config.Config
	log *zap.Logger

	merchantsFile string
	logLevel      string
}

func NewRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}

	root := &cobra.Command{
		Use:           "menusched",
		Short:         "Show and hide Hyperzod menu categories on each merchant's schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; real environment variables win.
			_ = godotenv.Load()

			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if a.merchantsFile != "" {
				cfg.MerchantsFile = a.merchantsFile
			}
			if a.logLevel != "" {
				cfg.LogLevel = a.logLevel
			}
			log, err := logger.New(cfg.LogLevel, cfg.Env)
			if err != nil {
				return &config.ConfigurationError{Key: "LOG_LEVEL", Reason: err.Error()}
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.PersistentFlags().StringVar(&a.merchantsFile, "merchants", "", "merchants file (overrides MERCHANTS_FILE)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newKeysCmd())
	root.AddCommand(newRunCmd(a))
	root.AddCommand(newPlanCmd(a))
	root.AddCommand(newEventsCmd(a))
	root.AddCommand(newCrontabCmd(a))
	root.AddCommand(newValidateCmd(a))
	root.AddCommand(newHistoryCmd(a))
	root.AddCommand(newServerCmd(a))
	root.AddCommand(newUserCmd(a))

	return root
}

// exactArgs is cobra.ExactArgs reported as a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

// exitCode maps an error to the process exit status: 2 for invocation
// problems, 1 for everything else.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var (
		usage   *usageError
		unknown *schedule.UnknownEventError
	)
	if errors.As(err, &usage) || errors.As(err, &unknown) {
		return 2
	}
	return 1
}

func Execute() {
	err := NewRootCmd().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	os.Exit(exitCode(err))
}
