package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/menu-scheduler/internal/auth"
	"github.com/example/menu-scheduler/internal/history"
	"github.com/example/menu-scheduler/internal/web"
)

func newServerCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "server",
		Short: "Run the operator web UI",
		Args:  exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireServer(); err != nil {
				return err
			}
			if err := a.cfg.RequireCatalog(); err != nil {
				return err
			}
			reg, err := a.registry()
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := a.openDB(ctx)
			if err != nil {
				return err
			}
			defer d.Close()

			runner, cleanup := a.runner(ctx)
			defer cleanup()

			ws := &web.Server{
				Auth:      auth.NewStore(d, a.cfg.CookieHashKey, a.cfg.CookieBlockKey),
				Merchants: reg,
				Runner:    runner,
				History:   history.NewRepo(d),
				Logger:    a.log,
			}
			return web.Start(ctx, a.cfg.ListenAddr, ws.Routes(), a.log)
		},
	}
}
