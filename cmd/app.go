package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/menu-scheduler/internal/catalog"
	"github.com/example/menu-scheduler/internal/config"
	"github.com/example/menu-scheduler/internal/db"
	"github.com/example/menu-scheduler/internal/history"
	"github.com/example/menu-scheduler/internal/merchant"
	"github.com/example/menu-scheduler/internal/migrate"
	"github.com/example/menu-scheduler/internal/notify"
	"github.com/example/menu-scheduler/internal/scheduler"
)

func (a *app) registry() (*merchant.Registry, error) {
	return merchant.Load(a.cfg.MerchantsFile)
}

// openDB connects, pings and migrates the history database.
func (a *app) openDB(ctx context.Context) (*db.DB, error) {
	if a.cfg.DatabaseURL == "" {
		return nil, &config.ConfigurationError{Key: "DATABASE_URL", Reason: "required"}
	}
	d, err := db.Open(ctx, a.cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := d.Ping(ctx); err != nil {
		d.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := migrate.Up(ctx, d); err != nil {
		d.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return d, nil
}

// runner wires the catalog client and the optional history and notification
// collaborators. The returned func releases them.
func (a *app) runner(ctx context.Context) (*scheduler.Runner, func()) {
	r := &scheduler.Runner{
		Updater: catalog.New(a.cfg.CatalogBaseURL,
			catalog.Credentials{APIKey: a.cfg.APIKey, TenantID: a.cfg.TenantID},
			catalog.WithTimeout(a.cfg.UpdateTimeout)),
		Timeout:     a.cfg.UpdateTimeout,
		Concurrency: a.cfg.UpdateConcurrency,
		Logger:      a.log,
	}
	if a.cfg.UpdateRate > 0 {
		r.Limiter = rate.NewLimiter(rate.Limit(a.cfg.UpdateRate), max(1, int(a.cfg.UpdateRate)))
	}
	if a.cfg.SlackWebhookURL != "" {
		r.Notifier = notify.NewSlack(a.cfg.SlackWebhookURL)
	}

	cleanup := func() {}
	if a.cfg.DatabaseURL != "" {
		d, err := a.openDB(ctx)
		if err != nil {
			// History is bookkeeping; the run goes ahead without it.
			a.log.Warn("run history disabled", zap.Error(err))
		} else {
			r.History = history.NewRepo(d)
			cleanup = d.Close
		}
	}
	return r, cleanup
}
