package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/menu-scheduler/internal/executor"
	"github.com/example/menu-scheduler/internal/history"
	"github.com/example/menu-scheduler/internal/merchant"
	"github.com/example/menu-scheduler/internal/notify"
	"github.com/example/menu-scheduler/internal/report"
	"github.com/example/menu-scheduler/internal/schedule"
)

// ErrBusy is returned when a run for the same merchant is still in flight.
var ErrBusy = errors.New("a run for this merchant is already in progress")

// Request is one invocation of an event for a merchant.
type Request struct {
	Merchant merchant.Merchant
	Event    string
	// At overrides the invocation instant. Zero means now.
	At     time.Time
	DryRun bool
}

// Runner resolves events into plans and applies them. It holds no schedule
// state between runs.
type Runner struct {
	Updater     executor.Updater
	Timeout     time.Duration
	Concurrency int
	Limiter     *rate.Limiter

	History  history.Recorder
	Notifier notify.Notifier
	Logger   *zap.Logger
	Now      func() time.Time

	mu      sync.Mutex
	running map[string]bool
}

func (r *Runner) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Plan resolves event for m at the given instant without side effects.
func (r *Runner) Plan(m merchant.Merchant, event string, at time.Time) (schedule.Plan, error) {
	ev, err := m.Rules.Event(event)
	if err != nil {
		return schedule.Plan{}, err
	}
	if at.IsZero() {
		at = r.now()
	}
	return schedule.Resolve(ev, m.Rules, m.Resolver.Resolve(at))
}

// Run resolves and applies one event. The returned error covers failures that
// prevent the run from starting; per-category failures live in the report.
func (r *Runner) Run(ctx context.Context, req Request) (report.Report, error) {
	m := req.Merchant
	log := r.logger().With(zap.String("merchant", m.Key), zap.String("event", req.Event))

	if _, err := m.Rules.Event(req.Event); err != nil {
		return report.Report{}, err
	}
	if !req.DryRun {
		if err := m.RequireMerchantID(); err != nil {
			return report.Report{}, err
		}
	}
	if !r.acquire(m.Key) {
		return report.Report{}, ErrBusy
	}
	defer r.release(m.Key)

	plan, err := r.Plan(m, req.Event, req.At)
	if err != nil {
		return report.Report{}, fmt.Errorf("resolve %s/%s: %w", m.Key, req.Event, err)
	}

	log.Info("run start",
		zap.String("local_time", plan.Moment.Instant.Format(time.RFC3339)),
		zap.String("today", plan.Moment.Today.String()),
		zap.String("tomorrow", plan.Moment.Tomorrow.String()),
		zap.Int("transitions", plan.Len()),
		zap.Bool("dry_run", req.DryRun))

	var rep report.Report
	if req.DryRun {
		rep = report.Planned(plan)
		rep.StartedAt = r.now()
		rep.FinishedAt = rep.StartedAt
	} else {
		ex := &executor.Executor{
			Updater:     r.Updater,
			MerchantID:  m.MerchantID,
			Timeout:     r.Timeout,
			Concurrency: r.Concurrency,
			Limiter:     r.Limiter,
			Logger:      log,
		}
		rep = ex.Apply(ctx, plan)
	}
	rep.RunID = uuid.NewString()
	rep.Merchant = m.Key

	log.Info("run finished",
		zap.String("run_id", rep.RunID),
		zap.String("status", string(rep.Status())),
		zap.Int("applied", rep.Applied()),
		zap.Int("failed", rep.Failed()),
		zap.Int("attempted", rep.Attempted()))

	if req.DryRun {
		return rep, nil
	}

	// Bookkeeping must not change the outcome of the run.
	if r.History != nil {
		if err := r.History.Record(ctx, rep); err != nil {
			log.Warn("record run history", zap.String("run_id", rep.RunID), zap.Error(err))
		}
	}
	if r.Notifier != nil && rep.Failed() > 0 {
		if err := r.Notifier.Notify(ctx, rep); err != nil {
			log.Warn("notify run failure", zap.String("run_id", rep.RunID), zap.Error(err))
		}
	}
	return rep, nil
}

func (r *Runner) acquire(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running == nil {
		r.running = make(map[string]bool)
	}
	if r.running[key] {
		return false
	}
	r.running[key] = true
	return true
}

func (r *Runner) release(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, key)
}
