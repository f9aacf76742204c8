package executor

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/example/menu-scheduler/internal/report"
	"github.com/example/menu-scheduler/internal/schedule"
)

// Updater sets the visibility of one category in the remote catalog.
type Updater interface {
	SetVisibility(ctx context.Context, merchantID string, c schedule.Category, visible bool) error
}

// UpdaterFunc adapts a function to Updater.
type UpdaterFunc func(ctx context.Context, merchantID string, c schedule.Category, visible bool) error

func (f UpdaterFunc) SetVisibility(ctx context.Context, merchantID string, c schedule.Category, visible bool) error {
	return f(ctx, merchantID, c, visible)
}

// TransitionError records a single failed update. It never aborts the run.
type TransitionError struct {
	Category schedule.Category
	Visible  bool
	Err      error
}

func (e *TransitionError) Error() string {
	state := "OFF"
	if e.Visible {
		state = "ON"
	}
	return fmt.Sprintf("set %s (%s) %s: %v", e.Category.Name, e.Category.ID, state, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// Executor applies a plan against an Updater. Every transition is attempted
// exactly once; failures are isolated per category and rolled into the report.
type Executor struct {
	Updater    Updater
	MerchantID string

	// Timeout bounds each update call. Zero means no per-call deadline.
	Timeout time.Duration
	// Concurrency above one applies transitions of a batch in parallel.
	Concurrency int
	// Limiter, when set, is shared by every call of the run.
	Limiter *rate.Limiter
	Logger  *zap.Logger
}

func (e *Executor) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Apply runs the batches of plan in order. The report layout mirrors the plan
// regardless of completion order.
func (e *Executor) Apply(ctx context.Context, plan schedule.Plan) report.Report {
	rep := report.New(plan)
	rep.StartedAt = time.Now()
	log := e.logger()

	for bi, b := range plan.Batches {
		if b.NotApplicable {
			log.Info("batch not applicable", zap.String("batch", b.Label), zap.String("reason", b.Reason))
			continue
		}
		log.Info(b.Label, zap.Int("transitions", len(b.Transitions)))

		results := rep.Batches[bi].Results
		if e.Concurrency <= 1 {
			for i, t := range b.Transitions {
				results[i] = e.apply(ctx, b.Label, t)
			}
			continue
		}

		var g errgroup.Group
		g.SetLimit(e.Concurrency)
		for i, t := range b.Transitions {
			i, t := i, t
			g.Go(func() error {
				results[i] = e.apply(ctx, b.Label, t)
				return nil
			})
		}
		_ = g.Wait()
	}

	rep.FinishedAt = time.Now()
	return rep
}

func (e *Executor) apply(ctx context.Context, label string, t schedule.Transition) report.Result {
	res := report.Result{Category: t.Category, Visible: t.Visible}

	start := time.Now()
	err := e.call(ctx, t)
	res.Duration = time.Since(start)

	fields := []zap.Field{
		zap.String("batch", label),
		zap.String("category_id", t.Category.ID),
		zap.Bool("visible", t.Visible),
		zap.Duration("took", res.Duration),
	}
	if err != nil {
		res.Outcome = report.OutcomeFailed
		res.Error = err.Error()
		res.Err = &TransitionError{Category: t.Category, Visible: t.Visible, Err: err}
		e.logger().Warn(res.Line(), append(fields, zap.Error(err))...)
		return res
	}
	res.Outcome = report.OutcomeApplied
	e.logger().Info(res.Line(), fields...)
	return res
}

func (e *Executor) call(ctx context.Context, t schedule.Transition) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("updater panic: %v", r)
		}
	}()

	if e.Limiter != nil {
		if err := e.Limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	return e.Updater.SetVisibility(ctx, e.MerchantID, t.Category, t.Visible)
}
