package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/example/menu-scheduler/internal/report"
	"github.com/example/menu-scheduler/internal/schedule"
)

type mockUpdater struct {
	mock.Mock
}

func (m *mockUpdater) SetVisibility(ctx context.Context, merchantID string, c schedule.Category, visible bool) error {
	args := m.Called(ctx, merchantID, c, visible)
	return args.Error(0)
}

func categories(n int) []schedule.Category {
	out := make([]schedule.Category, n)
	for i := range out {
		id := string(rune('a' + i))
		out[i] = schedule.Category{ID: id, Name: "Category " + id}
	}
	return out
}

func showAll(label string, cats []schedule.Category) schedule.Batch {
	b := schedule.Batch{Label: label}
	for _, c := range cats {
		b.Transitions = append(b.Transitions, schedule.Transition{Category: c, Visible: true})
	}
	return b
}

func TestApplyPartialFailure(t *testing.T) {
	cats := categories(5)
	plan := schedule.Plan{Event: "evening-flip", Batches: []schedule.Batch{showAll("show breakfast", cats)}}

	for _, concurrency := range []int{1, 3} {
		up := &mockUpdater{}
		up.On("SetVisibility", mock.Anything, "m-1", cats[2], true).Return(errors.New("status 500: upstream"))
		for _, c := range []schedule.Category{cats[0], cats[1], cats[3], cats[4]} {
			up.On("SetVisibility", mock.Anything, "m-1", c, true).Return(nil)
		}

		ex := &Executor{Updater: up, MerchantID: "m-1", Concurrency: concurrency, Logger: zap.NewNop()}
		rep := ex.Apply(context.Background(), plan)

		assert.Equal(t, 4, rep.Applied())
		assert.Equal(t, 1, rep.Failed())
		assert.Equal(t, 5, rep.Attempted())
		assert.Equal(t, report.StatusPartial, rep.Status())
		assert.NoError(t, rep.Err())
		up.AssertNumberOfCalls(t, "SetVisibility", 5)

		failed := rep.Batches[0].Results[2]
		assert.Equal(t, report.OutcomeFailed, failed.Outcome)
		assert.Equal(t, "status 500: upstream", failed.Error)
		var terr *TransitionError
		require.True(t, errors.As(failed.Err, &terr))
		assert.Equal(t, cats[2], terr.Category)
		assert.True(t, terr.Visible)
	}
}

func TestApplyAllFailed(t *testing.T) {
	cats := categories(2)
	up := UpdaterFunc(func(context.Context, string, schedule.Category, bool) error {
		return errors.New("down")
	})
	ex := &Executor{Updater: up, MerchantID: "m-1"}
	rep := ex.Apply(context.Background(), schedule.Plan{Batches: []schedule.Batch{showAll("show", cats)}})

	assert.Equal(t, report.StatusFailed, rep.Status())
	assert.ErrorIs(t, rep.Err(), report.ErrRunFailed)
}

func TestApplyOrderUnderConcurrency(t *testing.T) {
	cats := categories(8)
	plan := schedule.Plan{Batches: []schedule.Batch{
		showAll("rotate daily_specials", cats[:4]),
		showAll("show breakfast", cats[4:6]),
		showAll("hide regular_menu", cats[6:]),
	}}

	// Earlier categories finish last.
	up := UpdaterFunc(func(_ context.Context, _ string, c schedule.Category, _ bool) error {
		time.Sleep(time.Duration('z'-c.ID[0]) * time.Millisecond / 4)
		return nil
	})
	ex := &Executor{Updater: up, Concurrency: 4}
	rep := ex.Apply(context.Background(), plan)

	require.Len(t, rep.Batches, 3)
	assert.Equal(t, "rotate daily_specials", rep.Batches[0].Label)
	assert.Equal(t, "show breakfast", rep.Batches[1].Label)
	assert.Equal(t, "hide regular_menu", rep.Batches[2].Label)

	var got []string
	for _, b := range rep.Batches {
		for _, r := range b.Results {
			assert.Equal(t, report.OutcomeApplied, r.Outcome)
			got = append(got, r.Category.ID)
		}
	}
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g", "h"}, got)
}

func TestApplyTimeout(t *testing.T) {
	cats := categories(2)
	up := UpdaterFunc(func(ctx context.Context, _ string, c schedule.Category, _ bool) error {
		if c.ID == "a" {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})
	ex := &Executor{Updater: up, Timeout: 20 * time.Millisecond}
	rep := ex.Apply(context.Background(), schedule.Plan{Batches: []schedule.Batch{showAll("show", cats)}})

	first := rep.Batches[0].Results[0]
	assert.Equal(t, report.OutcomeFailed, first.Outcome)
	assert.ErrorIs(t, first.Err, context.DeadlineExceeded)
	assert.Equal(t, report.OutcomeApplied, rep.Batches[0].Results[1].Outcome)
}

func TestApplySkipsNotApplicable(t *testing.T) {
	up := &mockUpdater{}
	ex := &Executor{Updater: up}
	rep := ex.Apply(context.Background(), schedule.Plan{Batches: []schedule.Batch{
		{Label: "show tonights_special", NotApplicable: true, Reason: "not applicable today"},
	}})

	up.AssertNotCalled(t, "SetVisibility", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, report.StatusNoop, rep.Status())
	assert.NoError(t, rep.Err())
	assert.True(t, rep.Batches[0].NotApplicable)
}

func TestApplyPanicIsIsolated(t *testing.T) {
	cats := categories(2)
	up := UpdaterFunc(func(_ context.Context, _ string, c schedule.Category, _ bool) error {
		if c.ID == "a" {
			panic("nil body")
		}
		return nil
	})
	rep := (&Executor{Updater: up}).Apply(context.Background(), schedule.Plan{Batches: []schedule.Batch{showAll("show", cats)}})

	assert.Equal(t, 1, rep.Failed())
	assert.Equal(t, 1, rep.Applied())
	assert.Contains(t, rep.Batches[0].Results[0].Error, "updater panic")
}

func TestApplyLimiterCancelled(t *testing.T) {
	cats := categories(3)
	up := &mockUpdater{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ex := &Executor{Updater: up, Limiter: rate.NewLimiter(rate.Limit(1), 1)}
	rep := ex.Apply(ctx, schedule.Plan{Batches: []schedule.Batch{showAll("show", cats)}})

	assert.Equal(t, 3, rep.Attempted())
	assert.Equal(t, 3, rep.Failed())
	up.AssertNotCalled(t, "SetVisibility", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// fakeCatalog keeps visibility per category ID the way the remote catalog does.
type fakeCatalog struct {
	mu    sync.Mutex
	state map[string]bool
}

func (f *fakeCatalog) SetVisibility(_ context.Context, _ string, c schedule.Category, visible bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[c.ID] = visible
	return nil
}

func (f *fakeCatalog) snapshot() map[string]bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]bool, len(f.state))
	for k, v := range f.state {
		out[k] = v
	}
	return out
}

func TestApplyIdempotent(t *testing.T) {
	cats := categories(3)
	plan := schedule.Plan{Batches: []schedule.Batch{
		{Label: "rotate", Transitions: []schedule.Transition{
			{Category: cats[0], Visible: false},
			{Category: cats[1], Visible: true},
		}},
		{Label: "hide regular_menu", Transitions: []schedule.Transition{{Category: cats[2], Visible: false}}},
	}}

	cat := &fakeCatalog{state: map[string]bool{}}
	ex := &Executor{Updater: cat, Concurrency: 2}

	first := ex.Apply(context.Background(), plan)
	after := cat.snapshot()
	second := ex.Apply(context.Background(), plan)

	assert.Equal(t, after, cat.snapshot())
	assert.Equal(t, map[string]bool{"a": false, "b": true, "c": false}, after)
	assert.Equal(t, report.StatusSucceeded, first.Status())
	assert.Equal(t, report.StatusSucceeded, second.Status())
}
