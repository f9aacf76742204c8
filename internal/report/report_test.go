package report

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/menu-scheduler/internal/calendar"
	"github.com/example/menu-scheduler/internal/schedule"
)

func result(name string, visible bool, o Outcome) Result {
	r := Result{Category: schedule.Category{ID: name, Name: name}, Visible: visible, Outcome: o}
	if o == OutcomeFailed {
		r.Error = "boom"
	}
	return r
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name    string
		batches []Batch
		dryRun  bool
		status  Status
		err     error
		strict  error
	}{
		{
			name:    "Should be noop when nothing was attempted",
			batches: []Batch{{Label: "show tonights_special", NotApplicable: true, Reason: "not applicable today"}},
			status:  StatusNoop,
		},
		{
			name:    "Should succeed when every transition applied",
			batches: []Batch{{Results: []Result{result("a", true, OutcomeApplied)}}},
			status:  StatusSucceeded,
		},
		{
			name: "Should be partial when some failed",
			batches: []Batch{
				{Results: []Result{result("a", true, OutcomeApplied)}},
				{Results: []Result{result("b", false, OutcomeFailed)}},
			},
			status: StatusPartial,
			strict: ErrRunPartial,
		},
		{
			name: "Should fail when every attempt failed",
			batches: []Batch{
				{Results: []Result{result("a", true, OutcomeFailed), result("b", false, OutcomeFailed)}},
			},
			status: StatusFailed,
			err:    ErrRunFailed,
			strict: ErrRunFailed,
		},
		{
			name:    "Should report planned for dry runs",
			batches: []Batch{{Results: []Result{result("a", true, OutcomePlanned)}}},
			dryRun:  true,
			status:  StatusPlanned,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Report{Merchant: "howells", Event: "morning-special", DryRun: tt.dryRun, Batches: tt.batches}
			assert.Equal(t, tt.status, r.Status())

			if tt.err == nil {
				assert.NoError(t, r.Err())
			} else {
				assert.True(t, errors.Is(r.Err(), tt.err))
			}
			if tt.strict == nil {
				assert.NoError(t, r.StrictErr())
			} else {
				assert.True(t, errors.Is(r.StrictErr(), tt.strict))
			}
		})
	}
}

func TestNewFromPlan(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	require.NoError(t, err)
	m := calendar.Resolver{Location: loc}.Resolve(time.Date(2024, 6, 5, 3, 0, 0, 0, time.UTC))

	plan := schedule.Plan{
		Event:  "evening-rotation",
		Moment: m,
		Batches: []schedule.Batch{
			{Label: "rotate", Transitions: []schedule.Transition{
				{Category: schedule.Category{ID: "a", Name: "Special A"}, Visible: false},
				{Category: schedule.Category{ID: "b", Name: "Special B"}, Visible: true},
			}},
			{Label: "show tonights_special", NotApplicable: true, Reason: "not applicable today"},
		},
	}

	r := New(plan)
	assert.Equal(t, "tuesday", r.Today)
	assert.Equal(t, "wednesday", r.Tomorrow)
	assert.Equal(t, "2024-06-04", r.Date)
	require.Len(t, r.Batches, 2)
	assert.Equal(t, OutcomePending, r.Batches[0].Results[1].Outcome)
	assert.Equal(t, 0, r.Attempted())

	dry := Planned(plan)
	assert.Equal(t, StatusPlanned, dry.Status())
	assert.Equal(t, "• Special B → ON", dry.Batches[0].Results[1].Line())
	assert.Contains(t, dry.Summary(), "2 transitions planned")
}

func TestLines(t *testing.T) {
	r := Report{
		Merchant: "dos-hermanos",
		Event:    "weekend-evening",
		Batches: []Batch{
			{Label: "Rotating daily specials", Results: []Result{result("Taco Tuesday", false, OutcomeApplied)}},
			{Label: "Turning ON breakfast", Results: []Result{result("Breakfast", true, OutcomeFailed)}},
			{Label: "Hiding specials", NotApplicable: true, Reason: "no entry for monday"},
		},
	}

	assert.Equal(t, []string{
		"Rotating daily specials:",
		"  ✓ Taco Tuesday → OFF",
		"Turning ON breakfast:",
		"  ✗ Breakfast → ERROR: boom",
		"Hiding specials:",
		"  - not applicable: no entry for monday",
		"dos-hermanos/weekend-evening: partial, 1 applied, 1 failed, 2 attempted",
	}, r.Lines())
}
