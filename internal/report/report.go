package report

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/menu-scheduler/internal/calendar"
	"github.com/example/menu-scheduler/internal/schedule"
)

// ErrRunFailed is returned when every attempted transition of a run failed.
var ErrRunFailed = errors.New("run failed: every attempted transition failed")

// ErrRunPartial is returned by StrictErr when some transitions failed.
var ErrRunPartial = errors.New("run partially failed")

type Outcome string

const (
	OutcomePending Outcome = "pending"
	OutcomePlanned Outcome = "planned"
	OutcomeApplied Outcome = "applied"
	OutcomeFailed  Outcome = "failed"
)

type Status string

const (
	StatusNoop      Status = "noop"
	StatusPlanned   Status = "planned"
	StatusSucceeded Status = "succeeded"
	StatusPartial   Status = "partial"
	StatusFailed    Status = "failed"
)

// Result is the outcome of one transition.
type Result struct {
	Category schedule.Category `json:"category"`
	Visible  bool              `json:"visible"`
	Outcome  Outcome           `json:"outcome"`
	Error    string            `json:"error,omitempty"`
	Duration time.Duration     `json:"duration_ns,omitempty"`

	Err error `json:"-"`
}

func (r Result) State() string {
	return schedule.Transition{Category: r.Category, Visible: r.Visible}.State()
}

// Line renders the result the way operators read it in logs.
func (r Result) Line() string {
	switch r.Outcome {
	case OutcomeApplied:
		return fmt.Sprintf("✓ %s → %s", r.Category.Name, r.State())
	case OutcomeFailed:
		return fmt.Sprintf("✗ %s → ERROR: %s", r.Category.Name, r.Error)
	default:
		return fmt.Sprintf("• %s → %s", r.Category.Name, r.State())
	}
}

type Batch struct {
	Label         string   `json:"label"`
	NotApplicable bool     `json:"not_applicable,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	Results       []Result `json:"results"`
}

func (b Batch) count(o Outcome) int {
	n := 0
	for _, r := range b.Results {
		if r.Outcome == o {
			n++
		}
	}
	return n
}

func (b Batch) Applied() int   { return b.count(OutcomeApplied) }
func (b Batch) Failed() int    { return b.count(OutcomeFailed) }
func (b Batch) Attempted() int { return b.Applied() + b.Failed() }

// Report is the structured outcome of one invocation.
type Report struct {
	RunID      string    `json:"run_id"`
	Merchant   string    `json:"merchant"`
	Event      string    `json:"event"`
	Date       string    `json:"date"`
	Today      string    `json:"today"`
	Tomorrow   string    `json:"tomorrow"`
	LocalTime  string    `json:"local_time"`
	DryRun     bool      `json:"dry_run,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Batches    []Batch   `json:"batches"`
}

// New lays out a report with one pending result per transition of plan.
func New(plan schedule.Plan) Report {
	r := Report{
		Event:   plan.Event,
		Batches: make([]Batch, 0, len(plan.Batches)),
	}
	r.SetMoment(plan.Moment)
	for _, pb := range plan.Batches {
		b := Batch{
			Label:         pb.Label,
			NotApplicable: pb.NotApplicable,
			Reason:        pb.Reason,
			Results:       make([]Result, len(pb.Transitions)),
		}
		for i, t := range pb.Transitions {
			b.Results[i] = Result{Category: t.Category, Visible: t.Visible, Outcome: OutcomePending}
		}
		r.Batches = append(r.Batches, b)
	}
	return r
}

// Planned is the report of a dry run: nothing is attempted.
func Planned(plan schedule.Plan) Report {
	r := New(plan)
	r.DryRun = true
	for bi := range r.Batches {
		for i := range r.Batches[bi].Results {
			r.Batches[bi].Results[i].Outcome = OutcomePlanned
		}
	}
	return r
}

func (r *Report) SetMoment(m calendar.Moment) {
	if m.Instant.IsZero() {
		return
	}
	r.Date = m.Date
	r.Today = m.Today.String()
	r.Tomorrow = m.Tomorrow.String()
	r.LocalTime = m.Instant.Format("2006-01-02 15:04 MST")
}

func (r Report) sum(f func(Batch) int) int {
	n := 0
	for _, b := range r.Batches {
		n += f(b)
	}
	return n
}

func (r Report) Applied() int   { return r.sum(Batch.Applied) }
func (r Report) Failed() int    { return r.sum(Batch.Failed) }
func (r Report) Attempted() int { return r.sum(Batch.Attempted) }

func (r Report) Status() Status {
	switch {
	case r.DryRun:
		return StatusPlanned
	case r.Attempted() == 0:
		return StatusNoop
	case r.Failed() == 0:
		return StatusSucceeded
	case r.Applied() == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// Err reports the run as failed only when every attempted transition failed.
// A run with nothing to do is a success.
func (r Report) Err() error {
	if r.Status() == StatusFailed {
		return ErrRunFailed
	}
	return nil
}

// StrictErr also fails runs where only some transitions failed.
func (r Report) StrictErr() error {
	if err := r.Err(); err != nil {
		return err
	}
	if r.Status() == StatusPartial {
		return fmt.Errorf("%w: %d of %d transitions failed", ErrRunPartial, r.Failed(), r.Attempted())
	}
	return nil
}

func (r Report) Summary() string {
	if r.DryRun {
		n := 0
		for _, b := range r.Batches {
			n += len(b.Results)
		}
		return fmt.Sprintf("%s/%s: dry run, %d transitions planned", r.Merchant, r.Event, n)
	}
	return fmt.Sprintf("%s/%s: %s, %d applied, %d failed, %d attempted",
		r.Merchant, r.Event, r.Status(), r.Applied(), r.Failed(), r.Attempted())
}

// Lines renders the report for humans, batch by batch.
func (r Report) Lines() []string {
	var out []string
	if r.LocalTime != "" {
		out = append(out, fmt.Sprintf("[%s] %s", r.LocalTime, r.Event))
		out = append(out, fmt.Sprintf("Today: %s, Tomorrow: %s", r.Today, r.Tomorrow))
	}
	for _, b := range r.Batches {
		out = append(out, b.Label+":")
		if b.NotApplicable {
			out = append(out, "  - not applicable: "+b.Reason)
			continue
		}
		if len(b.Results) == 0 {
			out = append(out, "  - nothing to change")
			continue
		}
		for _, res := range b.Results {
			out = append(out, "  "+res.Line())
		}
		if b.Reason != "" {
			out = append(out, "  - note: "+b.Reason)
		}
	}
	out = append(out, r.Summary())
	return out
}
