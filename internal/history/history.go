package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/menu-scheduler/internal/db"
	"github.com/example/menu-scheduler/internal/report"
)

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, r report.Report) error
}

// Store is what the repo needs from the database.
type Store interface {
	db.Querier
	InTx(ctx context.Context, fn func(q db.Querier) error) error
}

type Run struct {
	ID         string
	Merchant   string
	Event      string
	Date       string
	Today      string
	Tomorrow   string
	Status     report.Status
	Applied    int
	Failed     int
	StartedAt  time.Time
	FinishedAt time.Time
}

type Transition struct {
	Batch        string
	CategoryID   string
	CategoryName string
	Visible      bool
	Outcome      report.Outcome
	Error        *string
}

type Repo struct{ db Store }

func NewRepo(d Store) *Repo { return &Repo{db: d} }

// Record stores the run and every transition it attempted in one transaction.
func (r *Repo) Record(ctx context.Context, rep report.Report) error {
	if rep.RunID == "" {
		return errors.New("history: report has no run id")
	}
	return r.db.InTx(ctx, func(q db.Querier) error {
		if err := q.Exec(ctx, `
INSERT INTO runs(id,merchant,event,local_date,today,tomorrow,status,applied,failed,started_at,finished_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
			rep.RunID, rep.Merchant, rep.Event, rep.Date, rep.Today, rep.Tomorrow, string(rep.Status()),
			rep.Applied(), rep.Failed(), rep.StartedAt, rep.FinishedAt,
		); err != nil {
			return fmt.Errorf("history: insert run: %w", err)
		}

		pos := 0
		for _, b := range rep.Batches {
			for _, res := range b.Results {
				var errText *string
				if res.Error != "" {
					e := res.Error
					errText = &e
				}
				if err := q.Exec(ctx, `
INSERT INTO run_transitions(run_id,position,batch,category_id,category_name,visible,outcome,error)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
					rep.RunID, pos, b.Label, res.Category.ID, res.Category.Name, res.Visible, string(res.Outcome), errText,
				); err != nil {
					return fmt.Errorf("history: insert transition %d: %w", pos, err)
				}
				pos++
			}
		}
		return nil
	})
}

// Recent lists the latest runs, newest first. An empty merchant lists all.
func (r *Repo) Recent(ctx context.Context, merchant string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
SELECT id,merchant,event,local_date,today,tomorrow,status,applied,failed,started_at,finished_at
FROM runs
WHERE $1 = '' OR merchant = $1
ORDER BY started_at DESC
LIMIT $2`, merchant, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var run Run
		var status string
		if err := rows.Scan(&run.ID, &run.Merchant, &run.Event, &run.Date, &run.Today, &run.Tomorrow,
			&status, &run.Applied, &run.Failed, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		run.Status = report.Status(status)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *Repo) Transitions(ctx context.Context, runID string) ([]Transition, error) {
	rows, err := r.db.Query(ctx, `
SELECT batch,category_id,category_name,visible,outcome,error
FROM run_transitions
WHERE run_id=$1
ORDER BY position`, runID)
	if err != nil {
		return nil, db.WrapNotFound(err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var t Transition
		var outcome string
		if err := rows.Scan(&t.Batch, &t.CategoryID, &t.CategoryName, &t.Visible, &outcome, &t.Error); err != nil {
			return nil, err
		}
		t.Outcome = report.Outcome(outcome)
		out = append(out, t)
	}
	return out, rows.Err()
}
