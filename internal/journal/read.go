package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Run is a recorded run with row counts.
type Run struct {
	ID        string
	Ordinal   int64
	Label     string
	StartedAt time.Time
	Ticks     int
	Failures  int
}

// Tick is one recorded pass over an event group.
type Tick struct {
	Seq       int64
	Event     string
	DeltaTime float64
	StartedAt time.Time
	Skipped   []string
}

// Sample is one recorded system run.
type Sample struct {
	Seq      int64
	Position int
	System   string
	Duration time.Duration
	Failed   bool
}

// Failure is one recorded system failure.
type Failure struct {
	ID      int64
	Seq     int64
	Event   string
	System  string
	Phase   string
	Message string
	At      time.Time
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}

// Runs returns every recorded run in the order they began.
// Returns an empty slice (not nil) if no runs exist.
func (j *Journal) Runs(ctx context.Context) ([]Run, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT r.id, r.ordinal, r.label, r.started_at,
		       (SELECT COUNT(*) FROM ticks t WHERE t.run_id = r.id),
		       (SELECT COUNT(*) FROM failures f WHERE f.run_id = r.id)
		FROM runs r
		ORDER BY r.ordinal ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &r.Ordinal, &r.Label, &started, &r.Ticks, &r.Failures); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if r.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently started run, or "" if there is none.
func (j *Journal) LatestRun(ctx context.Context) (string, error) {
	var id string
	err := j.db.QueryRowContext(ctx, `
		SELECT COALESCE((SELECT id FROM runs ORDER BY ordinal DESC LIMIT 1), '')
	`).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("query latest run: %w", err)
	}
	return id, nil
}

// Ticks returns the ticks of a run ordered by seq.
func (j *Journal) Ticks(ctx context.Context, runID string) ([]Tick, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, event, delta_time, started_at, skipped
		FROM ticks
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query ticks: %w", err)
	}
	defer rows.Close()

	ticks := []Tick{}
	for rows.Next() {
		var t Tick
		var started, skipped string
		if err := rows.Scan(&t.Seq, &t.Event, &t.DeltaTime, &started, &skipped); err != nil {
			return nil, fmt.Errorf("scan tick: %w", err)
		}
		if t.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(skipped), &t.Skipped); err != nil {
			return nil, fmt.Errorf("decode skipped: %w", err)
		}
		ticks = append(ticks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticks: %w", err)
	}
	return ticks, nil
}

// Samples returns the system runs of a run ordered by seq, then position.
func (j *Journal) Samples(ctx context.Context, runID string) ([]Sample, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT seq, position, system, duration_ns, failed
		FROM samples
		WHERE run_id = ?
		ORDER BY seq ASC, position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		var s Sample
		var ns int64
		if err := rows.Scan(&s.Seq, &s.Position, &s.System, &ns, &s.Failed); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		s.Duration = time.Duration(ns)
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

// Failures returns the failures of a run ordered by seq, then id.
func (j *Journal) Failures(ctx context.Context, runID string) ([]Failure, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, seq, event, system, phase, message, at
		FROM failures
		WHERE run_id = ?
		ORDER BY seq ASC, id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query failures: %w", err)
	}
	defer rows.Close()

	failures := []Failure{}
	for rows.Next() {
		var f Failure
		var at string
		if err := rows.Scan(&f.ID, &f.Seq, &f.Event, &f.System, &f.Phase, &f.Message, &at); err != nil {
			return nil, fmt.Errorf("scan failure: %w", err)
		}
		if f.At, err = parseTime(at); err != nil {
			return nil, err
		}
		failures = append(failures, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate failures: %w", err)
	}
	return failures, nil
}
