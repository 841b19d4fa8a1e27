package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/topo/loop"
)

var _ loop.Observer = (*Journal)(nil)

// timeLayout is the fixed-width timestamp format stored in TEXT columns.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// BeginRun starts a new run and makes it the target of observer callbacks.
// It returns the run ID.
func (j *Journal) BeginRun(ctx context.Context, label string, startedAt time.Time) (string, error) {
	id := j.ids.Generate()
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, ordinal, label, started_at)
		VALUES (?, (SELECT COALESCE(MAX(ordinal), 0) + 1 FROM runs), ?, ?)
	`, id, label, formatTime(startedAt))
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}

	j.mu.Lock()
	j.run = id
	j.mu.Unlock()
	return id, nil
}

// EndRun detaches the journal from the active run. Later callbacks are
// dropped until the next BeginRun.
func (j *Journal) EndRun() {
	j.mu.Lock()
	j.run = ""
	j.mu.Unlock()
}

func (j *Journal) activeRun() string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.run
}

// TickCompleted writes the tick row and one sample row per executed system.
func (j *Journal) TickCompleted(r loop.TickReport) {
	run := j.activeRun()
	if run == "" {
		return
	}
	if err := j.writeTick(context.Background(), run, r); err != nil {
		j.setErr(err)
	}
}

func (j *Journal) writeTick(ctx context.Context, run string, r loop.TickReport) error {
	skipped := r.Skipped
	if skipped == nil {
		skipped = []string{}
	}
	skippedJSON, err := json.Marshal(skipped)
	if err != nil {
		return fmt.Errorf("write tick: %w", err)
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write tick: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO ticks (run_id, seq, event, delta_time, started_at, skipped)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run, r.Seq, r.Event, r.DeltaTime, formatTime(r.Started), string(skippedJSON))
	if err != nil {
		return fmt.Errorf("write tick: %w", err)
	}

	for i, s := range r.Samples {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO samples (run_id, seq, position, system, duration_ns, failed)
			VALUES (?, ?, ?, ?, ?, ?)
		`, run, r.Seq, i, s.System, s.Duration.Nanoseconds(), s.Failed)
		if err != nil {
			return fmt.Errorf("write sample: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write tick: %w", err)
	}
	return nil
}

// SystemFailed writes a failure row.
func (j *Journal) SystemFailed(f loop.Failure) {
	run := j.activeRun()
	if run == "" {
		return
	}
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	_, err := j.db.ExecContext(context.Background(), `
		INSERT INTO failures (run_id, seq, event, system, phase, message, at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run, f.Seq, f.Event, f.System, string(f.Phase), msg, formatTime(f.When))
	if err != nil {
		j.setErr(fmt.Errorf("write failure: %w", err))
	}
}
