package jobstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"cadence/internal/jobs"
	"cadence/internal/services"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Record is the persisted snapshot of one job.
type Record struct {
	ID           string        `json:"id"`
	State        jobs.State    `json:"state"`
	OriginalName string        `json:"original_name,omitempty"`
	SizeBytes    int64         `json:"size_bytes"`
	OutputBytes  int64         `json:"output_bytes,omitempty"`
	ErrorDetail  string        `json:"error,omitempty"`
	FailureKind  services.Kind `json:"failure_kind,omitempty"`
	Revision     int           `json:"revision"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
	StartedAt    time.Time     `json:"started_at,omitzero"`
	FinishedAt   time.Time     `json:"finished_at,omitzero"`
}

// RecordFromJob converts a manager snapshot into a persisted record.
func RecordFromJob(job jobs.Job) Record {
	return Record{
		ID:           job.ID,
		State:        job.State,
		OriginalName: job.OriginalName,
		SizeBytes:    job.SizeBytes,
		OutputBytes:  job.OutputBytes,
		ErrorDetail:  job.ErrorDetail,
		FailureKind:  job.FailureKind,
		Revision:     job.Revision,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
		StartedAt:    job.StartedAt,
		FinishedAt:   job.FinishedAt,
	}
}

const recordColumns = `id, state, original_name, size_bytes, output_bytes, error_detail,
	failure_kind, revision, created_at, updated_at, started_at, finished_at`

// Upsert writes rec unless a newer revision is already stored.
func (s *Store) Upsert(ctx context.Context, rec Record) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("job id required")
	}
	_, err := s.execWithRetry(ctx, `INSERT INTO jobs (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state = excluded.state,
			original_name = excluded.original_name,
			size_bytes = excluded.size_bytes,
			output_bytes = excluded.output_bytes,
			error_detail = excluded.error_detail,
			failure_kind = excluded.failure_kind,
			revision = excluded.revision,
			updated_at = excluded.updated_at,
			started_at = excluded.started_at,
			finished_at = excluded.finished_at
		WHERE excluded.revision > jobs.revision`,
		rec.ID,
		string(rec.State),
		rec.OriginalName,
		rec.SizeBytes,
		rec.OutputBytes,
		rec.ErrorDetail,
		string(rec.FailureKind),
		rec.Revision,
		formatTime(rec.CreatedAt),
		formatTime(rec.UpdatedAt),
		nullableTime(rec.StartedAt),
		nullableTime(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert job %s: %w", rec.ID, err)
	}
	return nil
}

// Get returns the record for id, or nil when none exists.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM jobs WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return &rec, nil
}

// List returns records newest first, optionally filtered by state. A limit
// <= 0 returns every match.
func (s *Store) List(ctx context.Context, limit int, states ...jobs.State) ([]Record, error) {
	query := `SELECT ` + recordColumns + ` FROM jobs`
	args := make([]any, 0, len(states)+1)
	if len(states) > 0 {
		placeholders := make([]string, len(states))
		for i, state := range states {
			placeholders[i] = "?"
			args = append(args, string(state))
		}
		query += ` WHERE state IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Stats returns a count of records grouped by state.
func (s *Store) Stats(ctx context.Context) (map[jobs.State]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT state, COUNT(1) FROM jobs GROUP BY state`)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[jobs.State]int)
	for rows.Next() {
		var state string
		var count int
		if err := rows.Scan(&state, &count); err != nil {
			return nil, err
		}
		stats[jobs.State(state)] = count
	}
	return stats, rows.Err()
}

// PruneBefore deletes terminal records last updated before cutoff.
func (s *Store) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.execWithRetry(ctx,
		`DELETE FROM jobs WHERE state IN (?, ?) AND updated_at < ?`,
		string(jobs.StateDelivered), string(jobs.StateFailed), formatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("prune jobs: %w", err)
	}
	return res.RowsAffected()
}

// MarkInterrupted fails every record a previous process left unfinished.
// Their scratch files are reclaimed by the orphan sweep.
func (s *Store) MarkInterrupted(ctx context.Context, now time.Time) (int64, error) {
	stamp := formatTime(now)
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET
			state = ?,
			failure_kind = ?,
			error_detail = ?,
			revision = revision + 1,
			updated_at = ?,
			finished_at = ?
		WHERE state NOT IN (?, ?)`,
		string(jobs.StateFailed),
		string(services.KindInterrupted),
		"service restarted before the job finished",
		stamp,
		stamp,
		string(jobs.StateDelivered),
		string(jobs.StateFailed),
	)
	if err != nil {
		return 0, fmt.Errorf("mark interrupted jobs: %w", err)
	}
	return res.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		rec                  Record
		state, kind          string
		createdAt, updatedAt string
		startedAt            sql.NullString
		finishedAt           sql.NullString
	)
	if err := row.Scan(
		&rec.ID,
		&state,
		&rec.OriginalName,
		&rec.SizeBytes,
		&rec.OutputBytes,
		&rec.ErrorDetail,
		&kind,
		&rec.Revision,
		&createdAt,
		&updatedAt,
		&startedAt,
		&finishedAt,
	); err != nil {
		return Record{}, err
	}
	rec.State = jobs.State(state)
	rec.FailureKind = services.Kind(kind)
	rec.CreatedAt = parseTime(createdAt)
	rec.UpdatedAt = parseTime(updatedAt)
	if startedAt.Valid {
		rec.StartedAt = parseTime(startedAt.String)
	}
	if finishedAt.Valid {
		rec.FinishedAt = parseTime(finishedAt.String)
	}
	return rec, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Unix(0, 0)
	}
	return t.UTC().Format(timeLayout)
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return formatTime(t)
}

func parseTime(value string) time.Time {
	parsed, err := time.Parse(timeLayout, value)
	if err != nil {
		return time.Time{}
	}
	return parsed
}
