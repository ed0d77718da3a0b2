package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"jobscout/internal/lead"
)

var jobColumns = []string{
	"id", "url", "source", "status", "result", "fallback", "failure_reason",
	"created_at", "processed_at", "dispatch_status", "dispatch_due", "dispatch_error",
}

// JobStore implements lead.JobStore over Postgres.
type JobStore struct {
	db dbConn
}

// NewJobStore constructs a JobStore from a pool (or pgxmock in tests).
func NewJobStore(db dbConn) *JobStore {
	return &JobStore{db: db}
}

// Create inserts a new job row. The unique index on url enforces the
// one-job-per-canonical-URL invariant.
func (s *JobStore) Create(ctx context.Context, job lead.Job) error {
	query, args, err := psql.Insert("jobs").
		Columns(jobColumns...).
		Values(
			job.ID,
			job.URL,
			nullable(job.Source),
			job.Status,
			[]byte(job.Result),
			[]byte(job.Fallback),
			nullable(job.FailureReason),
			job.CreatedAt,
			job.ProcessedAt,
			job.DispatchStatus,
			job.DispatchDue,
			nullable(job.DispatchError),
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert job: %w", err)
	}
	if _, err := s.db.Exec(ctx, query, args...); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("insert job: %w", lead.ErrDuplicateURL)
		}
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// Get fetches a job by id.
func (s *JobStore) Get(ctx context.Context, id string) (lead.Job, error) {
	query, args, err := psql.Select(jobColumns...).
		From("jobs").
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return lead.Job{}, fmt.Errorf("build select job: %w", err)
	}
	job, err := scanJob(s.db.QueryRow(ctx, query, args...))
	if err != nil {
		return lead.Job{}, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

// ExistsByURL reports whether a job row holds the canonical URL.
func (s *JobStore) ExistsByURL(ctx context.Context, url string) (bool, error) {
	query, args, err := psql.Select("1").
		From("jobs").
		Where("url = ?", url).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists query: %w", err)
	}
	var one int
	err = s.db.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists by url: %w", err)
	}
	return true, nil
}

// NextQueued returns the oldest queued job, or nil when none is queued.
func (s *JobStore) NextQueued(ctx context.Context) (*lead.Job, error) {
	query, args, err := psql.Select(jobColumns...).
		From("jobs").
		Where("status = ?", lead.JobStatusQueued).
		OrderBy("created_at ASC", "id ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build next queued query: %w", err)
	}
	job, err := scanJob(s.db.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select next queued: %w", err)
	}
	return &job, nil
}

// MarkProcessing transitions a queued job to processing. The status guard
// keeps the transition idempotent and monotonic even if another process
// raced the same row.
func (s *JobStore) MarkProcessing(ctx context.Context, id string) error {
	query, args, err := psql.Update("jobs").
		Set("status", lead.JobStatusProcessing).
		Where("id = ? AND status = ?", id, lead.JobStatusQueued).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark processing: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s is not queued", id)
	}
	return nil
}

// Complete stores the enrichment result and schedules dispatch.
func (s *JobStore) Complete(ctx context.Context, id string, result lead.EnrichmentResult, processedAt, dispatchDue time.Time) error {
	query, args, err := psql.Update("jobs").
		Set("status", lead.JobStatusCompleted).
		Set("result", []byte(result)).
		Set("failure_reason", nil).
		Set("processed_at", processedAt).
		Set("dispatch_status", lead.DispatchPending).
		Set("dispatch_due", dispatchDue).
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return fmt.Errorf("build complete: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}

// Fail marks the job failed; the reason stays for external inspection.
func (s *JobStore) Fail(ctx context.Context, id, reason string) error {
	query, args, err := psql.Update("jobs").
		Set("status", lead.JobStatusFailed).
		Set("failure_reason", reason).
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return fmt.Errorf("build fail: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}

// DueForDispatch returns up to limit pending jobs due at or before now.
func (s *JobStore) DueForDispatch(ctx context.Context, now time.Time, limit int) ([]lead.Job, error) {
	query, args, err := psql.Select(jobColumns...).
		From("jobs").
		Where("dispatch_status = ? AND dispatch_due <= ?", lead.DispatchPending, now).
		OrderBy("dispatch_due ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build due dispatch query: %w", err)
	}
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select due dispatch: %w", err)
	}
	defer rows.Close()

	var jobs []lead.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due dispatch row: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("due dispatch rows: %w", err)
	}
	return jobs, nil
}

// SetDispatchStatus records a dispatch outcome.
func (s *JobStore) SetDispatchStatus(ctx context.Context, id string, status lead.DispatchStatus, reason string) error {
	query, args, err := psql.Update("jobs").
		Set("dispatch_status", status).
		Set("dispatch_error", nullable(reason)).
		Where("id = ?", id).
		ToSql()
	if err != nil {
		return fmt.Errorf("build set dispatch status: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("set dispatch status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s not found", id)
	}
	return nil
}

// RequeueProcessing resets every processing row back to queued.
func (s *JobStore) RequeueProcessing(ctx context.Context) (int, error) {
	query, args, err := psql.Update("jobs").
		Set("status", lead.JobStatusQueued).
		Where("status = ?", lead.JobStatusProcessing).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build requeue processing: %w", err)
	}
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("requeue processing: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func scanJob(row pgx.Row) (lead.Job, error) {
	var (
		job           lead.Job
		source        *string
		result        []byte
		fallback      []byte
		failureReason *string
		dispatchError *string
	)
	err := row.Scan(
		&job.ID,
		&job.URL,
		&source,
		&job.Status,
		&result,
		&fallback,
		&failureReason,
		&job.CreatedAt,
		&job.ProcessedAt,
		&job.DispatchStatus,
		&job.DispatchDue,
		&dispatchError,
	)
	if err != nil {
		return lead.Job{}, err
	}
	if source != nil {
		job.Source = *source
	}
	job.Result = result
	job.Fallback = fallback
	if failureReason != nil {
		job.FailureReason = *failureReason
	}
	if dispatchError != nil {
		job.DispatchError = *dispatchError
	}
	return job, nil
}

// nullable maps the empty string to SQL NULL.
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
