package repository

import (
	"context"
	"time"

	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GradingJobRepository handles grading job data access.
type GradingJobRepository struct {
	pool *pgxpool.Pool
}

// NewGradingJobRepository creates a new GradingJobRepository.
func NewGradingJobRepository(pool *pgxpool.Pool) *GradingJobRepository {
	return &GradingJobRepository{pool: pool}
}

const gradingJobColumns = `id, exam_id, owner_id, mode, status, error, created_at, started_at, completed_at`

// Create inserts a new pending job.
func (r *GradingJobRepository) Create(ctx context.Context, job *model.GradingJob) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO grading_jobs (id, exam_id, owner_id, mode, status)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		job.ID, job.ExamID, job.OwnerID, job.Mode, job.Status,
	).Scan(&job.CreatedAt)
}

// GetByID retrieves a job by its ID.
func (r *GradingJobRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.GradingJob, error) {
	job := &model.GradingJob{}
	err := r.pool.QueryRow(ctx,
		`SELECT `+gradingJobColumns+` FROM grading_jobs WHERE id = $1`, id,
	).Scan(&job.ID, &job.ExamID, &job.OwnerID, &job.Mode, &job.Status,
		&job.Error, &job.CreatedAt, &job.StartedAt, &job.CompletedAt)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// HasActive reports whether the exam already has a pending or processing job.
func (r *GradingJobRepository) HasActive(ctx context.Context, examID uuid.UUID) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM grading_jobs WHERE exam_id = $1 AND status IN ($2, $3))`,
		examID, model.JobStatusPending, model.JobStatusProcessing,
	).Scan(&exists)
	return exists, err
}

// MarkProcessing transitions a pending job to processing.
func (r *GradingJobRepository) MarkProcessing(ctx context.Context, id uuid.UUID, startedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE grading_jobs SET status = $1, started_at = $2 WHERE id = $3 AND status = $4`,
		model.JobStatusProcessing, startedAt, id, model.JobStatusPending)
	return err
}

// MarkCompleted finishes a job. A non-empty summary records partial
// per-submission failures that did not fail the job as a whole.
func (r *GradingJobRepository) MarkCompleted(ctx context.Context, id uuid.UUID, summary *string, completedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE grading_jobs SET status = $1, error = $2, completed_at = $3 WHERE id = $4`,
		model.JobStatusCompleted, summary, completedAt, id)
	return err
}

// MarkFailed finishes a job with a failure code.
func (r *GradingJobRepository) MarkFailed(ctx context.Context, id uuid.UUID, errCode string, completedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE grading_jobs SET status = $1, error = $2, completed_at = $3 WHERE id = $4`,
		model.JobStatusFailed, errCode, completedAt, id)
	return err
}

// ListByExam returns the exam's jobs, newest first.
func (r *GradingJobRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.GradingJob, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+gradingJobColumns+` FROM grading_jobs WHERE exam_id = $1 ORDER BY created_at DESC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []model.GradingJob
	for rows.Next() {
		var job model.GradingJob
		if err := rows.Scan(&job.ID, &job.ExamID, &job.OwnerID, &job.Mode, &job.Status,
			&job.Error, &job.CreatedAt, &job.StartedAt, &job.CompletedAt); err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
