package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/corrigolabs/corrigo-backend/internal/config"
	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/corrigolabs/corrigo-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Job domain errors.
var (
	ErrJobActive   = errors.New("a grading job is already pending or processing for this exam")
	ErrNotJobOwner = errors.New("not the owner of this job")
)

// JobService schedules AI suggestion jobs and exposes their status. The
// actual grading runs in the background worker; this service only creates
// the job row and pushes its ID onto the Redis queue.
type JobService struct {
	examRepo examStore
	jobRepo  *repository.GradingJobRepository
	rdb      *redis.Client
	log      zerolog.Logger
}

// NewJobService creates a new JobService.
func NewJobService(examRepo examStore, jobRepo *repository.GradingJobRepository, rdb *redis.Client, log zerolog.Logger) *JobService {
	return &JobService{
		examRepo: examRepo,
		jobRepo:  jobRepo,
		rdb:      rdb,
		log:      log.With().Str("component", "job_service").Logger(),
	}
}

// Trigger creates a PENDING job for the exam and enqueues it. At most one
// job per exam may be pending or processing at a time.
func (s *JobService) Trigger(ctx context.Context, ownerID int, examID uuid.UUID, req *model.CreateGradingJobRequest) (*model.GradingJob, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.OwnerID != ownerID {
		return nil, ErrNotExamOwner
	}
	if exam.State == model.ExamStateEvaluated {
		return nil, ErrExamEvaluated
	}
	if exam.State != model.ExamStatePublished {
		return nil, ErrExamNotPublished
	}

	active, err := s.jobRepo.HasActive(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("check active jobs: %w", err)
	}
	if active {
		return nil, ErrJobActive
	}

	mode := model.GradingModeNeutral
	switch model.GradingMode(req.Mode) {
	case model.GradingModeStrict:
		mode = model.GradingModeStrict
	case model.GradingModeLenient:
		mode = model.GradingModeLenient
	}

	job := &model.GradingJob{
		ID:      uuid.New(),
		ExamID:  examID,
		OwnerID: ownerID,
		Mode:    mode,
		Status:  model.JobStatusPending,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if err := s.rdb.LPush(ctx, config.WorkerKey.GradingJobsQueue, job.ID.String()).Err(); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.PublishEvent(ctx, job.OwnerID, model.JobEvent{
		JobID:  job.ID,
		ExamID: job.ExamID,
		Status: job.Status,
	})

	s.log.Info().
		Str("job_id", job.ID.String()).
		Str("exam_id", examID.String()).
		Str("mode", string(mode)).
		Msg("Grading job enqueued")
	return job, nil
}

// GetOwned retrieves a job and enforces ownership.
func (s *JobService) GetOwned(ctx context.Context, jobID uuid.UUID, ownerID int) (*model.GradingJob, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, ErrNotJobOwner
	}
	return job, nil
}

// ListByExam returns the exam's jobs after an ownership check.
func (s *JobService) ListByExam(ctx context.Context, ownerID int, examID uuid.UUID) ([]model.GradingJob, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.OwnerID != ownerID {
		return nil, ErrNotExamOwner
	}

	jobs, err := s.jobRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if jobs == nil {
		jobs = []model.GradingJob{}
	}
	return jobs, nil
}

// PublishEvent pushes a job status event onto the owner's channel.
// Publish failures are logged and swallowed; events are advisory.
func (s *JobService) PublishEvent(ctx context.Context, ownerID int, event model.JobEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.log.Error().Err(err).Msg("Encode job event failed")
		return
	}
	if err := s.rdb.Publish(ctx, config.JobEventsChannel(ownerID), payload).Err(); err != nil {
		s.log.Warn().Err(err).Msg("Publish job event failed")
	}
}
