package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/corrigolabs/corrigo-backend/internal/ai"
	"github.com/corrigolabs/corrigo-backend/internal/config"
	"github.com/corrigolabs/corrigo-backend/internal/mailer"
	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/corrigolabs/corrigo-backend/internal/pool"
	"github.com/corrigolabs/corrigo-backend/internal/repository"
	"github.com/corrigolabs/corrigo-backend/internal/service"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const gradingPollTimeout = 1 * time.Second

// Job failure codes persisted on the job row and relayed over the event
// channel.
const (
	failMissingAPIKey = "MISSING_API_KEY"
	failInvalidAPIKey = "INVALID_API_KEY"
)

// grader is the model-call surface; tests substitute a fake.
type grader interface {
	Grade(ctx context.Context, in ai.GradingInput) (*ai.GradingResult, error)
}

// mailSender delivers one HTML email.
type mailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// GradingWorker consumes grading jobs from the Redis queue and runs the
// AI suggestion pipeline: for each submission without an AI total, every
// answered question is graded by the model, results are persisted on the
// AI track and the submission total is re-derived. Two nested concurrency
// bounds apply: submissions within the job and answers within a submission.
type GradingWorker struct {
	cfg          *config.Config
	rdb          *redis.Client
	grader       grader
	profRepo     *repository.ProfessorRepository
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	subRepo      *repository.SubmissionRepository
	gradeRepo    *repository.GradeRepository
	jobRepo      *repository.GradingJobRepository
	jobs         *service.JobService
	mail         mailSender
	log          zerolog.Logger
}

// NewGradingWorker creates a new GradingWorker.
func NewGradingWorker(
	cfg *config.Config,
	rdb *redis.Client,
	g grader,
	profRepo *repository.ProfessorRepository,
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	subRepo *repository.SubmissionRepository,
	gradeRepo *repository.GradeRepository,
	jobRepo *repository.GradingJobRepository,
	jobs *service.JobService,
	mail mailSender,
	log zerolog.Logger,
) *GradingWorker {
	return &GradingWorker{
		cfg:          cfg,
		rdb:          rdb,
		grader:       g,
		profRepo:     profRepo,
		examRepo:     examRepo,
		questionRepo: questionRepo,
		subRepo:      subRepo,
		gradeRepo:    gradeRepo,
		jobRepo:      jobRepo,
		jobs:         jobs,
		mail:         mail,
		log:          log.With().Str("component", "grading_worker").Logger(),
	}
}

// Start runs the queue loop until ctx is cancelled. Jobs are processed one
// at a time; parallelism lives inside the job, not across jobs.
func (w *GradingWorker) Start(ctx context.Context) {
	w.log.Info().Msg("GradingWorker started")

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("GradingWorker stopped")
			return
		default:
			item, err := w.rdb.BLPop(ctx, gradingPollTimeout, config.WorkerKey.GradingJobsQueue).Result()
			if err != nil {
				if err != redis.Nil && ctx.Err() == nil {
					w.log.Error().Err(err).Msg("BLPop error")
				}
				continue
			}
			if len(item) < 2 {
				continue
			}

			jobID, err := uuid.Parse(item[1])
			if err != nil {
				w.log.Error().Str("payload", item[1]).Msg("Invalid job ID on queue")
				continue
			}

			w.processSafe(ctx, jobID)
		}
	}
}

func (w *GradingWorker) processSafe(ctx context.Context, jobID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Interface("panic", r).Str("job_id", jobID.String()).Msg("Job panicked")
		}
	}()

	if err := w.process(ctx, jobID); err != nil {
		w.log.Error().Err(err).Str("job_id", jobID.String()).Msg("Job processing error")
	}
}

func (w *GradingWorker) process(ctx context.Context, jobID uuid.UUID) error {
	job, err := w.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status != model.JobStatusPending {
		w.log.Warn().Str("job_id", jobID.String()).Str("status", string(job.Status)).Msg("Skipping non-pending job")
		return nil
	}

	if err := w.jobRepo.MarkProcessing(ctx, jobID, time.Now()); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	w.publish(ctx, job, model.JobStatusProcessing, "")

	prof, err := w.profRepo.GetByID(ctx, job.OwnerID)
	if err != nil {
		return fmt.Errorf("load professor: %w", err)
	}
	apiKey := w.resolveAPIKey(prof)
	if apiKey == "" {
		return w.fail(ctx, job, failMissingAPIKey)
	}

	questions, err := w.questionRepo.ListByExam(ctx, job.ExamID)
	if err != nil {
		return fmt.Errorf("list questions: %w", err)
	}
	subs, err := w.subRepo.ListAIUngraded(ctx, job.ExamID)
	if err != nil {
		return fmt.Errorf("list submissions: %w", err)
	}

	w.log.Info().
		Str("job_id", jobID.String()).
		Str("exam_id", job.ExamID.String()).
		Int("submissions", len(subs)).
		Msg("Grading job running")

	// A rejected key fails every call identically; cancel the remaining
	// work as soon as the first credential error surfaces.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make([]pool.Task[struct{}], len(subs))
	for i := range subs {
		sub := subs[i]
		tasks[i] = func(taskCtx context.Context) (struct{}, error) {
			err := w.gradeSubmission(taskCtx, job, apiKey, questions, sub)
			if errors.Is(err, ai.ErrInvalidAPIKey) {
				cancel()
			}
			return struct{}{}, err
		}
	}
	results := pool.Run(runCtx, tasks, w.cfg.SubmissionConcurrency)

	failed := 0
	for _, res := range results {
		if res.Err == nil {
			continue
		}
		if errors.Is(res.Err, ai.ErrInvalidAPIKey) {
			return w.fail(ctx, job, failInvalidAPIKey)
		}
		failed++
	}

	var summary *string
	if failed > 0 {
		msg := fmt.Sprintf("%d of %d submissions failed", failed, len(subs))
		summary = &msg
	}
	if err := w.jobRepo.MarkCompleted(ctx, jobID, summary, time.Now()); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	w.publish(ctx, job, model.JobStatusCompleted, "")
	w.notifyProfessor(ctx, job, prof.Email, len(subs)-failed)

	w.log.Info().
		Str("job_id", jobID.String()).
		Int("graded", len(subs)-failed).
		Int("failed", failed).
		Msg("Grading job completed")
	return nil
}

// resolveAPIKey prefers the professor's stored credential and falls back
// to the system-wide key.
func (w *GradingWorker) resolveAPIKey(prof *model.Professor) string {
	if prof.OpenAIAPIKey != nil && *prof.OpenAIAPIKey != "" {
		return *prof.OpenAIAPIKey
	}
	return w.cfg.OpenAIAPIKey
}

// notifyProfessor emails the exam owner when a job finishes. Delivery is
// best effort; an unconfigured or failing mailer never affects the job.
func (w *GradingWorker) notifyProfessor(ctx context.Context, job *model.GradingJob, email string, gradedCount int) {
	exam, err := w.examRepo.GetByID(ctx, job.ExamID)
	if err != nil {
		w.log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("Load exam for notification failed")
		return
	}

	html, err := mailer.BuildSuggestionsEmail(mailer.SuggestionsEmailData{
		ExamTitle:   exam.Title,
		GradedCount: gradedCount,
	})
	if err != nil {
		w.log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("Render notification failed")
		return
	}

	subject := fmt.Sprintf("Sugerencias de IA listas: %s", exam.Title)
	if err := w.mail.Send(ctx, email, subject, html); err != nil {
		if errors.Is(err, mailer.ErrNotConfigured) {
			return
		}
		w.log.Warn().Err(err).Str("job_id", job.ID.String()).Msg("Job notification email failed")
	}
}

// gradeSubmission grades every answered question of one submission and
// re-derives its AI total. Questions whose answer is missing or blank get
// an explicit zero-point record so totals cover the full question set; the
// model is never called for them. A submission is only summed when at
// least one model call succeeded.
func (w *GradingWorker) gradeSubmission(ctx context.Context, job *model.GradingJob, apiKey string, questions []model.Question, sub model.Submission) error {
	answers, err := w.subRepo.ListAnswers(ctx, sub.ID)
	if err != nil {
		return fmt.Errorf("list answers: %w", err)
	}
	answerByQ := make(map[uuid.UUID]string, len(answers))
	for _, a := range answers {
		answerByQ[a.QuestionID] = a.Text
	}

	label := "Estudiante"
	if sub.RespondentName != nil && *sub.RespondentName != "" {
		label = *sub.RespondentName
	} else if sub.RespondentEmail != nil {
		label = *sub.RespondentEmail
	}

	type graded struct {
		question model.Question
		result   *ai.GradingResult
	}

	toGrade, blank := splitAnswered(questions, answerByQ)
	for _, q := range blank {
		if err := w.storeEmptyAnswer(ctx, sub.ID, q.ID); err != nil {
			return err
		}
	}

	tasks := make([]pool.Task[graded], len(toGrade))
	for i := range toGrade {
		q := toGrade[i]
		tasks[i] = func(taskCtx context.Context) (graded, error) {
			res, err := w.grader.Grade(taskCtx, ai.GradingInput{
				StudentLabel: label,
				RubricText:   q.RubricText,
				QuestionText: q.Text,
				MaxPoints:    q.MaxPoints,
				AnswerText:   answerByQ[q.ID],
				Mode:         job.Mode,
				APIKey:       apiKey,
			})
			return graded{question: q, result: res}, err
		}
	}
	results := pool.Run(ctx, tasks, w.cfg.AnswerConcurrency)

	succeeded := 0
	overall := ""
	var firstErr error
	for _, res := range results {
		if res.Err != nil {
			if errors.Is(res.Err, ai.ErrInvalidAPIKey) {
				return res.Err
			}
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		if err := w.storeResult(ctx, sub.ID, res.Value.question, res.Value.result); err != nil {
			return err
		}
		succeeded++
		if res.Value.result.OverallComment != "" {
			overall = res.Value.result.OverallComment
		}
	}

	if succeeded == 0 && len(toGrade) > 0 {
		return fmt.Errorf("submission %s: all answers failed: %w", sub.ID, firstErr)
	}

	if overall != "" {
		if err := w.gradeRepo.SetAIOverallComment(ctx, sub.ID, overall); err != nil {
			return fmt.Errorf("store overall comment: %w", err)
		}
	}
	if _, err := w.gradeRepo.UpdateAITotals(ctx, sub.ID); err != nil {
		return fmt.Errorf("update totals: %w", err)
	}
	return nil
}

// splitAnswered partitions questions into those with gradeable answer text
// and those whose answer is missing or whitespace only. Blank answers get
// the zero-point policy without a model call.
func splitAnswered(questions []model.Question, answerByQ map[uuid.UUID]string) (toGrade, blank []model.Question) {
	for _, q := range questions {
		if strings.TrimSpace(answerByQ[q.ID]) == "" {
			blank = append(blank, q)
			continue
		}
		toGrade = append(toGrade, q)
	}
	return toGrade, blank
}

func (w *GradingWorker) storeEmptyAnswer(ctx context.Context, submissionID, questionID uuid.UUID) error {
	zero := 0.0
	comment := "Sin respuesta."
	return w.gradeRepo.UpsertAIAnswerGrade(ctx, model.AnswerGrade{
		SubmissionID:       submissionID,
		QuestionID:         questionID,
		AISuggestedPoints:  &zero,
		AISuggestedComment: &comment,
	})
}

func (w *GradingWorker) storeResult(ctx context.Context, submissionID uuid.UUID, q model.Question, res *ai.GradingResult) error {
	ag := model.AnswerGrade{
		SubmissionID:      submissionID,
		QuestionID:        q.ID,
		AISuggestedPoints: &res.PointsAwarded,
	}
	if res.Comment != "" {
		ag.AISuggestedComment = &res.Comment
	}
	now := time.Now()
	ag.AIInlineComments = make([]model.InlineComment, 0, len(res.InlineComments))
	for _, ic := range res.InlineComments {
		ag.AIInlineComments = append(ag.AIInlineComments, model.InlineComment{
			ID:         ic.ID,
			StartIndex: ic.StartIndex,
			EndIndex:   ic.EndIndex,
			Text:       ic.Text,
			Source:     model.GradeSourceAI,
			CreatedAt:  now,
		})
	}
	return w.gradeRepo.UpsertAIAnswerGrade(ctx, ag)
}

func (w *GradingWorker) fail(ctx context.Context, job *model.GradingJob, code string) error {
	if err := w.jobRepo.MarkFailed(ctx, job.ID, code, time.Now()); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	w.publish(ctx, job, model.JobStatusFailed, code)
	w.log.Warn().Str("job_id", job.ID.String()).Str("code", code).Msg("Grading job failed")
	return nil
}

func (w *GradingWorker) publish(ctx context.Context, job *model.GradingJob, status model.JobStatus, errCode string) {
	w.jobs.PublishEvent(ctx, job.OwnerID, model.JobEvent{
		JobID:  job.ID,
		ExamID: job.ExamID,
		Status: status,
		Error:  errCode,
	})
}
