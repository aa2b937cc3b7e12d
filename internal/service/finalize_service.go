package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/corrigolabs/corrigo-backend/internal/mailer"
	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/corrigolabs/corrigo-backend/internal/pool"
	"github.com/corrigolabs/corrigo-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Finalize domain errors.
var (
	ErrFinalizeInProgress = errors.New("finalize already in progress for this request")
)

// operationStore is the idempotency ledger surface.
type operationStore interface {
	Begin(ctx context.Context, key string, requestID uuid.UUID) (*repository.Operation, bool, error)
	Complete(ctx context.Context, key string, requestID uuid.UUID, result any) error
	Abandon(ctx context.Context, key string, requestID uuid.UUID) error
}

// mailSender delivers one HTML email.
type mailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// FinalizeService locks an exam's draft grades and notifies respondents.
// The whole operation is replay-safe: repeating a finalize with the same
// request ID returns the stored outcome and sends nothing twice.
type FinalizeService struct {
	examRepo     examStore
	questionRepo questionStore
	subRepo      submissionStore
	gradeRepo    gradeStore
	ops          operationStore
	mail         mailSender
	notifyLimit  int
	log          zerolog.Logger
}

// NewFinalizeService creates a new FinalizeService.
func NewFinalizeService(
	examRepo examStore,
	questionRepo questionStore,
	subRepo submissionStore,
	gradeRepo gradeStore,
	ops operationStore,
	mail mailSender,
	notifyLimit int,
	log zerolog.Logger,
) *FinalizeService {
	return &FinalizeService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		subRepo:      subRepo,
		gradeRepo:    gradeRepo,
		ops:          ops,
		mail:         mail,
		notifyLimit:  notifyLimit,
		log:          log.With().Str("component", "finalize_service").Logger(),
	}
}

// finalizeTarget is one submission resolved for finalization.
type finalizeTarget struct {
	sub    *model.Submission
	source *model.GradeSource
	total  *float64
}

// Finalize transitions every GRADED_DRAFT submission of the exam to
// GRADED_FINAL, resolves each one's definitive source, marks the exam
// EVALUATED and emails results to respondents. requestID replays return
// the original outcome.
func (s *FinalizeService) Finalize(ctx context.Context, ownerID int, examID uuid.UUID, requestID uuid.UUID) (*model.FinalizeResult, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.OwnerID != ownerID {
		return nil, ErrNotExamOwner
	}

	opKey := "finalize:" + examID.String()
	prior, fresh, err := s.ops.Begin(ctx, opKey, requestID)
	if err != nil {
		return nil, err
	}
	if !fresh {
		if prior.Status == repository.OperationCompleted {
			// Replays return the stored outcome verbatim; the caller cannot
			// tell a replay from the original response.
			var result model.FinalizeResult
			if err := json.Unmarshal(prior.Result, &result); err != nil {
				return nil, fmt.Errorf("decode stored result: %w", err)
			}
			s.log.Info().Str("exam_id", examID.String()).Str("request_id", requestID.String()).Msg("Finalize replayed")
			return &result, nil
		}
		return nil, ErrFinalizeInProgress
	}

	// A new request against an already-evaluated exam is a no-op, not an
	// error: the exam may have been finalized by an earlier request ID.
	if exam.State == model.ExamStateEvaluated {
		result := &model.FinalizeResult{Message: "Exam already evaluated"}
		if err := s.ops.Complete(ctx, opKey, requestID, result); err != nil {
			return nil, err
		}
		return result, nil
	}
	if exam.State != model.ExamStatePublished {
		s.abandon(ctx, opKey, requestID)
		return nil, ErrExamNotPublished
	}

	result, err := s.run(ctx, exam, requestID)
	if err != nil {
		s.abandon(ctx, opKey, requestID)
		return nil, err
	}

	if err := s.ops.Complete(ctx, opKey, requestID, result); err != nil {
		return nil, fmt.Errorf("record operation: %w", err)
	}
	return result, nil
}

func (s *FinalizeService) run(ctx context.Context, exam *model.Exam, requestID uuid.UUID) (*model.FinalizeResult, error) {
	drafts, err := s.subRepo.ListByGradeState(ctx, exam.ID, model.GradeStateDraft)
	if err != nil {
		return nil, fmt.Errorf("list drafts: %w", err)
	}

	now := time.Now()
	targets := make([]finalizeTarget, 0, len(drafts))
	for i := range drafts {
		sub := &drafts[i]
		target, err := s.resolveTarget(ctx, sub)
		if err != nil {
			return nil, fmt.Errorf("resolve submission %s: %w", sub.ID, err)
		}
		if err := s.gradeRepo.FinalizeSubmission(ctx, sub.ID, target.source, target.total, now); err != nil {
			return nil, fmt.Errorf("finalize submission %s: %w", sub.ID, err)
		}
		targets = append(targets, target)
	}

	// The exam flips to EVALUATED before any email goes out: evaluated
	// means grades are locked, not that every respondent was reached. A
	// crash mid-notify leaves a consistent exam and the skipped count
	// records the undelivered mail.
	if err := s.examRepo.SetEvaluated(ctx, exam.ID, now); err != nil {
		return nil, fmt.Errorf("mark exam evaluated: %w", err)
	}

	sent, skipped := s.notifyAll(ctx, exam, targets)

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Str("request_id", requestID.String()).
		Int("finalized", len(targets)).
		Int("sent", sent).
		Int("skipped", skipped).
		Msg("Exam finalized")

	return &model.FinalizeResult{
		Sent:    sent,
		Skipped: skipped,
		Message: fmt.Sprintf("Finalized %d submissions", len(targets)),
	}, nil
}

// resolveTarget picks the definitive source for a submission that never
// had one set explicitly: manual total wins over AI total, an older
// mirrored total is kept as-is, and a submission with no total at all is
// finalized with a null grade.
func (s *FinalizeService) resolveTarget(ctx context.Context, sub *model.Submission) (finalizeTarget, error) {
	target := finalizeTarget{sub: sub}

	grade, err := s.gradeRepo.GetBySubmission(ctx, sub.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			target.total = sub.TotalPoints
			return target, nil
		}
		return target, err
	}

	if grade.DefinitiveSource != nil {
		target.source = grade.DefinitiveSource
		switch *grade.DefinitiveSource {
		case model.GradeSourceManual:
			target.total = grade.ManualTotalPoints
		case model.GradeSourceAI:
			target.total = grade.AITotalPoints
		}
		return target, nil
	}

	switch {
	case grade.ManualTotalPoints != nil:
		src := model.GradeSourceManual
		target.source = &src
		target.total = grade.ManualTotalPoints
	case grade.AITotalPoints != nil:
		src := model.GradeSourceAI
		target.source = &src
		target.total = grade.AITotalPoints
	default:
		target.total = sub.TotalPoints
	}
	return target, nil
}

// notifyAll emails results to respondents with bounded concurrency.
// Delivery failures never roll back finalization; they only count as
// skipped.
func (s *FinalizeService) notifyAll(ctx context.Context, exam *model.Exam, targets []finalizeTarget) (sent, skipped int) {
	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		s.log.Error().Err(err).Msg("List questions for notifications failed")
		return 0, len(targets)
	}

	tasks := make([]pool.Task[bool], len(targets))
	for i := range targets {
		target := targets[i]
		tasks[i] = func(ctx context.Context) (bool, error) {
			return s.notifyOne(ctx, exam, questions, target)
		}
	}

	for _, res := range pool.Run(ctx, tasks, s.notifyLimit) {
		if res.Err != nil || !res.Value {
			skipped++
			continue
		}
		sent++
	}
	return sent, skipped
}

// notifyOne sends one result email. Returns false without error when the
// submission has nothing to send to.
func (s *FinalizeService) notifyOne(ctx context.Context, exam *model.Exam, questions []model.Question, target finalizeTarget) (bool, error) {
	sub := target.sub
	if sub.RespondentEmail == nil || *sub.RespondentEmail == "" {
		return false, nil
	}
	if target.total == nil {
		return false, nil
	}

	answers, err := s.subRepo.ListAnswers(ctx, sub.ID)
	if err != nil {
		return false, err
	}
	answerGrades, err := s.gradeRepo.ListAnswerGrades(ctx, sub.ID)
	if err != nil {
		return false, err
	}

	grade, err := s.gradeRepo.GetBySubmission(ctx, sub.ID)
	if err != nil && !repository.IsNotFound(err) {
		return false, err
	}

	data := buildResultEmailData(exam, sub, grade, questions, answers, answerGrades, target)

	html, err := mailer.BuildResultEmail(data)
	if err != nil {
		return false, err
	}

	subject := fmt.Sprintf("Resultados del examen: %s", exam.Title)
	if err := s.mail.Send(ctx, *sub.RespondentEmail, subject, html); err != nil {
		s.log.Warn().Err(err).Str("submission_id", sub.ID.String()).Msg("Result email failed")
		return false, err
	}
	return true, nil
}

func buildResultEmailData(
	exam *model.Exam,
	sub *model.Submission,
	grade *model.Grade,
	questions []model.Question,
	answers []model.Answer,
	answerGrades []model.AnswerGrade,
	target finalizeTarget,
) mailer.ResultEmailData {
	name := *sub.RespondentEmail
	if sub.RespondentName != nil && *sub.RespondentName != "" {
		name = *sub.RespondentName
	}

	data := mailer.ResultEmailData{
		NameOrEmail: name,
		ExamTitle:   exam.Title,
		TotalPoints: *target.total,
	}

	useAI := target.source != nil && *target.source == model.GradeSourceAI
	if grade != nil {
		if useAI {
			data.CommentsOverall = grade.AICommentsOverall
		} else {
			data.CommentsOverall = grade.ManualCommentsOverall
		}
	}

	answerByQ := make(map[uuid.UUID]string, len(answers))
	for _, a := range answers {
		answerByQ[a.QuestionID] = a.Text
	}
	gradeByQ := make(map[uuid.UUID]*model.AnswerGrade, len(answerGrades))
	for i := range answerGrades {
		gradeByQ[answerGrades[i].QuestionID] = &answerGrades[i]
	}

	for i, q := range questions {
		item := mailer.ResultAnswer{
			Index:        i + 1,
			QuestionText: q.Text,
			MaxPoints:    q.MaxPoints,
			AnswerText:   answerByQ[q.ID],
		}
		if ag := gradeByQ[q.ID]; ag != nil {
			if useAI {
				item.Points = ag.AISuggestedPoints
				item.Comment = ag.AISuggestedComment
			} else {
				item.Points = ag.ManualPoints
				item.Comment = ag.ManualComment
			}
		}
		data.Answers = append(data.Answers, item)
	}
	return data
}

func (s *FinalizeService) abandon(ctx context.Context, opKey string, requestID uuid.UUID) {
	if err := s.ops.Abandon(ctx, opKey, requestID); err != nil {
		s.log.Error().Err(err).Str("operation", opKey).Msg("Abandon operation failed")
	}
}
