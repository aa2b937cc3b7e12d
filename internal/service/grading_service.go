package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/corrigolabs/corrigo-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Grading domain errors.
var (
	ErrGradeLocked       = errors.New("submission grade is final")
	ErrSourceUnavailable = errors.New("requested source has no total for this submission")
	ErrGradeNotFound     = errors.New("submission has no grade yet")
)

const (
	maxOverallCommentLen = 8000
	maxCommentLen        = 4000
	maxInlineTextLen     = 1000
)

// examStore, submissionStore and gradeStore are the persistence surfaces
// the grading flows touch. The pgx repositories satisfy them; tests
// substitute in-memory fakes.
type examStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	SetEvaluated(ctx context.Context, id uuid.UUID, finalizedAt time.Time) error
}

type submissionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error)
	ListByGradeState(ctx context.Context, examID uuid.UUID, state model.GradeState) ([]model.Submission, error)
	ListAnswers(ctx context.Context, submissionID uuid.UUID) ([]model.Answer, error)
}

type gradeStore interface {
	GetBySubmission(ctx context.Context, submissionID uuid.UUID) (*model.Grade, error)
	ListAnswerGrades(ctx context.Context, submissionID uuid.UUID) ([]model.AnswerGrade, error)
	SaveManualDraft(ctx context.Context, submissionID uuid.UUID, items []model.AnswerGrade, manualTotal float64, commentsOverall *string) error
	SetDefinitiveSource(ctx context.Context, submissionID uuid.UUID, source model.GradeSource, total float64) error
	FinalizeSubmission(ctx context.Context, submissionID uuid.UUID, source *model.GradeSource, totalPoints *float64, finalizedAt time.Time) error
	ClearByExam(ctx context.Context, examID uuid.UUID) error
}

type questionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
}

// GradingService handles the professor's manual grading flow: draft saves,
// definitive source selection and grade clearing.
type GradingService struct {
	examRepo     examStore
	questionRepo questionStore
	subRepo      submissionStore
	gradeRepo    gradeStore
	log          zerolog.Logger
}

// NewGradingService creates a new GradingService.
func NewGradingService(
	examRepo examStore,
	questionRepo questionStore,
	subRepo submissionStore,
	gradeRepo gradeStore,
	log zerolog.Logger,
) *GradingService {
	return &GradingService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		subRepo:      subRepo,
		gradeRepo:    gradeRepo,
		log:          log.With().Str("component", "grading_service").Logger(),
	}
}

// loadForGrading fetches the submission and its exam, enforcing ownership
// and the write guards shared by every grading mutation.
func (s *GradingService) loadForGrading(ctx context.Context, submissionID uuid.UUID, ownerID int) (*model.Submission, *model.Exam, error) {
	sub, err := s.subRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, nil, err
	}
	exam, err := s.examRepo.GetByID(ctx, sub.ExamID)
	if err != nil {
		return nil, nil, fmt.Errorf("get exam: %w", err)
	}
	if exam.OwnerID != ownerID {
		return nil, nil, ErrNotExamOwner
	}
	if exam.State == model.ExamStateEvaluated || sub.GradeState == model.GradeStateFinal {
		return nil, nil, ErrGradeLocked
	}
	return sub, exam, nil
}

// SaveDraft stores a professor's manual grading pass for one submission.
// Points are clamped server side to [0, question max]; comment lengths are
// capped. The manual total is recomputed from the saved items, never taken
// from the client.
func (s *GradingService) SaveDraft(ctx context.Context, ownerID int, submissionID uuid.UUID, req *model.SaveDraftRequest) (float64, error) {
	sub, _, err := s.loadForGrading(ctx, submissionID, ownerID)
	if err != nil {
		return 0, err
	}

	questions, err := s.questionRepo.ListByExam(ctx, sub.ExamID)
	if err != nil {
		return 0, fmt.Errorf("list questions: %w", err)
	}
	maxByQ := make(map[uuid.UUID]int, len(questions))
	for _, q := range questions {
		maxByQ[q.ID] = q.MaxPoints
	}

	now := time.Now()
	items := make([]model.AnswerGrade, 0, len(req.Items))
	total := 0.0
	for _, item := range req.Items {
		qid, err := uuid.Parse(item.QuestionID)
		if err != nil {
			return 0, ErrUnknownQuestion
		}
		maxPoints, ok := maxByQ[qid]
		if !ok {
			return 0, ErrUnknownQuestion
		}

		points := clampFloat(item.PointsAwarded, 0, float64(maxPoints))
		total += points

		ag := model.AnswerGrade{
			SubmissionID: submissionID,
			QuestionID:   qid,
			ManualPoints: &points,
		}
		if item.Comment != "" {
			comment := truncateRunes(item.Comment, maxCommentLen)
			ag.ManualComment = &comment
		}
		ag.ManualInlineComments = make([]model.InlineComment, 0, len(item.InlineComments))
		for _, ic := range item.InlineComments {
			if ic.EndIndex <= ic.StartIndex {
				continue
			}
			ag.ManualInlineComments = append(ag.ManualInlineComments, model.InlineComment{
				ID:         ic.ID,
				StartIndex: ic.StartIndex,
				EndIndex:   ic.EndIndex,
				Text:       truncateRunes(ic.Text, maxInlineTextLen),
				Source:     model.GradeSourceManual,
				CreatedAt:  now,
			})
		}
		items = append(items, ag)
	}

	var overall *string
	if req.ManualCommentsOverall != "" {
		c := truncateRunes(req.ManualCommentsOverall, maxOverallCommentLen)
		overall = &c
	}

	if err := s.gradeRepo.SaveManualDraft(ctx, submissionID, items, total, overall); err != nil {
		return 0, fmt.Errorf("save draft: %w", err)
	}

	s.log.Info().
		Str("submission_id", submissionID.String()).
		Float64("manual_total", total).
		Msg("Manual draft saved")
	return total, nil
}

// SetDefinitiveSource selects which track's total is authoritative for a
// submission. The chosen track must already carry a total.
func (s *GradingService) SetDefinitiveSource(ctx context.Context, ownerID int, submissionID uuid.UUID, source model.GradeSource) error {
	if _, _, err := s.loadForGrading(ctx, submissionID, ownerID); err != nil {
		return err
	}

	grade, err := s.gradeRepo.GetBySubmission(ctx, submissionID)
	if err != nil {
		if repository.IsNotFound(err) {
			return ErrGradeNotFound
		}
		return fmt.Errorf("get grade: %w", err)
	}

	var total *float64
	switch source {
	case model.GradeSourceManual:
		total = grade.ManualTotalPoints
	case model.GradeSourceAI:
		total = grade.AITotalPoints
	}
	if total == nil {
		return ErrSourceUnavailable
	}

	return s.gradeRepo.SetDefinitiveSource(ctx, submissionID, source, *total)
}

// ClearGrades wipes all grading data of a non-evaluated exam.
func (s *GradingService) ClearGrades(ctx context.Context, ownerID int, examID uuid.UUID) error {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return err
	}
	if exam.OwnerID != ownerID {
		return ErrNotExamOwner
	}
	if exam.State == model.ExamStateEvaluated {
		return ErrExamEvaluated
	}

	if err := s.gradeRepo.ClearByExam(ctx, examID); err != nil {
		return fmt.Errorf("clear grades: %w", err)
	}
	s.log.Warn().Str("exam_id", examID.String()).Msg("Exam grades cleared")
	return nil
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func truncateRunes(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
