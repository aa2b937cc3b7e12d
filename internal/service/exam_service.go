package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/corrigolabs/corrigo-backend/internal/repository"
	"github.com/corrigolabs/corrigo-backend/internal/response"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Domain errors.
var (
	ErrNotExamOwner     = errors.New("not the owner of this exam")
	ErrExamNotDraft     = errors.New("exam state is not DRAFT")
	ErrExamNotPublished = errors.New("exam state is not PUBLISHED")
	ErrExamEvaluated    = errors.New("exam is already evaluated")
	ErrNoQuestions      = errors.New("exam has no questions")
)

// ExamService handles exam lifecycle business logic.
type ExamService struct {
	examRepo     *repository.ExamRepository
	questionRepo *repository.QuestionRepository
	log          zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:     examRepo,
		questionRepo: questionRepo,
		log:          log.With().Str("component", "exam_service").Logger(),
	}
}

// Create inserts a new DRAFT exam with its questions in one transaction.
func (s *ExamService) Create(ctx context.Context, ownerID int, req *model.CreateExamRequest) (*model.Exam, error) {
	exam := &model.Exam{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Title:   req.Title,
		State:   model.ExamStateDraft,
	}
	if req.Description != "" {
		exam.Description = &req.Description
	}

	questions := make([]model.Question, len(req.Questions))
	for i, q := range req.Questions {
		questions[i] = model.Question{
			ID:         uuid.New(),
			ExamID:     exam.ID,
			OrderNum:   i + 1,
			Text:       q.Text,
			MaxPoints:  q.MaxPoints,
			RubricText: q.RubricText,
		}
	}

	if err := s.examRepo.CreateWithQuestions(ctx, exam, questions); err != nil {
		return nil, fmt.Errorf("create exam: %w", err)
	}

	s.log.Info().Str("exam_id", exam.ID.String()).Int("owner_id", ownerID).Msg("Exam created")
	return exam, nil
}

// GetOwned retrieves an exam and enforces ownership.
func (s *ExamService) GetOwned(ctx context.Context, examID uuid.UUID, ownerID int) (*model.Exam, error) {
	exam, err := s.examRepo.GetByID(ctx, examID)
	if err != nil {
		return nil, err
	}
	if exam.OwnerID != ownerID {
		return nil, ErrNotExamOwner
	}
	return exam, nil
}

// List retrieves the owner's exams, newest first.
func (s *ExamService) List(ctx context.Context, ownerID, page, perPage int) ([]model.Exam, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 10
	}
	if perPage > 100 {
		perPage = 100
	}

	exams, total, err := s.examRepo.ListByOwnerPaginated(ctx, ownerID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if exams == nil {
		exams = []model.Exam{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return exams, pagination, nil
}

// Questions returns the exam's questions in display order.
func (s *ExamService) Questions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	return s.questionRepo.ListByExam(ctx, examID)
}

// Publish transitions a DRAFT exam to PUBLISHED, mints its public token
// and freezes the denormalized question count and max total.
func (s *ExamService) Publish(ctx context.Context, examID uuid.UUID, ownerID int) (*model.Exam, error) {
	exam, err := s.GetOwned(ctx, examID, ownerID)
	if err != nil {
		return nil, err
	}
	if exam.State != model.ExamStateDraft {
		return nil, ErrExamNotDraft
	}

	questions, err := s.questionRepo.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}

	maxTotal := 0
	for _, q := range questions {
		maxTotal += q.MaxPoints
	}

	token := uuid.New().String()
	if err := s.examRepo.Publish(ctx, examID, token, len(questions), maxTotal); err != nil {
		return nil, fmt.Errorf("publish exam: %w", err)
	}

	s.log.Info().Str("exam_id", examID.String()).Int("questions", len(questions)).Msg("Exam published")
	return s.examRepo.GetByID(ctx, examID)
}

// SetEvaluated marks the exam EVALUATED after a successful finalize.
func (s *ExamService) SetEvaluated(ctx context.Context, examID uuid.UUID, finalizedAt time.Time) error {
	return s.examRepo.SetEvaluated(ctx, examID, finalizedAt)
}
