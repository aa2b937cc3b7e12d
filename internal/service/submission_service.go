package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/corrigolabs/corrigo-backend/internal/repository"
	"github.com/corrigolabs/corrigo-backend/internal/response"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Submission domain errors.
var (
	ErrAlreadySubmitted = errors.New("this email already submitted the exam")
	ErrUnknownQuestion  = errors.New("answer references a question not in this exam")
)

// SubmissionService handles the public submission flow and the professor's
// submission views.
type SubmissionService struct {
	examRepo       *repository.ExamRepository
	questionRepo   *repository.QuestionRepository
	submissionRepo *repository.SubmissionRepository
	gradeRepo      *repository.GradeRepository
	log            zerolog.Logger
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	examRepo *repository.ExamRepository,
	questionRepo *repository.QuestionRepository,
	submissionRepo *repository.SubmissionRepository,
	gradeRepo *repository.GradeRepository,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		examRepo:       examRepo,
		questionRepo:   questionRepo,
		submissionRepo: submissionRepo,
		gradeRepo:      gradeRepo,
		log:            log.With().Str("component", "submission_service").Logger(),
	}
}

// Submit stores a public submission addressed by the exam's public token.
// One submission per respondent email per exam; answers must reference the
// exam's own questions. Unanswered questions are simply absent.
func (s *SubmissionService) Submit(ctx context.Context, req *model.SubmitExamRequest) (*model.Submission, error) {
	exam, err := s.examRepo.GetByPublicToken(ctx, req.Token)
	if err != nil {
		return nil, err
	}
	if exam.State != model.ExamStatePublished {
		return nil, ErrExamNotPublished
	}

	exists, err := s.submissionRepo.ExistsByEmail(ctx, exam.ID, req.RespondentEmail)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if exists {
		return nil, ErrAlreadySubmitted
	}

	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	known := make(map[uuid.UUID]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}

	sub := &model.Submission{
		ID:              uuid.New(),
		ExamID:          exam.ID,
		RespondentEmail: &req.RespondentEmail,
		GradeState:      model.GradeStateUngraded,
	}
	if req.RespondentName != "" {
		sub.RespondentName = &req.RespondentName
	}

	answers := make([]model.Answer, 0, len(req.Answers))
	seen := make(map[uuid.UUID]bool, len(req.Answers))
	for _, a := range req.Answers {
		qid, err := uuid.Parse(a.QuestionID)
		if err != nil || !known[qid] {
			return nil, ErrUnknownQuestion
		}
		if seen[qid] {
			continue
		}
		seen[qid] = true
		answers = append(answers, model.Answer{
			SubmissionID: sub.ID,
			QuestionID:   qid,
			Text:         a.Text,
		})
	}

	if err := s.submissionRepo.CreateWithAnswers(ctx, sub, answers); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}

	s.log.Info().
		Str("exam_id", exam.ID.String()).
		Str("submission_id", sub.ID.String()).
		Msg("Submission received")
	return sub, nil
}

// GetPublicExam resolves a public token to its published exam and
// questions for the submission form.
func (s *SubmissionService) GetPublicExam(ctx context.Context, token string) (*model.Exam, []model.Question, error) {
	exam, err := s.examRepo.GetByPublicToken(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	if exam.State != model.ExamStatePublished {
		return nil, nil, ErrExamNotPublished
	}

	questions, err := s.questionRepo.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	return exam, questions, nil
}

// GetByID retrieves a submission.
func (s *SubmissionService) GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	return s.submissionRepo.GetByID(ctx, id)
}

// ListByExam returns the exam's submissions, paginated.
func (s *SubmissionService) ListByExam(ctx context.Context, examID uuid.UUID, page, perPage int) ([]model.Submission, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	subs, total, err := s.submissionRepo.ListByExamPaginated(ctx, examID, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, err
	}
	if subs == nil {
		subs = []model.Submission{}
	}

	pagination := &response.Pagination{
		Page:       page,
		PerPage:    perPage,
		TotalItems: total,
		TotalPages: (total + perPage - 1) / perPage,
	}
	return subs, pagination, nil
}

// GetDetail assembles the correction view: the submission, its grade
// roll-up and one item per question pairing the student's answer with both
// grade tracks.
func (s *SubmissionService) GetDetail(ctx context.Context, submissionID uuid.UUID) (*model.SubmissionDetail, error) {
	sub, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	grade, err := s.gradeRepo.GetBySubmission(ctx, submissionID)
	if err != nil && !repository.IsNotFound(err) {
		return nil, fmt.Errorf("get grade: %w", err)
	}

	questions, err := s.questionRepo.ListByExam(ctx, sub.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	answers, err := s.submissionRepo.ListAnswers(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	answerGrades, err := s.gradeRepo.ListAnswerGrades(ctx, submissionID)
	if err != nil {
		return nil, fmt.Errorf("list answer grades: %w", err)
	}

	answerByQ := make(map[uuid.UUID]*model.Answer, len(answers))
	for i := range answers {
		answerByQ[answers[i].QuestionID] = &answers[i]
	}
	gradeByQ := make(map[uuid.UUID]*model.AnswerGrade, len(answerGrades))
	for i := range answerGrades {
		gradeByQ[answerGrades[i].QuestionID] = &answerGrades[i]
	}

	items := make([]model.GradedAnswer, len(questions))
	for i, q := range questions {
		items[i] = model.GradedAnswer{
			Question: q,
			Answer:   answerByQ[q.ID],
			Grade:    gradeByQ[q.ID],
		}
	}

	return &model.SubmissionDetail{
		Submission: *sub,
		Grade:      grade,
		Items:      items,
	}, nil
}
