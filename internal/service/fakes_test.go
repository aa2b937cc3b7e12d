package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/corrigolabs/corrigo-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// In-memory store fakes. They mirror the repository semantics closely
// enough for the service flows under test: not-found is the driver's
// no-rows sentinel, grade writes keep the submission mirror in sync, and
// finalization honors the GRADED_DRAFT guard.

type fakeExamStore struct {
	mu    sync.Mutex
	exams map[uuid.UUID]*model.Exam
}

func newFakeExamStore(exams ...*model.Exam) *fakeExamStore {
	s := &fakeExamStore{exams: make(map[uuid.UUID]*model.Exam)}
	for _, e := range exams {
		s.exams[e.ID] = e
	}
	return s
}

func (s *fakeExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exams[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *e
	return &cp, nil
}

func (s *fakeExamStore) SetEvaluated(_ context.Context, id uuid.UUID, finalizedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.exams[id]
	if !ok {
		return pgx.ErrNoRows
	}
	e.State = model.ExamStateEvaluated
	e.FinalizedAt = &finalizedAt
	return nil
}

type fakeSubmissionStore struct {
	mu      sync.Mutex
	subs    map[uuid.UUID]*model.Submission
	answers map[uuid.UUID][]model.Answer
}

func newFakeSubmissionStore(subs ...*model.Submission) *fakeSubmissionStore {
	s := &fakeSubmissionStore{
		subs:    make(map[uuid.UUID]*model.Submission),
		answers: make(map[uuid.UUID][]model.Answer),
	}
	for _, sub := range subs {
		s.subs[sub.ID] = sub
	}
	return s
}

func (s *fakeSubmissionStore) GetByID(_ context.Context, id uuid.UUID) (*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *sub
	return &cp, nil
}

func (s *fakeSubmissionStore) ListByGradeState(_ context.Context, examID uuid.UUID, state model.GradeState) ([]model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Submission
	for _, sub := range s.subs {
		if sub.ExamID == examID && sub.GradeState == state {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (s *fakeSubmissionStore) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Submission
	for _, sub := range s.subs {
		if sub.ExamID == examID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (s *fakeSubmissionStore) ListAnswers(_ context.Context, submissionID uuid.UUID) ([]model.Answer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Answer(nil), s.answers[submissionID]...), nil
}

type fakeGradeStore struct {
	mu           sync.Mutex
	subs         *fakeSubmissionStore
	grades       map[uuid.UUID]*model.Grade
	answerGrades map[uuid.UUID][]model.AnswerGrade
}

func newFakeGradeStore(subs *fakeSubmissionStore) *fakeGradeStore {
	return &fakeGradeStore{
		subs:         subs,
		grades:       make(map[uuid.UUID]*model.Grade),
		answerGrades: make(map[uuid.UUID][]model.AnswerGrade),
	}
}

func (s *fakeGradeStore) GetBySubmission(_ context.Context, submissionID uuid.UUID) (*model.Grade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grades[submissionID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *g
	return &cp, nil
}

func (s *fakeGradeStore) ListAnswerGrades(_ context.Context, submissionID uuid.UUID) ([]model.AnswerGrade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AnswerGrade(nil), s.answerGrades[submissionID]...), nil
}

func (s *fakeGradeStore) SaveManualDraft(_ context.Context, submissionID uuid.UUID, items []model.AnswerGrade, manualTotal float64, commentsOverall *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing := make(map[uuid.UUID]int, len(s.answerGrades[submissionID]))
	for i, ag := range s.answerGrades[submissionID] {
		existing[ag.QuestionID] = i
	}
	for _, item := range items {
		if i, ok := existing[item.QuestionID]; ok {
			row := &s.answerGrades[submissionID][i]
			row.ManualPoints = item.ManualPoints
			row.ManualComment = item.ManualComment
			row.ManualInlineComments = item.ManualInlineComments
			continue
		}
		s.answerGrades[submissionID] = append(s.answerGrades[submissionID], item)
	}

	g, ok := s.grades[submissionID]
	if !ok {
		g = &model.Grade{SubmissionID: submissionID}
		s.grades[submissionID] = g
	}
	src := model.GradeSourceManual
	g.State = model.GradeStateDraft
	g.ManualTotalPoints = &manualTotal
	g.ManualCommentsOverall = commentsOverall
	g.DefinitiveSource = &src

	s.subs.mu.Lock()
	defer s.subs.mu.Unlock()
	sub := s.subs.subs[submissionID]
	sub.GradeState = model.GradeStateDraft
	sub.ManualTotalPoints = &manualTotal
	sub.TotalPoints = &manualTotal
	sub.DefinitiveSource = &src
	return nil
}

func (s *fakeGradeStore) SetDefinitiveSource(_ context.Context, submissionID uuid.UUID, source model.GradeSource, total float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grades[submissionID]
	if !ok {
		return pgx.ErrNoRows
	}
	g.DefinitiveSource = &source

	s.subs.mu.Lock()
	defer s.subs.mu.Unlock()
	sub := s.subs.subs[submissionID]
	sub.DefinitiveSource = &source
	sub.TotalPoints = &total
	return nil
}

func (s *fakeGradeStore) FinalizeSubmission(_ context.Context, submissionID uuid.UUID, source *model.GradeSource, totalPoints *float64, finalizedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.mu.Lock()
	defer s.subs.mu.Unlock()

	sub := s.subs.subs[submissionID]
	if sub.GradeState != model.GradeStateDraft {
		return nil
	}
	sub.GradeState = model.GradeStateFinal
	sub.DefinitiveSource = source
	sub.TotalPoints = totalPoints

	if g, ok := s.grades[submissionID]; ok {
		g.State = model.GradeStateFinal
		g.DefinitiveSource = source
		g.FinalizedAt = &finalizedAt
	}
	return nil
}

func (s *fakeGradeStore) ClearByExam(_ context.Context, examID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs.mu.Lock()
	defer s.subs.mu.Unlock()

	for id, sub := range s.subs.subs {
		if sub.ExamID != examID {
			continue
		}
		delete(s.grades, id)
		delete(s.answerGrades, id)
		sub.GradeState = model.GradeStateUngraded
		sub.TotalPoints = nil
		sub.DefinitiveSource = nil
		sub.ManualTotalPoints = nil
		sub.AITotalPoints = nil
	}
	return nil
}

type fakeQuestionStore struct {
	questions []model.Question
}

func (s *fakeQuestionStore) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	var out []model.Question
	for _, q := range s.questions {
		if q.ExamID == examID {
			out = append(out, q)
		}
	}
	return out, nil
}

type opEntry struct {
	key       string
	requestID uuid.UUID
}

type fakeOpStore struct {
	mu  sync.Mutex
	ops map[opEntry]*repository.Operation
}

func newFakeOpStore() *fakeOpStore {
	return &fakeOpStore{ops: make(map[opEntry]*repository.Operation)}
}

func (s *fakeOpStore) Begin(_ context.Context, key string, requestID uuid.UUID) (*repository.Operation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, ok := s.ops[opEntry{key, requestID}]; ok {
		cp := *op
		return &cp, false, nil
	}
	s.ops[opEntry{key, requestID}] = &repository.Operation{
		OperationKey: key,
		RequestID:    requestID,
		Status:       repository.OperationInProgress,
		CreatedAt:    time.Now(),
	}
	return nil, true, nil
}

func (s *fakeOpStore) Complete(_ context.Context, key string, requestID uuid.UUID, result any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	op, ok := s.ops[opEntry{key, requestID}]
	if !ok {
		return pgx.ErrNoRows
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	now := time.Now()
	op.Status = repository.OperationCompleted
	op.Result = payload
	op.CompletedAt = &now
	return nil
}

func (s *fakeOpStore) Abandon(_ context.Context, key string, requestID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if op, ok := s.ops[opEntry{key, requestID}]; ok && op.Status == repository.OperationInProgress {
		delete(s.ops, opEntry{key, requestID})
	}
	return nil
}

type sentMail struct {
	to      string
	subject string
	html    string
}

type fakeMailer struct {
	mu     sync.Mutex
	sent   []sentMail
	failTo map[string]bool
}

func (m *fakeMailer) Send(_ context.Context, to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failTo[to] {
		return errors.New("delivery refused")
	}
	m.sent = append(m.sent, sentMail{to: to, subject: subject, html: html})
	return nil
}

func (m *fakeMailer) sentCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

func fptr(v float64) *float64 { return &v }

func sptr(s string) *string { return &s }
