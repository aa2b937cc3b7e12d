package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const ownerID = 7

type gradingFixture struct {
	svc       *GradingService
	exam      *model.Exam
	sub       *model.Submission
	questions []model.Question
	grades    *fakeGradeStore
	subs      *fakeSubmissionStore
}

func newGradingFixture(t *testing.T, examState model.ExamState, gradeState model.GradeState) *gradingFixture {
	t.Helper()

	exam := &model.Exam{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Title:   "Biología I",
		State:   examState,
	}
	questions := []model.Question{
		{ID: uuid.New(), ExamID: exam.ID, OrderNum: 1, Text: "Pregunta 1", MaxPoints: 10},
		{ID: uuid.New(), ExamID: exam.ID, OrderNum: 2, Text: "Pregunta 2", MaxPoints: 5},
	}
	sub := &model.Submission{
		ID:         uuid.New(),
		ExamID:     exam.ID,
		GradeState: gradeState,
	}

	exams := newFakeExamStore(exam)
	subs := newFakeSubmissionStore(sub)
	grades := newFakeGradeStore(subs)
	svc := NewGradingService(exams, &fakeQuestionStore{questions: questions}, subs, grades, zerolog.Nop())

	return &gradingFixture{svc: svc, exam: exam, sub: sub, questions: questions, grades: grades, subs: subs}
}

func TestSaveDraftClampsAndRecomputesTotal(t *testing.T) {
	fx := newGradingFixture(t, model.ExamStatePublished, model.GradeStateUngraded)

	req := &model.SaveDraftRequest{
		Items: []model.AnswerGradeItemRequest{
			// Above the question max: must clamp to 10.
			{QuestionID: fx.questions[0].ID.String(), PointsAwarded: 42, Comment: "Excelente."},
			{QuestionID: fx.questions[1].ID.String(), PointsAwarded: 3.5},
		},
		ManualCommentsOverall: "Buen trabajo en general.",
	}

	total, err := fx.svc.SaveDraft(context.Background(), ownerID, fx.sub.ID, req)
	if err != nil {
		t.Fatal(err)
	}
	if total != 13.5 {
		t.Errorf("total = %v, want 13.5", total)
	}

	grade, err := fx.grades.GetBySubmission(context.Background(), fx.sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if grade.State != model.GradeStateDraft {
		t.Errorf("grade state = %s, want GRADED_DRAFT", grade.State)
	}
	if grade.ManualTotalPoints == nil || *grade.ManualTotalPoints != 13.5 {
		t.Errorf("manual total = %v, want 13.5", grade.ManualTotalPoints)
	}
	if grade.ManualCommentsOverall == nil || *grade.ManualCommentsOverall != "Buen trabajo en general." {
		t.Errorf("overall comment = %v", grade.ManualCommentsOverall)
	}

	sub, _ := fx.subs.GetByID(context.Background(), fx.sub.ID)
	if sub.GradeState != model.GradeStateDraft {
		t.Errorf("submission mirror state = %s, want GRADED_DRAFT", sub.GradeState)
	}
	if sub.TotalPoints == nil || *sub.TotalPoints != 13.5 {
		t.Errorf("mirrored total = %v, want 13.5", sub.TotalPoints)
	}
}

func TestSaveDraftTruncatesComments(t *testing.T) {
	fx := newGradingFixture(t, model.ExamStatePublished, model.GradeStateUngraded)

	req := &model.SaveDraftRequest{
		Items: []model.AnswerGradeItemRequest{
			{
				QuestionID:    fx.questions[0].ID.String(),
				PointsAwarded: 5,
				Comment:       strings.Repeat("a", maxCommentLen+100),
			},
		},
	}

	if _, err := fx.svc.SaveDraft(context.Background(), ownerID, fx.sub.ID, req); err != nil {
		t.Fatal(err)
	}

	rows, _ := fx.grades.ListAnswerGrades(context.Background(), fx.sub.ID)
	if len(rows) != 1 {
		t.Fatalf("got %d answer grades, want 1", len(rows))
	}
	if got := len([]rune(*rows[0].ManualComment)); got != maxCommentLen {
		t.Errorf("comment length = %d, want %d", got, maxCommentLen)
	}
}

func TestSaveDraftSkipsEmptyInlineRanges(t *testing.T) {
	fx := newGradingFixture(t, model.ExamStatePublished, model.GradeStateUngraded)

	req := &model.SaveDraftRequest{
		Items: []model.AnswerGradeItemRequest{
			{
				QuestionID:    fx.questions[0].ID.String(),
				PointsAwarded: 5,
				InlineComments: []model.InlineCommentRequest{
					{ID: "keep", StartIndex: 0, EndIndex: 4, Text: "Bien"},
					{ID: "drop-empty", StartIndex: 4, EndIndex: 4, Text: "Nada"},
					{ID: "drop-inverted", StartIndex: 9, EndIndex: 2, Text: "Nada"},
				},
			},
		},
	}

	if _, err := fx.svc.SaveDraft(context.Background(), ownerID, fx.sub.ID, req); err != nil {
		t.Fatal(err)
	}

	rows, _ := fx.grades.ListAnswerGrades(context.Background(), fx.sub.ID)
	if len(rows[0].ManualInlineComments) != 1 {
		t.Fatalf("got %d inline comments, want 1", len(rows[0].ManualInlineComments))
	}
	ic := rows[0].ManualInlineComments[0]
	if ic.ID != "keep" || ic.Source != model.GradeSourceManual {
		t.Errorf("kept comment = %+v", ic)
	}
}

func TestSaveDraftRejectsUnknownQuestion(t *testing.T) {
	fx := newGradingFixture(t, model.ExamStatePublished, model.GradeStateUngraded)

	req := &model.SaveDraftRequest{
		Items: []model.AnswerGradeItemRequest{
			{QuestionID: uuid.New().String(), PointsAwarded: 5},
		},
	}
	if _, err := fx.svc.SaveDraft(context.Background(), ownerID, fx.sub.ID, req); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("got %v, want ErrUnknownQuestion", err)
	}

	req.Items[0].QuestionID = "not-a-uuid"
	if _, err := fx.svc.SaveDraft(context.Background(), ownerID, fx.sub.ID, req); !errors.Is(err, ErrUnknownQuestion) {
		t.Fatalf("got %v, want ErrUnknownQuestion for malformed id", err)
	}
}

func TestSaveDraftGuards(t *testing.T) {
	req := &model.SaveDraftRequest{
		Items: []model.AnswerGradeItemRequest{{QuestionID: uuid.New().String(), PointsAwarded: 1}},
	}

	t.Run("not owner", func(t *testing.T) {
		fx := newGradingFixture(t, model.ExamStatePublished, model.GradeStateUngraded)
		if _, err := fx.svc.SaveDraft(context.Background(), ownerID+1, fx.sub.ID, req); !errors.Is(err, ErrNotExamOwner) {
			t.Fatalf("got %v, want ErrNotExamOwner", err)
		}
	})

	t.Run("exam evaluated", func(t *testing.T) {
		fx := newGradingFixture(t, model.ExamStateEvaluated, model.GradeStateDraft)
		if _, err := fx.svc.SaveDraft(context.Background(), ownerID, fx.sub.ID, req); !errors.Is(err, ErrGradeLocked) {
			t.Fatalf("got %v, want ErrGradeLocked", err)
		}
	})

	t.Run("submission final", func(t *testing.T) {
		fx := newGradingFixture(t, model.ExamStatePublished, model.GradeStateFinal)
		if _, err := fx.svc.SaveDraft(context.Background(), ownerID, fx.sub.ID, req); !errors.Is(err, ErrGradeLocked) {
			t.Fatalf("got %v, want ErrGradeLocked", err)
		}
	})
}

func TestSetDefinitiveSource(t *testing.T) {
	fx := newGradingFixture(t, model.ExamStatePublished, model.GradeStateDraft)
	fx.grades.grades[fx.sub.ID] = &model.Grade{
		SubmissionID:      fx.sub.ID,
		State:             model.GradeStateDraft,
		ManualTotalPoints: fptr(12),
	}

	// The AI track has no total yet.
	err := fx.svc.SetDefinitiveSource(context.Background(), ownerID, fx.sub.ID, model.GradeSourceAI)
	if !errors.Is(err, ErrSourceUnavailable) {
		t.Fatalf("got %v, want ErrSourceUnavailable", err)
	}

	if err := fx.svc.SetDefinitiveSource(context.Background(), ownerID, fx.sub.ID, model.GradeSourceManual); err != nil {
		t.Fatal(err)
	}
	sub, _ := fx.subs.GetByID(context.Background(), fx.sub.ID)
	if sub.DefinitiveSource == nil || *sub.DefinitiveSource != model.GradeSourceManual {
		t.Errorf("definitive source = %v, want MANUAL", sub.DefinitiveSource)
	}
	if sub.TotalPoints == nil || *sub.TotalPoints != 12 {
		t.Errorf("mirrored total = %v, want 12", sub.TotalPoints)
	}
}

func TestSetDefinitiveSourceWithoutGrade(t *testing.T) {
	fx := newGradingFixture(t, model.ExamStatePublished, model.GradeStateUngraded)
	err := fx.svc.SetDefinitiveSource(context.Background(), ownerID, fx.sub.ID, model.GradeSourceManual)
	if !errors.Is(err, ErrGradeNotFound) {
		t.Fatalf("got %v, want ErrGradeNotFound", err)
	}
}

func TestClearGrades(t *testing.T) {
	fx := newGradingFixture(t, model.ExamStatePublished, model.GradeStateDraft)
	fx.grades.grades[fx.sub.ID] = &model.Grade{SubmissionID: fx.sub.ID, State: model.GradeStateDraft}
	fx.sub.TotalPoints = fptr(9)

	if err := fx.svc.ClearGrades(context.Background(), ownerID, fx.exam.ID); err != nil {
		t.Fatal(err)
	}

	sub, _ := fx.subs.GetByID(context.Background(), fx.sub.ID)
	if sub.GradeState != model.GradeStateUngraded || sub.TotalPoints != nil {
		t.Errorf("submission not reset: %+v", sub)
	}
	if _, err := fx.grades.GetBySubmission(context.Background(), fx.sub.ID); err == nil {
		t.Error("grade row should be gone")
	}
}

func TestClearGradesEvaluatedExam(t *testing.T) {
	fx := newGradingFixture(t, model.ExamStateEvaluated, model.GradeStateFinal)
	if err := fx.svc.ClearGrades(context.Background(), ownerID, fx.exam.ID); !errors.Is(err, ErrExamEvaluated) {
		t.Fatalf("got %v, want ErrExamEvaluated", err)
	}
}
