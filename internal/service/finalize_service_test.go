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

type finalizeFixture struct {
	svc    *FinalizeService
	exam   *model.Exam
	exams  *fakeExamStore
	subs   *fakeSubmissionStore
	grades *fakeGradeStore
	ops    *fakeOpStore
	mail   *fakeMailer
}

func newFinalizeFixture(t *testing.T, examState model.ExamState) *finalizeFixture {
	t.Helper()

	exam := &model.Exam{
		ID:      uuid.New(),
		OwnerID: ownerID,
		Title:   "Historia Moderna",
		State:   examState,
	}
	exams := newFakeExamStore(exam)
	subs := newFakeSubmissionStore()
	grades := newFakeGradeStore(subs)
	ops := newFakeOpStore()
	mail := &fakeMailer{}

	svc := NewFinalizeService(exams, &fakeQuestionStore{}, subs, grades, ops, mail, 4, zerolog.Nop())
	return &finalizeFixture{svc: svc, exam: exam, exams: exams, subs: subs, grades: grades, ops: ops, mail: mail}
}

// addDraft registers a GRADED_DRAFT submission with an optional grade row.
func (fx *finalizeFixture) addDraft(email *string, grade *model.Grade) *model.Submission {
	sub := &model.Submission{
		ID:              uuid.New(),
		ExamID:          fx.exam.ID,
		RespondentEmail: email,
		GradeState:      model.GradeStateDraft,
	}
	fx.subs.subs[sub.ID] = sub
	if grade != nil {
		grade.SubmissionID = sub.ID
		fx.grades.grades[sub.ID] = grade
	}
	return sub
}

func TestFinalizeHappyPath(t *testing.T) {
	fx := newFinalizeFixture(t, model.ExamStatePublished)
	graded := fx.addDraft(sptr("ana@example.com"), &model.Grade{
		State:             model.GradeStateDraft,
		ManualTotalPoints: fptr(15),
	})
	anonymous := fx.addDraft(nil, &model.Grade{
		State:             model.GradeStateDraft,
		ManualTotalPoints: fptr(8),
	})

	res, err := fx.svc.Finalize(context.Background(), ownerID, fx.exam.ID, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 1 || res.Skipped != 1 {
		t.Errorf("sent/skipped = %d/%d, want 1/1", res.Sent, res.Skipped)
	}
	if res.Message != "Finalized 2 submissions" {
		t.Errorf("message = %q", res.Message)
	}

	exam, _ := fx.exams.GetByID(context.Background(), fx.exam.ID)
	if exam.State != model.ExamStateEvaluated {
		t.Errorf("exam state = %s, want EVALUATED", exam.State)
	}

	for _, id := range []uuid.UUID{graded.ID, anonymous.ID} {
		sub, _ := fx.subs.GetByID(context.Background(), id)
		if sub.GradeState != model.GradeStateFinal {
			t.Errorf("submission %s state = %s, want GRADED_FINAL", id, sub.GradeState)
		}
	}

	sub, _ := fx.subs.GetByID(context.Background(), graded.ID)
	if sub.DefinitiveSource == nil || *sub.DefinitiveSource != model.GradeSourceManual {
		t.Errorf("definitive source = %v, want MANUAL", sub.DefinitiveSource)
	}
	if sub.TotalPoints == nil || *sub.TotalPoints != 15 {
		t.Errorf("total = %v, want 15", sub.TotalPoints)
	}

	if fx.mail.sentCount() != 1 {
		t.Errorf("sent %d emails, want 1", fx.mail.sentCount())
	}
	if !strings.Contains(fx.mail.sent[0].subject, fx.exam.Title) {
		t.Errorf("subject = %q, want exam title", fx.mail.sent[0].subject)
	}
}

func TestFinalizeReplaySendsNothingTwice(t *testing.T) {
	fx := newFinalizeFixture(t, model.ExamStatePublished)
	fx.addDraft(sptr("ana@example.com"), &model.Grade{
		State:             model.GradeStateDraft,
		ManualTotalPoints: fptr(10),
	})

	requestID := uuid.New()
	first, err := fx.svc.Finalize(context.Background(), ownerID, fx.exam.ID, requestID)
	if err != nil {
		t.Fatal(err)
	}

	replay, err := fx.svc.Finalize(context.Background(), ownerID, fx.exam.ID, requestID)
	if err != nil {
		t.Fatal(err)
	}
	if *replay != *first {
		t.Errorf("replay = %+v, want the stored result %+v", replay, first)
	}
	if fx.mail.sentCount() != 1 {
		t.Errorf("replay resent mail: %d sends", fx.mail.sentCount())
	}
}

func TestFinalizeNewRequestOnEvaluatedExamIsNoOp(t *testing.T) {
	fx := newFinalizeFixture(t, model.ExamStateEvaluated)

	res, err := fx.svc.Finalize(context.Background(), ownerID, fx.exam.ID, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if res.Message != "Exam already evaluated" {
		t.Errorf("message = %q", res.Message)
	}
	if fx.mail.sentCount() != 0 {
		t.Error("no-op must not send mail")
	}
}

func TestFinalizeConcurrentRequestConflicts(t *testing.T) {
	fx := newFinalizeFixture(t, model.ExamStatePublished)
	requestID := uuid.New()

	// Simulate a first call that claimed the ledger and is still running.
	if _, fresh, err := fx.ops.Begin(context.Background(), "finalize:"+fx.exam.ID.String(), requestID); err != nil || !fresh {
		t.Fatalf("seed claim failed: fresh=%v err=%v", fresh, err)
	}

	_, err := fx.svc.Finalize(context.Background(), ownerID, fx.exam.ID, requestID)
	if !errors.Is(err, ErrFinalizeInProgress) {
		t.Fatalf("got %v, want ErrFinalizeInProgress", err)
	}
}

func TestFinalizeDraftExamAbandonsClaim(t *testing.T) {
	fx := newFinalizeFixture(t, model.ExamStateDraft)
	requestID := uuid.New()

	_, err := fx.svc.Finalize(context.Background(), ownerID, fx.exam.ID, requestID)
	if !errors.Is(err, ErrExamNotPublished) {
		t.Fatalf("got %v, want ErrExamNotPublished", err)
	}

	// The claim was abandoned, so the same request ID can retry after the
	// exam is published.
	fx.exam.State = model.ExamStatePublished
	if _, err := fx.svc.Finalize(context.Background(), ownerID, fx.exam.ID, requestID); err != nil {
		t.Fatalf("retry after abandon failed: %v", err)
	}
}

func TestFinalizeNotOwner(t *testing.T) {
	fx := newFinalizeFixture(t, model.ExamStatePublished)
	if _, err := fx.svc.Finalize(context.Background(), ownerID+1, fx.exam.ID, uuid.New()); !errors.Is(err, ErrNotExamOwner) {
		t.Fatalf("got %v, want ErrNotExamOwner", err)
	}
}

func TestFinalizeResolvesDefaultSource(t *testing.T) {
	fx := newFinalizeFixture(t, model.ExamStatePublished)

	bothTracks := fx.addDraft(nil, &model.Grade{
		State:             model.GradeStateDraft,
		ManualTotalPoints: fptr(14),
		AITotalPoints:     fptr(11),
	})
	aiOnly := fx.addDraft(nil, &model.Grade{
		State:         model.GradeStateDraft,
		AITotalPoints: fptr(9),
	})
	explicitAI := model.GradeSourceAI
	pinned := fx.addDraft(nil, &model.Grade{
		State:             model.GradeStateDraft,
		ManualTotalPoints: fptr(20),
		AITotalPoints:     fptr(6),
		DefinitiveSource:  &explicitAI,
	})
	legacy := fx.addDraft(nil, nil)
	legacy.TotalPoints = fptr(5)

	if _, err := fx.svc.Finalize(context.Background(), ownerID, fx.exam.ID, uuid.New()); err != nil {
		t.Fatal(err)
	}

	check := func(id uuid.UUID, wantSource *model.GradeSource, wantTotal float64) {
		t.Helper()
		sub, _ := fx.subs.GetByID(context.Background(), id)
		if sub.TotalPoints == nil || *sub.TotalPoints != wantTotal {
			t.Errorf("submission %s total = %v, want %v", id, sub.TotalPoints, wantTotal)
		}
		switch {
		case wantSource == nil:
			if sub.DefinitiveSource != nil {
				t.Errorf("submission %s source = %v, want nil", id, *sub.DefinitiveSource)
			}
		case sub.DefinitiveSource == nil || *sub.DefinitiveSource != *wantSource:
			t.Errorf("submission %s source = %v, want %v", id, sub.DefinitiveSource, *wantSource)
		}
	}

	manual := model.GradeSourceManual
	ai := model.GradeSourceAI
	check(bothTracks.ID, &manual, 14)
	check(aiOnly.ID, &ai, 9)
	check(pinned.ID, &ai, 6)
	check(legacy.ID, nil, 5)
}

func TestFinalizeMailFailureCountsSkipped(t *testing.T) {
	fx := newFinalizeFixture(t, model.ExamStatePublished)
	fx.mail.failTo = map[string]bool{"bad@example.com": true}

	fx.addDraft(sptr("bad@example.com"), &model.Grade{
		State:             model.GradeStateDraft,
		ManualTotalPoints: fptr(10),
	})
	fx.addDraft(sptr("ok@example.com"), &model.Grade{
		State:             model.GradeStateDraft,
		ManualTotalPoints: fptr(12),
	})

	res, err := fx.svc.Finalize(context.Background(), ownerID, fx.exam.ID, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	if res.Sent != 1 || res.Skipped != 1 {
		t.Errorf("sent/skipped = %d/%d, want 1/1", res.Sent, res.Skipped)
	}

	// Finalization itself must not be rolled back by delivery failures.
	exam, _ := fx.exams.GetByID(context.Background(), fx.exam.ID)
	if exam.State != model.ExamStateEvaluated {
		t.Errorf("exam state = %s, want EVALUATED", exam.State)
	}
}

func TestFinalizeEmailUsesDefinitiveTrack(t *testing.T) {
	fx := newFinalizeFixture(t, model.ExamStatePublished)

	q := model.Question{ID: uuid.New(), ExamID: fx.exam.ID, OrderNum: 1, Text: "Define entropía.", MaxPoints: 10}
	fx.svc.questionRepo = &fakeQuestionStore{questions: []model.Question{q}}

	sub := fx.addDraft(sptr("ana@example.com"), &model.Grade{
		State:             model.GradeStateDraft,
		AITotalPoints:     fptr(7),
		AICommentsOverall: sptr("Resumen del desempeño generado."),
	})
	fx.subs.answers[sub.ID] = []model.Answer{
		{SubmissionID: sub.ID, QuestionID: q.ID, Text: "La entropía mide el desorden."},
	}
	fx.grades.answerGrades[sub.ID] = []model.AnswerGrade{
		{
			SubmissionID:       sub.ID,
			QuestionID:         q.ID,
			AISuggestedPoints:  fptr(7),
			AISuggestedComment: sptr("Correcto pero incompleto."),
		},
	}

	if _, err := fx.svc.Finalize(context.Background(), ownerID, fx.exam.ID, uuid.New()); err != nil {
		t.Fatal(err)
	}
	if fx.mail.sentCount() != 1 {
		t.Fatalf("sent %d emails, want 1", fx.mail.sentCount())
	}

	html := fx.mail.sent[0].html
	for _, want := range []string{"Resumen del desempeño generado.", "Correcto pero incompleto.", "Define entropía."} {
		if !strings.Contains(html, want) {
			t.Errorf("email missing %q", want)
		}
	}
}
