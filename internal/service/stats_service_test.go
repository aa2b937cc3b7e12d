package service

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newStatsFixture(t *testing.T) (*StatsService, *model.Exam, *fakeSubmissionStore, *fakeGradeStore) {
	t.Helper()
	exam := &model.Exam{ID: uuid.New(), OwnerID: ownerID, Title: "Química", State: model.ExamStatePublished}
	subs := newFakeSubmissionStore()
	grades := newFakeGradeStore(subs)
	svc := NewStatsService(newFakeExamStore(exam), subs, grades, zerolog.Nop())
	return svc, exam, subs, grades
}

func addGradedSubmission(subs *fakeSubmissionStore, examID uuid.UUID, manual, ai *float64) *model.Submission {
	sub := &model.Submission{
		ID:                uuid.New(),
		ExamID:            examID,
		GradeState:        model.GradeStateDraft,
		ManualTotalPoints: manual,
		AITotalPoints:     ai,
	}
	subs.subs[sub.ID] = sub
	return sub
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestComparisonKnownValues(t *testing.T) {
	svc, exam, subs, _ := newStatsFixture(t)

	// Perfectly linear pairing: correlation must be exactly 1.
	addGradedSubmission(subs, exam.ID, fptr(1), fptr(2))
	addGradedSubmission(subs, exam.ID, fptr(2), fptr(4))
	addGradedSubmission(subs, exam.ID, fptr(3), fptr(6))
	// Unpaired rows feed their own track but not the correlation.
	addGradedSubmission(subs, exam.ID, fptr(10), nil)
	addGradedSubmission(subs, exam.ID, nil, nil)

	stats, err := svc.Comparison(context.Background(), ownerID, exam.ID)
	if err != nil {
		t.Fatal(err)
	}

	if stats.Submissions != 5 {
		t.Errorf("submissions = %d, want 5", stats.Submissions)
	}
	if stats.Manual.Count != 4 || stats.AI.Count != 3 {
		t.Errorf("track counts = %d/%d, want 4/3", stats.Manual.Count, stats.AI.Count)
	}
	if stats.Manual.Mean == nil || !almostEqual(*stats.Manual.Mean, 4) {
		t.Errorf("manual mean = %v, want 4", stats.Manual.Mean)
	}
	if stats.AI.Mean == nil || !almostEqual(*stats.AI.Mean, 4) {
		t.Errorf("ai mean = %v, want 4", stats.AI.Mean)
	}
	if stats.AI.StdDev == nil || !almostEqual(*stats.AI.StdDev, 2) {
		t.Errorf("ai stddev = %v, want 2 (sample)", stats.AI.StdDev)
	}
	if stats.PairedCount != 3 {
		t.Errorf("paired = %d, want 3", stats.PairedCount)
	}
	if stats.Correlation == nil || !almostEqual(*stats.Correlation, 1) {
		t.Errorf("correlation = %v, want 1", stats.Correlation)
	}
	if stats.MeanAbsDiff == nil || !almostEqual(*stats.MeanAbsDiff, 2) {
		t.Errorf("mean abs diff = %v, want 2", stats.MeanAbsDiff)
	}
}

func TestComparisonZeroVarianceHasNoCorrelation(t *testing.T) {
	svc, exam, subs, _ := newStatsFixture(t)

	addGradedSubmission(subs, exam.ID, fptr(5), fptr(3))
	addGradedSubmission(subs, exam.ID, fptr(5), fptr(8))

	stats, err := svc.Comparison(context.Background(), ownerID, exam.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Correlation != nil {
		t.Errorf("correlation = %v, want nil on a constant track", *stats.Correlation)
	}
	if stats.PairedCount != 2 {
		t.Errorf("paired = %d, want 2", stats.PairedCount)
	}
}

func TestComparisonSinglePairHasNoCorrelation(t *testing.T) {
	svc, exam, subs, _ := newStatsFixture(t)
	addGradedSubmission(subs, exam.ID, fptr(5), fptr(4))

	stats, err := svc.Comparison(context.Background(), ownerID, exam.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Correlation != nil {
		t.Errorf("correlation = %v, want nil with one pair", *stats.Correlation)
	}
}

func TestComparisonDiscrepanciesSortedByMagnitude(t *testing.T) {
	svc, exam, subs, grades := newStatsFixture(t)

	sub := addGradedSubmission(subs, exam.ID, fptr(10), fptr(8))
	q1, q2, q3 := uuid.New(), uuid.New(), uuid.New()
	grades.answerGrades[sub.ID] = []model.AnswerGrade{
		{SubmissionID: sub.ID, QuestionID: q1, ManualPoints: fptr(5), AISuggestedPoints: fptr(4)},
		{SubmissionID: sub.ID, QuestionID: q2, ManualPoints: fptr(5), AISuggestedPoints: fptr(1)},
		// Agreement rows never appear in the list.
		{SubmissionID: sub.ID, QuestionID: q3, ManualPoints: fptr(3), AISuggestedPoints: fptr(3)},
		// Single-track rows are not comparable.
		{SubmissionID: sub.ID, QuestionID: uuid.New(), ManualPoints: fptr(2)},
	}

	stats, err := svc.Comparison(context.Background(), ownerID, exam.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(stats.Discrepancies) != 2 {
		t.Fatalf("got %d discrepancies, want 2", len(stats.Discrepancies))
	}
	if stats.Discrepancies[0].QuestionID != q2 {
		t.Errorf("largest disagreement should come first, got question %s", stats.Discrepancies[0].QuestionID)
	}
	if !almostEqual(stats.Discrepancies[0].Diff, 4) {
		t.Errorf("top diff = %v, want 4", stats.Discrepancies[0].Diff)
	}
}

func TestComparisonNotOwner(t *testing.T) {
	svc, exam, _, _ := newStatsFixture(t)
	if _, err := svc.Comparison(context.Background(), ownerID+1, exam.ID); !errors.Is(err, ErrNotExamOwner) {
		t.Fatalf("got %v, want ErrNotExamOwner", err)
	}
}
