package model

import "github.com/google/uuid"

// TrackStats summarizes one scoring track over an exam's submissions.
type TrackStats struct {
	Count  int      `json:"count"`
	Mean   *float64 `json:"mean"`
	StdDev *float64 `json:"std_dev"`
}

// Discrepancy is one (submission, question) pair where the manual and AI
// scores disagree.
type Discrepancy struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	QuestionID   uuid.UUID `json:"question_id"`
	ManualPoints float64   `json:"manual_points"`
	AIPoints     float64   `json:"ai_points"`
	Diff         float64   `json:"diff"`
}

// ComparisonStats contrasts the manual and AI tracks over one exam:
// per-track aggregates, the Pearson correlation of the paired totals and
// the largest per-answer disagreements.
type ComparisonStats struct {
	Submissions   int           `json:"submissions"`
	Manual        TrackStats    `json:"manual"`
	AI            TrackStats    `json:"ai"`
	PairedCount   int           `json:"paired_count"`
	Correlation   *float64      `json:"correlation"`
	MeanAbsDiff   *float64      `json:"mean_abs_diff"`
	Discrepancies []Discrepancy `json:"discrepancies"`
}
