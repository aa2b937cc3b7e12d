package model

import (
	"time"

	"github.com/google/uuid"
)

// GradeState enumerates the grading lifecycle of a submission.
// Transitions are monotonic: UNGRADED → GRADED_DRAFT → GRADED_FINAL.
type GradeState string

const (
	GradeStateUngraded GradeState = "UNGRADED"
	GradeStateDraft    GradeState = "GRADED_DRAFT"
	GradeStateFinal    GradeState = "GRADED_FINAL"
)

// GradeSource identifies which scoring track is authoritative.
type GradeSource string

const (
	GradeSourceManual GradeSource = "MANUAL"
	GradeSourceAI     GradeSource = "AI"
)

// Submission is a student's answer set for one exam. The totals and source
// fields are a denormalized mirror of the Grade row so listings need no join;
// total_points always reflects the definitive source's total at last write.
type Submission struct {
	ID                uuid.UUID    `json:"id"`
	ExamID            uuid.UUID    `json:"exam_id"`
	RespondentEmail   *string      `json:"respondent_email,omitempty"`
	RespondentName    *string      `json:"respondent_name,omitempty"`
	GradeState        GradeState   `json:"grade_state"`
	TotalPoints       *float64     `json:"total_points"`
	DefinitiveSource  *GradeSource `json:"definitive_source"`
	ManualTotalPoints *float64     `json:"manual_total_points"`
	AITotalPoints     *float64     `json:"ai_total_points"`
	CreatedAt         time.Time    `json:"created_at"`
}

// Answer is one student answer, keyed by (submission, question).
// Immutable once submitted.
type Answer struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	QuestionID   uuid.UUID `json:"question_id"`
	Text         string    `json:"text"`
}

// SubmitAnswerRequest is one answer inside SubmitExamRequest.
type SubmitAnswerRequest struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	Text       string `json:"text" binding:"max=20000"`
}

// SubmitExamRequest is the public submission payload, addressed by the
// exam's public token.
type SubmitExamRequest struct {
	Token           string                `json:"token" binding:"required"`
	RespondentEmail string                `json:"respondent_email" binding:"required,email"`
	RespondentName  string                `json:"respondent_name" binding:"omitempty,max=255"`
	Answers         []SubmitAnswerRequest `json:"answers" binding:"required,min=1,dive"`
}
