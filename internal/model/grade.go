package model

import (
	"time"

	"github.com/google/uuid"
)

// InlineComment is an annotation anchored to a character range within a
// student's answer text. Valid only when
// 0 <= StartIndex < EndIndex <= len(answer text).
type InlineComment struct {
	ID         string      `json:"id"`
	StartIndex int         `json:"startIndex"`
	EndIndex   int         `json:"endIndex"`
	Text       string      `json:"text"`
	Source     GradeSource `json:"source"`
	CreatedAt  time.Time   `json:"createdAt"`
}

// AnswerGrade holds the two independent scoring tracks for one
// (submission, question) pair. Manual saves and AI runs write disjoint
// field sets; neither track ever overwrites the other.
type AnswerGrade struct {
	SubmissionID         uuid.UUID       `json:"submission_id"`
	QuestionID           uuid.UUID       `json:"question_id"`
	ManualPoints         *float64        `json:"manual_points"`
	ManualComment        *string         `json:"manual_comment"`
	ManualInlineComments []InlineComment `json:"manual_inline_comments"`
	AISuggestedPoints    *float64        `json:"ai_suggested_points"`
	AISuggestedComment   *string         `json:"ai_suggested_comment"`
	AIInlineComments     []InlineComment `json:"ai_inline_comments"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Grade aggregates per-answer scores into submission totals. Totals are
// re-derivable from the AnswerGrade rows; the stored values must always
// match a recomputation over the full set.
type Grade struct {
	SubmissionID          uuid.UUID    `json:"submission_id"`
	State                 GradeState   `json:"state"`
	ManualTotalPoints     *float64     `json:"manual_total_points"`
	AITotalPoints         *float64     `json:"ai_total_points"`
	ManualCommentsOverall *string      `json:"manual_comments_overall"`
	AICommentsOverall     *string      `json:"ai_comments_overall"`
	DefinitiveSource      *GradeSource `json:"definitive_source"`
	UpdatedAt             time.Time    `json:"updated_at"`
	FinalizedAt           *time.Time   `json:"finalized_at,omitempty"`
}

// SubmissionDetail joins one submission with its questions, answers and
// both grade tracks for the correction view.
type SubmissionDetail struct {
	Submission Submission     `json:"submission"`
	Grade      *Grade         `json:"grade"`
	Items      []GradedAnswer `json:"items"`
}

// GradedAnswer pairs a question with the student's answer and its grade.
type GradedAnswer struct {
	Question Question     `json:"question"`
	Answer   *Answer      `json:"answer"`
	Grade    *AnswerGrade `json:"grade"`
}

// InlineCommentRequest is one manual inline comment inside SaveDraftRequest.
type InlineCommentRequest struct {
	ID         string `json:"id" binding:"required,max=64"`
	StartIndex int    `json:"startIndex" binding:"min=0"`
	EndIndex   int    `json:"endIndex" binding:"min=0"`
	Text       string `json:"text" binding:"required,max=1000"`
}

// AnswerGradeItemRequest is the manual grade for one question.
type AnswerGradeItemRequest struct {
	QuestionID     string                 `json:"question_id" binding:"required,uuid"`
	PointsAwarded  float64                `json:"points_awarded" binding:"min=0"`
	Comment        string                 `json:"comment" binding:"omitempty,max=4000"`
	InlineComments []InlineCommentRequest `json:"inline_comments" binding:"omitempty,dive"`
}

// SaveDraftRequest is the manual draft-grading payload.
type SaveDraftRequest struct {
	Items                 []AnswerGradeItemRequest `json:"items" binding:"required,min=1,dive"`
	ManualCommentsOverall string                   `json:"manual_comments_overall" binding:"omitempty,max=8000"`
}

// SetSourceRequest selects the definitive scoring track for a submission.
type SetSourceRequest struct {
	Source GradeSource `json:"source" binding:"required,oneof=MANUAL AI"`
}

// FinalizeRequest locks all draft grades of an exam. RequestID makes the
// operation replay-safe: a repeated call returns the cached result without
// sending further notifications.
type FinalizeRequest struct {
	RequestID string `json:"request_id" binding:"omitempty,uuid"`
}

// FinalizeResult is the idempotent outcome of a finalize call.
type FinalizeResult struct {
	Sent    int    `json:"sent"`
	Skipped int    `json:"skipped"`
	Message string `json:"message"`
}
