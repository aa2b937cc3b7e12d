package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamState enumerates the lifecycle states of an exam.
// Transitions are monotonic: DRAFT → PUBLISHED → EVALUATED.
type ExamState string

const (
	ExamStateDraft     ExamState = "DRAFT"
	ExamStatePublished ExamState = "PUBLISHED"
	ExamStateEvaluated ExamState = "EVALUATED"
)

// Exam represents an exam entity.
type Exam struct {
	ID             uuid.UUID  `json:"id"`
	OwnerID        int        `json:"owner_id"`
	Title          string     `json:"title"`
	Description    *string    `json:"description,omitempty"`
	State          ExamState  `json:"state"`
	// PublicToken is minted at publish time and identifies the exam on the
	// public submission endpoint.
	PublicToken    *string    `json:"public_token,omitempty"`
	QuestionsCount int        `json:"questions_count"`
	MaxTotalPoints int        `json:"max_total_points"`
	CreatedAt      time.Time  `json:"created_at"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	FinalizedAt    *time.Time `json:"finalized_at,omitempty"`
}

// CreateExamRequest is the payload for creating a new exam with its questions.
type CreateExamRequest struct {
	Title       string                  `json:"title" binding:"required,min=3,max=255"`
	Description string                  `json:"description" binding:"omitempty,max=4000"`
	Questions   []CreateQuestionRequest `json:"questions" binding:"required,min=1,dive"`
}
