package model

import "github.com/google/uuid"

// Question represents one free-text exam question with its grading rubric.
// Immutable once the exam is published.
type Question struct {
	ID         uuid.UUID `json:"id"`
	ExamID     uuid.UUID `json:"exam_id"`
	OrderNum   int       `json:"order_num"`
	Text       string    `json:"text"`
	MaxPoints  int       `json:"max_points"`
	RubricText string    `json:"rubric_text"`
}

// CreateQuestionRequest is one question inside CreateExamRequest.
type CreateQuestionRequest struct {
	Text       string `json:"text" binding:"required,min=3,max=8000"`
	MaxPoints  int    `json:"max_points" binding:"required,min=1,max=100"`
	RubricText string `json:"rubric_text" binding:"omitempty,max=8000"`
}
