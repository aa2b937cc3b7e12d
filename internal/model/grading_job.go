package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus enumerates grading-job states. PENDING → PROCESSING →
// {COMPLETED | FAILED}, monotonic. Terminal jobs are kept as audit rows
// and never retried automatically.
type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

// GradingMode is the tone/strictness parameter passed to the AI grader.
type GradingMode string

const (
	GradingModeNeutral GradingMode = "NEUTRAL"
	GradingModeStrict  GradingMode = "STRICT"
	GradingModeLenient GradingMode = "LENIENT"
)

// GradingJob is one "generate AI suggestions" run for an exam.
type GradingJob struct {
	ID          uuid.UUID   `json:"id"`
	ExamID      uuid.UUID   `json:"exam_id"`
	OwnerID     int         `json:"owner_id"`
	Status      JobStatus   `json:"status"`
	Mode        GradingMode `json:"mode"`
	Error       *string     `json:"error,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	StartedAt   *time.Time  `json:"started_at,omitempty"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// CreateGradingJobRequest schedules AI suggestion generation for an exam.
type CreateGradingJobRequest struct {
	Mode string `json:"mode" binding:"omitempty,oneof=NEUTRAL STRICT LENIENT"`
}

// JobEvent is the pub/sub payload for job status transitions, relayed to
// the owning professor over the WebSocket job stream.
type JobEvent struct {
	JobID  uuid.UUID `json:"job_id"`
	ExamID uuid.UUID `json:"exam_id"`
	Status JobStatus `json:"status"`
	Error  string    `json:"error,omitempty"`
}
