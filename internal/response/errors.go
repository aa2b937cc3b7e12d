package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation ErrCode = "VALIDATION_ERROR"
	ErrInvalidID  ErrCode = "INVALID_ID"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Exam lifecycle ────────────────────────────────────────────────
	ErrNotExamOwner     ErrCode = "NOT_EXAM_OWNER"
	ErrExamNotDraft     ErrCode = "EXAM_NOT_DRAFT"
	ErrExamNotPublished ErrCode = "EXAM_NOT_PUBLISHED"
	ErrExamEvaluated    ErrCode = "EXAM_EVALUATED"
	ErrNoQuestions      ErrCode = "NO_QUESTIONS"
	ErrAlreadySubmitted ErrCode = "ALREADY_SUBMITTED"

	// ─── Grading ───────────────────────────────────────────────────────
	ErrGradeNotFound     ErrCode = "GRADE_NOT_FOUND"
	ErrSourceUnavailable ErrCode = "SOURCE_UNAVAILABLE"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid or expired."
	case ErrValidation:
		return "The request contains invalid fields."
	case ErrInvalidID:
		return "The provided identifier is not valid."

	case ErrNotFound:
		return "The requested resource was not found."
	case ErrConflict:
		return "The request conflicts with the current state of the resource."

	case ErrNotExamOwner:
		return "Only the exam owner can perform this action."
	case ErrExamNotDraft:
		return "This action requires the exam to be in DRAFT state."
	case ErrExamNotPublished:
		return "This action requires the exam to be PUBLISHED."
	case ErrExamEvaluated:
		return "The exam has been finalized; grades can no longer be modified."
	case ErrNoQuestions:
		return "The exam has no questions."
	case ErrAlreadySubmitted:
		return "An answer set has already been submitted for this exam."

	case ErrGradeNotFound:
		return "No grade exists for this submission yet."
	case ErrSourceUnavailable:
		return "The requested grade source has no total yet and cannot be made definitive."

	case ErrRateLimitExceeded:
		return "Too many requests. Please slow down."

	case ErrInternal:
		return "An internal error occurred."
	default:
		return "Unknown error."
	}
}
