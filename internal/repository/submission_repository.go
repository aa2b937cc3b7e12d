package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const submissionColumns = `id, exam_id, respondent_email, respondent_name, grade_state,
		        total_points, definitive_source, manual_total_points, ai_total_points, created_at`

// SubmissionRepository handles submission and answer data access.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

func scanSubmission(row pgx.Row) (*model.Submission, error) {
	s := &model.Submission{}
	err := row.Scan(&s.ID, &s.ExamID, &s.RespondentEmail, &s.RespondentName, &s.GradeState,
		&s.TotalPoints, &s.DefinitiveSource, &s.ManualTotalPoints, &s.AITotalPoints, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// GetByID retrieves a submission by its UUID.
func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	return scanSubmission(r.pool.QueryRow(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id))
}

// ExistsByEmail reports whether a respondent already submitted to an exam.
func (r *SubmissionRepository) ExistsByEmail(ctx context.Context, examID uuid.UUID, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM submissions WHERE exam_id = $1 AND respondent_email = $2)`,
		examID, email).Scan(&exists)
	return exists, err
}

// CreateWithAnswers inserts a submission and all its answers atomically.
func (r *SubmissionRepository) CreateWithAnswers(ctx context.Context, s *model.Submission, answers []model.Answer) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO submissions (id, exam_id, respondent_email, respondent_name, grade_state)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		s.ID, s.ExamID, s.RespondentEmail, s.RespondentName, model.GradeStateUngraded,
	).Scan(&s.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	s.GradeState = model.GradeStateUngraded

	for i := range answers {
		answers[i].SubmissionID = s.ID
		if _, err := tx.Exec(ctx,
			`INSERT INTO answers (submission_id, question_id, answer_text)
			 VALUES ($1, $2, $3)`,
			s.ID, answers[i].QuestionID, answers[i].Text); err != nil {
			return fmt.Errorf("insert answer: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// ListByExamPaginated lists an exam's submissions newest first.
func (r *SubmissionRepository) ListByExamPaginated(ctx context.Context, examID uuid.UUID, limit, offset int) ([]model.Submission, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM submissions WHERE exam_id = $1`, examID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE exam_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, examID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	subs, err := collectSubmissions(rows)
	if err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// ListByGradeState returns all submissions of an exam in one grade state.
// Finalize uses it to collect the GRADED_DRAFT eligible set.
func (r *SubmissionRepository) ListByGradeState(ctx context.Context, examID uuid.UUID, state model.GradeState) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE exam_id = $1 AND grade_state = $2
		 ORDER BY created_at ASC`, examID, state)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubmissions(rows)
}

// ListByExam returns every submission of an exam, oldest first.
func (r *SubmissionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE exam_id = $1
		 ORDER BY created_at ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubmissions(rows)
}

// ListAIUngraded returns submissions that have no AI total yet — the work
// set of one grading job.
func (r *SubmissionRepository) ListAIUngraded(ctx context.Context, examID uuid.UUID) ([]model.Submission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+submissionColumns+` FROM submissions
		 WHERE exam_id = $1 AND ai_total_points IS NULL
		 ORDER BY created_at ASC`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSubmissions(rows)
}

// ListAnswers returns all answers of one submission keyed by question.
func (r *SubmissionRepository) ListAnswers(ctx context.Context, submissionID uuid.UUID) ([]model.Answer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT submission_id, question_id, answer_text
		 FROM answers WHERE submission_id = $1`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.Answer
	for rows.Next() {
		var a model.Answer
		if err := rows.Scan(&a.SubmissionID, &a.QuestionID, &a.Text); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

// IsNotFound reports whether err is the driver's no-rows sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

func collectSubmissions(rows pgx.Rows) ([]model.Submission, error) {
	var subs []model.Submission
	for rows.Next() {
		s, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, rows.Err()
}
