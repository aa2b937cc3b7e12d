package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const examColumns = `id, owner_id, title, description, state, public_token,
		        questions_count, max_total_points, created_at, published_at, finalized_at`

// ExamRepository handles exam data access.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.OwnerID, &e.Title, &e.Description, &e.State, &e.PublicToken,
		&e.QuestionsCount, &e.MaxTotalPoints, &e.CreatedAt, &e.PublishedAt, &e.FinalizedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// GetByPublicToken retrieves an exam by its public submission token.
func (r *ExamRepository) GetByPublicToken(ctx context.Context, token string) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE public_token = $1`, token))
}

// CreateWithQuestions inserts an exam and its questions atomically.
func (r *ExamRepository) CreateWithQuestions(ctx context.Context, e *model.Exam, questions []model.Question) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO exams (id, owner_id, title, description, state, questions_count, max_total_points)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		e.ID, e.OwnerID, e.Title, e.Description, e.State, e.QuestionsCount, e.MaxTotalPoints,
	).Scan(&e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert exam: %w", err)
	}

	for i := range questions {
		questions[i].ExamID = e.ID
		_, err = tx.Exec(ctx,
			`INSERT INTO questions (id, exam_id, order_num, question_text, max_points, rubric_text)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			questions[i].ID, e.ID, questions[i].OrderNum, questions[i].Text, questions[i].MaxPoints, questions[i].RubricText)
		if err != nil {
			return fmt.Errorf("insert question %d: %w", i, err)
		}
	}

	return tx.Commit(ctx)
}

// ListByOwnerPaginated retrieves exams belonging to one professor.
func (r *ExamRepository) ListByOwnerPaginated(ctx context.Context, ownerID, limit, offset int) ([]model.Exam, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exams WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2 OFFSET $3`, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, 0, err
		}
		exams = append(exams, *e)
	}
	return exams, total, rows.Err()
}

// Publish transitions an exam to PUBLISHED, mints its public token and
// freezes the question counters.
func (r *ExamRepository) Publish(ctx context.Context, id uuid.UUID, publicToken string, questionsCount, maxTotalPoints int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET state = $1, public_token = $2, questions_count = $3,
		     max_total_points = $4, published_at = NOW()
		 WHERE id = $5`,
		model.ExamStatePublished, publicToken, questionsCount, maxTotalPoints, id)
	return err
}

// SetEvaluated transitions an exam to its terminal EVALUATED state.
func (r *ExamRepository) SetEvaluated(ctx context.Context, id uuid.UUID, finalizedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exams SET state = $1, finalized_at = $2 WHERE id = $3`,
		model.ExamStateEvaluated, finalizedAt, id)
	return err
}
