package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GradeRepository handles grade and answer-grade data access. The manual
// and AI tracks live in disjoint column sets; every write here touches only
// one track, so a manual save and an AI run can never clobber each other.
type GradeRepository struct {
	pool *pgxpool.Pool
}

// NewGradeRepository creates a new GradeRepository.
func NewGradeRepository(pool *pgxpool.Pool) *GradeRepository {
	return &GradeRepository{pool: pool}
}

// GetBySubmission retrieves the grade row for a submission.
func (r *GradeRepository) GetBySubmission(ctx context.Context, submissionID uuid.UUID) (*model.Grade, error) {
	g := &model.Grade{}
	err := r.pool.QueryRow(ctx,
		`SELECT submission_id, state, manual_total_points, ai_total_points,
		        manual_comments_overall, ai_comments_overall, definitive_source,
		        updated_at, finalized_at
		 FROM grades WHERE submission_id = $1`, submissionID,
	).Scan(&g.SubmissionID, &g.State, &g.ManualTotalPoints, &g.AITotalPoints,
		&g.ManualCommentsOverall, &g.AICommentsOverall, &g.DefinitiveSource,
		&g.UpdatedAt, &g.FinalizedAt)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// ListAnswerGrades returns all per-question grade records of a submission.
func (r *GradeRepository) ListAnswerGrades(ctx context.Context, submissionID uuid.UUID) ([]model.AnswerGrade, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT submission_id, question_id, manual_points, manual_comment, manual_inline_comments,
		        ai_suggested_points, ai_suggested_comment, ai_inline_comments, updated_at
		 FROM answer_grades WHERE submission_id = $1`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var grades []model.AnswerGrade
	for rows.Next() {
		var ag model.AnswerGrade
		var manualJSON, aiJSON []byte
		if err := rows.Scan(&ag.SubmissionID, &ag.QuestionID, &ag.ManualPoints, &ag.ManualComment, &manualJSON,
			&ag.AISuggestedPoints, &ag.AISuggestedComment, &aiJSON, &ag.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(manualJSON, &ag.ManualInlineComments); err != nil {
			return nil, fmt.Errorf("decode manual inline comments: %w", err)
		}
		if err := json.Unmarshal(aiJSON, &ag.AIInlineComments); err != nil {
			return nil, fmt.Errorf("decode ai inline comments: %w", err)
		}
		grades = append(grades, ag)
	}
	return grades, rows.Err()
}

// SaveManualDraft persists a professor's draft grading pass in one
// transaction: the manual track of every answer grade, the grade roll-up
// and the submission mirror. AI columns are untouched.
func (r *GradeRepository) SaveManualDraft(ctx context.Context, submissionID uuid.UUID, items []model.AnswerGrade, manualTotal float64, commentsOverall *string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, item := range items {
		inlineJSON, err := json.Marshal(item.ManualInlineComments)
		if err != nil {
			return fmt.Errorf("encode inline comments: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO answer_grades (submission_id, question_id, manual_points, manual_comment, manual_inline_comments)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (submission_id, question_id) DO UPDATE
			 SET manual_points = EXCLUDED.manual_points,
			     manual_comment = EXCLUDED.manual_comment,
			     manual_inline_comments = EXCLUDED.manual_inline_comments,
			     updated_at = NOW()`,
			submissionID, item.QuestionID, item.ManualPoints, item.ManualComment, inlineJSON); err != nil {
			return fmt.Errorf("upsert answer grade: %w", err)
		}
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO grades (submission_id, state, manual_total_points, manual_comments_overall, definitive_source)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (submission_id) DO UPDATE
		 SET state = EXCLUDED.state,
		     manual_total_points = EXCLUDED.manual_total_points,
		     manual_comments_overall = EXCLUDED.manual_comments_overall,
		     definitive_source = EXCLUDED.definitive_source,
		     updated_at = NOW()`,
		submissionID, model.GradeStateDraft, manualTotal, commentsOverall, model.GradeSourceManual); err != nil {
		return fmt.Errorf("upsert grade: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE submissions
		 SET grade_state = $1, manual_total_points = $2, total_points = $2, definitive_source = $3
		 WHERE id = $4`,
		model.GradeStateDraft, manualTotal, model.GradeSourceManual, submissionID); err != nil {
		return fmt.Errorf("update submission mirror: %w", err)
	}

	return tx.Commit(ctx)
}

// UpsertAIAnswerGrade writes the AI track of one answer grade, leaving the
// manual track intact.
func (r *GradeRepository) UpsertAIAnswerGrade(ctx context.Context, ag model.AnswerGrade) error {
	inlineJSON, err := json.Marshal(ag.AIInlineComments)
	if err != nil {
		return fmt.Errorf("encode inline comments: %w", err)
	}
	_, err = r.pool.Exec(ctx,
		`INSERT INTO answer_grades (submission_id, question_id, ai_suggested_points, ai_suggested_comment, ai_inline_comments)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (submission_id, question_id) DO UPDATE
		 SET ai_suggested_points = EXCLUDED.ai_suggested_points,
		     ai_suggested_comment = EXCLUDED.ai_suggested_comment,
		     ai_inline_comments = EXCLUDED.ai_inline_comments,
		     updated_at = NOW()`,
		ag.SubmissionID, ag.QuestionID, ag.AISuggestedPoints, ag.AISuggestedComment, inlineJSON)
	return err
}

// SetAIOverallComment stores the model's overall comment on the grade row.
func (r *GradeRepository) SetAIOverallComment(ctx context.Context, submissionID uuid.UUID, comment string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO grades (submission_id, state, ai_comments_overall)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (submission_id) DO UPDATE
		 SET ai_comments_overall = EXCLUDED.ai_comments_overall, updated_at = NOW()`,
		submissionID, model.GradeStateDraft, comment)
	return err
}

// UpdateAITotals re-derives the submission's AI total from its stored
// answer-grade rows and writes the grade row and the submission mirror in
// one transaction. Deriving from the rows (instead of trusting the
// caller's running sum) makes the write idempotent and immune to drift.
//
// definitive_source and the submission's primary total_points are owned by
// the definitive-source resolver and are never touched here. When no
// answer grade carries AI points the total stays NULL and nil is returned.
func (r *GradeRepository) UpdateAITotals(ctx context.Context, submissionID uuid.UUID) (*float64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var total *float64
	err = tx.QueryRow(ctx,
		`SELECT SUM(ai_suggested_points)
		 FROM answer_grades
		 WHERE submission_id = $1 AND ai_suggested_points IS NOT NULL`,
		submissionID).Scan(&total)
	if err != nil {
		return nil, fmt.Errorf("sum ai points: %w", err)
	}
	if total == nil {
		return nil, nil
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO grades (submission_id, state, ai_total_points)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (submission_id) DO UPDATE
		 SET ai_total_points = EXCLUDED.ai_total_points, updated_at = NOW()`,
		submissionID, model.GradeStateDraft, *total); err != nil {
		return nil, fmt.Errorf("upsert grade total: %w", err)
	}

	// AI suggestions make an ungraded submission draft-graded so finalize
	// can pick it up; an existing draft or final state is left alone.
	if _, err := tx.Exec(ctx,
		`UPDATE submissions
		 SET ai_total_points = $1,
		     grade_state = CASE WHEN grade_state = $2 THEN $3 ELSE grade_state END
		 WHERE id = $4`,
		*total, model.GradeStateUngraded, model.GradeStateDraft, submissionID); err != nil {
		return nil, fmt.Errorf("update submission mirror: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return total, nil
}

// SetDefinitiveSource atomically records the chosen source on the grade row
// and mirrors source + total onto the submission.
func (r *GradeRepository) SetDefinitiveSource(ctx context.Context, submissionID uuid.UUID, source model.GradeSource, total float64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE grades SET definitive_source = $1, updated_at = NOW() WHERE submission_id = $2`,
		source, submissionID); err != nil {
		return fmt.Errorf("update grade source: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE submissions SET definitive_source = $1, total_points = $2 WHERE id = $3`,
		source, total, submissionID); err != nil {
		return fmt.Errorf("update submission mirror: %w", err)
	}

	return tx.Commit(ctx)
}

// FinalizeSubmission locks one submission's grade in a single transaction.
// The WHERE guard keeps the transition monotonic: an already-final
// submission is never rewritten.
func (r *GradeRepository) FinalizeSubmission(ctx context.Context, submissionID uuid.UUID, source *model.GradeSource, totalPoints *float64, finalizedAt time.Time) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE submissions
		 SET grade_state = $1, definitive_source = $2, total_points = $3
		 WHERE id = $4 AND grade_state = $5`,
		model.GradeStateFinal, source, totalPoints, submissionID, model.GradeStateDraft); err != nil {
		return fmt.Errorf("finalize submission: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE grades
		 SET state = $1, finalized_at = $2, definitive_source = $3, updated_at = NOW()
		 WHERE submission_id = $4`,
		model.GradeStateFinal, finalizedAt, source, submissionID); err != nil {
		return fmt.Errorf("finalize grade: %w", err)
	}

	return tx.Commit(ctx)
}

// ClearByExam wipes all grading data of one exam: answer grades, grade
// rows and the denormalized submission fields. Dev/reset tooling only.
func (r *GradeRepository) ClearByExam(ctx context.Context, examID uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`DELETE FROM answer_grades
		 WHERE submission_id IN (SELECT id FROM submissions WHERE exam_id = $1)`, examID); err != nil {
		return fmt.Errorf("delete answer grades: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`DELETE FROM grades
		 WHERE submission_id IN (SELECT id FROM submissions WHERE exam_id = $1)`, examID); err != nil {
		return fmt.Errorf("delete grades: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE submissions
		 SET grade_state = $1, total_points = NULL, definitive_source = NULL,
		     manual_total_points = NULL, ai_total_points = NULL
		 WHERE exam_id = $2`,
		model.GradeStateUngraded, examID); err != nil {
		return fmt.Errorf("reset submissions: %w", err)
	}

	return tx.Commit(ctx)
}
