package repository

import (
	"context"

	"github.com/corrigolabs/corrigo-backend/internal/model"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProfessorRepository handles professor account data access.
type ProfessorRepository struct {
	pool *pgxpool.Pool
}

// NewProfessorRepository creates a new ProfessorRepository.
func NewProfessorRepository(pool *pgxpool.Pool) *ProfessorRepository {
	return &ProfessorRepository{pool: pool}
}

// GetByID retrieves a professor by primary key.
func (r *ProfessorRepository) GetByID(ctx context.Context, id int) (*model.Professor, error) {
	p := &model.Professor{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, openai_api_key, created_at, updated_at
		 FROM professors WHERE id = $1`, id,
	).Scan(&p.ID, &p.Email, &p.Name, &p.PasswordHash, &p.OpenAIAPIKey, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// GetByEmail retrieves a professor by email for login.
func (r *ProfessorRepository) GetByEmail(ctx context.Context, email string) (*model.Professor, error) {
	p := &model.Professor{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, openai_api_key, created_at, updated_at
		 FROM professors WHERE email = $1`, email,
	).Scan(&p.ID, &p.Email, &p.Name, &p.PasswordHash, &p.OpenAIAPIKey, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a new professor account.
func (r *ProfessorRepository) Create(ctx context.Context, p *model.Professor) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO professors (email, name, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		p.Email, p.Name, p.PasswordHash,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
}

// UpdateAPIKey stores or clears a professor's model credential.
// Pass nil to clear.
func (r *ProfessorRepository) UpdateAPIKey(ctx context.Context, id int, apiKey *string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE professors SET openai_api_key = $1, updated_at = NOW() WHERE id = $2`,
		apiKey, id)
	return err
}
