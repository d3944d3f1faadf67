package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/handoff-service/internal/domain"
)

const analystColumns = `id, username, password_hash, full_name, email, role, discord_id, active, created_at, updated_at`

// AnalystRepository manages operator accounts.
type AnalystRepository interface {
	Create(ctx context.Context, analyst *domain.Analyst) error
	Update(ctx context.Context, analyst *domain.Analyst) error
	Deactivate(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Analyst, error)
	GetByUsername(ctx context.Context, username string) (*domain.Analyst, error)
	List(ctx context.Context, includeInactive bool) ([]domain.Analyst, error)
}

type analystRepository struct {
	pool *pgxpool.Pool
}

// NewAnalystRepository instantiates repository.
func NewAnalystRepository(pool *pgxpool.Pool) AnalystRepository {
	return &analystRepository{pool: pool}
}

func (r *analystRepository) Create(ctx context.Context, analyst *domain.Analyst) error {
	const query = `
        INSERT INTO analysts (username, password_hash, full_name, email, role, discord_id, active)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		analyst.Username,
		analyst.PasswordHash,
		analyst.FullName,
		analyst.Email,
		analyst.Role,
		analyst.DiscordID,
		analyst.Active,
	).Scan(&analyst.ID, &analyst.CreatedAt, &analyst.UpdatedAt)
}

func (r *analystRepository) Update(ctx context.Context, analyst *domain.Analyst) error {
	const query = `
        UPDATE analysts
        SET password_hash=$1, full_name=$2, email=$3, role=$4, discord_id=$5, active=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		analyst.PasswordHash,
		analyst.FullName,
		analyst.Email,
		analyst.Role,
		analyst.DiscordID,
		analyst.Active,
		analyst.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *analystRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE analysts SET active=false, updated_at=NOW() WHERE id=$1`
	cmd, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *analystRepository) GetByID(ctx context.Context, id string) (*domain.Analyst, error) {
	const query = `SELECT ` + analystColumns + ` FROM analysts WHERE id=$1`
	return scanAnalyst(r.pool.QueryRow(ctx, query, id))
}

func (r *analystRepository) GetByUsername(ctx context.Context, username string) (*domain.Analyst, error) {
	const query = `SELECT ` + analystColumns + ` FROM analysts WHERE username=$1 AND active=true`
	return scanAnalyst(r.pool.QueryRow(ctx, query, username))
}

func (r *analystRepository) List(ctx context.Context, includeInactive bool) ([]domain.Analyst, error) {
	query := `SELECT ` + analystColumns + ` FROM analysts WHERE active=true ORDER BY full_name ASC`
	if includeInactive {
		query = `SELECT ` + analystColumns + ` FROM analysts ORDER BY full_name ASC`
	}
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Analyst
	for rows.Next() {
		var a domain.Analyst
		if err := rows.Scan(
			&a.ID,
			&a.Username,
			&a.PasswordHash,
			&a.FullName,
			&a.Email,
			&a.Role,
			&a.DiscordID,
			&a.Active,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

func scanAnalyst(row pgx.Row) (*domain.Analyst, error) {
	var a domain.Analyst
	if err := row.Scan(
		&a.ID,
		&a.Username,
		&a.PasswordHash,
		&a.FullName,
		&a.Email,
		&a.Role,
		&a.DiscordID,
		&a.Active,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}
