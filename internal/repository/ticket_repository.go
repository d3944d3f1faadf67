package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/handoff-service/internal/domain"
)

// ErrClaimConflict is returned when a conditional claim update matches no row
// because another operator already holds the claim.
var ErrClaimConflict = errors.New("ticket claimed by another operator")

const ticketColumns = `id, channel_id, requester_name, company_name, tax_id, category,
               description, status, claimant_operator_id, claimant_name, created_at, resolved_at`

// TicketRepository encapsulates ticket persistence. All state transitions are
// single-row conditional updates so the at-most-one-claimant invariant holds
// under concurrent claim attempts without any in-process locking.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	GetActiveByChannel(ctx context.Context, channelID string) (*domain.Ticket, error)
	ListUnclaimed(ctx context.Context, limit int) ([]domain.Ticket, error)
	ListByClaimant(ctx context.Context, operatorID string) ([]domain.Ticket, error)
	List(ctx context.Context, limit, offset int) ([]domain.Ticket, error)
	Claim(ctx context.Context, id string, operatorID *string, operatorName string) (*domain.Ticket, error)
	Transfer(ctx context.Context, id string, operatorID *string, operatorName string) (*domain.Ticket, error)
	Resolve(ctx context.Context, id string) (*domain.Ticket, error)
	Reopen(ctx context.Context, id string) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (id, channel_id, requester_name, company_name, tax_id, category, description, status)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.ChannelID,
		ticket.RequesterName,
		ticket.CompanyName,
		ticket.TaxID,
		ticket.Category,
		ticket.Description,
		ticket.Status,
	).Scan(&ticket.CreatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

// GetActiveByChannel returns the newest pending or claimed ticket for a
// channel; used to route further inbound text into an ongoing conversation.
func (r *ticketRepository) GetActiveByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + `
        FROM tickets WHERE channel_id=$1 AND status IN ('pending','claimed')
        ORDER BY created_at DESC LIMIT 1`
	return r.fetchSingle(ctx, query, channelID)
}

func (r *ticketRepository) ListUnclaimed(ctx context.Context, limit int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT ` + ticketColumns + `
        FROM tickets WHERE status='pending' AND claimant_name IS NULL
        ORDER BY created_at DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListByClaimant(ctx context.Context, operatorID string) ([]domain.Ticket, error) {
	const query = `SELECT ` + ticketColumns + `
        FROM tickets WHERE status='claimed' AND claimant_operator_id=$1
        ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, operatorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) List(ctx context.Context, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `SELECT ` + ticketColumns + `
        FROM tickets ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// Claim performs an atomic conditional claim. The WHERE clause admits three
// cases: the ticket is unclaimed, or the same operator id already holds it, or
// a legacy claimant (no operator id) with the same display name holds it. A
// zero-row result against an existing ticket means another operator won.
func (r *ticketRepository) Claim(ctx context.Context, id string, operatorID *string, operatorName string) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets
        SET status='claimed', claimant_operator_id=$2, claimant_name=$3
        WHERE id=$1 AND (
            claimant_name IS NULL
            OR ($2::text IS NOT NULL AND claimant_operator_id=$2)
            OR ($2::text IS NULL AND claimant_operator_id IS NULL AND claimant_name=$3)
        )
        RETURNING ` + ticketColumns
	ticket, err := r.scanSingle(r.pool.QueryRow(ctx, query, id, operatorID, operatorName))
	if err == nil {
		return ticket, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	// Distinguish a missing ticket from a lost claim race.
	existing, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	return existing, ErrClaimConflict
}

func (r *ticketRepository) Transfer(ctx context.Context, id string, operatorID *string, operatorName string) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets
        SET claimant_operator_id=$2, claimant_name=$3
        WHERE id=$1 AND status='claimed'
        RETURNING ` + ticketColumns
	return r.scanSingle(r.pool.QueryRow(ctx, query, id, operatorID, operatorName))
}

// Resolve closes the ticket and releases the claim. Claimed iff claimant holds
// in every state; the resolver's name lives in the event stream, not the row.
func (r *ticketRepository) Resolve(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets
        SET status='resolved', claimant_operator_id=NULL, claimant_name=NULL, resolved_at=NOW()
        WHERE id=$1
        RETURNING ` + ticketColumns
	return r.scanSingle(r.pool.QueryRow(ctx, query, id))
}

// Reopen puts the ticket back in the unclaimed pool: claimant cleared,
// resolution timestamp dropped, history retained in the messages table.
func (r *ticketRepository) Reopen(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        UPDATE tickets
        SET status='pending', claimant_operator_id=NULL, claimant_name=NULL, resolved_at=NULL
        WHERE id=$1
        RETURNING ` + ticketColumns
	return r.scanSingle(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	return r.scanSingle(r.pool.QueryRow(ctx, query, arg))
}

func (r *ticketRepository) scanSingle(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.ChannelID,
		&ticket.RequesterName,
		&ticket.CompanyName,
		&ticket.TaxID,
		&ticket.Category,
		&ticket.Description,
		&ticket.Status,
		&ticket.ClaimantOperator,
		&ticket.ClaimantName,
		&ticket.CreatedAt,
		&ticket.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.ChannelID,
			&ticket.RequesterName,
			&ticket.CompanyName,
			&ticket.TaxID,
			&ticket.Category,
			&ticket.Description,
			&ticket.Status,
			&ticket.ClaimantOperator,
			&ticket.ClaimantName,
			&ticket.CreatedAt,
			&ticket.ResolvedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
