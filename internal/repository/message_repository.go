package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/handoff-service/internal/domain"
)

const messageColumns = `id, ticket_id, content, direction, author, status, created_at, delivered_at, read_at`

// MessageRepository manages conversation messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, id string) (*domain.Message, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error)
	UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) (*domain.Message, error)
	MarkAllRead(ctx context.Context, ticketID string) ([]string, error)
}

type messageRepository struct {
	pool *pgxpool.Pool
}

// NewMessageRepository builds repository.
func NewMessageRepository(pool *pgxpool.Pool) MessageRepository {
	return &messageRepository{pool: pool}
}

func (r *messageRepository) Create(ctx context.Context, msg *domain.Message) error {
	const query = `
        INSERT INTO messages (id, ticket_id, content, direction, author, status)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING created_at`
	return r.pool.QueryRow(ctx, query,
		msg.ID,
		msg.TicketID,
		msg.Content,
		msg.Direction,
		msg.Author,
		msg.Status,
	).Scan(&msg.CreatedAt)
}

func (r *messageRepository) GetByID(ctx context.Context, id string) (*domain.Message, error) {
	const query = `SELECT ` + messageColumns + ` FROM messages WHERE id=$1`
	return scanMessage(r.pool.QueryRow(ctx, query, id))
}

// ListByTicket returns the full conversation ordered by creation time
// ascending; the router replays this as history on subscribe.
func (r *messageRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.Message, error) {
	const query = `SELECT ` + messageColumns + `
        FROM messages WHERE ticket_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Message
	for rows.Next() {
		msg, err := scanMessageRow(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *msg)
	}
	return result, rows.Err()
}

// UpdateStatus advances delivery status, stamping delivered_at/read_at the
// first time each status is reached.
func (r *messageRepository) UpdateStatus(ctx context.Context, id string, status domain.MessageStatus) (*domain.Message, error) {
	const query = `
        UPDATE messages
        SET status=$2,
            delivered_at = CASE WHEN $2='delivered' AND delivered_at IS NULL THEN NOW() ELSE delivered_at END,
            read_at      = CASE WHEN $2='read' AND read_at IS NULL THEN NOW() ELSE read_at END
        WHERE id=$1
        RETURNING ` + messageColumns
	return scanMessage(r.pool.QueryRow(ctx, query, id, status))
}

// MarkAllRead advances every unread incoming message of a ticket and returns
// the affected ids for the room status broadcast.
func (r *messageRepository) MarkAllRead(ctx context.Context, ticketID string) ([]string, error) {
	const query = `
        UPDATE messages
        SET status='read', read_at=NOW()
        WHERE ticket_id=$1 AND direction='incoming' AND status <> 'read'
        RETURNING id`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanMessage(row pgx.Row) (*domain.Message, error) {
	var msg domain.Message
	if err := row.Scan(
		&msg.ID,
		&msg.TicketID,
		&msg.Content,
		&msg.Direction,
		&msg.Author,
		&msg.Status,
		&msg.CreatedAt,
		&msg.DeliveredAt,
		&msg.ReadAt,
	); err != nil {
		return nil, err
	}
	return &msg, nil
}

func scanMessageRow(rows pgx.Rows) (*domain.Message, error) {
	var msg domain.Message
	if err := rows.Scan(
		&msg.ID,
		&msg.TicketID,
		&msg.Content,
		&msg.Direction,
		&msg.Author,
		&msg.Status,
		&msg.CreatedAt,
		&msg.DeliveredAt,
		&msg.ReadAt,
	); err != nil {
		return nil, err
	}
	return &msg, nil
}
