package contact

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by the store when no message matches.
var ErrNotFound = errors.New("contact: message not found")

// Repository persists contact messages.
type Repository interface {
	Create(ctx context.Context, m Message) (Message, error)
	Get(ctx context.Context, id int64) (Message, error)
	List(ctx context.Context, filter ListFilter) ([]Message, error)
	Delete(ctx context.Context, id int64) error
	MarkRead(ctx context.Context, id int64) (Message, error)
}

// PGRepository implements Repository on PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const messageColumns = `id, name, email, phone, message, is_read, created_at`

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.Name, &m.Email, &m.Phone, &m.Message, &m.IsRead, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	return m, err
}

// Create inserts a message.
func (r *PGRepository) Create(ctx context.Context, m Message) (Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `INSERT INTO contact_messages (name, email, phone, message, is_read)
VALUES ($1, $2, $3, $4, $5)
RETURNING `+messageColumns, m.Name, m.Email, m.Phone, m.Message, m.IsRead))
}

// Get fetches a message by id.
func (r *PGRepository) Get(ctx context.Context, id int64) (Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `SELECT `+messageColumns+` FROM contact_messages WHERE id = $1`, id))
}

// List returns messages newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+messageColumns+` FROM contact_messages
WHERE ($1::boolean IS NULL OR is_read = $1)
ORDER BY created_at DESC, id DESC`, filter.IsRead)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes a message.
func (r *PGRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM contact_messages WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRead flags a message as read and returns it.
func (r *PGRepository) MarkRead(ctx context.Context, id int64) (Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `UPDATE contact_messages SET is_read = TRUE WHERE id = $1
RETURNING `+messageColumns, id))
}

var _ Repository = (*PGRepository)(nil)
