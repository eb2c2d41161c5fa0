package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/civcon/ussd-engine/internal/model"
)

type PostgresMessageRepo struct {
	db *sql.DB
}

func NewPostgresMessageRepo(db *sql.DB) *PostgresMessageRepo {
	return &PostgresMessageRepo{db: db}
}

func (r *PostgresMessageRepo) Create(ctx context.Context, m model.Message) (*model.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO messages (sender_id, recipient_id, content, district_id,
		                      topic, flagged, spam_score, ussd_session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (ussd_session_id) DO NOTHING
		RETURNING id, created_at
	`, m.SenderID, m.RecipientID, m.Content, m.DistrictID,
		m.Topic, m.Flagged, m.SpamScore, m.UssdSessionID)

	err := row.Scan(&m.ID, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		// A retry of the same session already committed; hand back the
		// row that won.
		return r.findBySessionID(ctx, m.UssdSessionID)
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *PostgresMessageRepo) findBySessionID(ctx context.Context, sessionID string) (*model.Message, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, sender_id, recipient_id, content, district_id,
		       topic, flagged, spam_score, ussd_session_id, created_at
		FROM messages
		WHERE ussd_session_id = $1
	`, sessionID)

	m, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

func (r *PostgresMessageRepo) ListSent(ctx context.Context, limit, offset int) ([]model.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_id, recipient_id, content, district_id,
		       topic, flagged, spam_score, ussd_session_id, created_at
		FROM messages
		WHERE flagged = false
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func scanMessage(row rowScanner) (*model.Message, error) {
	var m model.Message
	var recipient sql.NullInt64
	if err := row.Scan(
		&m.ID,
		&m.SenderID,
		&recipient,
		&m.Content,
		&m.DistrictID,
		&m.Topic,
		&m.Flagged,
		&m.SpamScore,
		&m.UssdSessionID,
		&m.CreatedAt,
	); err != nil {
		return nil, err
	}
	if recipient.Valid {
		id := recipient.Int64
		m.RecipientID = &id
	}
	return &m, nil
}
