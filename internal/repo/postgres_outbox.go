package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/civcon/ussd-engine/internal/model"
)

type PostgresOutboxRepo struct {
	db          *sql.DB
	maxAttempts int
}

func NewPostgresOutboxRepo(db *sql.DB, maxAttempts int) *PostgresOutboxRepo {
	return &PostgresOutboxRepo{db: db, maxAttempts: maxAttempts}
}

func (r *PostgresOutboxRepo) Enqueue(ctx context.Context, phone, content, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sms_outbox (id, phone, content, status, attempt_count, last_error, created_at, updated_at)
		VALUES ($1, $2, $3, 'pending', 1, $4, now(), now())
	`, uuid.NewString(), phone, content, reason)
	return err
}

func (r *PostgresOutboxRepo) ClaimPending(ctx context.Context, limit int) ([]model.OutboxEntry, error) {
	if limit <= 0 {
		return nil, errors.New("limit must be > 0")
	}

	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, phone, content, status, attempt_count, last_error, created_at, updated_at
		FROM sms_outbox
		WHERE status = 'pending'
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.OutboxEntry
	for rows.Next() {
		var e model.OutboxEntry
		var status string
		var lastErr sql.NullString
		if err := rows.Scan(
			&e.ID,
			&e.Phone,
			&e.Content,
			&status,
			&e.AttemptCount,
			&lastErr,
			&e.CreatedAt,
			&e.UpdatedAt,
		); err != nil {
			return nil, err
		}
		e.Status = model.OutboxStatus(status)
		if lastErr.Valid {
			s := lastErr.String
			e.LastError = &s
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(entries) == 0 {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		return nil, nil
	}

	now := time.Now().UTC()
	for _, e := range entries {
		if _, err := tx.ExecContext(ctx, `
			UPDATE sms_outbox
			SET status = 'processing', updated_at = $2
			WHERE id = $1
		`, e.ID, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	for i := range entries {
		entries[i].Status = model.OutboxProcessing
		entries[i].UpdatedAt = now
	}
	return entries, nil
}

func (r *PostgresOutboxRepo) MarkSent(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sms_outbox
		SET status = 'sent', updated_at = now()
		WHERE id = $1
	`, id)
	return err
}

// MarkFailed bumps the attempt counter; the entry goes back to pending until
// the attempt budget is spent, then parks as failed.
func (r *PostgresOutboxRepo) MarkFailed(ctx context.Context, id string, reason string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE sms_outbox
		SET attempt_count = attempt_count + 1,
		    last_error = $2,
		    status = CASE WHEN attempt_count + 1 >= $3 THEN 'failed' ELSE 'pending' END,
		    updated_at = now()
		WHERE id = $1
	`, id, reason, r.maxAttempts)
	return err
}
