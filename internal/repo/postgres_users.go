package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/civcon/ussd-engine/internal/model"
)

type PostgresUserRepo struct {
	db *sql.DB
}

func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

func (r *PostgresUserRepo) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, phone_number, district_id,
		       preferred_language, role, is_active
		FROM users
		WHERE phone_number = $1
	`, phone)

	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresUserRepo) Create(ctx context.Context, u model.User) (*model.User, error) {
	// The conflict branch is a no-op update so that RETURNING yields the
	// existing row; phone number is the idempotency key.
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO users (first_name, last_name, phone_number, district_id,
		                   preferred_language, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (phone_number) DO UPDATE SET phone_number = users.phone_number
		RETURNING id, first_name, last_name, phone_number, district_id,
		          preferred_language, role, is_active
	`, u.FirstName, u.LastName, u.PhoneNumber, u.DistrictID,
		u.PreferredLanguage, u.Role, u.IsActive)

	return scanUser(row)
}

func (r *PostgresUserRepo) UpdateLanguage(ctx context.Context, phone, language string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET preferred_language = $2
		WHERE phone_number = $1
	`, phone, language)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	if err := row.Scan(
		&u.ID,
		&u.FirstName,
		&u.LastName,
		&u.PhoneNumber,
		&u.DistrictID,
		&u.PreferredLanguage,
		&u.Role,
		&u.IsActive,
	); err != nil {
		return nil, err
	}
	return &u, nil
}
