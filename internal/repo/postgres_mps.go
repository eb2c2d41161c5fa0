package repo

import (
	"context"
	"database/sql"

	"github.com/civcon/ussd-engine/internal/model"
)

type PostgresMPRepo struct {
	db *sql.DB
}

func NewPostgresMPRepo(db *sql.DB) *PostgresMPRepo {
	return &PostgresMPRepo{db: db}
}

func (r *PostgresMPRepo) ListAll(ctx context.Context) ([]model.MP, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, COALESCE(district_id, ''), COALESCE(phone_number, '')
		FROM mps
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.MP
	for rows.Next() {
		var mp model.MP
		if err := rows.Scan(&mp.ID, &mp.Name, &mp.DistrictID, &mp.PhoneNumber); err != nil {
			return nil, err
		}
		out = append(out, mp)
	}
	return out, rows.Err()
}
