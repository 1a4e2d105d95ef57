package admin

import (
	"context"
	"errors"
	"fmt"

	"github.com/nullprotocol/creditledger/internal/pkg/sqlstore"
)

// Repository persists the admins table.
type Repository struct {
	db sqlstore.Backend
}

func NewRepository(db sqlstore.Backend) *Repository {
	return &Repository{db: db}
}

// Upsert adds a or changes the level of an existing admin.
func (r *Repository) Upsert(ctx context.Context, a *Admin) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO admins (id, level, added_by, added_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET level = excluded.level
	`, a.ID, a.Level, a.AddedBy, a.AddedAt)
	if err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	return nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Admin, error) {
	var a Admin
	err := r.db.Get(ctx, &a, `SELECT id, level, added_by, added_at FROM admins WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sqlstore.ErrNoRows) {
			return nil, ErrAdminNotFound
		}
		return nil, fmt.Errorf("get admin: %w", err)
	}
	return &a, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	n, err := r.db.Exec(ctx, `DELETE FROM admins WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete admin: %w", err)
	}
	if n == 0 {
		return ErrAdminNotFound
	}
	return nil
}

func (r *Repository) List(ctx context.Context) ([]Admin, error) {
	admins := make([]Admin, 0)
	err := r.db.Select(ctx, &admins, `SELECT id, level, added_by, added_at FROM admins ORDER BY added_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}
