package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bookswap/realtime/internal/domain/user"
)

// UserRepository implements user.Resolver over the application's users table.
type UserRepository struct {
	db Querier
}

func NewUserRepository(db Querier) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Resolve(ctx context.Context, userID string) (*user.User, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, display_name, role, status, created_at
		FROM users WHERE id=$1
	`, userID)
	return scanUser(row)
}

func scanUser(row pgx.Row) (*user.User, error) {
	var u user.User
	var displayName *string
	if err := row.Scan(&u.ID, &displayName, &u.Role, &u.Status, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, err
	}
	if err := user.ValidateRole(u.Role); err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	if err := user.ValidateStatus(u.Status); err != nil {
		return nil, fmt.Errorf("user %s: %w", u.ID, err)
	}
	if displayName != nil {
		u.DisplayName = *displayName
	}
	return &u, nil
}
