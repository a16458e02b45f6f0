package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bookswap/realtime/internal/domain/operation"
)

// OperationRepository implements operation.Updater over the application's operations table.
type OperationRepository struct {
	db Querier
}

func NewOperationRepository(db Querier) *OperationRepository {
	return &OperationRepository{db: db}
}

func (r *OperationRepository) UpdateStatus(ctx context.Context, operationID string, status operation.Status) (*operation.Operation, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE operations
		SET status=$1, updated_at=now()
		WHERE id=$2
		RETURNING id, status, updated_at
	`, string(status), operationID)

	var op operation.Operation
	if err := row.Scan(&op.ID, &op.Status, &op.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, operation.ErrNotFound
		}
		return nil, fmt.Errorf("update operation %s: %w", operationID, err)
	}
	return &op, nil
}
