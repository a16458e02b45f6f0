package operation

//go:generate go run go.uber.org/mock/mockgen -destination=mocks/mock_updater.go -package=mocks . Updater

import (
	"context"
	"errors"
	"time"
)

// Status mirrors the status column of the externally owned operation record.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusAccepted  Status = "ACCEPTED"
	StatusRejected  Status = "REJECTED"
	StatusCompleted Status = "COMPLETED"
	StatusCanceled  Status = "CANCELED"
)

var ErrNotFound = errors.New("operation not found")

// Operation is a transaction record (borrow, buy, exchange) persisted by the
// surrounding application. This service only requests status changes on it.
type Operation struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Updater requests status changes on external operations.
type Updater interface {
	UpdateStatus(ctx context.Context, operationID string, status Status) (*Operation, error)
}
