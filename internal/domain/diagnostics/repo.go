package diagnostics

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("diagnostics order not found")

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Order, error)
	ListByOrderer(ctx context.Context, gpID uuid.UUID) ([]*Order, error)
	ListByLab(ctx context.Context, labID uuid.UUID) ([]*Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Order, error)
	SetResult(ctx context.Context, id uuid.UUID, fileURL string) (*Order, error)
}
