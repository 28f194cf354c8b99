package referral

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("referral not found")

type Repository interface {
	Create(ctx context.Context, r *Referral) error
	GetByID(ctx context.Context, id uuid.UUID) (*Referral, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Referral, error)
	ListByGP(ctx context.Context, gpID uuid.UUID) ([]*Referral, error)
	ListBySpecialist(ctx context.Context, specialistID uuid.UUID) ([]*Referral, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Referral, error)
}
