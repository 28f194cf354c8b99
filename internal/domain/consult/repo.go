package consult

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("consult not found")

type Repository interface {
	Create(ctx context.Context, c *Consult) error
	GetByID(ctx context.Context, id uuid.UUID) (*Consult, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Consult, error)
	// ListForGP returns consults assigned to the GP plus the unassigned queue.
	ListForGP(ctx context.Context, gpID uuid.UUID) ([]*Consult, error)
	// Claim atomically assigns an unclaimed queued consult to a GP. Returns
	// false when another GP claimed it first.
	Claim(ctx context.Context, id, gpID uuid.UUID) (bool, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) (*Consult, error)

	AddMessage(ctx context.Context, m *Message) error
	ListMessages(ctx context.Context, consultID uuid.UUID) ([]*Message, error)
}
