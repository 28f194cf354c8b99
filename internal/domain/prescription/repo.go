package prescription

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var (
	ErrNotFound = errors.New("prescription not found")
	// ErrReenableQR rejects any update that would flip qr_disabled back to
	// false. Disablement is one-way.
	ErrReenableQR = errors.New("qr disablement cannot be reverted")
)

// UpdateFields is a partial update. Nil fields are left untouched.
type UpdateFields struct {
	Status     *Status
	QRDisabled *bool
	FileURL    *string
}

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	GetByToken(ctx context.Context, token string) (*Prescription, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Prescription, error)
	Update(ctx context.Context, id uuid.UUID, fields UpdateFields) (*Prescription, error)

	// MarkDownloaded atomically sets pdf_downloaded, qr_disabled and the
	// file reference, guarded on qr_disabled still being false. Returns
	// false when another download won the race.
	MarkDownloaded(ctx context.Context, id uuid.UUID, fileURL string) (bool, error)
}
