package auditevent

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, ev *AuditEvent) error
	ListByResource(ctx context.Context, resourceType, resourceID string, limit, offset int) ([]*AuditEvent, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*AuditEvent, error)
}
