package auditevent

import (
	"time"

	"github.com/google/uuid"
)

// Event names recorded by the services.
const (
	EventQRImageViewed   = "qr_image_viewed"
	EventPDFDownloaded   = "pdf_downloaded"
	EventQRResolved      = "qr_resolved"
	EventDispensed       = "prescription_dispensed"
	EventResultsUploaded = "results_uploaded"
)

// AuditEvent is one recorded access or state change. Meta must never contain
// full QR tokens or patient identifiers beyond the actor/resource ids.
type AuditEvent struct {
	ID           uuid.UUID         `json:"id"`
	Event        string            `json:"event"`
	ActorID      string            `json:"actorId"`
	ActorRole    string            `json:"actorRole"`
	ResourceType string            `json:"resourceType"`
	ResourceID   string            `json:"resourceId"`
	Meta         map[string]string `json:"meta,omitempty"`
	RecordedAt   time.Time         `json:"recordedAt"`
}
