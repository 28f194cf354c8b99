package prescription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/auditevent"
	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/blobstore"
	"github.com/carelink/carelink/internal/platform/notify"
	"github.com/carelink/carelink/internal/platform/pdfgen"
	"github.com/carelink/carelink/internal/platform/qr"
)

var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("not allowed to access this prescription")
	ErrNoToken      = errors.New("prescription has no QR token")
	ErrQRDisabled   = errors.New("QR code disabled")
	ErrEmptyItems   = errors.New("prescription requires at least one item")
	ErrNotActive    = errors.New("prescription is not active")
)

// qrViewRoles may view any prescription's QR image without owning it.
var qrViewRoles = map[identity.Role]bool{
	identity.RoleGP:       true,
	identity.RolePharmacy: true,
}

// UserDirectory resolves actors for authorization decisions.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*identity.User, error)
}

// TxRunner executes fn atomically against durable storage.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// PassthroughTx runs fn directly. Used where no transactional store exists.
func PassthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Service struct {
	repo       Repository
	users      UserDirectory
	tokens     qr.Generator
	pdf        pdfgen.Renderer
	blobs      blobstore.BlobStore
	audit      *auditevent.Recorder
	notifier   notify.Notifier
	runTx      TxRunner
	pdfTimeout time.Duration
	logger     zerolog.Logger
}

func NewService(
	repo Repository,
	users UserDirectory,
	tokens qr.Generator,
	pdf pdfgen.Renderer,
	blobs blobstore.BlobStore,
	audit *auditevent.Recorder,
	notifier notify.Notifier,
	runTx TxRunner,
	pdfTimeout time.Duration,
	logger zerolog.Logger,
) *Service {
	if runTx == nil {
		runTx = PassthroughTx
	}
	return &Service{
		repo:       repo,
		users:      users,
		tokens:     tokens,
		pdf:        pdf,
		blobs:      blobs,
		audit:      audit,
		notifier:   notifier,
		runTx:      runTx,
		pdfTimeout: pdfTimeout,
		logger:     logger.With().Str("component", "prescription").Logger(),
	}
}

// Create issues a prescription with a freshly minted QR token. The token and
// the row commit together: a prescription never exists without its token.
func (s *Service) Create(ctx context.Context, patientID uuid.UUID, consultID *uuid.UUID, items []Item) (*Prescription, error) {
	if len(items) == 0 {
		return nil, ErrEmptyItems
	}
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i+1, err)
		}
	}

	p := &Prescription{
		ID:        uuid.New(),
		PatientID: patientID,
		ConsultID: consultID,
		Status:    StatusActive,
		Items:     items,
	}

	token, err := s.tokens.GenerateToken(p.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}
	p.QRToken = &token

	if err := s.runTx(ctx, func(ctx context.Context) error {
		return s.repo.Create(ctx, p)
	}); err != nil {
		return nil, fmt.Errorf("creating prescription: %w", err)
	}

	s.notifier.Notify(ctx, notify.Message{
		UserID: patientID.String(),
		Event:  notify.EventPrescriptionIssued,
		Body:   "A new prescription has been issued for you.",
		Meta:   map[string]string{"prescriptionId": p.ID.String()},
	})
	s.logger.Info().Str("prescription_id", p.ID.String()).Int("items", len(items)).Msg("prescription created")
	return p, nil
}

// Get returns the full record to the owner or an allowlisted role.
func (s *Service) Get(ctx context.Context, id uuid.UUID, requesterID string) (*Prescription, error) {
	_, p, err := s.authorize(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Prescription, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// ViewQRImage gates and renders the scannable code. The check order is part
// of the contract: anonymous callers learn nothing about existence, and
// non-owners get a uniform Forbidden.
func (s *Service) ViewQRImage(ctx context.Context, id uuid.UUID, requesterID string) (string, error) {
	actor, p, err := s.authorize(ctx, id, requesterID)
	if err != nil {
		return "", err
	}

	if p.QRToken == nil {
		return "", ErrNoToken
	}
	if p.QRDisabled {
		return "", ErrQRDisabled
	}

	dataURI, err := s.tokens.Image(*p.QRToken)
	if err != nil {
		return "", fmt.Errorf("rendering QR image: %w", err)
	}

	s.audit.Record(ctx, auditevent.AuditEvent{
		Event:        auditevent.EventQRImageViewed,
		ActorID:      actor.ID.String(),
		ActorRole:    string(actor.Role),
		ResourceType: "prescription",
		ResourceID:   p.ID.String(),
	})
	return dataURI, nil
}

// authorize implements the shared guard: authentication, existence, then
// ownership-or-allowlist, in that order.
func (s *Service) authorize(ctx context.Context, id uuid.UUID, requesterID string) (*identity.User, *Prescription, error) {
	if requesterID == "" {
		return nil, nil, ErrUnauthorized
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	uid, err := uuid.Parse(requesterID)
	if err != nil {
		return nil, nil, ErrUnauthorized
	}
	actor, err := s.users.GetByID(ctx, uid)
	if errors.Is(err, identity.ErrUserNotFound) {
		return nil, nil, ErrUnauthorized
	}
	if err != nil {
		return nil, nil, err
	}

	if actor.ID != p.PatientID && !qrViewRoles[actor.Role] {
		return nil, nil, ErrForbidden
	}
	return actor, p, nil
}

// DownloadPDF renders the prescription document, stores it restricted to the
// owner, and permanently disables the QR token. Re-downloads are idempotent.
func (s *Service) DownloadPDF(ctx context.Context, id uuid.UUID, requesterID string) (*Prescription, error) {
	if requesterID == "" {
		return nil, ErrUnauthorized
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	// Only the owning patient may trigger disablement.
	if requesterID != p.PatientID.String() {
		return nil, ErrForbidden
	}

	if p.FileURL != nil {
		return p, nil
	}

	s.tokens.Disable(p.ID)

	renderCtx, cancel := context.WithTimeout(ctx, s.pdfTimeout)
	defer cancel()

	doc := pdfgen.Document{
		PrescriptionID: p.ID.String(),
		IssuedAt:       p.CreatedAt,
		Items:          toPDFItems(p.Items),
	}
	if p.QRToken != nil {
		doc.Token = *p.QRToken
	}
	data, err := s.pdf.Render(doc)
	if err != nil {
		return nil, fmt.Errorf("rendering document: %w", err)
	}
	if renderCtx.Err() != nil {
		return nil, fmt.Errorf("rendering document: %w", renderCtx.Err())
	}

	ref, err := s.blobs.UploadBuffer(renderCtx, data, "application/pdf")
	if err != nil {
		return nil, fmt.Errorf("storing document: %w", err)
	}
	if err := s.blobs.SetACL(renderCtx, ref, blobstore.ACLPolicy{
		Owner:      p.PatientID.String(),
		Visibility: blobstore.VisibilityPrivate,
	}); err != nil {
		return nil, fmt.Errorf("restricting document: %w", err)
	}

	applied, err := s.repo.MarkDownloaded(ctx, p.ID, ref)
	if err != nil {
		return nil, fmt.Errorf("disabling QR: %w", err)
	}
	if !applied {
		// A concurrent download already disabled the token; return its state.
		return s.repo.GetByID(ctx, p.ID)
	}

	s.audit.Record(ctx, auditevent.AuditEvent{
		Event:        auditevent.EventPDFDownloaded,
		ActorID:      requesterID,
		ActorRole:    string(identity.RolePatient),
		ResourceType: "prescription",
		ResourceID:   p.ID.String(),
		Meta:         map[string]string{"qrDisabled": "true"},
	})

	return s.repo.GetByID(ctx, p.ID)
}

// MarkDispensed moves an active prescription to dispensed. Resolution alone
// never changes status; this is the explicit hand-over action.
func (s *Service) MarkDispensed(ctx context.Context, id uuid.UUID, actorID string) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusActive {
		return nil, ErrNotActive
	}

	status := StatusDispensed
	updated, err := s.repo.Update(ctx, id, UpdateFields{Status: &status})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, auditevent.AuditEvent{
		Event:        auditevent.EventDispensed,
		ActorID:      actorID,
		ActorRole:    string(identity.RolePharmacy),
		ResourceType: "prescription",
		ResourceID:   p.ID.String(),
	})
	return updated, nil
}

func toPDFItems(items []Item) []pdfgen.Item {
	out := make([]pdfgen.Item, len(items))
	for i, it := range items {
		out[i] = pdfgen.Item{
			Name:         it.Name,
			Dosage:       it.Dosage,
			Frequency:    it.Frequency,
			Quantity:     it.Quantity,
			Duration:     it.Duration,
			Instructions: it.Instructions,
		}
	}
	return out
}
