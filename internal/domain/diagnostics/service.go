package diagnostics

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/auditevent"
	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/blobstore"
	"github.com/carelink/carelink/internal/platform/notify"
)

var (
	ErrForbidden         = errors.New("not allowed to access this order")
	ErrInvalidTransition = errors.New("invalid order status transition")
	ErrAlreadyCompleted  = errors.New("order already has a result")
)

type Service struct {
	repo     Repository
	blobs    blobstore.BlobStore
	audit    *auditevent.Recorder
	notifier notify.Notifier
	logger   zerolog.Logger
}

func NewService(repo Repository, blobs blobstore.BlobStore, audit *auditevent.Recorder, notifier notify.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		blobs:    blobs,
		audit:    audit,
		notifier: notifier,
		logger:   logger.With().Str("component", "diagnostics").Logger(),
	}
}

// CreateOrder files a lab test request on behalf of a clinician.
func (s *Service) CreateOrder(ctx context.Context, orderedBy, patientID, labID uuid.UUID, testType string) (*Order, error) {
	if testType == "" {
		return nil, fmt.Errorf("test type is required")
	}
	o := &Order{
		PatientID:   patientID,
		OrderedByID: orderedBy,
		LabID:       labID,
		TestType:    testType,
		Status:      StatusOrdered,
	}
	if err := s.repo.Create(ctx, o); err != nil {
		return nil, fmt.Errorf("creating order: %w", err)
	}
	return o, nil
}

// AdvanceStatus moves an order forward. Transitions only go towards
// completed, never back.
func (s *Service) AdvanceStatus(ctx context.Context, id uuid.UUID, labID uuid.UUID, next Status) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.LabID != labID {
		return nil, ErrForbidden
	}
	if statusOrder[next] <= statusOrder[o.Status] {
		return nil, ErrInvalidTransition
	}
	return s.repo.UpdateStatus(ctx, id, next)
}

// UploadResult stores the result document restricted to the patient, marks
// the order completed and notifies the patient.
func (s *Service) UploadResult(ctx context.Context, id uuid.UUID, labID uuid.UUID, data []byte, contentType string) (*Order, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.LabID != labID {
		return nil, ErrForbidden
	}
	if o.ResultFileURL != nil {
		return nil, ErrAlreadyCompleted
	}

	ref, err := s.blobs.UploadBuffer(ctx, data, contentType)
	if err != nil {
		return nil, fmt.Errorf("storing result: %w", err)
	}
	if err := s.blobs.SetACL(ctx, ref, blobstore.ACLPolicy{
		Owner:      o.PatientID.String(),
		Visibility: blobstore.VisibilityPrivate,
	}); err != nil {
		return nil, fmt.Errorf("restricting result: %w", err)
	}

	updated, err := s.repo.SetResult(ctx, id, ref)
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, auditevent.AuditEvent{
		Event:        auditevent.EventResultsUploaded,
		ActorID:      labID.String(),
		ActorRole:    string(identity.RoleDiagnostics),
		ResourceType: "diagnostics_order",
		ResourceID:   o.ID.String(),
	})
	s.notifier.Notify(ctx, notify.Message{
		UserID: o.PatientID.String(),
		Event:  notify.EventResultsAvailable,
		Body:   "Your lab results are ready.",
		Meta:   map[string]string{"orderId": o.ID.String()},
	})
	return updated, nil
}

// ListFor scopes orders by role.
func (s *Service) ListFor(ctx context.Context, user *identity.User) ([]*Order, error) {
	switch user.Role {
	case identity.RolePatient:
		return s.repo.ListByPatient(ctx, user.ID)
	case identity.RoleGP, identity.RoleSpecialist:
		return s.repo.ListByOrderer(ctx, user.ID)
	case identity.RoleDiagnostics:
		return s.repo.ListByLab(ctx, user.ID)
	default:
		return nil, nil
	}
}
