package consult

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/notify"
)

var (
	ErrForbidden      = errors.New("not allowed to access this consult")
	ErrAlreadyClaimed = errors.New("consult already claimed")
	ErrNotInProgress  = errors.New("consult is not in progress")
)

type Service struct {
	repo     Repository
	notifier notify.Notifier
	logger   zerolog.Logger
}

func NewService(repo Repository, notifier notify.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		logger:   logger.With().Str("component", "consult").Logger(),
	}
}

// SubmitIntake files a symptom report and places it on the GP queue.
func (s *Service) SubmitIntake(ctx context.Context, patientID uuid.UUID, in Intake) (*Consult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c := &Consult{
		PatientID: patientID,
		Status:    StatusQueued,
		Intake:    in,
		Summary:   in.Summary(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("creating consult: %w", err)
	}

	s.notifier.Notify(ctx, notify.Message{
		UserID: patientID.String(),
		Event:  notify.EventConsultQueued,
		Body:   "Your consultation request has been queued.",
		Meta:   map[string]string{"consultId": c.ID.String()},
	})
	return c, nil
}

// ListFor scopes the consult list by role: patients see their own, GPs see
// their assignments plus the unclaimed queue, everyone else sees nothing.
func (s *Service) ListFor(ctx context.Context, user *identity.User) ([]*Consult, error) {
	switch user.Role {
	case identity.RolePatient:
		return s.repo.ListByPatient(ctx, user.ID)
	case identity.RoleGP:
		return s.repo.ListForGP(ctx, user.ID)
	default:
		return nil, nil
	}
}

// Get enforces the same scoping as ListFor for a single record.
func (s *Service) Get(ctx context.Context, id uuid.UUID, user *identity.User) (*Consult, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	switch {
	case user.Role == identity.RolePatient && c.PatientID == user.ID:
	case user.Role == identity.RoleGP && (c.AssignedGPID == nil || *c.AssignedGPID == user.ID):
	default:
		return nil, ErrForbidden
	}
	return c, nil
}

// Claim moves a queued consult to in_progress under the claiming GP.
func (s *Service) Claim(ctx context.Context, id, gpID uuid.UUID) (*Consult, error) {
	claimed, err := s.repo.Claim(ctx, id, gpID)
	if err != nil {
		return nil, err
	}
	if !claimed {
		if _, err := s.repo.GetByID(ctx, id); errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, ErrAlreadyClaimed
	}
	return s.repo.GetByID(ctx, id)
}

// Complete closes an in-progress consult. Prescription issuance, when the
// GP orders medication, happens through the prescription workflow and
// references this consult by id.
func (s *Service) Complete(ctx context.Context, id, gpID uuid.UUID) (*Consult, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.AssignedGPID == nil || *c.AssignedGPID != gpID {
		return nil, ErrForbidden
	}
	if c.Status != StatusInProgress {
		return nil, ErrNotInProgress
	}
	return s.repo.UpdateStatus(ctx, id, StatusCompleted)
}

// AddMessage appends to the consult conversation. Only the patient and the
// assigned GP may write.
func (s *Service) AddMessage(ctx context.Context, consultID uuid.UUID, sender *identity.User, body string) (*Message, error) {
	if body == "" {
		return nil, fmt.Errorf("message body is required")
	}
	c, err := s.repo.GetByID(ctx, consultID)
	if err != nil {
		return nil, err
	}
	if !canConverse(c, sender) {
		return nil, ErrForbidden
	}

	m := &Message{ConsultID: consultID, SenderID: sender.ID, Body: body}
	if err := s.repo.AddMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("adding message: %w", err)
	}
	return m, nil
}

func (s *Service) ListMessages(ctx context.Context, consultID uuid.UUID, user *identity.User) ([]*Message, error) {
	c, err := s.repo.GetByID(ctx, consultID)
	if err != nil {
		return nil, err
	}
	if !canConverse(c, user) {
		return nil, ErrForbidden
	}
	return s.repo.ListMessages(ctx, consultID)
}

func canConverse(c *Consult, u *identity.User) bool {
	if u.Role == identity.RolePatient {
		return c.PatientID == u.ID
	}
	if u.Role == identity.RoleGP {
		return c.AssignedGPID != nil && *c.AssignedGPID == u.ID
	}
	return false
}
