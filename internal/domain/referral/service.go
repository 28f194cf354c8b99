package referral

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
	ErrForbidden         = errors.New("not allowed to access this referral")
	ErrInvalidTransition = errors.New("invalid referral status transition")
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
		logger:   logger.With().Str("component", "referral").Logger(),
	}
}

// Propose creates a referral in the proposed state.
func (s *Service) Propose(ctx context.Context, gpID, patientID, specialistID uuid.UUID, reason string) (*Referral, error) {
	if reason == "" {
		return nil, fmt.Errorf("reason is required")
	}
	ref := &Referral{
		PatientID:    patientID,
		GPID:         gpID,
		SpecialistID: specialistID,
		Reason:       reason,
		Status:       StatusProposed,
	}
	if err := s.repo.Create(ctx, ref); err != nil {
		return nil, fmt.Errorf("creating referral: %w", err)
	}

	s.notifier.Notify(ctx, notify.Message{
		UserID: specialistID.String(),
		Event:  notify.EventReferralProposed,
		Body:   "A new referral has been proposed to you.",
		Meta:   map[string]string{"referralId": ref.ID.String()},
	})
	return ref, nil
}

// Accept moves a proposed referral to accepted. Only the addressed
// specialist may accept.
func (s *Service) Accept(ctx context.Context, id, specialistID uuid.UUID) (*Referral, error) {
	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref.SpecialistID != specialistID {
		return nil, ErrForbidden
	}
	if ref.Status != StatusProposed {
		return nil, ErrInvalidTransition
	}
	return s.repo.UpdateStatus(ctx, id, StatusAccepted)
}

// Complete closes an accepted referral.
func (s *Service) Complete(ctx context.Context, id, specialistID uuid.UUID) (*Referral, error) {
	ref, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if ref.SpecialistID != specialistID {
		return nil, ErrForbidden
	}
	if ref.Status != StatusAccepted {
		return nil, ErrInvalidTransition
	}
	return s.repo.UpdateStatus(ctx, id, StatusCompleted)
}

// ListFor scopes referrals by role.
func (s *Service) ListFor(ctx context.Context, user *identity.User) ([]*Referral, error) {
	switch user.Role {
	case identity.RolePatient:
		return s.repo.ListByPatient(ctx, user.ID)
	case identity.RoleGP:
		return s.repo.ListByGP(ctx, user.ID)
	case identity.RoleSpecialist:
		return s.repo.ListBySpecialist(ctx, user.ID)
	default:
		return nil, nil
	}
}
