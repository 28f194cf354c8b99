// Package pharmacy exposes the dispensing-side verification flow. It resolves
// scanned QR tokens to a minimal-disclosure projection that carries no
// patient identity.
package pharmacy

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/auditevent"
	"github.com/carelink/carelink/internal/domain/prescription"
	"github.com/carelink/carelink/internal/platform/qr"
)

var (
	// ErrInvalidToken covers malformed and unknown tokens alike. Callers
	// must not be able to distinguish the two.
	ErrInvalidToken = errors.New("invalid QR code")
	ErrTokenDisabled = errors.New("QR code disabled")
)

// Meta tags the projection so consumers and tests can assert the privacy
// guarantee mechanically.
type Meta struct {
	NoPII bool `json:"noPII"`
}

// View is everything dispensing staff get to see.
type View struct {
	Items          []prescription.Item `json:"items"`
	PrescriptionID string              `json:"prescriptionId"`
	Meta           Meta                `json:"meta"`
}

// TokenChecker is the structural fast path before a store lookup.
type TokenChecker interface {
	WellFormed(token string) bool
}

// Store is the subset of the prescription store the pharmacy flow needs.
type Store interface {
	GetByToken(ctx context.Context, token string) (*prescription.Prescription, error)
}

type Service struct {
	store  Store
	tokens TokenChecker
	audit  *auditevent.Recorder
	logger zerolog.Logger
}

func NewService(store Store, tokens TokenChecker, audit *auditevent.Recorder, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		tokens: tokens,
		audit:  audit,
		logger: logger.With().Str("component", "pharmacy").Logger(),
	}
}

// Resolve maps a scanned token to the dispensing view. Resolution is
// read-only and repeatable; it never consumes the token.
func (s *Service) Resolve(ctx context.Context, token string, actorID string) (*View, error) {
	if !s.tokens.WellFormed(token) {
		return nil, ErrInvalidToken
	}

	p, err := s.store.GetByToken(ctx, token)
	if errors.Is(err, prescription.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, err
	}

	if p.QRDisabled {
		s.recordAttempt(ctx, token, actorID, p.ID.String(), "disabled")
		return nil, ErrTokenDisabled
	}

	s.recordAttempt(ctx, token, actorID, p.ID.String(), "ok")
	return &View{
		Items:          p.Items,
		PrescriptionID: p.ID.String(),
		Meta:           Meta{NoPII: true},
	}, nil
}

// recordAttempt logs only a short token prefix; full tokens stay out of the
// audit trail.
func (s *Service) recordAttempt(ctx context.Context, token, actorID, prescriptionID, outcome string) {
	s.audit.Record(ctx, auditevent.AuditEvent{
		Event:        auditevent.EventQRResolved,
		ActorID:      actorID,
		ActorRole:    "pharmacy",
		ResourceType: "prescription",
		ResourceID:   prescriptionID,
		Meta: map[string]string{
			"tokenPrefix": tokenPrefix(token),
			"outcome":     outcome,
		},
	})
}

const auditPrefixLen = len(qr.TokenPrefix) + 8

func tokenPrefix(token string) string {
	if len(token) <= auditPrefixLen {
		return token
	}
	return token[:auditPrefixLen]
}
