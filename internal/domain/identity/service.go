package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/notify"
)

var (
	ErrInvalidEmail = errors.New("invalid email address")
	ErrInvalidPhone = errors.New("phone number must have at least 10 digits")
	ErrInvalidOTP   = errors.New("invalid or expired code")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// demoNames gives each role a recognizable display name for demo accounts.
var demoNames = map[Role]string{
	RolePatient:     "Demo Patient",
	RoleGP:          "Dr. Sarah Johnson",
	RoleSpecialist:  "Dr. David Williams",
	RolePharmacy:    "HealthCare Pharmacy",
	RoleDiagnostics: "HealthLab Diagnostics",
}

const otpTTL = 5 * time.Minute

type otpEntry struct {
	code      string
	expiresAt time.Time
}

type Service struct {
	users    Repository
	sessions *auth.SessionIssuer
	notifier notify.Notifier
	logger   zerolog.Logger

	otpMu sync.Mutex
	otps  map[string]otpEntry
}

func NewService(users Repository, sessions *auth.SessionIssuer, notifier notify.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		users:    users,
		sessions: sessions,
		notifier: notifier,
		logger:   logger.With().Str("component", "identity").Logger(),
		otps:     make(map[string]otpEntry),
	}
}

// LoginResult carries the authenticated user and their session token.
type LoginResult struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

// Login finds or provisions an account for the given email and role, then
// issues a session. Accounts are created on first login.
func (s *Service) Login(ctx context.Context, email string, role Role, phone string) (*LoginResult, error) {
	if !emailPattern.MatchString(email) {
		return nil, ErrInvalidEmail
	}
	if !validRoles[role] {
		return nil, fmt.Errorf("invalid role: %s", role)
	}
	if phone != "" && countDigits(phone) < 10 {
		return nil, ErrInvalidPhone
	}

	u, err := s.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		u = &User{Email: email, Name: demoNames[role], Role: role, Phone: phone}
		if err := s.users.Create(ctx, u); err != nil {
			return nil, fmt.Errorf("creating user: %w", err)
		}
		s.logger.Info().Str("user_id", u.ID.String()).Str("role", string(role)).Msg("user provisioned")
	case err != nil:
		return nil, err
	default:
		if phone != "" && phone != u.Phone {
			if err := s.users.UpdatePhone(ctx, u.ID, phone); err != nil {
				return nil, err
			}
			u.Phone = phone
		}
	}

	token, err := s.sessions.Issue(u.ID.String(), string(u.Role), u.Name)
	if err != nil {
		return nil, fmt.Errorf("issuing session: %w", err)
	}
	return &LoginResult{User: u, Token: token}, nil
}

// RequestOTP generates a one-time code for the given email and hands it to
// the notifier. Codes expire after otpTTL.
func (s *Service) RequestOTP(ctx context.Context, email string) error {
	if !emailPattern.MatchString(email) {
		return ErrInvalidEmail
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}

	s.otpMu.Lock()
	s.otps[email] = otpEntry{code: code, expiresAt: time.Now().Add(otpTTL)}
	s.otpMu.Unlock()

	s.notifier.Notify(ctx, notify.Message{
		UserID: email,
		Event:  notify.EventOTPRequested,
		Body:   fmt.Sprintf("Your verification code is %s", code),
	})
	return nil
}

// VerifyOTP checks a one-time code. A code is single-use.
func (s *Service) VerifyOTP(_ context.Context, email, code string) error {
	s.otpMu.Lock()
	defer s.otpMu.Unlock()

	entry, ok := s.otps[email]
	if !ok || time.Now().After(entry.expiresAt) || entry.code != code {
		return ErrInvalidOTP
	}
	delete(s.otps, email)
	return nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generating code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
