package identity

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/platform/auth"
	"github.com/carelink/carelink/internal/platform/notify"
)

type mockRepo struct {
	byEmail map[string]*User
	byID    map[uuid.UUID]*User
}

func newMockRepo() *mockRepo {
	return &mockRepo{byEmail: map[string]*User{}, byID: map[uuid.UUID]*User{}}
}

func (m *mockRepo) Create(_ context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.byEmail[u.Email] = u
	m.byID[u.ID] = u
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, ErrUserNotFound
}

func (m *mockRepo) UpdatePhone(_ context.Context, id uuid.UUID, phone string) error {
	u, ok := m.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	u.Phone = phone
	return nil
}

func (m *mockRepo) ListByRole(_ context.Context, role Role) ([]*User, error) {
	var out []*User
	for _, u := range m.byID {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func newTestService(repo Repository) (*Service, *notify.CaptureNotifier) {
	n := notify.NewCaptureNotifier()
	issuer := auth.NewSessionIssuer([]byte("test-key"), time.Hour)
	return NewService(repo, issuer, n, zerolog.Nop()), n
}

func TestLoginProvisionsNewUser(t *testing.T) {
	svc, _ := newTestService(newMockRepo())

	res, err := svc.Login(context.Background(), "pat@example.com", RolePatient, "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.User.Name != "Demo Patient" {
		t.Errorf("name = %q, want Demo Patient", res.User.Name)
	}
	if res.User.Role != RolePatient {
		t.Errorf("role = %q", res.User.Role)
	}
	if res.Token == "" {
		t.Error("no session token issued")
	}
}

func TestLoginReturnsExistingUser(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)

	first, _ := svc.Login(context.Background(), "gp@example.com", RoleGP, "")
	second, err := svc.Login(context.Background(), "gp@example.com", RoleGP, "")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if first.User.ID != second.User.ID {
		t.Error("second login created a new account")
	}
	if second.User.Name != "Dr. Sarah Johnson" {
		t.Errorf("name = %q", second.User.Name)
	}
}

func TestLoginUpdatesPhone(t *testing.T) {
	repo := newMockRepo()
	svc, _ := newTestService(repo)

	res, _ := svc.Login(context.Background(), "pat@example.com", RolePatient, "")
	if _, err := svc.Login(context.Background(), "pat@example.com", RolePatient, "+1 555 123 4567"); err != nil {
		t.Fatalf("Login with phone: %v", err)
	}
	u, _ := repo.GetByID(context.Background(), res.User.ID)
	if u.Phone != "+1 555 123 4567" {
		t.Errorf("phone = %q", u.Phone)
	}
}

func TestLoginValidation(t *testing.T) {
	svc, _ := newTestService(newMockRepo())
	ctx := context.Background()

	if _, err := svc.Login(ctx, "not-an-email", RolePatient, ""); !errors.Is(err, ErrInvalidEmail) {
		t.Errorf("bad email: err = %v, want ErrInvalidEmail", err)
	}
	if _, err := svc.Login(ctx, "a@b.com", RolePatient, "12345"); !errors.Is(err, ErrInvalidPhone) {
		t.Errorf("short phone: err = %v, want ErrInvalidPhone", err)
	}
	if _, err := svc.Login(ctx, "a@b.com", Role("admin"), ""); err == nil {
		t.Error("unknown role accepted")
	}
}

func TestDemoNamesPerRole(t *testing.T) {
	svc, _ := newTestService(newMockRepo())
	ctx := context.Background()

	cases := map[Role]string{
		RolePatient:     "Demo Patient",
		RoleGP:          "Dr. Sarah Johnson",
		RoleSpecialist:  "Dr. David Williams",
		RolePharmacy:    "HealthCare Pharmacy",
		RoleDiagnostics: "HealthLab Diagnostics",
	}
	for role, want := range cases {
		res, err := svc.Login(ctx, string(role)+"@example.com", role, "")
		if err != nil {
			t.Fatalf("Login(%s): %v", role, err)
		}
		if res.User.Name != want {
			t.Errorf("role %s: name = %q, want %q", role, res.User.Name, want)
		}
	}
}

func TestOTPRoundTrip(t *testing.T) {
	svc, n := newTestService(newMockRepo())
	ctx := context.Background()

	if err := svc.RequestOTP(ctx, "pat@example.com"); err != nil {
		t.Fatalf("RequestOTP: %v", err)
	}
	msgs := n.Messages()
	if len(msgs) != 1 || msgs[0].Event != notify.EventOTPRequested {
		t.Fatalf("expected one otp notification, got %+v", msgs)
	}

	// Extract code from the stored entry rather than parsing the message.
	svc.otpMu.Lock()
	code := svc.otps["pat@example.com"].code
	svc.otpMu.Unlock()

	wrong := "000000"
	if code == wrong {
		wrong = "000001"
	}
	if err := svc.VerifyOTP(ctx, "pat@example.com", wrong); !errors.Is(err, ErrInvalidOTP) {
		t.Errorf("wrong code accepted: %v", err)
	}
	if err := svc.VerifyOTP(ctx, "pat@example.com", code); err != nil {
		t.Fatalf("VerifyOTP: %v", err)
	}
	// Single use.
	if err := svc.VerifyOTP(ctx, "pat@example.com", code); !errors.Is(err, ErrInvalidOTP) {
		t.Error("code reusable after verification")
	}
}

func TestParseRole(t *testing.T) {
	for _, s := range []string{"patient", "gp", "specialist", "pharmacy", "diagnostics"} {
		if _, err := ParseRole(s); err != nil {
			t.Errorf("ParseRole(%q): %v", s, err)
		}
	}
	if _, err := ParseRole("admin"); err == nil {
		t.Error("ParseRole(admin) accepted")
	}
}
