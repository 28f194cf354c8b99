package consult

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/platform/notify"
)

type mockRepo struct {
	mu       sync.Mutex
	consults map[uuid.UUID]Consult
	messages map[uuid.UUID][]*Message
}

func newMockRepo() *mockRepo {
	return &mockRepo{consults: map[uuid.UUID]Consult{}, messages: map[uuid.UUID][]*Message{}}
}

func (m *mockRepo) Create(_ context.Context, c *Consult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.consults[c.ID] = *c
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id uuid.UUID) (*Consult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consults[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := c
	return &cp, nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Consult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Consult
	for _, c := range m.consults {
		if c.PatientID == patientID {
			cp := c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) ListForGP(_ context.Context, gpID uuid.UUID) ([]*Consult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Consult
	for _, c := range m.consults {
		assigned := c.AssignedGPID != nil && *c.AssignedGPID == gpID
		queued := c.AssignedGPID == nil && c.Status == StatusQueued
		if assigned || queued {
			cp := c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockRepo) Claim(_ context.Context, id, gpID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consults[id]
	if !ok || c.AssignedGPID != nil || c.Status != StatusQueued {
		return false, nil
	}
	gp := gpID
	c.AssignedGPID = &gp
	c.Status = StatusInProgress
	m.consults[id] = c
	return true, nil
}

func (m *mockRepo) UpdateStatus(_ context.Context, id uuid.UUID, status Status) (*Consult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.consults[id]
	if !ok {
		return nil, ErrNotFound
	}
	c.Status = status
	m.consults[id] = c
	cp := c
	return &cp, nil
}

func (m *mockRepo) AddMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	msg.CreatedAt = time.Now()
	m.messages[msg.ConsultID] = append(m.messages[msg.ConsultID], msg)
	return nil
}

func (m *mockRepo) ListMessages(_ context.Context, consultID uuid.UUID) ([]*Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.messages[consultID], nil
}

func user(role identity.Role) *identity.User {
	return &identity.User{ID: uuid.New(), Role: role}
}

func testIntake() Intake {
	return Intake{Symptoms: "persistent cough", Duration: "5 days", Severity: "moderate"}
}

func TestSubmitIntakeBuildsSummary(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, notify.NewCaptureNotifier(), zerolog.Nop())
	patient := user(identity.RolePatient)

	c, err := svc.SubmitIntake(context.Background(), patient.ID, testIntake())
	if err != nil {
		t.Fatalf("SubmitIntake: %v", err)
	}
	if c.Status != StatusQueued {
		t.Errorf("status = %q, want queued", c.Status)
	}
	want := "Patient reports: persistent cough. Duration: 5 days. Severity: moderate."
	if c.Summary != want {
		t.Errorf("summary = %q, want %q", c.Summary, want)
	}
}

func TestSubmitIntakeValidation(t *testing.T) {
	svc := NewService(newMockRepo(), notify.NewCaptureNotifier(), zerolog.Nop())
	in := testIntake()
	in.Severity = ""
	if _, err := svc.SubmitIntake(context.Background(), uuid.New(), in); err == nil {
		t.Error("missing severity accepted")
	}
}

func TestListForRoleScoping(t *testing.T) {
	repo := newMockRepo()
	n := notify.NewCaptureNotifier()
	svc := NewService(repo, n, zerolog.Nop())
	ctx := context.Background()

	patientA := user(identity.RolePatient)
	patientB := user(identity.RolePatient)
	gp := user(identity.RoleGP)
	pharmacist := user(identity.RolePharmacy)

	a, _ := svc.SubmitIntake(ctx, patientA.ID, testIntake())
	svc.SubmitIntake(ctx, patientB.ID, testIntake())

	if _, err := svc.Claim(ctx, a.ID, gp.ID); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	own, _ := svc.ListFor(ctx, patientA)
	if len(own) != 1 || own[0].PatientID != patientA.ID {
		t.Errorf("patient list = %+v", own)
	}

	// GP sees the claimed consult plus the unassigned queue.
	gpList, _ := svc.ListFor(ctx, gp)
	if len(gpList) != 2 {
		t.Errorf("gp list = %d consults, want 2", len(gpList))
	}

	none, _ := svc.ListFor(ctx, pharmacist)
	if len(none) != 0 {
		t.Errorf("pharmacy sees %d consults, want 0", len(none))
	}
}

func TestClaimRace(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, notify.NewCaptureNotifier(), zerolog.Nop())
	ctx := context.Background()

	c, _ := svc.SubmitIntake(ctx, uuid.New(), testIntake())
	gp1, gp2 := user(identity.RoleGP), user(identity.RoleGP)

	if _, err := svc.Claim(ctx, c.ID, gp1.ID); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if _, err := svc.Claim(ctx, c.ID, gp2.ID); !errors.Is(err, ErrAlreadyClaimed) {
		t.Errorf("second claim: err = %v, want ErrAlreadyClaimed", err)
	}
}

func TestCompleteRequiresAssignedGP(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, notify.NewCaptureNotifier(), zerolog.Nop())
	ctx := context.Background()

	c, _ := svc.SubmitIntake(ctx, uuid.New(), testIntake())
	gp, other := user(identity.RoleGP), user(identity.RoleGP)
	svc.Claim(ctx, c.ID, gp.ID)

	if _, err := svc.Complete(ctx, c.ID, other.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("other gp: err = %v, want ErrForbidden", err)
	}

	done, err := svc.Complete(ctx, c.ID, gp.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if done.Status != StatusCompleted {
		t.Errorf("status = %q", done.Status)
	}

	if _, err := svc.Complete(ctx, c.ID, gp.ID); !errors.Is(err, ErrNotInProgress) {
		t.Errorf("double complete: err = %v, want ErrNotInProgress", err)
	}
}

func TestMessagesRestrictedToParticipants(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, notify.NewCaptureNotifier(), zerolog.Nop())
	ctx := context.Background()

	patient := user(identity.RolePatient)
	gp := user(identity.RoleGP)
	stranger := user(identity.RolePatient)

	c, _ := svc.SubmitIntake(ctx, patient.ID, testIntake())
	svc.Claim(ctx, c.ID, gp.ID)

	if _, err := svc.AddMessage(ctx, c.ID, patient, "still coughing"); err != nil {
		t.Fatalf("patient message: %v", err)
	}
	if _, err := svc.AddMessage(ctx, c.ID, gp, "please rest and hydrate"); err != nil {
		t.Fatalf("gp message: %v", err)
	}
	if _, err := svc.AddMessage(ctx, c.ID, stranger, "hi"); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger: err = %v, want ErrForbidden", err)
	}

	msgs, err := svc.ListMessages(ctx, c.ID, patient)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Errorf("messages = %d, want 2", len(msgs))
	}
	if _, err := svc.ListMessages(ctx, c.ID, stranger); !errors.Is(err, ErrForbidden) {
		t.Errorf("stranger list: err = %v, want ErrForbidden", err)
	}
}
