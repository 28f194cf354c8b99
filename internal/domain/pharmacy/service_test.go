package pharmacy

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carelink/carelink/internal/domain/auditevent"
	"github.com/carelink/carelink/internal/domain/identity"
	"github.com/carelink/carelink/internal/domain/prescription"
	"github.com/carelink/carelink/internal/platform/blobstore"
	"github.com/carelink/carelink/internal/platform/notify"
	"github.com/carelink/carelink/internal/platform/pdfgen"
	"github.com/carelink/carelink/internal/platform/qr"
)

// memStore is an in-memory prescription store backing the end-to-end flow.
type memStore struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]prescription.Prescription
	byToken map[string]uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{byID: map[uuid.UUID]prescription.Prescription{}, byToken: map[string]uuid.UUID{}}
}

func (m *memStore) Create(_ context.Context, p *prescription.Prescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p.CreatedAt = time.Now()
	m.byID[p.ID] = *p
	if p.QRToken != nil {
		m.byToken[*p.QRToken] = p.ID
	}
	return nil
}

func (m *memStore) GetByID(_ context.Context, id uuid.UUID) (*prescription.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, prescription.ErrNotFound
	}
	cp := p
	return &cp, nil
}

func (m *memStore) GetByToken(_ context.Context, token string) (*prescription.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byToken[token]
	if !ok {
		return nil, prescription.ErrNotFound
	}
	p := m.byID[id]
	cp := p
	return &cp, nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID uuid.UUID) ([]*prescription.Prescription, error) {
	return nil, nil
}

func (m *memStore) Update(_ context.Context, id uuid.UUID, fields prescription.UpdateFields) (*prescription.Prescription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return nil, prescription.ErrNotFound
	}
	if fields.QRDisabled != nil && !*fields.QRDisabled && p.QRDisabled {
		return nil, prescription.ErrReenableQR
	}
	if fields.Status != nil {
		p.Status = *fields.Status
	}
	if fields.QRDisabled != nil {
		p.QRDisabled = *fields.QRDisabled
	}
	if fields.FileURL != nil {
		p.FileURL = fields.FileURL
	}
	m.byID[id] = p
	cp := p
	return &cp, nil
}

func (m *memStore) MarkDownloaded(_ context.Context, id uuid.UUID, fileURL string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.byID[id]
	if !ok {
		return false, prescription.ErrNotFound
	}
	if p.QRDisabled {
		return false, nil
	}
	p.QRDisabled = true
	p.PDFDownloaded = true
	p.FileURL = &fileURL
	m.byID[id] = p
	return true, nil
}

type memAuditRepo struct {
	mu     sync.Mutex
	events []*auditevent.AuditEvent
}

func (m *memAuditRepo) Create(_ context.Context, ev *auditevent.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memAuditRepo) ListByResource(_ context.Context, _, _ string, _, _ int) ([]*auditevent.AuditEvent, int, error) {
	return nil, 0, nil
}

func (m *memAuditRepo) GetByID(_ context.Context, _ uuid.UUID) (*auditevent.AuditEvent, error) {
	return nil, errors.New("not found")
}

type memUsers struct {
	users map[uuid.UUID]*identity.User
}

func (m *memUsers) GetByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, identity.ErrUserNotFound
}

func newPharmacyService(store Store, audits *memAuditRepo) *Service {
	return NewService(store, qr.NewCodeGenerator(zerolog.Nop()), auditevent.NewRecorder(audits, zerolog.Nop()), zerolog.Nop())
}

func seedPrescription(t *testing.T, store *memStore, disabled bool) (string, uuid.UUID) {
	t.Helper()
	id := uuid.New()
	gen := qr.NewCodeGenerator(zerolog.Nop())
	token, err := gen.GenerateToken(id)
	if err != nil {
		t.Fatal(err)
	}
	p := prescription.Prescription{
		ID:        id,
		PatientID: uuid.New(),
		Status:    prescription.StatusActive,
		Items: []prescription.Item{{
			Name: "Amoxicillin", Dosage: "500mg", Frequency: "3x daily",
			Quantity: "21", Duration: "7 days",
		}},
		QRToken:    &token,
		QRDisabled: disabled,
	}
	if err := store.Create(context.Background(), &p); err != nil {
		t.Fatal(err)
	}
	return token, id
}

func TestResolveReturnsMinimalView(t *testing.T) {
	store := newMemStore()
	audits := &memAuditRepo{}
	svc := newPharmacyService(store, audits)
	token, id := seedPrescription(t, store, false)

	view, err := svc.Resolve(context.Background(), token, "pharm-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if view.PrescriptionID != id.String() {
		t.Errorf("prescriptionId = %q", view.PrescriptionID)
	}
	if len(view.Items) != 1 || view.Items[0].Name != "Amoxicillin" {
		t.Errorf("items = %+v", view.Items)
	}
	if !view.Meta.NoPII {
		t.Error("noPII marker missing")
	}
}

func TestResolveViewIsPIIFree(t *testing.T) {
	store := newMemStore()
	svc := newPharmacyService(store, &memAuditRepo{})
	token, _ := seedPrescription(t, store, false)

	view, err := svc.Resolve(context.Background(), token, "pharm-1")
	if err != nil {
		t.Fatal(err)
	}

	raw, err := json.Marshal(view)
	if err != nil {
		t.Fatal(err)
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(raw, &keys); err != nil {
		t.Fatal(err)
	}

	want := map[string]bool{"items": true, "prescriptionId": true, "meta": true}
	for k := range keys {
		if !want[k] {
			t.Errorf("unexpected top-level key %q in pharmacy view", k)
		}
	}
	for _, forbidden := range []string{"patientId", "email", "phone"} {
		if strings.Contains(string(raw), forbidden) {
			t.Errorf("serialized view leaks %q: %s", forbidden, raw)
		}
	}
}

func TestResolveUniformInvalidToken(t *testing.T) {
	store := newMemStore()
	svc := newPharmacyService(store, &memAuditRepo{})
	seedPrescription(t, store, false)

	// Malformed and unknown tokens yield the identical error value.
	malformed := "not-a-token"
	unknown := qr.TokenPrefix + strings.Repeat("ab", 32) + "-" + uuid.New().String()

	errMalformed := func() error { _, err := svc.Resolve(context.Background(), malformed, "p"); return err }()
	errUnknown := func() error { _, err := svc.Resolve(context.Background(), unknown, "p"); return err }()

	if !errors.Is(errMalformed, ErrInvalidToken) || !errors.Is(errUnknown, ErrInvalidToken) {
		t.Fatalf("malformed=%v unknown=%v, both want ErrInvalidToken", errMalformed, errUnknown)
	}
	if errMalformed.Error() != errUnknown.Error() {
		t.Error("error messages distinguish malformed from unknown tokens")
	}
}

func TestResolveDisabledToken(t *testing.T) {
	store := newMemStore()
	svc := newPharmacyService(store, &memAuditRepo{})
	token, _ := seedPrescription(t, store, true)

	if _, err := svc.Resolve(context.Background(), token, "p"); !errors.Is(err, ErrTokenDisabled) {
		t.Fatalf("err = %v, want ErrTokenDisabled", err)
	}
}

func TestResolveAuditTruncatesToken(t *testing.T) {
	store := newMemStore()
	audits := &memAuditRepo{}
	svc := newPharmacyService(store, audits)
	token, _ := seedPrescription(t, store, false)

	if _, err := svc.Resolve(context.Background(), token, "pharm-1"); err != nil {
		t.Fatal(err)
	}

	audits.mu.Lock()
	defer audits.mu.Unlock()
	if len(audits.events) != 1 {
		t.Fatalf("audit events = %d, want 1", len(audits.events))
	}
	logged := audits.events[0].Meta["tokenPrefix"]
	if logged == token {
		t.Error("full token written to audit log")
	}
	if !strings.HasPrefix(token, logged) || len(logged) >= len(token) {
		t.Errorf("tokenPrefix = %q not a proper prefix of the token", logged)
	}
}

// TestDispensingFlow walks the whole lifecycle: issue, view QR, verify at
// the pharmacy, download the PDF, then confirm the token is dead.
func TestDispensingFlow(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	audits := &memAuditRepo{}

	patient := &identity.User{ID: uuid.New(), Role: identity.RolePatient}
	gp := &identity.User{ID: uuid.New(), Role: identity.RoleGP}
	users := &memUsers{users: map[uuid.UUID]*identity.User{patient.ID: patient, gp.ID: gp}}

	recorder := auditevent.NewRecorder(audits, zerolog.Nop())
	rxSvc := prescription.NewService(
		store,
		users,
		qr.NewCodeGenerator(zerolog.Nop()),
		pdfgen.NewPDFRenderer(),
		blobstore.NewInMemoryBlobStore(),
		recorder,
		notify.NewCaptureNotifier(),
		nil,
		5*time.Second,
		zerolog.Nop(),
	)
	phSvc := NewService(store, qr.NewCodeGenerator(zerolog.Nop()), recorder, zerolog.Nop())

	// GP finalizes a consult into a prescription.
	consultID := uuid.New()
	p, err := rxSvc.Create(ctx, patient.ID, &consultID, []prescription.Item{{
		Name: "Amoxicillin", Dosage: "500mg", Frequency: "3x daily",
		Quantity: "21", Duration: "7 days",
	}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	token := *p.QRToken

	// Patient pulls up the QR image.
	if _, err := rxSvc.ViewQRImage(ctx, p.ID, patient.ID.String()); err != nil {
		t.Fatalf("view QR: %v", err)
	}

	// Pharmacy scans and verifies.
	view, err := phSvc.Resolve(ctx, token, "pharm-1")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if view.PrescriptionID != p.ID.String() || len(view.Items) != 1 {
		t.Fatalf("unexpected view: %+v", view)
	}

	// Patient downloads the PDF, closing the QR channel.
	downloaded, err := rxSvc.DownloadPDF(ctx, p.ID, patient.ID.String())
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if !downloaded.QRDisabled || !downloaded.PDFDownloaded || downloaded.FileURL == nil {
		t.Fatalf("post-download state wrong: %+v", downloaded)
	}

	// Re-verification now reports the token as used, not unknown.
	if _, err := phSvc.Resolve(ctx, token, "pharm-1"); !errors.Is(err, ErrTokenDisabled) {
		t.Fatalf("re-resolve: err = %v, want ErrTokenDisabled", err)
	}
}
