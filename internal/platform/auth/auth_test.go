package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func testIssuer() *SessionIssuer {
	return NewSessionIssuer([]byte("test-session-key"), time.Hour)
}

func TestIssueAndParse(t *testing.T) {
	issuer := testIssuer()

	tok, err := issuer.Issue("user-1", "patient", "Demo Patient")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	claims, err := issuer.Parse(tok)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if claims.Subject != "user-1" {
		t.Errorf("subject = %q, want user-1", claims.Subject)
	}
	if claims.Role != "patient" {
		t.Errorf("role = %q, want patient", claims.Role)
	}
	if claims.Name != "Demo Patient" {
		t.Errorf("name = %q", claims.Name)
	}
}

func TestParseRejectsWrongKey(t *testing.T) {
	tok, _ := testIssuer().Issue("user-1", "gp", "Dr. Sarah Johnson")

	other := NewSessionIssuer([]byte("different-key"), time.Hour)
	if _, err := other.Parse(tok); err != ErrInvalidSession {
		t.Fatalf("err = %v, want ErrInvalidSession", err)
	}
}

func TestParseRejectsExpired(t *testing.T) {
	issuer := NewSessionIssuer([]byte("k"), -time.Minute)
	tok, _ := issuer.Issue("user-1", "patient", "Demo Patient")
	if _, err := issuer.Parse(tok); err != ErrInvalidSession {
		t.Fatalf("err = %v, want ErrInvalidSession", err)
	}
}

func TestSessionMiddleware(t *testing.T) {
	issuer := testIssuer()
	tok, _ := issuer.Issue("user-9", "pharmacy", "HealthCare Pharmacy")

	e := echo.New()

	cases := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid token", "Bearer " + tok, 0},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			c := e.NewContext(req, httptest.NewRecorder())

			handler := func(c echo.Context) error {
				ctx := c.Request().Context()
				if UserIDFromContext(ctx) != "user-9" {
					t.Error("user id not set on context")
				}
				if RoleFromContext(ctx) != "pharmacy" {
					t.Error("role not set on context")
				}
				return c.NoContent(http.StatusOK)
			}

			err := SessionMiddleware(issuer)(handler)(c)
			if tc.wantStatus == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			httpErr, ok := err.(*echo.HTTPError)
			if !ok || httpErr.Code != tc.wantStatus {
				t.Fatalf("err = %v, want status %d", err, tc.wantStatus)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	issuer := testIssuer()
	e := echo.New()

	run := func(role string, allowed ...string) error {
		tok, _ := issuer.Issue("u", role, "")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+tok)
		c := e.NewContext(req, httptest.NewRecorder())
		ok := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
		return SessionMiddleware(issuer)(RequireRole(allowed...)(ok))(c)
	}

	if err := run("gp", "gp", "specialist"); err != nil {
		t.Errorf("gp should pass gp-or-specialist gate: %v", err)
	}
	err := run("patient", "gp", "specialist")
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusForbidden {
		t.Errorf("patient should be forbidden, got %v", err)
	}
}
