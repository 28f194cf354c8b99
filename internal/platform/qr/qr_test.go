package qr

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func newTestGenerator() *CodeGenerator {
	return NewCodeGenerator(zerolog.Nop())
}

func TestGenerateTokenFormat(t *testing.T) {
	g := newTestGenerator()
	id := uuid.New()

	token, err := g.GenerateToken(id)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if !strings.HasPrefix(token, TokenPrefix) {
		t.Errorf("token %q missing prefix %q", token, TokenPrefix)
	}
	if !strings.HasSuffix(token, id.String()) {
		t.Errorf("token %q missing prescription id suffix", token)
	}
	// prefix + 64 hex chars + "-" + 36 char uuid
	if len(token) != len(TokenPrefix)+64+1+36 {
		t.Errorf("token length = %d", len(token))
	}
}

func TestGenerateTokenUniqueness(t *testing.T) {
	g := newTestGenerator()
	id := uuid.New()

	seen := make(map[string]bool, 10000)
	for i := 0; i < 10000; i++ {
		token, err := g.GenerateToken(id)
		if err != nil {
			t.Fatalf("GenerateToken: %v", err)
		}
		if seen[token] {
			t.Fatalf("collision after %d tokens: %s", i, token)
		}
		seen[token] = true
	}
}

func TestWellFormed(t *testing.T) {
	g := newTestGenerator()
	cases := []struct {
		token string
		want  bool
	}{
		{"QR-abc123", true},
		{"QR-", true},
		{"qr-abc", false},
		{"", false},
		{"TOKEN-abc", false},
	}
	for _, tc := range cases {
		if got := g.WellFormed(tc.token); got != tc.want {
			t.Errorf("WellFormed(%q) = %v, want %v", tc.token, got, tc.want)
		}
	}
}

func TestImage(t *testing.T) {
	g := newTestGenerator()
	token, err := g.GenerateToken(uuid.New())
	if err != nil {
		t.Fatal(err)
	}

	uri, err := g.Image(token)
	if err != nil {
		t.Fatalf("Image: %v", err)
	}
	if !strings.HasPrefix(uri, "data:image/png;base64,") {
		t.Errorf("image is not a PNG data URI: %.40s", uri)
	}

	// Deterministic in the token.
	uri2, err := g.Image(token)
	if err != nil {
		t.Fatal(err)
	}
	if uri != uri2 {
		t.Error("rendering the same token twice produced different images")
	}
}

func TestImageEmptyToken(t *testing.T) {
	g := newTestGenerator()
	if _, err := g.Image(""); err == nil {
		t.Fatal("expected error for empty token")
	}
}
