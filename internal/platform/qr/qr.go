// Package qr mints the opaque tokens that bind a prescription to a scannable
// code and renders them as QR images. Disablement state lives on the
// prescription record; the Disable hook here only notifies the adapter.
package qr

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	// TokenPrefix marks well-formed prescription tokens. The prefix check is
	// a fast-path rejection only, never an authorization decision.
	TokenPrefix = "QR-"

	// tokenEntropyBytes is the random component size: 32 bytes = 256 bits,
	// well past the point where guessing or collisions are a concern.
	tokenEntropyBytes = 32

	imageSize = 256
)

var (
	ErrEmptyToken   = errors.New("token is empty")
	ErrRenderFailed = errors.New("failed to generate QR code")
)

// Generator mints and renders prescription QR tokens.
type Generator interface {
	GenerateToken(prescriptionID uuid.UUID) (string, error)
	Image(token string) (string, error)
	WellFormed(token string) bool
	Disable(prescriptionID uuid.UUID)
}

// CodeGenerator is the production Generator. Tokens carry a cryptographically
// random component so knowledge of the prescription id alone cannot forge one.
type CodeGenerator struct {
	logger zerolog.Logger
}

func NewCodeGenerator(logger zerolog.Logger) *CodeGenerator {
	return &CodeGenerator{logger: logger}
}

// GenerateToken returns "QR-<64 hex chars>-<prescription id>". A failure of
// the entropy source is fatal to the creating request.
func (g *CodeGenerator) GenerateToken(prescriptionID uuid.UUID) (string, error) {
	buf := make([]byte, tokenEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read token entropy: %w", err)
	}
	token := TokenPrefix + hex.EncodeToString(buf) + "-" + prescriptionID.String()
	g.logger.Debug().Str("prescription_id", prescriptionID.String()).Msg("generated qr token")
	return token, nil
}

// Image renders the token as a PNG data URI, deterministic in the token.
// Encoding errors are surfaced to the caller, never swallowed.
func (g *CodeGenerator) Image(token string) (string, error) {
	if token == "" {
		return "", ErrEmptyToken
	}
	png, err := qrcode.Encode(token, qrcode.High, imageSize)
	if err != nil {
		g.logger.Error().Err(err).Msg("qr image encoding failed")
		return "", fmt.Errorf("%w: %v", ErrRenderFailed, err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// WellFormed is a cheap structural check used before a store lookup.
func (g *CodeGenerator) WellFormed(token string) bool {
	return strings.HasPrefix(token, TokenPrefix)
}

// Disable is a notification hook; the persisted disablement flag on the
// prescription row is the source of truth.
func (g *CodeGenerator) Disable(prescriptionID uuid.UUID) {
	g.logger.Info().Str("prescription_id", prescriptionID.String()).Msg("qr channel disabled")
}
