// Package notify delivers best-effort user notifications. Delivery never
// blocks or fails the operation that triggered it.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Event identifies what happened.
type Event string

const (
	EventConsultQueued    Event = "consult_queued"
	EventPrescriptionIssued Event = "prescription_issued"
	EventResultsAvailable Event = "results_available"
	EventReferralProposed Event = "referral_proposed"
	EventOTPRequested     Event = "otp_requested"
)

// Message is a single outbound notification.
type Message struct {
	UserID    string            `json:"user_id"`
	Event     Event             `json:"event"`
	Body      string            `json:"body"`
	Meta      map[string]string `json:"meta,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Notifier delivers notifications to users.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// LogNotifier writes notifications to the structured log. It stands in for a
// real email/SMS/push gateway.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notify").Logger()}
}

func (n *LogNotifier) Notify(_ context.Context, msg Message) {
	n.logger.Info().
		Str("user_id", msg.UserID).
		Str("event", string(msg.Event)).
		Str("body", msg.Body).
		Msg("notification")
}

// CaptureNotifier records messages in memory. Used in tests.
type CaptureNotifier struct {
	mu       sync.Mutex
	messages []Message
}

func NewCaptureNotifier() *CaptureNotifier {
	return &CaptureNotifier{}
}

func (n *CaptureNotifier) Notify(_ context.Context, msg Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	n.messages = append(n.messages, msg)
}

func (n *CaptureNotifier) Messages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Message, len(n.messages))
	copy(out, n.messages)
	return out
}
