package auditevent

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const recordTimeout = 5 * time.Second

// Recorder writes audit events without ever failing the operation that
// triggered them. Writes happen on a detached context so a cancelled request
// still gets its trail.
type Recorder struct {
	repo   Repository
	logger zerolog.Logger
}

func NewRecorder(repo Repository, logger zerolog.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger.With().Str("component", "audit").Logger()}
}

// Record persists the event best-effort. Failures are logged and swallowed.
func (r *Recorder) Record(_ context.Context, ev AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if err := r.repo.Create(ctx, &ev); err != nil {
		r.logger.Error().Err(err).
			Str("event", ev.Event).
			Str("resource_type", ev.ResourceType).
			Str("resource_id", ev.ResourceID).
			Msg("audit write failed")
		return
	}
	r.logger.Debug().
		Str("event", ev.Event).
		Str("actor_id", ev.ActorID).
		Str("resource_id", ev.ResourceID).
		Msg("audit recorded")
}
