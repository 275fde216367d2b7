// Package exitgate captures the optional post-session rating and terminates
// the session. The rating is advisory telemetry; logout is never blocked by
// its outcome.
package exitgate

import (
	"context"
	"log/slog"
	"time"

	"github.com/smart-atm/smart_atm/internal/bankapi"
)

const defaultTerminateDelay = 700 * time.Millisecond

// RatingSkipped marks a close without a rating.
const RatingSkipped = 0

// Gate submits an exit rating best-effort and then terminates the session
// after a short fixed delay regardless of the submission outcome.
type Gate struct {
	api    *bankapi.Client
	logger *slog.Logger
	delay  time.Duration
}

// New builds a gate with the default termination delay.
func New(api *bankapi.Client, logger *slog.Logger) *Gate {
	return &Gate{api: api, logger: logger, delay: defaultTerminateDelay}
}

// Close submits the rating when one was given (1-5), then fires terminate
// after the gate delay. Submission failures are logged and swallowed.
func (g *Gate) Close(ctx context.Context, rating int, terminate func()) {
	if rating >= 1 && rating <= 5 {
		if err := g.api.Rate(ctx, rating); err != nil {
			g.logger.Warn("rating submission failed", "rating", rating, "error", err)
		}
	}
	time.AfterFunc(g.delay, terminate)
}
