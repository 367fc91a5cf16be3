package notify

import (
	"context"
	"log/slog"
)

// LogGateway writes notifications to a logger instead of delivering them.
// It never fails; it is the gateway used when no webhook is configured.
type LogGateway struct {
	Logger *slog.Logger
}

// Notify logs the rendered payload.
func (g LogGateway) Notify(ctx context.Context, participantID string, p Payload) error {
	logger := g.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "notification",
		"participant", participantID,
		"kind", p.Kind(),
		"text", Render(p))
	return nil
}
