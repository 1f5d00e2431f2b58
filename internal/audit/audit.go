// Package audit records security-relevant events (who attempted what, from
// where, and how it ended) independently of whether the outcome is user-facing.
package audit

import (
	"context"
	"log/slog"

	"github.com/argestone/marble-site/backend/internal/logger"
)

// Outcome classifies how an audited action ended.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeDenied   Outcome = "denied"
	OutcomeFailure  Outcome = "failure"
	OutcomeRejected Outcome = "rejected"
)

// Recorder writes structured security events to the application logger.
type Recorder struct {
	logger *slog.Logger
}

// NewRecorder creates a Recorder. A nil logger falls back to slog.Default.
func NewRecorder(log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{logger: log}
}

// Event logs a security event with the actor IP, the action attempted and its
// outcome. Extra attributes are appended as-is; the logger's redaction rules
// still apply to them.
func (r *Recorder) Event(ctx context.Context, action string, ip string, outcome Outcome, attrs ...slog.Attr) {
	log := logger.WithCorrelationID(ctx, r.logger)
	args := make([]any, 0, 3+len(attrs))
	args = append(args,
		slog.String("audit_action", action),
		slog.String("actor_ip", ip),
		slog.String("outcome", string(outcome)),
	)
	for _, a := range attrs {
		args = append(args, a)
	}
	log.Info("security event", args...)
}
