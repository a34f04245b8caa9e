// Package actionlog records every action taken against a payment service.
package actionlog

import (
	"context"
	"time"

	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/cassiomorais/paysvc/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Log appends entries for one payment service.
//
// Failed actions are also written to the process log, which survives a
// rollback of the transaction the durable entry was written in.
type Log struct {
	serviceID uuid.UUID
	repo      fin.LogRepository
	logger    zerolog.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

type Option func(*Log)

func WithMetrics(m *observability.Metrics) Option {
	return func(l *Log) { l.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

func New(serviceID uuid.UUID, repo fin.LogRepository, logger zerolog.Logger, opts ...Option) *Log {
	l := &Log{
		serviceID: serviceID,
		repo:      repo,
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Write appends an entry. Empty action or result is ignored. A failing
// durable write is reported to the process log and otherwise swallowed.
func (l *Log) Write(ctx context.Context, action string, result fin.LogResult, reason string) {
	if action == "" || result == "" {
		return
	}

	entry := &fin.LogEntry{
		ID:        uuid.New(),
		Date:      l.now().UTC(),
		ServiceID: l.serviceID,
		Action:    action,
		Result:    result,
		Reason:    reason,
	}
	if err := l.repo.Append(ctx, entry); err != nil {
		l.logger.Error().Err(err).
			Str("service_id", l.serviceID.String()).
			Str("action", action).
			Str("result", string(result)).
			Msg("failed to write action log entry")
	}

	if result.IsFailure() {
		l.logger.Error().
			Str("service_id", l.serviceID.String()).
			Str("action", action).
			Str("result", string(result)).
			Str("reason", reason).
			Msgf("Payment Service #%s: '%s' failed [%s]", l.serviceID, action, reason)
	}

	if l.metrics != nil {
		l.metrics.ActionsTotal.WithLabelValues(string(result)).Inc()
	}
}

func (l *Log) Info(ctx context.Context, action, reason string) {
	l.Write(ctx, action, fin.LogInfo, reason)
}

func (l *Log) Success(ctx context.Context, action, reason string) {
	l.Write(ctx, action, fin.LogSuccess, reason)
}

func (l *Log) Warning(ctx context.Context, action, reason string) {
	l.Write(ctx, action, fin.LogWarning, reason)
}

func (l *Log) Error(ctx context.Context, action, reason string) {
	l.Write(ctx, action, fin.LogError, reason)
}

func (l *Log) Fatal(ctx context.Context, action, reason string) {
	l.Write(ctx, action, fin.LogFatal, reason)
}
