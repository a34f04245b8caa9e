package registration

import (
	"context"
	"time"

	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/cassiomorais/paysvc/internal/infrastructure/observability"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const pollerSource = "poller"

// Checker checks one subscription at its service.
type Checker interface {
	CheckSubscription(ctx context.Context, subscriptionID uuid.UUID) (fin.SubscriptionStatus, error)
}

// Poller periodically re-checks subscriptions whose status may still change.
type Poller struct {
	tx       TransactionManager
	subs     fin.SubscriptionRepository
	checker  Checker
	batch    int
	interval time.Duration
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

// NewPoller creates a Poller that claims up to batch subscriptions not
// checked within interval per round. metrics may be nil.
func NewPoller(
	tx TransactionManager,
	subs fin.SubscriptionRepository,
	checker Checker,
	batch int,
	interval time.Duration,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Poller {
	return &Poller{
		tx:       tx,
		subs:     subs,
		checker:  checker,
		batch:    batch,
		interval: interval,
		metrics:  metrics,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

// Poll runs one round and returns the number of subscriptions checked
// successfully. Claiming commits before any remote call is made.
func (p *Poller) Poll(ctx context.Context) (int, error) {
	var ids []uuid.UUID
	err := p.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		ids, err = p.subs.ClaimDue(txCtx, p.batch, p.interval)
		return err
	})
	if err != nil {
		return 0, err
	}

	checked := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return checked, ctx.Err()
		}

		start := time.Now()
		status, err := p.checker.CheckSubscription(ctx, id)
		p.observe(start, err)
		if err != nil {
			p.logger.Error().Err(err).Str("subscription_id", id.String()).Msg("subscription check failed")
			continue
		}
		p.logger.Debug().Str("subscription_id", id.String()).Str("status", string(status)).Msg("subscription checked")
		checked++
	}
	return checked, nil
}

func (p *Poller) observe(start time.Time, err error) {
	if p.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.WorkerMessagesProcessed.WithLabelValues(pollerSource, status).Inc()
	p.metrics.WorkerProcessingDuration.WithLabelValues(pollerSource).Observe(time.Since(start).Seconds())
}

// Run polls every period until ctx is done.
func (p *Poller) Run(ctx context.Context, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		if n, err := p.Poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error().Err(err).Msg("poll round failed")
		} else if n > 0 {
			p.logger.Info().Int("checked", n).Msg("poll round finished")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
