package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cassiomorais/paysvc/internal/application/registration"
	"github.com/cassiomorais/paysvc/internal/bootstrap"
	"github.com/cassiomorais/paysvc/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/paysvc/internal/infrastructure/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app, err := bootstrap.New(ctx, "paysvc-worker", "paysvc_worker")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	components := app.Wire()
	workerCfg := app.Config.Worker

	poller := registration.NewPoller(
		components.TxManager,
		components.Store.Subscriptions,
		components.UseCase,
		int(workerCfg.BatchSize),
		workerCfg.CheckInterval,
		app.Metrics,
		app.Logger,
	)

	consumer := infraRedis.NewStreamConsumer(
		app.Redis,
		infraRedis.CheckStream,
		workerCfg.ConsumerGroup,
		app.Config.InstanceID,
		workerCfg.BatchSize,
		workerCfg.BlockDuration,
	)
	if err := consumer.CreateGroup(ctx); err != nil {
		app.Logger.Error().Err(err).Msg("Failed to create consumer group")
		os.Exit(1)
	}

	app.Logger.Info().
		Str("stream", infraRedis.CheckStream).
		Str("group", workerCfg.ConsumerGroup).
		Str("consumer", app.Config.InstanceID).
		Dur("check_interval", workerCfg.CheckInterval).
		Msg("Worker started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	// 1. Periodic status checks of subscriptions that are due.
	g.Go(func() error {
		return poller.Run(gCtx, workerCfg.PollInterval)
	})

	// 2. On-demand checks queued through the API.
	g.Go(func() error {
		p := &checkProcessor{
			consumer:  consumer,
			checker:   components.UseCase,
			claimIdle: workerCfg.ClaimIdle,
			metrics:   app.Metrics,
			logger:    observability.Component(app.Logger, "check-consumer"),
		}
		return p.run(gCtx)
	})

	// 3. Wait for shutdown signal.
	g.Go(func() error {
		select {
		case <-gCtx.Done():
			return gCtx.Err()
		case <-quit:
			app.Logger.Info().Msg("Shutting down worker...")
			cancel()
			return nil
		}
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		app.Logger.Error().Err(err).Msg("Worker error")
	}
	app.Logger.Info().Msg("Worker exited")
}

type checkProcessor struct {
	consumer  *infraRedis.StreamConsumer
	checker   registration.Checker
	claimIdle time.Duration
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

func (p *checkProcessor) run(ctx context.Context) error {
	lastClaim := time.Now()
	for {
		if ctx.Err() != nil {
			return nil
		}

		// Messages left pending by a crashed consumer are taken over once idle.
		if p.claimIdle > 0 && time.Since(lastClaim) >= p.claimIdle {
			lastClaim = time.Now()
			claimed, err := p.consumer.ClaimIdle(ctx, p.claimIdle)
			if err != nil && ctx.Err() == nil {
				p.logger.Error().Err(err).Msg("Failed to claim idle messages")
			}
			p.handle(ctx, claimed)
		}

		msgs, err := p.consumer.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error().Err(err).Msg("Failed to read from stream")
			time.Sleep(time.Second)
			continue
		}
		p.handle(ctx, msgs)
	}
}

func (p *checkProcessor) handle(ctx context.Context, msgs []goredis.XMessage) {
	for _, msg := range msgs {
		id, err := infraRedis.SubscriptionID(msg)
		if err != nil {
			p.logger.Error().Err(err).Str("message_id", msg.ID).Msg("Dropping malformed check request")
			p.ack(ctx, msg.ID)
			continue
		}

		start := time.Now()
		status, err := p.checker.CheckSubscription(ctx, id)
		p.observe(start, err)
		if err != nil {
			// The periodic poller retries it; redelivering here would loop on permanent failures.
			p.logger.Error().Err(err).Str("subscription_id", id.String()).Msg("Subscription check failed")
		} else {
			p.logger.Info().Str("subscription_id", id.String()).Str("status", string(status)).Msg("Subscription checked")
		}
		p.ack(ctx, msg.ID)
	}
}

func (p *checkProcessor) ack(ctx context.Context, id string) {
	if err := p.consumer.Ack(ctx, id); err != nil {
		p.logger.Warn().Err(err).Str("message_id", id).Msg("Failed to ack message")
	}
}

func (p *checkProcessor) observe(start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.metrics.WorkerMessagesProcessed.WithLabelValues(infraRedis.CheckStream, status).Inc()
	p.metrics.WorkerProcessingDuration.WithLabelValues(infraRedis.CheckStream).Observe(time.Since(start).Seconds())
}
