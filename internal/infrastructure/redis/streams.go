package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cassiomorais/paysvc/internal/domain/fin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	// StatusStream carries subscription status changes to fulfillment.
	StatusStream = "subscriptions:status"
	// CheckStream carries requests to re-check a subscription at its service.
	CheckStream = "subscriptions:checks"
)

// StatusPublisher is the fin.StatusHook that fans status changes out on
// StatusStream.
type StatusPublisher struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewStatusPublisher(client redis.Cmdable) *StatusPublisher {
	return &StatusPublisher{client: client, now: time.Now}
}

func (p *StatusPublisher) SubscriptionStatusChanged(ctx context.Context, sub *fin.Subscription) error {
	args := &redis.XAddArgs{
		Stream: StatusStream,
		Values: statusEvent(sub, p.now()),
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to publish status change: %w", err)
	}
	return nil
}

func statusEvent(sub *fin.Subscription, at time.Time) map[string]any {
	return map[string]any{
		"subscription_id": sub.ID.String(),
		"service_id":      sub.ServiceID.String(),
		"plan_id":         sub.PlanID.String(),
		"subscriber_type": string(sub.Subscriber.Type),
		"subscriber_id":   sub.Subscriber.ID.String(),
		"refno":           sub.RefNo,
		"status":          string(sub.Status),
		"timestamp":       at.Unix(),
	}
}

// CheckQueue enqueues subscription checks on CheckStream.
type CheckQueue struct {
	client redis.Cmdable
	now    func() time.Time
}

func NewCheckQueue(client redis.Cmdable) *CheckQueue {
	return &CheckQueue{client: client, now: time.Now}
}

func (q *CheckQueue) EnqueueCheck(ctx context.Context, subscriptionID uuid.UUID) error {
	args := &redis.XAddArgs{
		Stream: CheckStream,
		Values: map[string]any{
			"subscription_id": subscriptionID.String(),
			"timestamp":       q.now().Unix(),
		},
	}
	if err := q.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("failed to enqueue subscription check: %w", err)
	}
	return nil
}

// ErrMalformedMessage marks a stream message that can never be processed.
var ErrMalformedMessage = errors.New("malformed stream message")

// SubscriptionID extracts the subscription_id field of a stream message.
func SubscriptionID(msg redis.XMessage) (uuid.UUID, error) {
	raw, _ := msg.Values["subscription_id"].(string)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w %s: subscription_id %q", ErrMalformedMessage, msg.ID, raw)
	}
	return id, nil
}

// StreamConsumer reads one stream as a member of a consumer group.
type StreamConsumer struct {
	client        redis.Cmdable
	stream        string
	group         string
	consumer      string
	batchSize     int64
	blockDuration time.Duration
}

func NewStreamConsumer(
	client redis.Cmdable,
	stream string,
	group string,
	consumer string,
	batchSize int64,
	blockDuration time.Duration,
) *StreamConsumer {
	return &StreamConsumer{
		client:        client,
		stream:        stream,
		group:         group,
		consumer:      consumer,
		batchSize:     batchSize,
		blockDuration: blockDuration,
	}
}

func (c *StreamConsumer) Stream() string {
	return c.stream
}

// CreateGroup creates the group and the stream if missing.
func (c *StreamConsumer) CreateGroup(ctx context.Context) error {
	const busyGroupMsg = "BUSYGROUP"
	err := c.client.XGroupCreateMkStream(ctx, c.stream, c.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), busyGroupMsg) {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}
	return nil
}

// Read blocks for up to the block duration and returns new messages.
func (c *StreamConsumer) Read(ctx context.Context) ([]redis.XMessage, error) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.consumer,
		Streams:  []string{c.stream, ">"},
		Count:    c.batchSize,
		Block:    c.blockDuration,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	var msgs []redis.XMessage
	for _, s := range streams {
		msgs = append(msgs, s.Messages...)
	}
	return msgs, nil
}

func (c *StreamConsumer) Ack(ctx context.Context, messageID string) error {
	if err := c.client.XAck(ctx, c.stream, c.group, messageID).Err(); err != nil {
		return fmt.Errorf("failed to ack message: %w", err)
	}
	return nil
}

// ClaimIdle takes over messages left pending by other consumers for at
// least minIdle.
func (c *StreamConsumer) ClaimIdle(ctx context.Context, minIdle time.Duration) ([]redis.XMessage, error) {
	msgs, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    c.batchSize,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to claim messages: %w", err)
	}
	return msgs, nil
}
