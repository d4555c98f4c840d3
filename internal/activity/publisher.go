package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tablemate/tablemate/internal/metrics"
)

const (
	// StreamKey is the Redis stream for event activity.
	StreamKey = "stream:event_activity"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 50000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 200 * time.Millisecond
)

// Publisher appends activities to the Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder

	inflight sync.WaitGroup
}

// NewPublisher creates a new activity publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "activity.publisher"),
		metrics: recorder,
	}
}

// Publish adds an activity to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, a Activity) (string, error) {
	if err := Validate(a); err != nil {
		return "", err
	}

	data, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("marshal activity: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true,
		ID:     "*",
		Values: map[string]interface{}{
			"kind":    string(a.Kind),
			"payload": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged and counted, never returned.
func (p *Publisher) PublishAsync(a Activity) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, a)
		if err != nil {
			p.logger.Warn("failed to publish activity",
				"kind", a.Kind,
				"event_id", a.EventID,
				"error", err,
			)
			p.metrics.IncActivityPublished("dropped")
			return
		}

		p.logger.Debug("activity published",
			"kind", a.Kind,
			"event_id", a.EventID,
			"stream_id", streamID,
		)
		p.metrics.IncActivityPublished("success")
	}()
}

// Drain waits for in-flight async publishes, giving up when ctx ends.
func (p *Publisher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		p.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
