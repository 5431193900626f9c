// Package queue publishes outbound service events. The production
// implementation writes to Redis Streams; a mock implementation backs
// tests and environments without Redis.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/causeway-service/causeway_service/pkg/logger"
)

// Publisher delivers a message to a named stream.
type Publisher interface {
	Publish(ctx context.Context, stream string, message interface{}) error
}

// StreamPublisher publishes JSON-encoded messages to Redis Streams.
// Publishes run through a circuit breaker so a Redis outage degrades to
// fast failures instead of piling up blocked callers.
type StreamPublisher struct {
	client  *redis.Client
	breaker *gobreaker.CircuitBreaker
	maxLen  int64
	logger  *logger.Logger
}

// NewStreamPublisher creates a Redis Streams publisher. Streams are
// capped at maxLen entries (approximate trimming); zero means uncapped.
func NewStreamPublisher(client *redis.Client, maxLen int64, log *logger.Logger) *StreamPublisher {
	settings := gobreaker.Settings{
		Name:        "stream-publisher",
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}
	return &StreamPublisher{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		maxLen:  maxLen,
		logger:  log,
	}
}

// Publish appends the message to the stream as a single JSON payload
// field.
func (p *StreamPublisher) Publish(ctx context.Context, stream string, message interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	_, err = p.breaker.Execute(func() (interface{}, error) {
		args := &redis.XAddArgs{
			Stream: stream,
			Values: map[string]interface{}{"payload": payload},
		}
		if p.maxLen > 0 {
			args.MaxLen = p.maxLen
			args.Approx = true
		}
		return p.client.XAdd(ctx, args).Result()
	})
	if err != nil {
		p.logger.Error("Failed to publish to stream",
			"stream", stream,
			"error", err)
		return fmt.Errorf("publish to stream %s: %w", stream, err)
	}
	return nil
}

// PublishedMessage is a message captured by the mock publisher.
type PublishedMessage struct {
	Stream  string
	Message interface{}
}

// MockPublisher records published messages in memory. Safe for
// concurrent use.
type MockPublisher struct {
	mu       sync.Mutex
	messages []PublishedMessage
	failWith error
}

// NewMockPublisher creates an in-memory publisher for tests and
// Redis-less environments.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// Publish records the message, or returns the configured failure.
func (m *MockPublisher) Publish(_ context.Context, stream string, message interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return m.failWith
	}
	m.messages = append(m.messages, PublishedMessage{Stream: stream, Message: message})
	return nil
}

// Messages returns a copy of everything published so far.
func (m *MockPublisher) Messages() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PublishedMessage, len(m.messages))
	copy(out, m.messages)
	return out
}

// FailWith makes subsequent publishes return err; nil restores success.
func (m *MockPublisher) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWith = err
}
