package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Enqueuer accepts work for asynchronous execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

// Config controls the worker pool and retry policy.
type Config struct {
	Workers    int
	RetryLimit int
	RetryDelay time.Duration
}

// Message is the envelope stored in Redis.
type Message struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	LastError  string          `json:"last_error,omitempty"`
}

// ErrPermanent marks a job failure that must not be retried.
var ErrPermanent = errors.New("queue: permanent failure")

// Permanent wraps err so the queue dead-letters the message immediately.
func Permanent(err error) error {
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// Decode unmarshals a job payload into T.
func Decode[T any](payload json.RawMessage) (T, error) {
	var out T
	if len(payload) == 0 {
		return out, Permanent(errors.New("empty payload"))
	}
	if err := json.Unmarshal(payload, &out); err != nil {
		return out, Permanent(fmt.Errorf("decode payload: %w", err))
	}
	return out, nil
}
