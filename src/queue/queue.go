// Package queue moves work between the request path and the workers. Tasks
// are at-least-once: a handler may see the same task again after a crash.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrEmpty     = errors.New("queue: nothing due")
	ErrLeaseLost = errors.New("queue: lease expired or taken over")
)

type Task struct {
	ID          string         `json:"id,omitempty"`
	TenantID    uuid.UUID      `json:"tenant_id"`
	Kind        string         `json:"kind"`
	Reference   string         `json:"reference,omitempty"`
	Payload     map[string]any `json:"payload,omitempty"`
	MaxAttempts int            `json:"max_attempts,omitempty"`
}

// Lease is a claimed task. Attempt counts this delivery.
type Lease struct {
	Task    Task
	Attempt int
	Token   string
	Until   time.Time
}

type Queue interface {
	Enqueue(ctx context.Context, task Task) (string, error)
	Dequeue(ctx context.Context, lease time.Duration) (*Lease, error)
	Ack(ctx context.Context, l *Lease) error
	Fail(ctx context.Context, l *Lease, cause error) error
}

// Backoff grows the retry delay as base * 2^(attempt-1) up to Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := b.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if b.Max > 0 && d >= b.Max {
			return b.Max
		}
	}
	if b.Max > 0 && d > b.Max {
		return b.Max
	}
	return d
}

// Str reads a string field from a task payload.
func (t Task) Str(key string) string {
	if v, ok := t.Payload[key].(string); ok {
		return v
	}
	return ""
}
