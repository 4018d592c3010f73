package idempotency

import (
	"context"
	"time"
)

type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// Record is the stored state of one idempotency key.
type Record struct {
	Key       string    `json:"key"`
	Status    Status    `json:"status"`
	Result    string    `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists idempotency records with a TTL.
type Store interface {
	// Reserve creates an in-progress record for key if none exists.
	// When the key is already known it returns the existing record and false.
	Reserve(ctx context.Context, key string) (*Record, bool, error)
	// Complete stores the result for a reserved key.
	Complete(ctx context.Context, key, result string) error
	// Release forgets a key so the request can be retried.
	Release(ctx context.Context, key string) error
}

type Config struct {
	TTL    time.Duration `env:"IDEMPOTENCY_TTL" envDefault:"24h"`
	Prefix string        `env:"IDEMPOTENCY_PREFIX" envDefault:"idem:"`
}
