package domain

import (
	"context"
	"io"
	"time"
)

// LockManager provides distributed locking. The decision pipeline takes a
// per-negotiation lock so that decisions for the same negotiation never
// overlap; decisions for different negotiations run fully in parallel.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// RateLimiter provides distributed rate limiting for the HTTP API.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// DeadlineStore schedules auction-mode decision deadlines for wait verdicts.
// ListExpired surfaces passed deadlines to the sweep for re-decision.
type DeadlineStore interface {
	SetDeadline(ctx context.Context, negotiationID string, deadline time.Time) error
	GetDeadline(ctx context.Context, negotiationID string) (time.Time, error)
	ClearDeadline(ctx context.Context, negotiationID string) error
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
}

// DecisionBus publishes decision events to downstream consumers (dashboards,
// notification lists) and supports subscribing to them.
type DecisionBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	PublishStream(ctx context.Context, stream string, fields map[string]any) error
}

// BlobWriter uploads a blob to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, body io.Reader, contentType string) error
}

// BlobInfo describes one stored object.
type BlobInfo struct {
	Path         string    `json:"path"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"contentType,omitempty"`
	LastModified time.Time `json:"lastModified"`
}

// BlobReader reads archived blobs back out of object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}

// Archiver ages old decision records out of the primary store into object
// storage. Deletion from the primary store is a separate explicit step run
// only after the archive is verified.
type Archiver interface {
	ArchiveDecisions(ctx context.Context, before time.Time) (int64, error)
}
