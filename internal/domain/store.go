package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ListingStore reads listing snapshots and flips the sold flag on completed
// deals. The listing subsystem owns everything else about a listing.
type ListingStore interface {
	GetByID(ctx context.Context, id string) (Listing, error)
	MarkSold(ctx context.Context, id string, finalPrice float64) error
}

// PolicyStore persists per-seller agent policies.
type PolicyStore interface {
	GetBySeller(ctx context.Context, sellerID string) (SellerPolicy, error)
	Upsert(ctx context.Context, policy SellerPolicy) error
}

// NegotiationStore persists negotiation threads. UpdateStatusIfActive is the
// optimistic-concurrency primitive: it transitions status only while the row
// is still open (active or buyer-accepted) and reports whether the write won.
// ListActiveByItem surveys the same open set.
type NegotiationStore interface {
	GetByID(ctx context.Context, id string) (Negotiation, error)
	UpdateStatusIfActive(ctx context.Context, id string, status NegotiationStatus, finalPrice *float64) (bool, error)
	RecordCounter(ctx context.Context, id string, price float64) error
	ListActiveByItem(ctx context.Context, itemID string, excludeID string) ([]Negotiation, error)
}

// OfferStore persists immutable offers.
type OfferStore interface {
	Create(ctx context.Context, offer Offer) error
	ListByNegotiation(ctx context.Context, negotiationID string) ([]Offer, error)
}

// DecisionStore is the insert-only repository for the decision audit log.
// There are deliberately no update or delete methods: the append-only
// invariant is enforced structurally.
type DecisionStore interface {
	Insert(ctx context.Context, rec DecisionRecord) error
	ListByNegotiation(ctx context.Context, negotiationID string) ([]DecisionRecord, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]DecisionRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]DecisionRecord, error)
}

// TaskStore persists the decision backlog consumed by the batch sweep.
type TaskStore interface {
	Enqueue(ctx context.Context, task Task) error
	DequeuePending(ctx context.Context, limit int) ([]Task, error)
	MarkDone(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, reason string) error
}
