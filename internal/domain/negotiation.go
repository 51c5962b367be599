package domain

import "time"

// NegotiationStatus tracks the negotiation lifecycle. Transitions are
// monotonic: a cancelled or completed negotiation never becomes active again.
type NegotiationStatus string

const (
	NegotiationActive        NegotiationStatus = "active"
	NegotiationBuyerAccepted NegotiationStatus = "buyer_accepted"
	NegotiationCompleted     NegotiationStatus = "completed"
	NegotiationCancelled     NegotiationStatus = "cancelled"
)

// Negotiation is the bargaining thread between one buyer and one seller over
// one listing. At most one negotiation may be active per (item, buyer) pair.
type Negotiation struct {
	ID           string
	ItemID       string
	SellerID     string
	BuyerID      string
	Status       NegotiationStatus
	CurrentOffer float64
	RoundNumber  int
	MaxRounds    int
	FinalPrice   *float64 // set only on completion
	CreatedAt    time.Time
	UpdatedAt    time.Time
	CompletedAt  *time.Time
}

// IsTerminal reports whether no further offers may be recorded.
func (n Negotiation) IsTerminal() bool {
	return n.Status == NegotiationCompleted || n.Status == NegotiationCancelled
}
