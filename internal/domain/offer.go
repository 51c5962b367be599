package domain

import "time"

// OfferSide indicates which party made an offer.
type OfferSide string

const (
	OfferSideBuyer  OfferSide = "buyer"
	OfferSideSeller OfferSide = "seller"
)

// Offer is a single immutable bid within a negotiation. Offers are never
// updated once written; they are ordered by creation time.
type Offer struct {
	ID             string
	NegotiationID  string
	Side           OfferSide
	Price          float64
	Message        string
	RoundNumber    int
	IsCounter      bool // false for the opening offer
	AgentGenerated bool
	CreatedAt      time.Time
}
