package domain

import "time"

// FurnitureType categorizes a listing. Categories drive the value-retention
// multipliers used by the market analysis routine.
type FurnitureType string

const (
	FurnitureCouch       FurnitureType = "couch"
	FurnitureDiningTable FurnitureType = "dining_table"
	FurnitureBookshelf   FurnitureType = "bookshelf"
	FurnitureChair       FurnitureType = "chair"
	FurnitureDesk        FurnitureType = "desk"
	FurnitureDresser     FurnitureType = "dresser"
	FurnitureOther       FurnitureType = "other"
)

// Listing is a read-only snapshot of an item at decision time. It is owned by
// the listing subsystem; the agent only reads it and, on a completed deal,
// marks it sold through the narrow store interface.
type Listing struct {
	ID            string
	SellerID      string
	Name          string
	FurnitureType FurnitureType
	Condition     string // excellent, good, fair, poor
	StartingPrice float64
	ViewCount     int
	AgentEnabled  bool
	Available     bool
	CreatedAt     time.Time
}
