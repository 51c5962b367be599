package domain

import "time"

// DecisionType is the verdict emitted by the decision policy. The string
// values are part of the result contract rendered by dashboards and
// notification lists and must not change.
type DecisionType string

const (
	DecisionAccept   DecisionType = "accept"
	DecisionCounter  DecisionType = "counter"
	DecisionReject   DecisionType = "reject"
	DecisionWait     DecisionType = "wait"
	DecisionError    DecisionType = "error"
	DecisionDisabled DecisionType = "disabled"
)

// TaskStatus tracks a queued decision task through the backlog sweep.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskDone       TaskStatus = "done"
	TaskFailed     TaskStatus = "failed"
)

// Task is the inbound trigger descriptor delivered by the listing/offer
// subsystem, either synchronously on offer creation or pulled from the
// backlog by the periodic sweep.
type Task struct {
	ID                 string        `json:"id,omitempty"`
	NegotiationID      string        `json:"negotiationId"`
	OfferID            string        `json:"offerId"`
	SellerID           string        `json:"sellerId"`
	ItemID             string        `json:"itemId"`
	ListingPrice       float64       `json:"listingPrice"`
	OfferPrice         float64       `json:"offerPrice"`
	FurnitureType      FurnitureType `json:"furnitureType"`
	MinAcceptableRatio float64       `json:"minAcceptableRatio,omitempty"` // 0 = use seller policy
	Status             TaskStatus    `json:"-"`
	Error              string        `json:"-"`
	CreatedAt          time.Time     `json:"-"`
	ProcessedAt        *time.Time    `json:"-"`
}

// ActionResult reports the outcome of the state mutation applied for a
// decision.
type ActionResult struct {
	Success  bool       `json:"success"`
	Action   string     `json:"action"`
	Price    float64    `json:"price,omitempty"`
	Deadline *time.Time `json:"deadline,omitempty"` // set for wait verdicts
	Error    string     `json:"error,omitempty"`
}

// ToolResult is one step of the reasoning shell's typed trace.
type ToolResult struct {
	Step       int    `json:"step"`
	Tool       string `json:"tool"`
	Input      any    `json:"input,omitempty"`
	Output     any    `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"durationMs"`
}

// DecisionResult is the contract returned to the synchronous caller and
// rendered directly by dashboards and notification lists. Field names are
// preserved exactly for compatibility with those consumers.
type DecisionResult struct {
	Success         bool         `json:"success"`
	Decision        DecisionType `json:"decision"`
	Reasoning       string       `json:"reasoning"`
	ActionResult    ActionResult `json:"actionResult"`
	ExecutionTimeMs int64        `json:"executionTimeMs"`
	ToolResults     []ToolResult `json:"toolResults"`
}

// DecisionRecord is one append-only audit entry: the sole source of truth
// for why the agent did what it did. Records are write-once and never
// updated or deleted.
type DecisionRecord struct {
	ID               string
	NegotiationID    string
	ItemID           string
	SellerID         string
	Decision         DecisionType
	OfferPrice       float64
	RecommendedPrice float64
	ExecutedPrice    float64
	Confidence       float64
	Reasoning        string
	MarketConditions []byte // serialized MarketContext plus tool trace
	Error            string
	ExecutionTimeMs  int64
	CreatedAt        time.Time
}
