package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/chasef07/marketplace-sub002/internal/domain"
	"github.com/chasef07/marketplace-sub002/internal/execute"
	"github.com/chasef07/marketplace-sub002/internal/market"
	"github.com/chasef07/marketplace-sub002/internal/policy"
)

type memListingStore struct {
	listings map[string]domain.Listing
	sold     map[string]float64
}

func (m *memListingStore) GetByID(ctx context.Context, id string) (domain.Listing, error) {
	l, ok := m.listings[id]
	if !ok {
		return domain.Listing{}, domain.ErrNotFound
	}
	return l, nil
}

func (m *memListingStore) MarkSold(ctx context.Context, id string, finalPrice float64) error {
	m.sold[id] = finalPrice
	return nil
}

type memNegotiationStore struct {
	negotiations map[string]domain.Negotiation
	cancelled    []string
	counters     map[string]float64
}

func (m *memNegotiationStore) GetByID(ctx context.Context, id string) (domain.Negotiation, error) {
	n, ok := m.negotiations[id]
	if !ok {
		return domain.Negotiation{}, domain.ErrNotFound
	}
	return n, nil
}

func (m *memNegotiationStore) UpdateStatusIfActive(ctx context.Context, id string, status domain.NegotiationStatus, finalPrice *float64) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	n, ok := m.negotiations[id]
	if !ok || !negotiationOpen(n) {
		return false, nil
	}
	n.Status = status
	n.FinalPrice = finalPrice
	m.negotiations[id] = n
	if status == domain.NegotiationCancelled {
		m.cancelled = append(m.cancelled, id)
	}
	return true, nil
}

func (m *memNegotiationStore) RecordCounter(ctx context.Context, id string, price float64) error {
	n, ok := m.negotiations[id]
	if !ok {
		return domain.ErrNotFound
	}
	if n.IsTerminal() {
		return domain.ErrNotActive
	}
	m.counters[id] = price
	return nil
}

func (m *memNegotiationStore) ListActiveByItem(ctx context.Context, itemID, excludeID string) ([]domain.Negotiation, error) {
	var out []domain.Negotiation
	for _, n := range m.negotiations {
		if n.ItemID == itemID && n.ID != excludeID && negotiationOpen(n) {
			out = append(out, n)
		}
	}
	return out, nil
}

func negotiationOpen(n domain.Negotiation) bool {
	return n.Status == domain.NegotiationActive || n.Status == domain.NegotiationBuyerAccepted
}

type memOfferStore struct {
	byNegotiation map[string][]domain.Offer
}

func (m *memOfferStore) Create(ctx context.Context, offer domain.Offer) error {
	m.byNegotiation[offer.NegotiationID] = append(m.byNegotiation[offer.NegotiationID], offer)
	return nil
}

func (m *memOfferStore) ListByNegotiation(ctx context.Context, negotiationID string) ([]domain.Offer, error) {
	return m.byNegotiation[negotiationID], nil
}

type memPolicyStore struct {
	policies map[string]domain.SellerPolicy
	err      error
}

func (m *memPolicyStore) GetBySeller(ctx context.Context, sellerID string) (domain.SellerPolicy, error) {
	if m.err != nil {
		return domain.SellerPolicy{}, m.err
	}
	p, ok := m.policies[sellerID]
	if !ok {
		return domain.SellerPolicy{}, domain.ErrNotFound
	}
	return p, nil
}

func (m *memPolicyStore) Upsert(ctx context.Context, p domain.SellerPolicy) error {
	m.policies[p.SellerID] = p
	return nil
}

type memDecisionStore struct {
	records []domain.DecisionRecord
}

func (m *memDecisionStore) Insert(ctx context.Context, rec domain.DecisionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memDecisionStore) ListByNegotiation(ctx context.Context, negotiationID string) ([]domain.DecisionRecord, error) {
	return nil, nil
}

func (m *memDecisionStore) ListRecent(ctx context.Context, opts domain.ListOpts) ([]domain.DecisionRecord, error) {
	return nil, nil
}

func (m *memDecisionStore) ListBefore(ctx context.Context, before time.Time) ([]domain.DecisionRecord, error) {
	return nil, nil
}

type memDeadlineStore struct {
	deadlines map[string]time.Time
}

func (m *memDeadlineStore) SetDeadline(ctx context.Context, id string, deadline time.Time) error {
	m.deadlines[id] = deadline
	return nil
}

func (m *memDeadlineStore) GetDeadline(ctx context.Context, id string) (time.Time, error) {
	d, ok := m.deadlines[id]
	if !ok {
		return time.Time{}, domain.ErrNotFound
	}
	return d, nil
}

func (m *memDeadlineStore) ClearDeadline(ctx context.Context, id string) error {
	delete(m.deadlines, id)
	return nil
}

func (m *memDeadlineStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	var out []string
	for id, d := range m.deadlines {
		if !d.After(now) {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeLockManager struct {
	err  error
	keys []string
}

func (f *fakeLockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	if f.err != nil {
		return nil, f.err
	}
	f.keys = append(f.keys, key)
	return func() {}, nil
}

type publishedEvent struct {
	channel string
	payload []byte
}

type fakeBus struct {
	events  []publishedEvent
	streams []map[string]any
}

func (f *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	f.events = append(f.events, publishedEvent{channel: channel, payload: payload})
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (f *fakeBus) PublishStream(ctx context.Context, stream string, fields map[string]any) error {
	f.streams = append(f.streams, fields)
	return nil
}

type pipelineFixture struct {
	listings     *memListingStore
	negotiations *memNegotiationStore
	offers       *memOfferStore
	policies     *memPolicyStore
	decisions    *memDecisionStore
	deadlines    *memDeadlineStore
	locks        *fakeLockManager
	bus          *fakeBus
	processor    *Processor
}

func newPipelineFixture() *pipelineFixture {
	return newPipelineFixtureOpts(ProcessorOpts{})
}

func newPipelineFixtureOpts(opts ProcessorOpts) *pipelineFixture {
	f := &pipelineFixture{
		listings:     &memListingStore{listings: map[string]domain.Listing{}, sold: map[string]float64{}},
		negotiations: &memNegotiationStore{negotiations: map[string]domain.Negotiation{}, counters: map[string]float64{}},
		offers:       &memOfferStore{byNegotiation: map[string][]domain.Offer{}},
		policies:     &memPolicyStore{policies: map[string]domain.SellerPolicy{}},
		decisions:    &memDecisionStore{},
		deadlines:    &memDeadlineStore{deadlines: map[string]time.Time{}},
		locks:        &fakeLockManager{},
		bus:          &fakeBus{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gatherer := market.NewGatherer(f.listings, f.negotiations, f.offers, logger)
	engine := policy.NewEngine(logger)
	executor := execute.NewExecutor(f.negotiations, f.offers, f.listings, f.decisions, f.deadlines, nil, logger)
	f.processor = NewProcessor(gatherer, engine, executor, f.locks, f.listings, f.policies, f.bus,
		opts, logger)
	return f
}

func (f *pipelineFixture) seedListing(l domain.Listing) {
	f.listings.listings[l.ID] = l
}

func (f *pipelineFixture) seedNegotiation(n domain.Negotiation) {
	f.negotiations.negotiations[n.ID] = n
}

func pipelineTask() domain.Task {
	return domain.Task{
		ID:            "task-1",
		NegotiationID: "neg-1",
		OfferID:       "offer-1",
		SellerID:      "seller-1",
		ItemID:        "item-1",
		ListingPrice:  1000,
		OfferPrice:    900,
		FurnitureType: domain.FurnitureCouch,
	}
}

func TestProcessAcceptsStrongOfferOnFreshListing(t *testing.T) {
	f := newPipelineFixture()
	f.seedListing(domain.Listing{
		ID:            "item-1",
		SellerID:      "seller-1",
		FurnitureType: domain.FurnitureCouch,
		Condition:     "excellent",
		StartingPrice: 1000,
		ViewCount:     8,
		AgentEnabled:  true,
		Available:     true,
		CreatedAt:     time.Now().UTC().Add(-2 * 24 * time.Hour),
	})
	f.seedNegotiation(domain.Negotiation{
		ID: "neg-1", ItemID: "item-1", SellerID: "seller-1",
		Status: domain.NegotiationActive, RoundNumber: 1,
	})
	f.policies.policies["seller-1"] = domain.DefaultPolicy("seller-1")

	res := f.processor.Process(context.Background(), pipelineTask())

	require.True(t, res.Success)
	require.Equal(t, domain.DecisionAccept, res.Decision)
	require.Equal(t, execute.ActionAccept, res.ActionResult.Action)
	require.InDelta(t, 900, res.ActionResult.Price, 1e-9)

	require.InDelta(t, 900, f.listings.sold["item-1"], 1e-9)
	require.Equal(t, domain.NegotiationCompleted, f.negotiations.negotiations["neg-1"].Status)

	require.Len(t, f.decisions.records, 1)
	rec := f.decisions.records[0]
	require.Equal(t, domain.DecisionAccept, rec.Decision)
	require.InDelta(t, 900, rec.ExecutedPrice, 1e-9)
	require.NotEmpty(t, rec.MarketConditions)
	require.Equal(t, []string{"negotiation:neg-1"}, f.locks.keys)
}

func TestProcessDeclinesLowOfferOnStaleListing(t *testing.T) {
	f := newPipelineFixture()
	f.seedListing(domain.Listing{
		ID:            "item-1",
		SellerID:      "seller-1",
		FurnitureType: domain.FurnitureCouch,
		Condition:     "good",
		StartingPrice: 1000,
		ViewCount:     2,
		AgentEnabled:  true,
		Available:     true,
		CreatedAt:     time.Now().UTC().Add(-40 * 24 * time.Hour),
	})
	f.seedNegotiation(domain.Negotiation{
		ID: "neg-1", ItemID: "item-1", SellerID: "seller-1",
		Status: domain.NegotiationActive,
	})
	f.policies.policies["seller-1"] = domain.DefaultPolicy("seller-1")

	task := pipelineTask()
	task.OfferPrice = 500
	res := f.processor.Process(context.Background(), task)

	require.True(t, res.Success)
	require.Equal(t, domain.DecisionReject, res.Decision)
	require.Equal(t, execute.ActionDecline, res.ActionResult.Action)
	require.Equal(t, domain.NegotiationCancelled, f.negotiations.negotiations["neg-1"].Status)
	require.Len(t, f.decisions.records, 1)
}

func TestProcessAcceptCancelsBuyerAcceptedRival(t *testing.T) {
	f := newPipelineFixture()
	f.seedListing(domain.Listing{
		ID:            "item-1",
		SellerID:      "seller-1",
		FurnitureType: domain.FurnitureCouch,
		Condition:     "excellent",
		StartingPrice: 1000,
		ViewCount:     8,
		AgentEnabled:  true,
		Available:     true,
		CreatedAt:     time.Now().UTC().Add(-2 * 24 * time.Hour),
	})
	f.seedNegotiation(domain.Negotiation{
		ID: "neg-1", ItemID: "item-1", SellerID: "seller-1",
		Status: domain.NegotiationActive, RoundNumber: 1,
	})
	// A rival whose buyer already accepted still competes for the item and
	// must be retired when another deal closes.
	f.seedNegotiation(domain.Negotiation{
		ID: "rival-1", ItemID: "item-1", SellerID: "seller-1",
		Status: domain.NegotiationBuyerAccepted, CurrentOffer: 480,
	})
	f.policies.policies["seller-1"] = domain.DefaultPolicy("seller-1")

	task := pipelineTask()
	task.OfferPrice = 1000 // meets asking, auto-accept
	res := f.processor.Process(context.Background(), task)

	require.True(t, res.Success)
	require.Equal(t, domain.DecisionAccept, res.Decision)
	require.Contains(t, f.negotiations.cancelled, "rival-1")
	require.Equal(t, domain.NegotiationCancelled, f.negotiations.negotiations["rival-1"].Status)
}

func TestProcessTimedOutDecisionStillAudited(t *testing.T) {
	f := newPipelineFixtureOpts(ProcessorOpts{DecisionTimeout: time.Nanosecond})
	f.seedListing(domain.Listing{
		ID:            "item-1",
		SellerID:      "seller-1",
		FurnitureType: domain.FurnitureCouch,
		Condition:     "excellent",
		StartingPrice: 1000,
		ViewCount:     8,
		AgentEnabled:  true,
		Available:     true,
		CreatedAt:     time.Now().UTC().Add(-2 * 24 * time.Hour),
	})
	f.seedNegotiation(domain.Negotiation{
		ID: "neg-1", ItemID: "item-1", SellerID: "seller-1",
		Status: domain.NegotiationActive, RoundNumber: 1,
	})
	f.policies.policies["seller-1"] = domain.DefaultPolicy("seller-1")

	task := pipelineTask()
	task.OfferPrice = 1000
	res := f.processor.Process(context.Background(), task)

	// The action write fails on the expired budget, but the attempt is still
	// recorded with the failure attached.
	require.False(t, res.Success)
	require.NotEmpty(t, res.ActionResult.Error)
	require.Len(t, f.decisions.records, 1)
	rec := f.decisions.records[0]
	require.Equal(t, domain.DecisionAccept, rec.Decision)
	require.Contains(t, rec.Error, "context deadline exceeded")
}

func TestProcessCountersWhenSellerCanAffordPatience(t *testing.T) {
	f := newPipelineFixture()
	f.seedListing(domain.Listing{
		ID:            "item-1",
		SellerID:      "seller-1",
		FurnitureType: domain.FurnitureCouch,
		Condition:     "excellent",
		StartingPrice: 1000,
		ViewCount:     12,
		AgentEnabled:  true,
		Available:     true,
		CreatedAt:     time.Now().UTC().Add(-24 * time.Hour),
	})
	f.seedNegotiation(domain.Negotiation{
		ID: "neg-1", ItemID: "item-1", SellerID: "seller-1",
		Status: domain.NegotiationActive, RoundNumber: 1, MaxRounds: 8,
	})
	f.policies.policies["seller-1"] = domain.DefaultPolicy("seller-1")

	// Hot fresh listing drives urgency low, so the borderline accept at 800
	// upgrades to a conservative counter at the offer/asking midpoint.
	task := pipelineTask()
	task.OfferPrice = 800
	res := f.processor.Process(context.Background(), task)

	require.True(t, res.Success)
	require.Equal(t, domain.DecisionCounter, res.Decision)
	require.Equal(t, execute.ActionCounter, res.ActionResult.Action)
	require.InDelta(t, 900, res.ActionResult.Price, 1e-9)
	require.InDelta(t, 900, f.negotiations.counters["neg-1"], 1e-9)

	offers := f.offers.byNegotiation["neg-1"]
	require.Len(t, offers, 1)
	require.True(t, offers[0].IsCounter)
	require.True(t, offers[0].AgentGenerated)
	require.Equal(t, 2, offers[0].RoundNumber)
}

func TestProcessRejectsIncompleteTask(t *testing.T) {
	f := newPipelineFixture()

	task := pipelineTask()
	task.SellerID = ""
	res := f.processor.Process(context.Background(), task)
	require.False(t, res.Success)
	require.Equal(t, domain.DecisionError, res.Decision)

	task = pipelineTask()
	task.OfferPrice = 0
	res = f.processor.Process(context.Background(), task)
	require.False(t, res.Success)
	require.Equal(t, domain.DecisionError, res.Decision)

	// Nothing reached the stores.
	require.Empty(t, f.decisions.records)
}

func TestProcessLockContention(t *testing.T) {
	f := newPipelineFixture()
	f.locks.err = errors.New("lock held")

	res := f.processor.Process(context.Background(), pipelineTask())
	require.False(t, res.Success)
	require.Equal(t, domain.DecisionError, res.Decision)
	require.Contains(t, res.Reasoning, "already in progress")
}

func TestProcessDisabledListing(t *testing.T) {
	f := newPipelineFixture()
	f.seedListing(domain.Listing{
		ID: "item-1", AgentEnabled: false, Available: true, StartingPrice: 1000,
	})

	res := f.processor.Process(context.Background(), pipelineTask())
	require.True(t, res.Success)
	require.Equal(t, domain.DecisionDisabled, res.Decision)
	require.Empty(t, f.decisions.records)
}

func TestProcessDisabledSeller(t *testing.T) {
	f := newPipelineFixture()
	f.seedListing(domain.Listing{
		ID: "item-1", AgentEnabled: true, Available: true,
		FurnitureType: domain.FurnitureCouch, Condition: "good", StartingPrice: 1000,
		CreatedAt: time.Now().UTC(),
	})
	p := domain.DefaultPolicy("seller-1")
	p.Enabled = false
	f.policies.policies["seller-1"] = p

	res := f.processor.Process(context.Background(), pipelineTask())
	require.True(t, res.Success)
	require.Equal(t, domain.DecisionDisabled, res.Decision)
}

func TestProcessUnavailableListing(t *testing.T) {
	f := newPipelineFixture()
	f.seedListing(domain.Listing{ID: "item-1", AgentEnabled: true, Available: false, StartingPrice: 1000})

	res := f.processor.Process(context.Background(), pipelineTask())
	require.False(t, res.Success)
	require.Equal(t, domain.DecisionError, res.Decision)
}

func TestProcessMissingPolicyUsesDefaults(t *testing.T) {
	f := newPipelineFixture()
	f.seedListing(domain.Listing{
		ID: "item-1", AgentEnabled: true, Available: true,
		FurnitureType: domain.FurnitureCouch, Condition: "excellent", StartingPrice: 1000,
		ViewCount: 12, CreatedAt: time.Now().UTC().Add(-24 * time.Hour),
	})
	f.seedNegotiation(domain.Negotiation{
		ID: "neg-1", ItemID: "item-1", Status: domain.NegotiationActive,
	})

	// No policy row for seller-1: the default 95% auto-accept threshold applies.
	task := pipelineTask()
	task.OfferPrice = 980
	res := f.processor.Process(context.Background(), task)

	require.True(t, res.Success)
	require.Equal(t, domain.DecisionAccept, res.Decision)
	require.InDelta(t, 980, res.ActionResult.Price, 1e-9)
}

func TestProcessPublishesDecisionEvents(t *testing.T) {
	f := newPipelineFixture()
	f.seedListing(domain.Listing{
		ID: "item-1", AgentEnabled: true, Available: true,
		FurnitureType: domain.FurnitureCouch, Condition: "excellent", StartingPrice: 1000,
		ViewCount: 12, CreatedAt: time.Now().UTC().Add(-24 * time.Hour),
	})
	f.seedNegotiation(domain.Negotiation{
		ID: "neg-1", ItemID: "item-1", Status: domain.NegotiationActive,
	})

	task := pipelineTask()
	task.OfferPrice = 1000 // meets asking, auto-accept
	res := f.processor.Process(context.Background(), task)
	require.True(t, res.Success)

	require.Len(t, f.bus.events, 1)
	require.Equal(t, "agent:decisions", f.bus.events[0].channel)

	var event struct {
		NegotiationID string                `json:"negotiationId"`
		Result        domain.DecisionResult `json:"result"`
	}
	require.NoError(t, json.Unmarshal(f.bus.events[0].payload, &event))
	require.Equal(t, "neg-1", event.NegotiationID)
	require.Equal(t, domain.DecisionAccept, event.Result.Decision)

	require.Len(t, f.bus.streams, 1)
	require.Equal(t, "neg-1", f.bus.streams[0]["negotiation_id"])
}
