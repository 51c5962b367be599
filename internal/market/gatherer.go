// Package market builds the per-decision market context bundle: listing
// timing, competing offers, and negotiation history. The three facets are
// independent read-only queries issued in parallel; a failed facet degrades
// to its unknown sentinel so that missing enrichment data never blocks a
// decision.
package market

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// Thresholds from the context classification rules.
const (
	highActivityViews   = 10
	mediumActivityViews = 5
	freshDays           = 7
	activeDays          = 21
	highCompetition     = 3
	recentRivalWindow   = 48 * time.Hour
	openingRounds       = 1
	middleRounds        = 3
)

// defaultFacetTimeout bounds each sub-query individually so one slow store
// call cannot stall the other facets.
const defaultFacetTimeout = 2 * time.Second

// Gatherer computes a fresh MarketContext for every decision. Context is
// never cached across calls.
type Gatherer struct {
	listings     domain.ListingStore
	negotiations domain.NegotiationStore
	offers       domain.OfferStore
	facetTimeout time.Duration
	now          func() time.Time
	logger       *slog.Logger
}

// NewGatherer creates a Gatherer with the default per-facet timeout.
func NewGatherer(
	listings domain.ListingStore,
	negotiations domain.NegotiationStore,
	offers domain.OfferStore,
	logger *slog.Logger,
) *Gatherer {
	return &Gatherer{
		listings:     listings,
		negotiations: negotiations,
		offers:       offers,
		facetTimeout: defaultFacetTimeout,
		now:          time.Now,
		logger:       logger.With(slog.String("component", "market_gatherer")),
	}
}

// SetFacetTimeout overrides the per-facet timeout. Must be called before
// Gather.
func (g *Gatherer) SetFacetTimeout(d time.Duration) {
	if d > 0 {
		g.facetTimeout = d
	}
}

// Gather runs all three facet queries concurrently and returns the bundle.
// It never returns an error: each facet reports its own failure through its
// Err field and unknown sentinels.
func (g *Gatherer) Gather(ctx context.Context, itemID, negotiationID string) domain.MarketContext {
	bundle := domain.MarketContext{GatheredAt: g.now().UTC()}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		bundle.Timing = g.listingTiming(ctx, itemID)
		return nil
	})
	eg.Go(func() error {
		bundle.Competition = g.competition(ctx, itemID, negotiationID)
		return nil
	})
	eg.Go(func() error {
		bundle.History = g.history(ctx, negotiationID)
		return nil
	})
	_ = eg.Wait()

	return bundle
}

// listingTiming classifies how long the item has been listed and how much
// attention it is getting.
func (g *Gatherer) listingTiming(ctx context.Context, itemID string) domain.ListingTiming {
	ctx, cancel := context.WithTimeout(ctx, g.facetTimeout)
	defer cancel()

	listing, err := g.listings.GetByID(ctx, itemID)
	if err != nil {
		g.logger.WarnContext(ctx, "listing timing facet degraded",
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
		return domain.ListingTiming{
			ActivityLevel: domain.ActivityUnknown,
			MarketStatus:  domain.MarketUnknown,
			Err:           err.Error(),
		}
	}

	days := int(g.now().Sub(listing.CreatedAt).Hours() / 24)
	if days < 0 {
		days = 0
	}

	t := domain.ListingTiming{
		DaysOnMarket: days,
		ViewCount:    listing.ViewCount,
	}

	switch {
	case listing.ViewCount > highActivityViews:
		t.ActivityLevel = domain.ActivityHigh
	case listing.ViewCount > mediumActivityViews:
		t.ActivityLevel = domain.ActivityMedium
	default:
		t.ActivityLevel = domain.ActivityLow
	}

	switch {
	case days <= freshDays:
		t.MarketStatus = domain.MarketFresh
	case days <= activeDays:
		t.MarketStatus = domain.MarketActive
	default:
		t.MarketStatus = domain.MarketStale
	}

	return t
}

// competition surveys other live negotiations on the same item, excluding
// the one currently being decided. Each rival contributes its standing
// highest buyer offer.
func (g *Gatherer) competition(ctx context.Context, itemID, excludeNegotiationID string) domain.Competition {
	ctx, cancel := context.WithTimeout(ctx, g.facetTimeout)
	defer cancel()

	rivals, err := g.negotiations.ListActiveByItem(ctx, itemID, excludeNegotiationID)
	if err != nil {
		g.logger.WarnContext(ctx, "competition facet degraded",
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
		return domain.Competition{Level: domain.CompetitionUnknown, Err: err.Error()}
	}

	c := domain.Competition{Level: domain.CompetitionNone}
	now := g.now().UTC()

	for _, rival := range rivals {
		best := g.highestBuyerOffer(ctx, rival)
		if best <= 0 {
			continue
		}
		c.Count++
		if best > c.HighestPrice {
			c.HighestPrice = best
		}
		if now.Sub(rival.CreatedAt) <= recentRivalWindow {
			c.RecentActivity = true
		}
	}

	switch {
	case c.Count >= highCompetition:
		c.Level = domain.CompetitionHigh
	case c.Count >= 1:
		c.Level = domain.CompetitionMedium
	}

	return c
}

// highestBuyerOffer returns the best buyer-side price on a rival
// negotiation, falling back to the standing current offer when the offer
// list cannot be read.
func (g *Gatherer) highestBuyerOffer(ctx context.Context, rival domain.Negotiation) float64 {
	offers, err := g.offers.ListByNegotiation(ctx, rival.ID)
	if err != nil {
		return rival.CurrentOffer
	}
	var best float64
	for _, o := range offers {
		if o.Side == domain.OfferSideBuyer && o.Price > best {
			best = o.Price
		}
	}
	if best == 0 {
		return rival.CurrentOffer
	}
	return best
}

// history reconstructs the negotiation's price progression and derives
// momentum and stage. Rounds are paired from actual buyer/seller price
// offers rather than the raw insert counter, so message-only rows cannot
// skew turn parity.
func (g *Gatherer) history(ctx context.Context, negotiationID string) domain.History {
	ctx, cancel := context.WithTimeout(ctx, g.facetTimeout)
	defer cancel()

	offers, err := g.offers.ListByNegotiation(ctx, negotiationID)
	if err != nil {
		g.logger.WarnContext(ctx, "history facet degraded",
			slog.String("negotiation_id", negotiationID),
			slog.String("error", err.Error()),
		)
		return domain.History{
			BuyerMomentum: domain.MomentumUnknown,
			Stage:         domain.StageUnknown,
			Err:           err.Error(),
		}
	}

	h := domain.History{PriceProgression: make([]float64, 0, len(offers))}

	var buyerPrices []float64
	for _, o := range offers {
		if o.Price <= 0 {
			continue // message-only rows carry no price signal
		}
		h.PriceProgression = append(h.PriceProgression, o.Price)
		switch o.Side {
		case domain.OfferSideBuyer:
			buyerPrices = append(buyerPrices, o.Price)
		case domain.OfferSideSeller:
			h.SellerOfferCount++
		}
	}
	h.BuyerOfferCount = len(buyerPrices)

	// A round is one buyer offer answered by one seller offer.
	h.Rounds = h.SellerOfferCount
	if h.BuyerOfferCount > h.SellerOfferCount {
		h.Rounds = h.BuyerOfferCount
	}

	var sum float64
	for _, p := range buyerPrices {
		sum += p
		if p > h.HighestBuyerOffer {
			h.HighestBuyerOffer = p
		}
	}
	if len(buyerPrices) > 0 {
		h.AverageBuyerOffer = sum / float64(len(buyerPrices))
	}

	switch {
	case len(buyerPrices) < 2:
		h.BuyerMomentum = domain.MomentumNew
	case buyerPrices[len(buyerPrices)-1] > buyerPrices[len(buyerPrices)-2]:
		h.BuyerMomentum = domain.MomentumIncreasing
	case buyerPrices[len(buyerPrices)-1] < buyerPrices[len(buyerPrices)-2]:
		h.BuyerMomentum = domain.MomentumDecreasing
	default:
		h.BuyerMomentum = domain.MomentumStagnant
	}

	switch {
	case h.Rounds <= openingRounds:
		h.Stage = domain.StageOpening
	case h.Rounds <= middleRounds:
		h.Stage = domain.StageMiddle
	default:
		h.Stage = domain.StageClosing
	}

	return h
}
