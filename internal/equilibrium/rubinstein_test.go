package equilibrium

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

func TestComputeRejectsBadPrices(t *testing.T) {
	_, err := Compute(Input{SellerTarget: 0, BuyerOffer: 100})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = Compute(Input{SellerTarget: 100, BuyerOffer: 0})
	require.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestComputeNoSurplusAccepts(t *testing.T) {
	// Ceiling at the offer leaves nothing to bargain over.
	res, err := Compute(Input{
		SellerTarget:      1000,
		BuyerOffer:        950,
		EstimatedBuyerMax: 950,
		MarketValue:       950,
		Round:             1,
		Urgency:           0.5,
	})
	require.NoError(t, err)
	require.InDelta(t, 950, res.NashPrice, 1e-9)
	require.Equal(t, RecommendAccept, res.Recommendation)
	require.InDelta(t, -50, res.ExpectedProfit, 1e-9)
	require.InDelta(t, -0.05, res.ProfitMargin, 1e-9)
}

func TestComputeCeilingBelowOfferIsRaised(t *testing.T) {
	res, err := Compute(Input{
		SellerTarget:      1000,
		BuyerOffer:        600,
		EstimatedBuyerMax: 500, // below the standing offer
		Round:             1,
		Urgency:           0.5,
	})
	require.NoError(t, err)
	require.InDelta(t, 600, res.NashPrice, 1e-9)
	require.Equal(t, RecommendAccept, res.Recommendation)
}

func TestComputeLargeSurplusCounters(t *testing.T) {
	res, err := Compute(Input{
		SellerTarget:      1000,
		BuyerOffer:        600,
		EstimatedBuyerMax: 900,
		MarketValue:       800,
		Round:             1,
		Urgency:           0.5,
	})
	require.NoError(t, err)
	require.Equal(t, RecommendCounter, res.Recommendation)
	require.Greater(t, res.NashPrice, 600.0)
	require.LessOrEqual(t, res.NashPrice, 900*1.05)
	require.InDelta(t, 715.4, res.NashPrice, 1.0)
	require.InDelta(t, 1-res.SellerPower, res.BuyerPower, 1e-9)
}

func TestComputeModestSurplusConsidersCounter(t *testing.T) {
	res, err := Compute(Input{
		SellerTarget:      1000,
		BuyerOffer:        850,
		EstimatedBuyerMax: 1000,
		MarketValue:       950,
		Round:             1,
		Urgency:           0.5,
	})
	require.NoError(t, err)
	require.Equal(t, RecommendConsiderCounter, res.Recommendation)
}

func TestComputeRisingMomentumConservativeCounter(t *testing.T) {
	res, err := Compute(Input{
		SellerTarget:      1000,
		BuyerOffer:        800,
		EstimatedBuyerMax: 1000,
		MarketValue:       950,
		Round:             2,
		Urgency:           0.5,
		BuyerMomentum:     domain.MomentumIncreasing,
	})
	require.NoError(t, err)
	require.Equal(t, RecommendCounterConservative, res.Recommendation)
	// Rising momentum tightens the upper clamp to 18% over the offer.
	require.LessOrEqual(t, res.NashPrice, 800*1.18)
}

func TestComputeRisingMomentumLargeJumpAccepts(t *testing.T) {
	// A huge estimated ceiling would ask for a big jump; with the buyer
	// already climbing, the model recommends closing instead.
	res, err := Compute(Input{
		SellerTarget:      1000,
		BuyerOffer:        500,
		EstimatedBuyerMax: 1000,
		Round:             1,
		Urgency:           0,
		BuyerMomentum:     domain.MomentumIncreasing,
	})
	require.NoError(t, err)
	require.Equal(t, RecommendAccept, res.Recommendation)
	require.InDelta(t, 500*1.18, res.NashPrice, 1e-9)
}

func TestComputeTrendFromHistoryFallback(t *testing.T) {
	base := Input{
		SellerTarget:      1000,
		BuyerOffer:        700,
		EstimatedBuyerMax: 950,
		MarketValue:       900,
		Round:             2,
		Urgency:           0.5,
	}

	up := base
	up.BuyerHistory = []float64{650, 700}
	resUp, err := Compute(up)
	require.NoError(t, err)

	down := base
	down.BuyerHistory = []float64{700, 650}
	resDown, err := Compute(down)
	require.NoError(t, err)

	// A retreating buyer gets tested with a higher ask than a climbing one.
	require.Greater(t, resDown.NashPrice, resUp.NashPrice)
}

func TestComputeExplicitMomentumBeatsHistory(t *testing.T) {
	in := Input{
		SellerTarget:      1000,
		BuyerOffer:        700,
		EstimatedBuyerMax: 950,
		MarketValue:       900,
		Round:             2,
		Urgency:           0.5,
		BuyerHistory:      []float64{650, 700}, // reads as increasing
		BuyerMomentum:     domain.MomentumDecreasing,
	}
	res, err := Compute(in)
	require.NoError(t, err)

	in.BuyerMomentum = domain.MomentumIncreasing
	resInc, err := Compute(in)
	require.NoError(t, err)
	require.Greater(t, res.NashPrice, resInc.NashPrice)
}

func TestComputeCompetitionPullsTowardCeiling(t *testing.T) {
	base := Input{
		SellerTarget:      1000,
		BuyerOffer:        700,
		EstimatedBuyerMax: 950,
		MarketValue:       900,
		Round:             1,
		Urgency:           0.5,
	}
	solo, err := Compute(base)
	require.NoError(t, err)

	base.CompetitorCount = 3
	crowded, err := Compute(base)
	require.NoError(t, err)
	require.Greater(t, crowded.NashPrice, solo.NashPrice)
}

func TestConfidenceShape(t *testing.T) {
	base := Input{
		SellerTarget:      1000,
		BuyerOffer:        800,
		EstimatedBuyerMax: 900,
		MarketValue:       900,
		Round:             1,
		Urgency:           0.5,
	}
	r1, err := Compute(base)
	require.NoError(t, err)

	// Later rounds erode confidence.
	late := base
	late.Round = 6
	r6, err := Compute(late)
	require.NoError(t, err)
	require.Less(t, r6.Confidence, r1.Confidence)

	// Two points of history earn a bonus.
	hist := base
	hist.BuyerHistory = []float64{700, 750}
	rh, err := Compute(hist)
	require.NoError(t, err)
	require.InDelta(t, r1.Confidence+0.10, rh.Confidence, 1e-9)

	// Diverging value estimates lower information quality.
	vague := base
	vague.MarketValue = 400
	rv, err := Compute(vague)
	require.NoError(t, err)
	require.Less(t, rv.Confidence, r1.Confidence)

	require.GreaterOrEqual(t, r1.Confidence, 0.05)
	require.LessOrEqual(t, r1.Confidence, 0.95)
}

func TestComputeNeverLeavesClampBounds(t *testing.T) {
	for _, in := range []Input{
		{SellerTarget: 1000, BuyerOffer: 100, EstimatedBuyerMax: 5000, Round: 1},
		{SellerTarget: 50, BuyerOffer: 45, EstimatedBuyerMax: 60, Round: 9, Urgency: 1, CompetitorCount: 10},
		{SellerTarget: 800, BuyerOffer: 300, EstimatedBuyerMax: 900, Round: 3, BuyerMomentum: domain.MomentumDecreasing},
	} {
		res, err := Compute(in)
		require.NoError(t, err)
		require.GreaterOrEqual(t, res.NashPrice, in.BuyerOffer)
		require.LessOrEqual(t, res.NashPrice, in.EstimatedBuyerMax*1.05)
	}
}
