package equilibrium

import (
	"fmt"
	"math"
	"strings"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// PriceAdjustment is the listing-price guidance derived from valuation.
type PriceAdjustment string

const (
	AdjustMaintain            PriceAdjustment = "MAINTAIN_PRICE"
	AdjustSlightDecrease      PriceAdjustment = "SLIGHT_DECREASE"
	AdjustSignificantDecrease PriceAdjustment = "SIGNIFICANT_DECREASE"
)

// Value retention by furniture category, against the listed price of a
// comparable used piece. Secondhand furniture holds value unevenly: tables
// and desks resell well, bookshelves and generic pieces do not.
var categoryRetention = map[domain.FurnitureType]float64{
	domain.FurnitureCouch:       0.80,
	domain.FurnitureDiningTable: 0.85,
	domain.FurnitureBookshelf:   0.75,
	domain.FurnitureChair:       0.78,
	domain.FurnitureDesk:        0.82,
	domain.FurnitureDresser:     0.80,
	domain.FurnitureOther:       0.75,
}

var conditionMultiplier = map[string]float64{
	"excellent": 1.15,
	"good":      1.00,
	"fair":      0.85,
	"poor":      0.65,
}

const (
	dailyTimeDecay = 0.005
	timeDecayFloor = 0.70
)

// Valuation is the market-value estimate for a listing.
type Valuation struct {
	MarketValue     float64         `json:"marketValue"`
	RetentionFactor float64         `json:"retentionFactor"`
	ConditionFactor float64         `json:"conditionFactor"`
	TimeFactor      float64         `json:"timeFactor"`
	Adjustment      PriceAdjustment `json:"priceAdjustment"`
	Summary         string          `json:"summary"`
}

// Appraise estimates the fair market value of a listing from its category,
// condition, and time on market, and recommends whether the asking price
// should move.
func Appraise(listing domain.Listing, daysOnMarket int) Valuation {
	retention, ok := categoryRetention[listing.FurnitureType]
	if !ok {
		retention = categoryRetention[domain.FurnitureOther]
	}
	condition, ok := conditionMultiplier[strings.ToLower(listing.Condition)]
	if !ok {
		condition = 1.0
	}
	if daysOnMarket < 0 {
		daysOnMarket = 0
	}
	timeFactor := math.Max(timeDecayFloor, 1-dailyTimeDecay*float64(daysOnMarket))

	v := Valuation{
		RetentionFactor: retention,
		ConditionFactor: condition,
		TimeFactor:      timeFactor,
		MarketValue:     listing.StartingPrice * retention * condition * timeFactor,
	}

	ratio := 0.0
	if listing.StartingPrice > 0 {
		ratio = v.MarketValue / listing.StartingPrice
	}
	switch {
	case ratio >= 0.90:
		v.Adjustment = AdjustMaintain
	case ratio >= 0.75:
		v.Adjustment = AdjustSlightDecrease
	default:
		v.Adjustment = AdjustSignificantDecrease
	}

	v.Summary = fmt.Sprintf("estimated market value $%.2f (%.0f%% of asking) after %d days listed",
		v.MarketValue, ratio*100, daysOnMarket)
	return v
}
