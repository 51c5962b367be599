// Package analyzer scores a single buyer offer against the listing price.
// It is pure and deterministic: no I/O, no side effects.
package analyzer

import (
	"fmt"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// Assessment tiers an offer by its ratio to the listing price.
type Assessment string

const (
	AssessmentStrong Assessment = "strong" // ratio >= 0.9
	AssessmentFair   Assessment = "fair"   // ratio >= 0.8
	AssessmentWeak   Assessment = "weak"
)

// Thresholds for the assessment tiers and the lowball flag.
const (
	strongRatio  = 0.9
	fairRatio    = 0.8
	lowballRatio = 0.7
)

// Result is the analyzer output. MinAcceptable is informational context for
// downstream callers; it is not enforced here.
type Result struct {
	Assessment    Assessment `json:"assessment"`
	IsLowball     bool       `json:"isLowball"`
	OfferRatio    float64    `json:"offerRatio"`
	MinAcceptable float64    `json:"minAcceptable"`
	Reason        string     `json:"reason"`
}

// Analyze scores offerPrice against listPrice. A minAcceptable of zero or
// less selects the default of 0.8 x listPrice. A non-positive listPrice is a
// precondition violation.
func Analyze(offerPrice, listPrice, minAcceptable float64) (Result, error) {
	if listPrice <= 0 {
		return Result{}, fmt.Errorf("analyzer: list price must be positive, got %.2f: %w", listPrice, domain.ErrInvalidInput)
	}
	if offerPrice < 0 {
		return Result{}, fmt.Errorf("analyzer: offer price must not be negative, got %.2f: %w", offerPrice, domain.ErrInvalidInput)
	}
	if minAcceptable <= 0 {
		minAcceptable = fairRatio * listPrice
	}

	ratio := offerPrice / listPrice

	var tier Assessment
	switch {
	case ratio >= strongRatio:
		tier = AssessmentStrong
	case ratio >= fairRatio:
		tier = AssessmentFair
	default:
		tier = AssessmentWeak
	}

	res := Result{
		Assessment:    tier,
		IsLowball:     ratio < lowballRatio,
		OfferRatio:    ratio,
		MinAcceptable: minAcceptable,
	}
	res.Reason = fmt.Sprintf("offer is %.0f%% of the $%.2f asking price (%s)", ratio*100, listPrice, tier)
	if res.IsLowball {
		res.Reason += ", below the 70% lowball line"
	}
	return res, nil
}
