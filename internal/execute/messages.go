package execute

import (
	"fmt"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// Offer messages attached to agent-generated moves. Buyers see these in the
// negotiation thread, so they are written the way a seller would type them.

func acceptMessage(price float64) string {
	return fmt.Sprintf("Deal! I accept your offer of $%.0f.", price)
}

func counterMessage(price float64, stage domain.NegotiationStage) string {
	switch stage {
	case domain.StageOpening:
		return fmt.Sprintf("Thanks for the offer! I can do $%.0f.", price)
	case domain.StageClosing:
		return fmt.Sprintf("Let's meet at $%.0f and we have a deal.", price)
	default:
		return fmt.Sprintf("I appreciate the interest. How about $%.0f?", price)
	}
}

func declineMessage() string {
	return "Thanks for the interest, but I can't go that low on this one."
}
