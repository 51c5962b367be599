package domain

import "context"

// NegotiationTool is one callable capability exposed to the reasoning shell:
// an analysis facet, a pricing model, or a terminal action primitive. Inputs
// are loosely typed; each tool validates its own.
type NegotiationTool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, input map[string]any) (any, error)
}
