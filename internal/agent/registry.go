// Package agent is the tool-augmented reasoning shell: a bounded loop that is
// handed the analysis facets and action primitives as callable tools and
// decides which to invoke and in what order. The shell only proposes an
// outcome; the policy guardrails clamp whatever it proposes before anything
// is executed.
package agent

import (
	"fmt"
	"sort"

	"github.com/chasef07/marketplace-sub002/internal/domain"
)

// Registry holds the tools available to one shell run. It is built once at
// wire time and read-only afterwards.
type Registry struct {
	tools map[string]domain.NegotiationTool
}

func NewRegistry(tools ...domain.NegotiationTool) *Registry {
	r := &Registry{tools: make(map[string]domain.NegotiationTool, len(tools))}
	for _, t := range tools {
		r.tools[t.Name()] = t
	}
	return r
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *Registry) Register(t domain.NegotiationTool) {
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (domain.NegotiationTool, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("agent: unknown tool %q: %w", name, domain.ErrNotFound)
	}
	return t, nil
}

// Names returns the registered tool names in stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
