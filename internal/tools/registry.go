// Package tools defines the agent-callable tools and the registry the
// executor uses to run them by name.
package tools

import (
	"github.com/firebase/genkit/go/ai"
)

// Tool name constants registered with Genkit.
const (
	// SearchDocumentsName is the tool that queries the session's knowledge base.
	SearchDocumentsName = "search_documents"

	// WebSearchName is the tool that queries the hosted web answer API.
	WebSearchName = "web_search"
)

// Registry holds tools keyed by name. The executor requests tool calls from
// the model without executing them, then resolves each call through Lookup.
type Registry struct {
	byName map[string]ai.Tool
	order  []ai.Tool
}

// NewRegistry creates a Registry over the given tools. A duplicate name
// replaces the earlier registration.
func NewRegistry(toolList ...ai.Tool) *Registry {
	r := &Registry{byName: make(map[string]ai.Tool, len(toolList))}
	for _, t := range toolList {
		if _, exists := r.byName[t.Name()]; !exists {
			r.order = append(r.order, t)
		}
		r.byName[t.Name()] = t
	}
	return r
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (ai.Tool, bool) {
	t, ok := r.byName[name]
	return t, ok
}

// Refs returns the tools as ai.ToolRef values for binding to a model call.
func (r *Registry) Refs() []ai.ToolRef {
	refs := make([]ai.ToolRef, len(r.order))
	for i, t := range r.order {
		refs[i] = t
	}
	return refs
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	for i, t := range r.order {
		names[i] = t.Name()
	}
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int { return len(r.order) }
