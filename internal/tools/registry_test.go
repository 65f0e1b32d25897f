package tools

import (
	"context"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/murshid-ai/murshid/internal/log"
)

func TestRegistry_LookupAndOrder(t *testing.T) {
	g := genkit.Init(context.Background())

	search := DefineSearchDocuments(g, log.NewNop())
	reg := NewRegistry(search)

	got, ok := reg.Lookup(SearchDocumentsName)
	if !ok {
		t.Fatalf("Lookup(%q) not found", SearchDocumentsName)
	}
	if got.Name() != SearchDocumentsName {
		t.Errorf("Lookup returned tool %q", got.Name())
	}

	if _, ok := reg.Lookup("nonexistent"); ok {
		t.Error("Lookup should miss for unregistered names")
	}

	if reg.Len() != 1 {
		t.Errorf("Len() = %d, want 1", reg.Len())
	}
	if names := reg.Names(); len(names) != 1 || names[0] != SearchDocumentsName {
		t.Errorf("Names() = %v", names)
	}
	if refs := reg.Refs(); len(refs) != 1 {
		t.Errorf("Refs() = %d entries, want 1", len(refs))
	}
}

func TestRegistry_Empty(t *testing.T) {
	reg := NewRegistry()
	if reg.Len() != 0 {
		t.Errorf("empty registry Len() = %d", reg.Len())
	}
	if _, ok := reg.Lookup(WebSearchName); ok {
		t.Error("empty registry should not resolve any tool")
	}
}
