package index

import (
	"testing"

	"github.com/sourcekitd/langworker/lsp"
)

func TestNoopNeverResolves(t *testing.T) {
	var idx Index = Noop{}
	locs, err := idx.Definition("file:///a.swift", lsp.Position{Line: 0, Character: 0})
	if err != nil || locs != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", locs, err)
	}
}
