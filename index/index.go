// Package index stands in for the out-of-scope on-disk symbol index (spec
// §1). The worker's Definition operation always declines (spec §4.6: "the
// worker declines so the router can consult the index instead"), so this
// package exists only to give worker.Worker a contract to hold; nothing in
// this repo's scope ever queries it.
package index

import "github.com/sourcekitd/langworker/lsp"

// Index resolves a definition location for a symbol the worker itself
// could not answer. The worker never calls this directly — the upstream
// coordinator consults it only after the worker declines a Definition
// request — but the contract is declared here so a future index
// implementation has somewhere to plug in.
type Index interface {
	Definition(uri lsp.DocumentURI, pos lsp.Position) ([]lsp.Location, error)
}

// Noop is a trivial Index that never resolves anything, suitable for
// deployments with no index configured.
type Noop struct{}

func (Noop) Definition(uri lsp.DocumentURI, pos lsp.Position) ([]lsp.Location, error) {
	return nil, nil
}
