// Package diagnostics implements the per-document, per-stage diagnostic
// cache and its merge rule (spec §4.3). ConradIrwin/conl-lsp has no
// analogue to this component at all: its validator produces one diagnostic
// set per document per parse with nothing to merge, so this package is
// built fresh, grounded directly in spec §4.3's merge rule and the
// StructurallyEqual helper already added to lsp.Diagnostic.
package diagnostics

import (
	"sync"

	"github.com/sourcekitd/langworker/lsp"
)

// Stage scopes a diagnostic to the compiler pass that produced it, so a
// later response from one stage can replace only that stage's prior
// results without touching the other.
type Stage int

const (
	StageParse Stage = iota
	StageSema
)

func (s Stage) String() string {
	switch s {
	case StageParse:
		return "parse"
	case StageSema:
		return "sema"
	default:
		return "unknown"
	}
}

// Cached is one diagnostic as held in the cache: the LSP diagnostic itself,
// the stage that produced it, and whether that stage's compile command was
// a fallback (spec §3 "Cached diagnostic").
type Cached struct {
	Diagnostic lsp.Diagnostic
	Stage      Stage
	IsFallback bool
}

// Cache maps uri -> ordered sequence of cached diagnostics. All methods are
// safe for concurrent use, though the worker only ever touches a Cache from
// its single execution lane.
type Cache struct {
	mu    sync.Mutex
	byURI map[lsp.DocumentURI][]Cached
}

func NewCache() *Cache {
	return &Cache{byURI: make(map[lsp.DocumentURI][]Cached)}
}

// Merge integrates a fresh batch of diagnostics for uri produced at stage
// with the given fallback flag, per spec §4.3:
//
//  1. Drop old diagnostics with stage == stage (they are being replaced).
//  2. If isFallback, additionally drop all of the new diagnostics with
//     stage == StageSema (withhold semantic results produced under
//     fallback compiler args).
//  3. Union old (remaining) with new, preserving per-diagnostic order
//     within each origin group: surviving old diagnostics first, in their
//     original relative order, followed by the new ones.
//
// The merged list is cached and returned for publication. Publication is
// unconditional even when the merged list is empty: "no diagnostics" is
// itself a meaningful signal to editors, so callers must not skip
// publishDiagnostics on an empty result.
func (c *Cache) Merge(uri lsp.DocumentURI, stage Stage, isFallback bool, fresh []lsp.Diagnostic) []Cached {
	c.mu.Lock()
	defer c.mu.Unlock()

	kept := make([]Cached, 0, len(c.byURI[uri])+len(fresh))
	for _, d := range c.byURI[uri] {
		if d.Stage == stage {
			continue
		}
		kept = append(kept, d)
	}

	for _, d := range fresh {
		if isFallback && stage == StageSema {
			continue
		}
		kept = append(kept, Cached{Diagnostic: d, Stage: stage, IsFallback: isFallback})
	}

	c.byURI[uri] = kept
	return append([]Cached{}, kept...)
}

// Get returns the current merged diagnostics for uri.
func (c *Cache) Get(uri lsp.DocumentURI) []Cached {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Cached(nil), c.byURI[uri]...)
}

// Clear removes uri's cache entry entirely, atomically (spec §4.3 "Closing
// a URI clears the cache atomically").
func (c *Cache) Clear(uri lsp.DocumentURI) {
	c.mu.Lock()
	delete(c.byURI, uri)
	c.mu.Unlock()
}

// Overlaps reports whether a and b overlap as LSP ranges, treating a
// zero-length range as contained in the other iff it coincides with the
// other's lower bound (spec §4.6 quick-fix filtering rule). Positions
// compare lexicographically on (line, character).
func Overlaps(a, b lsp.Range) bool {
	if posLess(a.End, b.Start) || posLess(b.End, a.Start) {
		return false
	}
	if a.Start == a.End {
		return a.Start == b.Start
	}
	if b.Start == b.End {
		return b.Start == a.Start
	}
	return true
}

// OverlapsIncludingEmpty implements spec §8 Testable Property #3's general
// overlap law, as opposed to Overlaps' narrower §4.6 quick-fix containment
// rule: symmetric in a and b; an empty range [p, p) overlaps a non-empty
// [l, h) iff l <= p < h; two empty ranges overlap iff their points
// coincide; two non-empty ranges overlap iff they share a point.
func OverlapsIncludingEmpty(a, b lsp.Range) bool {
	aEmpty := a.Start == a.End
	bEmpty := b.Start == b.End

	switch {
	case aEmpty && bEmpty:
		return a.Start == b.Start
	case aEmpty:
		return !posLess(a.Start, b.Start) && posLess(a.Start, b.End)
	case bEmpty:
		return !posLess(b.Start, a.Start) && posLess(b.Start, a.End)
	default:
		return posLess(a.Start, b.End) && posLess(b.Start, a.End)
	}
}

func posLess(a, b lsp.Position) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Character < b.Character
}
