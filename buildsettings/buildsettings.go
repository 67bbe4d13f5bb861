// Package buildsettings stands in for the out-of-scope build-settings
// provider spec §1 lists as a collaborator referenced only by its
// contract. The worker depends on Provider and Change, never on a
// concrete resolution strategy; Static is a minimal implementation
// sufficient for tests and small deployments.
package buildsettings

import "github.com/sourcekitd/langworker/sourcekitd"

// ChangeKind tags a Change as one of the sum type's three variants (spec
// §6 "Build-settings change").
type ChangeKind int

const (
	ChangeFallback ChangeKind = iota
	ChangeModified
	ChangeRemovedOrUnavailable
)

// Change is the sum type documentUpdatedBuildSettings delivers to the
// worker: either fallback(settings), modified(settings), or
// removed_or_unavailable (no Settings field populated in that case).
type Change struct {
	Kind     ChangeKind
	Settings sourcekitd.CompileCommand
}

// Provider resolves the compile command for a URI. Workers call Resolve
// once per OpenDocument; a later build-settings change reaches the worker
// as a Change passed to DocumentUpdatedBuildSettings, and a dependency
// change reuses the cached compile command without calling Resolve.
type Provider interface {
	Resolve(uri string) (Change, error)
}

// Static is a fixed-table Provider: URIs not present in its map resolve
// to a fallback compile command rather than erroring, mirroring how a
// real build-settings provider degrades when it cannot find a target for
// a file.
type Static struct {
	byURI    map[string]sourcekitd.CompileCommand
	fallback sourcekitd.CompileCommand
}

// NewStatic builds a Static provider. fallback is returned, tagged
// ChangeFallback, for any URI not present in byURI.
func NewStatic(byURI map[string]sourcekitd.CompileCommand, fallback sourcekitd.CompileCommand) *Static {
	fallback.IsFallback = true
	return &Static{byURI: byURI, fallback: fallback}
}

func (s *Static) Resolve(uri string) (Change, error) {
	if cmd, ok := s.byURI[uri]; ok {
		return Change{Kind: ChangeModified, Settings: cmd}, nil
	}
	return Change{Kind: ChangeFallback, Settings: s.fallback}, nil
}
