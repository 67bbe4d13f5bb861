// Package documents implements the in-memory document store of spec §4.2:
// versioned snapshots per URI, open/close/edit, and incremental edits that
// report each change against its pre-edit snapshot to a caller-supplied
// consumer.
//
// It generalizes ConradIrwin/conl-lsp's Server.openDocs map (guarded by
// Server.mutex in server.go) out of the LSP-specific Server into a
// standalone collaborator the worker drives.
package documents

import (
	"fmt"
	"sync"

	"github.com/sourcekitd/langworker/lsp"
	"github.com/sourcekitd/langworker/textmodel"
)

// Change is either a ranged replacement or a full-text replacement
// (Range == nil), mirroring lsp.TextDocumentContentChangeEvent.
type Change struct {
	Range *lsp.Range
	Text  string
}

// Manager owns the mapping uri -> latest snapshot. All methods are safe
// for concurrent use, though in practice the worker only ever calls them
// from its single execution lane (spec §5).
type Manager struct {
	mu   sync.Mutex
	docs map[lsp.DocumentURI]*textmodel.Snapshot
}

func NewManager() *Manager {
	return &Manager{docs: make(map[lsp.DocumentURI]*textmodel.Snapshot)}
}

// Open inserts a new snapshot, replacing any existing one for uri.
func (m *Manager) Open(uri lsp.DocumentURI, version int64, text string) *textmodel.Snapshot {
	snap := textmodel.New(uri, version, text)
	m.mu.Lock()
	m.docs[uri] = snap
	m.mu.Unlock()
	return snap
}

// Close removes uri's mapping. Idempotent.
func (m *Manager) Close(uri lsp.DocumentURI) {
	m.mu.Lock()
	delete(m.docs, uri)
	m.mu.Unlock()
}

// Latest returns the current snapshot for uri, if open.
func (m *Manager) Latest(uri lsp.DocumentURI) (*textmodel.Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.docs[uri]
	return snap, ok
}

// Reset replaces the entire document store with an empty one. Used by the
// worker on compiler-service crash (spec §4.2 "Reset").
func (m *Manager) Reset() {
	m.mu.Lock()
	m.docs = make(map[lsp.DocumentURI]*textmodel.Snapshot)
	m.mu.Unlock()
}

// OnChange is invoked once per change, in order, with the snapshot
// immediately before the change was applied, the change itself, and the
// snapshot immediately after. The worker uses this to send one
// compiler-service editor_replacetext request per change, computed from
// the pre-edit line table (spec §4.2, §4.5).
type OnChange func(before *textmodel.Snapshot, change Change, after *textmodel.Snapshot)

// Edit applies each change in order and returns the final snapshot, or
// (nil, false) if uri is not open. A change with a malformed range (one
// that cannot be resolved against the pre-edit line table) aborts
// processing of the remaining changes in this call; Edit returns the
// snapshot as of the last change that was successfully applied, and the
// second return value is still true (the document was open; the caller
// can inspect how many of len(changes) were consumed via onChange calls).
// This is the Open Question §9 resolution: never fatalError on a
// malformed edit.
func (m *Manager) Edit(uri lsp.DocumentURI, version int64, changes []Change, onChange OnChange) (*textmodel.Snapshot, bool) {
	m.mu.Lock()
	before, ok := m.docs[uri]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}

	current := before
	for _, change := range changes {
		text, err := applyChange(current, change)
		if err != nil {
			break
		}
		next := current.WithText(version, text)
		if onChange != nil {
			onChange(current, change, next)
		}
		current = next
	}

	m.mu.Lock()
	m.docs[uri] = current
	m.mu.Unlock()
	return current, true
}

func applyChange(before *textmodel.Snapshot, change Change) (string, error) {
	if change.Range == nil {
		return change.Text, nil
	}
	start, ok := before.Lines.UTF8OffsetOf(int(change.Range.Start.Line), change.Range.Start.Character)
	if !ok {
		return "", fmt.Errorf("invalid range start %+v", change.Range.Start)
	}
	end, ok := before.Lines.UTF8OffsetOf(int(change.Range.End.Line), change.Range.End.Character)
	if !ok {
		return "", fmt.Errorf("invalid range end %+v", change.Range.End)
	}
	if end < start {
		return "", fmt.Errorf("range end before start: %+v", change.Range)
	}
	return before.Text[:start] + change.Text + before.Text[end:], nil
}
