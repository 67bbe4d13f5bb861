package documents

import (
	"testing"

	"github.com/sourcekitd/langworker/lsp"
	"github.com/sourcekitd/langworker/textmodel"
)

func TestOpenCloseLatest(t *testing.T) {
	m := NewManager()
	uri := lsp.DocumentURI("file:///a.swift")

	if _, ok := m.Latest(uri); ok {
		t.Fatalf("expected no snapshot before open")
	}

	m.Open(uri, 1, "hello")
	snap, ok := m.Latest(uri)
	if !ok || snap.Text != "hello" || snap.Version != 1 {
		t.Fatalf("got %+v, %v", snap, ok)
	}

	m.Close(uri)
	if _, ok := m.Latest(uri); ok {
		t.Fatalf("expected no snapshot after close")
	}

	m.Close(uri) // idempotent
}

func TestEditMonotonicVersion(t *testing.T) {
	m := NewManager()
	uri := lsp.DocumentURI("file:///a.swift")
	m.Open(uri, 1, "func foo() {}")

	snap, ok := m.Edit(uri, 2, []Change{{Text: "func foo() { bar() }"}}, nil)
	if !ok {
		t.Fatalf("expected edit on open document to succeed")
	}
	if snap.Version <= 1 {
		t.Fatalf("version did not advance: %d", snap.Version)
	}
	if snap.Text != "func foo() { bar() }" {
		t.Fatalf("unexpected text: %q", snap.Text)
	}
}

func TestEditOnUnopenedDocument(t *testing.T) {
	m := NewManager()
	if _, ok := m.Edit("file:///missing.swift", 2, nil, nil); ok {
		t.Fatalf("expected edit on unopened document to fail")
	}
}

func TestEditRangedReplacement(t *testing.T) {
	m := NewManager()
	uri := lsp.DocumentURI("file:///a.swift")
	m.Open(uri, 1, "func foo() {\n}\n")

	var sawBefore, sawAfter string
	snap, ok := m.Edit(uri, 2, []Change{{
		Range: &lsp.Range{
			Start: lsp.Position{Line: 0, Character: 12},
			End:   lsp.Position{Line: 0, Character: 12},
		},
		Text: " // comment",
	}}, func(before *textmodel.Snapshot, change Change, after *textmodel.Snapshot) {
		sawBefore = before.Text
		sawAfter = after.Text
	})
	if sawBefore != "func foo() {\n}\n" {
		t.Fatalf("onChange saw wrong before text: %q", sawBefore)
	}
	if sawAfter != "func foo() { // comment\n}\n" {
		t.Fatalf("onChange saw wrong after text: %q", sawAfter)
	}
	if !ok {
		t.Fatalf("expected edit to succeed")
	}
	if snap.Text != "func foo() { // comment\n}\n" {
		t.Fatalf("unexpected text: %q", snap.Text)
	}
}

func TestEditAbortsOnMalformedRange(t *testing.T) {
	m := NewManager()
	uri := lsp.DocumentURI("file:///a.swift")
	m.Open(uri, 1, "one\n")

	snap, ok := m.Edit(uri, 2, []Change{
		{Text: "one\ntwo\n"}, // applies fine
		{Range: &lsp.Range{Start: lsp.Position{Line: 50, Character: 0}, End: lsp.Position{Line: 50, Character: 0}}, Text: "bogus"},
		{Text: "never reached"},
	}, func(before *textmodel.Snapshot, change Change, after *textmodel.Snapshot) {})
	if !ok {
		t.Fatalf("edit on an open document should still report ok=true even when a later change aborts")
	}
	if snap.Text != "one\ntwo\n" {
		t.Fatalf("expected only the first change to apply, got %q", snap.Text)
	}
}
