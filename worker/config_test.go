package worker

import (
	"context"
	"testing"

	"github.com/sourcekitd/langworker/buildsettings"
	"github.com/sourcekitd/langworker/documents"
	"github.com/sourcekitd/langworker/index"
	"github.com/sourcekitd/langworker/lsp"
	"github.com/sourcekitd/langworker/sourcekitd"
	"github.com/sourcekitd/langworker/sourcekitd/fakeclient"
)

// TestExcludedSchemeNeverReachesCompilerService exercises the data-model
// invariant that a URI whose scheme is configured out (the default table
// is {git, hg}) never generates compiler-service traffic and never
// publishes diagnostics, even though the document itself is still tracked
// so the client can open/close it without error.
func TestExcludedSchemeNeverReachesCompilerService(t *testing.T) {
	client := fakeclient.New()
	coord := &fakeCoordinator{applyOK: true}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w := New(ctx, client, coord, buildsettings.NewStatic(nil, sourcekitd.CompileCommand{}), index.Noop{}, testLogger(), Config{})
	t.Cleanup(func() { w.Close() })

	client.Handle("editor_open", func(req *sourcekitd.Dict) (*sourcekitd.Dict, error) {
		t.Fatal("editor_open must not be sent for an excluded-scheme URI")
		return nil, nil
	})

	uri := lsp.DocumentURI("git:///repo.swift?ref=HEAD")
	if werr := w.OpenDocument(uri, 1, "struct S {}"); werr != nil {
		t.Fatalf("OpenDocument: %v", werr)
	}
	if _, ok := coord.lastPublish(); ok {
		t.Fatalf("expected no publish call for an excluded scheme")
	}

	if werr := w.ChangeDocument(uri, 2, []documents.Change{{Text: "struct S { func f() {} }"}}); werr != nil {
		t.Fatalf("ChangeDocument: %v", werr)
	}
	if _, ok := coord.lastPublish(); ok {
		t.Fatalf("expected no publish call after editing an excluded scheme")
	}
}

// TestConfigExcludedSchemesOverridesDefault checks that an explicit,
// non-nil ExcludedSchemes replaces rather than appends to the default.
func TestConfigExcludedSchemesOverridesDefault(t *testing.T) {
	cfg := Config{ExcludedSchemes: []string{"ssh"}}
	w := &Worker{cfg: cfg}
	if w.excluded("git:///x.swift") {
		t.Fatalf("git should no longer be excluded once ExcludedSchemes is overridden")
	}
	if !w.excluded("ssh:///x.swift") {
		t.Fatalf("ssh should be excluded per the override")
	}
}
