package worker

import (
	"testing"

	"github.com/sourcekitd/langworker/buildsettings"
	"github.com/sourcekitd/langworker/lsp"
	"github.com/sourcekitd/langworker/sourcekitd"
	"github.com/sourcekitd/langworker/sourcekitd/fakeclient"
)

// nonFallbackSettings builds a Static provider that resolves uri to a
// real (non-fallback) compile command, so its diagnostics land at
// StageSema and are not withheld the way a fallback response's would be.
func nonFallbackSettings(uri string) buildsettings.Provider {
	return buildsettings.NewStatic(map[string]sourcekitd.CompileCommand{
		uri: {Argv: []string{"-sdk", "/usr"}},
	}, sourcekitd.CompileCommand{})
}

func fixitDict(client *fakeclient.Client, text string, offset, length int64) *sourcekitd.Dict {
	keys := client.Keys()
	return sourcekitd.NewResponse(map[sourcekitd.UID]any{
		keys.UID("sourcetext"): text,
		keys.UID("offset"):     offset,
		keys.UID("length"):     length,
	})
}

// TestCodeActionFiltersToOverlappingClientSubmittedDiagnostic exercises
// spec §8 scenario 5: a code-action request only turns a cached
// diagnostic's fix-it into a quick-fix CodeAction when the requested
// range overlaps it and the client's own submitted diagnostics list
// contains it, and the refactor provider contributes nothing when the
// daemon has no refactor actions at that position.
func TestCodeActionFiltersToOverlappingClientSubmittedDiagnostic(t *testing.T) {
	uri := lsp.DocumentURI("file:///quickfix.swift")
	w, client, _ := newTestWorker(t, nonFallbackSettings(string(uri)))

	client.Handle("editor_open", func(req *sourcekitd.Dict) (*sourcekitd.Dict, error) {
		fix := fixitDict(client, "replacement", 0, 4)
		diag := sourcekitd.NewResponse(map[sourcekitd.UID]any{
			client.Keys().UID("description"): "unused variable",
			client.Keys().UID("offset"):      int64(0),
			client.Keys().UID("length"):      int64(4),
			client.Keys().UID("severity"):    client.Values().UID("diagnostic.severity.warning"),
			client.Keys().UID("fixits"):      []*sourcekitd.Dict{fix},
		})
		return diagnosticsResponse(client, diag), nil
	})
	client.Handle("cursor_info", func(req *sourcekitd.Dict) (*sourcekitd.Dict, error) {
		return sourcekitd.NewResponse(nil), nil
	})

	if werr := w.OpenDocument(uri, 1, "var x = 1"); werr != nil {
		t.Fatalf("OpenDocument: %v", werr)
	}

	cached := []lsp.Diagnostic{{
		Range:    lsp.Range{Start: lsp.Position{Line: 0, Character: 0}, End: lsp.Position{Line: 0, Character: 4}},
		Severity: lsp.DiagnosticSeverityWarning,
		Source:   "sourcekitd",
		Message:  "unused variable",
	}}

	rng := lsp.Range{Start: lsp.Position{Line: 0, Character: 0}, End: lsp.Position{Line: 0, Character: 4}}
	actions, werr := w.CodeAction(uri, rng, lsp.CodeActionContext{Diagnostics: cached})
	if werr != nil {
		t.Fatalf("CodeAction: %v", werr)
	}
	if len(actions) != 1 {
		t.Fatalf("expected exactly one quick-fix action, got %d: %+v", len(actions), actions)
	}
	if actions[0].Kind != lsp.CodeActionKindQuickFix {
		t.Fatalf("expected a quickfix action, got %v", actions[0].Kind)
	}
	if actions[0].Title != "replacement" {
		t.Fatalf("expected the fix-it text as the action title, got %q", actions[0].Title)
	}
}

// TestCodeActionDropsDiagnosticNotSubmittedByClient checks that a cached
// diagnostic the client never actually submitted (no structural match in
// CodeActionContext.Diagnostics) contributes no quick-fix, even though its
// range overlaps the request.
func TestCodeActionDropsDiagnosticNotSubmittedByClient(t *testing.T) {
	uri := lsp.DocumentURI("file:///quickfix2.swift")
	w, client, _ := newTestWorker(t, nonFallbackSettings(string(uri)))

	client.Handle("editor_open", func(req *sourcekitd.Dict) (*sourcekitd.Dict, error) {
		fix := fixitDict(client, "replacement", 0, 4)
		diag := sourcekitd.NewResponse(map[sourcekitd.UID]any{
			client.Keys().UID("description"): "unused variable",
			client.Keys().UID("offset"):      int64(0),
			client.Keys().UID("length"):      int64(4),
			client.Keys().UID("severity"):    client.Values().UID("diagnostic.severity.warning"),
			client.Keys().UID("fixits"):      []*sourcekitd.Dict{fix},
		})
		return diagnosticsResponse(client, diag), nil
	})
	client.Handle("cursor_info", func(req *sourcekitd.Dict) (*sourcekitd.Dict, error) {
		return sourcekitd.NewResponse(nil), nil
	})

	if werr := w.OpenDocument(uri, 1, "var x = 1"); werr != nil {
		t.Fatalf("OpenDocument: %v", werr)
	}

	rng := lsp.Range{Start: lsp.Position{Line: 0, Character: 0}, End: lsp.Position{Line: 0, Character: 4}}
	actions, werr := w.CodeAction(uri, rng, lsp.CodeActionContext{Diagnostics: nil})
	if werr != nil {
		t.Fatalf("CodeAction: %v", werr)
	}
	if len(actions) != 0 {
		t.Fatalf("expected no actions when the client never submitted the diagnostic, got %+v", actions)
	}
}

// TestCompletionSortsByLabelAndReplacesPriorSession checks spec §3's
// "Completion session" supplement: the result list is sorted by label,
// and issuing a second completion replaces rather than stacks the
// worker's session state.
func TestCompletionSortsByLabelAndReplacesPriorSession(t *testing.T) {
	w, client, _ := newTestWorker(t, nil)
	client.Handle("editor_open", func(req *sourcekitd.Dict) (*sourcekitd.Dict, error) {
		return diagnosticsResponse(client), nil
	})
	client.Handle("codecomplete", func(req *sourcekitd.Dict) (*sourcekitd.Dict, error) {
		results := []*sourcekitd.Dict{
			sourcekitd.NewResponse(map[sourcekitd.UID]any{client.Keys().UID("actionname"): "zebra"}),
			sourcekitd.NewResponse(map[sourcekitd.UID]any{client.Keys().UID("actionname"): "apple"}),
		}
		return sourcekitd.NewResponse(map[sourcekitd.UID]any{
			client.Keys().UID("results"): results,
		}), nil
	})

	uri := lsp.DocumentURI("file:///complete.swift")
	if werr := w.OpenDocument(uri, 1, "a"); werr != nil {
		t.Fatalf("OpenDocument: %v", werr)
	}

	list, werr := w.Completion(uri, lsp.Position{Line: 0, Character: 1})
	if werr != nil {
		t.Fatalf("Completion: %v", werr)
	}
	if len(list.Items) != 2 || list.Items[0].Label != "apple" || list.Items[1].Label != "zebra" {
		t.Fatalf("expected [apple, zebra] sorted by label, got %+v", list.Items)
	}

	list2, werr := w.Completion(uri, lsp.Position{Line: 0, Character: 1})
	if werr != nil {
		t.Fatalf("second Completion: %v", werr)
	}
	if len(list2.Items) != 2 {
		t.Fatalf("expected the second session's own two items, got %+v", list2.Items)
	}
}

// TestInitializeAdvertisesSpecCapabilities is a smoke test over the
// capability set spec §4.6 "Initialize" enumerates.
func TestInitializeAdvertisesSpecCapabilities(t *testing.T) {
	w, _, _ := newTestWorker(t, nil)
	result := w.Initialize()
	caps := result.Capabilities
	if caps.PositionEncodingKind != lsp.PositionEncodingUTF16 {
		t.Fatalf("expected UTF-16 position encoding, got %v", caps.PositionEncodingKind)
	}
	if caps.TextDocumentSync == nil || caps.TextDocumentSync.Change != lsp.TextDocumentSyncIncremental {
		t.Fatalf("expected incremental sync, got %+v", caps.TextDocumentSync)
	}
	if caps.ExecuteCommandProvider == nil || len(caps.ExecuteCommandProvider.Commands) != 1 || caps.ExecuteCommandProvider.Commands[0] != semanticRefactorCommand {
		t.Fatalf("expected exactly the semantic-refactor command, got %+v", caps.ExecuteCommandProvider)
	}
}
