package worker

import (
	"testing"

	"github.com/sourcekitd/langworker/sourcekitd"
)

// TestCrashRecoveryStateTable exercises spec §8 scenario 1: a crash
// notification takes the worker Connected -> ConnectionInterrupted,
// a further notification while interrupted takes it on to
// SemanticFunctionalityDisabled (and asks the coordinator to reopen
// every document), and a sema_enabled notification brings it back to
// Connected.
func TestCrashRecoveryStateTable(t *testing.T) {
	w, client, coord := newTestWorker(t, nil)
	client.Handle("editor_open", func(req *sourcekitd.Dict) (*sourcekitd.Dict, error) {
		return diagnosticsResponse(client), nil
	})

	if werr := w.OpenDocument("file:///a.swift", 1, "struct S {}"); werr != nil {
		t.Fatalf("OpenDocument: %v", werr)
	}

	if got := w.State(); got != Connected {
		t.Fatalf("initial state = %v, want Connected", got)
	}

	interrupted := client.Keys().UID("notification")
	connectionInterruptedVal := client.Values().UID("connection_interrupted")
	semaEnabledVal := client.Values().UID("sema_enabled")

	client.Notify(sourcekitd.NewResponse(map[sourcekitd.UID]any{
		interrupted: connectionInterruptedVal,
	}))
	if got := w.State(); got != ConnectionInterrupted {
		t.Fatalf("after first notification = %v, want ConnectionInterrupted", got)
	}

	client.Notify(sourcekitd.NewResponse(map[sourcekitd.UID]any{
		interrupted: connectionInterruptedVal,
	}))
	if got := w.State(); got != SemanticFunctionalityDisabled {
		t.Fatalf("after second notification = %v, want SemanticFunctionalityDisabled", got)
	}
	if coord.reopened != 1 {
		t.Fatalf("expected ReopenDocuments to be called once, got %d", coord.reopened)
	}

	client.Notify(sourcekitd.NewResponse(map[sourcekitd.UID]any{
		interrupted: semaEnabledVal,
	}))
	if got := w.State(); got != Connected {
		t.Fatalf("after sema_enabled = %v, want Connected", got)
	}
}

// TestTestCrashHelperMirrorsNotification checks the test-only TestCrash
// entry point drives the same transition a real connection_interrupted
// notification would, without needing to synthesize one.
func TestTestCrashHelperMirrorsNotification(t *testing.T) {
	w, _, _ := newTestWorker(t, nil)
	w.TestCrash()
	if got := w.State(); got != ConnectionInterrupted {
		t.Fatalf("after TestCrash = %v, want ConnectionInterrupted", got)
	}
}

// TestFallbackWithholdsSemaDiagnostics exercises spec §8 scenario 2: under
// a fallback compile command, a sema-stage diagnostic in the response
// must not be published, while a parse-stage diagnostic in the very same
// response still is.
func TestFallbackWithholdsSemaDiagnostics(t *testing.T) {
	w, client, coord := newTestWorker(t, nil)

	parseStage := parseStageValue(client)
	semaStage := semaStageValue(client)

	client.Handle("editor_open", func(req *sourcekitd.Dict) (*sourcekitd.Dict, error) {
		return diagnosticsResponse(client,
			diagnosticDict(client, "semantic issue", 0, 4, &semaStage),
			diagnosticDict(client, "parse issue", 5, 3, &parseStage),
		), nil
	})

	if werr := w.OpenDocument("file:///fallback.swift", 1, "struct S {}"); werr != nil {
		t.Fatalf("OpenDocument: %v", werr)
	}

	call, ok := coord.lastPublish()
	if !ok {
		t.Fatalf("expected a publish call")
	}
	if len(call.diagnostics) != 1 {
		t.Fatalf("expected exactly one published diagnostic under fallback, got %d: %+v", len(call.diagnostics), call.diagnostics)
	}
	if call.diagnostics[0].Message != "parse issue" {
		t.Fatalf("expected the surviving diagnostic to be the parse one, got %q", call.diagnostics[0].Message)
	}
}

// TestDocumentUpdateNotificationTriggersSyntheticRefresh exercises spec
// §8 scenario 6: a documentupdate notification naming an open document's
// absolute path triggers a zero-length editor_replacetext and republishes
// diagnostics from its response.
func TestDocumentUpdateNotificationTriggersSyntheticRefresh(t *testing.T) {
	w, client, coord := newTestWorker(t, nonFallbackSettings("file:///refresh.swift"))
	client.Handle("editor_open", func(req *sourcekitd.Dict) (*sourcekitd.Dict, error) {
		return diagnosticsResponse(client), nil
	})

	if werr := w.OpenDocument("file:///refresh.swift", 1, "struct S {}"); werr != nil {
		t.Fatalf("OpenDocument: %v", werr)
	}

	refreshMsg := diagnosticDict(client, "refreshed", 0, 1, nil)
	client.Handle("editor_replacetext", func(req *sourcekitd.Dict) (*sourcekitd.Dict, error) {
		return diagnosticsResponse(client, refreshMsg), nil
	})

	client.Notify(sourcekitd.NewResponse(map[sourcekitd.UID]any{
		client.Keys().UID("notification"): client.Values().UID("documentupdate"),
		client.Keys().UID("name"):         "/refresh.swift",
	}))
	w.State() // synchronize: the lane is FIFO, so this blocks until the notification above has been handled.

	call, ok := coord.lastPublish()
	if !ok {
		t.Fatalf("expected a publish call")
	}
	if len(call.diagnostics) != 1 || call.diagnostics[0].Message != "refreshed" {
		t.Fatalf("expected the refreshed diagnostic to be published, got %+v", call.diagnostics)
	}
}
