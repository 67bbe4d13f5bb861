package worker

import (
	"context"
	"sync"
	"testing"

	"github.com/willibrandon/mtlog"
	"github.com/willibrandon/mtlog/core"
	"github.com/willibrandon/mtlog/sinks"

	"github.com/sourcekitd/langworker/buildsettings"
	"github.com/sourcekitd/langworker/index"
	"github.com/sourcekitd/langworker/lsp"
	"github.com/sourcekitd/langworker/sourcekitd"
	"github.com/sourcekitd/langworker/sourcekitd/fakeclient"
)

// fakeCoordinator records everything the worker sends upstream, standing
// in for the real LSP connection per spec §9's "test with a fake
// Coordinator" guidance.
type fakeCoordinator struct {
	mu sync.Mutex

	published []publishCall
	reopened  int
	edits     []lsp.WorkspaceEdit
	applyOK   bool
}

type publishCall struct {
	uri         lsp.DocumentURI
	version     int32
	diagnostics []lsp.Diagnostic
}

func (f *fakeCoordinator) PublishDiagnostics(uri lsp.DocumentURI, version int32, diags []lsp.Diagnostic) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishCall{uri: uri, version: version, diagnostics: diags})
}

func (f *fakeCoordinator) ReopenDocuments(ctx context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reopened++
}

func (f *fakeCoordinator) ApplyEdit(ctx context.Context, edit lsp.WorkspaceEdit) (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit)
	return f.applyOK, ""
}

func (f *fakeCoordinator) lastPublish() (publishCall, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.published) == 0 {
		return publishCall{}, false
	}
	return f.published[len(f.published)-1], true
}

// testLogger returns a core.Logger backed by an in-memory sink, so test
// output stays quiet and (if ever needed) inspectable.
func testLogger() core.Logger {
	return mtlog.New(mtlog.WithSink(sinks.NewMemorySink()))
}

// newTestWorker wires a Worker against a fakeclient.Client and
// fakeCoordinator, with a Static build-settings provider and a Noop
// index, per spec §9's test guidance.
func newTestWorker(t *testing.T, bs buildsettings.Provider) (*Worker, *fakeclient.Client, *fakeCoordinator) {
	t.Helper()
	client := fakeclient.New()
	coord := &fakeCoordinator{applyOK: true}
	if bs == nil {
		bs = buildsettings.NewStatic(nil, sourcekitd.CompileCommand{})
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	w := New(ctx, client, coord, bs, index.Noop{}, testLogger(), Config{})
	t.Cleanup(func() { w.Close() })
	return w, client, coord
}

// diagnosticDict builds a single wire diagnostic entry. stageValue, if
// non-nil, tags the diagnostic with a per-item stage (source.diagnostic.
// stage.swift.{parse,sema}); nil leaves it to inherit the caller's
// default stage, exactly as a real daemon response that omits the field
// would.
func diagnosticDict(client *fakeclient.Client, message string, offset, length int64, stageValue *sourcekitd.UID) *sourcekitd.Dict {
	keys := client.Keys()
	fields := map[sourcekitd.UID]any{
		keys.UID("description"): message,
		keys.UID("offset"):      offset,
		keys.UID("length"):      length,
		keys.UID("severity"):    client.Values().UID("diagnostic.severity.error"),
	}
	if stageValue != nil {
		fields[keys.UID("diagnostic_stage")] = *stageValue
	}
	return sourcekitd.NewResponse(fields)
}

// diagnosticsResponse wraps a set of diagnostic dicts as a full
// editor_open/editor_replacetext-shaped response.
func diagnosticsResponse(client *fakeclient.Client, diags ...*sourcekitd.Dict) *sourcekitd.Dict {
	return sourcekitd.NewResponse(map[sourcekitd.UID]any{
		client.Keys().UID("diagnostics"): diags,
	})
}

func parseStageValue(client *fakeclient.Client) sourcekitd.UID {
	return client.Values().UID("source.diagnostic.stage.swift.parse")
}

func semaStageValue(client *fakeclient.Client) sourcekitd.UID {
	return client.Values().UID("source.diagnostic.stage.swift.sema")
}
