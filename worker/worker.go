// Package worker implements the language worker of spec §4.5: the
// stateful collaborator that owns one compiler-service connection, its
// open documents, and its diagnostic cache, and exposes every LSP
// operation as a closure scheduled onto a single serialization lane.
//
// It generalizes ConradIrwin/conl-lsp's Server (server.go, main.go): the
// same "one struct holding the open-document map plus a PublishDiagnostics
// helper, driven by lsp.HandleRequest/HandleNotification" shape, but with
// the mutex replaced by a lane (spec §5 requires compiler-service calls to
// serialize against document mutation too, which a plain RWMutex cannot
// express once async callbacks are involved) and the validator replaced
// by requests to an external, crash-prone daemon.
package worker

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/willibrandon/mtlog/core"

	"github.com/sourcekitd/langworker/buildsettings"
	"github.com/sourcekitd/langworker/diagnostics"
	"github.com/sourcekitd/langworker/documents"
	"github.com/sourcekitd/langworker/index"
	"github.com/sourcekitd/langworker/internal/lane"
	"github.com/sourcekitd/langworker/lsp"
	"github.com/sourcekitd/langworker/sourcekitd"
	"github.com/sourcekitd/langworker/textmodel"
)

// completionSession is the worker's single outstanding completion request
// (spec §4.6 "(NEW) Completion"); a new session always replaces the prior
// one rather than stacking up. token identifies this particular session so
// the SendAsync callback, which runs after being re-posted onto the lane,
// can tell whether it is still the current session or has been superseded
// by a later Completion call before discarding or delivering its reply.
type completionSession struct {
	uri   lsp.DocumentURI
	pos   lsp.Position
	token uuid.UUID
}

// Worker is the language worker of spec §3/§4.5. All of its exported
// methods are safe to call concurrently: each schedules its work onto the
// lane and blocks for the result, so state is only ever touched from one
// goroutine at a time.
type Worker struct {
	lane *lane.Lane

	docs  *documents.Manager
	diags *diagnostics.Cache

	client      sourcekitd.Client
	notifyToken int
	keys        wireKeys

	coordinator Coordinator
	buildSettings buildsettings.Provider
	index       index.Index
	log         core.Logger

	state         State
	stateHandlers []StateChangeHandler

	compileCommands map[lsp.DocumentURI]sourcekitd.CompileCommand
	completion      *completionSession

	cfg Config
}

// New builds a Worker bound to client and coordinator, and starts its
// lane goroutine under ctx. Callers must arrange for ctx to be cancelled
// (or Close called) on shutdown, mirroring the teacher's
// Connection.Serve/cancel pairing.
func New(ctx context.Context, client sourcekitd.Client, coordinator Coordinator, bs buildsettings.Provider, idx index.Index, log core.Logger, cfg Config) *Worker {
	w := &Worker{
		lane:            lane.New(),
		docs:            documents.NewManager(),
		diags:           diagnostics.NewCache(),
		client:          client,
		keys:            newWireKeys(client),
		coordinator:     coordinator,
		buildSettings:   bs,
		index:           idx,
		log:             log,
		state:           Connected,
		compileCommands: make(map[lsp.DocumentURI]sourcekitd.CompileCommand),
		cfg:             cfg,
	}
	w.notifyToken = client.AddNotificationHandler(w.handleNotification)
	go w.lane.Run(ctx)
	return w
}

// Close stops the worker's lane and releases its compiler-service client.
func (w *Worker) Close() error {
	w.client.RemoveNotificationHandler(w.notifyToken)
	w.lane.Close()
	return w.client.Close()
}

// pseudoPath is the daemon's stable file-handle string for uri (spec
// glossary "Pseudo-path"): the filesystem path for file:// URIs, else the
// URI string itself as a synthesized tag.
func pseudoPath(uri lsp.DocumentURI) string {
	u := uri.URL()
	if u.Scheme == "file" {
		return u.Path
	}
	return uri.String()
}

// OpenDocument implements spec §4.5 "Open": send editor_open, publish
// diagnostics from the response.
func (w *Worker) OpenDocument(uri lsp.DocumentURI, version int32, text string) *Error {
	return toErr(w.lane.Call(func() error {
		w.docs.Open(uri, int64(version), text)
		if w.excluded(uri) {
			return nil
		}
		snap, _ := w.docs.Latest(uri)

		cmd, werr := w.resolveBuildSettings(uri)
		if werr != nil {
			return werr
		}
		w.compileCommands[uri] = cmd

		resp, err := w.sendEditorOpen(uri, snap.Text, cmd)
		if err != nil {
			return w.handleRequestError(uri, err)
		}
		w.publishFrom(uri, int32(snap.Version), diagnostics.StageSema, cmd.IsFallback, snap.Lines, resp)
		return nil
	}))
}

// CloseDocument implements spec §4.5 "Close": editor_close, drop cached
// compile command and diagnostics.
func (w *Worker) CloseDocument(uri lsp.DocumentURI) *Error {
	return toErr(w.lane.Call(func() error {
		excluded := w.excluded(uri)
		w.docs.Close(uri)
		delete(w.compileCommands, uri)
		w.diags.Clear(uri)
		if excluded {
			return nil
		}
		if _, err := w.sendSync(sourcekitd.NewRequest(w.keys.reqEditorClose).
			Set(w.keys.keyName, pseudoPath(uri))); err != nil {
			return w.handleRequestError(uri, err)
		}
		return nil
	}))
}

// ChangeDocument implements spec §4.5 "Edit": one editor_replacetext per
// change, in order, publishing diagnostics only from the last response.
// A change whose range cannot be resolved stops the remaining changes; the
// changes before it are still sent and published, and ChangeDocument then
// returns an invalid_request error.
func (w *Worker) ChangeDocument(uri lsp.DocumentURI, version int32, changes []documents.Change) *Error {
	return toErr(w.lane.Call(func() error {
		excluded := w.excluded(uri)
		cmd := w.compileCommands[uri]
		var lastResp *sourcekitd.Dict
		var lastLines *textmodel.LineTable
		var lastErr error
		applied := 0

		_, ok := w.docs.Edit(uri, int64(version), changes, func(before *textmodel.Snapshot, change documents.Change, after *textmodel.Snapshot) {
			applied++
			if excluded {
				return
			}
			start, length, text := replaceTextArgs(before, change)
			resp, err := w.sendSync(sourcekitd.NewRequest(w.keys.reqEditorReplaceText).
				Set(w.keys.keyName, pseudoPath(uri)).
				Set(w.keys.keyOffset, int64(start)).
				Set(w.keys.keyLength, int64(length)).
				Set(w.keys.keySourceText, text))
			lastResp, lastErr, lastLines = resp, err, after.Lines
		})
		if !ok {
			w.log.Warning("changeDocument: no snapshot for {URI}", uri)
			return errNotFound(fmt.Sprintf("no open document for %s", uri))
		}
		if lastErr != nil {
			return w.handleRequestError(uri, lastErr)
		}
		if lastResp != nil {
			w.publishFrom(uri, version, diagnostics.StageSema, cmd.IsFallback, lastLines, lastResp)
		}
		if applied < len(changes) {
			return errInvalidRequest(fmt.Sprintf("change %d of %d has a malformed range", applied+1, len(changes)))
		}
		return nil
	}))
}

// replaceTextArgs computes the (offset, length, newText) editor_replacetext
// triple for change against before's line table; a full-text change
// (Range == nil) replaces the entire prior document.
func replaceTextArgs(before *textmodel.Snapshot, change documents.Change) (int, int, string) {
	if change.Range == nil {
		return 0, len(before.Text), change.Text
	}
	start, ok := before.Lines.UTF8OffsetOf(int(change.Range.Start.Line), change.Range.Start.Character)
	if !ok {
		start = 0
	}
	end, ok := before.Lines.UTF8OffsetOf(int(change.Range.End.Line), change.Range.End.Character)
	if !ok || end < start {
		end = start
	}
	return start, end - start, change.Text
}

// WillSaveDocument and DidSaveDocument have no compiler-service side
// effect of their own (the daemon is kept current purely by editor_open /
// editor_replacetext); they exist so the upstream contract list (spec §6)
// is fully implemented.
func (w *Worker) WillSaveDocument(uri lsp.DocumentURI) *Error {
	return toErr(w.lane.Call(func() error {
		if _, ok := w.docs.Latest(uri); !ok {
			return errNotFound(string(uri))
		}
		return nil
	}))
}

func (w *Worker) DidSaveDocument(uri lsp.DocumentURI) *Error {
	return toErr(w.lane.Call(func() error {
		if _, ok := w.docs.Latest(uri); !ok {
			return errNotFound(string(uri))
		}
		return nil
	}))
}

// DocumentUpdatedBuildSettings implements spec §4.5 "Build-settings
// change": if the new compile command differs from what is cached,
// replace it and issue a synthetic close+open, then publish diagnostics.
func (w *Worker) DocumentUpdatedBuildSettings(uri lsp.DocumentURI, change buildsettings.Change) *Error {
	return toErr(w.lane.Call(func() error {
		if change.Kind == buildsettings.ChangeRemovedOrUnavailable {
			delete(w.compileCommands, uri)
			return nil
		}
		existing, had := w.compileCommands[uri]
		if had && existing.Equal(change.Settings) {
			return nil
		}
		w.compileCommands[uri] = change.Settings
		return w.reopenLocked(uri, change.Settings)
	}))
}

// DocumentDependenciesUpdated implements spec §4.5 "Dependencies updated":
// unconditional close+open with the current compile command.
func (w *Worker) DocumentDependenciesUpdated(uri lsp.DocumentURI) *Error {
	return toErr(w.lane.Call(func() error {
		cmd := w.compileCommands[uri]
		return w.reopenLocked(uri, cmd)
	}))
}

// reopenLocked must be called from the lane. It issues editor_close then
// editor_open with cmd, and publishes diagnostics from the open response.
func (w *Worker) reopenLocked(uri lsp.DocumentURI, cmd sourcekitd.CompileCommand) error {
	if w.excluded(uri) {
		return nil
	}
	snap, ok := w.docs.Latest(uri)
	if !ok {
		return errNotFound(fmt.Sprintf("no open document for %s", uri))
	}
	if _, err := w.sendSync(sourcekitd.NewRequest(w.keys.reqEditorClose).
		Set(w.keys.keyName, pseudoPath(uri))); err != nil {
		return w.handleRequestError(uri, err)
	}
	resp, err := w.sendEditorOpen(uri, snap.Text, cmd)
	if err != nil {
		return w.handleRequestError(uri, err)
	}
	w.publishFrom(uri, int32(snap.Version), diagnostics.StageSema, cmd.IsFallback, snap.Lines, resp)
	return nil
}

// syntheticRefresh implements spec §4.5 "Synthetic refresh": a
// zero-length replace-text at offset 0, used when the daemon signals
// documentupdate.
func (w *Worker) syntheticRefresh(uri lsp.DocumentURI) error {
	if w.excluded(uri) {
		return nil
	}
	snap, ok := w.docs.Latest(uri)
	if !ok {
		return nil
	}
	cmd := w.compileCommands[uri]
	resp, err := w.sendSync(sourcekitd.NewRequest(w.keys.reqEditorReplaceText).
		Set(w.keys.keyName, pseudoPath(uri)).
		Set(w.keys.keyOffset, int64(0)).
		Set(w.keys.keyLength, int64(0)).
		Set(w.keys.keySourceText, ""))
	if err != nil {
		return w.handleRequestError(uri, err)
	}
	w.publishFrom(uri, int32(snap.Version), diagnostics.StageSema, cmd.IsFallback, snap.Lines, resp)
	return nil
}

func (w *Worker) resolveBuildSettings(uri lsp.DocumentURI) (sourcekitd.CompileCommand, *Error) {
	if w.buildSettings == nil {
		return sourcekitd.CompileCommand{IsFallback: true}, nil
	}
	change, err := w.buildSettings.Resolve(uri.String())
	if err != nil {
		return sourcekitd.CompileCommand{}, errUnknown(err.Error())
	}
	return change.Settings, nil
}

func (w *Worker) sendEditorOpen(uri lsp.DocumentURI, text string, cmd sourcekitd.CompileCommand) (*sourcekitd.Dict, error) {
	req := sourcekitd.NewRequest(w.keys.reqEditorOpen).
		Set(w.keys.keyName, pseudoPath(uri)).
		Set(w.keys.keySourceText, text)
	if len(cmd.Argv) > 0 {
		req.Set(w.keys.keyCompilerArgs, cmd.Argv)
	}
	return w.sendSync(req)
}

// publishFrom decodes the diagnostics found in resp grouped by their own
// stage (falling back to stage for any entry that doesn't carry one),
// merges each group into the cache in turn, then unconditionally
// publishes the resulting set via the coordinator (spec §4.3
// "Publication is unconditional, even for an empty slice"). Cache.Merge
// always returns the complete current list for uri regardless of which
// stage it was just called with, so the last call's return value is the
// one to publish no matter what order the groups are merged in.
func (w *Worker) publishFrom(uri lsp.DocumentURI, version int32, stage diagnostics.Stage, isFallback bool, lines *textmodel.LineTable, resp *sourcekitd.Dict) {
	byStage := w.decodeDiagnosticsByStage(resp, lines, stage)
	if len(byStage) == 0 {
		byStage = map[diagnostics.Stage][]lsp.Diagnostic{stage: nil}
	}
	var merged []diagnostics.Cached
	for s, fresh := range byStage {
		merged = w.diags.Merge(uri, s, isFallback, fresh)
	}
	out := make([]lsp.Diagnostic, len(merged))
	for i, c := range merged {
		out[i] = c.Diagnostic
	}
	w.coordinator.PublishDiagnostics(uri, version, out)
}

// handleRequestError implements spec §7's compiler-service failure
// policy: connection_interrupted drives the state machine and is
// swallowed (the client will retry after reopen); anything else is
// reported to the caller as unknown(msg).
func (w *Worker) handleRequestError(uri lsp.DocumentURI, err error) error {
	if skErr, ok := err.(*sourcekitd.Error); ok && skErr.Kind == sourcekitd.ErrorConnectionInterrupted {
		w.enterConnectionInterrupted()
		return nil
	}
	return fromSourcekitd(err)
}

func toErr(err error) *Error {
	if err == nil {
		return nil
	}
	if we, ok := err.(*Error); ok {
		return we
	}
	return errUnknown(err.Error())
}
