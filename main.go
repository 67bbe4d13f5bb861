// Command langworker is the LSP front-end of spec §1: it drives an
// lsp.Connection over stdio, wires requests/notifications onto a single
// worker.Worker, and forwards the worker's diagnostics and callbacks back
// over the same connection.
//
// It generalizes ConradIrwin/conl-lsp's main.go: the same top-level
// pattern of "open a log file, install FrameLogger, build a Connection,
// build a Server wrapping it, Serve stdin/stdout, dump a panic with dbg
// on the way out" — but the Server's own state is now the worker, not an
// inline open-document map, and the log is mtlog-structured rather than a
// raw *os.File.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	"github.com/ConradIrwin/dbg"
	"github.com/willibrandon/mtlog"
	"github.com/willibrandon/mtlog/core"
	"github.com/willibrandon/mtlog/sinks"

	"github.com/sourcekitd/langworker/buildsettings"
	"github.com/sourcekitd/langworker/config"
	"github.com/sourcekitd/langworker/documents"
	"github.com/sourcekitd/langworker/index"
	"github.com/sourcekitd/langworker/lsp"
	"github.com/sourcekitd/langworker/sourcekitd"
	"github.com/sourcekitd/langworker/sourcekitd/pluginclient"
	"github.com/sourcekitd/langworker/sourcekitd/registry"
	"github.com/sourcekitd/langworker/worker"
)

var panicLog *os.File

func logPanic() {
	if r := recover(); r != nil {
		dbg.To(panicLog, r)
		panicLog.WriteString(string(debug.Stack()))
	}
}

func main() {
	opts, err := config.Parse(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	var sink core.LogEventSink
	if opts.LogPath != "" {
		fileSink, err := sinks.NewFileSink(opts.LogPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "langworker: open log:", err)
			os.Exit(1)
		}
		sink = fileSink
	} else {
		sink = sinks.NewConsoleSinkWithWriter(os.Stderr)
	}
	log := mtlog.New(mtlog.WithSink(sink), mtlog.WithMinimumLevel(core.InformationLevel))

	panicLog = os.Stderr
	if opts.LogPath != "" {
		if f, err := os.OpenFile(opts.LogPath, os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			panicLog = f
			defer f.Close()
		}
	}
	defer logPanic()

	reg := registry.New(func(path string) (sourcekitd.Client, error) {
		return pluginclient.Open(path)
	})
	var client sourcekitd.Client
	if opts.DylibPath != "" {
		client, err = reg.Acquire(opts.DylibPath)
		if err != nil {
			log.Error("failed to open sourcekitd at {Path}: {Error}", opts.DylibPath, err)
			os.Exit(1)
		}
	}
	if client == nil {
		log.Warning("no -sourcekitd path given; exiting")
		os.Exit(2)
	}

	wcfg := worker.Config{ExcludedSchemes: opts.ExcludedSchemes, RequestTimeout: opts.RequestTimeout}
	bs := buildsettings.NewStatic(nil, sourcekitd.CompileCommand{})

	lsp.FrameLogger = func(prefix string, data []byte) {
		log.Debug("{Prefix}: {Frame}", prefix, string(data))
	}

	conn := lsp.NewConnection()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer(conn, log)
	w := worker.New(ctx, client, s, bs, index.Noop{}, log, wcfg)
	s.worker = w
	s.registerHandlers()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	if err := s.Serve(ctx, os.Stdin, os.Stdout); err != nil {
		log.Error("serve: {Error}", err)
	}
	w.Close()
	log.Information("langworker exiting")
}

// openDoc is everything Server needs to replay a textDocument/didOpen for
// ReopenDocuments (spec §4.5 "Invoke reopen_documents"): the worker's own
// documents.Manager holds the authoritative text, but it does not expose
// an enumeration, so the Server keeps its own parallel record purely for
// this purpose, mirroring conl-lsp's Server.openDocs.
type openDoc struct {
	version int32
	text    string
}

// Server is the upstream collaborator described in spec §1/§4.5 as a thin
// Coordinator: it owns the wire connection, forwards every textDocument/
// and workspace/ method onto the worker, and implements worker.Coordinator
// so the worker can publish diagnostics, ask for a reopen sweep, and issue
// workspace/applyEdit, all without depending on lsp.Connection directly.
type Server struct {
	c      *lsp.Connection
	log    core.Logger
	worker *worker.Worker

	mu       sync.Mutex
	openDocs map[lsp.DocumentURI]*openDoc
}

func NewServer(c *lsp.Connection, log core.Logger) *Server {
	return &Server{c: c, log: log, openDocs: make(map[lsp.DocumentURI]*openDoc)}
}

func (s *Server) registerHandlers() {
	lsp.HandleRequest(s.c, "initialize", s.initialize)
	lsp.HandleNotification(s.c, "initialized", s.initialized)
	lsp.HandleRequest(s.c, "shutdown", s.shutdown)
	lsp.HandleNotification(s.c, "exit", s.exit)

	lsp.HandleNotification(s.c, "textDocument/didOpen", s.didOpen)
	lsp.HandleNotification(s.c, "textDocument/didChange", s.didChange)
	lsp.HandleNotification(s.c, "textDocument/didClose", s.didClose)
	lsp.HandleNotification(s.c, "textDocument/willSave", s.willSave)
	lsp.HandleNotification(s.c, "textDocument/didSave", s.didSave)

	lsp.HandleRequest(s.c, "textDocument/hover", s.hover)
	lsp.HandleRequest(s.c, "textDocument/completion", s.completion)
	lsp.HandleRequest(s.c, "textDocument/definition", s.definition)
	lsp.HandleRequest(s.c, "textDocument/documentSymbol", s.documentSymbol)
	lsp.HandleRequest(s.c, "textDocument/documentHighlight", s.documentHighlight)
	lsp.HandleRequest(s.c, "textDocument/foldingRange", s.foldingRange)
	lsp.HandleRequest(s.c, "textDocument/documentColor", s.documentColor)
	lsp.HandleRequest(s.c, "textDocument/colorPresentation", s.colorPresentation)
	lsp.HandleRequest(s.c, "textDocument/semanticTokens/full", s.semanticTokensFull)
	lsp.HandleRequest(s.c, "textDocument/codeAction", s.codeAction)
	lsp.HandleRequest(s.c, "workspace/executeCommand", s.executeCommand)
}

func (s *Server) Serve(ctx context.Context, r io.Reader, w io.Writer) error {
	return s.c.Serve(ctx, r, w)
}

func (s *Server) initialize(ctx context.Context, params lsp.InitializeParams) (*lsp.InitializeResult, error) {
	bi, ok := debug.ReadBuildInfo()
	version := ""
	if ok {
		version = bi.Main.Version
	}
	result := s.worker.Initialize()
	result.ServerInfo = &lsp.ServerInfo{Name: "langworker", Version: version}
	return &result, nil
}

func (s *Server) initialized(ctx context.Context, params lsp.InitializedParams) {
	s.worker.ClientInitialized()
}

func (s *Server) shutdown(ctx context.Context, params *lsp.Null) (*lsp.Null, error) {
	if werr := s.worker.Shutdown(); werr != nil {
		return nil, werr
	}
	return &lsp.Null{}, nil
}

func (s *Server) exit(ctx context.Context, params *lsp.Null) {
	s.c.Exit()
}

func (s *Server) didOpen(ctx context.Context, params lsp.DidOpenTextDocumentParams) {
	uri := params.TextDocument.URI
	s.mu.Lock()
	s.openDocs[uri] = &openDoc{version: params.TextDocument.Version, text: params.TextDocument.Text}
	s.mu.Unlock()

	if werr := s.worker.OpenDocument(uri, params.TextDocument.Version, params.TextDocument.Text); werr != nil {
		s.log.Warning("didOpen {URI}: {Error}", uri, werr)
	}
}

func (s *Server) didChange(ctx context.Context, params lsp.DidChangeTextDocumentParams) {
	uri := params.TextDocument.URI
	changes := make([]documents.Change, len(params.ContentChanges))
	for i, c := range params.ContentChanges {
		changes[i] = documents.Change{Range: c.Range, Text: c.Text}
	}

	if werr := s.worker.ChangeDocument(uri, params.TextDocument.Version, changes); werr != nil {
		s.log.Warning("didChange {URI}: {Error}", uri, werr)
		return
	}

	s.mu.Lock()
	if doc, ok := s.openDocs[uri]; ok {
		doc.version = params.TextDocument.Version
	}
	s.mu.Unlock()
}

func (s *Server) didClose(ctx context.Context, params lsp.DidCloseTextDocumentParams) {
	uri := params.TextDocument.URI
	s.mu.Lock()
	delete(s.openDocs, uri)
	s.mu.Unlock()

	if werr := s.worker.CloseDocument(uri); werr != nil {
		s.log.Warning("didClose {URI}: {Error}", uri, werr)
	}
	s.PublishDiagnostics(uri, 0, nil)
}

func (s *Server) willSave(ctx context.Context, params lsp.WillSaveTextDocumentParams) {
	if werr := s.worker.WillSaveDocument(params.TextDocument.URI); werr != nil {
		s.log.Warning("willSave {URI}: {Error}", params.TextDocument.URI, werr)
	}
}

func (s *Server) didSave(ctx context.Context, params lsp.DidSaveTextDocumentParams) {
	if werr := s.worker.DidSaveDocument(params.TextDocument.URI); werr != nil {
		s.log.Warning("didSave {URI}: {Error}", params.TextDocument.URI, werr)
	}
}

func (s *Server) hover(ctx context.Context, params lsp.HoverParams) (*lsp.Hover, error) {
	h, werr := s.worker.Hover(params.TextDocument.URI, params.Position)
	if werr != nil {
		return nil, werr
	}
	return h, nil
}

func (s *Server) completion(ctx context.Context, params lsp.CompletionParams) (*lsp.CompletionList, error) {
	list, werr := s.worker.Completion(params.TextDocument.URI, params.Position)
	if werr != nil {
		return nil, werr
	}
	if list == nil {
		list = &lsp.CompletionList{}
	}
	return list, nil
}

// definition always responds with an empty list: spec §4.6 has the
// worker decline every Definition request so the upstream router can
// consult its index instead; there's no router here to hand off to, so
// the declination simply resolves to "no locations known."
func (s *Server) definition(ctx context.Context, params lsp.DefinitionParams) ([]lsp.Location, error) {
	handled, locs := s.worker.Definition(params.TextDocument.URI, params.Position)
	if !handled {
		return []lsp.Location{}, nil
	}
	return locs, nil
}

func (s *Server) documentSymbol(ctx context.Context, params lsp.DocumentSymbolParams) ([]lsp.DocumentSymbol, error) {
	syms, werr := s.worker.DocumentSymbol(params.TextDocument.URI)
	if werr != nil {
		return nil, werr
	}
	return syms, nil
}

func (s *Server) documentHighlight(ctx context.Context, params lsp.DocumentHighlightParams) ([]lsp.DocumentHighlight, error) {
	hl, werr := s.worker.DocumentHighlight(params.TextDocument.URI, params.Position)
	if werr != nil {
		return nil, werr
	}
	return hl, nil
}

func (s *Server) foldingRange(ctx context.Context, params lsp.FoldingRangeParams) ([]lsp.FoldingRange, error) {
	fr, werr := s.worker.FoldingRange(params.TextDocument.URI, lsp.FoldingRangeClientCapabilities{})
	if werr != nil {
		return nil, werr
	}
	return fr, nil
}

func (s *Server) documentColor(ctx context.Context, params lsp.DocumentColorParams) ([]lsp.ColorInformation, error) {
	colors, werr := s.worker.DocumentColor(params.TextDocument.URI)
	if werr != nil {
		return nil, werr
	}
	return colors, nil
}

func (s *Server) colorPresentation(ctx context.Context, params lsp.ColorPresentationParams) ([]lsp.ColorPresentation, error) {
	p, werr := s.worker.ColorPresentation(params.Color)
	if werr != nil {
		return nil, werr
	}
	return []lsp.ColorPresentation{p}, nil
}

func (s *Server) semanticTokensFull(ctx context.Context, params lsp.SemanticTokensParams) (*lsp.SemanticTokens, error) {
	toks, werr := s.worker.SemanticTokensFull(params.TextDocument.URI)
	if werr != nil {
		return nil, werr
	}
	return toks, nil
}

func (s *Server) codeAction(ctx context.Context, params lsp.CodeActionParams) ([]lsp.CodeAction, error) {
	actions, werr := s.worker.CodeAction(params.TextDocument.URI, params.Range, params.Context)
	if werr != nil {
		return nil, werr
	}
	return actions, nil
}

func (s *Server) executeCommand(ctx context.Context, params lsp.ExecuteCommandParams) (any, error) {
	_, failureReason, werr := s.worker.ExecuteCommand(ctx, params.Command, params.Arguments)
	if werr != nil {
		return nil, werr
	}
	if failureReason != "" {
		return nil, fmt.Errorf("%s", failureReason)
	}
	return &lsp.Null{}, nil
}

// PublishDiagnostics implements worker.Coordinator, mirroring conl-lsp's
// Server.PublishDiagnostics.
func (s *Server) PublishDiagnostics(uri lsp.DocumentURI, version int32, diags []lsp.Diagnostic) {
	out := make([]*lsp.Diagnostic, len(diags))
	for i := range diags {
		out[i] = &diags[i]
	}
	s.c.Notify("textDocument/publishDiagnostics", &lsp.PublishDiagnosticsParams{
		URI:         uri,
		Version:     version,
		Diagnostics: out,
	})
}

// ReopenDocuments implements worker.Coordinator (spec §4.5 state table,
// SemanticFunctionalityDisabled entry): replay didOpen for every document
// the client still has open, so the worker re-syncs the compiler service
// against each one's current text once semantic functionality returns.
func (s *Server) ReopenDocuments(ctx context.Context) {
	s.mu.Lock()
	docs := make(map[lsp.DocumentURI]*openDoc, len(s.openDocs))
	for uri, doc := range s.openDocs {
		docs[uri] = doc
	}
	s.mu.Unlock()

	// The worker calls this from its own lane, and OpenDocument schedules
	// onto that same lane, so the replay runs on its own goroutine rather
	// than waiting on the lane from inside it.
	go func() {
		for uri, doc := range docs {
			if werr := s.worker.OpenDocument(uri, doc.version, doc.text); werr != nil {
				s.log.Warning("reopen {URI}: {Error}", uri, werr)
			}
		}
	}()
}

// ApplyEdit implements worker.Coordinator by issuing workspace/applyEdit
// and blocking for the client's response.
func (s *Server) ApplyEdit(ctx context.Context, edit lsp.WorkspaceEdit) (bool, string) {
	var result lsp.ApplyWorkspaceEditResult
	if err := s.c.Call(ctx, "workspace/applyEdit", &lsp.ApplyWorkspaceEditParams{Edit: edit}, &result); err != nil {
		return false, err.Error()
	}
	return result.Applied, result.FailureReason
}
