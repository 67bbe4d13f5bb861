package worker

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sourcekitd/langworker/diagnostics"
	"github.com/sourcekitd/langworker/internal/lane"
	"github.com/sourcekitd/langworker/lsp"
	"github.com/sourcekitd/langworker/sourcekitd"
	"github.com/sourcekitd/langworker/textmodel"
	"github.com/sourcekitd/langworker/translate"
)

// semanticRefactorCommand is the only executeCommand entry the worker
// advertises and accepts (spec §4.6 "only semantic-refactor is accepted").
const semanticRefactorCommand = "semantic-refactor"

// Initialize returns the server capabilities of spec §4.6 "Initialize".
func (w *Worker) Initialize() lsp.InitializeResult {
	return lsp.InitializeResult{
		Capabilities: lsp.ServerCapabilities{
			PositionEncodingKind: lsp.PositionEncodingUTF16,
			TextDocumentSync: &lsp.TextDocumentSyncOptions{
				OpenClose: true,
				Change:    lsp.TextDocumentSyncIncremental,
				WillSave:  true,
			},
			CompletionProvider: &lsp.CompletionOptions{
				TriggerCharacters: []string{"."},
			},
			HoverProvider:             true,
			ImplementationProvider:    true,
			DocumentHighlightProvider: true,
			DocumentSymbolProvider:    true,
			SemanticTokensProvider: &lsp.SemanticTokensOptions{
				Legend: lsp.SemanticTokensLegend{
					TokenTypes:     translate.TokenTypeNames,
					TokenModifiers: []string{},
				},
				Full: true,
			},
			CodeActionProvider: &lsp.CodeActionOptions{
				CodeActionKinds: []lsp.CodeActionKind{lsp.CodeActionKindQuickFix, lsp.CodeActionKindRefactor},
			},
			ColorProvider:        true,
			FoldingRangeProvider: true,
			ExecuteCommandProvider: &lsp.ExecuteCommandOptions{
				Commands: []string{semanticRefactorCommand},
			},
		},
	}
}

// ClientInitialized is a no-op hook kept for contract completeness (spec
// §6 lists it among the operations the worker implements).
func (w *Worker) ClientInitialized() {}

// Shutdown releases the compiler-service session cleanly; callers still
// call Close afterward to stop the lane.
func (w *Worker) Shutdown() *Error {
	return toErr(w.lane.Call(func() error {
		_, err := w.sendSync(sourcekitd.NewRequest(w.keys.reqCrashExit))
		if err != nil {
			return w.handleRequestError("", err)
		}
		return nil
	}))
}

// Hover implements spec §4.6 "Hover": cursor-info at position..position,
// markdown built from the name plus doc comment or annotated decl.
func (w *Worker) Hover(uri lsp.DocumentURI, pos lsp.Position) (*lsp.Hover, *Error) {
	v, err := lane.CallValue(w.lane, func() (*lsp.Hover, error) {
		snap, ok := w.docs.Latest(uri)
		if !ok {
			return nil, nil
		}
		offset, ok := snap.Lines.UTF8OffsetOf(int(pos.Line), pos.Character)
		if !ok {
			return nil, nil
		}
		cmd := w.compileCommands[uri]
		resp, err := w.sendCursorInfo(uri, snap, offset, cmd, false)
		if err != nil {
			return nil, w.handleRequestError(uri, err)
		}
		name, _ := resp.GetString(w.keys.keyActionName)
		doc, _ := resp.GetString(w.keys.keyDocFullAsXML)
		decl, _ := resp.GetString(w.keys.keyAnnotatedDecl)
		md := translate.HoverMarkdown(name, doc, decl)
		if md == "" {
			return nil, nil
		}
		return &lsp.Hover{Contents: &lsp.MarkupContent{Kind: lsp.MarkupKindMarkdown, Value: md}}, nil
	})
	return v, toErr(err)
}

// SymbolInfo implements spec §4.6 "SymbolInfo": [cursor_info.symbolInfo]
// or an empty slice.
func (w *Worker) SymbolInfo(uri lsp.DocumentURI, pos lsp.Position) ([]lsp.SymbolDetail, *Error) {
	v, err := lane.CallValue(w.lane, func() ([]lsp.SymbolDetail, error) {
		snap, ok := w.docs.Latest(uri)
		if !ok {
			return nil, nil
		}
		offset, ok := snap.Lines.UTF8OffsetOf(int(pos.Line), pos.Character)
		if !ok {
			return nil, nil
		}
		cmd := w.compileCommands[uri]
		resp, err := w.sendCursorInfo(uri, snap, offset, cmd, false)
		if err != nil {
			return nil, w.handleRequestError(uri, err)
		}
		name, ok := resp.GetString(w.keys.keyActionName)
		if !ok || name == "" {
			return nil, nil
		}
		detail := lsp.SymbolDetail{Name: name}
		if usr, ok := resp.GetString(w.keys.keyUSR); ok {
			detail.USR = &usr
		}
		if container, ok := resp.GetString(w.keys.keyContainerName); ok {
			detail.ContainerName = &container
		}
		return []lsp.SymbolDetail{detail}, nil
	})
	return v, toErr(err)
}

// Definition always declines, per spec §4.6: "the worker declines
// (returns 'not handled') so the router can consult the index instead".
// The bool result reports whether the worker owns the request.
func (w *Worker) Definition(uri lsp.DocumentURI, pos lsp.Position) (bool, []lsp.Location) {
	return false, nil
}

// DocumentSymbol implements spec §4.6 "Document symbol": a syntactic-only
// editor_open, substructure walked into the LSP DocumentSymbol tree.
func (w *Worker) DocumentSymbol(uri lsp.DocumentURI) ([]lsp.DocumentSymbol, *Error) {
	v, err := lane.CallValue(w.lane, func() ([]lsp.DocumentSymbol, error) {
		snap, ok := w.docs.Latest(uri)
		if !ok {
			return nil, nil
		}
		resp, err := w.withSyntacticSession(uri, snap, false)
		if err != nil {
			return nil, w.handleRequestError(uri, err)
		}
		arr, _ := resp.GetArray(w.keys.keySubstructure)
		nodes := w.decodeSubstructure(arr)
		return translate.DocumentSymbols(snap.Lines, nodes), nil
	})
	return v, toErr(err)
}

// DocumentHighlight implements spec §4.6 "Document highlight":
// relatedidents at the cursor's UTF-8 offset, each hit reported as a
// DocumentHighlightKindRead (the daemon does not distinguish read/write).
func (w *Worker) DocumentHighlight(uri lsp.DocumentURI, pos lsp.Position) ([]lsp.DocumentHighlight, *Error) {
	v, err := lane.CallValue(w.lane, func() ([]lsp.DocumentHighlight, error) {
		snap, ok := w.docs.Latest(uri)
		if !ok {
			return nil, nil
		}
		offset, ok := snap.Lines.UTF8OffsetOf(int(pos.Line), pos.Character)
		if !ok {
			return nil, nil
		}
		cmd := w.compileCommands[uri]
		req := sourcekitd.NewRequest(w.keys.reqRelatedIdents).
			Set(w.keys.keyName, pseudoPath(uri)).
			Set(w.keys.keyOffset, int64(offset))
		if len(cmd.Argv) > 0 {
			req.Set(w.keys.keyCompilerArgs, cmd.Argv)
		}
		resp, err := w.sendSync(req)
		if err != nil {
			return nil, w.handleRequestError(uri, err)
		}
		arr, _ := resp.GetArray(w.keys.keyResults)
		out := make([]lsp.DocumentHighlight, 0, len(arr))
		for _, r := range arr {
			hOff, okOff := r.GetInt64(w.keys.keyOffset)
			hLen, okLen := r.GetInt64(w.keys.keyLength)
			if !okOff || !okLen {
				continue
			}
			out = append(out, lsp.DocumentHighlight{
				Range: decodeDiagnosticRange(snap.Lines, hOff, hLen),
				Kind:  lsp.DocumentHighlightKindRead,
			})
		}
		return out, nil
	})
	return v, toErr(err)
}

// FoldingRange implements spec §4.6 "Folding range": syntactic-only open,
// comment runs from the syntax map plus a substructure DFS, filtered by
// the client's capabilities.
func (w *Worker) FoldingRange(uri lsp.DocumentURI, caps lsp.FoldingRangeClientCapabilities) ([]lsp.FoldingRange, *Error) {
	v, err := lane.CallValue(w.lane, func() ([]lsp.FoldingRange, error) {
		snap, ok := w.docs.Latest(uri)
		if !ok {
			return nil, nil
		}
		resp, err := w.withSyntacticSession(uri, snap, true)
		if err != nil {
			return nil, w.handleRequestError(uri, err)
		}
		substructArr, _ := resp.GetArray(w.keys.keySubstructure)
		syntaxArr, _ := resp.GetArray(w.keys.keySyntaxMap)
		nodes := w.decodeSubstructure(substructArr)
		syntax := w.decodeSyntaxMap(syntaxArr)
		return translate.FoldingRanges(snap.Lines, syntax, nodes, caps), nil
	})
	return v, toErr(err)
}

// DocumentColor implements spec §4.6 "Document color": substructure
// colorLiteral nodes parsed against the document's own source text.
func (w *Worker) DocumentColor(uri lsp.DocumentURI) ([]lsp.ColorInformation, *Error) {
	v, err := lane.CallValue(w.lane, func() ([]lsp.ColorInformation, error) {
		snap, ok := w.docs.Latest(uri)
		if !ok {
			return nil, nil
		}
		resp, err := w.withSyntacticSession(uri, snap, false)
		if err != nil {
			return nil, w.handleRequestError(uri, err)
		}
		arr, _ := resp.GetArray(w.keys.keySubstructure)
		nodes := w.decodeSubstructure(arr)
		return translate.DocumentColors(snap.Lines, nodes, snap.Text), nil
	})
	return v, toErr(err)
}

// ColorPresentation implements spec §4.6 "color presentation": a pure
// function of the requested color, scheduled on the lane for consistency
// with every other public operation even though it touches no state.
func (w *Worker) ColorPresentation(c lsp.Color) (lsp.ColorPresentation, *Error) {
	v, err := lane.CallValue(w.lane, func() (lsp.ColorPresentation, error) {
		return translate.ColorPresentation(c), nil
	})
	return v, toErr(err)
}

// SemanticTokensFull implements spec §4.6 "Semantic tokens": syntactic
// open with the syntax map enabled, classify substructure nodes and
// syntax-map tokens by kind UID, drop anything unrecognized, delta-encode.
func (w *Worker) SemanticTokensFull(uri lsp.DocumentURI) (*lsp.SemanticTokens, *Error) {
	v, err := lane.CallValue(w.lane, func() (*lsp.SemanticTokens, error) {
		snap, ok := w.docs.Latest(uri)
		if !ok {
			return nil, nil
		}
		resp, err := w.withSyntacticSession(uri, snap, true)
		if err != nil {
			return nil, w.handleRequestError(uri, err)
		}
		substructArr, _ := resp.GetArray(w.keys.keySubstructure)
		syntaxArr, _ := resp.GetArray(w.keys.keySyntaxMap)

		var tokens []translate.Token
		for _, n := range w.decodeSubstructure(substructArr) {
			tokens = append(tokens, tokensFromNode(snap.Lines, n)...)
		}
		for _, s := range w.decodeSyntaxMap(syntaxArr) {
			t, ok := tokenFromSyntax(snap.Lines, s)
			if !ok {
				continue
			}
			tokens = append(tokens, t)
		}
		return &lsp.SemanticTokens{Data: translate.EncodeSemanticTokens(tokens)}, nil
	})
	return v, toErr(err)
}

func tokensFromNode(lines *textmodel.LineTable, n translate.Node) []translate.Token {
	var out []translate.Token
	if t, ok := tokenFromKind(lines, n.Kind, n.NameOffset, n.NameLength); ok {
		out = append(out, t)
	}
	for _, c := range n.Children {
		out = append(out, tokensFromNode(lines, c)...)
	}
	return out
}

func tokenFromSyntax(lines *textmodel.LineTable, s translate.SyntaxToken) (translate.Token, bool) {
	return tokenFromKind(lines, s.Kind, s.Offset, s.Length)
}

func tokenFromKind(lines *textmodel.LineTable, kindUID string, offset, length int) (translate.Token, bool) {
	typ, ok := translate.SemanticTokenTypeForUID(kindUID)
	if !ok || length <= 0 {
		return translate.Token{}, false
	}
	pos, ok := lines.PositionOfUTF8Offset(offset)
	if !ok {
		return translate.Token{}, false
	}
	// The length is the token's UTF-16 width when it ends on its start
	// line; a token that spans lines keeps its byte length.
	length16 := uint32(length)
	if end, ok := lines.PositionOfUTF8Offset(offset + length); ok && end.Line == pos.Line {
		length16 = end.Character - pos.Character
	}
	return translate.Token{Line: uint32(pos.Line), StartChar: uint32(pos.Character), Length: length16, Type: typ}, true
}

// CodeAction implements spec §4.6 "Code actions": the refactor provider
// (a cursor-info request) and the quick-fix provider (a pure scan of the
// diagnostic cache) are fanned out with an errgroup and joined.
func (w *Worker) CodeAction(uri lsp.DocumentURI, rng lsp.Range, actionCtx lsp.CodeActionContext) ([]lsp.CodeAction, *Error) {
	v, err := lane.CallValue(w.lane, func() ([]lsp.CodeAction, error) {
		snap, ok := w.docs.Latest(uri)
		if !ok {
			return nil, nil
		}
		cmd := w.compileCommands[uri]
		cached := w.diags.Get(uri)

		wantKind := func(k lsp.CodeActionKind) bool {
			if len(actionCtx.Only) == 0 {
				return true
			}
			for _, o := range actionCtx.Only {
				if o == k {
					return true
				}
			}
			return false
		}

		var g errgroup.Group
		var refactors []lsp.CodeAction
		var quickFixes []lsp.CodeAction

		if wantKind(lsp.CodeActionKindRefactor) {
			g.Go(func() error {
				actions, err := w.refactorActions(uri, snap, rng, cmd)
				if err != nil {
					return err
				}
				refactors = actions
				return nil
			})
		}
		if wantKind(lsp.CodeActionKindQuickFix) {
			g.Go(func() error {
				quickFixes = quickFixActions(uri, rng, actionCtx.Diagnostics, cached)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, w.handleRequestError(uri, err)
		}

		return append(refactors, quickFixes...), nil
	})
	return v, toErr(err)
}

// refactorActions issues cursor-info with retrieve_refactor_actions at
// rng.Start and decodes each entry into a refactor CodeAction whose
// command is semantic-refactor, carrying the action's own name as the
// first argument so ExecuteCommand can re-issue it later.
func (w *Worker) refactorActions(uri lsp.DocumentURI, snap *textmodel.Snapshot, rng lsp.Range, cmd sourcekitd.CompileCommand) ([]lsp.CodeAction, error) {
	offset, ok := snap.Lines.UTF8OffsetOf(int(rng.Start.Line), rng.Start.Character)
	if !ok {
		return nil, nil
	}
	resp, err := w.sendCursorInfo(uri, snap, offset, cmd, true)
	if err != nil {
		return nil, err
	}
	arr, _ := resp.GetArray(w.keys.keyResults)
	out := make([]lsp.CodeAction, 0, len(arr))
	for _, r := range arr {
		name, ok := r.GetString(w.keys.keyActionName)
		if !ok || name == "" {
			continue
		}
		out = append(out, lsp.CodeAction{
			Title: name,
			Kind:  lsp.CodeActionKindRefactor,
			Command: &lsp.Command{
				Title:     name,
				Command:   semanticRefactorCommand,
				Arguments: []any{string(uri), name, int(offset)},
			},
		})
	}
	return out, nil
}

// quickFixActions implements spec §4.6's quick-fix filtering rule: a
// cached diagnostic contributes one CodeAction per fix-it only if its
// range overlaps rng and the client's own submitted diagnostics list
// contains it by structural equality; the fix-its are moved onto the
// action, stripped from the diagnostic left on the action to avoid
// duplication.
func quickFixActions(uri lsp.DocumentURI, rng lsp.Range, clientDiags []lsp.Diagnostic, cached []diagnostics.Cached) []lsp.CodeAction {
	var out []lsp.CodeAction
	for _, c := range cached {
		d := c.Diagnostic
		if len(d.CodeActions) == 0 {
			continue
		}
		if !diagnostics.Overlaps(d.Range, rng) {
			continue
		}
		if !submittedByClient(d, clientDiags) {
			continue
		}
		stripped := d
		fixits := stripped.CodeActions
		stripped.CodeActions = nil
		for _, fix := range fixits {
			out = append(out, lsp.CodeAction{
				Title:       fix.Message,
				Kind:        lsp.CodeActionKindQuickFix,
				Diagnostics: []lsp.Diagnostic{stripped},
				Edit: &lsp.WorkspaceEdit{
					Changes: map[lsp.DocumentURI][]lsp.TextEdit{
						uri: {{Range: fix.Range, NewText: fix.Message}},
					},
				},
			})
		}
	}
	return out
}

func submittedByClient(d lsp.Diagnostic, clientDiags []lsp.Diagnostic) bool {
	for _, cd := range clientDiags {
		if d.StructurallyEqual(cd) {
			return true
		}
	}
	return false
}

// ExecuteCommand implements spec §4.6 "ExecuteCommand": only
// semantic-refactor is accepted; the decoded workspace edit is applied
// through the Coordinator and the outcome reported back.
func (w *Worker) ExecuteCommand(ctx context.Context, command string, args []any) (bool, string, *Error) {
	if command != semanticRefactorCommand {
		return false, "", errInvalidRequest("unsupported command: " + command)
	}
	edit, werr := lane.CallValue(w.lane, func() (lsp.WorkspaceEdit, error) {
		return w.buildRefactorEdit(args)
	})
	if werr != nil {
		return false, "", toErr(werr)
	}
	applied, reason := w.coordinator.ApplyEdit(ctx, edit)
	return applied, reason, nil
}

func (w *Worker) buildRefactorEdit(args []any) (lsp.WorkspaceEdit, error) {
	uriStr, actionName, offset, ok := parseRefactorArgs(args)
	if !ok {
		return lsp.WorkspaceEdit{}, errInvalidRequest("malformed semantic-refactor arguments")
	}
	uri := lsp.DocumentURI(uriStr)
	snap, ok := w.docs.Latest(uri)
	if !ok {
		return lsp.WorkspaceEdit{}, errNotFound(uriStr)
	}
	cmd := w.compileCommands[uri]
	req := sourcekitd.NewRequest(w.keys.reqSemanticRefactoring).
		Set(w.keys.keyName, pseudoPath(uri)).
		Set(w.keys.keyOffset, int64(offset)).
		Set(w.keys.keyActionName, actionName)
	if len(cmd.Argv) > 0 {
		req.Set(w.keys.keyCompilerArgs, cmd.Argv)
	}
	resp, err := w.sendSync(req)
	if err != nil {
		return lsp.WorkspaceEdit{}, w.handleRequestError(uri, err)
	}
	edits, _ := resp.GetArray(w.keys.keyFixits)
	changes := make([]lsp.TextEdit, 0, len(edits))
	for _, e := range edits {
		text, ok := e.GetString(w.keys.keySourceText)
		if !ok {
			continue
		}
		eOff, okOff := e.GetInt64(w.keys.keyOffset)
		eLen, okLen := e.GetInt64(w.keys.keyLength)
		if !okOff || !okLen {
			continue
		}
		changes = append(changes, lsp.TextEdit{Range: decodeDiagnosticRange(snap.Lines, eOff, eLen), NewText: text})
	}
	return lsp.WorkspaceEdit{Changes: map[lsp.DocumentURI][]lsp.TextEdit{uri: changes}}, nil
}

func parseRefactorArgs(args []any) (uri, actionName string, offset int, ok bool) {
	if len(args) != 3 {
		return "", "", 0, false
	}
	uri, ok1 := args[0].(string)
	actionName, ok2 := args[1].(string)
	offF, ok3 := args[2].(float64)
	if !ok1 || !ok2 || !ok3 {
		return "", "", 0, false
	}
	return uri, actionName, int(offF), true
}

// Completion implements spec §4.6's supplemented completion support: a
// new session always replaces the prior one (spec §3 "Completion
// session"). The request itself goes out via SendAsync rather than
// sendSync, re-posting its callback onto the lane the way spec §5
// describes for async compiler-service calls; the session's uuid token
// lets that callback recognize a reply that arrived after a later
// Completion call has already replaced it, and discard it instead of
// delivering a stale result to whichever caller is still waiting.
func (w *Worker) Completion(uri lsp.DocumentURI, pos lsp.Position) (*lsp.CompletionList, *Error) {
	type completionReply struct {
		list *lsp.CompletionList
		err  error
	}
	reply := make(chan completionReply, 1)

	w.lane.Post(func() {
		snap, ok := w.docs.Latest(uri)
		if !ok {
			reply <- completionReply{}
			return
		}
		offset, ok := snap.Lines.UTF8OffsetOf(int(pos.Line), pos.Character)
		if !ok {
			reply <- completionReply{}
			return
		}

		session := &completionSession{uri: uri, pos: pos, token: uuid.New()}
		w.completion = session

		cmd := w.compileCommands[uri]
		req := sourcekitd.NewRequest(w.keys.reqCodeComplete).
			Set(w.keys.keyName, pseudoPath(uri)).
			Set(w.keys.keySourceText, snap.Text).
			Set(w.keys.keyOffset, int64(offset))
		if len(cmd.Argv) > 0 {
			req.Set(w.keys.keyCompilerArgs, cmd.Argv)
		}

		w.client.SendAsync(req, func(resp *sourcekitd.Dict, sendErr error) {
			w.lane.Post(func() {
				if w.completion == nil || w.completion.token != session.token {
					reply <- completionReply{}
					return
				}
				if sendErr != nil {
					reply <- completionReply{err: w.handleRequestError(uri, sendErr)}
					return
				}
				arr, _ := resp.GetArray(w.keys.keyResults)
				items := make([]*lsp.CompletionItem, 0, len(arr))
				for _, r := range arr {
					name, ok := r.GetString(w.keys.keyActionName)
					if !ok || name == "" {
						continue
					}
					items = append(items, &lsp.CompletionItem{Label: name, InsertText: name})
				}
				sort.Slice(items, func(i, j int) bool { return items[i].Label < items[j].Label })
				reply <- completionReply{list: &lsp.CompletionList{IsIncomplete: false, Items: items}}
			})
		})
	})

	r := <-reply
	return r.list, toErr(r.err)
}

// sendCursorInfo issues a cursor_info request at offset, optionally
// requesting refactor-action enumeration.
func (w *Worker) sendCursorInfo(uri lsp.DocumentURI, snap *textmodel.Snapshot, offset int, cmd sourcekitd.CompileCommand, retrieveRefactor bool) (*sourcekitd.Dict, error) {
	req := sourcekitd.NewRequest(w.keys.reqCursorInfo).
		Set(w.keys.keyName, pseudoPath(uri)).
		Set(w.keys.keyOffset, int64(offset))
	if len(cmd.Argv) > 0 {
		req.Set(w.keys.keyCompilerArgs, cmd.Argv)
	}
	if retrieveRefactor {
		req.Set(w.keys.keyRetrieveRefactor, true)
	}
	return w.sendSync(req)
}

// withSyntacticSession opens uri in syntactic-only mode under a private
// pseudo-path so it never disturbs the document's real editor_open
// session, reads the response, and closes it immediately (spec §5
// "Resource discipline": no session leaks).
func (w *Worker) withSyntacticSession(uri lsp.DocumentURI, snap *textmodel.Snapshot, enableSyntaxMap bool) (*sourcekitd.Dict, error) {
	name := pseudoPath(uri) + "#syntactic"
	req := sourcekitd.NewRequest(w.keys.reqEditorOpen).
		Set(w.keys.keyName, name).
		Set(w.keys.keySourceText, snap.Text).
		Set(w.keys.keySyntacticOnly, true)
	if enableSyntaxMap {
		req.Set(w.keys.keyEnableSyntaxMap, true)
	}
	resp, err := w.sendSync(req)
	if err != nil {
		return nil, err
	}
	if _, cerr := w.sendSync(sourcekitd.NewRequest(w.keys.reqEditorClose).Set(w.keys.keyName, name)); cerr != nil {
		w.log.Warning("withSyntacticSession: editor_close failed for {URI}: {Error}", uri, cerr)
	}
	return resp, nil
}
