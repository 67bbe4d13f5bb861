package worker

import (
	"strings"

	"github.com/sourcekitd/langworker/diagnostics"
	"github.com/sourcekitd/langworker/lsp"
	"github.com/sourcekitd/langworker/sourcekitd"
	"github.com/sourcekitd/langworker/textmodel"
	"github.com/sourcekitd/langworker/translate"
)

// resolveURIFromName parses a documentupdate notification's name field as
// either a filesystem path (leading '/') or a URI string (spec §4.7).
func resolveURIFromName(name string) (lsp.DocumentURI, bool) {
	if name == "" {
		return "", false
	}
	if strings.HasPrefix(name, "/") {
		return lsp.DocumentURI("file://" + name), true
	}
	return lsp.DocumentURI(name), true
}

// decodeDiagnosticsByStage extracts the diagnostics out of a
// compiler-service response, grouped by the stage each one actually
// belongs to (spec §4.3/§8 scenario 2: a response can carry both parse
// and sema diagnostics together). A diagnostic with no stage field of its
// own inherits defaultStage. A malformed entry (missing
// offset/length/description) is dropped, not fatal, per spec §7.
func (w *Worker) decodeDiagnosticsByStage(resp *sourcekitd.Dict, lines *textmodel.LineTable, defaultStage diagnostics.Stage) map[diagnostics.Stage][]lsp.Diagnostic {
	if resp == nil {
		return nil
	}
	arr, ok := resp.GetArray(w.keys.keyDiagnostics)
	if !ok {
		return nil
	}
	out := make(map[diagnostics.Stage][]lsp.Diagnostic)
	for _, d := range arr {
		diag, ok := w.decodeDiagnostic(d, lines)
		if !ok {
			continue
		}
		stage := defaultStage
		if stageUID, ok := d.GetUID(w.keys.keyDiagnosticStage); ok {
			switch stageUID {
			case w.keys.valStageParse:
				stage = diagnostics.StageParse
			case w.keys.valStageSema:
				stage = diagnostics.StageSema
			}
		}
		out[stage] = append(out[stage], diag)
	}
	return out
}

func (w *Worker) decodeDiagnostic(d *sourcekitd.Dict, lines *textmodel.LineTable) (lsp.Diagnostic, bool) {
	msg, ok := d.GetString(w.keys.keyDescription)
	if !ok {
		return lsp.Diagnostic{}, false
	}
	offset, okOff := d.GetInt64(w.keys.keyOffset)
	length, okLen := d.GetInt64(w.keys.keyLength)
	if !okOff || !okLen {
		return lsp.Diagnostic{}, false
	}
	sevUID, _ := d.GetUID(w.keys.keySeverity)
	diag := lsp.Diagnostic{
		Range:    decodeDiagnosticRange(lines, offset, length),
		Message:  msg,
		Severity: w.severityFor(sevUID),
		Source:   "sourcekitd",
	}
	if fixits, ok := d.GetArray(w.keys.keyFixits); ok {
		for _, f := range fixits {
			if fix, ok := w.decodeFixit(f, lines); ok {
				diag.CodeActions = append(diag.CodeActions, fix)
			}
		}
	}
	return diag, true
}

func (w *Worker) decodeFixit(f *sourcekitd.Dict, lines *textmodel.LineTable) (lsp.Diagnostic, bool) {
	text, ok := f.GetString(w.keys.keySourceText)
	if !ok {
		return lsp.Diagnostic{}, false
	}
	offset, okOff := f.GetInt64(w.keys.keyOffset)
	length, okLen := f.GetInt64(w.keys.keyLength)
	rng := lsp.Range{}
	if okOff && okLen {
		rng = decodeDiagnosticRange(lines, offset, length)
	}
	return lsp.Diagnostic{Range: rng, Message: text}, true
}

func (w *Worker) severityFor(uid sourcekitd.UID) lsp.DiagnosticSeverity {
	switch uid {
	case w.keys.valSeverityError:
		return lsp.DiagnosticSeverityError
	case w.keys.valSeverityWarning:
		return lsp.DiagnosticSeverityWarning
	case w.keys.valSeverityNote:
		return lsp.DiagnosticSeverityInformation
	default:
		return lsp.DiagnosticSeverityError
	}
}

// decodeDiagnosticRange resolves a diagnostic's byte range against lines,
// used where the caller has a line table available (translate-style
// construction, kept local to worker since the wire decode differs per
// response shape).
func decodeDiagnosticRange(lines *textmodel.LineTable, offset, length int64) lsp.Range {
	start, ok := lines.PositionOfUTF8Offset(int(offset))
	if !ok {
		start = lsp.Position{}
	}
	end, ok := lines.PositionOfUTF8Offset(int(offset + length))
	if !ok {
		end = start
	}
	return lsp.Range{Start: start, End: end}
}

// decodeSubstructure walks a compiler-service substructure array into
// translate.Node trees, tolerating missing fields per node (spec §7).
func (w *Worker) decodeSubstructure(arr []*sourcekitd.Dict) []translate.Node {
	out := make([]translate.Node, 0, len(arr))
	for _, d := range arr {
		out = append(out, w.decodeNode(d))
	}
	return out
}

func (w *Worker) decodeNode(d *sourcekitd.Dict) translate.Node {
	kindUID, _ := d.GetUID(w.keys.keyKind)
	name, _ := d.GetString(w.keys.keyName)
	bodyOffset, _ := d.GetInt64(w.keys.keyBodyOffset)
	bodyLength, _ := d.GetInt64(w.keys.keyBodyLength)
	nameOffset, hasNameOffset := d.GetInt64(w.keys.keyNameOffset)
	nameLength, _ := d.GetInt64(w.keys.keyNameLength)
	if !hasNameOffset {
		nameOffset = -1
	}

	n := translate.Node{
		Kind:       kindUID.String(),
		Name:       name,
		BodyOffset: int(bodyOffset),
		BodyLength: int(bodyLength),
		NameOffset: int(nameOffset),
		NameLength: int(nameLength),
	}

	if children, ok := d.GetArray(w.keys.keyElements); ok {
		n.ChildrenByName = make(map[string]translate.Node, len(children))
		for _, c := range children {
			child := w.decodeNode(c)
			n.Children = append(n.Children, child)
			if child.Name != "" {
				n.ChildrenByName[child.Name] = child
			}
		}
	}
	if children, ok := d.GetArray(w.keys.keySubstructure); ok {
		for _, c := range children {
			n.Children = append(n.Children, w.decodeNode(c))
		}
	}
	return n
}

// decodeSyntaxMap converts the compiler-service syntax map array into
// translate.SyntaxToken values.
func (w *Worker) decodeSyntaxMap(arr []*sourcekitd.Dict) []translate.SyntaxToken {
	out := make([]translate.SyntaxToken, 0, len(arr))
	for _, d := range arr {
		kindUID, _ := d.GetUID(w.keys.keyKind)
		offset, _ := d.GetInt64(w.keys.keyOffset)
		length, _ := d.GetInt64(w.keys.keyLength)
		out = append(out, translate.SyntaxToken{
			Kind:   kindUID.String(),
			Offset: int(offset),
			Length: int(length),
		})
	}
	return out
}
