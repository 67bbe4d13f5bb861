package translate

import (
	"reflect"
	"testing"

	"github.com/sourcekitd/langworker/lsp"
	"github.com/sourcekitd/langworker/textmodel"
)

func TestSymbolKindForUID(t *testing.T) {
	if got := SymbolKindForUID("source.lang.swift.decl.class"); got != lsp.SymbolKindClass {
		t.Fatalf("got %v", got)
	}
	if got := SymbolKindForUID("source.lang.swift.decl.enumelement"); got != lsp.SymbolKindEnumMember {
		t.Fatalf("got %v", got)
	}
	if got := SymbolKindForUID("totally.unknown.kind"); got != lsp.SymbolKindVariable {
		t.Fatalf("expected fallback for unknown kind, got %v", got)
	}
}

func TestSemanticTokenTypeForUIDDropsUnknown(t *testing.T) {
	if _, ok := SemanticTokenTypeForUID("source.lang.swift.decl.class"); !ok {
		t.Fatalf("expected a known kind to resolve")
	}
	if _, ok := SemanticTokenTypeForUID("nonsense"); ok {
		t.Fatalf("expected an unknown kind to report absent")
	}
}

func TestEncodeSemanticTokensMatchesSpecExample(t *testing.T) {
	tokens := []Token{
		{Line: 2, StartChar: 4, Length: 3, Type: TokenKeyword},
		{Line: 2, StartChar: 10, Length: 2, Type: TokenType},
		{Line: 4, StartChar: 0, Length: 5, Type: TokenFunction},
	}
	got := EncodeSemanticTokens(tokens)
	want := []uint32{
		2, 4, 3, uint32(TokenKeyword), 0,
		0, 6, 2, uint32(TokenType), 0,
		2, 0, 5, uint32(TokenFunction), 0,
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
}

func TestFoldingRangesLineOnlyClient(t *testing.T) {
	// Four consecutive "// c" line comments on lines 2-5 (each token's
	// length runs through its trailing newline so it is byte-adjacent to
	// the next), then a single-line brace block on line 8.
	text := "line0\nline1\n// c\n// c\n// c\n// c\nline6\nline7\n{body}\nline9\n"
	lines := textmodel.NewLineTable(text)

	syntax := []SyntaxToken{
		{Kind: "source.lang.swift.syntaxtype.comment.line", Offset: 12, Length: 5}, // "// c\n"
		{Kind: "source.lang.swift.syntaxtype.comment.line", Offset: 17, Length: 5}, // "// c\n"
		{Kind: "source.lang.swift.syntaxtype.comment.line", Offset: 22, Length: 5}, // "// c\n"
		{Kind: "source.lang.swift.syntaxtype.comment.line", Offset: 27, Length: 4}, // "// c"
	}
	nodes := []Node{
		{Kind: "source.lang.swift.stmt.brace", BodyOffset: 44, BodyLength: 6},
	}

	caps := lsp.FoldingRangeClientCapabilities{LineFoldingOnly: true}
	got := FoldingRanges(lines, syntax, nodes, caps)

	if len(got) != 1 {
		t.Fatalf("expected exactly one folding range (comment), got %+v", got)
	}
	r := got[0]
	if r.Kind != lsp.FoldingRangeKindComment {
		t.Fatalf("expected comment kind, got %v", r.Kind)
	}
	if r.StartLine != 2 {
		t.Fatalf("expected startLine=2, got %d", r.StartLine)
	}
	if r.EndLine != 4 {
		t.Fatalf("expected endLine=4 (line-only adjustment), got %d", r.EndLine)
	}
	if r.StartCharacter != nil || r.EndCharacter != nil {
		t.Fatalf("expected no character fields under lineFoldingOnly, got %+v", r)
	}
}

func TestFoldingRangesRespectRangeLimit(t *testing.T) {
	text := "/*a*/ /*b*/ /*c*/\nline1\n"
	lines := textmodel.NewLineTable(text)
	syntax := []SyntaxToken{
		{Kind: "source.lang.swift.syntaxtype.comment.block", Offset: 0, Length: 5},
		{Kind: "source.lang.swift.syntaxtype.comment.block", Offset: 6, Length: 5},
		{Kind: "source.lang.swift.syntaxtype.comment.block", Offset: 12, Length: 5},
	}
	limit := uint32(2)
	caps := lsp.FoldingRangeClientCapabilities{RangeLimit: &limit}
	got := FoldingRanges(lines, syntax, nil, caps)
	if len(got) != 2 {
		t.Fatalf("expected rangeLimit to cap results at 2, got %d", len(got))
	}
}

func TestDocumentSymbols(t *testing.T) {
	text := "class Foo {\n  var x: Int\n}\n"
	lines := textmodel.NewLineTable(text)
	nodes := []Node{
		{
			Kind:       "source.lang.swift.decl.class",
			Name:       "Foo",
			BodyOffset: 0,
			BodyLength: len(text) - 1,
			NameOffset: 6,
			NameLength: 3,
			Children: []Node{
				{Kind: "source.lang.swift.decl.var.instance", Name: "x", BodyOffset: 14, BodyLength: 10, NameOffset: 14, NameLength: 1},
			},
		},
	}
	got := DocumentSymbols(lines, nodes)
	if len(got) != 1 || got[0].Name != "Foo" || got[0].Kind != lsp.SymbolKindClass {
		t.Fatalf("unexpected top-level symbol: %+v", got)
	}
	if len(got[0].Children) != 1 || got[0].Children[0].Kind != lsp.SymbolKindProperty {
		t.Fatalf("unexpected child symbol: %+v", got[0].Children)
	}
}

func TestDocumentColors(t *testing.T) {
	source := `let c = #colorLiteral(red: 1.0, green: 0.5, blue: 0.25, alpha: 1.0)`
	nodes := []Node{
		{
			Kind:       "source.lang.swift.expr.call",
			Name:       "colorLiteral",
			BodyOffset: 8,
			BodyLength: len(source) - 8,
			ChildrenByName: map[string]Node{
				"red":   {BodyOffset: 27, BodyLength: 3},
				"green": {BodyOffset: 39, BodyLength: 3},
				"blue":  {BodyOffset: 50, BodyLength: 4},
				"alpha": {BodyOffset: 63, BodyLength: 3},
			},
		},
	}
	lines := textmodel.NewLineTable(source)
	got := DocumentColors(lines, nodes, source)
	if len(got) != 1 {
		t.Fatalf("expected one color, got %+v", got)
	}
	if got[0].Color.Red != 1.0 || got[0].Color.Green != 0.5 || got[0].Color.Blue != 0.25 || got[0].Color.Alpha != 1.0 {
		t.Fatalf("unexpected color: %+v", got[0].Color)
	}
}

func TestColorPresentationLabel(t *testing.T) {
	p := ColorPresentation(lsp.Color{Red: 1, Green: 0.5, Blue: 0.25, Alpha: 1})
	want := "#colorLiteral(red: 1, green: 0.5, blue: 0.25, alpha: 1)"
	if p.Label != want {
		t.Fatalf("got %q, want %q", p.Label, want)
	}
}

func TestHoverMarkdownPrefersDocOverDecl(t *testing.T) {
	got := HoverMarkdown("foo(_:)", "<Function><Name>foo</Name><Abstract>Does a thing.</Abstract></Function>", "func foo(_ x: Int)")
	if got == "" {
		t.Fatalf("expected non-empty hover text")
	}
	if !containsAll(got, []string{`foo\(\_:\)`, "Does a thing."}) {
		t.Fatalf("expected escaped name and rendered doc, got %q", got)
	}
}

func TestHoverMarkdownFallsBackToDecl(t *testing.T) {
	got := HoverMarkdown("foo()", "", "func foo()")
	if !containsAll(got, []string{`foo\(\)`, "func foo()"}) {
		t.Fatalf("expected escaped name and declaration, got %q", got)
	}
}

func TestHoverMarkdownEmptyWithoutName(t *testing.T) {
	if got := HoverMarkdown("", "doc", "decl"); got != "" {
		t.Fatalf("expected empty string when cursor has no name, got %q", got)
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, n := range needles {
		if !contains(haystack, n) {
			return false
		}
	}
	return true
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (sub == "" || indexOf(s, sub) >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
