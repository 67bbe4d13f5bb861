package translate

import (
	"github.com/sourcekitd/langworker/lsp"
	"github.com/sourcekitd/langworker/textmodel"
)

// DocumentSymbols recursively converts a substructure tree into the LSP
// DocumentSymbol tree spec §4.6 describes: kind mapped via the glossary
// table, range is the node's body range, selectionRange is the name
// subrange if the daemon reported one, else equal to range.
func DocumentSymbols(lines *textmodel.LineTable, nodes []Node) []lsp.DocumentSymbol {
	out := make([]lsp.DocumentSymbol, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, documentSymbol(lines, n))
	}
	return out
}

func documentSymbol(lines *textmodel.LineTable, n Node) lsp.DocumentSymbol {
	r := byteRange(lines, n.BodyOffset, n.BodyOffset+n.BodyLength)
	sel := r
	if n.hasNameRange() {
		sel = byteRange(lines, n.NameOffset, n.NameOffset+n.NameLength)
	}
	return lsp.DocumentSymbol{
		Name:           n.Name,
		Detail:         "",
		Kind:           SymbolKindForUID(n.Kind),
		Range:          r,
		SelectionRange: sel,
		Children:       DocumentSymbols(lines, n.Children),
	}
}

// byteRange converts a [start, end) byte-offset span into an LSP Range,
// treating an unresolvable offset as the zero position rather than
// failing the whole tree — malformed daemon data degrades one node at a
// time (spec §7).
func byteRange(lines *textmodel.LineTable, start, end int) lsp.Range {
	startPos, ok := lines.PositionOfUTF8Offset(start)
	if !ok {
		startPos = lsp.Position{}
	}
	endPos, ok := lines.PositionOfUTF8Offset(end)
	if !ok {
		endPos = startPos
	}
	return lsp.Range{Start: startPos, End: endPos}
}
