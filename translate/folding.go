package translate

import (
	"sort"
	"strings"

	"github.com/sourcekitd/langworker/lsp"
	"github.com/sourcekitd/langworker/textmodel"
)

const commentSyntaxKindSubstr = "comment"

// FoldingRanges implements spec §4.6 "Folding range": merge adjacent
// comment tokens from the syntax map into comment folding ranges, DFS the
// substructure for a folding range per node with positive body length,
// respect the client's rangeLimit and lineFoldingOnly capabilities, and
// return a deterministically sorted result.
func FoldingRanges(lines *textmodel.LineTable, syntax []SyntaxToken, nodes []Node, caps lsp.FoldingRangeClientCapabilities) []lsp.FoldingRange {
	var ranges []lsp.FoldingRange

	ranges = append(ranges, commentFoldingRanges(lines, syntax)...)
	ranges = append(ranges, substructureFoldingRanges(lines, nodes)...)

	sort.Slice(ranges, func(i, j int) bool {
		if ranges[i].StartLine != ranges[j].StartLine {
			return ranges[i].StartLine < ranges[j].StartLine
		}
		return ranges[i].EndLine < ranges[j].EndLine
	})

	ranges = applyClientCapabilities(ranges, caps)

	if caps.RangeLimit != nil && uint32(len(ranges)) > *caps.RangeLimit {
		ranges = ranges[:*caps.RangeLimit]
	}
	return ranges
}

// commentFoldingRanges collapses runs of adjacent comment tokens (the next
// token's offset equals the previous one's offset+length) into a single
// folding range of kind comment.
func commentFoldingRanges(lines *textmodel.LineTable, syntax []SyntaxToken) []lsp.FoldingRange {
	var out []lsp.FoldingRange
	i := 0
	for i < len(syntax) {
		if !strings.Contains(syntax[i].Kind, commentSyntaxKindSubstr) {
			i++
			continue
		}
		start := syntax[i]
		end := syntax[i]
		j := i + 1
		for j < len(syntax) && strings.Contains(syntax[j].Kind, commentSyntaxKindSubstr) && syntax[j].Offset == end.Offset+end.Length {
			end = syntax[j]
			j++
		}
		r := byteRange(lines, start.Offset, end.Offset+end.Length)
		out = append(out, lsp.FoldingRange{
			StartLine:      r.Start.Line,
			StartCharacter: ptrU32(r.Start.Character),
			EndLine:        r.End.Line,
			EndCharacter:   ptrU32(r.End.Character),
			Kind:           lsp.FoldingRangeKindComment,
		})
		i = j
	}
	return out
}

func substructureFoldingRanges(lines *textmodel.LineTable, nodes []Node) []lsp.FoldingRange {
	var out []lsp.FoldingRange
	var walk func(ns []Node)
	walk = func(ns []Node) {
		for _, n := range ns {
			if n.BodyLength > 0 {
				r := byteRange(lines, n.BodyOffset, n.BodyOffset+n.BodyLength)
				out = append(out, lsp.FoldingRange{
					StartLine:      r.Start.Line,
					StartCharacter: ptrU32(r.Start.Character),
					EndLine:        r.End.Line,
					EndCharacter:   ptrU32(r.End.Character),
				})
			}
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}

// applyClientCapabilities drops single-line ranges and switches to
// line-only output when the client reports lineFoldingOnly=true (spec's
// "Folding with line-only client" scenario).
func applyClientCapabilities(ranges []lsp.FoldingRange, caps lsp.FoldingRangeClientCapabilities) []lsp.FoldingRange {
	if !caps.LineFoldingOnly {
		return ranges
	}
	out := make([]lsp.FoldingRange, 0, len(ranges))
	for _, r := range ranges {
		if r.EndLine <= r.StartLine {
			continue // would collapse to a single line
		}
		lineOnly := r
		lineOnly.EndLine = r.EndLine - 1
		lineOnly.StartCharacter = nil
		lineOnly.EndCharacter = nil
		out = append(out, lineOnly)
	}
	return out
}

func ptrU32(v uint32) *uint32 {
	return &v
}
