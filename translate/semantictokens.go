package translate

import "sort"

// Token is one classified token ready for delta encoding: a (line, start
// character) position, a length in UTF-16 columns, and a token type. It has
// no modifier field: the encoder writes a modifier bitmask of 0 for every
// token (spec §4.6 does not define modifiers beyond the legend's type list).
type Token struct {
	Line      uint32
	StartChar uint32
	Length    uint32
	Type      SemanticTokenType
}

// EncodeSemanticTokens sorts tokens by (line, start char) and produces the
// LSP delta-coded data array: five uint32s per token,
// [deltaLine, deltaStartChar, length, tokenType, modifiers]. deltaStartChar
// is relative to the previous token's start character only when both
// tokens share a line; otherwise it is absolute (spec §4.6 "Δchar resets
// to absolute when Δline != 0").
func EncodeSemanticTokens(tokens []Token) []uint32 {
	sorted := append([]Token(nil), tokens...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Line != sorted[j].Line {
			return sorted[i].Line < sorted[j].Line
		}
		return sorted[i].StartChar < sorted[j].StartChar
	})

	data := make([]uint32, 0, len(sorted)*5)
	var prevLine, prevChar uint32
	first := true
	for _, t := range sorted {
		var deltaLine, deltaChar uint32
		if first {
			deltaLine = t.Line
			deltaChar = t.StartChar
			first = false
		} else {
			deltaLine = t.Line - prevLine
			if deltaLine == 0 {
				deltaChar = t.StartChar - prevChar
			} else {
				deltaChar = t.StartChar
			}
		}
		data = append(data, deltaLine, deltaChar, t.Length, uint32(t.Type), 0)
		prevLine, prevChar = t.Line, t.StartChar
	}
	return data
}
