// Package textmodel builds the line-indexed view of a document's text that
// lets the worker translate between LSP's UTF-16 coordinates and the
// compiler service's UTF-8 byte offsets (spec §4.1).
//
// The index this package builds generalizes the line/column arithmetic in
// ConradIrwin/conl-lsp's text_document.go (resolve/unresolve/indexUtf16To8/
// indexUtf8To16), which walks the whole document on every call, into a
// structure built once per Snapshot: line-start byte offsets located with
// binary search, then a linear UTF-16 scan bounded by the matched line.
package textmodel

import (
	"sort"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/sourcekitd/langworker/lsp"
)

// LineTable answers offset/position conversions for one immutable text.
// It never mutates and is safe for concurrent read access once built.
type LineTable struct {
	text       string
	lineStarts []int // byte offset of the first byte of each line
}

// NewLineTable builds a LineTable for text in O(n).
func NewLineTable(text string) *LineTable {
	starts := []int{0}
	for i, b := range []byte(text) {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &LineTable{text: text, lineStarts: starts}
}

// LineCount returns the number of lines (a text with no trailing newline
// still has at least one line).
func (t *LineTable) LineCount() int {
	return len(t.lineStarts)
}

// line returns the raw bytes of line n (without its terminator), or false
// if n is out of range.
func (t *LineTable) line(n int) (string, bool) {
	if n < 0 || n >= len(t.lineStarts) {
		return "", false
	}
	start := t.lineStarts[n]
	end := len(t.text)
	if n+1 < len(t.lineStarts) {
		end = t.lineStarts[n+1] - 1 // exclude the '\n'
		if end > 0 && end <= len(t.text) && end-1 >= start && t.text[end-1] == '\r' {
			end-- // tolerate CRLF that slipped through unnormalized
		}
	}
	if end < start {
		end = start
	}
	return t.text[start:end], true
}

// lineOf returns the line index containing byte offset off via binary
// search over line-start offsets (spec's "O(log n) or better" for line
// location; see DESIGN.md for why the intra-line scan stays linear).
func (t *LineTable) lineOf(off int) int {
	// sort.Search finds the first lineStart > off; the line we want is the
	// one before it.
	i := sort.Search(len(t.lineStarts), func(i int) bool {
		return t.lineStarts[i] > off
	})
	return i - 1
}

// UTF8OffsetOf converts an LSP (line, utf16 column) position into a byte
// offset into text. Returns false for out-of-range input rather than an
// error — callers decide whether that indicates a client bug (spec §4.1,
// §9 Open Question on position robustness).
func (t *LineTable) UTF8OffsetOf(line int, utf16Col uint32) (int, bool) {
	s, ok := t.line(line)
	if !ok {
		return 0, false
	}
	pos := uint32(0)
	for i, r := range s {
		if pos >= utf16Col {
			return t.lineStarts[line] + i, true
		}
		pos += uint32(utf16.RuneLen(r))
	}
	if pos == utf16Col {
		return t.lineStarts[line] + len(s), true
	}
	return 0, false
}

// PositionOfUTF8Offset converts a byte offset into text into an LSP
// (line, utf16 column) position. An offset that falls inside a multi-byte
// UTF-8 sequence is not a valid offset and yields false.
func (t *LineTable) PositionOfUTF8Offset(off int) (lsp.Position, bool) {
	if off < 0 || off > len(t.text) {
		return lsp.Position{}, false
	}
	if off < len(t.text) && !utf8.RuneStart(t.text[off]) {
		return lsp.Position{}, false
	}
	line := t.lineOf(off)
	if line < 0 {
		return lsp.Position{}, false
	}
	s, ok := t.line(line)
	if !ok {
		return lsp.Position{}, false
	}
	byteCol := off - t.lineStarts[line]
	if byteCol < 0 || byteCol > len(s) {
		return lsp.Position{}, false
	}
	col := uint32(0)
	for i, r := range s {
		if i >= byteCol {
			break
		}
		col += uint32(utf16.RuneLen(r))
	}
	return lsp.Position{Line: uint32(line), Character: col}, true
}

// UTF16ColOf converts a (line, utf8 byte column) pair into the equivalent
// utf16 column on that line.
func (t *LineTable) UTF16ColOf(line int, utf8Col int) (uint32, bool) {
	s, ok := t.line(line)
	if !ok {
		return 0, false
	}
	if utf8Col < 0 || utf8Col > len(s) {
		return 0, false
	}
	col := uint32(0)
	for i, r := range s {
		if i >= utf8Col {
			break
		}
		col += uint32(utf16.RuneLen(r))
	}
	return col, true
}
