package textmodel

import (
	"regexp"
	"strings"

	"github.com/sourcekitd/langworker/lsp"
)

var lineEndRe = regexp.MustCompile(`\r\n?`)

func normalizeNewlines(s string) string {
	if strings.Contains(s, "\r") {
		return lineEndRe.ReplaceAllString(s, "\n")
	}
	return s
}

// Snapshot is the immutable {uri, version, text} triple of spec §3, plus
// its derived LineTable. A Snapshot never changes after construction;
// documents.Manager produces a new one for every open/edit.
type Snapshot struct {
	URI     lsp.DocumentURI
	Version int64
	Text    string
	Lines   *LineTable
}

// New builds a Snapshot, normalizing CRLF/CR line endings to LF the way
// ConradIrwin/conl-lsp's TextDocument does, so offset arithmetic never has
// to special-case carriage returns.
func New(uri lsp.DocumentURI, version int64, text string) *Snapshot {
	text = normalizeNewlines(text)
	return &Snapshot{
		URI:     uri,
		Version: version,
		Text:    text,
		Lines:   NewLineTable(text),
	}
}

// WithText returns a new Snapshot at version with text, reusing nothing
// from the receiver: Snapshots are immutable, so every edit builds a fresh
// one rather than mutating in place.
func (s *Snapshot) WithText(version int64, text string) *Snapshot {
	return New(s.URI, version, text)
}
