package translate

import (
	"regexp"
	"strings"
)

var (
	markdownEscapeRe = regexp.MustCompile(`([\\` + "`" + `*_{}\[\]()#+\-.!])`)
	xmlTagRe         = regexp.MustCompile(`<[^>]+>`)
)

// escapeMarkdownName backslash-escapes Markdown metacharacters in name so
// it renders literally in hover text (spec §4.6 "backslash-escaped name").
func escapeMarkdownName(name string) string {
	return markdownEscapeRe.ReplaceAllString(name, `\$1`)
}

// renderXMLToMarkdown strips the compiler service's lightweight XML
// markup (used for both doc comments and annotated declarations) down to
// plain text suitable for Markdown, collapsing runs of blank lines.
func renderXMLToMarkdown(xml string) string {
	text := xmlTagRe.ReplaceAllString(xml, "")
	text = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&", "&quot;", `"`, "&apos;", "'").Replace(text)
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if trimmed := strings.TrimSpace(l); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return strings.Join(out, "\n")
}

// HoverMarkdown builds the hover panel's Markdown body, per spec §4.6: the
// backslash-escaped symbol name followed by the rendered XML
// documentation if present, else the rendered annotated declaration.
// Returns "" if name is empty (no cursor info to show).
func HoverMarkdown(name, xmlDoc, annotatedDecl string) string {
	if name == "" {
		return ""
	}
	header := escapeMarkdownName(name)
	switch {
	case xmlDoc != "":
		return header + "\n\n" + renderXMLToMarkdown(xmlDoc)
	case annotatedDecl != "":
		return header + "\n\n```swift\n" + renderXMLToMarkdown(annotatedDecl) + "\n```"
	default:
		return header
	}
}
