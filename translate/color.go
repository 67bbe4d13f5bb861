package translate

import (
	"fmt"
	"strconv"

	"github.com/sourcekitd/langworker/lsp"
	"github.com/sourcekitd/langworker/textmodel"
)

const colorLiteralKind = "colorLiteral"

// DocumentColors walks the substructure for expression nodes named
// colorLiteral and extracts the four child substrings named
// red/green/blue/alpha, parsed as floating point (spec §4.6 "Document
// color"). A node missing any of the four channels is skipped rather than
// failing the whole request.
func DocumentColors(lines *textmodel.LineTable, nodes []Node, source string) []lsp.ColorInformation {
	var out []lsp.ColorInformation
	var walk func(ns []Node)
	walk = func(ns []Node) {
		for _, n := range ns {
			if n.Name == colorLiteralKind {
				if c, ok := parseColorLiteral(n, source); ok {
					out = append(out, lsp.ColorInformation{
						Range: byteRange(lines, n.BodyOffset, n.BodyOffset+n.BodyLength),
						Color: c,
					})
				}
			}
			walk(n.Children)
		}
	}
	walk(nodes)
	return out
}

func parseColorLiteral(n Node, source string) (lsp.Color, bool) {
	red, ok := channelValue(n, "red", source)
	if !ok {
		return lsp.Color{}, false
	}
	green, ok := channelValue(n, "green", source)
	if !ok {
		return lsp.Color{}, false
	}
	blue, ok := channelValue(n, "blue", source)
	if !ok {
		return lsp.Color{}, false
	}
	alpha, ok := channelValue(n, "alpha", source)
	if !ok {
		return lsp.Color{}, false
	}
	return lsp.Color{Red: red, Green: green, Blue: blue, Alpha: alpha}, true
}

func channelValue(n Node, name string, source string) (float64, bool) {
	child, ok := n.ChildrenByName[name]
	if !ok {
		return 0, false
	}
	if child.BodyOffset < 0 || child.BodyOffset+child.BodyLength > len(source) {
		return 0, false
	}
	text := source[child.BodyOffset : child.BodyOffset+child.BodyLength]
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ColorPresentation builds the #colorLiteral(...) insertion text for a
// given color, per spec §4.6.
func ColorPresentation(c lsp.Color) lsp.ColorPresentation {
	label := fmt.Sprintf("#colorLiteral(red: %v, green: %v, blue: %v, alpha: %v)", c.Red, c.Green, c.Blue, c.Alpha)
	return lsp.ColorPresentation{Label: label}
}
