package translate

// SyntaxToken is one entry of the compiler service's syntax map: a
// lexical classification over a byte range (spec glossary "Syntax map").
type SyntaxToken struct {
	Kind   string // e.g. "source.lang.swift.syntaxtype.keyword", "...comment"
	Offset int
	Length int
}

// Node is one entry of the compiler service's substructure tree (spec
// glossary "Substructure"): a declaration or expression, recursively
// nested. Fields are named after the request keys they come from.
type Node struct {
	Kind           string // e.g. "source.lang.swift.decl.class", or "source.lang.swift.expr.call" for colorLiteral
	Name           string
	BodyOffset     int
	BodyLength     int
	NameOffset     int // byte offset of the name substring in the source text, -1 if absent
	NameLength     int
	Children       []Node
	ChildrenByName map[string]Node // populated for colorLiteral argument nodes (red/green/blue/alpha)
}

func (n Node) hasNameRange() bool {
	return n.NameLength > 0 || n.NameOffset > 0
}
