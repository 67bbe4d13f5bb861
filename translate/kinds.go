// Package translate converts compiler-service structured responses into
// LSP results: symbol kinds, semantic token streams, folding ranges,
// document symbol trees, color literals, and hover markdown. It is
// grounded directly in spec §4.6 and the GLOSSARY's kind-UID tables;
// ConradIrwin/conl-lsp has nothing to generalize here (its validator
// produces its own diagnostics, not a compiler-service response to
// translate), so every table and algorithm below is new, built to the
// spec's own vocabulary and its three worked examples in §8.
package translate

import "github.com/sourcekitd/langworker/lsp"

// symbolKindByUID is the glossary's "Kind UID -> LSP SymbolKind" subset,
// keyed by the compiler service's kind UID name.
var symbolKindByUID = map[string]lsp.SymbolKind{
	"source.lang.swift.decl.class":              lsp.SymbolKindClass,
	"source.lang.swift.decl.struct":              lsp.SymbolKindStruct,
	"source.lang.swift.decl.enum":                lsp.SymbolKindEnum,
	"source.lang.swift.decl.enumelement":         lsp.SymbolKindEnumMember,
	"source.lang.swift.decl.protocol":            lsp.SymbolKindInterface,
	"source.lang.swift.decl.function.free":       lsp.SymbolKindFunction,
	"source.lang.swift.decl.function.method.instance": lsp.SymbolKindMethod,
	"source.lang.swift.decl.function.method.static":   lsp.SymbolKindMethod,
	"source.lang.swift.decl.function.method.class":     lsp.SymbolKindMethod,
	"source.lang.swift.decl.var.instance":        lsp.SymbolKindProperty,
	"source.lang.swift.decl.var.static":          lsp.SymbolKindProperty,
	"source.lang.swift.decl.var.class":           lsp.SymbolKindProperty,
	"source.lang.swift.decl.var.global":          lsp.SymbolKindVariable,
	"source.lang.swift.decl.var.local":           lsp.SymbolKindVariable,
	"source.lang.swift.decl.generic_type_param":  lsp.SymbolKindTypeParameter,
	"source.lang.swift.decl.extension":           lsp.SymbolKindNamespace,
}

// SymbolKindForUID maps a compiler-service kind UID name to the LSP
// SymbolKind it corresponds to, falling back to SymbolKindVariable for any
// kind not enumerated in the glossary's subset (malformed/unrecognized
// daemon data must degrade, never crash the worker, per spec §7).
func SymbolKindForUID(kindUID string) lsp.SymbolKind {
	if k, ok := symbolKindByUID[kindUID]; ok {
		return k
	}
	return lsp.SymbolKindVariable
}

// SemanticTokenType is one entry in the legend reported at initialize
// time (spec §4.6 "Initialize").
type SemanticTokenType int

const (
	TokenKeyword SemanticTokenType = iota
	TokenNamespace
	TokenClass
	TokenStruct
	TokenEnum
	TokenInterface
	TokenTypeParameter
	TokenFunction
	TokenOperator
	TokenProperty
	TokenVariable
	TokenParameter
	TokenType
)

// TokenTypeNames is the legend's tokenTypes array, in the same order as
// the SemanticTokenType constants, reported verbatim at initialize time.
var TokenTypeNames = []string{
	"keyword", "namespace", "class", "struct", "enum", "interface",
	"typeParameter", "function", "operator", "property", "variable",
	"parameter", "type",
}

var tokenTypeByUID = map[string]SemanticTokenType{
	"source.lang.swift.syntaxtype.keyword": TokenKeyword,
	"source.lang.swift.decl.module": TokenNamespace,
	"source.lang.swift.decl.class":  TokenClass,
	"source.lang.swift.decl.struct": TokenStruct,
	"source.lang.swift.decl.enum":   TokenEnum,
	"source.lang.swift.decl.protocol": TokenInterface,
	"source.lang.swift.decl.associatedtype":    TokenTypeParameter,
	"source.lang.swift.decl.typealias":         TokenTypeParameter,
	"source.lang.swift.decl.generic_type_param": TokenTypeParameter,
	"source.lang.swift.decl.function.method.free":     TokenFunction,
	"source.lang.swift.decl.function.method.instance": TokenFunction,
	"source.lang.swift.decl.function.method.static":   TokenFunction,
	"source.lang.swift.decl.function.method.class":    TokenFunction,
	"source.lang.swift.ref.function.operator.prefix":  TokenOperator,
	"source.lang.swift.ref.function.operator.postfix": TokenOperator,
	"source.lang.swift.ref.function.operator.infix":    TokenOperator,
	"source.lang.swift.decl.var.static":   TokenProperty,
	"source.lang.swift.decl.var.class":    TokenProperty,
	"source.lang.swift.decl.var.instance": TokenProperty,
	"source.lang.swift.decl.var.local":  TokenVariable,
	"source.lang.swift.decl.var.global": TokenVariable,
	"source.lang.swift.decl.var.parameter": TokenParameter,
	"source.lang.swift.ref.module":      TokenVariable,
	"source.lang.swift.ref.class":       TokenVariable,
	"source.lang.swift.ref.struct":      TokenVariable,
	"source.lang.swift.ref.var.global":  TokenVariable,
	"source.lang.swift.ref.var.local":   TokenVariable,
	"source.lang.swift.type.identifier": TokenType,
}

// SemanticTokenTypeForUID maps a compiler-service kind UID to a
// SemanticTokenType. The bool result is false for a kind UID with no
// entry in the glossary's subset, telling the caller to drop the token
// before encoding rather than guess (spec §4.6 "Unknown token types are
// dropped before encoding").
func SemanticTokenTypeForUID(kindUID string) (SemanticTokenType, bool) {
	t, ok := tokenTypeByUID[kindUID]
	return t, ok
}
