package symbols

// Kind is the category of a code symbol.
type Kind string

const (
	KindFunction  Kind = "function"
	KindMethod    Kind = "method"
	KindClass     Kind = "class"
	KindInterface Kind = "interface"
	KindType      Kind = "type"
	KindConstant  Kind = "constant"
	KindVariable  Kind = "variable"
)

// Symbol is one named declaration found in a source file.
type Symbol struct {
	Name      string
	Kind      Kind
	StartLine int // 1-indexed, inclusive
	EndLine   int // 1-indexed, inclusive
}

// languageConfig maps a language's tree-sitter node types to Kinds, and
// names the AST field holding a declaration's identifier.
type languageConfig struct {
	name           string
	extensions     []string
	functionTypes  []string
	methodTypes    []string
	classTypes     []string
	interfaceTypes []string
	typeDefTypes   []string
	constantTypes  []string
	variableTypes  []string
	nameField      string
}
