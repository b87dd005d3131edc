package symbols

import (
	"context"
	"path/filepath"

	sitter "github.com/smacker/go-tree-sitter"

	lumenerrors "github.com/lumenary/lumen/internal/errors"
)

// Extract parses source as the language registered for path's extension and
// returns every symbol it recognizes at any depth of the syntax tree,
// nested declarations included. A path with no registered
// grammar returns (nil, nil): the caller should treat that as "nothing to
// annotate," not an error.
func Extract(ctx context.Context, path string, source []byte) ([]Symbol, error) {
	cfg, lang, ok := defaultRegistry.byExtension(filepath.Ext(path))
	if !ok {
		return nil, nil
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, lumenerrors.ExtractionErr("failed to parse source for symbol extraction", err).WithDetail("path", path)
	}
	if tree == nil {
		return nil, lumenerrors.ExtractionErr("tree-sitter returned a nil tree", nil).WithDetail("path", path)
	}
	defer tree.Close()

	var symbols []Symbol
	root := tree.RootNode()
	walk(root, func(n *sitter.Node) {
		kind, ok := kindForNodeType(cfg, n.Type())
		if !ok {
			return
		}
		name := identifierName(n, cfg.nameField, source)
		if name == "" {
			return
		}
		symbols = append(symbols, Symbol{
			Name:      name,
			Kind:      kind,
			StartLine: int(n.StartPoint().Row) + 1,
			EndLine:   int(n.EndPoint().Row) + 1,
		})
	})
	return symbols, nil
}

func walk(n *sitter.Node, visit func(*sitter.Node)) {
	if n == nil {
		return
	}
	visit(n)
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}

func kindForNodeType(cfg languageConfig, nodeType string) (Kind, bool) {
	switch {
	case contains(cfg.functionTypes, nodeType):
		return KindFunction, true
	case contains(cfg.methodTypes, nodeType):
		return KindMethod, true
	case contains(cfg.classTypes, nodeType):
		return KindClass, true
	case contains(cfg.interfaceTypes, nodeType):
		return KindInterface, true
	case contains(cfg.typeDefTypes, nodeType):
		return KindType, true
	case contains(cfg.constantTypes, nodeType):
		return KindConstant, true
	case contains(cfg.variableTypes, nodeType):
		return KindVariable, true
	default:
		return "", false
	}
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// identifierName finds the name of a declaration node: first by the
// language's named field, falling back to the first direct child whose
// type is "identifier" or "type_identifier" (covers Go's
// type_declaration -> type_spec -> identifier shape, and JS/TS lexical
// declarations where the name sits one level deeper).
func identifierName(n *sitter.Node, nameField string, source []byte) string {
	if nameField != "" {
		if field := n.ChildByFieldName(nameField); field != nil {
			return nodeText(field, source)
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		child := n.Child(i)
		switch child.Type() {
		case "identifier", "type_identifier", "property_identifier":
			return nodeText(child, source)
		case "type_spec", "variable_declarator":
			if name := identifierName(child, "name", source); name != "" {
				return name
			}
		}
	}
	return ""
}

func nodeText(n *sitter.Node, source []byte) string {
	start, end := n.StartByte(), n.EndByte()
	if start >= end || int(end) > len(source) {
		return ""
	}
	return string(source[start:end])
}
