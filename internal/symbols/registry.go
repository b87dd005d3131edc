package symbols

import (
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
)

// registry maps file extensions to tree-sitter grammars and their node-type
// conventions. It is built once at package init and is read-only afterward.
type registry struct {
	mu        sync.RWMutex
	configs   map[string]languageConfig
	extToLang map[string]string
	tsLangs   map[string]*sitter.Language
}

func newRegistry() *registry {
	r := &registry{
		configs:   make(map[string]languageConfig),
		extToLang: make(map[string]string),
		tsLangs:   make(map[string]*sitter.Language),
	}
	r.register(languageConfig{
		name:          "go",
		extensions:    []string{".go"},
		functionTypes: []string{"function_declaration"},
		methodTypes:   []string{"method_declaration"},
		typeDefTypes:  []string{"type_declaration"},
		constantTypes: []string{"const_declaration"},
		variableTypes: []string{"var_declaration"},
		nameField:     "name",
	}, golang.GetLanguage())

	ts := languageConfig{
		name:           "typescript",
		extensions:     []string{".ts"},
		functionTypes:  []string{"function_declaration"},
		methodTypes:    []string{"method_definition"},
		classTypes:     []string{"class_declaration"},
		interfaceTypes: []string{"interface_declaration"},
		typeDefTypes:   []string{"type_alias_declaration"},
		constantTypes:  []string{"lexical_declaration"},
		variableTypes:  []string{"variable_declaration"},
		nameField:      "name",
	}
	r.register(ts, typescript.GetLanguage())
	tsxCfg := ts
	tsxCfg.name = "tsx"
	tsxCfg.extensions = []string{".tsx"}
	r.register(tsxCfg, tsx.GetLanguage())

	js := languageConfig{
		name:          "javascript",
		extensions:    []string{".js", ".mjs"},
		functionTypes: []string{"function_declaration", "function"},
		methodTypes:   []string{"method_definition"},
		classTypes:    []string{"class_declaration"},
		constantTypes: []string{"lexical_declaration"},
		variableTypes: []string{"variable_declaration"},
		nameField:     "name",
	}
	r.register(js, javascript.GetLanguage())
	jsx := js
	jsx.name = "jsx"
	jsx.extensions = []string{".jsx"}
	r.register(jsx, javascript.GetLanguage())

	r.register(languageConfig{
		name:          "python",
		extensions:    []string{".py"},
		functionTypes: []string{"function_definition"},
		classTypes:    []string{"class_definition"},
		variableTypes: []string{"assignment"},
		nameField:     "name",
	}, python.GetLanguage())

	return r
}

func (r *registry) register(cfg languageConfig, lang *sitter.Language) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.name] = cfg
	r.tsLangs[cfg.name] = lang
	for _, ext := range cfg.extensions {
		r.extToLang[ext] = cfg.name
	}
}

func (r *registry) byExtension(ext string) (languageConfig, *sitter.Language, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.extToLang[strings.ToLower(ext)]
	if !ok {
		return languageConfig{}, nil, false
	}
	return r.configs[name], r.tsLangs[name], true
}

var defaultRegistry = newRegistry()

// SupportsExtension reports whether ext (including the leading dot) has a
// registered tree-sitter grammar.
func SupportsExtension(ext string) bool {
	_, _, ok := defaultRegistry.byExtension(ext)
	return ok
}
