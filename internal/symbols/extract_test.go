package symbols

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goSource = `package sample

func Add(a, b int) int {
	return a + b
}

type Counter struct {
	value int
}

func (c *Counter) Increment() {
	c.value++
}

const MaxRetries = 3
`

func TestExtract_GoFindsFunctionsTypesAndMethods(t *testing.T) {
	syms, err := Extract(context.Background(), "sample.go", []byte(goSource))
	require.NoError(t, err)
	require.NotEmpty(t, syms)

	names := make(map[string]Kind)
	for _, s := range syms {
		names[s.Name] = s.Kind
	}

	assert.Equal(t, KindFunction, names["Add"])
	assert.Equal(t, KindMethod, names["Increment"])
}

func TestExtract_UnsupportedExtensionReturnsNilWithoutError(t *testing.T) {
	syms, err := Extract(context.Background(), "notes.txt", []byte("plain text, no grammar"))
	require.NoError(t, err)
	assert.Nil(t, syms)
}

func TestExtract_PythonFindsFunctionsAndClasses(t *testing.T) {
	source := `
def compute(x, y):
    return x + y


class Widget:
    def render(self):
        pass
`
	syms, err := Extract(context.Background(), "sample.py", []byte(source))
	require.NoError(t, err)

	var sawFunction, sawClass bool
	for _, s := range syms {
		if s.Name == "compute" && s.Kind == KindFunction {
			sawFunction = true
		}
		if s.Name == "Widget" && s.Kind == KindClass {
			sawClass = true
		}
	}
	assert.True(t, sawFunction)
	assert.True(t, sawClass)
}

func TestSupportsExtension(t *testing.T) {
	assert.True(t, SupportsExtension(".go"))
	assert.True(t, SupportsExtension(".PY"))
	assert.False(t, SupportsExtension(".md"))
}

func TestAnnotateChunks_TagsChunkContainingSymbolName(t *testing.T) {
	syms := []Symbol{{Name: "Add", Kind: KindFunction}, {Name: "Counter", Kind: KindType}}
	chunks := []string{
		"func Add(a, b int) int { return a + b }",
		"some unrelated prose chunk",
	}

	annotations := AnnotateChunks(chunks, syms)
	require.Len(t, annotations, 2)
	assert.Equal(t, "Add", annotations[0])
	assert.Equal(t, "", annotations[1])
}

func TestAnnotateChunks_NoSymbolsReturnsAllEmpty(t *testing.T) {
	annotations := AnnotateChunks([]string{"a", "b"}, nil)
	assert.Equal(t, []string{"", ""}, annotations)
}
