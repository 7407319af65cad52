package astparse

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGoExtractsFunctionAndExport(t *testing.T) {
	p := New()
	defer p.Close()

	src := []byte(`package main

func Foo() int {
	return 1
}

func bar() {}
`)

	result, err := p.Parse(context.Background(), src, "go")
	require.NoError(t, err)
	require.Len(t, result.Symbols, 2)

	var foo, bar *Symbol
	for i := range result.Symbols {
		switch result.Symbols[i].Name {
		case "Foo":
			foo = &result.Symbols[i]
		case "bar":
			bar = &result.Symbols[i]
		}
	}
	require.NotNil(t, foo)
	require.NotNil(t, bar)
	assert.True(t, foo.IsExported)
	assert.False(t, bar.IsExported)
	assert.Contains(t, result.Exports, "Foo")
	assert.NotContains(t, result.Exports, "bar")
}

func TestParseGoMethodHasClassParent(t *testing.T) {
	p := New()
	defer p.Close()

	src := []byte(`package main

type Counter struct{}

func (c *Counter) Inc() {}
`)

	result, err := p.Parse(context.Background(), src, "go")
	require.NoError(t, err)

	var method *Symbol
	for i := range result.Symbols {
		if result.Symbols[i].Name == "Inc" {
			method = &result.Symbols[i]
		}
	}
	require.NotNil(t, method)
	assert.Equal(t, "Counter", method.ParentName)
}

func TestParseUnsupportedLanguageReturnsEmptyResult(t *testing.T) {
	p := New()
	defer p.Close()

	result, err := p.Parse(context.Background(), []byte("# heading"), "markdown")
	require.NoError(t, err)
	assert.Empty(t, result.Symbols)
	assert.Empty(t, result.Diagnostic)
}

func TestLocationNeverEmitsUndefined(t *testing.T) {
	p := New()
	defer p.Close()

	src := []byte("package main\n\nfunc F() {}\n")
	result, err := p.Parse(context.Background(), src, "go")
	require.NoError(t, err)
	require.NotEmpty(t, result.Symbols)

	for _, s := range result.Symbols {
		assert.NotContains(t, s.Location, "undefined")
	}
}

func TestTypeScriptExportedFunctionDetected(t *testing.T) {
	p := New()
	defer p.Close()

	src := []byte(`export function foo() { return 1; }
function bar() {}
`)
	result, err := p.Parse(context.Background(), src, "typescript")
	require.NoError(t, err)

	var foo, bar *Symbol
	for i := range result.Symbols {
		switch result.Symbols[i].Name {
		case "foo":
			foo = &result.Symbols[i]
		case "bar":
			bar = &result.Symbols[i]
		}
	}
	require.NotNil(t, foo)
	require.NotNil(t, bar)
	assert.True(t, foo.IsExported)
	assert.False(t, bar.IsExported)
}
