package rdisasm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clarete/rembed/rcodegen"
	"github.com/clarete/rembed/rparser"
	"github.com/clarete/rembed/rsym"
)

func TestWriteListsEveryMnemonicAndResolvesSymbols(t *testing.T) {
	symbols := rsym.NewTable()
	p := rparser.New("puts 1 + 2\n", "test")
	prog, errs := p.ParseProgram()
	require.Empty(t, errs)

	irep, err := rcodegen.Generate(symbols, prog.Body)
	require.NoError(t, err)

	out := String(irep, symbols)
	assert.Contains(t, out, "IREP nregs=")
	assert.Contains(t, out, "STOP")
	assert.Contains(t, out, "; puts")
}

func TestWriteRecursesIntoKids(t *testing.T) {
	symbols := rsym.NewTable()
	p := rparser.New("def greet\n  1\nend\n", "test")
	prog, errs := p.ParseProgram()
	require.Empty(t, errs)

	irep, err := rcodegen.Generate(symbols, prog.Body)
	require.NoError(t, err)
	require.NotEmpty(t, irep.Kids, "def should compile its body into a child IREP")

	out := String(irep, symbols)
	assert.True(t, strings.Contains(out, "kid[0]"))
}
