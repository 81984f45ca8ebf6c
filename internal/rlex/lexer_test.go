package rlex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func collect(src string) []Token {
	l := New(src)
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == EOF {
			return toks
		}
	}
}

func TestLexesIdentifiersKeywordsAndConsts(t *testing.T) {
	toks := collect("def foo(x)\n  Bar.new\nend")
	require.Equal(t, Keyword, toks[0].Kind)
	require.Equal(t, "def", toks[0].Value)
	require.Equal(t, Ident, toks[1].Kind)
	require.Equal(t, "foo", toks[1].Value)

	var sawConst bool
	for _, tok := range toks {
		if tok.Kind == Const && tok.Value == "Bar" {
			sawConst = true
		}
	}
	require.True(t, sawConst)
}

func TestLexesIntAndFloat(t *testing.T) {
	toks := collect("1 2.5 0xFF")
	require.Equal(t, Int, toks[0].Kind)
	require.EqualValues(t, 1, toks[0].IValue)
	require.Equal(t, Float, toks[1].Kind)
	require.InDelta(t, 2.5, toks[1].FValue, 0.0001)
	require.Equal(t, Int, toks[2].Kind)
	require.EqualValues(t, 255, toks[2].IValue)
}

func TestLexesStringWithEscapes(t *testing.T) {
	toks := collect(`"a\nb"`)
	require.Equal(t, String, toks[0].Kind)
	require.Equal(t, "a\nb", toks[0].Value)
}

func TestLexesIvarCvarGvarAndSymbol(t *testing.T) {
	toks := collect("@x @@y $z :sym")
	require.Equal(t, IVar, toks[0].Kind)
	require.Equal(t, CVar, toks[1].Kind)
	require.Equal(t, GVar, toks[2].Kind)
	require.Equal(t, Symbol, toks[3].Kind)
}

func TestLexesMultiCharOperators(t *testing.T) {
	toks := collect("a <=> b && c")
	require.Equal(t, "<=>", toks[1].Value)
	require.Equal(t, "&&", toks[3].Value)
}

func TestHeredocQueueAndPop(t *testing.T) {
	l := New("x = 1\nfoo\nbar\nEOS\nrest")
	l.QueueHeredoc(HeredocTag{Tag: "EOS"})
	// advance the cursor past the first newline manually to simulate
	// the parser consuming `x = 1\n` before popping the body.
	for l.peek() != '\n' {
		l.advance()
	}
	l.advance()
	body, tag, ok := l.PopHeredocBody()
	require.True(t, ok)
	require.Equal(t, "EOS", tag.Tag)
	require.Equal(t, "foo\nbar\n", body)
}
