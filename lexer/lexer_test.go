package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexEmptyInput(t *testing.T) {
	toks, err := New("").Lex()
	require.NoError(t, err)
	assert.Equal(t, []Token{{Kind: EOF, Line: 1, Col: 1}}, toks)
}

func TestLexIdentifiersAndAtSymbol(t *testing.T) {
	toks, err := New("sum(pressure) as @total").Lex()
	require.NoError(t, err)
	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []Kind{Ident, LParen, Ident, RParen, Ident, AtSymbol, EOF}, kinds)
}

func TestLexDottedAttribute(t *testing.T) {
	toks, err := New("dict.m").Lex()
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, Ident, toks[0].Kind)
	assert.Equal(t, "dict.m", toks[0].Value)
}

func TestLexStringLiteral(t *testing.T) {
	toks, err := New("'hello world'").Lex()
	require.NoError(t, err)
	require.Len(t, toks, 2)
	assert.Equal(t, String, toks[0].Kind)
	assert.Equal(t, "hello world", toks[0].Value)
}

func TestLexNumbers(t *testing.T) {
	toks, err := New("3.5 42").Lex()
	require.NoError(t, err)
	var vals []string
	for _, tok := range toks {
		if tok.Kind == Number {
			vals = append(vals, tok.Value)
		}
	}
	assert.Equal(t, []string{"3.5", "42"}, vals)
}

func TestLexMinusIsAlwaysASeparateToken(t *testing.T) {
	toks, err := New("a-3 -3").Lex()
	require.NoError(t, err)
	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []Kind{Ident, Minus, Number, Minus, Number, EOF}, kinds)
}

func TestLexOperatorsAndAssign(t *testing.T) {
	toks, err := New("@a := @b + 1 >= 2 != 3").Lex()
	require.NoError(t, err)
	var kinds []Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []Kind{AtSymbol, Assign, AtSymbol, Plus, Number, Ge, Number, Ne, Number, EOF}, kinds)
}

func TestLexTracksLineAndColumn(t *testing.T) {
	toks, err := New("a\nb").Lex()
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
	assert.Equal(t, 1, toks[1].Col)
}

func TestLexUnterminatedStringErrors(t *testing.T) {
	_, err := New("'oops").Lex()
	require.Error(t, err)
}
