package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func lexAll(src string) []Token {
	l := NewLexer(src)
	var toks []Token
	for {
		tok := l.Next()
		toks = append(toks, tok)
		if tok.Kind == TokEOF {
			return toks
		}
	}
}

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, tok := range toks {
		out[i] = tok.Kind
	}
	return out
}

func TestLexerKeywordsAndIdents(t *testing.T) {
	toks := lexAll(`fn foo var`)
	assert.Equal(t, []Kind{TokKwFn, TokIdent, TokKwVar, TokEOF}, kinds(toks))
	assert.Equal(t, "foo", toks[1].Text)
}

func TestLexerNumber(t *testing.T) {
	toks := lexAll(`42 3.5`)
	assert.Equal(t, TokNumber, toks[0].Kind)
	assert.Equal(t, float64(42), toks[0].Num)
	assert.Equal(t, TokNumber, toks[1].Kind)
	assert.Equal(t, 3.5, toks[1].Num)
}

func TestLexerString(t *testing.T) {
	toks := lexAll(`"hello world"`)
	assert.Equal(t, TokString, toks[0].Kind)
	assert.Equal(t, "hello world", toks[0].Text)
}

func TestLexerStringNormalizesCRLF(t *testing.T) {
	toks := lexAll("\"line one\r\nline two\"")
	assert.Equal(t, TokString, toks[0].Kind)
	assert.Equal(t, "line one\nline two", toks[0].Text)
}

func TestLexerFString(t *testing.T) {
	toks := lexAll(`f"hi {name}"`)
	assert.Equal(t, TokFString, toks[0].Kind)
	assert.Equal(t, "hi {name}", toks[0].Text)
}

func TestLexerOperators(t *testing.T) {
	toks := lexAll(`== != <= >= :: ... ->`)
	assert.Equal(t, []Kind{
		TokEqEq, TokBangEq, TokLe, TokGe, TokColonColon, TokDotDotDot, TokArrow, TokEOF,
	}, kinds(toks))
}

func TestLexerDotDotDotVsDot(t *testing.T) {
	toks := lexAll(`a.b a...b`)
	assert.Equal(t, []Kind{
		TokIdent, TokDot, TokIdent, TokIdent, TokDotDotDot, TokIdent, TokEOF,
	}, kinds(toks))
}

func TestLexerLineNumbers(t *testing.T) {
	toks := lexAll("var x\nvar y")
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[3].Line)
}

func TestLexerSnapshotRestore(t *testing.T) {
	l := NewLexer(`a b c`)
	first := l.Next()
	assert.Equal(t, "a", first.Text)

	snap := l.snapshot()
	second := l.Next()
	assert.Equal(t, "b", second.Text)

	l.restore(snap)
	replay := l.Next()
	assert.Equal(t, "b", replay.Text, "restore must rewind to the snapshot point")
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "+", TokPlus.String())
	assert.Equal(t, "identifier", TokIdent.String())
}
