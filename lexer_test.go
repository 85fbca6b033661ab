package jarl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, input string) []Token {
	t.Helper()
	lx := NewLexer([]byte(input))
	var toks []Token
	for {
		tok, err := lx.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Kind == KEOF {
			break
		}
	}
	return toks
}

func TestLexNumbers(t *testing.T) {
	toks := lexAll(t, "42 3.14")
	require.Len(t, toks, 3)
	assert.Equal(t, KInt, toks[0].Kind)
	assert.EqualValues(t, 42, toks[0].Int)
	assert.Equal(t, KFloat, toks[1].Kind)
	assert.InDelta(t, 3.14, toks[1].Float, 0.0001)
}

func TestLexString(t *testing.T) {
	toks := lexAll(t, `"hello\nworld"`)
	require.Len(t, toks, 2)
	assert.Equal(t, KString, toks[0].Kind)
	assert.Equal(t, "hello\nworld", toks[0].Text)
}

func TestLexIdentifiersAndKeywords(t *testing.T) {
	toks := lexAll(t, "foo var if bar")
	require.Len(t, toks, 5)
	assert.Equal(t, KIdentifier, toks[0].Kind)
	assert.Equal(t, "foo", toks[0].Text)
	assert.Equal(t, KVar, toks[1].Kind)
	assert.Equal(t, KIf, toks[2].Kind)
	assert.Equal(t, KIdentifier, toks[3].Kind)
}

func TestLexOperators(t *testing.T) {
	toks := lexAll(t, "<=> == != >= <= ++= ++ .. <- +=")
	kinds := make([]Kind, 0, len(toks))
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []Kind{
		KCmp, KEq, KNeq, KGeq, KLeq, KAppendAssign, KAppend, KDotDot, KInsert, KPlusAssign, KEOF,
	}, kinds)
}

func TestLexSkipsCommentsAndWhitespace(t *testing.T) {
	toks := lexAll(t, "1 # a comment\n  + 2")
	require.Len(t, toks, 5)
	assert.Equal(t, KInt, toks[0].Kind)
	assert.Equal(t, KNewline, toks[1].Kind)
	assert.Equal(t, KPlus, toks[2].Kind)
	assert.Equal(t, KInt, toks[3].Kind)
}

func TestLexLineTracking(t *testing.T) {
	lx := NewLexer([]byte("1\n2\n3"))
	var lines []int
	for {
		tok, err := lx.Next()
		require.NoError(t, err)
		if tok.Kind == KEOF {
			break
		}
		lines = append(lines, lx.lineIndex.LineAt(tok.Pos.Start))
	}
	assert.Equal(t, []int{1, 1, 2, 2, 3}, lines)
}
