package jarl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseExpr(t *testing.T, src string) *Node {
	t.Helper()
	ast, err := ParseProgram([]byte(src))
	require.NoError(t, err)
	require.Equal(t, NBlock, ast.Kind)
	stmts := flattenSeq(ast.Child)
	require.Len(t, stmts, 1)
	return stmts[0]
}

func TestParseArithmeticPrecedence(t *testing.T) {
	n := parseExpr(t, "1 + 2 * 3")
	require.Equal(t, NAdd, n.Kind)
	assert.Equal(t, NIntLit, n.Left.Kind)
	require.Equal(t, NMul, n.Right.Kind)
}

func TestParseJuxtapositionIsApplication(t *testing.T) {
	n := parseExpr(t, "f x")
	require.Equal(t, NApply, n.Kind)
	assert.Equal(t, "f", n.Left.Str)
	assert.Equal(t, "x", n.Right.Str)
}

func TestParseApplicationBindsTighterThanArithmetic(t *testing.T) {
	// `f x + 1` parses as `(f x) + 1`, not `f (x + 1)`, since bpApply
	// outranks bpAdditive.
	n := parseExpr(t, "f x + 1")
	require.Equal(t, NAdd, n.Kind)
	require.Equal(t, NApply, n.Left.Kind)
	assert.Equal(t, NIntLit, n.Right.Kind)
}

func TestParseIfRequiresParensToBeUsedAsAnOperand(t *testing.T) {
	// Keyword statement heads are nud-only (bpNone), so a bare if can't
	// be swallowed as a juxtaposition argument; parens are required.
	n := parseExpr(t, "(if true:1 else 2) + (if false:10 else 20)")
	require.Equal(t, NAdd, n.Kind)
	assert.Equal(t, NIf, n.Left.Kind)
	assert.Equal(t, NIf, n.Right.Kind)
}

func TestParseIndexVsArrayLiteral(t *testing.T) {
	n := parseExpr(t, "a[0]")
	require.Equal(t, NIndex, n.Kind)
	assert.Equal(t, NIdent, n.Left.Kind)

	arr := parseExpr(t, "[1, 2, 3]")
	require.Equal(t, NArray, arr.Kind)
}

func TestParseSliceWithOpenBounds(t *testing.T) {
	n := parseExpr(t, "a[:2]")
	require.Equal(t, NSlice, n.Kind)
	bounds := n.Right
	assert.Nil(t, bounds.Left)
	require.NotNil(t, bounds.Right)

	n2 := parseExpr(t, "a[1:]")
	bounds2 := n2.Right
	require.NotNil(t, bounds2.Left)
	assert.Nil(t, bounds2.Right)
}

func TestParseRangeLiteral(t *testing.T) {
	n := parseExpr(t, "[0..5]")
	require.Equal(t, NArray, n.Kind)
	require.Equal(t, NRange, n.Child.Kind)
}

func TestParseVarDeclAndAssign(t *testing.T) {
	n := parseExpr(t, "var x = 10")
	require.Equal(t, NVarDecl, n.Kind)
	assert.Equal(t, "x", n.Str)
	assert.Equal(t, NIntLit, n.Child.Kind)
}

func TestParseCompoundIndexAssign(t *testing.T) {
	n := parseExpr(t, "a[0] += 1")
	require.Equal(t, NIndexAssign, n.Kind)
	assert.Equal(t, NPlusAssign, NodeKind(n.Int))
	require.Equal(t, NIndex, n.Left.Kind)
}

func TestParseFuncLiteral(t *testing.T) {
	n := parseExpr(t, "func(a, b) { return a + b }")
	require.Equal(t, NFunc, n.Kind)
	assert.Equal(t, []string{"a", "b"}, n.Params)
	require.NotNil(t, n.Body)
}

func TestParseForIn(t *testing.T) {
	n := parseExpr(t, "for x in [1,2,3]: print x")
	require.Equal(t, NForIn, n.Kind)
	header := n.Left
	require.Equal(t, NForHeader, header.Kind)
	assert.Equal(t, []string{"x"}, header.Params)
}

func TestParseForInTupleDestructuring(t *testing.T) {
	n := parseExpr(t, "for (k, v) in t: print k")
	header := n.Left
	assert.Equal(t, []string{"k", "v"}, header.Params)
}

func TestParseTableLiteral(t *testing.T) {
	n := parseExpr(t, `{a: 1, "b": 2}`)
	require.Equal(t, NTable, n.Kind)
	pairs := flattenCommaLeft(n.Child)
	require.Len(t, pairs, 2)
	assert.Equal(t, NKeyValue, pairs[0].Kind)
}

func TestParseMoveExpression(t *testing.T) {
	n := parseExpr(t, "move x")
	require.Equal(t, NMove, n.Kind)
	assert.Equal(t, NIdent, n.Child.Kind)
}

func TestParseUnexpectedTokenIsDiagnostic(t *testing.T) {
	_, err := ParseProgram([]byte("1 +"))
	require.Error(t, err)
	var d Diagnostic
	assert.ErrorAs(t, err, &d)
}
