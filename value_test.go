package jarl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArrayGetNegativeIndexWraparound(t *testing.T) {
	a := NewArray([]Value{IntValue(10), IntValue(20), IntValue(30)})
	v, err := a.Get(-1)
	require.NoError(t, err)
	assert.Equal(t, int64(30), v.i)

	_, err = a.Get(-4)
	assert.Error(t, err)
}

func TestArraySetNegativeIndex(t *testing.T) {
	a := NewArray([]Value{IntValue(1), IntValue(2)})
	require.NoError(t, a.Set(-1, IntValue(99)))
	v, _ := a.Get(1)
	assert.Equal(t, int64(99), v.i)
}

func TestArraySliceClampsRatherThanErrors(t *testing.T) {
	a := NewArray([]Value{IntValue(1), IntValue(2), IntValue(3)})
	lo, hi := 1, 100
	out := a.Slice(&lo, &hi)
	assert.Equal(t, 2, out.Len())
}

func TestArraySliceInvertedRangeIsEmpty(t *testing.T) {
	a := NewArray([]Value{IntValue(1), IntValue(2), IntValue(3)})
	lo, hi := 2, 0
	out := a.Slice(&lo, &hi)
	assert.Equal(t, 0, out.Len())
}

func TestArraySliceOpenBoundsDefaultToFullRange(t *testing.T) {
	a := NewArray([]Value{IntValue(1), IntValue(2), IntValue(3)})
	out := a.Slice(nil, nil)
	assert.Equal(t, 3, out.Len())
}

func TestTablePreservesInsertionOrder(t *testing.T) {
	tbl := NewTable()
	tbl.Set(StringValue("b"), IntValue(2))
	tbl.Set(StringValue("a"), IntValue(1))
	require.Len(t, tbl.keys, 2)
	assert.Equal(t, "b", tbl.keys[0].s.text)
	assert.Equal(t, "a", tbl.keys[1].s.text)
}

func TestTableAcceptsNonStringKeys(t *testing.T) {
	tbl := NewTable()
	tbl.Set(IntValue(1), StringValue("one"))
	tbl.Set(BoolValue(true), StringValue("yes"))
	v, ok := tbl.Get(IntValue(1))
	require.True(t, ok)
	assert.Equal(t, "one", v.s.text)
	v, ok = tbl.Get(BoolValue(true))
	require.True(t, ok)
	assert.Equal(t, "yes", v.s.text)
}

func TestTableReassigningExistingKeyDoesNotDuplicateItInKeys(t *testing.T) {
	tbl := NewTable()
	tbl.Set(IntValue(1), StringValue("one"))
	tbl.Set(IntValue(1), StringValue("uno"))
	assert.Equal(t, 1, tbl.Len())
	v, _ := tbl.Get(IntValue(1))
	assert.Equal(t, "uno", v.s.text)
}

func TestValueTruthiness(t *testing.T) {
	assert.False(t, NullValue().IsTruthy())
	assert.False(t, IntValue(0).IsTruthy())
	assert.True(t, IntValue(1).IsTruthy())
	assert.False(t, StringValue("").IsTruthy())
	assert.True(t, StringValue("x").IsTruthy())
	assert.False(t, ArrayValue(NewArray(nil)).IsTruthy())
}

func TestPartialBindSaturatesAfterAllParams(t *testing.T) {
	fn := &Function{NumParams: 2}
	p := NewPartial(fn)
	assert.False(t, p.Bind(IntValue(1)))
	assert.True(t, p.Bind(IntValue(2)))
	assert.Equal(t, int64(1), p.Slots[0].i)
	assert.Equal(t, int64(2), p.Slots[1].i)
}

func TestIteratorWalksArrayThenExhausts(t *testing.T) {
	it := NewArrayIterator(NewArray([]Value{IntValue(1), IntValue(2)}))
	v, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, int64(1), v.i)
	v, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, int64(2), v.i)
	_, ok = it.Next()
	assert.False(t, ok)
}

func TestIteratorWalksTableInInsertionOrder(t *testing.T) {
	tbl := NewTable()
	tbl.Set(StringValue("z"), IntValue(1))
	tbl.Set(StringValue("a"), IntValue(2))
	it := NewTableIterator(tbl)
	v, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, TagArray, v.Tag())
	assert.Equal(t, "z", v.a.items[0].s.text)
	assert.Equal(t, int64(1), v.a.items[1].i)
	v, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, "a", v.a.items[0].s.text)
	assert.Equal(t, int64(2), v.a.items[1].i)
	_, ok = it.Next()
	assert.False(t, ok)
}

func TestIteratorWalksStringRunes(t *testing.T) {
	it := NewStringIterator("hi")
	v, ok := it.Next()
	require.True(t, ok)
	assert.Equal(t, "h", v.s.text)
	v, ok = it.Next()
	require.True(t, ok)
	assert.Equal(t, "i", v.s.text)
	_, ok = it.Next()
	assert.False(t, ok)
}
