package jarl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInternDedupesEqualText(t *testing.T) {
	tbl := &internTable{strings: make(map[string]*InternedString)}
	a := tbl.Intern("hello")
	b := tbl.Intern("hello")
	assert.Same(t, a, b)
	assert.Equal(t, 2, a.refcount)
}

func TestReleaseRemovesFromTableAtZeroRefcount(t *testing.T) {
	tbl := &internTable{strings: make(map[string]*InternedString)}
	s := tbl.Intern("x")
	require.Equal(t, 1, tbl.liveCount())
	tbl.Release(s)
	assert.Equal(t, 0, tbl.liveCount())
}

func TestRetainIncrementsRefcountWithoutNewEntry(t *testing.T) {
	tbl := &internTable{strings: make(map[string]*InternedString)}
	s := tbl.Intern("x")
	tbl.Retain(s)
	assert.Equal(t, 2, s.refcount)
	assert.Equal(t, 1, tbl.liveCount())
	tbl.Release(s)
	assert.Equal(t, 1, tbl.liveCount())
	tbl.Release(s)
	assert.Equal(t, 0, tbl.liveCount())
}

func TestDistinctTextGetsDistinctEntries(t *testing.T) {
	tbl := &internTable{strings: make(map[string]*InternedString)}
	tbl.Intern("a")
	tbl.Intern("b")
	assert.Equal(t, 2, tbl.liveCount())
}
