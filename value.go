package jarl

import (
	"fmt"
	"strings"
)

// Tag discriminates the variant a Value currently holds.
type Tag int

const (
	TagNone Tag = iota
	TagNull
	TagBool
	TagInt
	TagFloat
	TagString
	TagArray
	TagTable
	TagFunction
	TagPartial
	TagIterator
)

func (t Tag) String() string {
	return [...]string{
		"none", "null", "bool", "int", "float", "string",
		"array", "table", "function", "partial", "iterator",
	}[t]
}

// Value is Jarl's tagged runtime value. It trades the spec's
// aspirational two-machine-word budget for a plain discriminated
// struct: every heap-kind field is a Go pointer the garbage collector
// already tracks, which is far safer to get right without a compiler
// in the loop than an unsafe-pointer union would be. Only the string
// field is reference counted by hand (see intern.go); every other
// pointer field is managed by Go's GC.
type Value struct {
	tag Tag
	b   bool
	i   int64
	f   float64
	s   *InternedString
	a   *Array
	t   *Table
	fn  *Function
	p   *Partial
	it  *Iterator
}

func NoneValue() Value                { return Value{tag: TagNone} }
func NullValue() Value                { return Value{tag: TagNull} }
func BoolValue(b bool) Value          { return Value{tag: TagBool, b: b} }
func IntValue(i int64) Value          { return Value{tag: TagInt, i: i} }
func FloatValue(f float64) Value      { return Value{tag: TagFloat, f: f} }
func ArrayValue(a *Array) Value       { return Value{tag: TagArray, a: a} }
func TableValue(t *Table) Value       { return Value{tag: TagTable, t: t} }
func FunctionValue(fn *Function) Value { return Value{tag: TagFunction, fn: fn} }
func PartialValue(p *Partial) Value   { return Value{tag: TagPartial, p: p} }
func IteratorValue(it *Iterator) Value { return Value{tag: TagIterator, it: it} }

// StringValue interns text and retains the reference the returned
// Value owns. The VM calls neither Retain nor Release when it copies
// or discards a Value, so a string interned while a program runs keeps
// its table entry after the run ends.
func StringValue(text string) Value {
	return Value{tag: TagString, s: internString(text)}
}

func (v Value) Tag() Tag { return v.tag }

// Retain bumps the refcount of any interned string the value holds.
// It is a no-op for every other tag since Go's GC owns those.
func (v Value) Retain() Value {
	if v.tag == TagString {
		globalInternTable.Retain(v.s)
	}
	return v
}

// Release drops the value's reference to its interned string, if any.
func (v Value) Release() {
	if v.tag == TagString {
		globalInternTable.Release(v.s)
	}
}

func (v Value) IsTruthy() bool {
	switch v.tag {
	case TagNone, TagNull:
		return false
	case TagBool:
		return v.b
	case TagInt:
		return v.i != 0
	case TagFloat:
		return v.f != 0
	case TagString:
		return v.s != nil && v.s.text != ""
	case TagArray:
		return v.a != nil && len(v.a.items) > 0
	case TagTable:
		return v.t != nil && len(v.t.keys) > 0
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.tag {
	case TagNone:
		return "none"
	case TagNull:
		return "null"
	case TagBool:
		if v.b {
			return "true"
		}
		return "false"
	case TagInt:
		return fmt.Sprintf("%d", v.i)
	case TagFloat:
		return fmt.Sprintf("%g", v.f)
	case TagString:
		return v.s.text
	case TagArray:
		parts := make([]string, len(v.a.items))
		for i, e := range v.a.items {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case TagTable:
		parts := make([]string, 0, len(v.t.keys))
		for _, k := range v.t.keys {
			parts = append(parts, k.String()+": "+v.t.values[k].String())
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case TagFunction:
		return fmt.Sprintf("<function/%d>", v.fn.NumParams)
	case TagPartial:
		return fmt.Sprintf("<partial/%d>", v.p.Remaining())
	case TagIterator:
		return "<iterator>"
	default:
		return "?"
	}
}

// Array is a growable sequence of Values, managed by Go's GC.
type Array struct {
	items []Value
}

func NewArray(items []Value) *Array { return &Array{items: items} }

func (a *Array) Len() int { return len(a.items) }

// normalizeIndex applies the original implementation's negative-index
// wraparound (index < 0 becomes size+index) without clamping; callers
// decide whether an out-of-range result is an error (Get) or gets
// clamped (Slice).
func normalizeIndex(index, size int) int {
	if index < 0 {
		return size + index
	}
	return index
}

// Get returns a[index] after negative-index wraparound, or an error
// if the (wrapped) index is still out of bounds.
func (a *Array) Get(index int) (Value, error) {
	idx := normalizeIndex(index, len(a.items))
	if idx < 0 || idx >= len(a.items) {
		return Value{}, newRuntimeError("index %d out of range", index)
	}
	return a.items[idx], nil
}

func (a *Array) Set(index int, v Value) error {
	idx := normalizeIndex(index, len(a.items))
	if idx < 0 || idx >= len(a.items) {
		return newRuntimeError("index %d out of range", index)
	}
	a.items[idx] = v
	return nil
}

// clampSlice implements the original's slice bounds behavior:
// negative indices wrap first, then both bounds clamp to [0, size]
// rather than erroring, and an inverted range yields an empty slice.
func clampSlice(lo, hi, size int) (int, int) {
	lo = normalizeIndex(lo, size)
	hi = normalizeIndex(hi, size)
	if lo < 0 {
		lo = 0
	}
	if lo > size {
		lo = size
	}
	if hi < 0 {
		hi = 0
	}
	if hi > size {
		hi = size
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

const maxSliceBound = int(^uint(0) >> 1)

// Slice returns a new Array holding a[lo:hi]. A nil loPtr defaults to
// 0, a nil hiPtr defaults to "maximum" (len(a)), matching a[:n] /
// a[n:] / a[:] syntax.
func (a *Array) Slice(loPtr, hiPtr *int) *Array {
	lo, hi := 0, maxSliceBound
	if loPtr != nil {
		lo = *loPtr
	}
	if hiPtr != nil {
		hi = *hiPtr
	}
	if hi > len(a.items) {
		hi = len(a.items)
	}
	lo, hi = clampSlice(lo, hi, len(a.items))
	out := make([]Value, hi-lo)
	copy(out, a.items[lo:hi])
	return NewArray(out)
}

// Table is an insertion-ordered value-keyed map, managed by Go's GC.
// Keys compare by tag and payload (Value's fields are all comparable
// Go types, and equal strings are already the same *InternedString, so
// plain struct equality gives exactly the discriminant+payload
// equality the key model calls for, with no custom hash function).
type Table struct {
	keys   []Value
	values map[Value]Value
}

func NewTable() *Table {
	return &Table{values: make(map[Value]Value)}
}

func (t *Table) Get(key Value) (Value, bool) {
	v, ok := t.values[key]
	return v, ok
}

func (t *Table) Set(key Value, v Value) {
	if _, exists := t.values[key]; !exists {
		t.keys = append(t.keys, key)
	}
	t.values[key] = v
}

func (t *Table) Len() int { return len(t.keys) }

// Function is an immutable compiled function body, produced once by
// the code generator and shared by every closure created from the
// same func literal.
type Function struct {
	Name          string
	NumParams     int
	NumCaptures   int
	Code          []uint16
	Constants     []Value
	// CaptureIsSelf is parallel to the capture slots (indices
	// NumParams..NumParams+NumCaptures-1): true marks a capture that
	// self-references the Partial being constructed from this
	// Function, patched in after construction instead of being popped
	// from the stack, which is what makes named recursion work.
	CaptureIsSelf []bool
}

// Partial is a function together with a fixed-size argument/capture
// slot buffer, filled incrementally by OpApply (arguments) and
// OpMakeClosure (captures). It is auto-invoked the instant every
// argument slot (captures don't count) is filled.
type Partial struct {
	Fn      *Function
	Slots   []Value
	Filled  []bool
	OpenArgs int // remaining argument slots; captures are pre-filled and don't count
}

func NewPartial(fn *Function) *Partial {
	return &Partial{
		Fn:       fn,
		Slots:    make([]Value, fn.NumParams+fn.NumCaptures),
		Filled:   make([]bool, fn.NumParams+fn.NumCaptures),
		OpenArgs: fn.NumParams,
	}
}

func (p *Partial) Remaining() int { return p.OpenArgs }

// Bind fills the next open argument slot (in declaration order) with
// v, returning true once every argument slot has been filled.
func (p *Partial) Bind(v Value) bool {
	for i := 0; i < p.Fn.NumParams; i++ {
		if !p.Filled[i] {
			p.Slots[i] = v
			p.Filled[i] = true
			p.OpenArgs--
			break
		}
	}
	return p.OpenArgs == 0
}

// Capture fills capture slot i (offset by NumParams) with v.
func (p *Partial) Capture(i int, v Value) {
	slot := p.Fn.NumParams + i
	p.Slots[slot] = v
	p.Filled[slot] = true
}

// Clone returns a Partial with independent Slots/Filled buffers,
// copying the current fill state. A closure that captures itself (for
// named recursion) stores a never-bound template Partial; each
// application must Bind a clone of that template rather than the
// template itself, or repeated/recursive application would saturate
// it once and then alias a single filled-in call across every
// subsequent invocation.
func (p *Partial) Clone() *Partial {
	return &Partial{
		Fn:       p.Fn,
		Slots:    append([]Value(nil), p.Slots...),
		Filled:   append([]bool(nil), p.Filled...),
		OpenArgs: p.OpenArgs,
	}
}

type iterKind int

const (
	iterArray iterKind = iota
	iterString
	iterTable
)

// Iterator walks an Array, a String's runes, or a Table's entries in
// insertion order, one element at a time, backing `for x in expr:`
// loops. kind disambiguates the empty cases (an empty array, string,
// or table all leave their slice/map fields looking alike).
type Iterator struct {
	kind    iterKind
	arr     *Array
	str     []rune
	tbl     *Table
	tblKeys []Value
	pos     int
}

func NewArrayIterator(a *Array) *Iterator { return &Iterator{kind: iterArray, arr: a} }

func NewStringIterator(s string) *Iterator {
	return &Iterator{kind: iterString, str: []rune(s)}
}

func NewTableIterator(t *Table) *Iterator {
	return &Iterator{kind: iterTable, tbl: t, tblKeys: t.keys}
}

// Next returns the next element and true, or a zero Value and false
// once the iterator is exhausted. A table's element is a two-item
// [key, value] Array rather than the bare key, so `for (k, v) in t:`
// can destructure it directly; `for x in t:` (one loop variable) binds
// x to that pair.
func (it *Iterator) Next() (Value, bool) {
	switch it.kind {
	case iterArray:
		if it.pos >= len(it.arr.items) {
			return Value{}, false
		}
		v := it.arr.items[it.pos]
		it.pos++
		return v, true
	case iterString:
		if it.pos >= len(it.str) {
			return Value{}, false
		}
		r := it.str[it.pos]
		it.pos++
		return StringValue(string(r)), true
	}
	if it.pos >= len(it.tblKeys) {
		return Value{}, false
	}
	k := it.tblKeys[it.pos]
	it.pos++
	v, _ := it.tbl.Get(k)
	return ArrayValue(NewArray([]Value{k, v})), true
}
