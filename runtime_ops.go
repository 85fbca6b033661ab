package jarl

import (
	"math"
	"strings"
)

func bothInt(a, b Value) bool { return a.Tag() == TagInt && b.Tag() == TagInt }

func asFloat(v Value) float64 {
	if v.Tag() == TagInt {
		return float64(v.i)
	}
	return v.f
}

func isNumeric(v Value) bool { return v.Tag() == TagInt || v.Tag() == TagFloat }

func arith(op Op, a, b Value) (Value, error) {
	if op == OpAppend {
		return appendValues(a, b)
	}
	if !isNumeric(a) || !isNumeric(b) {
		return Value{}, newRuntimeError("%s requires numeric operands, got %s and %s", op, a.Tag(), b.Tag())
	}
	if bothInt(a, b) {
		switch op {
		case OpAdd:
			return IntValue(a.i + b.i), nil
		case OpSub:
			return IntValue(a.i - b.i), nil
		case OpMul:
			return IntValue(a.i * b.i), nil
		case OpDiv:
			if b.i == 0 {
				return Value{}, newRuntimeError("division by zero")
			}
			return IntValue(a.i / b.i), nil
		case OpMod:
			if b.i == 0 {
				return Value{}, newRuntimeError("division by zero")
			}
			return IntValue(a.i % b.i), nil
		}
	}
	fa, fb := asFloat(a), asFloat(b)
	switch op {
	case OpAdd:
		return FloatValue(fa + fb), nil
	case OpSub:
		return FloatValue(fa - fb), nil
	case OpMul:
		return FloatValue(fa * fb), nil
	case OpDiv:
		return FloatValue(fa / fb), nil
	case OpMod:
		return FloatValue(math.Mod(fa, fb)), nil
	}
	return Value{}, newRuntimeError("unsupported arithmetic opcode %s", op)
}

func appendValues(a, b Value) (Value, error) {
	if a.Tag() == TagString && b.Tag() == TagString {
		return StringValue(a.s.text + b.s.text), nil
	}
	if a.Tag() == TagString {
		return StringValue(a.s.text + b.String()), nil
	}
	if a.Tag() == TagArray && b.Tag() == TagArray {
		items := append(append([]Value(nil), a.a.items...), b.a.items...)
		return ArrayValue(NewArray(items)), nil
	}
	if a.Tag() == TagArray {
		items := append(append([]Value(nil), a.a.items...), b)
		return ArrayValue(NewArray(items)), nil
	}
	return Value{}, newRuntimeError("++ is not defined for %s and %s", a.Tag(), b.Tag())
}

func negate(a Value) (Value, error) {
	switch a.Tag() {
	case TagInt:
		return IntValue(-a.i), nil
	case TagFloat:
		return FloatValue(-a.f), nil
	}
	return Value{}, newRuntimeError("unary - requires a numeric operand, got %s", a.Tag())
}

// cmp3 returns -1, 0, or 1, the three-way comparison the original
// <=> operator and every relational operator are built from.
func cmp3(a, b Value) (int, error) {
	if isNumeric(a) && isNumeric(b) {
		if bothInt(a, b) {
			switch {
			case a.i < b.i:
				return -1, nil
			case a.i > b.i:
				return 1, nil
			default:
				return 0, nil
			}
		}
		fa, fb := asFloat(a), asFloat(b)
		switch {
		case fa < fb:
			return -1, nil
		case fa > fb:
			return 1, nil
		default:
			return 0, nil
		}
	}
	if a.Tag() == TagString && b.Tag() == TagString {
		return strings.Compare(a.s.text, b.s.text), nil
	}
	return 0, newRuntimeError("cannot compare %s and %s", a.Tag(), b.Tag())
}

func valuesEqual(a, b Value) bool {
	if a.Tag() != b.Tag() {
		if isNumeric(a) && isNumeric(b) {
			c, err := cmp3(a, b)
			return err == nil && c == 0
		}
		return false
	}
	switch a.Tag() {
	case TagNone, TagNull:
		return true
	case TagBool:
		return a.b == b.b
	case TagInt:
		return a.i == b.i
	case TagFloat:
		return a.f == b.f
	case TagString:
		return a.s.text == b.s.text
	default:
		return false // heap aggregates compare by identity only via ==/!= on refs, not supported here
	}
}

func compare(op Op, a, b Value) (Value, error) {
	if op == OpEq {
		return BoolValue(valuesEqual(a, b)), nil
	}
	if op == OpNeq {
		return BoolValue(!valuesEqual(a, b)), nil
	}
	c, err := cmp3(a, b)
	if err != nil {
		return Value{}, err
	}
	switch op {
	case OpCmp:
		return IntValue(int64(c)), nil
	case OpGt:
		return BoolValue(c > 0), nil
	case OpLt:
		return BoolValue(c < 0), nil
	case OpGeq:
		return BoolValue(c >= 0), nil
	case OpLeq:
		return BoolValue(c <= 0), nil
	}
	return Value{}, newRuntimeError("unsupported comparison opcode %s", op)
}

func vmGet(container, index Value) (Value, error) {
	switch container.Tag() {
	case TagArray:
		if index.Tag() != TagInt {
			return Value{}, newRuntimeError("array index must be an int, got %s", index.Tag())
		}
		return container.a.Get(int(index.i))
	case TagString:
		runes := []rune(container.s.text)
		idx := normalizeIndex(int(index.i), len(runes))
		if idx < 0 || idx >= len(runes) {
			return Value{}, newRuntimeError("index %d out of range", index.i)
		}
		return StringValue(string(runes[idx])), nil
	case TagTable:
		v, ok := container.t.Get(index)
		if !ok {
			return Value{}, newRuntimeError("table has no key %s", index.String())
		}
		return v, nil
	}
	return Value{}, newRuntimeError("%s is not indexable", container.Tag())
}

func vmSet(container, index, value Value) error {
	switch container.Tag() {
	case TagArray:
		if index.Tag() != TagInt {
			return newRuntimeError("array index must be an int, got %s", index.Tag())
		}
		return container.a.Set(int(index.i), value)
	case TagTable:
		container.t.Set(index, value)
		return nil
	}
	return newRuntimeError("%s does not support index assignment", container.Tag())
}

func vmSlice(container, lo, hi Value) (Value, error) {
	var loPtr, hiPtr *int
	if lo.Tag() == TagInt {
		v := int(lo.i)
		loPtr = &v
	}
	if hi.Tag() == TagInt {
		v := int(hi.i)
		hiPtr = &v
	}
	switch container.Tag() {
	case TagArray:
		return ArrayValue(container.a.Slice(loPtr, hiPtr)), nil
	case TagString:
		runes := []rune(container.s.text)
		lo, hi := 0, len(runes)
		if loPtr != nil {
			lo = *loPtr
		}
		if hiPtr != nil {
			hi = *hiPtr
		}
		if hi > len(runes) {
			hi = len(runes)
		}
		lo, hi = clampSlice(lo, hi, len(runes))
		return StringValue(string(runes[lo:hi])), nil
	}
	return Value{}, newRuntimeError("%s is not sliceable", container.Tag())
}

// createRange builds a..b: increasing if a<b, decreasing if a>b, and
// empty only when a==b.
func createRange(lo, hi Value) (Value, error) {
	if lo.Tag() != TagInt || hi.Tag() != TagInt {
		return Value{}, newRuntimeError("range bounds must be ints")
	}
	if hi.i >= lo.i {
		n := hi.i - lo.i
		items := make([]Value, n)
		for i := int64(0); i < n; i++ {
			items[i] = IntValue(lo.i + i)
		}
		return ArrayValue(NewArray(items)), nil
	}
	n := lo.i - hi.i
	items := make([]Value, n)
	for i := int64(0); i < n; i++ {
		items[i] = IntValue(lo.i - i)
	}
	return ArrayValue(NewArray(items)), nil
}

func beginIter(v Value) (*Iterator, error) {
	switch v.Tag() {
	case TagArray:
		return NewArrayIterator(v.a), nil
	case TagString:
		return NewStringIterator(v.s.text), nil
	case TagTable:
		return NewTableIterator(v.t), nil
	}
	return nil, newRuntimeError("%s is not iterable", v.Tag())
}

// vmApply implements argument application: applying a bare Function
// value wraps it in a Partial first; applying an existing Partial
// clones it and fills the clone's next open argument slot, leaving
// the original untouched. The clone is necessary because the same
// Partial value can be applied more than once -- a closure captures
// its Partial by reference, and a named-recursive closure reapplies
// that same captured value on every recursive call, so binding in
// place would saturate it once and corrupt every later call. Returns
// the (possibly cloned) Partial and whether it is now fully saturated
// (every argument slot filled, ready to invoke).
func vmApply(callee, arg Value) (*Partial, bool, error) {
	var p *Partial
	switch callee.Tag() {
	case TagFunction:
		p = NewPartial(callee.fn)
	case TagPartial:
		p = callee.p.Clone()
	default:
		return nil, false, newRuntimeError("%s is not callable", callee.Tag())
	}
	saturated := p.Bind(arg)
	return p, saturated, nil
}
