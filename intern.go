package jarl

import "sync"

// InternedString is the one heap value kind Jarl reference-counts by
// hand instead of leaving to the garbage collector: the spec requires
// an observable, GC-timing-independent guarantee that there is exactly
// one live instance per distinct byte sequence, destroyed (removed
// from the global table) the instant its reference count reaches
// zero. A GC-managed string pool could give the same steady-state
// behavior, but not the same *timing* — the dedup table would hold
// onto entries until an arbitrary future collection, which is directly
// observable through Jarl's interning testable property. Every other
// heap kind (Array, Table, Function, Partial, Iterator) is acyclic in
// the surface language and is left entirely to Go's collector; see
// DESIGN.md for the full rationale.
type InternedString struct {
	mu       sync.Mutex
	refcount int
	text     string
}

func (s *InternedString) String() string { return s.text }

// internTable is the process-wide string pool. All VMs in a process
// share it, which is exactly the shared state spec.md calls out as
// needing to be safe under concurrent embedding (see ExecuteAll in
// api.go).
type internTable struct {
	mu      sync.Mutex
	strings map[string]*InternedString
}

var globalInternTable = &internTable{strings: make(map[string]*InternedString)}

// Intern returns the canonical InternedString for text, creating and
// inserting it if this is the first live reference, and bumping its
// refcount otherwise. The caller owns the returned reference and must
// Release it exactly once.
func (t *internTable) Intern(text string) *InternedString {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s, ok := t.strings[text]; ok {
		s.mu.Lock()
		s.refcount++
		s.mu.Unlock()
		return s
	}
	s := &InternedString{text: text, refcount: 1}
	t.strings[text] = s
	return s
}

// Retain increments s's reference count. Every copy of a Value that
// holds s (stack push, struct field copy, closure capture) must call
// Retain.
func (t *internTable) Retain(s *InternedString) *InternedString {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.refcount++
	s.mu.Unlock()
	return s
}

// Release decrements s's reference count, removing it from the table
// once the count reaches zero. Every Value that drops a reference to
// s (stack pop, slot overwrite, scope exit) must call Release exactly
// once for each Retain/Intern it performed.
func (t *internTable) Release(s *InternedString) {
	if s == nil {
		return
	}
	// Hold the table lock across the decrement and the removal, so an
	// Intern of the same text cannot revive s in between.
	t.mu.Lock()
	defer t.mu.Unlock()
	s.mu.Lock()
	s.refcount--
	dead := s.refcount <= 0
	s.mu.Unlock()
	if !dead {
		return
	}
	if cur, ok := t.strings[s.text]; ok && cur == s {
		delete(t.strings, s.text)
	}
}

// liveCount reports the number of distinct interned strings, exposed
// for tests asserting on the interning/refcount-soundness testable
// properties.
func (t *internTable) liveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.strings)
}

func internString(text string) *InternedString { return globalInternTable.Intern(text) }
