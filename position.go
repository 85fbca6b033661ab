package jarl

import (
	"fmt"
	"sort"
	"unicode/utf8"
)

const eof = -1

// Range is a half-open byte offset range [Start, End) within the
// source input. It takes as little as possible (16 bytes in 64bit
// systems) to represent a position.
type Range struct{ Start, End int }

func NewRange(start, end int) Range {
	return Range{Start: start, End: end}
}

func (r Range) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d..%d", r.Start, r.End)
}

func (r Range) Str(v []byte) string {
	return string(v[r.Start:r.End])
}

func (r Range) Contains(other Range) bool {
	return other.Start >= r.Start && other.End <= r.End
}

// Location is a 1-indexed line/column pair plus the byte cursor it
// was computed from.
type Location struct {
	Line   int32
	Column int32
	Cursor int
}

// Span is a pair of Locations, the half-open range a token or AST
// node occupies in source text.
type Span struct {
	Start Location
	End   Location
}

func (s Span) String() string {
	startLine, startCol := s.Start.Line, s.Start.Column
	endLine, endCol := s.End.Line, s.End.Column
	if startLine == endLine && startCol == endCol {
		return fmt.Sprintf("%d:%d", startLine, startCol)
	}
	if startLine == endLine {
		return fmt.Sprintf("%d:%d..%d", startLine, startCol, endCol)
	}
	return fmt.Sprintf("%d:%d..%d:%d", startLine, startCol, endLine, endCol)
}

// LineIndex allows fast conversion from byte cursor offsets to
// line/column pairs. It stores the start byte offset of each line
// (0-based) and finds the enclosing line via binary search, which is
// all the diagnostic formatting in errors.go needs.
//
// Construction is O(n) over the input and is meant to be built once
// per compilation and cached.
type LineIndex struct {
	input     []byte
	lineStart []int
}

func NewLineIndex(input []byte) *LineIndex {
	lineStart := make([]int, 1, 64)
	lineStart[0] = 0
	for i, b := range input {
		if b == '\n' {
			lineStart = append(lineStart, i+1)
		}
	}
	return &LineIndex{input: input, lineStart: lineStart}
}

func (li *LineIndex) Span(r Range) Span {
	return Span{Start: li.LocationAt(r.Start), End: li.LocationAt(r.End)}
}

func (li *LineIndex) LocationAt(cursor int) Location {
	if cursor < 0 {
		cursor = 0
	}
	if cursor > len(li.input) {
		cursor = len(li.input)
	}

	lineIdx := sort.Search(len(li.lineStart), func(i int) bool {
		return li.lineStart[i] > cursor
	}) - 1
	if lineIdx < 0 {
		lineIdx = 0
	}

	lineStart := li.lineStart[lineIdx]
	col := int32(utf8.RuneCount(li.input[lineStart:cursor])) + 1

	return Location{
		Line:   int32(lineIdx + 1),
		Column: col,
		Cursor: cursor,
	}
}

// LineAt returns just the 1-indexed line number for cursor, which is
// all spec.md's "line N: message" diagnostic format needs.
func (li *LineIndex) LineAt(cursor int) int {
	return int(li.LocationAt(cursor).Line)
}
