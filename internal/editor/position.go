package editor

import (
	"fmt"
	"strconv"
	"strings"
)

// Position in a text document expressed as zero-based line and character offset.
type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

// Range in a text document expressed as (zero-based) start and end positions.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Empty reports whether the range covers no text.
func (r Range) Empty() bool {
	return r.Start == r.End
}

// ParseRange parses a one-based selection written as "L1:C1-L2:C2" or
// "L1-L2". Columns are cursor positions, so C2 points just past the last
// selected character. The line form selects whole lines, L2 included.
func ParseRange(s string) (Range, error) {
	from, to, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Range{}, fmt.Errorf("invalid selection %q: expected START-END", s)
	}

	start, startHasCol, err := parsePoint(from)
	if err != nil {
		return Range{}, fmt.Errorf("invalid selection start %q: %w", from, err)
	}
	end, endHasCol, err := parsePoint(to)
	if err != nil {
		return Range{}, fmt.Errorf("invalid selection end %q: %w", to, err)
	}
	if startHasCol != endHasCol {
		return Range{}, fmt.Errorf("invalid selection %q: mix of line and line:column forms", s)
	}

	if !endHasCol {
		// Whole lines: run to the start of the line after END.
		end = Position{Line: end.Line + 1}
	}
	if end.Line < start.Line || (end.Line == start.Line && end.Character < start.Character) {
		return Range{}, fmt.Errorf("invalid selection %q: end before start", s)
	}
	return Range{Start: start, End: end}, nil
}

func parsePoint(s string) (Position, bool, error) {
	lineStr, colStr, hasCol := strings.Cut(strings.TrimSpace(s), ":")

	line, err := parseOneBased(lineStr)
	if err != nil {
		return Position{}, false, err
	}
	pos := Position{Line: line}
	if hasCol {
		col, err := parseOneBased(colStr)
		if err != nil {
			return Position{}, false, err
		}
		pos.Character = col
	}
	return pos, hasCol, nil
}

func parseOneBased(s string) (uint32, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	if n == 0 {
		return 0, fmt.Errorf("positions start at 1")
	}
	return uint32(n - 1), nil
}
