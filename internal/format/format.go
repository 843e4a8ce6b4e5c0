// Package format renders query rows as JSON lines, CSV or an aligned table.
package format

import "strings"

// Format is an output format. The zero value is JSON, which is also the
// fallback for any unrecognized name.
type Format int

const (
	JSON Format = iota
	CSV
	Table
)

// Names lists the recognized format names.
var Names = []string{"json", "csv", "table"}

func (f Format) String() string {
	switch f {
	case CSV:
		return "csv"
	case Table:
		return "table"
	default:
		return "json"
	}
}

// Parse maps a format name to a Format. Matching is case-insensitive and
// unknown names fall back to JSON.
func Parse(s string) Format {
	f, _ := Lookup(s)
	return f
}

// Lookup is Parse that also reports whether the name was recognized.
func Lookup(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return JSON, true
	case "csv":
		return CSV, true
	case "table":
		return Table, true
	default:
		return JSON, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. It never fails; unknown
// names decode to JSON.
func (f *Format) UnmarshalText(text []byte) error {
	*f = Parse(string(text))
	return nil
}
