package format

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/leapstack-labs/bqrun/internal/flatten"
)

// CSVEncoder turns rows into CSV text. Rows are passed unflattened.
type CSVEncoder interface {
	Encode(rows []flatten.Record) (string, error)
}

// CSVEncoderFunc adapts a function to CSVEncoder.
type CSVEncoderFunc func(rows []flatten.Record) (string, error)

// Encode calls fn.
func (fn CSVEncoderFunc) Encode(rows []flatten.Record) (string, error) { return fn(rows) }

// Formatter renders result rows into output lines.
type Formatter struct {
	csv    CSVEncoder
	logger *slog.Logger
}

// NewFormatter creates a Formatter using the standard CSV backend.
func NewFormatter(logger *slog.Logger) *Formatter {
	return NewFormatterWithCSV(StdCSV{}, logger)
}

// NewFormatterWithCSV creates a Formatter with a custom CSV backend.
func NewFormatterWithCSV(enc CSVEncoder, logger *slog.Logger) *Formatter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Formatter{csv: enc, logger: logger}
}

// Lines renders rows in the requested format. Each returned string is meant
// for a single AppendLine call on the output surface and may span several
// physical lines.
func (f *Formatter) Lines(rows []flatten.Record, format Format, pretty bool) []string {
	switch format {
	case CSV:
		return f.csvLines(rows)
	case Table:
		return f.tableLines(rows)
	default:
		return f.jsonLines(rows, pretty)
	}
}

func (f *Formatter) jsonLines(rows []flatten.Record, pretty bool) []string {
	lines := make([]string, 0, len(rows))
	for i, row := range rows {
		data, err := flatten.Flatten(row).MarshalJSON()
		if err != nil {
			f.logger.Warn("failed to encode row", "row", i, "error", err)
			continue
		}
		if pretty {
			var buf bytes.Buffer
			if err := json.Indent(&buf, data, "", "  "); err != nil {
				f.logger.Warn("failed to indent row", "row", i, "error", err)
				continue
			}
			data = buf.Bytes()
		}
		lines = append(lines, string(data))
	}
	return lines
}

func (f *Formatter) csvLines(rows []flatten.Record) []string {
	out, err := f.csv.Encode(rows)
	if err != nil {
		f.logger.Warn("csv encoding failed", "rows", len(rows), "error", err)
		return nil
	}
	out = strings.TrimRight(out, "\n")
	if out == "" {
		return nil
	}
	return []string{out}
}

func (f *Formatter) tableLines(rows []flatten.Record) []string {
	var subRows []*flatten.Row
	for _, row := range rows {
		subRows = append(subRows, flatten.Explode(row)...)
	}

	cols := unionKeys(subRows)

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)

	if len(cols) > 0 {
		header := make(table.Row, len(cols))
		for i, col := range cols {
			header[i] = col
		}
		t.AppendHeader(header)
	}

	for _, sub := range subRows {
		r := make(table.Row, len(cols))
		for i, col := range cols {
			if v, ok := sub.Get(col); ok {
				r[i] = formatValue(v)
			} else {
				r[i] = ""
			}
		}
		t.AppendRow(r)
	}

	if len(cols) == 0 {
		return nil
	}
	return []string{t.Render()}
}

// unionKeys returns every key across rows in first-seen order.
func unionKeys(rows []*flatten.Row) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for _, k := range r.Keys() {
			if !seen[k] {
				seen[k] = true
				cols = append(cols, k)
			}
		}
	}
	return cols
}

func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case string:
		return t
	case []byte:
		return base64.StdEncoding.EncodeToString(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	}
	return fmt.Sprintf("%v", v)
}

// StdCSV is the default CSV backend. It writes a header made of the union of
// top-level field names followed by one record per row. Nested values are
// JSON encoded into their cell and nulls are left empty.
type StdCSV struct{}

// Encode implements CSVEncoder.
func (StdCSV) Encode(rows []flatten.Record) (string, error) {
	var cols []string
	seen := make(map[string]bool)
	for _, row := range rows {
		for _, name := range row.Names() {
			if !seen[name] {
				seen[name] = true
				cols = append(cols, name)
			}
		}
	}
	if len(cols) == 0 {
		return "", nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(cols); err != nil {
		return "", err
	}
	for _, row := range rows {
		record := make([]string, len(cols))
		for i, col := range cols {
			v, ok := row.Get(col)
			if !ok || v == nil {
				continue
			}
			cell, err := csvCell(v)
			if err != nil {
				return "", fmt.Errorf("column %s: %w", col, err)
			}
			record[i] = cell
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func csvCell(v any) (string, error) {
	switch v.(type) {
	case flatten.Record, map[string]any, []any:
		data, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return formatValue(v), nil
}
