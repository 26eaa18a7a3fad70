// Package sheet fetches spreadsheet data and parses rows into the canonical
// transaction shape consumed by the reconciliation core. Two sources are
// supported with one output contract: the Google Sheets values API (OAuth)
// and the public "gviz" JSON export.
package sheet

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/church/ekklesia/dedup"
)

// Source-level errors. The sync handlers map these onto HTTP statuses.
var (
	// ErrEmptySource means the sheet was reachable but had no data rows.
	ErrEmptySource = errors.New("sheet contains no data rows")
	// ErrSourceAccess means the sheet could not be fetched: not public,
	// revoked token, malformed response.
	ErrSourceAccess = errors.New("sheet source not accessible")
)

// Table is a fetched sheet normalized to string cells: a header row plus
// data rows. Both adapters converge on this shape so the parser and the
// decider are source-agnostic.
type Table struct {
	headers     []string
	headerIndex map[string]int // normalized label -> column
	rows        [][]string
}

func newTable(headers []string, rows [][]string) *Table {
	t := &Table{
		headers:     headers,
		headerIndex: make(map[string]int, len(headers)),
		rows:        rows,
	}
	// First header wins on duplicate labels.
	for i, h := range headers {
		key := dedup.Normalize(h)
		if key == "" {
			continue
		}
		if _, ok := t.headerIndex[key]; !ok {
			t.headerIndex[key] = i
		}
	}
	return t
}

// Len returns the number of data rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// HasColumn reports whether a header label exists (matched case- and
// accent-insensitively).
func (t *Table) HasColumn(label string) bool {
	_, ok := t.headerIndex[dedup.Normalize(label)]
	return ok
}

// Field returns the cell under the given header label for data row i.
// The second result is false when the label is unmapped or the row is too
// short to have that column.
func (t *Table) Field(i int, label string) (string, bool) {
	col, ok := t.headerIndex[dedup.Normalize(label)]
	if !ok || i < 0 || i >= len(t.rows) {
		return "", false
	}
	row := t.rows[i]
	if col >= len(row) {
		return "", false
	}
	return row[col], true
}

// NewTableFromValues adapts a values-API response grid. The first row is
// the header row; remaining rows are data.
func NewTableFromValues(values [][]any) (*Table, error) {
	if len(values) == 0 {
		return nil, ErrEmptySource
	}

	headers := make([]string, len(values[0]))
	for i, cell := range values[0] {
		headers[i] = cellString(cell)
	}

	rows := make([][]string, 0, len(values)-1)
	for _, raw := range values[1:] {
		row := make([]string, len(raw))
		for i, cell := range raw {
			row[i] = cellString(cell)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrEmptySource
	}
	return newTable(headers, rows), nil
}

// cellString renders a values-API cell to text. The API returns formatted
// strings by default, but unformatted reads can yield numbers and bools.
func cellString(cell any) string {
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
