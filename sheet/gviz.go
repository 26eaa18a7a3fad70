package sheet

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// gvizEndpoint is the public "visualization" JSON export for a spreadsheet.
// It works without credentials for sheets shared as "anyone with the link".
const gvizEndpoint = "https://docs.google.com/spreadsheets/d/%s/gviz/tq"

// maxGvizResponseBytes bounds how much of a public response we will read.
const maxGvizResponseBytes = 20 << 20

// gvizResponse mirrors the subset of the gviz payload we consume.
type gvizResponse struct {
	Status string `json:"status"`
	Table  struct {
		Cols []struct {
			Label string `json:"label"`
		} `json:"cols"`
		Rows []struct {
			C []*gvizCell `json:"c"`
		} `json:"rows"`
	} `json:"table"`
}

// gvizCell is one cell: v is the raw value, f the formatted rendering.
type gvizCell struct {
	V any    `json:"v"`
	F string `json:"f"`
}

// FetchPublicTable downloads and parses the gviz export of one sheet tab.
// sheetName may be empty for the first tab.
func FetchPublicTable(ctx context.Context, client *http.Client, sheetID, sheetName string) (*Table, error) {
	if client == nil {
		client = http.DefaultClient
	}

	reqURL := fmt.Sprintf(gvizEndpoint, url.PathEscape(sheetID))
	query := url.Values{"tqx": {"out:json"}}
	if sheetName != "" {
		query.Set("sheet", sheetName)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL+"?"+query.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create gviz request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceAccess, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: sheet returned status %d (is it shared publicly?)", ErrSourceAccess, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxGvizResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read gviz response: %w", err)
	}

	return parseGvizTable(body)
}

// parseGvizTable unwraps the JSONP-style gviz payload and converts it to a
// Table. The payload looks like:
//
//	/*O_o*/
//	google.visualization.Query.setResponse({...});
func parseGvizTable(body []byte) (*Table, error) {
	start := strings.IndexByte(string(body), '{')
	end := strings.LastIndexByte(string(body), '}')
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: response is not a gviz payload", ErrSourceAccess)
	}

	var payload gvizResponse
	if err := json.Unmarshal(body[start:end+1], &payload); err != nil {
		return nil, fmt.Errorf("%w: malformed gviz JSON: %v", ErrSourceAccess, err)
	}
	if payload.Status == "error" {
		return nil, fmt.Errorf("%w: gviz query returned an error", ErrSourceAccess)
	}

	headers := make([]string, len(payload.Table.Cols))
	for i, col := range payload.Table.Cols {
		headers[i] = col.Label
	}

	rows := make([][]string, 0, len(payload.Table.Rows))
	for _, r := range payload.Table.Rows {
		row := make([]string, len(r.C))
		for i, cell := range r.C {
			row[i] = gvizCellString(cell)
		}
		rows = append(rows, row)
	}

	if len(rows) == 0 {
		return nil, ErrEmptySource
	}
	return newTable(headers, rows), nil
}

// gvizCellString extracts one cell, preferring the raw value and falling
// back to the formatted one. Date cells arrive as the serialized literal
// "Date(2024,2,15)" in v; the date parser understands that form.
func gvizCellString(cell *gvizCell) string {
	if cell == nil {
		return ""
	}

	switch v := cell.V.(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}

	return cell.F
}
