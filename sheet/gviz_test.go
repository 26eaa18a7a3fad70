package sheet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleGvizBody = `/*O_o*/
google.visualization.Query.setResponse({"version":"0.6","status":"ok","table":{
"cols":[{"label":"Descrição"},{"label":"Valor"},{"label":"Vencimento"}],
"rows":[
{"c":[{"v":"Aluguel Salão"},{"v":1200.5,"f":"R$ 1.200,50"},{"v":"Date(2024,2,15)","f":"15/03/2024"}]},
{"c":[{"v":""},{"v":null,"f":"50,00"},null]}
]}});`

func TestParseGvizTable(t *testing.T) {
	table, err := parseGvizTable([]byte(sampleGvizBody))
	if err != nil {
		t.Fatalf("parseGvizTable: %v", err)
	}

	if table.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", table.Len())
	}
	if !table.HasColumn("Descrição") {
		t.Error("missing Descrição column")
	}
	if got, _ := table.Field(0, "Descrição"); got != "Aluguel Salão" {
		t.Errorf("Field(0, Descrição) = %q", got)
	}

	// Raw numeric values are preferred over the formatted rendering.
	if got, _ := table.Field(0, "Valor"); got != "1200.5" {
		t.Errorf("Field(0, Valor) = %q, want 1200.5", got)
	}
	// Dates keep the serialized literal from v.
	if got, _ := table.Field(0, "Vencimento"); got != "Date(2024,2,15)" {
		t.Errorf("Field(0, Vencimento) = %q", got)
	}

	// Empty v falls back to f; nil cells become empty strings.
	if got, _ := table.Field(1, "Valor"); got != "50,00" {
		t.Errorf("Field(1, Valor) = %q, want 50,00", got)
	}
	if got, _ := table.Field(1, "Vencimento"); got != "" {
		t.Errorf("Field(1, Vencimento) = %q, want empty", got)
	}
}

func TestParseGvizTable_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"not jsonp", "<html>login page</html>", ErrSourceAccess},
		{"gviz error status", `setResponse({"status":"error"});`, ErrSourceAccess},
		{"no rows", `setResponse({"status":"ok","table":{"cols":[{"label":"A"}],"rows":[]}});`, ErrEmptySource},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseGvizTable([]byte(tt.body))
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFetchPublicTable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("sheet"); got != "Lançamentos" {
			t.Errorf("sheet param = %q", got)
		}
		_, _ = w.Write([]byte(sampleGvizBody))
	}))
	defer srv.Close()

	// Point the client at the test server regardless of the request URL.
	client := &http.Client{Transport: rewriteTransport{base: srv.URL}}

	table, err := FetchPublicTable(context.Background(), client, "sheet-id", "Lançamentos")
	if err != nil {
		t.Fatalf("FetchPublicTable: %v", err)
	}
	if table.Len() != 2 {
		t.Errorf("Len() = %d, want 2", table.Len())
	}
}

func TestFetchPublicTable_NotShared(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := &http.Client{Transport: rewriteTransport{base: srv.URL}}

	_, err := FetchPublicTable(context.Background(), client, "sheet-id", "")
	if !errors.Is(err, ErrSourceAccess) {
		t.Errorf("err = %v, want ErrSourceAccess", err)
	}
}

// rewriteTransport sends every request to the test server.
type rewriteTransport struct {
	base string
}

func (rt rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rewritten := rt.base + "/?" + req.URL.RawQuery
	clone := req.Clone(req.Context())
	var err error
	clone.URL, err = clone.URL.Parse(rewritten)
	if err != nil {
		return nil, err
	}
	clone.Host = clone.URL.Host
	return http.DefaultTransport.RoundTrip(clone)
}
