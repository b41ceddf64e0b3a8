package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"ledgerly/internal/core"
	"ledgerly/internal/log"
)

func sample() []core.Transaction {
	return []core.Transaction{
		{ID: "1", Text: "Salary", Amount: decimal.NewFromInt(3000), CreatedAt: time.Date(2024, 1, 31, 9, 0, 0, 0, time.UTC)},
		{ID: "2", Text: "Groceries", Amount: decimal.RequireFromString("-42.5")},
	}
}

func TestRows(t *testing.T) {
	rows := Rows(sample())
	require.Len(t, rows, 3)
	assert.Equal(t, []any{"Date", "Description", "Type", "Amount"}, rows[0])
	assert.Equal(t, []any{"2024-01-31 09:00", "Salary", "income", "3000.00"}, rows[1])
	assert.Equal(t, []any{"", "Groceries", "expense", "-42.50"}, rows[2])
}

func TestRows_Empty(t *testing.T) {
	rows := Rows(nil)
	require.Len(t, rows, 1)
}

func TestCredentialsLoad(t *testing.T) {
	_, err := Credentials{}.load()
	assert.ErrorContains(t, err, "missing service account credentials")

	b, err := Credentials{JSON: `{"type":"service_account"}`, File: "/nonexistent"}.load()
	require.NoError(t, err)
	assert.Contains(t, string(b), "service_account")

	_, err = Credentials{File: "/nonexistent/creds.json"}.load()
	assert.ErrorContains(t, err, "read service account file")
}

func TestNew_MissingSpreadsheet(t *testing.T) {
	_, err := New(context.Background(), " ", "Transactions", Credentials{JSON: "{}"}, log.Discard())
	assert.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")
}

type recorded struct {
	method string
	path   string
	body   map[string]any
}

func TestExport(t *testing.T) {
	var (
		mu    sync.Mutex
		calls []recorded
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		calls = append(calls, recorded{method: r.Method, path: r.URL.Path, body: body})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if strings.HasSuffix(r.URL.Path, ":clear") {
			_, _ = w.Write([]byte(`{"clearedRange":"Transactions!A1:D10"}`))
			return
		}
		_, _ = w.Write([]byte(`{"updatedRange":"Transactions!A1:D3","updatedRows":3}`))
	}))
	defer srv.Close()

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	exp := NewWithService(svc, "sheet-123", "", log.Discard())
	rng, err := exp.Export(context.Background(), sample())
	require.NoError(t, err)
	assert.Equal(t, "Transactions!A1:D3", rng)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, calls, 2)
	assert.Equal(t, http.MethodPost, calls[0].method)
	assert.Contains(t, calls[0].path, "sheet-123")
	assert.True(t, strings.HasSuffix(calls[0].path, ":clear"), calls[0].path)

	assert.Equal(t, http.MethodPut, calls[1].method)
	values, ok := calls[1].body["values"].([]any)
	require.True(t, ok, "update body should carry values")
	assert.Len(t, values, 3)
}

func TestExport_NoService(t *testing.T) {
	exp := &Exporter{logger: log.Discard()}
	_, err := exp.Export(context.Background(), sample())
	assert.Error(t, err)
}
