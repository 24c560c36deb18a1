package google

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/oauth2"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"saldo/internal/core"
	ports "saldo/internal/sheets"
)

const testClientJSON = `{"installed":{"client_id":"test","client_secret":"test","redirect_uris":["http://localhost"],"auth_uri":"https://accounts.google.com/o/oauth2/auth","token_uri":"https://oauth2.googleapis.com/token"}}`

type recordedCall struct {
	method string
	path   string
	body   map[string]any
}

// fakeSheets records Sheets API calls and answers with minimal valid payloads.
type fakeSheets struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if data, _ := io.ReadAll(r.Body); len(data) > 0 {
		_ = json.Unmarshal(data, &body)
	}
	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{method: r.Method, path: r.URL.Path, body: body})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, ":append"):
		_, _ = w.Write([]byte(`{"updates":{"updatedRange":"Alerts!A2:D2","updatedRows":1}}`))
	case strings.HasSuffix(r.URL.Path, ":clear"):
		_, _ = w.Write([]byte(`{"clearedRange":"Transactions!A1:E10"}`))
	case r.Method == http.MethodPut:
		_, _ = w.Write([]byte(`{"updatedRows":3}`))
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return NewWithService(svc, Config{SpreadsheetID: "sheet-1"}, nil)
}

func TestClient_AppendAlert(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	a := core.Alert{
		ID:        "a1",
		Kind:      core.AlertDueDate,
		Message:   "Vencimento próximo: Rent - R$ 1200,00 (19/10/2026)",
		CreatedAt: time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC),
	}
	ref, err := c.AppendAlert(context.Background(), a)
	if err != nil {
		t.Fatalf("AppendAlert: %v", err)
	}
	if ref != "Alerts!A2:D2" {
		t.Errorf("ref = %q", ref)
	}

	if len(fake.calls) != 1 {
		t.Fatalf("calls = %d", len(fake.calls))
	}
	call := fake.calls[0]
	if call.method != http.MethodPost || !strings.Contains(call.path, "/spreadsheets/sheet-1/values/Alerts!A:D") {
		t.Errorf("call = %s %s", call.method, call.path)
	}
	values, _ := call.body["values"].([]any)
	if len(values) != 1 {
		t.Fatalf("values = %v", call.body)
	}
	row, _ := values[0].([]any)
	if len(row) != 4 || row[1] != "vencimento" || row[3] != "a1" {
		t.Errorf("row = %v", row)
	}
}

func TestClient_AppendAlertValidation(t *testing.T) {
	c := &Client{spreadsheetID: "test"}

	_, err := c.AppendAlert(context.Background(), core.Alert{ID: "", Kind: core.AlertDueDate})
	if !errors.Is(err, core.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got: %v", err)
	}

	_, err = c.AppendAlert(context.Background(), core.Alert{ID: "x", Kind: core.AlertDueDate})
	if err == nil || !strings.Contains(err.Error(), "not initialized") {
		t.Errorf("expected uninitialized error, got: %v", err)
	}
}

func TestClient_AppendAlertServerError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":400,"message":"boom"}}`, http.StatusBadRequest)
	}))

	_, err := c.AppendAlert(context.Background(), core.Alert{ID: "a1", Kind: core.AlertLowBalance})
	if err == nil || !strings.Contains(err.Error(), "append alert to Alerts") {
		t.Fatalf("err = %v", err)
	}
}

func TestClient_WriteTransactions(t *testing.T) {
	fake := &fakeSheets{}
	c := newTestClient(t, fake)

	rows := []ports.TransactionRow{
		{Kind: core.Income, Date: core.NewDate(2026, 10, 1), Description: "Salário", Amount: core.Money{Cents: 500000}},
		{Kind: core.Expense, Date: core.NewDate(2026, 10, 2), Description: "Mercado", Amount: core.Money{Cents: 25075}, Category: "Alimentação"},
	}
	n, err := c.WriteTransactions(context.Background(), rows)
	if err != nil || n != 2 {
		t.Fatalf("WriteTransactions = %d, %v", n, err)
	}

	if len(fake.calls) != 2 {
		t.Fatalf("calls = %d", len(fake.calls))
	}
	if !strings.HasSuffix(fake.calls[0].path, ":clear") {
		t.Errorf("first call = %s", fake.calls[0].path)
	}
	update := fake.calls[1]
	if update.method != http.MethodPut || !strings.Contains(update.path, "Transactions!A1:E3") {
		t.Errorf("update call = %s %s", update.method, update.path)
	}
	values, _ := update.body["values"].([]any)
	if len(values) != 3 {
		t.Fatalf("values = %v", values)
	}
	header, _ := values[0].([]any)
	if header[0] != "Tipo" {
		t.Errorf("header = %v", header)
	}
	last, _ := values[2].([]any)
	if last[3] != "250.75" || last[4] != "Alimentação" {
		t.Errorf("row = %v", last)
	}
}

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), Config{}, nil)
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNewSheetsService_Credentials(t *testing.T) {
	dir := t.TempDir()
	tokenFile := filepath.Join(dir, "token.json")
	if err := os.WriteFile(tokenFile, []byte(`{"access_token":"test","token_type":"Bearer"}`), 0600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{
			name:    "missing client",
			cfg:     Config{OAuthTokenJSON: `{"access_token":"test"}`},
			wantErr: "missing oauth client (set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE)",
		},
		{
			name:    "missing token",
			cfg:     Config{OAuthClientJSON: testClientJSON},
			wantErr: "missing oauth token (set GOOGLE_OAUTH_TOKEN_JSON or GOOGLE_OAUTH_TOKEN_FILE)",
		},
		{
			name:    "invalid client json",
			cfg:     Config{OAuthClientJSON: "invalid-json", OAuthTokenJSON: `{"access_token":"test"}`},
			wantErr: "oauth config",
		},
		{
			name:    "invalid token json",
			cfg:     Config{OAuthClientJSON: testClientJSON, OAuthTokenJSON: "invalid-json"},
			wantErr: "oauth token",
		},
		{
			name:    "unreadable client file",
			cfg:     Config{OAuthClientFile: filepath.Join(dir, "missing.json"), OAuthTokenFile: tokenFile},
			wantErr: "read oauth client",
		},
		{
			name: "valid inline client with token file",
			cfg:  Config{OAuthClientJSON: testClientJSON, OAuthTokenFile: tokenFile},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := newSheetsService(context.Background(), tt.cfg)
			if tt.wantErr == "" {
				if err != nil || svc == nil {
					t.Fatalf("newSheetsService = %v, %v", svc, err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestJsonUnmarshalIndirection(t *testing.T) {
	var token oauth2.Token
	if err := jsonUnmarshal([]byte(`{"access_token":"test","token_type":"Bearer"}`), &token); err != nil {
		t.Fatalf("jsonUnmarshal failed: %v", err)
	}
	if token.AccessToken != "test" {
		t.Errorf("expected access token 'test', got %s", token.AccessToken)
	}
	if err := jsonUnmarshal([]byte(`{invalid json}`), &token); err == nil {
		t.Fatal("expected error with invalid JSON")
	}
}

func TestNewWithService_DefaultSheetNames(t *testing.T) {
	c := NewWithService(nil, Config{SpreadsheetID: "x", AlertsSheet: "  "}, nil)
	if c.alertsSheet != "Alerts" || c.transactionsSheet != "Transactions" {
		t.Errorf("sheets = %q %q", c.alertsSheet, c.transactionsSheet)
	}
}
