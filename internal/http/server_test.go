package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"fincontrol/internal/auth"
	"fincontrol/internal/core"
	"fincontrol/internal/log"
	"fincontrol/internal/notify"
	"fincontrol/internal/services"
	"fincontrol/internal/storage/localfile"
	"fincontrol/internal/store"
)

type fakeUserStore struct {
	byEmail map[string]store.User
}

func (f *fakeUserStore) CreateUser(_ context.Context, u store.User) error {
	if _, ok := f.byEmail[u.Email]; ok {
		return store.ErrDuplicateEmail
	}
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeUserStore) UserByEmail(_ context.Context, email string) (store.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return store.User{}, store.ErrNotFound
	}
	return u, nil
}

func newTestServer(t *testing.T, withAuth bool) *Server {
	t.Helper()
	logger := log.New(log.DefaultConfig())

	st, err := localfile.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	broker := notify.NewBroker()
	ledger := services.NewLedger(st, broker, logger)

	opts := Options{
		Addr:     ":0",
		Ledger:   ledger,
		Notifier: broker,
		Logger:   logger,
	}
	if withAuth {
		tokens := auth.NewTokenManager("test-secret-0123456789", time.Hour)
		users := &fakeUserStore{byEmail: make(map[string]store.User)}
		opts.Tokens = tokens
		opts.AuthSvc = auth.NewService(users, tokens, logger)
	}

	srv, err := NewServer(opts)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
		broker.Close()
		st.Close()
	})
	return srv
}

func doRequest(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	srv.Server.Handler.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
}

func serviceBody(client string, cents string) map[string]any {
	return map[string]any{
		"client":      client,
		"description": "website",
		"value":       cents,
		"startDate":   "2026-02-01",
		"status":      "pending",
	}
}

func TestServiceCRUDOverHTTP(t *testing.T) {
	srv := newTestServer(t, false)

	rec := doRequest(t, srv, http.MethodPost, "/api/services", "", serviceBody("Acme", "1500.00"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created core.Service
	decodeInto(t, rec, &created)
	if created.ID == "" {
		t.Fatal("no ID in response")
	}
	if created.Value.Cents != 150000 {
		t.Fatalf("value: %+v", created.Value)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/services", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rec.Code)
	}
	var list []core.Service
	decodeInto(t, rec, &list)
	if len(list) != 1 || list[0].ID != created.ID {
		t.Fatalf("list: %+v", list)
	}

	update := serviceBody("Acme", "1500.00")
	update["status"] = "completed"
	rec = doRequest(t, srv, http.MethodPut, "/api/services/"+created.ID, "", update)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var updated core.Service
	decodeInto(t, rec, &updated)
	if updated.Status != core.StatusCompleted {
		t.Fatalf("status not updated: %+v", updated)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/api/services/"+created.ID, "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodDelete, "/api/services/"+created.ID, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: expected 404, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/services", "", nil)
	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Fatalf("empty list must be [], got %q", body)
	}
}

func TestServiceValidation(t *testing.T) {
	srv := newTestServer(t, false)

	bad := serviceBody("", "1500.00")
	rec := doRequest(t, srv, http.MethodPost, "/api/services", "", bad)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("empty client: expected 422, got %d", rec.Code)
	}

	bad = serviceBody("Acme", "0")
	rec = doRequest(t, srv, http.MethodPost, "/api/services", "", bad)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("zero value: expected 422, got %d", rec.Code)
	}

	bad = serviceBody("Acme", "1500.00")
	bad["endDate"] = "2026-01-01" // before start
	rec = doRequest(t, srv, http.MethodPost, "/api/services", "", bad)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("end before start: expected 422, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/services", "", map[string]any{"bogus": true})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown field: expected 400, got %d", rec.Code)
	}
}

func TestServiceSearchAndStatusFilter(t *testing.T) {
	srv := newTestServer(t, false)

	for _, b := range []map[string]any{
		serviceBody("Acme Corp", "100.00"),
		serviceBody("Globex", "200.00"),
	} {
		if rec := doRequest(t, srv, http.MethodPost, "/api/services", "", b); rec.Code != http.StatusCreated {
			t.Fatalf("seed: %d", rec.Code)
		}
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/services?search=acme", "", nil)
	var list []core.Service
	decodeInto(t, rec, &list)
	if len(list) != 1 || list[0].Client != "Acme Corp" {
		t.Fatalf("search filter: %+v", list)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/services?status=completed", "", nil)
	decodeInto(t, rec, &list)
	if len(list) != 0 {
		t.Fatalf("status filter: %+v", list)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/services?status=all", "", nil)
	decodeInto(t, rec, &list)
	if len(list) != 2 {
		t.Fatalf("status=all: %+v", list)
	}
}

func TestWithdrawalsHaveNoUpdateRoute(t *testing.T) {
	srv := newTestServer(t, false)

	body := map[string]any{
		"description": "hosting",
		"value":       "30.50",
		"date":        "2026-02-15",
		"category":    "operational",
	}
	rec := doRequest(t, srv, http.MethodPost, "/api/withdrawals", "", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created core.Withdrawal
	decodeInto(t, rec, &created)

	rec = doRequest(t, srv, http.MethodPut, "/api/withdrawals/"+created.ID, "", body)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT on withdrawal: expected 405, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodDelete, "/api/withdrawals/"+created.ID, "", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
}

func TestDashboardReflectsWrites(t *testing.T) {
	srv := newTestServer(t, false)

	rec := doRequest(t, srv, http.MethodGet, "/api/dashboard", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d", rec.Code)
	}
	var dash dashboardPayload
	decodeInto(t, rec, &dash)
	if dash.Totals.Balance.Cents != 0 {
		t.Fatalf("expected zero balance, got %+v", dash.Totals)
	}
	if len(dash.Chart) != 2 {
		t.Fatalf("chart must have exactly two points: %+v", dash.Chart)
	}

	// A write bumps the owner's version, so the cached zero-balance
	// response must not be served again.
	if rec := doRequest(t, srv, http.MethodPost, "/api/services", "", serviceBody("Acme", "1500.00")); rec.Code != http.StatusCreated {
		t.Fatalf("seed: %d", rec.Code)
	}
	rec = doRequest(t, srv, http.MethodGet, "/api/dashboard", "", nil)
	decodeInto(t, rec, &dash)
	if dash.Totals.TotalIncome.Cents != 150000 {
		t.Fatalf("dashboard served stale data: %+v", dash.Totals)
	}
}

func TestAuthGatesRemoteBackend(t *testing.T) {
	srv := newTestServer(t, true)

	rec := doRequest(t, srv, http.MethodGet, "/api/services", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no token: expected 401, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email": "ana@example.com", "password": "password123",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("signup: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var signedUp authResponse
	decodeInto(t, rec, &signedUp)
	if signedUp.Token == "" {
		t.Fatal("no token in signup response")
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/services", signedUp.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("with token: expected 200, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email": "ana@example.com", "password": "password123",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: expected 409, got %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "ana@example.com", "password": "wrong-password",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad login: expected 401, got %d", rec.Code)
	}
}

func TestOwnersAreIsolated(t *testing.T) {
	srv := newTestServer(t, true)

	tokens := make(map[string]string)
	for _, email := range []string{"ana@example.com", "bo@example.com"} {
		rec := doRequest(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]any{
			"email": email, "password": "password123",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("signup %s: %d", email, rec.Code)
		}
		var resp authResponse
		decodeInto(t, rec, &resp)
		tokens[email] = resp.Token
	}

	if rec := doRequest(t, srv, http.MethodPost, "/api/services", tokens["ana@example.com"], serviceBody("Acme", "10.00")); rec.Code != http.StatusCreated {
		t.Fatalf("create: %d", rec.Code)
	}

	// localfile ignores owners, so isolation here only checks the token
	// plumbing end to end: both owners resolve and reach the store.
	rec := doRequest(t, srv, http.MethodGet, "/api/services", tokens["bo@example.com"], nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second owner list: %d", rec.Code)
	}
}

func TestLocalBackendHasNoAuthRoutes(t *testing.T) {
	srv := newTestServer(t, false)
	rec := doRequest(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]any{
		"email": "ana@example.com", "password": "password123",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t, false)

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, srv, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}

	doRequest(t, srv, http.MethodGet, "/api/services", "", nil)
	rec := doRequest(t, srv, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "requests_total") {
		t.Fatalf("metrics body: %q", rec.Body.String())
	}
}

func TestWebsocketRequiresTokenWhenAuthEnabled(t *testing.T) {
	srv := newTestServer(t, true)
	rec := doRequest(t, srv, http.MethodGet, "/ws", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestMoneyFormattingInResponses(t *testing.T) {
	srv := newTestServer(t, false)

	if rec := doRequest(t, srv, http.MethodPost, "/api/services", "", serviceBody("Acme", "10.10")); rec.Code != http.StatusCreated {
		t.Fatalf("seed: %d", rec.Code)
	}
	body := map[string]any{
		"description": "fees",
		"value":       "3.05",
		"date":        "2026-02-15",
		"category":    "other",
	}
	if rec := doRequest(t, srv, http.MethodPost, "/api/withdrawals", "", body); rec.Code != http.StatusCreated {
		t.Fatalf("seed withdrawal: %d", rec.Code)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/dashboard", "", nil)
	raw := rec.Body.String()
	for _, want := range []string{`"totalIncome":10.10`, `"totalExpense":3.05`, `"balance":7.05`} {
		if !strings.Contains(raw, want) {
			t.Fatalf("expected %s in %s", want, raw)
		}
	}
}
