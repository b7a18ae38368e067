package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labfunds/internal/auth"
	"labfunds/internal/core"
	"labfunds/internal/funds"
	"labfunds/internal/services"
	"labfunds/internal/storage/memory"
)

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

type testServer struct {
	t      *testing.T
	srv    *Server
	tokens *auth.JWTProvider
	admin  string
	viewer string
}

func newTestServer(t *testing.T, ready Pinger) *testServer {
	t.Helper()
	store := memory.New()
	fs := services.NewFundService(store,
		services.WithClock(funds.FixedClock(core.MustDate("2024-05-01").Time)),
	)
	provider, err := auth.NewJWTProvider("0123456789abcdef0123", "labfunds-test")
	require.NoError(t, err)
	srv := NewServer(fs, services.NewExpenseService(store, fs), Options{
		Auth:              provider,
		Ready:             ready,
		RequestsPerMinute: 1000,
	})
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })

	admin, err := provider.Issue(auth.Identity{Email: "pi@lab.test", Role: auth.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	viewer, err := provider.Issue(auth.Identity{Email: "guest@lab.test", Role: auth.RoleViewer}, time.Hour)
	require.NoError(t, err)
	return &testServer{t: t, srv: srv, tokens: provider, admin: admin, viewer: viewer}
}

func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(ts.t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const yearlyProject = `{
	"name": "Microscopy",
	"project_type": "yearly",
	"start_date": "2023-04-01",
	"end_date": "2026-03-31",
	"project_heads": {"Equipment": ["1000", "1000", "1000"], "Travel": ["200", "200", "200"]}
}`

type projectBody struct {
	ID           string `json:"id"`
	Version      int64  `json:"version"`
	CurrentIndex int    `json:"current_index"`
	PeriodCount  int    `json:"period_count"`
}

func (ts *testServer) createProject() projectBody {
	ts.t.Helper()
	rec := ts.do(http.MethodPost, "/api/projects", ts.admin, yearlyProject)
	require.Equal(ts.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[projectBody](ts.t, rec)
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t, pinger{})
	rec := ts.do(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = ts.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	down := newTestServer(t, pinger{err: errors.New("db gone")})
	rec = down.do(http.MethodGet, "/readyz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(http.MethodGet, "/api/projects", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")

	rec = ts.do(http.MethodGet, "/api/projects", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(http.MethodGet, "/api/projects", ts.viewer, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/api/projects", ts.viewer, yearlyProject)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "forbidden", decode[map[string]string](t, rec)["error"])
}

func TestProjectLifecycle(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createProject()
	assert.Equal(t, 1, p.CurrentIndex)
	assert.Equal(t, 3, p.PeriodCount)

	rec := ts.do(http.MethodGet, "/api/projects/"+p.ID, ts.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodPost, "/api/expenses", ts.admin, map[string]any{
		"reason": "Objective lens", "category": "Equipment", "amount": "300", "paid_by": "pi",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	expense := decode[map[string]any](t, rec)

	rec = ts.do(http.MethodPost, "/api/reimbursements", ts.admin, map[string]any{
		"project_id": p.ID, "project_head": "Equipment", "expense_ids": []any{expense["id"]},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/projects/"+p.ID+"/total-expenses", ts.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-Period-Index"))
	totals := decode[map[string]string](t, rec)
	assert.Equal(t, "300", totals["Equipment"])

	rec = ts.do(http.MethodPost, "/api/projects/"+p.ID+"/carry", ts.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 2, decode[projectBody](t, rec).CurrentIndex)

	rec = ts.do(http.MethodGet, "/api/projects/"+p.ID+"/total-expenses", ts.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-Period-Index"))

	// Moving back onto a period with a recorded carry conflicts.
	rec = ts.do(http.MethodPost, "/api/projects/"+p.ID+"/override", ts.admin, `{"selectedIndex": 1}`)
	assert.Equal(t, http.StatusConflict, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodPost, "/api/projects/"+p.ID+"/carry", ts.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/projects/"+p.ID+"/balance", ts.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/projects/"+p.ID+"/reimbursements", ts.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)
}

func TestOverrideEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	p := ts.createProject()

	rec := ts.do(http.MethodPost, "/api/projects/"+p.ID+"/override", ts.admin, `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/projects/"+p.ID+"/override", ts.admin, `{"selectedIndex": 7}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(http.MethodPost, "/api/projects/"+p.ID+"/override", ts.admin, `{"selectedIndex": 0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, decode[projectBody](t, rec).CurrentIndex)

	rec = ts.do(http.MethodDelete, "/api/projects/"+p.ID+"/override", ts.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, decode[projectBody](t, rec).CurrentIndex)

	rec = ts.do(http.MethodDelete, "/api/projects/"+p.ID+"/override", ts.admin, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	ts := newTestServer(t, nil)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad uuid", http.MethodGet, "/api/projects/nope", nil, http.StatusBadRequest},
		{"unknown project", http.MethodGet, "/api/projects/6f1c1c1e-0000-4000-8000-000000000000", nil, http.StatusNotFound},
		{"empty body", http.MethodPost, "/api/projects", nil, http.StatusBadRequest},
		{"unknown field", http.MethodPost, "/api/expenses", `{"reason":"x","bogus":1}`, http.StatusBadRequest},
		{"trailing data", http.MethodPost, "/api/expenses", `{"reason":"x"} {}`, http.StatusBadRequest},
		{"malformed heads", http.MethodPost, "/api/projects", `{"name":"x","project_type":"yearly","project_heads":[]}`, http.StatusBadRequest},
		{"unknown expense", http.MethodPatch, "/api/expenses/6f1c1c1e-0000-4000-8000-000000000000", `{"reason":"x"}`, http.StatusNotFound},
		{"sub-cent amount", http.MethodPost, "/api/expenses", `{"reason":"x","amount":0.004}`, http.StatusBadRequest},
		{"empty paid batch", http.MethodPost, "/api/reimbursements/paid", `{"ids":[],"paid":true}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(tt.method, tt.path, ts.admin, tt.body)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[map[string]string](t, rec)["error"])
		})
	}
}

func TestAccountsEndpoints(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodPost, "/api/accounts", ts.admin, map[string]any{
		"amount": "500", "type": "Savings", "credited": true, "transferable": "500",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = ts.do(http.MethodGet, "/api/accounts", ts.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	rec = ts.do(http.MethodGet, "/api/accounts/balance", ts.viewer, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestSuspiciousRequestsAreHidden(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(http.MethodGet, "/api/../.env", ts.admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
