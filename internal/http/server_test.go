package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"budgetsim/internal/broadcast"
	"budgetsim/internal/core"
	"budgetsim/internal/ledger"
	"budgetsim/internal/log"
	"budgetsim/internal/middleware/ratelimit"
	"budgetsim/internal/readmodel"
	"budgetsim/internal/storage"
)

type testServer struct {
	srv    *Server
	repo   *storage.SQLiteRepository
	hub    *broadcast.Hub
	family *core.Family
	person *core.Person
}

// newTestServer wires the real ledger, read model and hub over a temp database
// holding one family, Boling, with one employee, Aber.
func newTestServer(t *testing.T, mutate ...func(*Config)) *testServer {
	t.Helper()
	ctx := context.Background()

	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })

	reader := readmodel.New(repo, readmodel.DefaultConfig(), log.Discard())
	hub := broadcast.NewHub(reader, broadcast.HubConfig{Buffer: 4}, broadcast.WithInvalidator(reader.Invalidate))
	t.Cleanup(hub.Close)
	svc := ledger.NewService(repo, ledger.WithNotifier(hub), ledger.WithLogger(log.Discard()))

	family, err := repo.CreateFamily(ctx, core.Family{
		Name:           "Boling",
		BankTotal:      core.MustAmount("400"),
		AutomobileLoan: core.MustAmount("600"),
		UtilitiesGas:   core.MustAmount("50"),
		FoodWeekly:     core.MustAmount("75"),
	})
	require.NoError(t, err)
	person, err := repo.CreatePerson(ctx, core.Person{
		FirstName: "Aber",
		LastName:  "Boling",
		FamilyID:  family.ID,
		Week1Pay:  core.MustAmount("600"),
		Week2Pay:  core.MustAmount("600"),
	})
	require.NoError(t, err)

	cfg := Config{
		Addr:      ":0",
		Ledger:    svc,
		Reader:    reader,
		Stream:    hub,
		Ready:     repo,
		KeepAlive: time.Hour,
		Logger:    log.Discard(),
	}
	for _, m := range mutate {
		m(&cfg)
	}
	srv, err := NewServer(cfg)
	require.NoError(t, err)

	return &testServer{srv: srv, repo: repo, hub: hub, family: family, person: person}
}

func (ts *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	switch b := body.(type) {
	case nil:
		rd = bytes.NewReader(nil)
	case string:
		rd = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	return rec
}

type familyEnvelope struct {
	Data core.Family `json:"data"`
}

type familiesEnvelope struct {
	Data []core.Family `json:"data"`
}

type messageBody struct {
	Message string `json:"message"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func assertMoney(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, core.MustAmount(want).Equal(got), "want %s, got %s", want, got)
}

func TestHealthAndReady(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("db gone") }

func TestReadyReportsUnavailable(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.Ready = failingPinger{} })
	rec := ts.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReadEndpoints(t *testing.T) {
	ts := newTestServer(t)

	t.Run("list families", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/families/", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
		body := decode[familiesEnvelope](t, rec)
		require.Len(t, body.Data, 1)
		assert.Equal(t, "Boling", body.Data[0].Name)
	})

	t.Run("get family is a one-element list", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/families/"+itoa(ts.family.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode[familiesEnvelope](t, rec)
		require.Len(t, body.Data, 1)
		assertMoney(t, "400", body.Data[0].BankTotal)
	})

	t.Run("missing family", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/families/999", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Equal(t, "Family not found", decode[messageBody](t, rec).Message)
	})

	t.Run("bad id", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/families/abc", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("search ignores case", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/families/search/boling", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, decode[familiesEnvelope](t, rec).Data, 1)

		rec = ts.do(t, http.MethodGet, "/families/search/nobody", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, decode[familiesEnvelope](t, rec).Data)
	})

	t.Run("people by family", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/people?family_id="+itoa(ts.family.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var body struct {
			Data []core.Person `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		require.Len(t, body.Data, 1)
		assert.Equal(t, "Aber", body.Data[0].FirstName)
		assert.Contains(t, rec.Body.String(), `"Week1Pay":600`)

		rec = ts.do(t, http.MethodGet, "/people?family_id=x", nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("get person", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/people/"+itoa(ts.person.ID), nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"first_name":"Aber"`)

		rec = ts.do(t, http.MethodGet, "/people/404", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestTransactionEndpoints(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		body      func(ts *testServer) any
		wantCode  int
		wantMsg   string
		wantFound string
	}{
		{
			name:     "deposit",
			path:     "/api/transactions/deposit",
			body:     func(ts *testServer) any { return map[string]any{"family_id": ts.family.ID, "amount": 100} },
			wantCode: http.StatusOK, wantFound: `"bank_total":500`,
		},
		{
			name:     "deposit accepts string fields",
			path:     "/api/transactions/deposit",
			body:     func(ts *testServer) any { return map[string]any{"family_id": itoa(ts.family.ID), "amount": "12.50"} },
			wantCode: http.StatusOK, wantFound: `"bank_total":412.5`,
		},
		{
			name:     "deposit over the cap",
			path:     "/api/transactions/deposit",
			body:     func(ts *testServer) any { return map[string]any{"family_id": ts.family.ID, "amount": 1001} },
			wantCode: http.StatusUnprocessableEntity, wantMsg: "Amount must be > 0 and ≤ 1000",
		},
		{
			name:     "deposit negative",
			path:     "/api/transactions/deposit",
			body:     func(ts *testServer) any { return map[string]any{"family_id": ts.family.ID, "amount": -5} },
			wantCode: http.StatusUnprocessableEntity, wantMsg: "Amount must be > 0 and ≤ 1000",
		},
		{
			name:     "deposit to missing family",
			path:     "/api/transactions/deposit",
			body:     func(*testServer) any { return map[string]any{"family_id": 999, "amount": 10} },
			wantCode: http.StatusNotFound, wantMsg: "Family not found",
		},
		{
			name:     "withdraw too much",
			path:     "/api/transactions/withdraw",
			body:     func(ts *testServer) any { return map[string]any{"family_id": ts.family.ID, "amount": 500} },
			wantCode: http.StatusUnprocessableEntity, wantMsg: "Insufficient funds. Available: $400.00, Required: $500.00",
		},
		{
			name:     "withdraw",
			path:     "/api/transactions/withdraw",
			body:     func(ts *testServer) any { return map[string]any{"family_id": ts.family.ID, "amount": 150} },
			wantCode: http.StatusOK, wantFound: `"bank_total":250`,
		},
		{
			name: "pay auto loan",
			path: "/api/transactions/pay-bill",
			body: func(ts *testServer) any {
				return map[string]any{"family_id": ts.family.ID, "bill_type": "autoLoan", "amount": 400}
			},
			wantCode: http.StatusOK, wantFound: `"automobile_loan":200`,
		},
		{
			name: "unknown bill type",
			path: "/api/transactions/pay-bill",
			body: func(ts *testServer) any {
				return map[string]any{"family_id": ts.family.ID, "bill_type": "yacht", "amount": 10}
			},
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name: "food for a week",
			path: "/api/transactions/pay-bill",
			body: func(ts *testServer) any {
				return map[string]any{"family_id": ts.family.ID, "bill_type": "food", "amount": 75, "week": 2}
			},
			wantCode: http.StatusOK, wantFound: `"food_week2_paid":true`,
		},
		{
			name: "week out of range",
			path: "/api/transactions/pay-bill",
			body: func(ts *testServer) any {
				return map[string]any{"family_id": ts.family.ID, "bill_type": "food", "amount": 75, "week": 5}
			},
			wantCode: http.StatusUnprocessableEntity, wantMsg: "Week must be between 1 and 4",
		},
		{
			name: "pay employee",
			path: "/api/transactions/pay-employee",
			body: func(ts *testServer) any {
				return map[string]any{"family_id": ts.family.ID, "person_id": ts.person.ID, "week": 1, "amount": 600}
			},
			wantCode: http.StatusOK, wantFound: `"week1_paid":true`,
		},
		{
			name: "set status",
			path: "/api/transactions/set-status",
			body: func(ts *testServer) any {
				return map[string]any{"person_id": ts.person.ID, "status": "OnLeave", "value": true}
			},
			wantCode: http.StatusOK, wantFound: `"OnLeave":true`,
		},
		{
			name: "set status with a bad name",
			path: "/api/transactions/set-status",
			body: func(ts *testServer) any {
				return map[string]any{"person_id": ts.person.ID, "status": "Retired", "value": true}
			},
			wantCode: http.StatusUnprocessableEntity, wantMsg: "Invalid status. Must be one of: OnLeave, Fired",
		},
		{
			name:     "missing family id",
			path:     "/api/transactions/deposit",
			body:     func(*testServer) any { return map[string]any{"amount": 10} },
			wantCode: http.StatusUnprocessableEntity, wantMsg: "family_id is required",
		},
		{
			name:     "malformed json",
			path:     "/api/transactions/deposit",
			body:     func(*testServer) any { return `{"family_id":` },
			wantCode: http.StatusBadRequest, wantMsg: "Invalid JSON body",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			rec := ts.do(t, http.MethodPost, tt.path, tt.body(ts))
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, decode[messageBody](t, rec).Message)
			}
			if tt.wantFound != "" {
				assert.Contains(t, rec.Body.String(), tt.wantFound)
			}
		})
	}
}

func TestPayEmployeeConflicts(t *testing.T) {
	ts := newTestServer(t)
	body := map[string]any{"family_id": ts.family.ID, "person_id": ts.person.ID, "week": 1, "amount": 600}

	rec := ts.do(t, http.MethodPost, "/api/transactions/pay-employee", body)
	require.Equal(t, http.StatusOK, rec.Code)
	var payroll struct {
		Data struct {
			Family core.Family `json:"family"`
			Person core.Person `json:"person"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payroll))
	assertMoney(t, "1000", payroll.Data.Family.BankTotal)
	assert.True(t, payroll.Data.Person.Week1Paid)

	rec = ts.do(t, http.MethodPost, "/api/transactions/pay-employee", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "This week has already been paid", decode[messageBody](t, rec).Message)

	rec = ts.do(t, http.MethodPost, "/api/transactions/set-status",
		map[string]any{"person_id": ts.person.ID, "status": "Fired", "value": "true"})
	require.Equal(t, http.StatusOK, rec.Code)

	body["week"] = 2
	rec = ts.do(t, http.MethodPost, "/api/transactions/pay-employee", body)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Cannot deposit - person has been fired", decode[messageBody](t, rec).Message)
}

func TestRejectedWriteChangesNothing(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/transactions/pay-bill",
		map[string]any{"family_id": ts.family.ID, "bill_type": "autoLoan", "amount": 700})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodGet, "/families/"+itoa(ts.family.ID), nil)
	f := decode[familiesEnvelope](t, rec).Data[0]
	assertMoney(t, "400", f.BankTotal)
	assertMoney(t, "600", f.AutomobileLoan)
}

func TestReadAfterWriteSeesNewState(t *testing.T) {
	ts := newTestServer(t)

	// Warm the cache first.
	ts.do(t, http.MethodGet, "/families/", nil)

	rec := ts.do(t, http.MethodPost, "/api/transactions/deposit", map[string]any{"family_id": ts.family.ID, "amount": 25})
	require.Equal(t, http.StatusOK, rec.Code)
	assertMoney(t, "425", decode[familyEnvelope](t, rec).Data.BankTotal)

	rec = ts.do(t, http.MethodGet, "/families/", nil)
	assertMoney(t, "425", decode[familiesEnvelope](t, rec).Data[0].BankTotal)
}

func TestAdminEndpoints(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/families/", map[string]any{
		"name":             "Ortiz",
		"bank_total":       "250",
		"misc_bank":        20,
		"misc_supercenter": 5,
		"misc":             1,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	families := decode[familiesEnvelope](t, rec).Data
	require.Len(t, families, 2)
	ortiz := families[1]
	assert.Equal(t, "Ortiz", ortiz.Name)
	assertMoney(t, "250", ortiz.BankTotal)
	assertMoney(t, "26", ortiz.Misc)

	rec = ts.do(t, http.MethodPost, "/families/", map[string]any{"name": "  "})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodPost, "/people", map[string]any{
		"first_name": "Lia", "last_name": "Ortiz", "family_id": itoa(ortiz.ID), "Week1Pay": "300",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var people struct {
		Data []core.Person `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &people))
	require.Len(t, people.Data, 1)
	lia := people.Data[0]
	assertMoney(t, "300", lia.Week1Pay)

	rec = ts.do(t, http.MethodPut, "/people/"+itoa(lia.ID), map[string]any{"last_name": "Ortiz-Reyes", "Week2Pay": 310})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &people))
	assert.Equal(t, "Lia", people.Data[0].FirstName)
	assert.Equal(t, "Ortiz-Reyes", people.Data[0].LastName)
	assertMoney(t, "300", people.Data[0].Week1Pay)
	assertMoney(t, "310", people.Data[0].Week2Pay)

	rec = ts.do(t, http.MethodDelete, "/people/"+itoa(lia.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"data":[]}`, rec.Body.String())

	rec = ts.do(t, http.MethodDelete, "/families/"+itoa(ts.family.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[familiesEnvelope](t, rec).Data, 1)

	rec = ts.do(t, http.MethodGet, "/people/"+itoa(ts.person.ID), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "people cascade with their family")
}

func TestMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/api/transactions/deposit", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestWritesAreRateLimited(t *testing.T) {
	ts := newTestServer(t, func(c *Config) {
		c.RateLimit = ratelimit.Config{RequestsPerMinute: 1}
	})
	body := map[string]any{"family_id": ts.family.ID, "amount": 1}

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/transactions/deposit", body).Code)
	rec := ts.do(t, http.MethodPost, "/api/transactions/deposit", body)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/families/", nil).Code, "reads are not limited")
}

func TestResponsesCarryRequestID(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/families/", nil)
	req.Header.Set("X-Request-ID", "client-abc")
	rec := httptest.NewRecorder()
	ts.srv.Handler.ServeHTTP(rec, req)
	assert.Equal(t, "client-abc", rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestStreamPushesChanges(t *testing.T) {
	ts := newTestServer(t)
	httpSrv := httptest.NewServer(ts.srv.Handler)
	defer httpSrv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpSrv.URL+"/families/stream", nil)
	require.NoError(t, err)
	resp, err := httpSrv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	events := bufio.NewScanner(resp.Body)
	next := func() broadcast.Snapshot {
		t.Helper()
		for events.Scan() {
			line := events.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var snap broadcast.Snapshot
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap))
			return snap
		}
		t.Fatalf("stream ended: %v", events.Err())
		return broadcast.Snapshot{}
	}

	first := next()
	require.Len(t, first.Data, 1)
	assertMoney(t, "400", first.Data[0].BankTotal)

	rec := ts.do(t, http.MethodPost, "/api/transactions/deposit", map[string]any{"family_id": ts.family.ID, "amount": 100})
	require.Equal(t, http.StatusOK, rec.Code)

	for {
		snap := next()
		if snap.Data[0].BankTotal.Equal(core.MustAmount("500")) {
			break
		}
	}
}

func TestShutdownEndsStreams(t *testing.T) {
	ts := newTestServer(t)
	httpSrv := httptest.NewServer(ts.srv.Handler)
	defer httpSrv.Close()

	resp, err := httpSrv.Client().Get(httpSrv.URL + "/families/stream")
	require.NoError(t, err)
	defer resp.Body.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = bufio.NewReader(resp.Body).ReadString(0)
	}()

	require.NoError(t, ts.srv.Shutdown(context.Background()))
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream still open after Shutdown")
	}
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
