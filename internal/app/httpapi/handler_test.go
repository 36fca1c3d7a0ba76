package httpapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	app "github.com/R3E-Network/person_service/internal/app"
	"github.com/R3E-Network/person_service/internal/app/services/persons"
	"github.com/R3E-Network/person_service/internal/app/storage/memory"
	"github.com/R3E-Network/person_service/internal/middleware"
	"github.com/R3E-Network/person_service/pkg/logger"
	"github.com/R3E-Network/person_service/pkg/testutil"
)

func newTestHandler(t *testing.T, opts ...app.Option) http.Handler {
	t.Helper()
	clock := persons.WithClock(testutil.FixedClock(time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)))
	opts = append(opts, app.WithPersonsOptions(clock))
	application, err := app.New(app.Stores{}, logger.NewNop(), opts...)
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	if err := application.Start(context.Background()); err != nil {
		t.Fatalf("start application: %v", err)
	}
	t.Cleanup(func() { _ = application.Stop(context.Background()) })
	return NewHandler(application, Options{Log: logger.NewNop()})
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, req)
	return resp
}

func expectStatus(t *testing.T, resp *httptest.ResponseRecorder, want int) {
	t.Helper()
	if resp.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, resp.Code, resp.Body.String())
	}
}

func TestPersonLifecycle(t *testing.T) {
	h := newTestHandler(t)

	body := `{"type":"employee","id":7,"name":"Dana","birthDate":"1990-02-03",
		"address":{"city":"Haifa","street":"Hanamal","building":3},"company":"Acme","salary":1000}`
	resp := do(t, h, http.MethodPost, "/person", body)
	expectStatus(t, resp, http.StatusOK)
	if strings.TrimSpace(resp.Body.String()) != "true" {
		t.Fatalf("expected true, got %s", resp.Body.String())
	}

	resp = do(t, h, http.MethodPost, "/person", body)
	expectStatus(t, resp, http.StatusOK)
	if strings.TrimSpace(resp.Body.String()) != "false" {
		t.Fatalf("expected false for duplicate id, got %s", resp.Body.String())
	}

	resp = do(t, h, http.MethodGet, "/person/7", "")
	expectStatus(t, resp, http.StatusOK)
	got := gjson.Parse(resp.Body.String())
	if got.Get("type").String() != "employee" || got.Get("company").String() != "Acme" ||
		got.Get("birthDate").String() != "1990-02-03" || got.Get("address.building").Int() != 3 {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
	if got.Get("hobby").Exists() {
		t.Fatalf("employee must not carry hobby: %s", resp.Body.String())
	}

	resp = do(t, h, http.MethodPut, "/person/7/name/Dina", "")
	expectStatus(t, resp, http.StatusOK)
	if gjson.Get(resp.Body.String(), "name").String() != "Dina" || gjson.Get(resp.Body.String(), "salary").Int() != 1000 {
		t.Fatalf("unexpected body after rename %s", resp.Body.String())
	}

	resp = do(t, h, http.MethodPut, "/person/7/address", `{"city":"Eilat","street":"Coral","building":9}`)
	expectStatus(t, resp, http.StatusOK)
	if gjson.Get(resp.Body.String(), "address.city").String() != "Eilat" || gjson.Get(resp.Body.String(), "name").String() != "Dina" {
		t.Fatalf("unexpected body after address update %s", resp.Body.String())
	}

	resp = do(t, h, http.MethodDelete, "/person/7", "")
	expectStatus(t, resp, http.StatusOK)
	if gjson.Get(resp.Body.String(), "id").Int() != 7 {
		t.Fatalf("expected removed record, got %s", resp.Body.String())
	}

	resp = do(t, h, http.MethodGet, "/person/7", "")
	expectStatus(t, resp, http.StatusNotFound)
	if gjson.Get(resp.Body.String(), "error").String() == "" {
		t.Fatalf("expected error body, got %s", resp.Body.String())
	}
}

func TestAddWithoutBodyReturnsFalse(t *testing.T) {
	h := newTestHandler(t)
	for _, body := range []string{"", "null"} {
		resp := do(t, h, http.MethodPost, "/person", body)
		expectStatus(t, resp, http.StatusOK)
		if strings.TrimSpace(resp.Body.String()) != "false" {
			t.Fatalf("body %q: expected false, got %s", body, resp.Body.String())
		}
	}
}

func TestBadRequests(t *testing.T) {
	h := newTestHandler(t)
	cases := []struct {
		method, path, body string
	}{
		{http.MethodGet, "/person/abc", ""},
		{http.MethodDelete, "/person/abc", ""},
		{http.MethodPut, "/person/abc/name/x", ""},
		{http.MethodGet, "/person/ages/ten/20", ""},
		{http.MethodGet, "/person/salary/1/lots", ""},
		{http.MethodPost, "/person", `{"type":"robot","id":1}`},
		{http.MethodPost, "/person", `{"id":`},
		{http.MethodPut, "/person/1/address", `{"city":`},
	}
	for _, tc := range cases {
		resp := do(t, h, tc.method, tc.path, tc.body)
		if resp.Code != http.StatusBadRequest {
			t.Fatalf("%s %s: expected 400, got %d: %s", tc.method, tc.path, resp.Code, resp.Body.String())
		}
	}
}

func TestUnknownBodyFieldsAreIgnored(t *testing.T) {
	h := newTestHandler(t)

	resp := do(t, h, http.MethodPost, "/person", `{"id":3,"name":"Noa","birthDate":"2001-05-06","nickname":"N",
		"address":{"city":"Acre","street":"Wall","building":1,"zip":"24000"}}`)
	expectStatus(t, resp, http.StatusOK)
	if strings.TrimSpace(resp.Body.String()) != "true" {
		t.Fatalf("expected true, got %s", resp.Body.String())
	}

	resp = do(t, h, http.MethodPut, "/person/3/address", `{"city":"Tiberias","street":"Lake","building":2,"zip":"14100"}`)
	expectStatus(t, resp, http.StatusOK)
	if gjson.Get(resp.Body.String(), "address.city").String() != "Tiberias" {
		t.Fatalf("unexpected body after address update %s", resp.Body.String())
	}
}

func TestMissingIDsAreNotFound(t *testing.T) {
	h := newTestHandler(t)
	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/person/99", ""},
		{http.MethodDelete, "/person/99", ""},
		{http.MethodPut, "/person/99/name/x", ""},
		{http.MethodPut, "/person/99/address", `{"city":"x"}`},
	} {
		resp := do(t, h, tc.method, tc.path, tc.body)
		expectStatus(t, resp, http.StatusNotFound)
	}
}

func TestQueriesOverSeededRecords(t *testing.T) {
	h := newTestHandler(t, app.WithSeed())

	resp := do(t, h, http.MethodGet, "/person/city/Rehovot", "")
	expectStatus(t, resp, http.StatusOK)
	if ids := gjson.Get(resp.Body.String(), "#.id").Array(); len(ids) != 1 || ids[0].Int() != 3000 {
		t.Fatalf("unexpected city result %s", resp.Body.String())
	}

	resp = do(t, h, http.MethodGet, "/person/name/Nobody", "")
	expectStatus(t, resp, http.StatusOK)
	if strings.TrimSpace(resp.Body.String()) != "[]" {
		t.Fatalf("expected empty list, got %s", resp.Body.String())
	}

	resp = do(t, h, http.MethodGet, "/person/ages/0/10", "")
	expectStatus(t, resp, http.StatusOK)
	if ids := gjson.Get(resp.Body.String(), "#.id").Array(); len(ids) != 1 || ids[0].Int() != 2000 {
		t.Fatalf("unexpected age result %s", resp.Body.String())
	}

	resp = do(t, h, http.MethodGet, "/person/salary/0/50000", "")
	expectStatus(t, resp, http.StatusOK)
	for _, typ := range gjson.Get(resp.Body.String(), "#.type").Array() {
		if typ.String() != "employee" {
			t.Fatalf("salary query returned %s", resp.Body.String())
		}
	}

	resp = do(t, h, http.MethodGet, "/person/children", "")
	expectStatus(t, resp, http.StatusOK)
	if gjson.Get(resp.Body.String(), "0.hobby").String() != "hob goblin" {
		t.Fatalf("unexpected children %s", resp.Body.String())
	}

	resp = do(t, h, http.MethodGet, "/person/population/city", "")
	expectStatus(t, resp, http.StatusOK)
	entries := gjson.Parse(resp.Body.String()).Array()
	if len(entries) != 3 {
		t.Fatalf("expected 3 cities, got %s", resp.Body.String())
	}
	for _, e := range entries {
		if e.Get("population").Int() != 1 {
			t.Fatalf("unexpected population entry %s", e.Raw)
		}
	}
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestHandler(t)

	resp := do(t, h, http.MethodGet, "/healthz", "")
	expectStatus(t, resp, http.StatusOK)
	if gjson.Get(resp.Body.String(), "status").String() != "ok" {
		t.Fatalf("unexpected health body %s", resp.Body.String())
	}
	if resp.Header().Get(middleware.TraceHeader) == "" {
		t.Fatalf("expected trace header")
	}

	resp = do(t, h, http.MethodGet, "/metrics", "")
	expectStatus(t, resp, http.StatusOK)
	if !strings.Contains(resp.Body.String(), "person_service_http_requests_total") {
		t.Fatalf("expected http metrics in exposition")
	}
}

func TestUnknownRoute(t *testing.T) {
	h := newTestHandler(t)
	expectStatus(t, do(t, h, http.MethodGet, "/nowhere", ""), http.StatusNotFound)
	expectStatus(t, do(t, h, http.MethodPatch, "/person/1", ""), http.StatusMethodNotAllowed)
}

func TestRateLimitedHandler(t *testing.T) {
	application, err := app.New(app.Stores{}, logger.NewNop())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	h := NewHandler(application, Options{
		Log:         logger.NewNop(),
		RateLimiter: middleware.NewRateLimiter(1, 1, time.Minute, logger.NewNop()),
	})
	expectStatus(t, do(t, h, http.MethodGet, "/person/children", ""), http.StatusOK)
	expectStatus(t, do(t, h, http.MethodGet, "/person/children", ""), http.StatusTooManyRequests)
}

func TestStoreFailuresAreServerErrors(t *testing.T) {
	store := testutil.NewFaultyStore(memory.New())
	application, err := app.New(app.Stores{Persons: store}, logger.NewNop())
	if err != nil {
		t.Fatalf("new application: %v", err)
	}
	h := NewHandler(application, Options{Log: logger.NewNop()})

	store.FailPing(errors.New("connection refused"))
	resp := do(t, h, http.MethodGet, "/healthz", "")
	expectStatus(t, resp, http.StatusServiceUnavailable)
	if gjson.Get(resp.Body.String(), "status").String() != "unavailable" {
		t.Fatalf("unexpected health body %s", resp.Body.String())
	}

	store.FailReads(errors.New("disk on fire"))
	expectStatus(t, do(t, h, http.MethodGet, "/person/1", ""), http.StatusInternalServerError)
	expectStatus(t, do(t, h, http.MethodGet, "/person/population/city", ""), http.StatusInternalServerError)

	store.FailTx(errors.New("tx aborted"))
	expectStatus(t, do(t, h, http.MethodPost, "/person", `{"id":1,"name":"x"}`), http.StatusInternalServerError)
}
