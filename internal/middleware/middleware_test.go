package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/R3E-Network/person_service/internal/app/metrics"
	"github.com/R3E-Network/person_service/pkg/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(TraceID(r.Context())))
	})
}

func TestTracingGeneratesAndPropagatesTraceID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewNop()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	handler := NewTracingMiddleware(log).Handler(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/person/1", nil))
	generated := rec.Header().Get(TraceHeader)
	if generated == "" {
		t.Fatalf("expected generated trace id")
	}
	if rec.Body.String() != generated {
		t.Fatalf("expected trace id in request context, got %q", rec.Body.String())
	}
	if got := gjson.Get(buf.String(), "trace_id").String(); got != generated {
		t.Fatalf("expected logged trace id %q, got %q", generated, got)
	}
	if gjson.Get(buf.String(), "status").Int() != http.StatusOK {
		t.Fatalf("expected logged status 200: %s", buf.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/person/1", nil)
	req.Header.Set(TraceHeader, "abc")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Header().Get(TraceHeader) != "abc" {
		t.Fatalf("expected incoming trace id to be kept")
	}
}

func TestCORS(t *testing.T) {
	handler := NewCORSMiddleware([]string{"https://app.example.com", "*.internal.test"}).Handler(okHandler())

	cases := []struct {
		origin  string
		allowed bool
	}{
		{"https://app.example.com", true},
		{"https://ops.internal.test", true},
		{"https://evil.example.org", false},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/person/1", nil)
		req.Header.Set("Origin", tc.origin)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		got := rec.Header().Get("Access-Control-Allow-Origin") == tc.origin
		if got != tc.allowed {
			t.Fatalf("origin %s: allowed=%v, want %v", tc.origin, got, tc.allowed)
		}
	}

	req := httptest.NewRequest(http.MethodOptions, "/person", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rec.Code)
	}
}

func TestRateLimiterRejectsBurstOverflow(t *testing.T) {
	rl := NewRateLimiter(1, 2, time.Minute, logger.NewNop())
	handler := rl.Handler(okHandler())

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/person/1", nil)
		req.RemoteAddr = "10.0.0.1:5000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
		if rec.Code == http.StatusTooManyRequests && gjson.Get(rec.Body.String(), "error").String() == "" {
			t.Fatalf("expected error body on 429")
		}
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/person/1", nil)
	req.RemoteAddr = "10.0.0.2:5000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected other client to be unaffected, got %d", rec.Code)
	}
}

func TestRateLimiterCleanupDropsIdle(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, 5, time.Minute, logger.NewNop())
	rl.now = func() time.Time { return now }

	rl.getLimiter("a")
	now = now.Add(30 * time.Second)
	rl.getLimiter("b")
	now = now.Add(45 * time.Second)

	if removed := rl.Cleanup(); removed != 1 {
		t.Fatalf("expected 1 idle limiter removed, got %d", removed)
	}
	if _, ok := rl.limiters["b"]; !ok {
		t.Fatalf("expected recent limiter to survive")
	}
}

func TestRateLimiterStartCleanup(t *testing.T) {
	rl := NewRateLimiter(5, 5, time.Minute, logger.NewNop())
	if err := rl.StartCleanup("not a schedule"); err == nil {
		t.Fatalf("expected invalid spec to fail")
	}
	if err := rl.StartCleanup("@every 1h"); err != nil {
		t.Fatalf("start cleanup: %v", err)
	}
	rl.StopCleanup()
	rl.StopCleanup()
}

func TestRecoveryTurnsPanicIntoServerError(t *testing.T) {
	handler := NewRecoveryMiddleware(logger.NewNop()).Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("unreachable variant")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/person/1", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if gjson.Get(rec.Body.String(), "error").String() == "" {
		t.Fatalf("expected error body, got %s", rec.Body.String())
	}
}

func TestRecoveredPanicIsCountedAsServerError(t *testing.T) {
	router := mux.NewRouter()
	router.Use(MetricsMiddleware(), NewRecoveryMiddleware(logger.NewNop()).Handler)
	router.HandleFunc("/explode/{id}", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/explode/3", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	want := `person_service_http_requests_total{method="GET",path="/explode/{id}",status="500"} 1`
	if !strings.Contains(scrape.Body.String(), want) {
		t.Fatalf("expected %q in metrics output", want)
	}
}
