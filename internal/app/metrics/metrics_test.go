package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentHandlerUsesRouteTemplate(t *testing.T) {
	router := mux.NewRouter()
	router.Use(InstrumentHandler)
	router.HandleFunc("/person/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/person/17", nil))

	got := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/person/{id}", "404"))
	if got < 1 {
		t.Fatalf("expected request counted under route template, got %v", got)
	}
}

func TestRecordOperation(t *testing.T) {
	before := testutil.ToFloat64(personOperations.WithLabelValues("add", OutcomeRejected))
	RecordOperation("add", OutcomeRejected, 0)
	after := testutil.ToFloat64(personOperations.WithLabelValues("add", OutcomeRejected))
	if after-before != 1 {
		t.Fatalf("expected counter to increase by 1, got %v", after-before)
	}
	RecordOperation("add", OutcomeOK, 3*time.Millisecond)
}

func TestHandlerExposesMetrics(t *testing.T) {
	RecordOperation("find_by_id", OutcomeOK, time.Millisecond)
	resp := httptest.NewRecorder()
	Handler().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "person_service_persons_operations_total") {
		t.Fatalf("expected person operation metric in output")
	}
}

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":               "/",
		"/":              "/",
		"/healthz":       "/healthz",
		"/person":        "/person",
		"/person/1/name": "/person/:rest",
	}
	for in, want := range cases {
		if got := canonicalPath(in); got != want {
			t.Fatalf("canonicalPath(%q) = %q, want %q", in, got, want)
		}
	}
}
