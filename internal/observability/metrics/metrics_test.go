package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/v1/documents/abc":       "/v1/documents/{document_id}",
		"/v1/sessions/s1/history": "/v1/sessions/{session_id}/history",
		"/v1/chat":                "/v1/chat",
		"/healthz":                "/healthz",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := NewHTTPServerMetrics("rag-api")
	handler := m.Middleware("rag-api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/documents/doc-1", nil))

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("rag-api", http.MethodGet, "/v1/documents/{document_id}", "418"))
	if got != 1 {
		t.Fatalf("expected one counted request, got %v", got)
	}
}

func TestRecordRAGObservationCountsNoEvidence(t *testing.T) {
	m := NewHTTPServerMetrics("rag-api")
	m.RecordRAGObservation("rag-api", "chat", 0, 10*time.Millisecond)
	m.RecordRAGObservation("rag-api", "chat", 3, 10*time.Millisecond)
	m.RecordRAGFailure("rag-api", "chat", time.Millisecond)

	if got := testutil.ToFloat64(m.ragRequestsTotal.WithLabelValues("rag-api", "chat")); got != 2 {
		t.Fatalf("requests = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ragNoEvidenceTotal.WithLabelValues("rag-api", "chat")); got != 1 {
		t.Fatalf("no evidence = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ragFailuresTotal.WithLabelValues("rag-api", "chat")); got != 1 {
		t.Fatalf("failures = %v, want 1", got)
	}
}

func TestBreakerStateGauge(t *testing.T) {
	m := NewHTTPServerMetrics("rag-api")
	m.Breakers().OnStateChange("qdrant.search", "closed", "open")

	if got := testutil.ToFloat64(m.breakers.state.WithLabelValues("rag-api", "qdrant.search")); got != 2 {
		t.Fatalf("state = %v, want 2", got)
	}
	m.Breakers().OnStateChange("qdrant.search", "open", "half-open")
	if got := testutil.ToFloat64(m.breakers.state.WithLabelValues("rag-api", "qdrant.search")); got != 1 {
		t.Fatalf("state = %v, want 1", got)
	}

	res := httptest.NewRecorder()
	m.Handler().ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(res.Body.String(), "pdfrag_breaker_transitions_total") {
		t.Fatalf("expected breaker metrics in exposition")
	}
}

func TestWorkerMetrics(t *testing.T) {
	m := NewWorkerMetrics("rag-worker")
	m.StartDocument()
	m.FinishDocument("rag-worker", time.Second, errors.New("boom"))
	m.RecordIndexed("rag-worker", 3, 12)
	m.ObserveQueueLag("rag-worker", -time.Second)

	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("rag-worker", "error")); got != 1 {
		t.Fatalf("error count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.indexedChunks.WithLabelValues("rag-worker")); got != 12 {
		t.Fatalf("indexed chunks = %v, want 12", got)
	}
	if got := testutil.ToFloat64(m.processInFlight); got != 0 {
		t.Fatalf("in flight = %v, want 0", got)
	}
}
