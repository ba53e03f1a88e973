package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/v1/batches/3f0c":   "/v1/batches/{batch_id}",
		"/v1/classify":       "/v1/classify",
		"/v1/classify/batch": "/v1/classify/batch",
		"/healthz":           "/healthz",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestMiddlewareRecordsStatusAndPath(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	handler := m.Middleware("api", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/batches/abc", nil))

	got := testutil.ToFloat64(m.requestTotal.WithLabelValues("api", http.MethodGet, "/v1/batches/{batch_id}", "404"))
	if got != 1 {
		t.Fatalf("requests_total = %v, want 1", got)
	}
	if inFlight := testutil.ToFloat64(m.requestInFlight); inFlight != 0 {
		t.Fatalf("in-flight gauge should return to zero, got %v", inFlight)
	}
}

func TestRecordClassifications(t *testing.T) {
	m := NewHTTPServerMetrics("api")
	m.RecordClassifications("api", "batch", "invoice", "invoice", "")
	m.RecordRateLimited("api", "/v1/classify")

	if got := testutil.ToFloat64(m.classificationTotal.WithLabelValues("api", "batch", "invoice")); got != 2 {
		t.Fatalf("invoice count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.classificationTotal.WithLabelValues("api", "batch", "unknown")); got != 1 {
		t.Fatalf("unknown count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rateLimitedTotal.WithLabelValues("api", "/v1/classify")); got != 1 {
		t.Fatalf("rate limited count = %v, want 1", got)
	}
}

func TestBatchMetricsSharesRegistry(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("api")
	batch := NewBatchMetrics("api", httpMetrics.Registry())

	batch.ObserveIngestion(4, 1)
	batch.ObservePoll(domain.BatchStatusInProgress)
	batch.ObservePoll(domain.BatchStatusInProgress)
	batch.ObserveJob(domain.BatchStatusCompleted, 4, 12.5)
	batch.ObserveBreakerState("openai.create_batch", gobreaker.StateOpen)

	if got := testutil.ToFloat64(batch.filesTotal.WithLabelValues("api", "converted")); got != 4 {
		t.Fatalf("converted files = %v, want 4", got)
	}
	if got := testutil.ToFloat64(batch.filesTotal.WithLabelValues("api", "failed")); got != 1 {
		t.Fatalf("failed files = %v, want 1", got)
	}
	if got := testutil.ToFloat64(batch.pollsTotal.WithLabelValues("api", "in_progress")); got != 2 {
		t.Fatalf("polls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(batch.breakerState.WithLabelValues("api", "openai.create_batch")); got != 2 {
		t.Fatalf("breaker state = %v, want 2", got)
	}

	rec := httptest.NewRecorder()
	httpMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "docclass_batch_jobs_total") {
		t.Fatalf("batch metrics missing from exposition:\n%s", body)
	}
}

func TestWorkerMetrics(t *testing.T) {
	m := NewWorkerMetrics("worker")
	m.StartRequest()
	m.FinishRequest("worker", 2*time.Second, nil)
	m.ObserveQueueLag("worker", -time.Second)

	if got := testutil.ToFloat64(m.processTotal.WithLabelValues("worker", "success")); got != 1 {
		t.Fatalf("success count = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.processInFlight); got != 0 {
		t.Fatalf("in-flight = %v, want 0", got)
	}
	if got := testutil.CollectAndCount(m.queueLag); got != 0 {
		t.Fatalf("negative lag should be ignored, got %d series", got)
	}
}
