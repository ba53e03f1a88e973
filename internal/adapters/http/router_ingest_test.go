package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/observability/metrics"
)

type fileClassifierFake struct {
	err      error
	filename string
	body     string
}

func (f *fileClassifierFake) ClassifyUpload(_ context.Context, filename string, body io.Reader) (domain.Classification, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return domain.Classification{}, err
	}
	f.filename = filename
	f.body = string(raw)
	if f.err != nil {
		return domain.Classification{}, f.err
	}
	return domain.Classification{Category: "invoice"}, nil
}

func (f *fileClassifierFake) ClassifyPath(context.Context, string) (domain.Classification, error) {
	return domain.Classification{Category: "invoice"}, f.err
}

type directoryClassifierFake struct {
	err       error
	directory string
}

func (f *directoryClassifierFake) ClassifyDirectory(_ context.Context, directory string) ([]domain.ClassificationResult, error) {
	f.directory = directory
	if f.err != nil {
		return nil, f.err
	}
	return []domain.ClassificationResult{
		{CorrelationID: "task-" + filepath.Join(directory, "a.pdf"), Category: "invoice"},
		{CorrelationID: "task-" + filepath.Join(directory, "b.png"), Category: "other"},
	}, nil
}

type schedulerFake struct {
	err       error
	directory string
}

func (f *schedulerFake) Enqueue(_ context.Context, directory string) (*domain.BatchRecord, error) {
	f.directory = directory
	if f.err != nil {
		return nil, f.err
	}
	now := time.Now().UTC()
	return &domain.BatchRecord{ID: "b-1", Directory: directory, Status: domain.BatchStatusQueued, CreatedAt: now, UpdatedAt: now}, nil
}

func (f *schedulerFake) Run(context.Context, domain.BatchRequest) error { return f.err }

type batchReaderFake struct {
	err error
}

func (f batchReaderFake) GetByID(_ context.Context, id string) (*domain.BatchRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.BatchRecord{
		ID:        id,
		JobID:     "batch_abc",
		Status:    domain.BatchStatusCompleted,
		TaskCount: 1,
		Results:   []domain.ClassificationResult{{CorrelationID: "task-/data/a.pdf", Category: "invoice"}},
	}, nil
}

type routerDeps struct {
	files       *fileClassifierFake
	directories *directoryClassifierFake
	scheduler   *schedulerFake
	batches     batchReaderFake
	metrics     *metrics.HTTPServerMetrics
}

func newTestDeps() *routerDeps {
	return &routerDeps{
		files:       &fileClassifierFake{},
		directories: &directoryClassifierFake{},
		scheduler:   &schedulerFake{},
		metrics:     metrics.NewHTTPServerMetrics(serviceName),
	}
}

func newTestHandler(cfg config.Config, deps *routerDeps) http.Handler {
	if cfg.FilesDir == "" {
		cfg.FilesDir = "/data/files"
	}
	return NewRouter(cfg, deps.files, deps.directories, deps.scheduler, deps.batches, WithMetrics(deps.metrics)).Handler()
}

func multipartUpload(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile() error = %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{}, newTestDeps())
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if res.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected generated request id header")
	}
}

func TestClassifyUploadSuccess(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(config.Config{}, deps)

	body, contentType := multipartUpload(t, "file", "invoice.pdf", "%PDF-1.4")
	req := httptest.NewRequest(http.MethodPost, "/v1/classify", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp struct {
		Classification domain.Classification `json:"classification"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Classification.Category != "invoice" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if deps.files.filename != "invoice.pdf" || deps.files.body != "%PDF-1.4" {
		t.Fatalf("upload not forwarded: %q %q", deps.files.filename, deps.files.body)
	}
}

func TestClassifyUploadMissingMultipartField(t *testing.T) {
	handler := newTestHandler(config.Config{}, newTestDeps())

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", bytes.NewBufferString("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestClassifyUploadTooLarge(t *testing.T) {
	handler := newTestHandler(config.Config{APIMaxUploadBytes: 64}, newTestDeps())

	body, contentType := multipartUpload(t, "file", "big.pdf", strings.Repeat("x", 1024))
	req := httptest.NewRequest(http.MethodPost, "/v1/classify", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
}

func TestClassifyDirectoryUsesFilesRoot(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(config.Config{FilesDir: "/srv/files"}, deps)

	req := httptest.NewRequest(http.MethodGet, "/v1/classify/batch", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if deps.directories.directory != "/srv/files" {
		t.Fatalf("expected files root, got %q", deps.directories.directory)
	}

	var resp struct {
		Classifications []domain.ClassificationResult `json:"classifications"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Classifications) != 2 || resp.Classifications[0].CorrelationID != "task-/srv/files/a.pdf" {
		t.Fatalf("unexpected classifications %+v", resp.Classifications)
	}
}

func TestEnqueueBatchReturns202(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(config.Config{FilesDir: "/srv/files"}, deps)

	req := httptest.NewRequest(http.MethodPost, "/v1/batches", strings.NewReader(`{"directory":"2026/october"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if deps.scheduler.directory != "/srv/files/2026/october" {
		t.Fatalf("unexpected directory %q", deps.scheduler.directory)
	}

	var record domain.BatchRecord
	if err := json.NewDecoder(res.Body).Decode(&record); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if record.ID != "b-1" || record.Status != domain.BatchStatusQueued {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestEnqueueBatchWithoutBodyUsesFilesRoot(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(config.Config{FilesDir: "/srv/files"}, deps)

	req := httptest.NewRequest(http.MethodPost, "/v1/batches", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if deps.scheduler.directory != "/srv/files" {
		t.Fatalf("unexpected directory %q", deps.scheduler.directory)
	}
}

func TestGetBatchReturnsRecord(t *testing.T) {
	handler := newTestHandler(config.Config{}, newTestDeps())

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/b-9", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var record domain.BatchRecord
	if err := json.NewDecoder(res.Body).Decode(&record); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if record.ID != "b-9" || len(record.Results) != 1 {
		t.Fatalf("unexpected record %+v", record)
	}
}

func TestMetricsEndpointExposesClassificationCounters(t *testing.T) {
	handler := newTestHandler(config.Config{}, newTestDeps())

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/classify/batch", nil))

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `docclass_classify_documents_total{category="invoice",mode="batch",service="api"} 1`) {
		t.Fatalf("classification counter missing:\n%s", res.Body.String())
	}
}

func TestResolveDirectory(t *testing.T) {
	if got, err := resolveDirectory("/srv/files", ""); err != nil || got != "/srv/files" {
		t.Fatalf("empty request should map to root, got %q %v", got, err)
	}
	if got, err := resolveDirectory("/srv/files", "./a/../b"); err != nil || got != "/srv/files/b" {
		t.Fatalf("unexpected resolution %q %v", got, err)
	}
	for _, bad := range []string{"/etc", "..", "../secrets", "a/../../b"} {
		if _, err := resolveDirectory("/srv/files", bad); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}
