package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/core/domain"
)

func TestClassifyUploadMapsDomainErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unsupported", domain.WrapError(domain.ErrUnsupportedFormat, "convert", errors.New("text/plain")), http.StatusUnsupportedMediaType},
		{"invalid input", domain.WrapError(domain.ErrInvalidInput, "classify upload", errors.New("filename is required")), http.StatusBadRequest},
		{"conversion", domain.WrapError(domain.ErrConversion, "convert", errors.New("corrupt pdf")), http.StatusUnprocessableEntity},
		{"invalid response", domain.WrapError(domain.ErrInvalidResponse, "parse category", errors.New("missing category")), http.StatusBadGateway},
		{"temporary", domain.WrapError(domain.ErrTemporary, "openai.chat_completions", errors.New("status 429")), http.StatusServiceUnavailable},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			deps := newTestDeps()
			deps.files.err = tc.err
			handler := newTestHandler(config.Config{}, deps)

			body, contentType := multipartUpload(t, "file", "doc.txt", "hello")
			req := httptest.NewRequest(http.MethodPost, "/v1/classify", body)
			req.Header.Set("Content-Type", contentType)
			res := httptest.NewRecorder()
			handler.ServeHTTP(res, req)

			if res.Code != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, res.Code)
			}
			var resp map[string]string
			if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if resp["error"] == "" {
				t.Fatalf("expected error message in body")
			}
		})
	}
}

func TestClassifyDirectoryMapsBatchErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrBatchTimeout, "await completion", errors.New("context deadline exceeded")), http.StatusGatewayTimeout},
		{domain.WrapError(domain.ErrBatchExecution, "await completion", errors.New("status=failed")), http.StatusBadGateway},
		{&domain.ResultParseError{Line: 2, Field: "custom_id", Err: errors.New("missing")}, http.StatusBadGateway},
		{domain.WrapError(domain.ErrResultIntegrity, "verify correlation", errors.New("missing task-a")), http.StatusBadGateway},
		{domain.WrapError(domain.ErrNotFound, "list files", errors.New("no such directory")), http.StatusNotFound},
	}

	for _, tc := range cases {
		deps := newTestDeps()
		deps.directories.err = tc.err
		handler := newTestHandler(config.Config{}, deps)

		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/classify/batch", nil))
		if res.Code != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, res.Code)
		}
	}
}

func TestGetBatchReturns404ForNotFound(t *testing.T) {
	deps := newTestDeps()
	deps.batches = batchReaderFake{err: domain.WrapError(domain.ErrNotFound, "get batch", errors.New("id=missing"))}
	handler := newTestHandler(config.Config{}, deps)

	req := httptest.NewRequest(http.MethodGet, "/v1/batches/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestEnqueueBatchRejectsEscapingDirectory(t *testing.T) {
	deps := newTestDeps()
	handler := newTestHandler(config.Config{}, deps)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/batches", strings.NewReader(`{"directory":"../etc"}`)))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if deps.scheduler.directory != "" {
		t.Fatalf("scheduler should not be called, got %q", deps.scheduler.directory)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodPost, "/v1/batches", strings.NewReader(`{not json`)))
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for invalid json, got %d", res.Code)
	}
}

func TestWrongMethodIsRejected(t *testing.T) {
	handler := newTestHandler(config.Config{}, newTestDeps())

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/classify", nil))
	if res.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", res.Code)
	}
}
