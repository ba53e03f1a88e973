package httpadapter

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/document-classifier/internal/config"
	"github.com/kirillkom/document-classifier/internal/core/ports"
	"github.com/kirillkom/document-classifier/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	filesDir       string
	apiKey         string
	maxUploadBytes int64
	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	inFlightWait   time.Duration

	files       ports.FileClassifier
	directories ports.DirectoryClassifier
	scheduler   ports.BatchScheduler
	batches     ports.BatchReader
	metrics     *metrics.HTTPServerMetrics
}

type RouterOption func(*Router)

// WithMetrics enables the /metrics endpoint and request instrumentation.
func WithMetrics(m *metrics.HTTPServerMetrics) RouterOption {
	return func(rt *Router) {
		rt.metrics = m
	}
}

func NewRouter(
	cfg config.Config,
	files ports.FileClassifier,
	directories ports.DirectoryClassifier,
	scheduler ports.BatchScheduler,
	batches ports.BatchReader,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		filesDir:       cfg.FilesDir,
		apiKey:         cfg.APIKey,
		maxUploadBytes: cfg.APIMaxUploadBytes,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIBackpressureMaxInFlight,
		inFlightWait:   cfg.APIBackpressureWait,
		files:          files,
		directories:    directories,
		scheduler:      scheduler,
		batches:        batches,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/classify", rt.classifyUpload)
	mux.HandleFunc("GET /v1/classify/batch", rt.classifyDirectory)
	mux.HandleFunc("POST /v1/batches", rt.enqueueBatch)
	mux.HandleFunc("GET /v1/batches/{id}", rt.getBatch)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.inFlightWait)
	handler = rt.rateLimitMiddleware(handler)
	handler = bearerAuthMiddleware(handler, rt.apiKey)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) classifyUpload(w http.ResponseWriter, r *http.Request) {
	if rt.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.maxUploadBytes)
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err)
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	classification, err := rt.files.ClassifyUpload(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err)
		return
	}
	rt.recordClassifications("single", classification.Category)

	writeJSON(w, http.StatusOK, map[string]any{"classification": classification})
}

func (rt *Router) classifyDirectory(w http.ResponseWriter, r *http.Request) {
	results, err := rt.directories.ClassifyDirectory(r.Context(), rt.filesDir)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err)
		return
	}

	categories := make([]string, 0, len(results))
	for _, result := range results {
		categories = append(categories, result.Category)
	}
	rt.recordClassifications("batch", categories...)

	writeJSON(w, http.StatusOK, map[string]any{"classifications": results})
}

func (rt *Router) enqueueBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Directory string `json:"directory"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	directory, err := resolveDirectory(rt.filesDir, req.Directory)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	record, err := rt.scheduler.Enqueue(r.Context(), directory)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err)
		return
	}
	writeJSON(w, http.StatusAccepted, record)
}

func (rt *Router) getBatch(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "batch id is required"})
		return
	}

	record, err := rt.batches.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) recordClassifications(mode string, categories ...string) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordClassifications(serviceName, mode, categories...)
}

// resolveDirectory maps a client supplied subdirectory onto the files root.
func resolveDirectory(root, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return root, nil
	}
	if filepath.IsAbs(requested) {
		return "", errors.New("directory must be relative to the files root")
	}
	cleaned := filepath.Clean(requested)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", errors.New("directory escapes the files root")
	}
	return filepath.Join(root, cleaned), nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
