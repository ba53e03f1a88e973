package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/infrastructure/resilience"
)

const DefaultBaseURL = "https://api.openai.com"

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	executor   *resilience.Executor
	logger     *slog.Logger
}

type Options struct {
	Timeout            time.Duration
	HTTPClient         *http.Client
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

func New(baseURL, apiKey string) *Client {
	return NewWithOptions(baseURL, apiKey, Options{})
}

func NewWithOptions(baseURL, apiKey string, options Options) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		timeout := options.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
		executor:   options.ResilienceExecutor,
		logger:     logger.With("component", "openai_client"),
	}
}

// CompleteChat sends one synchronous chat completion request.
func (c *Client) CompleteChat(ctx context.Context, request domain.ChatCompletionRequest) (*domain.ChatCompletionResponse, error) {
	var response domain.ChatCompletionResponse
	err := c.execute(ctx, "chat_completion", true, func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/chat/completions", request, &response, "chat completion")
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("chat completion", err)
	}
	return &response, nil
}

// UploadBatchFile streams a JSONL task file to the files endpoint with purpose=batch.
// The body is consumed once, so the call is never retried.
func (c *Client) UploadBatchFile(ctx context.Context, filename string, body io.Reader) (string, error) {
	var response fileObject
	err := c.execute(ctx, "upload_file", false, func(ctx context.Context) error {
		pr, pw := io.Pipe()
		form := multipart.NewWriter(pw)
		go func() {
			pw.CloseWithError(writeBatchForm(form, filename, body))
		}()

		req, err := c.newRequest(ctx, http.MethodPost, "/v1/files", pr)
		if err != nil {
			pr.Close()
			return fmt.Errorf("create upload file request: %w", err)
		}
		req.Header.Set("Content-Type", form.FormDataContentType())
		err = c.doJSON(req, &response, "upload file")
		pr.CloseWithError(err)
		return err
	})
	if err != nil {
		return "", wrapTemporaryIfNeeded("upload batch file", err)
	}
	if response.ID == "" {
		return "", domain.WrapError(domain.ErrInvalidResponse, "upload batch file", errors.New("empty file id"))
	}
	c.logger.InfoContext(ctx, "batch_file_uploaded", "file_id", response.ID, "bytes", response.Bytes)
	return response.ID, nil
}

func writeBatchForm(form *multipart.Writer, filename string, body io.Reader) error {
	if err := form.WriteField("purpose", "batch"); err != nil {
		return fmt.Errorf("write purpose field: %w", err)
	}
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, body); err != nil {
		return fmt.Errorf("copy batch file: %w", err)
	}
	return form.Close()
}

// CreateBatch creates a provider job. Creation is not idempotent and is never retried.
func (c *Client) CreateBatch(ctx context.Context, inputFileID, endpoint, completionWindow string) (*domain.BatchJob, error) {
	request := map[string]any{
		"input_file_id":     inputFileID,
		"endpoint":          endpoint,
		"completion_window": completionWindow,
	}

	var response batchObject
	err := c.execute(ctx, "create_batch", false, func(ctx context.Context) error {
		return c.postJSON(ctx, "/v1/batches", request, &response, "create batch")
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("create batch", err)
	}
	return response.toDomain(), nil
}

func (c *Client) RetrieveBatch(ctx context.Context, jobID string) (*domain.BatchJob, error) {
	var response batchObject
	err := c.execute(ctx, "retrieve_batch", true, func(ctx context.Context) error {
		return c.getJSON(ctx, "/v1/batches/"+url.PathEscape(jobID), &response, "retrieve batch")
	})
	if err != nil {
		return nil, wrapTemporaryIfNeeded("retrieve batch", err)
	}
	if response.ID == "" {
		response.ID = jobID
	}
	c.logger.DebugContext(ctx, "batch_retrieved",
		"job_id", response.ID,
		"provider_status", response.Status,
		"requests_total", response.RequestCounts.Total,
		"requests_completed", response.RequestCounts.Completed,
		"requests_failed", response.RequestCounts.Failed,
	)
	return response.toDomain(), nil
}

// DownloadFile copies a file's content into dst. Retries stop once any byte has been written.
func (c *Client) DownloadFile(ctx context.Context, fileID string, dst io.Writer) error {
	counter := &countingWriter{w: dst}
	call := func(ctx context.Context) error {
		req, err := c.newRequest(ctx, http.MethodGet, "/v1/files/"+url.PathEscape(fileID)+"/content", nil)
		if err != nil {
			return fmt.Errorf("create download request: %w", err)
		}
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("openai download file request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return newHTTPStatusError("download file", resp)
		}
		if _, err := io.Copy(counter, resp.Body); err != nil {
			return fmt.Errorf("copy file %s: %w", fileID, err)
		}
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "openai.download_file", call, func(err error) resilience.ErrorClassification {
			class := classifyProviderError(err)
			if counter.n > 0 {
				class.Retryable = false
			}
			return class
		})
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded("download file", err)
	}
	c.logger.InfoContext(ctx, "batch_file_downloaded", "file_id", fileID, "bytes", counter.n)
	return nil
}

func (c *Client) execute(ctx context.Context, operation string, retry bool, call func(context.Context) error) error {
	if c.executor == nil {
		return call(ctx)
	}
	if retry {
		return c.executor.Execute(ctx, "openai."+operation, call, classifyProviderError)
	}
	return c.executor.ExecuteOnce(ctx, "openai."+operation, call, classifyProviderError)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}
