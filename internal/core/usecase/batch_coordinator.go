package usecase

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

const (
	DefaultPollInterval     = 5 * time.Second
	DefaultCompletionWindow = "24h"

	taskFileName   = "tasks.jsonl"
	resultFileName = "results.jsonl"
	maxResultLine  = 16 << 20
)

type categoryParser interface {
	ParseCategory(content string) (string, error)
}

type BatchCoordinatorConfig struct {
	PollInterval     time.Duration
	CompletionWindow string
}

// BatchCoordinator drives one provider batch job from submission to correlated results.
type BatchCoordinator struct {
	provider  ports.BatchProvider
	artifacts ports.ArtifactStore
	parser    categoryParser
	observer  ports.BatchObserver
	logger    *slog.Logger
	cfg       BatchCoordinatorConfig
	newRunID  func() string
}

func NewBatchCoordinator(
	provider ports.BatchProvider,
	artifacts ports.ArtifactStore,
	parser categoryParser,
	observer ports.BatchObserver,
	logger *slog.Logger,
	cfg BatchCoordinatorConfig,
) *BatchCoordinator {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.CompletionWindow == "" {
		cfg.CompletionWindow = DefaultCompletionWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchCoordinator{
		provider:  provider,
		artifacts: artifacts,
		parser:    parser,
		observer:  observer,
		logger:    logger.With("component", "batch_coordinator"),
		cfg:       cfg,
		newRunID:  uuid.NewString,
	}
}

// TaskFileKey and ResultFileKey scope batch artifacts to a single run or job.
func TaskFileKey(runID string) string {
	return path.Join("batches", runID, taskFileName)
}

func ResultFileKey(jobID string) string {
	return path.Join("batches", jobID, resultFileName)
}

// Submit writes the tasks as one JSONL artifact, uploads it and creates the job.
// Failures are not retried; callers resubmit with a fresh task set.
func (c *BatchCoordinator) Submit(ctx context.Context, tasks []domain.ClassificationTask) (*domain.BatchJob, error) {
	if len(tasks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "submit batch", errors.New("no tasks to submit"))
	}

	runID := c.newRunID()
	key := TaskFileKey(runID)
	if err := c.writeTaskFile(ctx, key, tasks); err != nil {
		return nil, domain.WrapError(domain.ErrSubmission, "write batch task file", err)
	}

	taskFile, err := c.artifacts.Open(ctx, key)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSubmission, "open batch task file", err)
	}
	defer taskFile.Close()

	fileID, err := c.provider.UploadBatchFile(ctx, taskFileName, taskFile)
	if err != nil {
		c.logger.ErrorContext(ctx, "batch_upload_failed", "run_id", runID, "error", err)
		return nil, domain.WrapError(domain.ErrSubmission, "upload batch task file", err)
	}

	job, err := c.provider.CreateBatch(ctx, fileID, ChatCompletionsEndpoint, c.cfg.CompletionWindow)
	if err != nil {
		c.logger.ErrorContext(ctx, "batch_create_failed", "run_id", runID, "input_file_id", fileID, "error", err)
		return nil, domain.WrapError(domain.ErrSubmission, "create batch job", err)
	}
	if job.ID == "" {
		return nil, domain.WrapError(domain.ErrSubmission, "create batch job", errors.New("provider returned empty job id"))
	}
	if job.Status == "" {
		job.Status = domain.BatchStatusSubmitted
	}

	c.logger.InfoContext(ctx, "batch_job_created",
		"job_id", job.ID,
		"run_id", runID,
		"input_file_id", fileID,
		"task_count", len(tasks),
	)
	return job, nil
}

func (c *BatchCoordinator) writeTaskFile(ctx context.Context, key string, tasks []domain.ClassificationTask) error {
	pr, pw := io.Pipe()
	go func() {
		enc := json.NewEncoder(pw)
		for _, task := range tasks {
			if err := enc.Encode(task); err != nil {
				pw.CloseWithError(fmt.Errorf("encode task %s: %w", task.CorrelationID, err))
				return
			}
		}
		pw.Close()
	}()

	err := c.artifacts.Save(ctx, key, pr)
	pr.CloseWithError(err)
	return err
}

// AwaitCompletion polls the job at a fixed interval until it reaches a terminal state
// and returns the result file reference. The wait ends early when ctx is done.
func (c *BatchCoordinator) AwaitCompletion(ctx context.Context, jobID string) (string, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for polls := 1; ; polls++ {
		select {
		case <-ctx.Done():
			c.logger.WarnContext(ctx, "batch_wait_abandoned", "job_id", jobID, "polls", polls-1)
			return "", domain.WrapError(domain.ErrBatchTimeout, "await batch "+jobID, ctx.Err())
		case <-timer.C:
		}

		job, err := c.provider.RetrieveBatch(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return "", domain.WrapError(domain.ErrBatchTimeout, "await batch "+jobID, ctx.Err())
			}
			return "", fmt.Errorf("retrieve batch %s: %w", jobID, err)
		}
		if c.observer != nil {
			c.observer.ObservePoll(job.Status)
		}

		switch job.Status {
		case domain.BatchStatusCompleted:
			if job.ResultFileID == "" {
				return "", domain.WrapError(domain.ErrBatchExecution, "await batch "+jobID,
					fmt.Errorf("completed without result file (error_file_id=%q)", job.ErrorFileID))
			}
			c.logger.InfoContext(ctx, "batch_job_completed", "job_id", jobID, "polls", polls, "result_file_id", job.ResultFileID)
			return job.ResultFileID, nil
		case domain.BatchStatusFailed:
			c.logger.ErrorContext(ctx, "batch_job_failed", "job_id", jobID, "provider_status", job.ProviderStatus)
			return "", domain.WrapError(domain.ErrBatchExecution, "await batch "+jobID,
				fmt.Errorf("provider status %q", job.ProviderStatus))
		}

		c.logger.InfoContext(ctx, "batch_poll",
			"job_id", jobID,
			"status", job.Status,
			"provider_status", job.ProviderStatus,
			"next_poll_s", c.cfg.PollInterval.Seconds(),
		)
		timer.Reset(c.cfg.PollInterval)
	}
}

// ParseResults downloads the result artifact for jobID and decodes it line by line.
// Any malformed line aborts the whole parse.
func (c *BatchCoordinator) ParseResults(ctx context.Context, jobID, resultFileID string) ([]domain.ClassificationResult, error) {
	key := ResultFileKey(jobID)
	if err := c.downloadResults(ctx, key, resultFileID); err != nil {
		return nil, fmt.Errorf("download batch results %s: %w", jobID, err)
	}

	resultFile, err := c.artifacts.Open(ctx, key)
	if err != nil {
		return nil, domain.WrapError(domain.ErrIO, "open batch result file", err)
	}
	defer resultFile.Close()

	results, err := ParseResultLines(resultFile, c.parser)
	if err != nil {
		c.logger.ErrorContext(ctx, "batch_result_parse_failed", "job_id", jobID, "error", err)
		return nil, err
	}

	c.logger.InfoContext(ctx, "batch_results_parsed", "job_id", jobID, "result_count", len(results))
	return results, nil
}

func (c *BatchCoordinator) downloadResults(ctx context.Context, key, fileID string) error {
	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(c.provider.DownloadFile(ctx, fileID, pw))
	}()

	err := c.artifacts.Save(ctx, key, pr)
	pr.CloseWithError(err)
	return err
}

// ParseResultLines decodes a JSONL batch result stream into one result per record.
func ParseResultLines(r io.Reader, parser categoryParser) ([]domain.ClassificationResult, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxResultLine)

	var results []domain.ClassificationResult
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		result, err := parseResultLine(line, lineNo, parser)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	if err := scanner.Err(); err != nil {
		return nil, &domain.ResultParseError{Line: lineNo + 1, Err: err}
	}
	return results, nil
}

func parseResultLine(line string, lineNo int, parser categoryParser) (domain.ClassificationResult, error) {
	fail := func(field string, err error) (domain.ClassificationResult, error) {
		return domain.ClassificationResult{}, &domain.ResultParseError{Line: lineNo, Field: field, Err: err}
	}

	var record domain.BatchResultLine
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		return fail("", err)
	}
	if record.CustomID == "" {
		return fail("custom_id", errors.New("missing"))
	}
	if record.Error != nil {
		return fail("error", fmt.Errorf("%s: %s", record.Error.Code, record.Error.Message))
	}
	if record.Response == nil {
		return fail("response", errors.New("missing"))
	}
	if record.Response.StatusCode >= 300 {
		return fail("response.status_code", fmt.Errorf("status %d", record.Response.StatusCode))
	}
	if record.Response.Body == nil {
		return fail("response.body", errors.New("missing"))
	}
	if len(record.Response.Body.Choices) == 0 {
		return fail("response.body.choices", errors.New("empty"))
	}

	category, err := parser.ParseCategory(record.Response.Body.Choices[0].Message.Content)
	if err != nil {
		return fail("response.body.choices[0].message.content", err)
	}

	return domain.ClassificationResult{
		CorrelationID: record.CustomID,
		Category:      category,
	}, nil
}

// Run drives tasks through submission, polling, parsing and correlation checks.
// onSubmitted, when set, is called once the provider has accepted the job.
func (c *BatchCoordinator) Run(
	ctx context.Context,
	tasks []domain.ClassificationTask,
	onSubmitted func(job *domain.BatchJob) error,
) ([]domain.ClassificationResult, *domain.BatchJob, error) {
	job, err := c.Submit(ctx, tasks)
	if err != nil {
		return nil, nil, err
	}
	if onSubmitted != nil {
		if err := onSubmitted(job); err != nil {
			return nil, job, err
		}
	}

	resultFileID, err := c.AwaitCompletion(ctx, job.ID)
	if err != nil {
		return nil, job, err
	}
	results, err := c.ParseResults(ctx, job.ID, resultFileID)
	if err != nil {
		return nil, job, err
	}
	if err := VerifyCorrelation(tasks, results); err != nil {
		c.logger.ErrorContext(ctx, "batch_result_integrity_failed", "job_id", job.ID, "error", err)
		return nil, job, err
	}
	job.Status = domain.BatchStatusCompleted
	job.ResultFileID = resultFileID
	return results, job, nil
}

// VerifyCorrelation requires every submitted correlation id to appear exactly once.
func VerifyCorrelation(tasks []domain.ClassificationTask, results []domain.ClassificationResult) error {
	expected := make(map[string]bool, len(tasks))
	for _, task := range tasks {
		expected[task.CorrelationID] = false
	}

	var duplicate, unknown []string
	for _, result := range results {
		seen, ok := expected[result.CorrelationID]
		switch {
		case !ok:
			unknown = append(unknown, result.CorrelationID)
		case seen:
			duplicate = append(duplicate, result.CorrelationID)
		default:
			expected[result.CorrelationID] = true
		}
	}

	var missing []string
	for id, seen := range expected {
		if !seen {
			missing = append(missing, id)
		}
	}

	if len(missing) == 0 && len(duplicate) == 0 && len(unknown) == 0 {
		return nil
	}
	slices.Sort(missing)
	return domain.WrapError(domain.ErrResultIntegrity, "verify batch results",
		fmt.Errorf("missing=%v duplicate=%v unknown=%v", missing, duplicate, unknown))
}
