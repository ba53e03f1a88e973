package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

// BatchClassificationUseCase runs directory classification through the provider batch API.
type BatchClassificationUseCase struct {
	ingestor    *FileIngestor
	encoder     ports.ImageEncoder
	builder     *RequestBuilder
	coordinator *BatchCoordinator
	repo        ports.BatchRepository
	queue       ports.BatchQueue
	observer    ports.BatchObserver
	logger      *slog.Logger
}

func NewBatchClassificationUseCase(
	ingestor *FileIngestor,
	encoder ports.ImageEncoder,
	builder *RequestBuilder,
	coordinator *BatchCoordinator,
	repo ports.BatchRepository,
	queue ports.BatchQueue,
	observer ports.BatchObserver,
	logger *slog.Logger,
) *BatchClassificationUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchClassificationUseCase{
		ingestor:    ingestor,
		encoder:     encoder,
		builder:     builder,
		coordinator: coordinator,
		repo:        repo,
		queue:       queue,
		observer:    observer,
		logger:      logger.With("component", "classify_batch"),
	}
}

// ClassifyDirectory classifies every regular file in directory and waits for the results.
func (uc *BatchClassificationUseCase) ClassifyDirectory(ctx context.Context, directory string) ([]domain.ClassificationResult, error) {
	if _, err := listFiles(directory); err != nil {
		return nil, err
	}

	record, err := uc.createRecord(ctx, directory)
	if err != nil {
		return nil, err
	}
	return uc.execute(ctx, record)
}

// Enqueue records a queued run and hands it to the worker queue.
func (uc *BatchClassificationUseCase) Enqueue(ctx context.Context, directory string) (*domain.BatchRecord, error) {
	if _, err := listFiles(directory); err != nil {
		return nil, err
	}

	record, err := uc.createRecord(ctx, directory)
	if err != nil {
		return nil, err
	}

	request := domain.BatchRequest{BatchID: record.ID, Directory: record.Directory, RequestedAt: record.CreatedAt}
	if err := uc.queue.PublishBatchRequested(ctx, request); err != nil {
		if failErr := uc.markFailed(ctx, record.ID, "", err); failErr != nil {
			return nil, fmt.Errorf("publish batch request: %w; mark failed status: %v", err, failErr)
		}
		return nil, fmt.Errorf("publish batch request: %w", err)
	}
	return record, nil
}

// Run executes a queued request previously created by Enqueue.
func (uc *BatchClassificationUseCase) Run(ctx context.Context, request domain.BatchRequest) error {
	record, err := uc.repo.GetByID(ctx, request.BatchID)
	if err != nil {
		return fmt.Errorf("fetch batch record: %w", err)
	}
	if record.Status != domain.BatchStatusQueued {
		uc.logger.WarnContext(ctx, "batch_request_skipped", "batch_id", record.ID, "status", record.Status)
		return nil
	}
	_, err = uc.execute(ctx, record)
	return err
}

func (uc *BatchClassificationUseCase) GetByID(ctx context.Context, id string) (*domain.BatchRecord, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *BatchClassificationUseCase) createRecord(ctx context.Context, directory string) (*domain.BatchRecord, error) {
	now := time.Now().UTC()
	record := &domain.BatchRecord{
		ID:        uuid.NewString(),
		Directory: directory,
		Status:    domain.BatchStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := uc.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create batch record: %w", err)
	}
	return record, nil
}

func (uc *BatchClassificationUseCase) execute(ctx context.Context, record *domain.BatchRecord) ([]domain.ClassificationResult, error) {
	start := time.Now()
	jobID := ""

	results, taskCount, err := uc.pipeline(ctx, record, &jobID)
	if uc.observer != nil {
		status := domain.BatchStatusCompleted
		if err != nil {
			status = domain.BatchStatusFailed
		}
		uc.observer.ObserveJob(status, taskCount, time.Since(start).Seconds())
	}
	if err != nil {
		uc.logger.ErrorContext(ctx, "batch_run_failed", "batch_id", record.ID, "job_id", jobID, "error", err)
		if failErr := uc.markFailed(context.WithoutCancel(ctx), record.ID, jobID, err); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, err
	}

	if err := uc.persistResults(ctx, record.ID, jobID, taskCount, results); err != nil {
		uc.logger.ErrorContext(ctx, "batch_persist_failed", "batch_id", record.ID, "job_id", jobID, "error", err)
		if failErr := uc.markFailed(context.WithoutCancel(ctx), record.ID, jobID, err); failErr != nil {
			return nil, fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return nil, err
	}
	return results, nil
}

func (uc *BatchClassificationUseCase) persistResults(ctx context.Context, id, jobID string, taskCount int, results []domain.ClassificationResult) error {
	if err := uc.repo.SaveResults(ctx, id, taskCount, results); err != nil {
		return fmt.Errorf("save batch results: %w", err)
	}
	if err := uc.repo.UpdateStatus(ctx, id, domain.BatchStatusCompleted, jobID, ""); err != nil {
		return fmt.Errorf("set status=completed: %w", err)
	}
	return nil
}

func (uc *BatchClassificationUseCase) pipeline(ctx context.Context, record *domain.BatchRecord, jobID *string) ([]domain.ClassificationResult, int, error) {
	files, err := listFiles(record.Directory)
	if err != nil {
		return nil, 0, err
	}

	converted, err := uc.ingestor.Ingest(ctx, files)
	if err != nil {
		return nil, 0, fmt.Errorf("ingest files: %w", err)
	}

	images := uc.encodeAll(ctx, converted)
	if len(images) == 0 {
		return nil, 0, domain.WrapError(domain.ErrInvalidInput, "classify batch",
			fmt.Errorf("no convertible documents in %s", record.Directory))
	}

	tasks, err := uc.builder.BuildBatch(images)
	if err != nil {
		return nil, 0, err
	}

	results, _, err := uc.coordinator.Run(ctx, tasks, func(job *domain.BatchJob) error {
		*jobID = job.ID
		if err := uc.repo.UpdateStatus(ctx, record.ID, domain.BatchStatusSubmitted, job.ID, ""); err != nil {
			return fmt.Errorf("set status=submitted: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, len(tasks), err
	}
	return results, len(tasks), nil
}

// encodeAll encodes converted images one at a time in sorted source order.
func (uc *BatchClassificationUseCase) encodeAll(ctx context.Context, converted map[string]string) []domain.EncodedImage {
	sources := make([]string, 0, len(converted))
	for source := range converted {
		sources = append(sources, source)
	}
	slices.Sort(sources)

	images := make([]domain.EncodedImage, 0, len(sources))
	for _, source := range sources {
		image, err := uc.encoder.Encode(ctx, converted[source])
		if err != nil {
			uc.logger.ErrorContext(ctx, "encode_image_failed", "source_path", source, "error", err)
			continue
		}
		image.SourcePath = source
		images = append(images, image)
	}
	return images
}

func (uc *BatchClassificationUseCase) markFailed(ctx context.Context, id, jobID string, runErr error) error {
	return uc.repo.UpdateStatus(ctx, id, domain.BatchStatusFailed, jobID, runErr.Error())
}

func listFiles(directory string) ([]string, error) {
	if strings.TrimSpace(directory) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "list files", errors.New("directory is required"))
	}
	entries, err := os.ReadDir(directory)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrNotFound, "list files", err)
		}
		return nil, domain.WrapError(domain.ErrIO, "list files", err)
	}

	files := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			files = append(files, filepath.Join(directory, entry.Name()))
		}
	}
	return files, nil
}
