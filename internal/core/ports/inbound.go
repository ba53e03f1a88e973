package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// FileClassifier is the inbound contract for single uploaded document classification.
type FileClassifier interface {
	ClassifyUpload(ctx context.Context, filename string, body io.Reader) (domain.Classification, error)
	ClassifyPath(ctx context.Context, path string) (domain.Classification, error)
}

// DirectoryClassifier is the inbound contract for batch classification of a directory.
type DirectoryClassifier interface {
	ClassifyDirectory(ctx context.Context, directory string) ([]domain.ClassificationResult, error)
}

// BatchScheduler is the inbound contract for queued batch runs.
type BatchScheduler interface {
	Enqueue(ctx context.Context, directory string) (*domain.BatchRecord, error)
	Run(ctx context.Context, request domain.BatchRequest) error
}

// BatchReader is the inbound read model for persisted batch runs.
type BatchReader interface {
	GetByID(ctx context.Context, id string) (*domain.BatchRecord, error)
}
