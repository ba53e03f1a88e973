package ports

import (
	"context"
	"io"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// DocumentConverter turns a document into a single representative raster image.
type DocumentConverter interface {
	Convert(ctx context.Context, path string) (string, error)
}

// ImageEncoder produces the transport-safe representation of an image file.
type ImageEncoder interface {
	Encode(ctx context.Context, path string) (domain.EncodedImage, error)
}

// ChatCompleter performs a synchronous chat-style classification call.
type ChatCompleter interface {
	CompleteChat(ctx context.Context, request domain.ChatCompletionRequest) (*domain.ChatCompletionResponse, error)
}

// BatchProvider is the provider's asynchronous batch-job API.
type BatchProvider interface {
	UploadBatchFile(ctx context.Context, filename string, body io.Reader) (string, error)
	CreateBatch(ctx context.Context, inputFileID, endpoint, completionWindow string) (*domain.BatchJob, error)
	RetrieveBatch(ctx context.Context, jobID string) (*domain.BatchJob, error)
	DownloadFile(ctx context.Context, fileID string, dst io.Writer) error
}

// ArtifactStore keeps intermediate batch artifacts under per-job keys.
type ArtifactStore interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// FileStore keeps uploaded documents and exposes their local paths for conversion.
type FileStore interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Path(key string) string
}

// BatchRepository persists batch run state.
type BatchRepository interface {
	Create(ctx context.Context, record *domain.BatchRecord) error
	GetByID(ctx context.Context, id string) (*domain.BatchRecord, error)
	UpdateStatus(ctx context.Context, id string, status domain.BatchStatus, jobID string, errMessage string) error
	SaveResults(ctx context.Context, id string, taskCount int, results []domain.ClassificationResult) error
}

// BatchQueue publishes/consumes queued batch requests.
type BatchQueue interface {
	PublishBatchRequested(ctx context.Context, request domain.BatchRequest) error
	SubscribeBatchRequested(ctx context.Context, handler func(context.Context, domain.BatchRequest) error) error
}

// ResultCache memoizes classifications by image digest.
type ResultCache interface {
	Get(ctx context.Context, digest string) (string, bool, error)
	Set(ctx context.Context, digest string, category string) error
}

// BatchObserver receives batch lifecycle measurements.
type BatchObserver interface {
	ObserveIngestion(succeeded, failed int)
	ObservePoll(status domain.BatchStatus)
	ObserveJob(status domain.BatchStatus, tasks int, seconds float64)
}
