package openai

import "github.com/kirillkom/document-classifier/internal/core/domain"

type fileObject struct {
	ID       string `json:"id"`
	Bytes    int64  `json:"bytes"`
	Filename string `json:"filename"`
	Purpose  string `json:"purpose"`
}

type batchObject struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	OutputFileID  string `json:"output_file_id"`
	ErrorFileID   string `json:"error_file_id"`
	RequestCounts struct {
		Total     int `json:"total"`
		Completed int `json:"completed"`
		Failed    int `json:"failed"`
	} `json:"request_counts"`
}

func (b batchObject) toDomain() *domain.BatchJob {
	return &domain.BatchJob{
		ID:             b.ID,
		Status:         MapBatchStatus(b.Status),
		ProviderStatus: b.Status,
		ResultFileID:   b.OutputFileID,
		ErrorFileID:    b.ErrorFileID,
	}
}

// MapBatchStatus folds the provider's job states onto the local lifecycle.
// Unknown states keep the job polling.
func MapBatchStatus(status string) domain.BatchStatus {
	switch status {
	case "validating":
		return domain.BatchStatusSubmitted
	case "in_progress", "finalizing", "cancelling":
		return domain.BatchStatusInProgress
	case "completed":
		return domain.BatchStatusCompleted
	case "failed", "expired", "cancelled":
		return domain.BatchStatusFailed
	default:
		return domain.BatchStatusInProgress
	}
}
