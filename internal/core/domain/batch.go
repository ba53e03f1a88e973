package domain

import (
	"encoding/json"
	"time"
)

type BatchStatus string

const (
	BatchStatusQueued     BatchStatus = "queued"
	BatchStatusSubmitted  BatchStatus = "submitted"
	BatchStatusInProgress BatchStatus = "in_progress"
	BatchStatusCompleted  BatchStatus = "completed"
	BatchStatusFailed     BatchStatus = "failed"
)

func (s BatchStatus) Terminal() bool {
	return s == BatchStatusCompleted || s == BatchStatusFailed
}

// BatchJob is the provider-side view of an asynchronous job.
type BatchJob struct {
	ID             string      `json:"id"`
	Status         BatchStatus `json:"status"`
	ProviderStatus string      `json:"provider_status,omitempty"`
	ResultFileID   string      `json:"result_file_id,omitempty"`
	ErrorFileID    string      `json:"error_file_id,omitempty"`
}

// BatchRecord is the persisted lifecycle of one directory classification run.
type BatchRecord struct {
	ID        string                 `json:"id"`
	JobID     string                 `json:"job_id,omitempty"`
	Directory string                 `json:"directory"`
	Status    BatchStatus            `json:"status"`
	TaskCount int                    `json:"task_count"`
	Results   []ClassificationResult `json:"results,omitempty"`
	Error     string                 `json:"error,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// BatchRequest is the queued instruction to classify a directory.
type BatchRequest struct {
	BatchID     string    `json:"batch_id"`
	Directory   string    `json:"directory"`
	RequestedAt time.Time `json:"requested_at"`
}

// ClassificationTask is one line of the batch input file.
type ClassificationTask struct {
	CorrelationID string                `json:"custom_id"`
	Method        string                `json:"method"`
	URL           string                `json:"url"`
	Body          ChatCompletionRequest `json:"body"`
}

type ChatCompletionRequest struct {
	Model          string         `json:"model"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat ResponseFormat `json:"response_format"`
	Messages       []ChatMessage  `json:"messages"`
}

type ResponseFormat struct {
	Type       string     `json:"type"`
	JSONSchema JSONSchema `json:"json_schema"`
}

type JSONSchema struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

// ChatMessage carries either plain text or multi-part content.
type ChatMessage struct {
	Role  string
	Text  string
	Parts []ContentPart
}

func (m ChatMessage) MarshalJSON() ([]byte, error) {
	if len(m.Parts) > 0 {
		return json.Marshal(struct {
			Role    string        `json:"role"`
			Content []ContentPart `json:"content"`
		}{m.Role, m.Parts})
	}
	return json.Marshal(struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}{m.Role, m.Text})
}

func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	m.Role = raw.Role
	if len(raw.Content) > 0 && raw.Content[0] == '[' {
		return json.Unmarshal(raw.Content, &m.Parts)
	}
	if len(raw.Content) == 0 || string(raw.Content) == "null" {
		return nil
	}
	return json.Unmarshal(raw.Content, &m.Text)
}

type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

type ImageURL struct {
	URL string `json:"url"`
}

type ChatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []ChatChoice `json:"choices"`
}

type ChatChoice struct {
	Message ChatResponseMessage `json:"message"`
}

type ChatResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Refusal string `json:"refusal,omitempty"`
}

// BatchResultLine is one line of the batch output file.
type BatchResultLine struct {
	ID       string               `json:"id"`
	CustomID string               `json:"custom_id"`
	Response *BatchResultResponse `json:"response"`
	Error    *BatchLineError      `json:"error"`
}

type BatchResultResponse struct {
	StatusCode int                     `json:"status_code"`
	Body       *ChatCompletionResponse `json:"body"`
}

type BatchLineError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
