package usecase

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

const (
	DefaultModel            = "gpt-4o-2024-08-06"
	CorrelationPrefix       = "task-"
	ChatCompletionsEndpoint = "/v1/chat/completions"

	defaultTemperature = 0.2
	responseSchemaName = "Classification"
)

// RequestBuilder turns encoded images into provider requests constrained to the taxonomy.
type RequestBuilder struct {
	taxonomy     domain.Taxonomy
	model        string
	temperature  float64
	systemPrompt string
}

func NewRequestBuilder(taxonomy domain.Taxonomy, model string) *RequestBuilder {
	if len(taxonomy.Categories) == 0 {
		taxonomy = domain.DefaultTaxonomy()
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	return &RequestBuilder{
		taxonomy:     taxonomy,
		model:        model,
		temperature:  defaultTemperature,
		systemPrompt: buildSystemPrompt(taxonomy.Categories),
	}
}

func (b *RequestBuilder) Taxonomy() domain.Taxonomy {
	return b.taxonomy
}

// ModelFor returns the fine-tuned model registered for a business domain.
// Default classification does not route through it.
func (b *RequestBuilder) ModelFor(domainName string) (string, bool) {
	model, ok := b.taxonomy.FineTunedModels[strings.ToLower(strings.TrimSpace(domainName))]
	return model, ok
}

func (b *RequestBuilder) BuildSingle(image domain.EncodedImage) domain.ChatCompletionRequest {
	return domain.ChatCompletionRequest{
		Model:          b.model,
		Temperature:    b.temperature,
		ResponseFormat: classificationResponseFormat(),
		Messages: []domain.ChatMessage{
			{Role: "system", Text: b.systemPrompt},
			{
				Role: "user",
				Parts: []domain.ContentPart{{
					Type:     "image_url",
					ImageURL: &domain.ImageURL{URL: dataURI(image)},
				}},
			},
		},
	}
}

// BuildBatch emits one task per image in input order. Source paths must be unique.
func (b *RequestBuilder) BuildBatch(images []domain.EncodedImage) ([]domain.ClassificationTask, error) {
	seen := make(map[string]struct{}, len(images))
	tasks := make([]domain.ClassificationTask, 0, len(images))
	for _, image := range images {
		id := CorrelationID(image.SourcePath)
		if _, dup := seen[id]; dup {
			return nil, domain.WrapError(domain.ErrInvalidInput, "build batch", fmt.Errorf("duplicate source path %q", image.SourcePath))
		}
		seen[id] = struct{}{}

		tasks = append(tasks, domain.ClassificationTask{
			CorrelationID: id,
			Method:        "POST",
			URL:           ChatCompletionsEndpoint,
			Body:          b.BuildSingle(image),
		})
	}
	return tasks, nil
}

// ParseCategory validates a response against the strict single-field contract
// and resolves the label against the taxonomy.
func (b *RequestBuilder) ParseCategory(content string) (string, error) {
	raw := strings.TrimSpace(content)
	if raw == "" {
		return "", domain.WrapError(domain.ErrInvalidResponse, "parse category", errors.New("empty content"))
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return "", domain.WrapError(domain.ErrInvalidResponse, "parse category", err)
	}
	value, ok := fields["category"]
	if !ok {
		return "", domain.WrapError(domain.ErrInvalidResponse, "parse category", errors.New("missing field category"))
	}
	if len(fields) != 1 {
		return "", domain.WrapError(domain.ErrInvalidResponse, "parse category", fmt.Errorf("unexpected fields in %s", raw))
	}

	var category *string
	if err := json.Unmarshal(value, &category); err != nil {
		return "", domain.WrapError(domain.ErrInvalidResponse, "parse category", fmt.Errorf("category is not a string: %w", err))
	}
	if category == nil {
		return "", domain.WrapError(domain.ErrInvalidResponse, "parse category", errors.New("category is null"))
	}

	normalized, _ := b.taxonomy.Normalize(*category)
	return normalized, nil
}

func CorrelationID(sourcePath string) string {
	return CorrelationPrefix + sourcePath
}

func buildSystemPrompt(categories []string) string {
	return fmt.Sprintf(
		"Your goal is to classify the images into one of the following categories: %s.",
		strings.Join(categories, ", "),
	)
}

func classificationResponseFormat() domain.ResponseFormat {
	return domain.ResponseFormat{
		Type: "json_schema",
		JSONSchema: domain.JSONSchema{
			Name:   responseSchemaName,
			Strict: true,
			Schema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"category": map[string]any{"title": "Category", "type": "string"},
				},
				"required":             []string{"category"},
				"additionalProperties": false,
			},
		},
	}
}

func dataURI(image domain.EncodedImage) string {
	return "data:" + imageMediaType(image.ImagePath) + ";base64," + image.Data
}

func imageMediaType(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return "image/png"
	}
	return "image/jpeg"
}
