package domain

import (
	"slices"
	"strings"
)

const FallbackCategory = "other"

// Taxonomy is the closed set of labels a classification may resolve to.
type Taxonomy struct {
	Categories      []string          `json:"categories" yaml:"categories"`
	Fallback        string            `json:"fallback" yaml:"fallback"`
	FineTunedModels map[string]string `json:"fine_tuned_models,omitempty" yaml:"fine_tuned_models"`
}

func DefaultTaxonomy() Taxonomy {
	return Taxonomy{
		Categories: []string{"invoice", "bank statement", "driver's license", FallbackCategory},
		Fallback:   FallbackCategory,
		FineTunedModels: map[string]string{
			"finance":    "gpt-4o-finetuned-finance",
			"healthcare": "gpt-4o-finetuned-healthcare",
		},
	}
}

func (t Taxonomy) Contains(category string) bool {
	return slices.Contains(t.Categories, category)
}

// Normalize maps a provider label onto the taxonomy, falling back for unknown labels.
func (t Taxonomy) Normalize(category string) (string, bool) {
	trimmed := strings.TrimSpace(category)
	for _, c := range t.Categories {
		if strings.EqualFold(c, trimmed) {
			return c, true
		}
	}
	return t.fallback(), false
}

func (t Taxonomy) fallback() string {
	if t.Fallback == "" {
		return FallbackCategory
	}
	return t.Fallback
}

// EncodedImage is a base64 image tied to the document it represents.
type EncodedImage struct {
	SourcePath string `json:"source_path"`
	ImagePath  string `json:"image_path"`
	Data       string `json:"-"`
}

type Classification struct {
	Category string `json:"category"`
}

type ClassificationResult struct {
	CorrelationID string `json:"custom_id"`
	Category      string `json:"category"`
}
