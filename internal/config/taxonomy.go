package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// LoadTaxonomy reads the category set from a YAML file. An empty path yields the default taxonomy.
//
//	categories: [invoice, bank statement, driver's license, other]
//	fallback: other
//	fine_tuned_models:
//	  finance: gpt-4o-finetuned-finance
func LoadTaxonomy(path string) (domain.Taxonomy, error) {
	if strings.TrimSpace(path) == "" {
		return domain.DefaultTaxonomy(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Taxonomy{}, fmt.Errorf("read taxonomy file: %w", err)
	}
	return parseTaxonomy(raw)
}

func parseTaxonomy(raw []byte) (domain.Taxonomy, error) {
	var taxonomy domain.Taxonomy
	if err := yaml.Unmarshal(raw, &taxonomy); err != nil {
		return domain.Taxonomy{}, fmt.Errorf("parse taxonomy: %w", err)
	}

	categories := make([]string, 0, len(taxonomy.Categories))
	for _, category := range taxonomy.Categories {
		category = strings.TrimSpace(category)
		if category == "" || slices.Contains(categories, category) {
			continue
		}
		categories = append(categories, category)
	}
	if len(categories) == 0 {
		return domain.Taxonomy{}, errors.New("taxonomy must define at least one category")
	}

	taxonomy.Fallback = strings.TrimSpace(taxonomy.Fallback)
	if taxonomy.Fallback == "" {
		taxonomy.Fallback = domain.FallbackCategory
	}
	if !slices.Contains(categories, taxonomy.Fallback) {
		categories = append(categories, taxonomy.Fallback)
	}
	taxonomy.Categories = categories
	return taxonomy, nil
}
