package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/document-classifier/internal/core/domain"
	"github.com/kirillkom/document-classifier/internal/core/ports"
)

type ClassifyFileUseCase struct {
	uploads   ports.FileStore
	converter ports.DocumentConverter
	encoder   ports.ImageEncoder
	builder   *RequestBuilder
	chat      ports.ChatCompleter
	cache     ports.ResultCache
	logger    *slog.Logger
}

func NewClassifyFileUseCase(
	uploads ports.FileStore,
	converter ports.DocumentConverter,
	encoder ports.ImageEncoder,
	builder *RequestBuilder,
	chat ports.ChatCompleter,
	cache ports.ResultCache,
	logger *slog.Logger,
) *ClassifyFileUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClassifyFileUseCase{
		uploads:   uploads,
		converter: converter,
		encoder:   encoder,
		builder:   builder,
		chat:      chat,
		cache:     cache,
		logger:    logger.With("component", "classify_file"),
	}
}

// ClassifyUpload stores the uploaded body under a unique key and classifies it.
func (uc *ClassifyFileUseCase) ClassifyUpload(ctx context.Context, filename string, body io.Reader) (domain.Classification, error) {
	if strings.TrimSpace(filename) == "" {
		return domain.Classification{}, domain.WrapError(domain.ErrInvalidInput, "classify upload", errors.New("filename is required"))
	}

	key := path.Join("uploads", fmt.Sprintf("%s_%s", uuid.NewString(), sanitizeFilename(filename)))
	if err := uc.uploads.Save(ctx, key, body); err != nil {
		return domain.Classification{}, domain.WrapError(domain.ErrIO, "save upload", err)
	}
	return uc.ClassifyPath(ctx, uc.uploads.Path(key))
}

func (uc *ClassifyFileUseCase) ClassifyPath(ctx context.Context, sourcePath string) (domain.Classification, error) {
	imagePath, err := uc.converter.Convert(ctx, sourcePath)
	if err != nil {
		uc.logger.ErrorContext(ctx, "convert_failed", "source_path", sourcePath, "error", err)
		return domain.Classification{}, fmt.Errorf("convert document: %w", err)
	}

	image, err := uc.encoder.Encode(ctx, imagePath)
	if err != nil {
		return domain.Classification{}, fmt.Errorf("encode image: %w", err)
	}
	image.SourcePath = sourcePath

	digest := imageDigest(image.Data)
	if category, ok := uc.cachedCategory(ctx, digest); ok {
		uc.logger.InfoContext(ctx, "classification_cache_hit", "source_path", sourcePath, "category", category)
		return domain.Classification{Category: category}, nil
	}

	resp, err := uc.chat.CompleteChat(ctx, uc.builder.BuildSingle(image))
	if err != nil {
		uc.logger.ErrorContext(ctx, "classify_request_failed", "source_path", sourcePath, "error", err)
		return domain.Classification{}, fmt.Errorf("classify image: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Classification{}, domain.WrapError(domain.ErrInvalidResponse, "classify image", errors.New("no choices returned"))
	}
	message := resp.Choices[0].Message
	if message.Refusal != "" {
		return domain.Classification{}, domain.WrapError(domain.ErrInvalidResponse, "classify image", fmt.Errorf("refused: %s", message.Refusal))
	}

	category, err := uc.builder.ParseCategory(message.Content)
	if err != nil {
		return domain.Classification{}, err
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, digest, category); err != nil {
			uc.logger.WarnContext(ctx, "classification_cache_store_failed", "source_path", sourcePath, "error", err)
		}
	}

	uc.logger.InfoContext(ctx, "document_classified", "source_path", sourcePath, "category", category)
	return domain.Classification{Category: category}, nil
}

func (uc *ClassifyFileUseCase) cachedCategory(ctx context.Context, digest string) (string, bool) {
	if uc.cache == nil {
		return "", false
	}
	category, ok, err := uc.cache.Get(ctx, digest)
	if err != nil {
		uc.logger.WarnContext(ctx, "classification_cache_lookup_failed", "digest", digest, "error", err)
		return "", false
	}
	if !ok || !uc.builder.Taxonomy().Contains(category) {
		return "", false
	}
	return category, true
}

func imageDigest(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
