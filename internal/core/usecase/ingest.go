package usecase

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/document-classifier/internal/core/ports"
)

const DefaultIngestWorkers = 3

// FileIngestor converts documents to images on a bounded worker pool.
// A failing file is logged and left out; the rest of the batch proceeds.
type FileIngestor struct {
	converter ports.DocumentConverter
	observer  ports.BatchObserver
	logger    *slog.Logger
	workers   int
}

func NewFileIngestor(converter ports.DocumentConverter, observer ports.BatchObserver, logger *slog.Logger, workers int) *FileIngestor {
	if workers <= 0 {
		workers = DefaultIngestWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FileIngestor{
		converter: converter,
		observer:  observer,
		logger:    logger.With("component", "file_ingestor"),
		workers:   workers,
	}
}

type conversionOutcome struct {
	source string
	image  string
	err    error
}

// Ingest returns original path -> converted image path for every successful conversion.
func (uc *FileIngestor) Ingest(ctx context.Context, paths []string) (map[string]string, error) {
	outcomes := make(chan conversionOutcome, len(paths))

	go func() {
		var g errgroup.Group
		g.SetLimit(uc.workers)
		for _, p := range paths {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					outcomes <- conversionOutcome{source: p, err: err}
					return nil
				}
				image, err := uc.converter.Convert(ctx, p)
				outcomes <- conversionOutcome{source: p, image: image, err: err}
				return nil
			})
		}
		_ = g.Wait()
		close(outcomes)
	}()

	converted := make(map[string]string, len(paths))
	failed := 0
	for outcome := range outcomes {
		if outcome.err != nil {
			failed++
			uc.logger.ErrorContext(ctx, "ingest_file_failed", "source_path", outcome.source, "error", outcome.err)
			continue
		}
		converted[outcome.source] = outcome.image
		uc.logger.InfoContext(ctx, "ingest_file_converted", "source_path", outcome.source, "image_path", outcome.image)
	}

	if uc.observer != nil {
		uc.observer.ObserveIngestion(len(converted), failed)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return converted, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" || base == "." || base == ".." {
		return "document.bin"
	}
	return base
}
