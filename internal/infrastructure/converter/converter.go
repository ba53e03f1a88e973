package converter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"

	DefaultOfficeBinary = "soffice"
	DefaultMaxImageEdge = 2048
)

var officeTypes = map[string]string{
	".docx": MIMEDOCX,
	".xlsx": MIMEXLSX,
}

// Converter renders supported documents to a single PNG page in outputDir.
// Outputs are named after the source file, so concurrent conversions of
// distinctly named files never share a path.
type Converter struct {
	outputDir    string
	officeBinary string
	maxEdge      int
	logger       *slog.Logger
}

type Options struct {
	OutputDir    string
	OfficeBinary string
	MaxImageEdge int
	Logger       *slog.Logger
}

func New(options Options) (*Converter, error) {
	if strings.TrimSpace(options.OutputDir) == "" {
		return nil, errors.New("converter output dir is required")
	}
	if err := os.MkdirAll(options.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create converter output dir: %w", err)
	}
	if options.OfficeBinary == "" {
		options.OfficeBinary = DefaultOfficeBinary
	}
	if options.MaxImageEdge <= 0 {
		options.MaxImageEdge = DefaultMaxImageEdge
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{
		outputDir:    options.OutputDir,
		officeBinary: options.OfficeBinary,
		maxEdge:      options.MaxImageEdge,
		logger:       logger.With("component", "converter"),
	}, nil
}

func (c *Converter) Convert(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	mimeType := DetectMIME(path)
	switch mimeType {
	case MIMEPDF, MIMEDOCX, MIMEXLSX, MIMEJPEG, MIMEPNG:
	default:
		return "", domain.WrapError(domain.ErrUnsupportedFormat, "convert "+path, fmt.Errorf("mime type %q", mimeType))
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", domain.WrapError(domain.ErrNotFound, "convert "+path, err)
		}
		return "", domain.WrapError(domain.ErrIO, "convert "+path, err)
	}
	if !info.Mode().IsRegular() {
		return "", domain.WrapError(domain.ErrInvalidInput, "convert "+path, errors.New("not a regular file"))
	}

	var image string
	switch mimeType {
	case MIMEJPEG, MIMEPNG:
		return path, nil
	case MIMEPDF:
		image, err = c.renderPDF(ctx, path)
	case MIMEDOCX:
		image, err = c.renderOffice(ctx, path)
	case MIMEXLSX:
		image, err = c.renderSpreadsheet(ctx, path)
	}
	if err != nil {
		if domain.IsKind(err, domain.ErrConversion) {
			return "", err
		}
		return "", domain.WrapError(domain.ErrConversion, "convert "+path, err)
	}

	c.logger.DebugContext(ctx, "document_converted", "source_path", path, "mime_type", mimeType, "image_path", image)
	return image, nil
}

// DetectMIME resolves a media type from the file extension.
func DetectMIME(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if mimeType, ok := officeTypes[ext]; ok {
		return mimeType
	}
	mimeType := mime.TypeByExtension(ext)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return strings.TrimSpace(mimeType)
}

func (c *Converter) pageImagePath(source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(c.outputDir, base+"_page_1.png")
}
