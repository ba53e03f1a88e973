package imagecodec

import (
	"bufio"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

// Codec turns image files into base64 text. Each call holds at most one file's
// encoding in memory and reads the source as a stream.
type Codec struct{}

func New() *Codec {
	return &Codec{}
}

func (c *Codec) Encode(ctx context.Context, path string) (domain.EncodedImage, error) {
	if err := ctx.Err(); err != nil {
		return domain.EncodedImage{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.EncodedImage{}, domain.WrapError(domain.ErrNotFound, "encode image", err)
		}
		return domain.EncodedImage{}, domain.WrapError(domain.ErrIO, "encode image", err)
	}
	defer f.Close()

	var out strings.Builder
	if info, err := f.Stat(); err == nil {
		out.Grow(base64.StdEncoding.EncodedLen(int(info.Size())))
	}

	enc := base64.NewEncoder(base64.StdEncoding, &out)
	if _, err := io.Copy(enc, bufio.NewReader(f)); err != nil {
		return domain.EncodedImage{}, domain.WrapError(domain.ErrIO, "encode image", fmt.Errorf("read %s: %w", path, err))
	}
	if err := enc.Close(); err != nil {
		return domain.EncodedImage{}, domain.WrapError(domain.ErrIO, "encode image", err)
	}

	return domain.EncodedImage{
		SourcePath: path,
		ImagePath:  path,
		Data:       out.String(),
	}, nil
}

// Decode writes the raw bytes of base64 text to dst.
func (c *Codec) Decode(data string, dst io.Writer) error {
	dec := base64.NewDecoder(base64.StdEncoding, strings.NewReader(data))
	if _, err := io.Copy(dst, dec); err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "decode image", err)
	}
	return nil
}
