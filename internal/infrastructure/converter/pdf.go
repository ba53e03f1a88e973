package converter

import (
	"context"
	"errors"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/gen2brain/go-fitz"
	"github.com/ledongthuc/pdf"
)

// renderPDF rasterizes the first page of a PDF and fits it within the max edge.
func (c *Converter) renderPDF(ctx context.Context, path string) (string, error) {
	pages, err := countPDFPages(path)
	if err != nil {
		return "", fmt.Errorf("validate pdf: %w", err)
	}
	if pages < 1 {
		return "", errors.New("pdf has no pages")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	page, err := doc.Image(0)
	if err != nil {
		return "", fmt.Errorf("render page 1: %w", err)
	}

	fitted := imaging.Fit(page, c.maxEdge, c.maxEdge, imaging.Lanczos)
	out := c.pageImagePath(path)
	if err := imaging.Save(fitted, out); err != nil {
		return "", fmt.Errorf("save page image: %w", err)
	}
	return out, nil
}

func countPDFPages(path string) (pages int, err error) {
	// The parser panics on some truncated files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return reader.NumPage(), nil
}
