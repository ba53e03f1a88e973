package imagecodec

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 40, 30))
	for x := 0; x < 40; x++ {
		img.Set(x, x%30, color.RGBA{R: uint8(x * 6), G: 10, B: 200, A: 255})
	}
	var raw bytes.Buffer
	if err := png.Encode(&raw, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	path := filepath.Join(t.TempDir(), "page.png")
	if err := os.WriteFile(path, raw.Bytes(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	codec := New()
	encoded, err := codec.Encode(context.Background(), path)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if encoded.ImagePath != path || encoded.Data == "" {
		t.Fatalf("unexpected encoded image %+v", encoded.ImagePath)
	}

	var decoded bytes.Buffer
	if err := codec.Decode(encoded.Data, &decoded); err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), raw.Bytes()) {
		t.Fatalf("round trip changed bytes: %d vs %d", decoded.Len(), raw.Len())
	}
}

func TestEncodeEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.jpg")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	encoded, err := New().Encode(context.Background(), path)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if encoded.Data != "" {
		t.Fatalf("expected empty encoding, got %q", encoded.Data)
	}
}

func TestEncodeMissingFile(t *testing.T) {
	_, err := New().Encode(context.Background(), filepath.Join(t.TempDir(), "missing.png"))
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestEncodeDirectoryIsIOError(t *testing.T) {
	_, err := New().Encode(context.Background(), t.TempDir())
	if !domain.IsKind(err, domain.ErrIO) {
		t.Fatalf("expected io error, got %v", err)
	}
}

func TestDecodeRejectsInvalidBase64(t *testing.T) {
	var out bytes.Buffer
	if err := New().Decode("not base64!!", &out); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
