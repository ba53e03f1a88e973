package localfs

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/document-classifier/internal/core/domain"
)

func TestSaveAndOpenNestedKey(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ctx := context.Background()

	if err := store.Save(ctx, "batches/run-1/tasks.jsonl", strings.NewReader("{}\n")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rc, err := store.Open(ctx, "batches/run-1/tasks.jsonl")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	raw, _ := io.ReadAll(rc)
	if string(raw) != "{}\n" {
		t.Fatalf("unexpected content %q", raw)
	}
	if !strings.HasSuffix(store.Path("batches/run-1/tasks.jsonl"), filepath.Join("batches", "run-1", "tasks.jsonl")) {
		t.Fatalf("unexpected path %s", store.Path("batches/run-1/tasks.jsonl"))
	}
}

func TestOpenMissingKey(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := store.Open(context.Background(), "batches/none/results.jsonl"); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRejectsEscapingKeys(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for _, key := range []string{"../etc/passwd", "/abs/path", "", "a/../../b"} {
		if err := store.Save(context.Background(), key, strings.NewReader("x")); !domain.IsKind(err, domain.ErrInvalidInput) {
			t.Fatalf("Save(%q): expected invalid input, got %v", key, err)
		}
	}
}

func TestConcurrentSavesToDistinctKeys(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	var wg sync.WaitGroup
	for _, job := range []string{"job-a", "job-b", "job-c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.Save(context.Background(), "batches/"+job+"/results.jsonl", strings.NewReader(job)); err != nil {
				t.Errorf("Save(%s) error = %v", job, err)
			}
		}()
	}
	wg.Wait()

	for _, job := range []string{"job-a", "job-b", "job-c"} {
		rc, err := store.Open(context.Background(), "batches/"+job+"/results.jsonl")
		if err != nil {
			t.Fatalf("Open(%s) error = %v", job, err)
		}
		raw, _ := io.ReadAll(rc)
		rc.Close()
		if string(raw) != job {
			t.Fatalf("artifact for %s overwritten: %q", job, raw)
		}
	}
}
