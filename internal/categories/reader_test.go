package categories

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestReaderSeesFileChanges(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.json")
	mustWrite := func(content string) {
		t.Helper()
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	r := NewReader(path)
	mustWrite(`{"food":["groceries"]}`)
	got, err := r.Read(context.Background())
	if err != nil || string(got) != `{"food":["groceries"]}` {
		t.Fatalf("first read: %s err=%v", got, err)
	}

	mustWrite(`{"food":["groceries","coffee"]}`)
	got, err = r.Read(context.Background())
	if err != nil || string(got) != `{"food":["groceries","coffee"]}` {
		t.Fatalf("second read should see the edit: %s err=%v", got, err)
	}
}

func TestReaderErrors(t *testing.T) {
	dir := t.TempDir()

	if _, err := NewReader(filepath.Join(dir, "missing.json")).Read(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{food"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewReader(bad).Read(context.Background()); !errors.Is(err, ErrInvalidDocument) {
		t.Fatalf("expected ErrInvalidDocument, got %v", err)
	}
}

func TestShippedCategoriesFileIsValid(t *testing.T) {
	r := NewReader(filepath.Join("..", "..", "data", "categories.json"))
	if _, err := r.Read(context.Background()); err != nil {
		t.Fatalf("shipped categories file: %v", err)
	}
}
