package registry

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func writeCatalog(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write catalog: %v", err)
	}
}

func TestFileRegistry_LoadAndRefresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operators.yaml")
	writeCatalog(t, path, "operators:\n  - text_length_filter\n  - image_deduplicator\n")

	r := NewFile(path)
	expected := []string{"image_deduplicator", "text_length_filter"}
	if got := r.Names(); !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v", expected, got)
	}

	writeCatalog(t, path, "operators:\n  - clean_html_mapper\n")
	if err := r.Refresh(); err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if got := r.Names(); !reflect.DeepEqual(got, []string{"clean_html_mapper"}) {
		t.Fatalf("expected refreshed names, got %v", got)
	}
}

func TestFileRegistry_MissingFileIsEmpty(t *testing.T) {
	r := NewFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if got := r.Names(); len(got) != 0 {
		t.Fatalf("expected empty catalog, got %v", got)
	}
}

func TestFileRegistry_UnreadableClearsNames(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "operators.yaml")
	writeCatalog(t, path, "operators:\n  - text_length_filter\n")

	r := NewFile(path)
	if len(r.Names()) != 1 {
		t.Fatalf("expected initial load, got %v", r.Names())
	}

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := r.Refresh(); err == nil {
		t.Fatal("expected refresh error for removed catalog")
	}
	if got := r.Names(); len(got) != 0 {
		t.Fatalf("expected names cleared after failed refresh, got %v", got)
	}
}

func TestFileRegistry_WatchRefreshesOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operators.yaml")
	writeCatalog(t, path, "operators:\n  - text_length_filter\n")

	r := NewFile(path)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Watch(ctx); err != nil {
		t.Fatalf("watch failed: %v", err)
	}

	writeCatalog(t, path, "operators:\n  - text_length_filter\n  - clean_html_mapper\n")

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(r.Names()) == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("catalog not refreshed after write, names: %v", r.Names())
}

func TestFileRegistry_WatchMissingFileErrors(t *testing.T) {
	r := NewFile(filepath.Join(t.TempDir(), "nope.yaml"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := r.Watch(ctx); err == nil {
		t.Fatal("expected watch error for a missing catalog")
	}
}

func TestFileRegistry_SkipsBlankEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "operators.yaml")
	writeCatalog(t, path, "operators:\n  - ''\n  - text_length_filter\n")

	r := NewFile(path)
	if got := r.Names(); !reflect.DeepEqual(got, []string{"text_length_filter"}) {
		t.Fatalf("expected blank entries dropped, got %v", got)
	}
}
