package storage_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"voicecast/internal/storage"
	"voicecast/internal/testsupport"
)

func TestLocalStoreMovesFileIntoRoot(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend, err := storage.NewLocal(cfg)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	src := filepath.Join(t.TempDir(), "episode-1-final.mp3")
	if err := os.WriteFile(src, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	stored, err := backend.Store(context.Background(), src, "episode-1-final.mp3")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if stored != filepath.Join(backend.Root(), "episode-1-final.mp3") {
		t.Fatalf("stored path = %q", stored)
	}
	data, err := os.ReadFile(stored)
	if err != nil || string(data) != "audio" {
		t.Fatalf("stored content wrong: %q, %v", data, err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("source should be moved away, stat err = %v", err)
	}
}

func TestLocalStoreRejectsPathTraversal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend, err := storage.NewLocal(cfg)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	src := filepath.Join(t.TempDir(), "evil.mp3")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}

	stored, err := backend.Store(context.Background(), src, "../../evil.mp3")
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	rel, err := filepath.Rel(backend.Root(), stored)
	if err != nil || rel != "evil.mp3" {
		t.Fatalf("traversal not contained: stored = %q", stored)
	}
}

func TestLocalURL(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.StorageBaseURL = "http://127.0.0.1:7512/media/"
	backend, err := storage.NewLocal(cfg)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}

	if got := backend.URL("episode-1-final.mp3"); got != "http://127.0.0.1:7512/media/episode-1-final.mp3" {
		t.Fatalf("url = %q", got)
	}
	if got := backend.URL("../escape.mp3"); got != "http://127.0.0.1:7512/media/escape.mp3" {
		t.Fatalf("traversal in url = %q", got)
	}
}

func TestLocalDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	backend, err := storage.NewLocal(cfg)
	if err != nil {
		t.Fatalf("new backend: %v", err)
	}
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "gone.mp3")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatalf("write source: %v", err)
	}
	if _, err := backend.Store(ctx, src, "gone.mp3"); err != nil {
		t.Fatalf("store: %v", err)
	}

	if err := backend.Delete(ctx, "gone.mp3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := backend.Delete(ctx, "gone.mp3"); err != nil {
		t.Fatalf("second delete should be a no-op: %v", err)
	}
}
