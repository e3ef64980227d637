package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStorePut(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "http://localhost:8080/static/")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	url, err := store.Put(context.Background(), "sprite/u1/123-abcd.png", []byte("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "http://localhost:8080/static/sprite/u1/123-abcd.png" {
		t.Errorf("url = %q", url)
	}

	data, err := os.ReadFile(filepath.Join(dir, "sprite", "u1", "123-abcd.png"))
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("content = %q", data)
	}
}

func TestFileStorePutWithoutBaseURL(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	url, err := store.Put(context.Background(), "a/b.png", []byte("x"), "image/png")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "a/b.png" {
		t.Errorf("url = %q, want the bare key", url)
	}
}

func TestFileStoreRejectsTraversal(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir, "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}

	for _, key := range []string{"", "  ", "../escape.png", "a/../../escape.png", "."} {
		if _, err := store.Put(context.Background(), key, []byte("x"), "image/png"); err == nil {
			t.Errorf("key %q must be rejected", key)
		}
	}

	// A leading slash is stripped, not treated as absolute.
	url, err := store.Put(context.Background(), "/rooted/file.png", []byte("x"), "image/png")
	if err != nil {
		t.Fatalf("Put rooted key: %v", err)
	}
	if url != "rooted/file.png" {
		t.Errorf("url = %q", url)
	}
	if _, err := os.Stat(filepath.Join(dir, "rooted", "file.png")); err != nil {
		t.Errorf("file not under base path: %v", err)
	}
}

func TestFileStoreCanceledContext(t *testing.T) {
	store, err := NewFileStore(t.TempDir(), "")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.Put(ctx, "a/b.png", []byte("x"), "image/png"); err == nil {
		t.Fatalf("canceled context must abort the write")
	}
}

func TestNewFileStoreRequiresBasePath(t *testing.T) {
	if _, err := NewFileStore("  ", "http://x"); err == nil {
		t.Fatalf("blank base path must be rejected")
	}
}
