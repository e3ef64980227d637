package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"spriteforge/internal/domain"
)

type fakeBlobStore struct {
	mu        sync.Mutex
	puts      []string
	failFirst bool
}

func (f *fakeBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.mu.Lock()
	f.puts = append(f.puts, key)
	fail := f.failFirst && len(f.puts) == 1
	f.mu.Unlock()
	if fail {
		return "", errors.New("disk full")
	}
	return "https://assets.example.com/" + key, nil
}

func TestPersist(t *testing.T) {
	store := &fakeBlobStore{}
	p := NewPipeline(store, zerolog.Nop())
	nc := NamingContext{Kind: domain.AssetKindScene, OwnerID: "user-1"}

	url, err := p.Persist(context.Background(), domain.ImagePayload{Data: []byte("png-bytes"), MimeType: "image/png"}, nc)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !strings.HasPrefix(url, "https://assets.example.com/scene/user-1/") {
		t.Errorf("url = %q, key must carry kind and owner", url)
	}
	if !strings.HasSuffix(url, ".png") {
		t.Errorf("url = %q, want png extension", url)
	}
}

func TestPersistEmptyPayload(t *testing.T) {
	p := NewPipeline(&fakeBlobStore{}, zerolog.Nop())
	if _, err := p.Persist(context.Background(), domain.ImagePayload{MimeType: "image/png"}, NamingContext{}); err == nil {
		t.Fatalf("empty payload must be rejected")
	}
}

func TestPersistAllPreservesOrder(t *testing.T) {
	store := &fakeBlobStore{}
	p := NewPipeline(store, zerolog.Nop())

	images := make([]domain.ImagePayload, 9)
	for i := range images {
		images[i] = domain.ImagePayload{Data: []byte(fmt.Sprintf("frame-%d", i)), MimeType: "image/webp"}
	}

	results := p.PersistAll(context.Background(), images, NamingContext{Kind: domain.AssetKindFrame, OwnerID: "u"})
	if len(results) != len(images) {
		t.Fatalf("results = %d, want %d", len(results), len(images))
	}
	for i, res := range results {
		if res.Embedded {
			t.Errorf("item %d unexpectedly embedded", i)
		}
		if res.MimeType != "image/webp" {
			t.Errorf("item %d mime = %q", i, res.MimeType)
		}
		if !strings.Contains(res.URL, "frame/u/") || !strings.HasSuffix(res.URL, ".webp") {
			t.Errorf("item %d url = %q", i, res.URL)
		}
	}
}

func TestPersistAllFallsBackPerItem(t *testing.T) {
	store := &fakeBlobStore{failFirst: true}
	p := NewPipeline(store, zerolog.Nop())

	images := []domain.ImagePayload{
		{Data: []byte("a"), MimeType: "image/png"},
		{Data: []byte("b"), MimeType: "image/png"},
		{Data: []byte("c"), MimeType: "image/png"},
	}

	results := p.PersistAll(context.Background(), images, NamingContext{OwnerID: "u"})
	if len(results) != 3 {
		t.Fatalf("batch must never shrink, got %d", len(results))
	}
	embedded := 0
	for _, res := range results {
		if res.Embedded {
			embedded++
			if !strings.HasPrefix(res.URL, "data:image/png;base64,") {
				t.Errorf("embedded url = %q, want a data URI", res.URL)
			}
		} else if !strings.HasPrefix(res.URL, "https://assets.example.com/") {
			t.Errorf("durable url = %q", res.URL)
		}
	}
	if embedded != 1 {
		t.Fatalf("embedded = %d, want exactly the one failed item", embedded)
	}
}

func TestStorageKeyShape(t *testing.T) {
	key := storageKey("image/jpeg", NamingContext{Kind: domain.AssetKindSpritesheet, OwnerID: "owner-9"})
	parts := strings.Split(key, "/")
	if len(parts) != 3 {
		t.Fatalf("key = %q, want kind/owner/file", key)
	}
	if parts[0] != "spritesheet" || parts[1] != "owner-9" {
		t.Errorf("key = %q", key)
	}
	if !strings.HasSuffix(parts[2], ".jpg") {
		t.Errorf("file = %q, want jpg extension", parts[2])
	}

	key = storageKey("image/png", NamingContext{})
	if !strings.HasPrefix(key, "sprite/anonymous/") {
		t.Errorf("defaulted key = %q", key)
	}
}

func TestExtensionFor(t *testing.T) {
	cases := map[string]string{
		"image/jpeg":    "jpg",
		"image/jpg":     "jpg",
		"IMAGE/JPEG":    "jpg",
		"image/webp":    "webp",
		"image/gif":     "gif",
		"image/png":     "png",
		"":              "png",
		"application/x": "png",
	}
	for mime, want := range cases {
		if got := extensionFor(mime); got != want {
			t.Errorf("extensionFor(%q) = %q, want %q", mime, got, want)
		}
	}
}
