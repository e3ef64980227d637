// Package artifact turns in-memory generation output into persisted,
// addressable assets: decode the mime type, assign a storage key, write the
// bytes, hand back a durable URL.
package artifact

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"spriteforge/internal/domain"
	"spriteforge/internal/infra"
)

// persistConcurrency bounds how many blobs are written at once. Per-item
// work is independent, so parallel writes are safe as long as result order
// follows input order.
const persistConcurrency = 4

// NamingContext contributes the caller-derived segments of a storage key.
type NamingContext struct {
	Kind    domain.AssetKind
	OwnerID string
}

// Persisted is one pipeline output. When durable storage failed for the
// item, URL carries the embedded payload as a data URI instead and Embedded
// is set; the batch never aborts for one bad item.
type Persisted struct {
	URL      string
	MimeType string
	Embedded bool
}

// Pipeline persists encoded images through a blob store.
type Pipeline struct {
	store  domain.BlobStore
	logger infra.Logger
}

func NewPipeline(store domain.BlobStore, logger infra.Logger) *Pipeline {
	return &Pipeline{store: store, logger: logger}
}

// Persist writes one image and returns its durable URL.
func (p *Pipeline) Persist(ctx context.Context, img domain.ImagePayload, nc NamingContext) (string, error) {
	if len(img.Data) == 0 {
		return "", fmt.Errorf("artifact: empty image payload")
	}
	key := storageKey(img.MimeType, nc)
	url, err := p.store.Put(ctx, key, img.Data, img.MimeType)
	if err != nil {
		return "", fmt.Errorf("artifact: persist %s: %w", key, err)
	}
	return url, nil
}

// PersistAll writes a batch, preserving input order in the output. An item
// whose write fails falls back to its embedded data URI so the rest of the
// batch is never lost.
func (p *Pipeline) PersistAll(ctx context.Context, images []domain.ImagePayload, nc NamingContext) []Persisted {
	results := make([]Persisted, len(images))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(persistConcurrency)
	for i, img := range images {
		i, img := i, img
		g.Go(func() error {
			url, err := p.Persist(gctx, img, nc)
			if err != nil {
				p.logger.Warn().Err(err).Int("index", i).Msg("artifact: falling back to embedded payload")
				results[i] = Persisted{URL: img.DataURI(), MimeType: img.MimeType, Embedded: true}
				return nil
			}
			results[i] = Persisted{URL: url, MimeType: img.MimeType}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// storageKey builds "<kind>/<owner>/<timestamp>-<disambiguator>.<ext>".
func storageKey(mimeType string, nc NamingContext) string {
	owner := strings.TrimSpace(nc.OwnerID)
	if owner == "" {
		owner = "anonymous"
	}
	kind := string(nc.Kind)
	if kind == "" {
		kind = string(domain.AssetKindSprite)
	}
	short := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("%s/%s/%d-%s.%s", kind, owner, time.Now().UnixMilli(), short, extensionFor(mimeType))
}

func extensionFor(mimeType string) string {
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "png"
	}
}
