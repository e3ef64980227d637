package genart

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"spriteforge/internal/domain"
	"spriteforge/internal/infra"
)

// TextRefiner is the text-model capability behind the refinement stage.
type TextRefiner interface {
	GenerateText(ctx context.Context, systemInstruction, prompt string) (string, error)
	HasCredentials() bool
}

const (
	refineCacheTTL     = 15 * time.Minute
	refineCacheCleanup = 30 * time.Minute
)

// Refiner is the optional pre-pass that rewrites the deterministic prompt
// with a text model. It never fails upward: any transport or parse problem
// is logged and the deterministic prompt is returned instead.
type Refiner struct {
	client TextRefiner
	cache  *gocache.Cache
	logger infra.Logger
}

// NewRefiner wires a text model client. A nil client yields a refiner that
// always returns the deterministic prompt.
func NewRefiner(client TextRefiner, logger infra.Logger) *Refiner {
	return &Refiner{
		client: client,
		cache:  gocache.New(refineCacheTTL, refineCacheCleanup),
		logger: logger,
	}
}

// Refine returns an enhanced prompt for the request, falling back to
// BuildPrompt output on any failure. Successful refinements are memoized so
// retried requests do not spend another text-model call.
func (r *Refiner) Refine(ctx context.Context, req domain.GenerationRequest) string {
	base := BuildPrompt(req)
	if r == nil || r.client == nil || !r.client.HasCredentials() {
		return base
	}

	key := refineCacheKey(base)
	if cached, ok := r.cache.Get(key); ok {
		if prompt, ok := cached.(string); ok {
			return prompt
		}
	}

	refined, err := r.client.GenerateText(ctx, refineSystemInstruction(req), base)
	if err != nil {
		r.logger.Warn().Err(err).Msg("genart: prompt refinement failed, using deterministic prompt")
		return base
	}
	refined = strings.TrimSpace(refined)
	if refined == "" {
		r.logger.Warn().Msg("genart: prompt refinement returned empty text, using deterministic prompt")
		return base
	}

	r.cache.Set(key, refined, gocache.DefaultExpiration)
	return refined
}

func refineSystemInstruction(req domain.GenerationRequest) string {
	var sb strings.Builder
	sb.WriteString("You rewrite prompts for a game-art image model. ")
	sb.WriteString("Keep the requested art style exactly as stated. ")
	sb.WriteString("Add only technical and compositional detail: lighting, framing, silhouette readability, color balance. ")
	sb.WriteString("Do not change the subject or invent new elements. ")
	if req.Kind != domain.KindScene && req.SpriteType != domain.SpriteTypeObject && !HasPartialBodyMarker(req.Prompt) {
		sb.WriteString("The subject must remain full body, never cropped. ")
	}
	sb.WriteString("Respond with the rewritten prompt only, no commentary.")
	return sb.String()
}

func refineCacheKey(basePrompt string) string {
	sum := sha256.Sum256([]byte(basePrompt))
	return hex.EncodeToString(sum[:8])
}
