// Package handlers is the thin HTTP boundary. It validates input, gates
// credits, invokes the orchestration core, and translates the core's uniform
// result shape into status codes. No generation logic lives here.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"spriteforge/internal/artifact"
	"spriteforge/internal/domain"
	"spriteforge/internal/genart"
	"spriteforge/internal/infra"
)

// GenerationService is the orchestration core as the handlers see it.
type GenerationService interface {
	Generate(ctx context.Context, req domain.GenerationRequest, creds domain.ProviderCredentials) domain.GenerationResult
}

// SpritesheetService produces assembled animation sheets.
type SpritesheetService interface {
	Generate(ctx context.Context, req genart.SpritesheetRequest, creds domain.ProviderCredentials) domain.SpritesheetResult
}

// ArtifactPersister hands generated payloads to durable storage.
type ArtifactPersister interface {
	PersistAll(ctx context.Context, images []domain.ImagePayload, nc artifact.NamingContext) []artifact.Persisted
}

// App bundles the handler dependencies.
type App struct {
	Logger      infra.Logger
	Generations GenerationService
	Sheets      SpritesheetService
	Artifacts   ArtifactPersister
	Assets      domain.AssetRepository
	Credits     domain.CreditLedger
	Verifier    domain.TokenVerifier
	Cost        int
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]any{"success": false, "error": kind, "message": message})
}

// identity resolves the caller from the Authorization header.
func (a *App) identity(r *http.Request) (*domain.Identity, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, domain.ErrUnauthorized
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if token == "" {
		return nil, domain.ErrUnauthorized
	}
	return a.Verifier.Verify(r.Context(), token)
}

// Health reports liveness.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok"})
}
