package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"spriteforge/internal/domain"
)

// ListAssets handles GET /v1/assets.
func (a *App) ListAssets(w http.ResponseWriter, r *http.Request) {
	identity, err := a.identity(r)
	if err != nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid or missing bearer token")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	assets, err := a.Assets.ListByOwner(r.Context(), identity.UserID, limit)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list assets")
		return
	}
	items := make([]map[string]any, 0, len(assets))
	for _, asset := range assets {
		items = append(items, map[string]any{
			"id":         asset.ID,
			"project_id": asset.ProjectID,
			"kind":       asset.Kind,
			"url":        asset.URL,
			"mime_type":  asset.MimeType,
			"prompt":     asset.Prompt,
			"created_at": asset.CreatedAt,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"assets": items})
}

// DeleteAsset handles DELETE /v1/assets/{id}.
func (a *App) DeleteAsset(w http.ResponseWriter, r *http.Request) {
	identity, err := a.identity(r)
	if err != nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid or missing bearer token")
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "asset id required")
		return
	}
	if err := a.Assets.SoftDelete(r.Context(), id, identity.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "asset not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to delete asset")
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true})
}
