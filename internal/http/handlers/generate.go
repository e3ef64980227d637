package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"spriteforge/internal/artifact"
	"spriteforge/internal/domain"
	"spriteforge/internal/genart"
)

type generateRequest struct {
	Kind               string   `json:"kind"`
	Prompt             string   `json:"prompt"`
	Style              string   `json:"style"`
	Viewpoint          string   `json:"viewpoint"`
	Palette            []string `json:"palette"`
	AspectRatio        string   `json:"aspect_ratio"`
	Dimensions         string   `json:"dimensions"`
	Quantity           int      `json:"quantity"`
	SpriteType         string   `json:"sprite_type"`
	SceneType          string   `json:"scene_type"`
	ReferenceImage     string   `json:"reference_image"`
	PoseImage          string   `json:"pose_image"`
	FrameDescriptions  []string `json:"frame_descriptions"`
	AnimationDirection string   `json:"animation_direction"`
	AnimationView      string   `json:"animation_view"`
	Seed               *int     `json:"seed"`
	ProjectID          string   `json:"project_id"`

	Provider string `json:"provider"`
	APIKey   string `json:"api_key"`
}

type generatedImage struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Embedded bool   `json:"embedded,omitempty"`
}

type generateResponse struct {
	Success  bool             `json:"success"`
	Provider string           `json:"provider,omitempty"`
	Images   []generatedImage `json:"images,omitempty"`
	Frames   []generatedImage `json:"frames,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Generate handles POST /v1/generations.
func (a *App) Generate(w http.ResponseWriter, r *http.Request) {
	identity, err := a.identity(r)
	if err != nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid or missing bearer token")
		return
	}

	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	req := body.toDomain()
	if err := req.Validate(); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	creds := domain.ProviderCredentials{
		Key:      strings.TrimSpace(body.APIKey),
		Provider: strings.TrimSpace(body.Provider),
		OwnKey:   strings.TrimSpace(body.APIKey) != "",
	}

	// Platform-billed calls are gated on balance before any provider work.
	if !creds.OwnKey {
		balance, err := a.Credits.Balance(r.Context(), identity.UserID)
		if err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to read credit balance")
			return
		}
		if balance < a.Cost {
			a.error(w, http.StatusPaymentRequired, "insufficient_credits", domain.ErrInsufficientCredits.Error())
			return
		}
	}

	result := a.Generations.Generate(r.Context(), req, creds)
	if !result.Success {
		if strings.Contains(result.Error, domain.ErrNoCredential.Error()) {
			a.error(w, http.StatusServiceUnavailable, "no_credential", result.Error)
			return
		}
		a.error(w, http.StatusBadGateway, "generation_failed", result.Error)
		return
	}

	resp := generateResponse{Success: true, Provider: result.Provider}
	nc := artifact.NamingContext{Kind: assetKindFor(req.Kind), OwnerID: identity.UserID}
	if len(result.Frames) > 0 {
		resp.Frames = a.persistBatch(r, result.Frames, nc, req.Prompt, body.ProjectID, identity)
	}
	if len(result.Images) > 0 {
		resp.Images = a.persistBatch(r, result.Images, nc, req.Prompt, body.ProjectID, identity)
	}

	if !creds.OwnKey {
		if err := a.Credits.Deduct(r.Context(), identity.UserID, a.Cost); err != nil {
			// The artwork was produced; losing one deduction beats failing
			// the request after the provider was paid.
			a.Logger.Error().Err(err).Str("user_id", identity.UserID).Msg("handlers: credit deduction failed after generation")
		}
	}

	a.json(w, http.StatusOK, resp)
}

func (a *App) persistBatch(r *http.Request, payloads []domain.ImagePayload, nc artifact.NamingContext, prompt, projectID string, identity *domain.Identity) []generatedImage {
	persisted := a.Artifacts.PersistAll(r.Context(), payloads, nc)
	out := make([]generatedImage, len(persisted))
	for i, item := range persisted {
		out[i] = generatedImage{URL: item.URL, MimeType: item.MimeType, Embedded: item.Embedded}
		if item.Embedded {
			continue
		}
		asset := &domain.Asset{
			ID:        uuid.NewString(),
			OwnerID:   identity.UserID,
			ProjectID: strings.TrimSpace(projectID),
			Kind:      nc.Kind,
			URL:       item.URL,
			MimeType:  item.MimeType,
			Prompt:    prompt,
			CreatedAt: time.Now(),
		}
		if err := a.Assets.Create(r.Context(), asset); err != nil {
			a.Logger.Warn().Err(err).Str("url", item.URL).Msg("handlers: asset record not saved")
		}
	}
	return out
}

// GenerateSpritesheet handles POST /v1/spritesheets.
func (a *App) GenerateSpritesheet(w http.ResponseWriter, r *http.Request) {
	identity, err := a.identity(r)
	if err != nil {
		a.error(w, http.StatusUnauthorized, "unauthorized", "invalid or missing bearer token")
		return
	}

	var body struct {
		PresetID    string `json:"preset_id"`
		Prompt      string `json:"prompt"`
		FrameWidth  int    `json:"frame_width"`
		FrameHeight int    `json:"frame_height"`
		Seed        *int   `json:"seed"`
		APIKey      string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	creds := domain.ProviderCredentials{
		Key:    strings.TrimSpace(body.APIKey),
		OwnKey: strings.TrimSpace(body.APIKey) != "",
	}
	if !creds.OwnKey {
		balance, err := a.Credits.Balance(r.Context(), identity.UserID)
		if err != nil {
			a.error(w, http.StatusInternalServerError, "internal", "failed to read credit balance")
			return
		}
		if balance < a.Cost {
			a.error(w, http.StatusPaymentRequired, "insufficient_credits", domain.ErrInsufficientCredits.Error())
			return
		}
	}

	result := a.Sheets.Generate(r.Context(), genart.SpritesheetRequest{
		PresetID:    body.PresetID,
		Prompt:      body.Prompt,
		FrameWidth:  body.FrameWidth,
		FrameHeight: body.FrameHeight,
		Seed:        body.Seed,
	}, creds)
	if !result.Success {
		if strings.Contains(result.Error, "not found") {
			a.error(w, http.StatusBadRequest, "unknown_preset", result.Error)
			return
		}
		a.error(w, http.StatusBadGateway, "generation_failed", result.Error)
		return
	}

	nc := artifact.NamingContext{Kind: domain.AssetKindSpritesheet, OwnerID: identity.UserID}
	sheet := a.persistBatch(r, []domain.ImagePayload{result.Sheet}, nc, body.Prompt, "", identity)[0]

	if !creds.OwnKey {
		if err := a.Credits.Deduct(r.Context(), identity.UserID, a.Cost); err != nil {
			a.Logger.Error().Err(err).Str("user_id", identity.UserID).Msg("handlers: credit deduction failed after generation")
		}
	}

	a.json(w, http.StatusOK, map[string]any{
		"success":      true,
		"url":          sheet.URL,
		"mime_type":    sheet.MimeType,
		"embedded":     sheet.Embedded,
		"frame_count":  result.FrameCount,
		"frame_width":  result.FrameWidth,
		"frame_height": result.FrameHeight,
		"layout":       result.Layout,
	})
}

// Presets handles GET /v1/presets.
func (a *App) Presets(w http.ResponseWriter, r *http.Request) {
	presets := genart.Presets()
	items := make([]map[string]any, 0, len(presets))
	for _, p := range presets {
		items = append(items, map[string]any{
			"id":           p.ID,
			"name":         p.Name,
			"description":  p.Description,
			"style":        p.Style,
			"frame_width":  p.FrameWidth,
			"frame_height": p.FrameHeight,
			"frame_count":  p.FrameCount,
			"layout":       genart.SheetLayout(p.FrameCount),
			"recommended":  p.Recommended,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"presets": items})
}

func (b generateRequest) toDomain() domain.GenerationRequest {
	kind := domain.GenerationKind(strings.TrimSpace(b.Kind))
	if kind == "" {
		kind = domain.KindSprite
	}
	spriteType := domain.SpriteType(strings.TrimSpace(b.SpriteType))
	if spriteType == "" {
		spriteType = domain.SpriteTypeCharacter
	}
	return domain.GenerationRequest{
		Kind:               kind,
		Prompt:             b.Prompt,
		Style:              b.Style,
		Viewpoint:          b.Viewpoint,
		Palette:            b.Palette,
		AspectRatio:        b.AspectRatio,
		Dimensions:         b.Dimensions,
		Quantity:           b.Quantity,
		SpriteType:         spriteType,
		SceneType:          b.SceneType,
		ReferenceImage:     b.ReferenceImage,
		PoseImage:          b.PoseImage,
		FrameDescriptions:  b.FrameDescriptions,
		AnimationDirection: b.AnimationDirection,
		AnimationView:      b.AnimationView,
		Seed:               b.Seed,
	}
}

func assetKindFor(kind domain.GenerationKind) domain.AssetKind {
	switch kind {
	case domain.KindScene:
		return domain.AssetKindScene
	case domain.KindAnimationFrames, domain.KindDirectAnimation:
		return domain.AssetKindFrame
	case domain.KindSpritesheet:
		return domain.AssetKindSpritesheet
	default:
		return domain.AssetKindSprite
	}
}
