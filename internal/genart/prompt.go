// Package genart holds the generation orchestration core: prompt
// construction, the refinement stage, provider selection with fallback, and
// the spritesheet specialization.
package genart

import (
	"fmt"
	"strings"

	"spriteforge/internal/domain"
)

const (
	pixelStylePreamble  = "Create pixelated pixel-art style game artwork with crisp hard edges and a limited retro palette."
	vectorStylePreamble = "Create flat vector style game artwork with clean geometric shapes and smooth solid fills."

	fullBodyClause = "Show the full body, not cropped, with the entire figure visible inside the frame."

	qualitySuffix = "High quality, clean edges, readable silhouette, no watermark, no text artifacts."
)

// partialBodyMarkers signal that the caller wants a cropped framing, which
// suppresses the mandatory full-body clause. Matched case-insensitively.
var partialBodyMarkers = []string{
	"half body",
	"half-body",
	"upper body",
	"above chest",
	"portrait",
	"bust",
	"headshot",
	"face only",
	"torso",
}

var viewpointClauses = map[string]string{
	"front":     "Viewed straight from the front.",
	"back":      "Viewed from behind.",
	"side":      "Viewed from the side in profile.",
	"top-down":  "Viewed from directly above, top-down.",
	"isometric": "Viewed from an isometric three-quarter angle.",
}

// aspectRatioSizes maps the supported aspect ratios to generation dimensions.
// Unknown ratios fall back to 1024x1024.
var aspectRatioSizes = map[string][2]int{
	"1:1":  {1024, 1024},
	"16:9": {1344, 768},
	"9:16": {768, 1344},
	"4:3":  {1184, 864},
	"3:4":  {864, 1184},
	"21:9": {1536, 640},
}

// HasPartialBodyMarker reports whether the free-text prompt asks for a
// cropped framing.
func HasPartialBodyMarker(prompt string) bool {
	lowered := strings.ToLower(prompt)
	for _, marker := range partialBodyMarkers {
		if strings.Contains(lowered, marker) {
			return true
		}
	}
	return false
}

// AspectRatioSize resolves an aspect ratio string to generation dimensions.
func AspectRatioSize(aspect string) (int, int) {
	if size, ok := aspectRatioSizes[strings.TrimSpace(aspect)]; ok {
		return size[0], size[1]
	}
	return 1024, 1024
}

// ScaledSize resolves the aspect ratio and scales the pair down so the
// larger side does not exceed limit, preserving the ratio.
func ScaledSize(aspect string, limit int) (int, int) {
	w, h := AspectRatioSize(aspect)
	longest := w
	if h > longest {
		longest = h
	}
	if limit <= 0 || longest <= limit {
		return w, h
	}
	return w * limit / longest, h * limit / longest
}

// ParseDimensions parses an explicit "WxH" dimension string.
func ParseDimensions(dims string) (int, int, bool) {
	var w, h int
	if _, err := fmt.Sscanf(strings.TrimSpace(dims), "%dx%d", &w, &h); err != nil {
		return 0, 0, false
	}
	if w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

// BuildPrompt turns the semantic request parameters into the instruction
// string sent to the image model. Pure and deterministic: the same request
// always produces byte-identical output, which makes it the safe fallback
// whenever prompt refinement fails.
func BuildPrompt(req domain.GenerationRequest) string {
	var parts []string

	if strings.EqualFold(strings.TrimSpace(req.Style), "vector") {
		parts = append(parts, vectorStylePreamble)
	} else {
		parts = append(parts, pixelStylePreamble)
	}

	switch req.Kind {
	case domain.KindScene:
		if scene := strings.TrimSpace(req.SceneType); scene != "" {
			parts = append(parts, fmt.Sprintf("Design a complete %s game scene background.", scene))
		} else {
			parts = append(parts, "Design a complete game scene background.")
		}
	default:
		if req.SpriteType == domain.SpriteTypeObject {
			parts = append(parts, "Design a single game object sprite on a plain background.")
		} else {
			parts = append(parts, "Design a single game character sprite on a plain background.")
			if !HasPartialBodyMarker(req.Prompt) {
				parts = append(parts, fullBodyClause)
			}
		}
	}

	if clause, ok := viewpointClauses[strings.TrimSpace(req.Viewpoint)]; ok {
		parts = append(parts, clause)
	}

	w, h := AspectRatioSize(req.AspectRatio)
	parts = append(parts, fmt.Sprintf("Target size: %dx%d pixels.", w, h))

	if len(req.Palette) > 0 {
		parts = append(parts, "Use only this color palette: "+strings.Join(req.Palette, ", ")+".")
	}

	if req.Kind == domain.KindSprite && strings.TrimSpace(req.Dimensions) != "" {
		parts = append(parts, fmt.Sprintf("The sprite must fit a %s pixel canvas.", strings.TrimSpace(req.Dimensions)))
	}

	if req.Kind == domain.KindDirectAnimation {
		if dir := strings.TrimSpace(req.AnimationDirection); dir != "" {
			parts = append(parts, fmt.Sprintf("Animate the character moving %s.", dir))
		}
		if view := strings.TrimSpace(req.AnimationView); view != "" {
			parts = append(parts, fmt.Sprintf("Use a %s camera view for every frame.", view))
		}
	}

	if prompt := req.Prompt; strings.TrimSpace(prompt) != "" {
		parts = append(parts, prompt)
	}

	parts = append(parts, qualitySuffix)

	return strings.Join(parts, " ")
}

// FramePrompt annotates one per-frame pose description with its 1-indexed
// position so the provider keeps frames consistent across the sequence.
func FramePrompt(base, description string, index, total int) string {
	frame := fmt.Sprintf("Frame %d of %d: %s.", index, total, strings.TrimSpace(description))
	if strings.TrimSpace(base) == "" {
		return frame
	}
	return base + " " + frame
}
