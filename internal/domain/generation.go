package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// GenerationKind enumerates the supported generation flows.
type GenerationKind string

const (
	KindSprite          GenerationKind = "sprite"
	KindScene           GenerationKind = "scene"
	KindAnimationFrames GenerationKind = "animation_frames"
	KindDirectAnimation GenerationKind = "direct_animation"
	KindSpritesheet     GenerationKind = "spritesheet"
)

// SpriteType distinguishes character sprites from object sprites. Characters
// get the full-body framing clause; objects do not.
type SpriteType string

const (
	SpriteTypeCharacter SpriteType = "character"
	SpriteTypeObject    SpriteType = "object"
)

// GenerationRequest carries every caller-supplied parameter for one
// orchestration call. The request is transient: nothing here outlives the
// call that created it.
type GenerationRequest struct {
	Kind        GenerationKind
	Prompt      string
	Style       string // "pixel_art" or "vector"
	Viewpoint   string
	Palette     []string
	AspectRatio string
	Dimensions  string // explicit "WxH", overrides AspectRatio
	Quantity    int

	SpriteType SpriteType
	SceneType  string

	// ReferenceImage and PoseImage are URLs or data URIs. A pose image
	// routes the call to the image-edit gateway variant.
	ReferenceImage string
	PoseImage      string

	// Animation flows.
	FrameDescriptions  []string
	AnimationDirection string
	AnimationView      string
	Seed               *int
}

// Validate checks the request invariants that are the caller's
// responsibility. Provider and credential problems are not validation
// failures and are reported through GenerationResult instead.
func (r GenerationRequest) Validate() error {
	if r.Kind == KindAnimationFrames {
		if strings.TrimSpace(r.ReferenceImage) == "" {
			return fmt.Errorf("%w: animation frames require a character reference image", ErrInvalidRequest)
		}
		if len(r.FrameDescriptions) == 0 {
			return fmt.Errorf("%w: animation frames require at least one frame description", ErrInvalidRequest)
		}
		return nil
	}
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("%w: prompt must not be empty", ErrInvalidRequest)
	}
	return nil
}

// ProviderCredentials selects which backend is called and whose quota pays
// for it. OwnKey marks a caller-supplied (BYOK) credential, which exempts the
// call from platform credit deduction.
type ProviderCredentials struct {
	Key      string
	Provider string // explicit provider hint, e.g. "gemini" or "replicate"
	OwnKey   bool
}

// ImagePayload is an image fully held in memory, decoupled from whichever
// provider produced it.
type ImagePayload struct {
	Data     []byte
	MimeType string
}

// DataURI renders the payload as an embeddable data URI. Used as the
// fallback representation when durable persistence of one batch item fails.
func (p ImagePayload) DataURI() string {
	return "data:" + p.MimeType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// GenerationResult is the sole output contract of the orchestrator, uniform
// across every provider variant. Callers must check Success rather than rely
// on propagated failures.
type GenerationResult struct {
	Success  bool
	Images   []ImagePayload
	Frames   []ImagePayload
	Provider string
	Error    string
}

// AnimationPreset is one entry of the read-only spritesheet catalog.
type AnimationPreset struct {
	ID          string
	Name        string
	Description string
	Style       string
	FrameWidth  int
	FrameHeight int
	FrameCount  int
	Recommended bool
}

// Spritesheet layouts, classified from the frame count.
const (
	LayoutHorizontal = "horizontal"
	LayoutGrid       = "grid"
)

// SpritesheetResult reports one assembled sheet. The sheet arrives as an
// embedded payload so the caller can persist it; provider delivery URLs
// expire and must never leave the generation layer.
type SpritesheetResult struct {
	Success     bool
	Sheet       ImagePayload
	FrameCount  int
	FrameWidth  int
	FrameHeight int
	Layout      string
	Error       string
}
