package genart

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"spriteforge/internal/domain"
)

// presetOrder fixes the catalog listing order.
var presetOrder = []string{
	"four_angle_walking",
	"side_walk",
	"run_cycle",
	"idle_blink",
	"attack_swing",
	"jump_arc",
	"death_fall",
	"cast_spell",
}

// animationPresets is the static, read-only spritesheet catalog. Looked up
// by id; no lifecycle beyond process startup.
var animationPresets = map[string]domain.AnimationPreset{
	"four_angle_walking": {
		ID:          "four_angle_walking",
		Description: "4-direction walking cycle, four frames per facing",
		Style:       "pixel_art",
		FrameWidth:  48,
		FrameHeight: 48,
		FrameCount:  16,
		Recommended: true,
	},
	"side_walk": {
		ID:          "side_walk",
		Description: "Side-view walking cycle",
		Style:       "pixel_art",
		FrameWidth:  64,
		FrameHeight: 64,
		FrameCount:  8,
		Recommended: true,
	},
	"run_cycle": {
		ID:          "run_cycle",
		Description: "Side-view running cycle",
		Style:       "pixel_art",
		FrameWidth:  64,
		FrameHeight: 64,
		FrameCount:  8,
	},
	"idle_blink": {
		ID:          "idle_blink",
		Description: "Standing idle with a blink",
		Style:       "pixel_art",
		FrameWidth:  64,
		FrameHeight: 64,
		FrameCount:  4,
	},
	"attack_swing": {
		ID:          "attack_swing",
		Description: "Melee attack swing",
		Style:       "pixel_art",
		FrameWidth:  64,
		FrameHeight: 64,
		FrameCount:  6,
	},
	"jump_arc": {
		ID:          "jump_arc",
		Description: "Jump from crouch to landing",
		Style:       "pixel_art",
		FrameWidth:  64,
		FrameHeight: 64,
		FrameCount:  6,
	},
	"death_fall": {
		ID:          "death_fall",
		Description: "Defeat animation falling backwards",
		Style:       "pixel_art",
		FrameWidth:  64,
		FrameHeight: 64,
		FrameCount:  6,
	},
	"cast_spell": {
		ID:          "cast_spell",
		Description: "Two-handed spell cast with charge-up",
		Style:       "pixel_art",
		FrameWidth:  64,
		FrameHeight: 64,
		FrameCount:  10,
	},
}

var presetTitler = cases.Title(language.English)

// PresetByID looks up one catalog entry. The boolean is false for unknown
// ids; callers must treat that as a validation error, not a provider call.
func PresetByID(id string) (domain.AnimationPreset, bool) {
	preset, ok := animationPresets[strings.TrimSpace(id)]
	if !ok {
		return domain.AnimationPreset{}, false
	}
	preset.Name = presetName(preset)
	return preset, true
}

// Presets returns the catalog in its fixed listing order.
func Presets() []domain.AnimationPreset {
	out := make([]domain.AnimationPreset, 0, len(presetOrder))
	for _, id := range presetOrder {
		if preset, ok := PresetByID(id); ok {
			out = append(out, preset)
		}
	}
	return out
}

func presetName(preset domain.AnimationPreset) string {
	if preset.Name != "" {
		return preset.Name
	}
	return presetTitler.String(strings.ReplaceAll(preset.ID, "_", " "))
}
