package genart

import (
	"fmt"
	"strings"
	"testing"

	"spriteforge/internal/domain"
)

func TestBuildPromptAspectRatioTable(t *testing.T) {
	cases := map[string][2]int{
		"1:1":  {1024, 1024},
		"16:9": {1344, 768},
		"9:16": {768, 1344},
		"4:3":  {1184, 864},
		"3:4":  {864, 1184},
		"21:9": {1536, 640},
	}
	for aspect, size := range cases {
		prompt := BuildPrompt(domain.GenerationRequest{
			Kind:        domain.KindSprite,
			Prompt:      "a knight",
			AspectRatio: aspect,
		})
		want := fmt.Sprintf("Target size: %dx%d pixels.", size[0], size[1])
		if !strings.Contains(prompt, want) {
			t.Errorf("aspect %s: prompt missing %q", aspect, want)
		}
	}
}

func TestBuildPromptUnknownAspectRatioDefaults(t *testing.T) {
	for _, aspect := range []string{"", "5:4", "weird"} {
		prompt := BuildPrompt(domain.GenerationRequest{Kind: domain.KindSprite, Prompt: "a knight", AspectRatio: aspect})
		if !strings.Contains(prompt, "Target size: 1024x1024 pixels.") {
			t.Errorf("aspect %q: expected 1024x1024 default, got %q", aspect, prompt)
		}
	}
}

func TestBuildPromptPartialBodyMarkers(t *testing.T) {
	markers := []string{
		"half body", "half-body", "upper body", "above chest",
		"portrait", "bust", "headshot", "face only", "torso",
	}
	for _, marker := range markers {
		prompt := BuildPrompt(domain.GenerationRequest{
			Kind:       domain.KindSprite,
			SpriteType: domain.SpriteTypeCharacter,
			Prompt:     "a knight, " + strings.ToUpper(marker) + " shot",
		})
		if strings.Contains(prompt, fullBodyClause) {
			t.Errorf("marker %q: full-body clause should be suppressed", marker)
		}
	}
}

func TestBuildPromptFullBodyClausePresent(t *testing.T) {
	prompt := BuildPrompt(domain.GenerationRequest{
		Kind:       domain.KindSprite,
		SpriteType: domain.SpriteTypeCharacter,
		Prompt:     "a knight with a glowing sword",
	})
	if !strings.Contains(prompt, fullBodyClause) {
		t.Fatalf("expected full-body clause in %q", prompt)
	}
}

func TestBuildPromptObjectSpriteSkipsFullBody(t *testing.T) {
	prompt := BuildPrompt(domain.GenerationRequest{
		Kind:       domain.KindSprite,
		SpriteType: domain.SpriteTypeObject,
		Prompt:     "a treasure chest",
	})
	if strings.Contains(prompt, fullBodyClause) {
		t.Fatalf("object sprites must not carry the full-body clause")
	}
}

func TestBuildPromptDeterministic(t *testing.T) {
	req := domain.GenerationRequest{
		Kind:        domain.KindSprite,
		Prompt:      "a knight",
		Style:       "pixel_art",
		Viewpoint:   "side",
		Palette:     []string{"#ff0000", "#00ff00"},
		AspectRatio: "16:9",
		Dimensions:  "32x32",
	}
	first := BuildPrompt(req)
	for i := 0; i < 5; i++ {
		if got := BuildPrompt(req); got != first {
			t.Fatalf("prompt not deterministic:\n%q\n%q", first, got)
		}
	}
}

func TestBuildPromptComposition(t *testing.T) {
	req := domain.GenerationRequest{
		Kind:        domain.KindSprite,
		Prompt:      "a grumpy wizard",
		Style:       "vector",
		Viewpoint:   "isometric",
		Palette:     []string{"#112233", "#445566"},
		AspectRatio: "1:1",
		Dimensions:  "64x64",
	}
	prompt := BuildPrompt(req)
	for _, want := range []string{
		vectorStylePreamble,
		"isometric",
		"#112233, #445566",
		"64x64 pixel canvas",
		"a grumpy wizard",
		qualitySuffix,
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
	if strings.Contains(prompt, pixelStylePreamble) {
		t.Errorf("vector request must not use the pixel style preamble")
	}
}

func TestBuildPromptUnknownViewpointOmitted(t *testing.T) {
	prompt := BuildPrompt(domain.GenerationRequest{Kind: domain.KindSprite, Prompt: "a knight", Viewpoint: "dutch-angle"})
	if strings.Contains(prompt, "Viewed") {
		t.Fatalf("unknown viewpoint should add no clause: %q", prompt)
	}
}

func TestScaledSize(t *testing.T) {
	cases := []struct {
		aspect string
		w, h   int
	}{
		{"1:1", 384, 384},
		{"16:9", 384, 219},
		{"9:16", 219, 384},
		{"unknown", 384, 384},
	}
	for _, tc := range cases {
		w, h := ScaledSize(tc.aspect, 384)
		if w != tc.w || h != tc.h {
			t.Errorf("ScaledSize(%q) = %dx%d, want %dx%d", tc.aspect, w, h, tc.w, tc.h)
		}
		if w > 384 || h > 384 {
			t.Errorf("ScaledSize(%q) exceeds the cap", tc.aspect)
		}
	}
}

func TestParseDimensions(t *testing.T) {
	if w, h, ok := ParseDimensions("128x64"); !ok || w != 128 || h != 64 {
		t.Fatalf("ParseDimensions(128x64) = %d, %d, %t", w, h, ok)
	}
	for _, bad := range []string{"", "x", "0x10", "-1x5", "abc"} {
		if _, _, ok := ParseDimensions(bad); ok {
			t.Errorf("ParseDimensions(%q) should fail", bad)
		}
	}
}

func TestFramePrompt(t *testing.T) {
	got := FramePrompt("base prompt", "swinging the sword", 2, 3)
	if !strings.Contains(got, "Frame 2 of 3: swinging the sword.") {
		t.Fatalf("frame annotation missing: %q", got)
	}
	if !strings.HasPrefix(got, "base prompt") {
		t.Fatalf("base prompt should lead: %q", got)
	}
}
