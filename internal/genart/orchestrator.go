package genart

import (
	"context"
	"fmt"
	"strings"

	"spriteforge/internal/domain"
	"spriteforge/internal/infra"
	"spriteforge/internal/providers/gemini"
	"spriteforge/internal/providers/replicate"
)

const (
	// editModel is the pose/reference-guided image-edit model. Edit calls
	// always match the input image's aspect ratio and run with the safety
	// filter relaxed, otherwise stylized game art gets blocked.
	editModel = "black-forest-labs/flux-kontext-pro"

	// maxGenerationSide caps the derived generation size for sprites.
	maxGenerationSide = 384

	// maxQuantity caps how many images one call may request.
	maxQuantity = 4
)

// Orchestration stages, logged as the call advances.
const (
	stageRefining = "refining-prompt"
	stageGenerate = "generating"
	stageFetching = "fetching-outputs"
)

// PollingGateway is the long-running prediction capability (submit, poll to
// terminal, fetch binary outputs).
type PollingGateway interface {
	Run(ctx context.Context, model string, input map[string]any) ([]string, error)
	RunSync(ctx context.Context, model string, input map[string]any) ([]string, error)
	Download(ctx context.Context, url string) ([]byte, string, error)
}

// SyncGateway is the single-call image provider capability. Results arrive
// already embedded, no fetch step needed. reference is an optional guide
// image (URL or data URI), empty when the call is unguided.
type SyncGateway interface {
	GenerateImages(ctx context.Context, prompt string, quantity int, reference string) ([]domain.ImagePayload, error)
	HasCredentials() bool
}

// OrchestratorOptions wires the orchestrator's collaborators. NewPolling and
// NewSync exist so own-key requests get a gateway bound to the caller's
// credential; tests swap them for fakes.
type OrchestratorOptions struct {
	Config     *infra.Config
	Refiner    *Refiner
	Logger     infra.Logger
	NewPolling func(token string) PollingGateway
	NewSync    func(apiKey string) SyncGateway
}

// Orchestrator drives one generation call end to end: refine the prompt,
// pick a provider by the fallback policy, run the right gateway variant, and
// normalize the raw output into embedded image payloads.
type Orchestrator struct {
	cfg        *infra.Config
	refiner    *Refiner
	logger     infra.Logger
	newPolling func(token string) PollingGateway
	newSync    func(apiKey string) SyncGateway
}

// NewOrchestrator builds an orchestrator from options, filling in the real
// provider clients where no factory was supplied.
func NewOrchestrator(opts OrchestratorOptions) *Orchestrator {
	o := &Orchestrator{
		cfg:        opts.Config,
		refiner:    opts.Refiner,
		logger:     opts.Logger,
		newPolling: opts.NewPolling,
		newSync:    opts.NewSync,
	}
	if o.newPolling == nil {
		o.newPolling = DefaultPollingFactory(opts.Config, &o.logger)
	}
	if o.newSync == nil {
		o.newSync = func(apiKey string) SyncGateway {
			return gemini.NewClient(gemini.Options{
				APIKey:     apiKey,
				Model:      opts.Config.GeminiModel,
				ImageModel: opts.Config.GeminiImageModel,
				BaseURL:    opts.Config.GeminiBaseURL,
				Logger:     &o.logger,
			})
		}
	}
	return o
}

// DefaultPollingFactory returns the real Replicate-backed gateway factory
// used outside of tests.
func DefaultPollingFactory(cfg *infra.Config, logger *infra.Logger) func(token string) PollingGateway {
	return func(token string) PollingGateway {
		return replicate.NewClient(replicate.Options{
			APIToken: token,
			BaseURL:  cfg.ReplicateBaseURL,
			Logger:   logger,
		})
	}
}

// selectionRule is one entry of the priority-ordered provider policy. Rules
// are evaluated top to bottom; the first match handles the call.
type selectionRule struct {
	name     string
	provider string
	match    func(creds domain.ProviderCredentials) bool
	run      func(ctx context.Context, req domain.GenerationRequest, prompt string, quantity int) ([]domain.ImagePayload, error)
}

func (o *Orchestrator) rules(creds domain.ProviderCredentials) []selectionRule {
	return []selectionRule{
		{
			name:     "own-gemini",
			provider: "gemini",
			match: func(c domain.ProviderCredentials) bool {
				return c.OwnKey && c.Key != "" && strings.EqualFold(c.Provider, "gemini")
			},
			run: func(ctx context.Context, req domain.GenerationRequest, prompt string, quantity int) ([]domain.ImagePayload, error) {
				return o.runSync(ctx, o.newSync(creds.Key), req, prompt, quantity)
			},
		},
		{
			name:     "own-replicate",
			provider: "replicate",
			match: func(c domain.ProviderCredentials) bool {
				return c.OwnKey && c.Key != ""
			},
			run: func(ctx context.Context, req domain.GenerationRequest, prompt string, quantity int) ([]domain.ImagePayload, error) {
				return o.runPolling(ctx, o.newPolling(creds.Key), req, prompt, quantity)
			},
		},
		{
			name:     "platform-replicate",
			provider: "replicate",
			match: func(domain.ProviderCredentials) bool {
				return o.cfg.HasReplicate()
			},
			run: func(ctx context.Context, req domain.GenerationRequest, prompt string, quantity int) ([]domain.ImagePayload, error) {
				return o.runPolling(ctx, o.newPolling(o.cfg.ReplicateAPIToken), req, prompt, quantity)
			},
		},
		{
			name:     "platform-gemini",
			provider: "gemini",
			match: func(domain.ProviderCredentials) bool {
				return o.cfg.HasGemini()
			},
			run: func(ctx context.Context, req domain.GenerationRequest, prompt string, quantity int) ([]domain.ImagePayload, error) {
				return o.runSync(ctx, o.newSync(o.cfg.GeminiAPIKey), req, prompt, quantity)
			},
		},
	}
}

// Generate fulfils one generation request. It never raises across its
// boundary: every failure past validation lands in the result's Error field.
func (o *Orchestrator) Generate(ctx context.Context, req domain.GenerationRequest, creds domain.ProviderCredentials) domain.GenerationResult {
	if err := req.Validate(); err != nil {
		return failed("", err.Error())
	}

	rule, ok := o.selectRule(creds)
	if !ok {
		return failed("", domain.ErrNoCredential.Error())
	}

	o.logger.Debug().Str("stage", stageRefining).Str("rule", rule.name).Msg("genart: orchestration started")
	prompt := o.refiner.Refine(ctx, req)
	quantity := clampQuantity(req.Quantity)

	o.logger.Debug().Str("stage", stageGenerate).Str("provider", rule.provider).Msg("genart: invoking provider")

	if req.Kind == domain.KindAnimationFrames {
		frames, err := o.generateFrames(ctx, rule, req, prompt)
		if err != nil {
			o.logger.Error().Err(err).Str("provider", rule.provider).Msg("genart: frame generation failed")
			return failed(rule.provider, err.Error())
		}
		return domain.GenerationResult{Success: true, Frames: frames, Provider: rule.provider}
	}

	images, err := rule.run(ctx, req, prompt, quantity)
	if err != nil {
		o.logger.Error().Err(err).Str("provider", rule.provider).Msg("genart: generation failed")
		return failed(rule.provider, err.Error())
	}
	if len(images) == 0 {
		return failed(rule.provider, "provider returned no images")
	}
	return domain.GenerationResult{Success: true, Images: images, Provider: rule.provider}
}

func (o *Orchestrator) selectRule(creds domain.ProviderCredentials) (selectionRule, bool) {
	for _, rule := range o.rules(creds) {
		if rule.match(creds) {
			return rule, true
		}
	}
	return selectionRule{}, false
}

// generateFrames runs the frame-extension flow: one image per description,
// strictly in order, each prompt annotated with its position in the
// sequence. Output index i always corresponds to description index i.
func (o *Orchestrator) generateFrames(ctx context.Context, rule selectionRule, req domain.GenerationRequest, prompt string) ([]domain.ImagePayload, error) {
	total := len(req.FrameDescriptions)
	frames := make([]domain.ImagePayload, 0, total)
	for i, description := range req.FrameDescriptions {
		framePrompt := FramePrompt(prompt, description, i+1, total)
		images, err := rule.run(ctx, req, framePrompt, 1)
		if err != nil {
			return nil, fmt.Errorf("frame %d of %d: %w", i+1, total, err)
		}
		if len(images) == 0 {
			return nil, fmt.Errorf("frame %d of %d: provider returned no image", i+1, total)
		}
		frames = append(frames, images[0])
	}
	return frames, nil
}

// runPolling drives the Replicate gateway. A pose image (or the reference
// image in frame flows) routes to the synchronous image-edit variant;
// everything else goes through the standard text-to-image prediction.
func (o *Orchestrator) runPolling(ctx context.Context, gw PollingGateway, req domain.GenerationRequest, prompt string, quantity int) ([]domain.ImagePayload, error) {
	guide := guideImage(req)

	var (
		urls []string
		err  error
	)
	if guide != "" {
		input := map[string]any{
			"prompt":           prompt,
			"input_image":      guide,
			"aspect_ratio":     "match_input_image",
			"output_format":    "png",
			"safety_tolerance": 6,
		}
		urls, err = gw.RunSync(ctx, editModel, input)
	} else {
		width, height := o.targetSize(req)
		input := map[string]any{
			"prompt":      prompt,
			"width":       width,
			"height":      height,
			"num_outputs": quantity,
		}
		if req.Seed != nil {
			input["seed"] = *req.Seed
		}
		urls, err = gw.Run(ctx, o.cfg.ReplicateModel, input)
	}
	if err != nil {
		return nil, err
	}

	o.logger.Debug().Str("stage", stageFetching).Int("outputs", len(urls)).Msg("genart: fetching provider outputs")
	images := make([]domain.ImagePayload, 0, len(urls))
	for _, u := range urls {
		data, mime, err := gw.Download(ctx, u)
		if err != nil {
			return nil, err
		}
		images = append(images, domain.ImagePayload{Data: data, MimeType: mime})
	}
	if len(images) > quantity {
		images = images[:quantity]
	}
	return images, nil
}

func (o *Orchestrator) runSync(ctx context.Context, gw SyncGateway, req domain.GenerationRequest, prompt string, quantity int) ([]domain.ImagePayload, error) {
	return gw.GenerateImages(ctx, prompt, quantity, guideImage(req))
}

// guideImage picks the image steering the generation: an explicit pose
// wins over a style/character reference.
func guideImage(req domain.GenerationRequest) string {
	if guide := strings.TrimSpace(req.PoseImage); guide != "" {
		return guide
	}
	return strings.TrimSpace(req.ReferenceImage)
}

// targetSize resolves the generation dimensions: an explicit "WxH" wins,
// otherwise the aspect ratio table scaled so the larger side stays within
// the sprite cap.
func (o *Orchestrator) targetSize(req domain.GenerationRequest) (int, int) {
	if w, h, ok := ParseDimensions(req.Dimensions); ok {
		return w, h
	}
	return ScaledSize(req.AspectRatio, maxGenerationSide)
}

func clampQuantity(q int) int {
	if q < 1 {
		return 1
	}
	if q > maxQuantity {
		return maxQuantity
	}
	return q
}

func failed(provider, msg string) domain.GenerationResult {
	return domain.GenerationResult{Success: false, Provider: provider, Error: msg}
}
