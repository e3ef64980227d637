// Package gemini wraps the Google generative language REST API for the two
// calls this service needs: single-shot image generation with inline image
// parts, and the text call behind the prompt refinement stage.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"spriteforge/internal/domain"
	"spriteforge/internal/infra"
)

// ErrMissingAPIKey indicates the client was configured without credentials.
var ErrMissingAPIKey = errors.New("gemini: api key is required")

const defaultTimeout = 60 * time.Second

// Options configures the Gemini client.
type Options struct {
	APIKey     string
	Model      string
	ImageModel string
	BaseURL    string
	HTTPClient *http.Client
	Logger     *infra.Logger
}

// Client performs generateContent calls against the REST API.
type Client struct {
	apiKey     string
	model      string
	imageModel string
	baseURL    string
	httpClient *http.Client
	logger     *infra.Logger
}

type generateContentRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type generationConfig struct {
	Temperature        float64  `json:"temperature,omitempty"`
	TopP               float64  `json:"topP,omitempty"`
	MaxOutputTokens    int      `json:"maxOutputTokens,omitempty"`
	CandidateCount     int      `json:"candidateCount,omitempty"`
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = "gemini-2.0-flash"
	}
	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = "gemini-2.5-flash-image"
	}
	var logger *infra.Logger
	if opts.Logger != nil {
		logger = opts.Logger
	} else {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		model:      model,
		imageModel: imageModel,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c != nil && c.apiKey != ""
}

// GenerateText performs the refinement call: a text-only generateContent
// request whose output parts are concatenated into one string.
func (c *Client) GenerateText(ctx context.Context, systemInstruction, prompt string) (string, error) {
	if !c.HasCredentials() {
		return "", ErrMissingAPIKey
	}
	req := generateContentRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: &generationConfig{
			Temperature:     0.7,
			TopP:            0.9,
			MaxOutputTokens: 1024,
			CandidateCount:  1,
		},
	}
	if strings.TrimSpace(systemInstruction) != "" {
		req.SystemInstruction = &content{Role: "user", Parts: []part{{Text: systemInstruction}}}
	}
	resp, err := c.generateContent(ctx, c.model, req)
	if err != nil {
		return "", err
	}
	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini: empty text response")
	}
	return text, nil
}

// GenerateImages produces quantity images for the prompt, one request per
// image, strictly sequential. Results arrive as inline base64 parts, already
// the embedded in-memory form the orchestrator hands downstream. A non-empty
// reference (URL or data URI) is embedded as an inline-data part so the
// model generates against the guide image.
func (c *Client) GenerateImages(ctx context.Context, prompt string, quantity int, reference string) ([]domain.ImagePayload, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIKey
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, errors.New("gemini: prompt is required")
	}
	if quantity <= 0 {
		quantity = 1
	}

	var refBlob *blob
	if strings.TrimSpace(reference) != "" {
		var err error
		refBlob, err = c.resolveReference(ctx, reference)
		if err != nil {
			return nil, err
		}
	}

	images := make([]domain.ImagePayload, 0, quantity)
	for i := 0; i < quantity; i++ {
		parts := []part{{Text: prompt}}
		if refBlob != nil {
			parts = append(parts, part{InlineData: refBlob})
		}
		req := generateContentRequest{
			Contents: []content{{Role: "user", Parts: parts}},
			GenerationConfig: &generationConfig{
				ResponseModalities: []string{"IMAGE", "TEXT"},
			},
		}
		resp, err := c.generateContent(ctx, c.imageModel, req)
		if err != nil {
			return nil, err
		}
		payloads := extractImages(resp)
		if len(payloads) == 0 {
			return nil, errors.New("gemini: response contained no image parts")
		}
		images = append(images, payloads[0])
	}
	return images, nil
}

// resolveReference turns a guide image into an inline blob. Data URIs are
// decoded in place; remote URLs are fetched and re-encoded.
func (c *Client) resolveReference(ctx context.Context, reference string) (*blob, error) {
	reference = strings.TrimSpace(reference)

	if strings.HasPrefix(reference, "data:") {
		rest := strings.TrimPrefix(reference, "data:")
		idx := strings.Index(rest, ";base64,")
		if idx < 0 {
			return nil, errors.New("gemini: reference data uri must be base64 encoded")
		}
		mime := rest[:idx]
		data := rest[idx+len(";base64,"):]
		if _, err := base64.StdEncoding.DecodeString(data); err != nil {
			return nil, fmt.Errorf("gemini: decode reference data uri: %w", err)
		}
		if mime == "" {
			mime = "image/png"
		}
		return &blob{MimeType: mime, Data: data}, nil
	}

	parsed, err := url.Parse(reference)
	if err != nil || parsed.Scheme == "" {
		return nil, fmt.Errorf("gemini: invalid reference image: %s", reference)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("gemini: build reference request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: fetch reference image: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("gemini: fetch reference image: status %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read reference image: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = "image/png"
	}
	return &blob{MimeType: mime, Data: base64.StdEncoding.EncodeToString(raw)}, nil
}

func (c *Client) generateContent(ctx context.Context, model string, payload generateContentRequest) (*generateContentResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("gemini: encode request: %w", err)
	}
	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini: http request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("gemini: read response: %w", err)
	}

	var decoded generateContentResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		if resp.StatusCode >= 300 {
			return nil, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
		}
		return nil, fmt.Errorf("gemini: decode response: %w", err)
	}
	if resp.StatusCode >= 300 {
		if decoded.Error != nil && decoded.Error.Message != "" {
			return nil, fmt.Errorf("gemini: %s (%d)", decoded.Error.Message, decoded.Error.Code)
		}
		return nil, fmt.Errorf("gemini: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	c.logger.Debug().
		Str("model", model).
		Int("candidates", len(decoded.Candidates)).
		Msg("gemini: generateContent ok")
	return &decoded, nil
}

func extractText(resp *generateContentResponse) string {
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}

func extractImages(resp *generateContentResponse) []domain.ImagePayload {
	var images []domain.ImagePayload
	for _, cand := range resp.Candidates {
		for _, p := range cand.Content.Parts {
			if p.InlineData == nil || p.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
			if err != nil {
				continue
			}
			mime := p.InlineData.MimeType
			if mime == "" {
				mime = "image/png"
			}
			images = append(images, domain.ImagePayload{Data: data, MimeType: mime})
		}
	}
	return images
}
