// Package replicate implements the polling provider gateway against the
// Replicate predictions API: submit a job, poll its status URL until the
// prediction reaches a terminal state, and hand back the raw output URLs.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"spriteforge/internal/infra"
)

// ErrMissingAPIToken indicates the client was configured without credentials.
var ErrMissingAPIToken = errors.New("replicate: api token is required")

// Prediction statuses as reported by the API.
const (
	StatusStarting   = "starting"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusCanceled   = "canceled"
)

const defaultPollInterval = time.Second

// Options configures the Replicate client.
type Options struct {
	APIToken     string
	BaseURL      string
	HTTPClient   *http.Client
	Logger       *infra.Logger
	PollInterval time.Duration
}

// Client performs HTTP calls against the Replicate predictions API.
type Client struct {
	apiToken     string
	baseURL      string
	httpClient   *http.Client
	logger       *infra.Logger
	pollInterval time.Duration
}

// Prediction mirrors the job shape returned by the API. Output stays raw
// because the API returns either a single URL or an ordered list of URLs
// depending on the model.
type Prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

func (p *Prediction) terminal() bool {
	switch p.Status {
	case StatusSucceeded, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

// errorText extracts the provider-supplied error message, which the API
// reports as a JSON string or occasionally as a structured value.
func (p *Prediction) errorText() string {
	if len(p.Error) == 0 {
		return ""
	}
	var msg string
	if err := json.Unmarshal(p.Error, &msg); err == nil {
		return strings.TrimSpace(msg)
	}
	text := strings.TrimSpace(string(p.Error))
	if text == "null" {
		return ""
	}
	return text
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.replicate.com/v1"
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
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
		apiToken:     strings.TrimSpace(opts.APIToken),
		baseURL:      baseURL,
		httpClient:   httpClient,
		logger:       logger,
		pollInterval: interval,
	}
}

// HasCredentials reports whether the client can perform remote calls.
func (c *Client) HasCredentials() bool {
	return c != nil && c.apiToken != ""
}

// Run submits a prediction for the given model identifier and blocks until
// the prediction reaches a terminal state, returning the output URLs. The
// loop is bounded only by the provider eventually terminating the job; the
// caller's context is the sole way out of a hung prediction.
func (c *Client) Run(ctx context.Context, model string, input map[string]any) ([]string, error) {
	pred, err := c.createPrediction(ctx, model, input, false)
	if err != nil {
		return nil, err
	}
	return c.await(ctx, pred)
}

// RunSync submits a prediction asking the API to hold the connection until
// the job resolves. Used for image-edit models that typically complete
// within one request; falls back to polling when the response is not yet
// terminal.
func (c *Client) RunSync(ctx context.Context, model string, input map[string]any) ([]string, error) {
	pred, err := c.createPrediction(ctx, model, input, true)
	if err != nil {
		return nil, err
	}
	return c.await(ctx, pred)
}

func (c *Client) await(ctx context.Context, pred *Prediction) ([]string, error) {
	pred, err := c.wait(ctx, pred)
	if err != nil {
		return nil, err
	}
	if pred.Status != StatusSucceeded {
		msg := pred.errorText()
		if msg == "" {
			msg = fmt.Sprintf("prediction %s %s", pred.ID, pred.Status)
		}
		return nil, fmt.Errorf("replicate: %s", msg)
	}
	urls, err := outputURLs(pred.Output)
	if err != nil {
		return nil, err
	}
	if len(urls) == 0 {
		return nil, errors.New("replicate: prediction succeeded with empty output")
	}
	return urls, nil
}

// createPrediction selects the creation endpoint from the model identifier:
// "owner/name" goes to the model-scoped endpoint that resolves the latest
// version, while "owner/name:version" and bare version hashes go to the
// generic endpoint with the version embedded in the body.
func (c *Client) createPrediction(ctx context.Context, model string, input map[string]any, sync bool) (*Prediction, error) {
	if !c.HasCredentials() {
		return nil, ErrMissingAPIToken
	}
	model = strings.TrimSpace(model)
	if model == "" {
		return nil, errors.New("replicate: model identifier is required")
	}

	endpoint := c.baseURL + "/predictions"
	payload := map[string]any{"input": input}
	if idx := strings.LastIndex(model, ":"); idx >= 0 {
		payload["version"] = model[idx+1:]
	} else if strings.Contains(model, "/") {
		endpoint = fmt.Sprintf("%s/models/%s/predictions", c.baseURL, model)
	} else {
		payload["version"] = model
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("replicate: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)
	if sync {
		req.Header.Set("Prefer", "wait")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: create prediction: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("replicate: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("replicate: create prediction: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var pred Prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return nil, fmt.Errorf("replicate: decode prediction: %w", err)
	}
	c.logger.Debug().
		Str("prediction_id", pred.ID).
		Str("model", model).
		Str("status", pred.Status).
		Msg("replicate: prediction created")
	return &pred, nil
}

// wait polls the prediction's status URL until it is terminal.
func (c *Client) wait(ctx context.Context, pred *Prediction) (*Prediction, error) {
	for !pred.terminal() {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}

		next, err := c.getPrediction(ctx, pred.URLs.Get, pred.ID)
		if err != nil {
			return nil, err
		}
		pred = next
	}
	return pred, nil
}

func (c *Client) getPrediction(ctx context.Context, getURL, id string) (*Prediction, error) {
	if strings.TrimSpace(getURL) == "" {
		getURL = fmt.Sprintf("%s/predictions/%s", c.baseURL, id)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return nil, fmt.Errorf("replicate: build poll request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: poll prediction: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("replicate: read poll response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("replicate: poll prediction: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var pred Prediction
	if err := json.Unmarshal(raw, &pred); err != nil {
		return nil, fmt.Errorf("replicate: decode poll response: %w", err)
	}
	return &pred, nil
}

// Download fetches a generated image and returns its bytes plus the detected
// mime type. Replicate serves webp unless asked otherwise, so that is the
// fallback when the response carries no content type.
func (c *Client) Download(ctx context.Context, imageURL string) ([]byte, string, error) {
	parsed, err := url.Parse(strings.TrimSpace(imageURL))
	if err != nil || parsed.Scheme == "" {
		return nil, "", fmt.Errorf("replicate: invalid output url: %s", imageURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, parsed.String(), nil)
	if err != nil {
		return nil, "", fmt.Errorf("replicate: build download request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("replicate: download output: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("replicate: download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("replicate: read output: %w", err)
	}
	mime := resp.Header.Get("Content-Type")
	if mime == "" || !strings.HasPrefix(mime, "image/") {
		mime = "image/webp"
	}
	return data, mime, nil
}

// outputURLs normalizes the prediction output, which is either a single URL
// string or an ordered list of URL strings.
func outputURLs(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if strings.TrimSpace(single) == "" {
			return nil, nil
		}
		return []string{single}, nil
	}
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		out := make([]string, 0, len(many))
		for _, u := range many {
			if strings.TrimSpace(u) != "" {
				out = append(out, u)
			}
		}
		return out, nil
	}
	return nil, fmt.Errorf("replicate: unexpected output shape: %s", strings.TrimSpace(string(raw)))
}
