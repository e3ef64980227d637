package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

// recordedRequest captures one API call for later assertions.
type recordedRequest struct {
	method string
	path   string
	header http.Header
	body   map[string]any
}

type apiRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (r *apiRecorder) record(req *http.Request) recordedRequest {
	rec := recordedRequest{method: req.Method, path: req.URL.Path, header: req.Header.Clone()}
	if req.Body != nil {
		var body map[string]any
		_ = json.NewDecoder(req.Body).Decode(&body)
		rec.body = body
	}
	r.mu.Lock()
	r.requests = append(r.requests, rec)
	r.mu.Unlock()
	return rec
}

func (r *apiRecorder) all() []recordedRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedRequest(nil), r.requests...)
}

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(Options{
		APIToken:     "test-token",
		BaseURL:      srv.URL,
		HTTPClient:   srv.Client(),
		PollInterval: time.Millisecond,
	})
	return client, srv
}

func writePrediction(w http.ResponseWriter, pred map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(pred)
}

func TestCreatePredictionEndpointRouting(t *testing.T) {
	cases := []struct {
		name        string
		model       string
		wantPath    string
		wantVersion string
	}{
		{"model scoped", "black-forest-labs/flux-schnell", "/models/black-forest-labs/flux-schnell/predictions", ""},
		{"pinned version", "fofr/sprite-sheet-maker:d33cf650", "/predictions", "d33cf650"},
		{"bare version hash", "a1b2c3d4", "/predictions", "a1b2c3d4"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := &apiRecorder{}
			client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				rec.record(r)
				writePrediction(w, map[string]any{"id": "p1", "status": "succeeded", "output": []string{"https://x/out.png"}})
			}))

			if _, err := client.Run(context.Background(), tc.model, map[string]any{"prompt": "x"}); err != nil {
				t.Fatalf("Run: %v", err)
			}

			got := rec.all()[0]
			if got.path != tc.wantPath {
				t.Errorf("path = %q, want %q", got.path, tc.wantPath)
			}
			if got.header.Get("Authorization") != "Bearer test-token" {
				t.Errorf("Authorization = %q", got.header.Get("Authorization"))
			}
			version, _ := got.body["version"].(string)
			if version != tc.wantVersion {
				t.Errorf("body version = %q, want %q", version, tc.wantVersion)
			}
			if _, ok := got.body["input"]; !ok {
				t.Errorf("body missing input")
			}
		})
	}
}

func TestRunPollsUntilTerminal(t *testing.T) {
	rec := &apiRecorder{}
	statuses := []string{StatusStarting, StatusProcessing, StatusSucceeded}
	var polls int

	mux := http.NewServeMux()
	var srvURL string
	mux.HandleFunc("/models/owner/model/predictions", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writePrediction(w, map[string]any{
			"id":     "p1",
			"status": StatusStarting,
			"urls":   map[string]string{"get": srvURL + "/predictions/p1"},
		})
	})
	mux.HandleFunc("/predictions/p1", func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		polls++
		status := statuses[len(statuses)-1]
		if polls < len(statuses) {
			status = statuses[polls]
		}
		pred := map[string]any{
			"id":     "p1",
			"status": status,
			"urls":   map[string]string{"get": srvURL + "/predictions/p1"},
		}
		if status == StatusSucceeded {
			pred["output"] = "https://cdn.example.com/out.png"
		}
		writePrediction(w, pred)
	})

	client, srv := testClient(t, mux)
	srvURL = srv.URL

	urls, err := client.Run(context.Background(), "owner/model", map[string]any{"prompt": "x"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(urls) != 1 || urls[0] != "https://cdn.example.com/out.png" {
		t.Fatalf("urls = %v", urls)
	}
	if polls != len(statuses)-1 {
		t.Fatalf("polls = %d, want %d (stop at first terminal status)", polls, len(statuses)-1)
	}
}

func TestRunFailedPredictionSurfacesProviderError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePrediction(w, map[string]any{"id": "p1", "status": StatusFailed, "error": "NSFW content detected"})
	}))

	_, err := client.Run(context.Background(), "owner/model", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "NSFW content detected") {
		t.Fatalf("err = %v", err)
	}
}

func TestRunCanceledPredictionWithoutMessage(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePrediction(w, map[string]any{"id": "p1", "status": StatusCanceled})
	}))

	_, err := client.Run(context.Background(), "owner/model", nil)
	if err == nil || !strings.Contains(err.Error(), StatusCanceled) {
		t.Fatalf("err = %v, want the terminal status named", err)
	}
}

func TestCreatePredictionHTTPFailure(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		fmt.Fprint(w, `{"detail":"insufficient credit"}`)
	}))

	_, err := client.Run(context.Background(), "owner/model", nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "402") || !strings.Contains(err.Error(), "insufficient credit") {
		t.Fatalf("err = %v, want status and body", err)
	}
}

func TestRunSyncSendsPreferWait(t *testing.T) {
	rec := &apiRecorder{}
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.record(r)
		writePrediction(w, map[string]any{"id": "p1", "status": StatusSucceeded, "output": "https://x/out.png"})
	}))

	if _, err := client.RunSync(context.Background(), "owner/model", nil); err != nil {
		t.Fatalf("RunSync: %v", err)
	}
	requests := rec.all()
	if len(requests) != 1 {
		t.Fatalf("requests = %d, want 1 (terminal response needs no poll)", len(requests))
	}
	if requests[0].header.Get("Prefer") != "wait" {
		t.Fatalf("Prefer header = %q", requests[0].header.Get("Prefer"))
	}
}

func TestRunContextCancelsPolling(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writePrediction(w, map[string]any{"id": "p1", "status": StatusProcessing})
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := client.Run(ctx, "owner/model", nil)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestRunWithoutToken(t *testing.T) {
	client := NewClient(Options{})
	if _, err := client.Run(context.Background(), "owner/model", nil); !errors.Is(err, ErrMissingAPIToken) {
		t.Fatalf("err = %v, want ErrMissingAPIToken", err)
	}
}

func TestOutputURLs(t *testing.T) {
	urls, err := outputURLs(json.RawMessage(`"https://x/a.png"`))
	if err != nil || len(urls) != 1 || urls[0] != "https://x/a.png" {
		t.Fatalf("single string: %v %v", urls, err)
	}

	urls, err = outputURLs(json.RawMessage(`["https://x/a.png","","https://x/b.png"]`))
	if err != nil || len(urls) != 2 || urls[1] != "https://x/b.png" {
		t.Fatalf("list: %v %v", urls, err)
	}

	if _, err = outputURLs(json.RawMessage(`{"not":"urls"}`)); err == nil {
		t.Fatalf("object output must be rejected")
	}

	urls, err = outputURLs(nil)
	if err != nil || urls != nil {
		t.Fatalf("empty output: %v %v", urls, err)
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/typed.png":
			w.Header().Set("Content-Type", "image/png")
		case "/untyped":
			w.Header().Set("Content-Type", "application/octet-stream")
		}
		_, _ = w.Write([]byte("image-bytes"))
	}))
	defer srv.Close()

	client := NewClient(Options{APIToken: "t", HTTPClient: srv.Client()})

	data, mime, err := client.Download(context.Background(), srv.URL+"/typed.png")
	if err != nil || string(data) != "image-bytes" || mime != "image/png" {
		t.Fatalf("typed download: %q %q %v", data, mime, err)
	}

	_, mime, err = client.Download(context.Background(), srv.URL+"/untyped")
	if err != nil || mime != "image/webp" {
		t.Fatalf("untyped download should fall back to webp, got %q %v", mime, err)
	}

	if _, _, err = client.Download(context.Background(), "not-a-url"); err == nil {
		t.Fatalf("relative url must be rejected")
	}
}
