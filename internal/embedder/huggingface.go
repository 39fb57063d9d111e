package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Compile-time interface check.
var _ Embedder = (*HuggingFace)(nil)

const (
	defaultHFModel   = "sentence-transformers/all-MiniLM-L6-v2"
	defaultHFDims    = 384
	hfInferenceBase  = "https://router.huggingface.co/hf-inference/models"
	embedHTTPTimeout = 30 * time.Second
)

// HuggingFace implements Embedder using the Hugging Face Inference API
// feature-extraction pipeline. Each call is a single bounded-timeout
// request; transient failures (network, timeout, rate limit, upstream
// 5xx) surface wrapped in ErrTransient and the caller decides whether
// to retry.
type HuggingFace struct {
	apiKey     string
	model      string
	dimensions int
	client     *http.Client
	baseURL    string // configurable for testing; defaults to the HF router
}

// NewHuggingFace creates a new Hugging Face embedding provider.
// model can be empty (defaults to all-MiniLM-L6-v2).
// dims can be 0 (defaults to 384, the MiniLM output width).
func NewHuggingFace(apiKey, model string, dims int) *HuggingFace {
	if model == "" {
		model = defaultHFModel
	}
	if dims <= 0 {
		dims = defaultHFDims
	}
	return &HuggingFace{
		apiKey:     apiKey,
		model:      model,
		dimensions: dims,
		client:     &http.Client{Timeout: embedHTTPTimeout},
		baseURL:    hfInferenceBase,
	}
}

func (h *HuggingFace) Name() string    { return "huggingface:" + h.model }
func (h *HuggingFace) Dimensions() int { return h.dimensions }

// embedURL returns the feature-extraction pipeline endpoint for the model.
func (h *HuggingFace) embedURL() string {
	return fmt.Sprintf("%s/%s/pipeline/feature-extraction", h.baseURL, h.model)
}

// Embed sends texts to the feature-extraction pipeline and returns one
// vector per input, in input order.
func (h *HuggingFace) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(hfEmbedRequest{Inputs: texts})
	if err != nil {
		return nil, fmt.Errorf("huggingface embed: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.embedURL(), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("huggingface embed: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	httpResp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: request failed: %v", ErrTransient, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrTransient, err)
	}

	switch {
	case httpResp.StatusCode == http.StatusOK:
		// fall through to decode
	case httpResp.StatusCode == http.StatusTooManyRequests || httpResp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: API error %d: %s", ErrTransient, httpResp.StatusCode, string(respBody))
	default:
		return nil, fmt.Errorf("huggingface embed: API error %d: %s", httpResp.StatusCode, string(respBody))
	}

	var vectors [][]float32
	if err := json.Unmarshal(respBody, &vectors); err != nil {
		return nil, fmt.Errorf("huggingface embed: unmarshal response: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("huggingface embed: got %d vectors for %d inputs", len(vectors), len(texts))
	}

	return vectors, nil
}

// hfEmbedRequest is the feature-extraction pipeline payload.
type hfEmbedRequest struct {
	Inputs []string `json:"inputs"`
}
