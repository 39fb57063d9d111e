package ai

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
var _ Provider = (*HuggingFace)(nil)

const (
	defaultGenModel = "microsoft/DialoGPT-small"
	hfRouterBase    = "https://router.huggingface.co/hf-inference/models"
	genHTTPTimeout  = 30 * time.Second
)

// HuggingFace calls a hosted model through the Hugging Face Inference
// API. One bounded-timeout request per call, no retry.
type HuggingFace struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string // configurable for testing; defaults to the HF router
}

// NewHuggingFace creates a generation provider for the given model.
// model can be empty (defaults to DialoGPT-small, the reference model).
func NewHuggingFace(apiKey, model string) *HuggingFace {
	if model == "" {
		model = defaultGenModel
	}
	return &HuggingFace{
		apiKey:  apiKey,
		model:   model,
		client:  &http.Client{Timeout: genHTTPTimeout},
		baseURL: hfRouterBase,
	}
}

func (h *HuggingFace) Name() string { return "huggingface:" + h.model }

// Generate sends the prompt to the inference endpoint and decodes the
// model's reply.
func (h *HuggingFace) Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error) {
	payload := hfGenRequest{Inputs: req.Prompt}
	if req.MaxNewTokens > 0 {
		payload.Parameters = &hfGenParameters{
			MaxNewTokens: req.MaxNewTokens,
			Temperature:  req.Temperature,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("huggingface generate: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		h.baseURL+"/"+h.model, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("huggingface generate: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if h.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.apiKey)
	}

	httpResp, err := h.client.Do(httpReq)
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
		return nil, fmt.Errorf("huggingface generate: API error %d: %s", httpResp.StatusCode, string(respBody))
	}

	reply := decodeReply(respBody)
	switch reply.Shape {
	case TextList, TextObject:
		return &GenerateResponse{Text: reply.Text}, nil
	case ErrorObject:
		return nil, fmt.Errorf("huggingface generate: model error: %s", reply.ErrMsg)
	default:
		return nil, fmt.Errorf("huggingface generate: unrecognized reply shape: %s", truncate(string(respBody), 200))
	}
}

// ReplyShape identifies which of the inference API's loosely-typed
// reply forms was received.
type ReplyShape int

const (
	// TextList is a JSON array of objects with generated_text.
	TextList ReplyShape = iota
	// TextObject is a single JSON object with generated_text.
	TextObject
	// ErrorObject is a JSON object with an error field.
	ErrorObject
	// Unrecognized is anything else.
	Unrecognized
)

// Reply is the decoded form of an inference API response body.
type Reply struct {
	Shape  ReplyShape
	Text   string
	ErrMsg string
}

// decodeReply classifies a raw inference response into one of the
// known shapes. The API returns either a list of generations, a single
// generation object, or an error object depending on model and
// deployment.
func decodeReply(data []byte) Reply {
	var list []struct {
		GeneratedText string `json:"generated_text"`
	}
	if err := json.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return Reply{Shape: TextList, Text: list[0].GeneratedText}
	}

	var obj struct {
		GeneratedText *string `json:"generated_text"`
		Error         *string `json:"error"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		if obj.GeneratedText != nil {
			return Reply{Shape: TextObject, Text: *obj.GeneratedText}
		}
		if obj.Error != nil {
			return Reply{Shape: ErrorObject, ErrMsg: *obj.Error}
		}
	}

	return Reply{Shape: Unrecognized}
}

// hfGenRequest is the inference API generation payload.
type hfGenRequest struct {
	Inputs     string           `json:"inputs"`
	Parameters *hfGenParameters `json:"parameters,omitempty"`
}

type hfGenParameters struct {
	MaxNewTokens int     `json:"max_new_tokens,omitempty"`
	Temperature  float64 `json:"temperature,omitempty"`
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
