package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultModel is the only model the gateway generates with.
	DefaultModel = "black-forest-labs/FLUX.1-schnell"

	togetherBaseURL = "https://api.together.xyz/v1"
	heliconeBaseURL = "https://together.helicone.ai/v1"
)

// TogetherConfig configures a TogetherProvider.
type TogetherConfig struct {
	APIKey  string
	BaseURL string

	// HeliconeAPIKey routes calls through the Helicone proxy when set.
	HeliconeAPIKey string

	// Timeout of zero leaves the call unbounded.
	Timeout    time.Duration
	HTTPClient *http.Client
}

// TogetherProvider handles Together AI image generation requests
type TogetherProvider struct {
	apiKey     string
	baseURL    string
	headers    http.Header
	httpClient *http.Client
}

// NewTogetherProvider creates a new Together provider
func NewTogetherProvider(cfg TogetherConfig) *TogetherProvider {
	p := &TogetherProvider{
		apiKey:     cfg.APIKey,
		baseURL:    togetherBaseURL,
		headers:    http.Header{},
		httpClient: cfg.HTTPClient,
	}

	if cfg.HeliconeAPIKey != "" {
		p.baseURL = heliconeBaseURL
		p.headers.Set("Helicone-Auth", "Bearer "+cfg.HeliconeAPIKey)
	}
	if cfg.BaseURL != "" {
		p.baseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if p.httpClient == nil {
		p.httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	return p
}

// GenerateImage makes a single image generation request to Together
func (p *TogetherProvider) GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error) {
	startTime := time.Now()

	apiKey := p.apiKey
	if req.APIKey != "" {
		apiKey = req.APIKey
	}
	if req.Model == "" {
		req.Model = DefaultModel
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/images/generations", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	for k, v := range p.headers {
		httpReq.Header[k] = v
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+apiKey)

	httpResp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("Together API error: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, decodeError(httpResp.StatusCode, httpResp.Status, respBody)
	}

	var imageResp ImageResponse
	if err := json.Unmarshal(respBody, &imageResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	imageResp.LatencyMs = int(time.Since(startTime).Milliseconds())

	return &imageResp, nil
}

// decodeError turns an error body into the OpenAI-compatible error types.
// Together speaks the same error envelope as OpenAI.
func decodeError(statusCode int, status string, body []byte) error {
	var errResp openai.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != nil {
		errResp.Error.HTTPStatusCode = statusCode
		errResp.Error.HTTPStatus = status
		return errResp.Error
	}

	text := strings.TrimSpace(string(body))
	if text == "" {
		text = http.StatusText(statusCode)
	}
	return &openai.RequestError{
		HTTPStatus:     status,
		HTTPStatusCode: statusCode,
		Err:            errors.New(text),
	}
}

// GetProviderName returns the provider name
func (p *TogetherProvider) GetProviderName() string {
	return "together"
}
