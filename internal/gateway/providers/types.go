package providers

import (
	"context"
	"encoding/json"
)

// ImageRequest represents an image generation request
type ImageRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Steps          int    `json:"steps"`
	ResponseFormat string `json:"response_format"`

	// APIKey overrides the provider's default credential for this call only.
	APIKey string `json:"-"`
}

// ImageResponse represents an image generation response. Data entries are
// kept as raw JSON so they can be handed back to callers untouched.
type ImageResponse struct {
	ID        string            `json:"id,omitempty"`
	Model     string            `json:"model,omitempty"`
	Object    string            `json:"object,omitempty"`
	Data      []json.RawMessage `json:"data"`
	LatencyMs int               `json:"-"`
}

// Provider is the interface image providers must implement
type Provider interface {
	GenerateImage(ctx context.Context, req ImageRequest) (*ImageResponse, error)
	GetProviderName() string
}
