package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const ipstackBaseURL = "http://api.ipstack.com"

// IPStack looks up countries through the ipstack.com HTTP API.
type IPStack struct {
	accessKey  string
	baseURL    string
	httpClient *http.Client
}

type ipstackResponse struct {
	CountryCode string `json:"country_code"`
	Success     *bool  `json:"success,omitempty"`
	Error       *struct {
		Code int    `json:"code"`
		Type string `json:"type"`
		Info string `json:"info"`
	} `json:"error,omitempty"`
}

// NewIPStack creates an ipstack resolver. A nil client gets a 5s timeout.
func NewIPStack(accessKey string, httpClient *http.Client) *IPStack {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	return &IPStack{
		accessKey:  accessKey,
		baseURL:    ipstackBaseURL,
		httpClient: httpClient,
	}
}

// WithBaseURL points the resolver at another host.
func (s *IPStack) WithBaseURL(baseURL string) *IPStack {
	s.baseURL = baseURL
	return s
}

// CountryCode returns the ISO country code for ip. An empty code with a nil
// error means ipstack knows the address but not its country.
func (s *IPStack) CountryCode(ctx context.Context, ip string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s?access_key=%s", s.baseURL, url.PathEscape(ip), url.QueryEscape(s.accessKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("ipstack: build request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ipstack: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("ipstack: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ipstack: status %d: %s", resp.StatusCode, string(body))
	}

	var parsed ipstackResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("ipstack: decode response: %w", err)
	}
	if parsed.Success != nil && !*parsed.Success {
		if parsed.Error != nil {
			return "", fmt.Errorf("ipstack: %s (%d): %s", parsed.Error.Type, parsed.Error.Code, parsed.Error.Info)
		}
		return "", fmt.Errorf("ipstack: lookup failed")
	}

	return parsed.CountryCode, nil
}
