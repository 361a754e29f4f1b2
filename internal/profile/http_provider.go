package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultLookupTimeout = 10 * time.Second

// HTTPProvider fetches the profile from the hosted backend.
type HTTPProvider struct {
	baseURL string
	token   string
	client  *http.Client
}

// HTTPOption customises the HTTPProvider.
type HTTPOption func(*HTTPProvider)

// WithHTTPClient injects a custom http.Client, primarily for tests.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(p *HTTPProvider) {
		if client != nil {
			p.client = client
		}
	}
}

// WithBearerToken sets the backend session token forwarded on lookups.
func WithBearerToken(token string) HTTPOption {
	return func(p *HTTPProvider) {
		p.token = strings.TrimSpace(token)
	}
}

// NewHTTPProvider constructs a provider against the backend base URL.
func NewHTTPProvider(baseURL string, opts ...HTTPOption) (*HTTPProvider, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("profile: base url is required")
	}

	p := &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultLookupTimeout},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p, nil
}

// Lookup fetches the current profile record.
func (p *HTTPProvider) Lookup(ctx context.Context) (*Profile, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/profile", nil)
	if err != nil {
		return nil, fmt.Errorf("profile: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("profile: lookup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("profile: lookup: unexpected status %d", resp.StatusCode)
	}

	var out Profile
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("profile: decode response: %w", err)
	}
	return &out, nil
}
