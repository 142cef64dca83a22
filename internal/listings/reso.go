package listings

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// Listing is one property record as returned by the RESO Web API. The shape is
// owned by the data source, so it is carried as opaque key/value data.
type Listing map[string]any

// Config describes how to reach and authenticate against the listings service.
// APIKey is used as a static bearer token; when TokenURL and client credentials
// are present an OAuth2 client-credentials flow is used instead.
type Config struct {
	Endpoint     string
	APIKey       string
	TokenURL     string
	ClientID     string
	ClientSecret string
}

// Client queries the RESO listings service.
type Client struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewClient constructs a listings client. With OAuth2 configuration the
// returned client refreshes tokens transparently via the oauth2 transport.
func NewClient(ctx context.Context, cfg Config, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.TokenURL != "" && cfg.ClientID != "" {
		creds := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		httpClient = creds.Client(ctx)
		httpClient.Timeout = timeout
	}

	return &Client{
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		client:   httpClient,
	}
}

// FetchByMLSID looks up a single property by MLS id. It returns nil when no
// property matches. Failures here are non-fatal to the conversation; the
// caller reports the miss and re-prompts. One attempt per call, no retries.
func (c *Client) FetchByMLSID(ctx context.Context, mlsID string) (Listing, error) {
	if c.endpoint == "" {
		return nil, fmt.Errorf("listings: endpoint not configured")
	}

	filter := url.QueryEscape(fmt.Sprintf("PropertyID eq '%s'", mlsID))
	queryURL := fmt.Sprintf("%s/Property?$filter=%s", c.endpoint, filter)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, fmt.Errorf("listings: build query: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("listings: query: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("listings: status %d for MLS %s", resp.StatusCode, mlsID)
	}

	var payload struct {
		Value []Listing `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("listings: decode response: %w", err)
	}

	if len(payload.Value) == 0 {
		return nil, nil
	}
	return payload.Value[0], nil
}
