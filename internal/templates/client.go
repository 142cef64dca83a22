package templates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultBaseURL = "https://api.bannerbear.com/v2"

// ErrMissingAPIKey signals that the template service cannot be reached at all.
// There is no degraded mode: every downstream decision needs full layer data,
// so callers treat this as fatal at startup.
var ErrMissingAPIKey = errors.New("templates: missing API key")

// Client talks to the template service and caches the loaded catalog for the
// lifetime of the process.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client

	once    sync.Once
	catalog Catalog
	loadErr error
}

// NewClient constructs a template service client.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// LoadCatalog fetches the template summary list and then full layer detail per
// template. The result is cached; subsequent calls return the same catalog
// until the process restarts.
func (c *Client) LoadCatalog(ctx context.Context) (Catalog, error) {
	c.once.Do(func() {
		c.catalog, c.loadErr = c.fetchCatalog(ctx)
	})
	return c.catalog, c.loadErr
}

func (c *Client) fetchCatalog(ctx context.Context) (Catalog, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	var summaries []struct {
		UID string `json:"uid"`
	}
	if err := c.getJSON(ctx, "/templates", &summaries); err != nil {
		return nil, fmt.Errorf("templates: load summary: %w", err)
	}

	catalog := make(Catalog, 0, len(summaries))
	for _, summary := range summaries {
		if summary.UID == "" {
			continue
		}
		var tmpl Template
		if err := c.getJSON(ctx, "/templates/"+summary.UID, &tmpl); err != nil {
			return nil, fmt.Errorf("templates: load detail %s: %w", summary.UID, err)
		}
		catalog = append(catalog, tmpl)
	}

	if len(catalog) == 0 {
		return nil, errors.New("templates: service returned an empty catalog")
	}
	return catalog, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d from %s", resp.StatusCode, path)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
