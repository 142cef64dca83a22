package render

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/imnotsalty/mlschatproto/internal/design"
)

const defaultBaseURL = "https://api.bannerbear.com/v2"

// Submission rejections and rendering failures surface to the user through
// different messages and are logged distinctly, so they get distinct
// sentinels.
var (
	ErrSubmitFailed = errors.New("render: failed to start image generation")
	ErrRenderFailed = errors.New("render: rendering did not complete")
)

// Renderer submits a design and returns the finished image URL.
type Renderer interface {
	Render(ctx context.Context, templateUID string, mods []design.Modification) (string, error)
}

// Client drives the image-rendering service: one create call, then a bounded
// polling loop against the status endpoint.
type Client struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	maxPolls     int
}

// NewClient constructs a render client with the default polling policy.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		apiKey:       apiKey,
		baseURL:      strings.TrimSuffix(baseURL, "/"),
		client:       &http.Client{Timeout: timeout},
		pollInterval: time.Second,
		maxPolls:     20,
	}
}

type imageJob struct {
	UID         string `json:"uid"`
	Status      string `json:"status"`
	ImageURLPNG string `json:"image_url_png"`
}

// Render submits the template and modifications, then polls until the image
// is ready. Exceeding the polling budget is a terminal failure for this
// request; the caller keeps the design context so the user can retry.
func (c *Client) Render(ctx context.Context, templateUID string, mods []design.Modification) (string, error) {
	job, err := c.createImage(ctx, templateUID, mods)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSubmitFailed, err)
	}

	for attempt := 0; attempt < c.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrRenderFailed, ctx.Err())
		case <-time.After(c.pollInterval):
		}

		status, err := c.getImage(ctx, job.UID)
		if err != nil {
			continue
		}
		switch status.Status {
		case "completed":
			if status.ImageURLPNG == "" {
				return "", fmt.Errorf("%w: completed without an image URL", ErrRenderFailed)
			}
			return status.ImageURLPNG, nil
		case "failed":
			return "", fmt.Errorf("%w: job %s reported failure", ErrRenderFailed, job.UID)
		}
	}
	return "", fmt.Errorf("%w: job %s timed out after %d polls", ErrRenderFailed, job.UID, c.maxPolls)
}

func (c *Client) createImage(ctx context.Context, templateUID string, mods []design.Modification) (imageJob, error) {
	payload, err := json.Marshal(map[string]any{
		"template":      templateUID,
		"modifications": mods,
	})
	if err != nil {
		return imageJob{}, fmt.Errorf("marshal create payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/images", bytes.NewReader(payload))
	if err != nil {
		return imageJob{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return imageJob{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return imageJob{}, fmt.Errorf("status %d creating image", resp.StatusCode)
	}

	var job imageJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return imageJob{}, fmt.Errorf("decode create response: %w", err)
	}
	if job.UID == "" {
		return imageJob{}, errors.New("create response missing job uid")
	}
	return job, nil
}

func (c *Client) getImage(ctx context.Context, uid string) (imageJob, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/images/"+uid, nil)
	if err != nil {
		return imageJob{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return imageJob{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return imageJob{}, fmt.Errorf("status %d polling image %s", resp.StatusCode, uid)
	}

	var job imageJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return imageJob{}, fmt.Errorf("decode poll response: %w", err)
	}
	return job, nil
}
