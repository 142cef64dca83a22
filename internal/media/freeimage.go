package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const freeimageEndpoint = "https://freeimage.host/api/1/upload"

// FreeImageUploader hosts images on the freeimage.host API. Useful when no S3
// bucket is configured; the hosted URL is all the oracle needs.
type FreeImageUploader struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewFreeImageUploader constructs the uploader. endpoint is overridable for tests.
func NewFreeImageUploader(apiKey, endpoint string, timeout time.Duration) *FreeImageUploader {
	if endpoint == "" {
		endpoint = freeimageEndpoint
	}
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &FreeImageUploader{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// Upload posts the image as multipart form data and returns the hosted URL.
func (u *FreeImageUploader) Upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	if strings.TrimSpace(u.apiKey) == "" {
		return UploadResult{}, ErrUploaderDisabled
	}
	if input.Body == nil {
		return UploadResult{}, fmt.Errorf("upload body is required")
	}

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	if err := form.WriteField("key", u.apiKey); err != nil {
		return UploadResult{}, fmt.Errorf("write form field: %w", err)
	}
	filename := input.Filename
	if filename == "" {
		filename = "upload.png"
	}
	part, err := form.CreateFormFile("source", filename)
	if err != nil {
		return UploadResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, input.Body); err != nil {
		return UploadResult{}, fmt.Errorf("copy upload body: %w", err)
	}
	if err := form.Close(); err != nil {
		return UploadResult{}, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint, &buf)
	if err != nil {
		return UploadResult{}, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := u.client.Do(req)
	if err != nil {
		return UploadResult{}, fmt.Errorf("freeimage upload: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return UploadResult{}, fmt.Errorf("freeimage status %d", resp.StatusCode)
	}

	var payload struct {
		Image struct {
			URL string `json:"url"`
		} `json:"image"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return UploadResult{}, fmt.Errorf("decode freeimage response: %w", err)
	}
	if payload.Image.URL == "" {
		return UploadResult{}, fmt.Errorf("freeimage response missing image URL")
	}

	return UploadResult{URL: payload.Image.URL}, nil
}
