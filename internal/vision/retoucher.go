package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/imnotsalty/mlschatproto/internal/media"
)

// Retoucher cleans up user-attached listing photos before they are hosted and
// referenced in a design. Failure is always recoverable: callers fall back to
// the original bytes.
type Retoucher interface {
	Retouch(ctx context.Context, image []byte) (media.UploadResult, error)
}

const retouchPrompt = "Enhance this real-estate listing photo for marketing use: correct exposure and white balance, straighten verticals, keep the scene truthful. Do not add or remove objects."

// VertexRetoucher implements Retoucher on Vertex AI Imagen.
type VertexRetoucher struct {
	projectID string
	location  string
	model     string
	apiKey    string
	uploader  media.Uploader
}

// VertexConfig describes how to connect to Imagen.
type VertexConfig struct {
	ProjectID string
	Location  string
	Model     string
	APIKey    string
}

// NewVertexRetoucher wires the retoucher. Returns nil when the project is not
// configured, which disables retouching entirely.
func NewVertexRetoucher(cfg VertexConfig, uploader media.Uploader) *VertexRetoucher {
	if strings.TrimSpace(cfg.ProjectID) == "" || strings.TrimSpace(cfg.Location) == "" {
		return nil
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "imagegeneration@006"
	}
	return &VertexRetoucher{
		projectID: strings.TrimSpace(cfg.ProjectID),
		location:  strings.TrimSpace(cfg.Location),
		model:     model,
		apiKey:    strings.TrimSpace(cfg.APIKey),
		uploader:  uploader,
	}
}

// Retouch runs an Imagen edit over the photo and uploads the result.
func (v *VertexRetoucher) Retouch(ctx context.Context, image []byte) (media.UploadResult, error) {
	if v == nil || v.uploader == nil {
		return media.UploadResult{}, fmt.Errorf("vision: retoucher not configured")
	}
	if len(image) == 0 {
		return media.UploadResult{}, fmt.Errorf("vision: empty image")
	}

	instance, err := structpb.NewValue(map[string]any{
		"prompt": retouchPrompt,
		"image": map[string]any{
			"bytesBase64Encoded": base64.StdEncoding.EncodeToString(image),
		},
	})
	if err != nil {
		return media.UploadResult{}, err
	}

	params, err := structpb.NewValue(map[string]any{
		"sampleCount": 1,
		"editMode":    "inpainting-free-form",
	})
	if err != nil {
		return media.UploadResult{}, err
	}

	endpoint := fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", v.projectID, v.location, v.model)
	options := []option.ClientOption{option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", v.location))}
	if v.apiKey != "" {
		options = append(options, option.WithAPIKey(v.apiKey))
	}

	client, err := aiplatform.NewPredictionClient(ctx, options...)
	if err != nil {
		return media.UploadResult{}, fmt.Errorf("vision: prediction client: %w", err)
	}
	defer client.Close()

	resp, err := client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:   endpoint,
		Instances:  []*structpb.Value{instance},
		Parameters: params,
	})
	if err != nil {
		return media.UploadResult{}, fmt.Errorf("vision: predict: %w", err)
	}
	if len(resp.Predictions) == 0 {
		return media.UploadResult{}, fmt.Errorf("vision: empty prediction response")
	}

	field := resp.Predictions[0].GetStructValue().GetFields()["bytesBase64Encoded"]
	if field == nil {
		return media.UploadResult{}, fmt.Errorf("vision: prediction missing bytes")
	}
	data, err := base64.StdEncoding.DecodeString(field.GetStringValue())
	if err != nil {
		return media.UploadResult{}, fmt.Errorf("vision: decode result: %w", err)
	}

	result, err := v.uploader.Upload(ctx, media.UploadInput{
		Filename:    "retouched.png",
		ContentType: "image/png",
		Body:        bytes.NewReader(data),
		Size:        int64(len(data)),
	})
	if err != nil {
		return media.UploadResult{}, fmt.Errorf("vision: upload retouched photo: %w", err)
	}
	return result, nil
}
