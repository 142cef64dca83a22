package media

import (
	"context"
	"errors"
	"io"
)

// ErrUploaderDisabled indicates that image hosting is not configured. The
// conversation degrades gracefully: the image context is omitted and the
// text-only prompt continues.
var ErrUploaderDisabled = errors.New("media uploader disabled")

// UploadInput wraps the payload required for hosting a user-attached image.
type UploadInput struct {
	Filename    string
	ContentType string
	Body        io.Reader
	Size        int64
}

// UploadResult captures the stored object key and its publicly reachable URL.
// The URL is what gets handed to the oracle as image context, so it must be
// fetchable from outside the process.
type UploadResult struct {
	Key string
	URL string
}

// Uploader hides the backing implementation for hosting images.
type Uploader interface {
	Upload(ctx context.Context, input UploadInput) (UploadResult, error)
}

type disabledUploader struct{}

func (disabledUploader) Upload(_ context.Context, _ UploadInput) (UploadResult, error) {
	return UploadResult{}, ErrUploaderDisabled
}

// Disabled returns an uploader that always signals disabled uploads.
func Disabled() Uploader {
	return disabledUploader{}
}
