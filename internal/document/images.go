package document

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"
)

// ImageSource fetches item images. imageType is one of "PNG", "JPG", "GIF".
type ImageSource interface {
	Fetch(ctx context.Context, url string) (data []byte, imageType string, err error)
}

// ErrImageTooLarge is returned for images above the source's size limit
var ErrImageTooLarge = errors.New("image too large")

// HTTPImageSource downloads images over HTTP
type HTTPImageSource struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPImageSource creates an image source with a per-request timeout
func NewHTTPImageSource(timeout time.Duration) *HTTPImageSource {
	return &HTTPImageSource{
		client:   &http.Client{Timeout: timeout},
		maxBytes: 5 << 20,
	}
}

// Fetch downloads url
func (s *HTTPImageSource) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	imageType := imageTypeOf(resp.Header.Get("Content-Type"), url)
	if imageType == "" {
		return nil, "", fmt.Errorf("unsupported image type for %s", url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > s.maxBytes {
		return nil, "", fmt.Errorf("%w: %s exceeds %d bytes", ErrImageTooLarge, url, s.maxBytes)
	}
	return data, imageType, nil
}

func imageTypeOf(contentType, url string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return "PNG"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return "JPG"
	case strings.Contains(contentType, "gif"):
		return "GIF"
	}

	switch strings.ToLower(path.Ext(strings.SplitN(url, "?", 2)[0])) {
	case ".png":
		return "PNG"
	case ".jpg", ".jpeg":
		return "JPG"
	case ".gif":
		return "GIF"
	}
	return ""
}
