package device

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/smartport-kiosk/smartport/internal/smartport/types"
)

// HTTPCapturer asks an external face-embedding service for one capture.
// The service grabs a camera frame and answers
//
//	200 {"embedding": [..]}   face found
//	422 / 404 or empty vector  no face in frame
type HTTPCapturer struct {
	url    string
	client *http.Client
}

func NewHTTPCapturer(url string, timeout time.Duration) *HTTPCapturer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPCapturer{url: url, client: &http.Client{Timeout: timeout}}
}

type captureResponse struct {
	Embedding []float64 `json:"embedding"`
	Error     string    `json:"error,omitempty"`
}

func (c *HTTPCapturer) Capture(ctx context.Context) (types.Embedding, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("capture request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("capture: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnprocessableEntity, http.StatusNotFound:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, ErrNoFace
	default:
		return nil, fmt.Errorf("capture: unexpected status %d", resp.StatusCode)
	}

	var body captureResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return nil, fmt.Errorf("capture decode: %w", err)
	}
	if len(body.Embedding) == 0 {
		return nil, ErrNoFace
	}
	return types.Embedding(body.Embedding), nil
}
