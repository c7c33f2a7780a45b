package separation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultHTTPTimeout bounds a single request when the client has no timeout of its own.
var DefaultHTTPTimeout = 60 * time.Second

// HTTP posts the source image to a remote removal service and returns the
// response body as the cutout.
type HTTP struct {
	URL         string
	ContentType string // defaults to application/octet-stream
	Header      http.Header
	Client      *http.Client
}

func (h HTTP) Separate(ctx context.Context, src []byte) ([]byte, error) {
	if h.URL == "" {
		return nil, fmt.Errorf("separation: service URL is empty")
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	if client.Timeout == 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultHTTPTimeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	for k, vs := range h.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	ct := h.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Accept", "image/png")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("POST %s: %s (%d)", h.URL, string(b), resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
