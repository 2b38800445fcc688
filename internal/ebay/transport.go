package ebay

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/guarzo/repricer/internal/ratelimit"
)

// transport is the rate-limited HTTP client shared by the gateway's
// API calls. It advertises and decodes compressed responses.
type transport struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
}

func newTransport(timeout time.Duration, limiter *ratelimit.Limiter) *transport {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &transport{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
	}
}

// do executes the request after the limiter admits it and returns the
// decompressed body.
func (t *transport) do(ctx context.Context, req *http.Request) ([]byte, int, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := t.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	switch resp.Header.Get("Content-Encoding") {
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, resp.StatusCode, fmt.Errorf("gzip reader: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// APIError is a structured marketplace API failure.
type APIError struct {
	Code    string
	Message string
	Raw     string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("ebay api error %s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("ebay api error: %s", e.Message)
}

// IsTimeout reports whether the error came from a deadline or a
// network timeout. The orchestrator uses this to tag the history
// record's detail.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
