package connectivity

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// HTTPProber checks reachability by polling the platform health endpoint.
// Any 2xx answer counts as online; transport errors and server errors
// count as offline.
type HTTPProber struct {
	Client *retryablehttp.Client
	URL    string
}

// NewHTTPProber creates a prober for baseURL+path with the given
// per-probe timeout.
func NewHTTPProber(baseURL, path string, timeout time.Duration) *HTTPProber {
	client := retryablehttp.NewClient()
	client.RetryMax = 1
	client.RetryWaitMin = 200 * time.Millisecond
	client.RetryWaitMax = 2 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil // Disable logging

	return &HTTPProber{
		Client: client,
		URL:    strings.TrimRight(baseURL, "/") + path,
	}
}

// Probe performs one reachability check.
func (p *HTTPProber) Probe(ctx context.Context) bool {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, p.URL, nil)
	if err != nil {
		return false
	}

	resp, err := p.Client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
