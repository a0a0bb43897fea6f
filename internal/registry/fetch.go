package registry

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// FetchFunc retrieves the raw registry index document.
type FetchFunc func(ctx context.Context) ([]byte, error)

// newHTTPFetch returns a FetchFunc that downloads the index over HTTP with
// retries and exponential backoff.
func newHTTPFetch(indexURL string, timeout time.Duration, retryMax int) FetchFunc {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 30 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil // structured logging happens in the cache

	return func(ctx context.Context) ([]byte, error) {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, indexURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating index request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "typedock-registry")

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetching index: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("index fetch returned status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading index body: %w", err)
		}
		return body, nil
	}
}
