package installer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// Packument is the registry metadata document for one package.
type Packument struct {
	Name     string                 `json:"name"`
	DistTags map[string]string      `json:"dist-tags"`
	Versions map[string]VersionMeta `json:"versions"`
}

// VersionMeta describes one published version of a package.
type VersionMeta struct {
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies"`
	Dist         Dist              `json:"dist"`
}

// Dist carries the artifact location for a version.
type Dist struct {
	Tarball string `json:"tarball"`
}

// Fetcher retrieves package metadata and artifacts. The HTTP implementation
// talks to an npm-style registry; tests substitute fakes.
type Fetcher interface {
	Packument(ctx context.Context, name string) (*Packument, error)
	Tarball(ctx context.Context, tarballURL string) (io.ReadCloser, error)
}

// HTTPFetcher fetches packuments and tarballs over HTTP with retries.
type HTTPFetcher struct {
	baseURL string
	client  *retryablehttp.Client
}

// NewHTTPFetcher creates a Fetcher against an npm-style registry base URL.
func NewHTTPFetcher(baseURL string, timeout time.Duration, retryMax int) *HTTPFetcher {
	client := retryablehttp.NewClient()
	client.RetryMax = retryMax
	client.RetryWaitMin = 1 * time.Second
	client.RetryWaitMax = 30 * time.Second
	client.HTTPClient.Timeout = timeout
	client.Logger = nil

	return &HTTPFetcher{baseURL: baseURL, client: client}
}

// Packument fetches the abbreviated metadata document for a package.
func (f *HTTPFetcher) Packument(ctx context.Context, name string) (*Packument, error) {
	// Scoped names encode their "/" so the whole name is one path segment.
	u := f.baseURL + "/" + url.PathEscape(name)

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating packument request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.npm.install-v1+json")
	req.Header.Set("User-Agent", "typedock-installer")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching packument for %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("package %s not found in registry", name)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("packument fetch for %s returned status %d", name, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading packument body: %w", err)
	}

	var p Packument
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("parsing packument for %s: %w", name, err)
	}
	return &p, nil
}

// Tarball opens the artifact stream for a version. The caller closes it.
func (f *HTTPFetcher) Tarball(ctx context.Context, tarballURL string) (io.ReadCloser, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, tarballURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating tarball request: %w", err)
	}
	req.Header.Set("User-Agent", "typedock-installer")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", tarballURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("tarball download returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
