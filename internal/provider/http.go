package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/yourusername/yuna-go/internal/domain"
)

const maxBodySize = 8 << 20

// httpClient is the shared plumbing of every provider: request spacing,
// user agent and error wrapping
type httpClient struct {
	name      string
	client    *http.Client
	spacer    *RequestSpacer
	userAgent string
}

func newHTTPClient(name string, timeout, spacing time.Duration, userAgent string) *httpClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if userAgent == "" {
		userAgent = domain.DefaultUserAgent
	}
	return &httpClient{
		name:      name,
		client:    &http.Client{Timeout: timeout},
		spacer:    NewRequestSpacer(spacing),
		userAgent: userAgent,
	}
}

func (c *httpClient) unavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrProviderUnavailable, c.name, fmt.Sprintf(format, args...))
}

// get fetches url and returns the body of a 2xx response
func (c *httpClient) get(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, c.unavailable("bad request url %q: %v", url, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	if err := c.spacer.Acquire(ctx); err != nil {
		return nil, c.unavailable("%v", err)
	}
	defer c.spacer.Release()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.unavailable("%v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, c.unavailable("reading %s: %v", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.unavailable("GET %s: status %d", url, resp.StatusCode)
	}
	return body, nil
}

func (c *httpClient) getJSON(ctx context.Context, url string, headers map[string]string, v interface{}) error {
	body, err := c.get(ctx, url, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return c.unavailable("decoding %s: %v", url, err)
	}
	return nil
}

func (c *httpClient) getDocument(ctx context.Context, url string, headers map[string]string) (*goquery.Document, error) {
	body, err := c.get(ctx, url, headers)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, c.unavailable("parsing %s: %v", url, err)
	}
	return doc, nil
}
