package infrastructure

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yourusername/yuna-go/internal/domain"
)

// JellyfinClient asks a Jellyfin server to rescan its libraries
type JellyfinClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewJellyfinClient creates a client for the configured server
func NewJellyfinClient(cfg domain.JellyfinConfig) *JellyfinClient {
	return &JellyfinClient{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// Refresh triggers a full library refresh
func (c *JellyfinClient) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/Library/Refresh", nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-Emby-Token", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("jellyfin refresh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("jellyfin refresh: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

// NoopRefresher is used when no media server is configured
type NoopRefresher struct{}

func (NoopRefresher) Refresh(context.Context) error { return nil }

// NewLibraryRefresher returns a Jellyfin client when configured, a no-op otherwise
func NewLibraryRefresher(cfg domain.JellyfinConfig) domain.LibraryRefresher {
	if !cfg.Enabled() {
		return NoopRefresher{}
	}
	return NewJellyfinClient(cfg)
}
