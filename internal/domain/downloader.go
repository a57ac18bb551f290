package domain

import (
	"context"
	"time"
)

// DownloadOptions tune a single download call
type DownloadOptions struct {
	ThreadCount    int
	RetryCount     int
	HTTPTimeout    time.Duration
	ProcessTimeout time.Duration
	MaxSpeed       string // e.g. "15M", empty for unlimited
	Headers        map[string]string
	TempDir        string
}

// ProgressFunc receives download progress as a percentage in [0,100]
type ProgressFunc func(pct float64)

// Downloader fetches a stream into a destination file
type Downloader interface {
	Download(ctx context.Context, streamURL, destination string, opts DownloadOptions, onProgress ProgressFunc) *DownloadResult
}

// DownloadResult represents the result of a download operation
type DownloadResult struct {
	Success bool
	Path    string
	Bytes   int64
	Tool    string
	Err     error
}
