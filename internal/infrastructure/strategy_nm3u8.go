package infrastructure

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

// ToolNm3u8 is the strategy name reported in results
const ToolNm3u8 = "n_m3u8dl"

// Nm3u8Strategy downloads with N_m3u8DL-RE
type Nm3u8Strategy struct {
	locator *binaryLocator
}

// NewNm3u8Strategy creates the strategy; binary may be empty for auto-detection
func NewNm3u8Strategy(binary string) *Nm3u8Strategy {
	return &Nm3u8Strategy{
		locator: newBinaryLocator(binary, "N_m3u8DL-RE", "n-m3u8dl-re", "N_m3u8DL-RE.exe"),
	}
}

func (s *Nm3u8Strategy) Name() string { return ToolNm3u8 }

func (s *Nm3u8Strategy) Available() error {
	_, err := s.locator.Path()
	return err
}

// Attempt runs N_m3u8DL-RE and moves its muxed output to the destination
func (s *Nm3u8Strategy) Attempt(ctx context.Context, req *AttemptRequest) error {
	binary, err := s.locator.Path()
	if err != nil {
		return err
	}

	dir := filepath.Dir(req.Destination)
	stem := strings.TrimSuffix(filepath.Base(req.Destination), filepath.Ext(req.Destination))
	args := nm3u8Args(req, dir, stem)

	if req.Log != nil {
		fmt.Fprintf(req.Log, "$ %s\n", ShellEscapeCommand(binary, args...))
	}

	runCtx, cancel := withProcessTimeout(ctx, req.Options)
	defer cancel()

	err = runTool(runCtx, binary, args, req.Log, func(line string) {
		if pct, ok := parseNm3u8Progress(line); ok && req.OnProgress != nil {
			req.OnProgress(pct)
		}
	})
	if err != nil {
		return err
	}

	fs := req.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return adoptOutput(fs, dir, stem, req.Destination)
}

func nm3u8Args(req *AttemptRequest, dir, stem string) []string {
	opts := req.Options
	args := []string{
		req.URL,
		"--save-name", stem,
		"--save-dir", dir,
		"--auto-select",
		"--no-log",
		"--del-after-done",
		"--check-segments-count",
		"-M", "format=mp4",
	}
	if opts.ThreadCount > 0 {
		args = append(args, "--thread-count", strconv.Itoa(opts.ThreadCount), "-mt")
	}
	if opts.RetryCount > 0 {
		args = append(args, "--download-retry-count", strconv.Itoa(opts.RetryCount))
	}
	if opts.HTTPTimeout > 0 {
		args = append(args, "--http-request-timeout", strconv.Itoa(int(opts.HTTPTimeout.Seconds())))
	}
	if opts.MaxSpeed != "" {
		args = append(args, "-R", opts.MaxSpeed)
	}
	if req.WorkDir != "" {
		args = append(args, "--tmp-dir", req.WorkDir)
	}
	for _, k := range sortedKeys(opts.Headers) {
		args = append(args, "-H", k+": "+opts.Headers[k])
	}
	return args
}

// adoptOutput renames whatever container the tool produced for stem to dest.
// N_m3u8DL-RE falls back to .ts or .mkv when muxing to mp4 is not possible.
func adoptOutput(fs afero.Fs, dir, stem, dest string) error {
	if _, err := fs.Stat(dest); err == nil {
		return nil
	}
	for _, ext := range []string{".mp4", ".mkv", ".ts", ".m4a", ".webm"} {
		candidate := filepath.Join(dir, stem+ext)
		if candidate == dest {
			continue
		}
		if _, err := fs.Stat(candidate); err == nil {
			if err := fs.Rename(candidate, dest); err != nil {
				return fmt.Errorf("failed to move %s: %w", candidate, err)
			}
			return nil
		}
	}
	return fmt.Errorf("no output file produced for %s", stem)
}
