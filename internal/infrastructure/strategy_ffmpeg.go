package infrastructure

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ToolFFmpeg is the strategy name reported in results
const ToolFFmpeg = "ffmpeg"

// FFmpegStrategy remuxes the stream with ffmpeg. It has no thread count or
// speed limit, only headers and a network timeout.
type FFmpegStrategy struct {
	locator *binaryLocator
}

// NewFFmpegStrategy creates the strategy; binary may be empty for auto-detection
func NewFFmpegStrategy(binary string) *FFmpegStrategy {
	return &FFmpegStrategy{
		locator: newBinaryLocator(binary, "ffmpeg", "ffmpeg.exe"),
	}
}

func (s *FFmpegStrategy) Name() string { return ToolFFmpeg }

func (s *FFmpegStrategy) Available() error {
	_, err := s.locator.Path()
	return err
}

// Attempt runs ffmpeg writing straight to the destination
func (s *FFmpegStrategy) Attempt(ctx context.Context, req *AttemptRequest) error {
	binary, err := s.locator.Path()
	if err != nil {
		return err
	}

	args := ffmpegArgs(req)
	if req.Log != nil {
		fmt.Fprintf(req.Log, "$ %s\n", ShellEscapeCommand(binary, args...))
	}

	runCtx, cancel := withProcessTimeout(ctx, req.Options)
	defer cancel()

	return runTool(runCtx, binary, args, req.Log, func(line string) {
		if pct, ok := parseFFmpegProgress(line, defaultStreamDuration); ok && req.OnProgress != nil {
			req.OnProgress(pct)
		}
	})
}

func ffmpegArgs(req *AttemptRequest) []string {
	opts := req.Options
	var args []string

	if len(opts.Headers) > 0 {
		var b strings.Builder
		for _, k := range sortedKeys(opts.Headers) {
			b.WriteString(k + ": " + opts.Headers[k] + "\r\n")
		}
		args = append(args, "-headers", b.String())
	}
	if opts.HTTPTimeout > 0 {
		args = append(args, "-rw_timeout", strconv.FormatInt(opts.HTTPTimeout.Microseconds(), 10))
	}

	args = append(args,
		"-i", req.URL,
		"-c", "copy",
		"-bsf:a", "aac_adtstoasc",
		"-movflags", "+faststart",
		"-y",
		"-progress", "pipe:1",
		"-nostats",
		"-loglevel", "error",
		req.Destination,
	)
	return args
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
