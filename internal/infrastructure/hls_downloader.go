package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"
	"github.com/yourusername/yuna-go/internal/domain"
	"go.uber.org/zap"
)

// ToolExisting marks a result satisfied by a file already on disk
const ToolExisting = "existing"

// HLSDownloader implements domain.Downloader by trying an ordered list of
// external tools and returning the first success or the last failure.
// The tools write through the OS, so with the built-in strategies fs must
// resolve paths the same way the OS does (afero.NewOsFs).
type HLSDownloader struct {
	strategies []DownloadStrategy
	fs         afero.Fs
	logsDir    string
	logger     *zap.Logger
}

// NewHLSDownloader creates a downloader over explicit strategies
func NewHLSDownloader(fs afero.Fs, logsDir string, logger *zap.Logger, strategies ...DownloadStrategy) *HLSDownloader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HLSDownloader{
		strategies: strategies,
		fs:         fs,
		logsDir:    logsDir,
		logger:     logger,
	}
}

// NewHLSDownloaderFromConfig builds the strategy list from configuration:
// N_m3u8DL-RE then ffmpeg when preferred, ffmpeg alone otherwise
func NewHLSDownloaderFromConfig(cfg domain.DownloaderConfig, fs afero.Fs, logsDir string, logger *zap.Logger) *HLSDownloader {
	var strategies []DownloadStrategy
	if cfg.PreferNm3u8 {
		strategies = append(strategies, NewNm3u8Strategy(cfg.Nm3u8Binary))
	}
	strategies = append(strategies, NewFFmpegStrategy(cfg.FFmpegBinary))
	return NewHLSDownloader(fs, logsDir, logger, strategies...)
}

// Strategies returns the tool names in attempt order
func (d *HLSDownloader) Strategies() []string {
	names := make([]string, 0, len(d.strategies))
	for _, s := range d.strategies {
		names = append(names, s.Name())
	}
	return names
}

// Download fetches streamURL into destination. A success always means a
// non-empty file at destination. Failed attempts leave no partial file.
func (d *HLSDownloader) Download(ctx context.Context, streamURL, destination string, opts domain.DownloadOptions, onProgress domain.ProgressFunc) *domain.DownloadResult {
	if onProgress == nil {
		onProgress = func(float64) {}
	}

	if size, ok := d.fileSize(destination); ok {
		if size > 0 {
			d.logger.Info("Destination already present, skipping download",
				zap.String("destination", destination),
				zap.Int64("bytes", size))
			onProgress(100)
			return &domain.DownloadResult{Success: true, Path: destination, Bytes: size, Tool: ToolExisting}
		}
		// leftover from a crashed attempt
		if err := d.fs.Remove(destination); err != nil {
			return d.failed(fmt.Errorf("failed to remove empty file: %w", err))
		}
	}

	if err := d.fs.MkdirAll(filepath.Dir(destination), 0755); err != nil {
		return d.failed(fmt.Errorf("failed to create destination directory: %w", err))
	}

	logFile, err := d.openLogFile()
	if err != nil {
		d.logger.Warn("Failed to open download log", zap.Error(err))
	}
	var log io.Writer = io.Discard
	if logFile != nil {
		defer logFile.Close()
		log = logFile
	}
	d.writeLogHeader(log, destination, streamURL)

	var lastErr error
	for i, strategy := range d.strategies {
		if err := ctx.Err(); err != nil {
			lastErr = err
			break
		}

		if err := strategy.Available(); err != nil {
			d.logger.Warn("Download tool unavailable",
				zap.String("tool", strategy.Name()),
				zap.Error(err))
			fmt.Fprintf(log, "[%s] unavailable: %v\n", strategy.Name(), err)
			lastErr = err
			continue
		}

		if i > 0 {
			d.logger.Info("Falling back to next download tool",
				zap.String("tool", strategy.Name()),
				zap.String("destination", destination))
		}

		workDir := d.workDir(destination, strategy.Name(), opts.TempDir)
		started := time.Now()
		err := strategy.Attempt(ctx, &AttemptRequest{
			URL:         streamURL,
			Destination: destination,
			WorkDir:     workDir,
			Options:     opts,
			OnProgress:  onProgress,
			Log:         log,
			Fs:          d.fs,
		})
		d.fs.RemoveAll(workDir)

		if err == nil {
			size, verr := d.verifyOutput(destination)
			if verr == nil {
				d.writeLogFooter(log, true, fmt.Sprintf("%s wrote %d bytes", strategy.Name(), size))
				d.logger.Info("Download finished",
					zap.String("tool", strategy.Name()),
					zap.String("destination", destination),
					zap.Int64("bytes", size),
					zap.Duration("duration", time.Since(started)))
				onProgress(100)
				return &domain.DownloadResult{Success: true, Path: destination, Bytes: size, Tool: strategy.Name()}
			}
			err = verr
		}

		lastErr = err
		fmt.Fprintf(log, "[%s] failed: %v\n", strategy.Name(), err)
		d.logger.Warn("Download attempt failed",
			zap.String("tool", strategy.Name()),
			zap.String("destination", destination),
			zap.Error(err))
		d.removePartial(destination)
	}

	if lastErr == nil {
		lastErr = errors.New("no download tools configured")
	}
	d.writeLogFooter(log, false, lastErr.Error())
	return d.failed(lastErr)
}

func (d *HLSDownloader) failed(err error) *domain.DownloadResult {
	return &domain.DownloadResult{
		Success: false,
		Err:     fmt.Errorf("%w: %w", domain.ErrDownloadFailed, err),
	}
}

func (d *HLSDownloader) fileSize(path string) (int64, bool) {
	info, err := d.fs.Stat(path)
	if err != nil || info.IsDir() {
		return 0, false
	}
	return info.Size(), true
}

// verifyOutput rejects a missing or zero-byte destination
func (d *HLSDownloader) verifyOutput(path string) (int64, error) {
	size, ok := d.fileSize(path)
	if !ok {
		return 0, fmt.Errorf("tool exited cleanly but %s is missing", filepath.Base(path))
	}
	if size == 0 {
		return 0, fmt.Errorf("tool produced an empty file %s", filepath.Base(path))
	}
	return size, nil
}

func (d *HLSDownloader) removePartial(destination string) {
	if err := d.fs.Remove(destination); err != nil && !errors.Is(err, os.ErrNotExist) {
		d.logger.Warn("Failed to remove partial file", zap.String("path", destination), zap.Error(err))
	}
}

func (d *HLSDownloader) workDir(destination, tool, tempDir string) string {
	stem := strings.TrimSuffix(filepath.Base(destination), filepath.Ext(destination))
	base := filepath.Dir(destination)
	if tempDir != "" {
		base = tempDir
	}
	return filepath.Join(base, "."+stem+"."+tool+".tmp")
}

// openLogFile opens the per-day tool output log
func (d *HLSDownloader) openLogFile() (afero.File, error) {
	if d.logsDir == "" {
		return nil, nil
	}
	if err := d.fs.MkdirAll(d.logsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create logs directory: %w", err)
	}
	path := filepath.Join(d.logsDir, "download-"+time.Now().Format("20060102")+".log")
	return d.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
}

func (d *HLSDownloader) writeLogHeader(w io.Writer, destination, streamURL string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(w, "\n=== [%s] Download: %s ===\n", timestamp, destination)
	fmt.Fprintf(w, "source: %s\n", RedactURL(streamURL))
}

func (d *HLSDownloader) writeLogFooter(w io.Writer, success bool, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(w, "[%s] %s: %s\n", timestamp, status, message)
	fmt.Fprint(w, "=== END ===\n\n")
}
