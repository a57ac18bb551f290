package infrastructure

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/yourusername/yuna-go/internal/domain"
)

// DownloadStrategy is one external tool the HLS downloader can fall back through
type DownloadStrategy interface {
	// Name identifies the tool in results and logs
	Name() string

	// Available resolves the binary, wrapping domain.ErrToolMissing on failure
	Available() error

	// Attempt runs the tool once. It must leave its output at req.Destination.
	Attempt(ctx context.Context, req *AttemptRequest) error
}

// AttemptRequest is what a strategy needs for one run
type AttemptRequest struct {
	URL         string
	Destination string
	WorkDir     string // scratch directory removed after the attempt
	Options     domain.DownloadOptions
	OnProgress  domain.ProgressFunc
	Log         io.Writer
	Fs          afero.Fs // the downloader's filesystem, for post-processing the output
}

// binaryLocator finds a tool either from an explicit override or by searching
type binaryLocator struct {
	override string
	names    []string
	dirs     []string

	once sync.Once
	path string
	err  error
}

func newBinaryLocator(override string, names ...string) *binaryLocator {
	home, _ := os.UserHomeDir()
	dirs := []string{"/usr/local/bin", "/usr/bin", "/opt/homebrew/bin", "./bin"}
	if home != "" {
		dirs = append(dirs, filepath.Join(home, ".local", "bin"), filepath.Join(home, "bin"))
	}
	return &binaryLocator{override: override, names: names, dirs: dirs}
}

// Path returns the resolved binary, searching once
func (l *binaryLocator) Path() (string, error) {
	l.once.Do(func() {
		l.path, l.err = l.locate()
	})
	return l.path, l.err
}

func (l *binaryLocator) locate() (string, error) {
	if l.override != "" {
		p, err := exec.LookPath(l.override)
		if err != nil {
			return "", fmt.Errorf("%w: %s: %v", domain.ErrToolMissing, l.override, err)
		}
		return p, nil
	}

	for _, name := range l.names {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	for _, dir := range l.dirs {
		for _, name := range l.names {
			candidate := filepath.Join(dir, name)
			if runtime.GOOS == "windows" && !strings.HasSuffix(candidate, ".exe") {
				candidate += ".exe"
			}
			if p, err := exec.LookPath(candidate); err == nil {
				return p, nil
			}
		}
	}
	return "", fmt.Errorf("%w: %s not found", domain.ErrToolMissing, strings.Join(l.names, "/"))
}

// runTool executes binary with args, tees combined output into log and hands
// every output line to onLine. Cancelling ctx kills the whole process group.
func runTool(ctx context.Context, binary string, args []string, log io.Writer, onLine func(string)) error {
	cmd := exec.CommandContext(ctx, binary, args...)
	configureProcessGroup(cmd)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	var tail lastLines
	done := make(chan struct{})
	go func() {
		defer close(done)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		scanner.Split(scanToolLines)
		for scanner.Scan() {
			line := scanner.Text()
			if line == "" {
				continue
			}
			if log != nil {
				fmt.Fprintln(log, line)
			}
			tail.add(line)
			if onLine != nil {
				onLine(line)
			}
		}
		io.Copy(io.Discard, pr)
	}()

	if err := cmd.Start(); err != nil {
		pw.Close()
		<-done
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, os.ErrNotExist) || errors.Is(err, os.ErrPermission) {
			return fmt.Errorf("%w: %v", domain.ErrToolMissing, err)
		}
		return fmt.Errorf("failed to start %s: %w", filepath.Base(binary), err)
	}

	err := cmd.Wait()
	pw.Close()
	<-done

	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s interrupted: %w", filepath.Base(binary), ctxErr)
	}
	if err != nil {
		if last := tail.String(); last != "" {
			return fmt.Errorf("%s failed: %w: %s", filepath.Base(binary), err, last)
		}
		return fmt.Errorf("%s failed: %w", filepath.Base(binary), err)
	}
	return nil
}

// lastLines keeps the tail of a tool's output for error messages
type lastLines struct {
	lines []string
}

func (l *lastLines) add(line string) {
	l.lines = append(l.lines, line)
	if len(l.lines) > 3 {
		l.lines = l.lines[len(l.lines)-3:]
	}
}

func (l *lastLines) String() string {
	return strings.Join(l.lines, " | ")
}

// withProcessTimeout bounds a single subprocess call
func withProcessTimeout(ctx context.Context, opts domain.DownloadOptions) (context.Context, context.CancelFunc) {
	if opts.ProcessTimeout > 0 {
		return context.WithTimeout(ctx, opts.ProcessTimeout)
	}
	return context.WithCancel(ctx)
}
