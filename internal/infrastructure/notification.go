package infrastructure

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/yourusername/yuna-go/internal/domain"
	"go.uber.org/zap"
)

// DesktopNotifier shows desktop notifications for finished downloads
type DesktopNotifier struct {
	config domain.NotificationConfig
	logger *zap.Logger
	run    func(name string, args ...string) error
}

// NewDesktopNotifier creates a new desktop notification sink
func NewDesktopNotifier(config domain.NotificationConfig, logger *zap.Logger) *DesktopNotifier {
	return &DesktopNotifier{
		config: config,
		logger: logger,
		run: func(name string, args ...string) error {
			return exec.Command(name, args...).Run()
		},
	}
}

func (n *DesktopNotifier) Name() string { return "desktop" }

// Handle only reacts to terminal events, progress would be too noisy
func (n *DesktopNotifier) Handle(event domain.ProgressEvent) error {
	switch event.Type {
	case domain.EventDownloadComplete:
		return n.Send("Download Completed", describeEvent(event))
	case domain.EventDownloadError:
		return n.Send("Download Failed", truncateString(describeEvent(event)+": "+event.Error, 120))
	}
	return nil
}

// Send sends a notification
func (n *DesktopNotifier) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	var err error
	switch n.config.Method {
	case "osascript":
		script := fmt.Sprintf(`display notification %s with title %s`, appleScriptString(message), appleScriptString(title))
		if n.config.Sound {
			script += ` sound name "Glass"`
		}
		err = n.run("osascript", "-e", script)
	case "notify-send":
		err = n.run("notify-send", "--app-name=yuna", title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}

	if err != nil {
		return fmt.Errorf("%s: %w", n.config.Method, err)
	}
	n.logger.Debug("Notification sent", zap.String("title", title))
	return nil
}

// describeEvent renders "Frieren episode 3" style labels
func describeEvent(event domain.ProgressEvent) string {
	if event.Episode == nil {
		return event.Name
	}
	return fmt.Sprintf("%s episode %d", event.Name, *event.Episode)
}

func appleScriptString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
