// Package notify sends desktop notifications when a commit finishes.
// It uses github.com/gen2brain/beeep for cross-platform notification support.
package notify

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/firstbutton/docucal/internal/events"
	"github.com/firstbutton/docucal/internal/logging"
)

const appTitle = "docucal"

// Notifier handles desktop notifications.
type Notifier struct {
	logger  *logging.Logger
	enabled bool
	cfg     Config
	mu      sync.RWMutex

	// notify and alert are replaced in tests
	notify func(title, message string) error
	alert  func(title, message string) error
}

// Config holds notification configuration.
type Config struct {
	// Enabled determines if notifications are sent.
	Enabled bool

	// ShowSuccess notifies when every staged file was accepted.
	ShowSuccess bool

	// ShowFailure notifies when a commit aborts.
	ShowFailure bool
}

// DefaultConfig returns the default notification configuration.
func DefaultConfig() *Config {
	return &Config{
		Enabled:     true,
		ShowSuccess: true,
		ShowFailure: true,
	}
}

// NewNotifier creates a new notifier with the given configuration.
func NewNotifier(cfg *Config, logger *logging.Logger) *Notifier {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Notifier{
		logger:  logger,
		enabled: cfg.Enabled,
		cfg:     *cfg,
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
		alert: func(title, message string) error {
			return beeep.Alert(title, message, "")
		},
	}
}

// SetEnabled enables or disables notifications.
func (n *Notifier) SetEnabled(enabled bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.enabled = enabled
}

// IsEnabled returns whether notifications are enabled.
func (n *Notifier) IsEnabled() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.enabled
}

// UploadSucceeded notifies that every file of a commit was accepted.
func (n *Notifier) UploadSucceeded(count int, message string) {
	if !n.IsEnabled() || !n.cfg.ShowSuccess {
		return
	}

	body := fmt.Sprintf("%d file(s) uploaded.", count)
	if message != "" {
		body = message + "\n" + body
	}
	if err := n.notify(appTitle, body); err != nil {
		n.logger.Warn().Err(err).Msg("Failed to send upload complete notification")
	}
}

// UploadFailed notifies that a commit stopped at file.
func (n *Notifier) UploadFailed(file string, message string) {
	if !n.IsEnabled() || !n.cfg.ShowFailure {
		return
	}

	body := truncate(message, 100)
	if file != "" {
		body = fmt.Sprintf("%s\n%s", shortenPath(file), body)
	}
	if err := n.notify("Upload Failed", body); err != nil {
		n.logger.Warn().Err(err).Str("file", file).Msg("Failed to send upload failed notification")
	}
}

// Alert sends an alert notification (error level).
// This is for issues that require user attention, such as a lost session.
func (n *Notifier) Alert(message string) {
	if !n.IsEnabled() {
		return
	}

	title := appTitle + " Alert"

	// beeep.Alert also plays a sound on most platforms
	if err := n.alert(title, message); err != nil {
		if err := n.notify(title, message); err != nil {
			n.logger.Error().Err(err).Str("message", message).Msg("Failed to send alert notification")
		}
	}
}

// Watch turns upload_completed events from ch into notifications until ctx
// is done or ch is closed. Subscribe before any commit can run so no
// completion is missed.
func (n *Notifier) Watch(ctx context.Context, ch <-chan events.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if done, isDone := ev.(*events.UploadCompletedEvent); isDone {
				n.HandleCompleted(done)
			}
		}
	}
}

// HandleCompleted routes one finished commit to the matching notification.
func (n *Notifier) HandleCompleted(ev *events.UploadCompletedEvent) {
	switch ev.Outcome {
	case "success":
		n.UploadSucceeded(ev.Succeeded, ev.Message)
	case "auth_required":
		n.Alert(ev.Message)
	case "failure":
		n.UploadFailed(ev.FailedFile, fmt.Sprintf("%s\n%d of %d file(s) uploaded.", ev.Message, ev.Succeeded, ev.Total))
	}
}

// truncate shortens a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// shortenPath abbreviates a long path for display in notifications.
func shortenPath(path string) string {
	const maxLen = 60

	if len(path) <= maxLen {
		return path
	}

	// Show ... + last 2 path components
	_, file := filepath.Split(path)
	parentDir := filepath.Base(filepath.Dir(path))
	short := filepath.Join("...", parentDir, file)

	if len(short) > maxLen {
		return "..." + path[len(path)-(maxLen-3):]
	}
	return short
}
