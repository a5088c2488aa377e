package apiclient

import (
	"context"
	"log/slog"
)

// Level is the severity of a user-facing notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a transient message for the operator, such as a toast
// in a console UI or a line on stderr.
type Notification struct {
	Level      Level
	Message    string
	Method     string
	Path       string
	StatusCode int
	Err        error
}

// Notifier receives notifications. Implementations must not block for long;
// they run on the requesting goroutine.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// NopNotifier discards notifications.
type NopNotifier struct{}

// Notify does nothing.
func (NopNotifier) Notify(context.Context, Notification) {}

// LogNotifier writes notifications to a structured logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "notify")}
}

// Notify logs n at a level matching its severity.
func (l *LogNotifier) Notify(ctx context.Context, n Notification) {
	attrs := []any{"method", n.Method, "path", n.Path}
	if n.StatusCode != 0 {
		attrs = append(attrs, "status", n.StatusCode)
	}
	if n.Err != nil {
		attrs = append(attrs, "error", n.Err)
	}
	switch n.Level {
	case LevelError:
		l.logger.ErrorContext(ctx, n.Message, attrs...)
	case LevelWarning:
		l.logger.WarnContext(ctx, n.Message, attrs...)
	default:
		l.logger.InfoContext(ctx, n.Message, attrs...)
	}
}

// notify delivers n without letting a misbehaving notifier change the
// outcome of the request.
func (c *Client) notify(ctx context.Context, n Notification) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Notifier panicked", "panic", r, "message", n.Message)
		}
	}()
	c.notifier.Notify(ctx, n)
}
