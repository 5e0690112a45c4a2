package alerts

import (
	"context"
	"log/slog"
)

// Notifier delivers one HTML email. Callers treat it as fire-and-forget.
type Notifier interface {
	Send(ctx context.Context, to, subject, html string) error
}

// LogNotifier writes emails to the log instead of sending them.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Send(ctx context.Context, to, subject, html string) error {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "email (log only)", "to", to, "subject", subject, "bytes", len(html))
	return nil
}
