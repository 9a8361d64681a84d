// Package diagnostics routes compiler and edit-continuation diagnostics to
// logs, the browser-refresh overlay, and the event bus.
package diagnostics

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360studio/hotreload/internal/browserrefresh"
	"github.com/c360studio/hotreload/internal/eventbus"
	"github.com/c360studio/hotreload/internal/solution"
	"github.com/c360studio/hotreload/internal/wire"
)

// Router formats diagnostics and forwards them to whichever sinks are
// configured. Channel and Publisher are both optional; a nil value
// degrades that sink to a no-op.
type Router struct {
	logger    *slog.Logger
	channel   browserrefresh.RefreshChannel
	publisher *eventbus.Publisher
}

// NewRouter constructs a Router. logger may be nil; channel and publisher
// may be nil to disable those sinks.
func NewRouter(logger *slog.Logger, channel browserrefresh.RefreshChannel, publisher *eventbus.Publisher) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{logger: logger, channel: channel, publisher: publisher}
}

// Route formats diags and logs every entry; error-severity entries are
// additionally forwarded to the browser-refresh channel (if attached) and
// published on the event bus (if configured).
func (r *Router) Route(ctx context.Context, diags []solution.Diagnostic) {
	if len(diags) == 0 {
		return
	}

	var errorMessages []string
	for _, d := range diags {
		formatted := formatDiagnostic(d)
		if d.Severity == solution.Error {
			r.logger.Debug("diagnostics: error", "project", d.ProjectID, "message", formatted)
			errorMessages = append(errorMessages, formatted)
		} else {
			r.logger.Debug("diagnostics: non-error", "project", d.ProjectID, "severity", d.Severity.String(), "message", formatted)
		}
	}

	if len(errorMessages) == 0 {
		return
	}

	if r.channel != nil {
		if err := r.channel.SendDiagnostics(wire.NewDiagnosticsMessage(errorMessages)); err != nil {
			r.logger.Warn("diagnostics: failed to forward to browser channel", "error", err)
		}
	}
	if r.publisher != nil {
		r.publisher.PublishDiagnosticsError(ctx, errorMessages)
	}
}

func formatDiagnostic(d solution.Diagnostic) string {
	return fmt.Sprintf("[%s] %s", d.Severity.String(), d.FormattedMessage)
}
