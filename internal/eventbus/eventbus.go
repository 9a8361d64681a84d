// Package eventbus publishes best-effort JSON lifecycle events to NATS so
// external tooling can observe pipeline health without polling logs. Every
// publish call degrades to a no-op when no connection is configured.
package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectPrefix namespaces every subject this package publishes on.
const SubjectPrefix = "hotreload"

const (
	subjectIterationStarted = SubjectPrefix + ".iteration.started"
	subjectBatchApplied     = SubjectPrefix + ".batch.applied"
	subjectBatchBlocked     = SubjectPrefix + ".batch.blocked"
	subjectDiagnosticsError = SubjectPrefix + ".diagnostics.error"
)

// Publisher publishes lifecycle events to NATS. A nil *nats.Conn (the zero
// value's Conn field) makes every publish call a no-op, mirroring the
// graceful-degradation pattern used for optional sinks elsewhere in this
// pipeline.
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// NewPublisher constructs a Publisher. conn may be nil to disable
// publishing entirely; logger may be nil.
func NewPublisher(conn *nats.Conn, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

type iterationStartedEvent struct {
	Iteration uint      `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
}

type batchAppliedEvent struct {
	UpdateCount int       `json:"updateCount"`
	Timestamp   time.Time `json:"timestamp"`
}

type batchBlockedEvent struct {
	DiagnosticCount int       `json:"diagnosticCount"`
	Timestamp       time.Time `json:"timestamp"`
}

type diagnosticsErrorEvent struct {
	Messages  []string  `json:"messages"`
	Timestamp time.Time `json:"timestamp"`
}

// PublishIterationStarted announces that a new orchestrator iteration began.
func (p *Publisher) PublishIterationStarted(ctx context.Context, iteration uint) {
	p.publish(ctx, subjectIterationStarted, iterationStartedEvent{Iteration: iteration, Timestamp: time.Now()})
}

// PublishBatchApplied announces a successfully applied batch.
func (p *Publisher) PublishBatchApplied(ctx context.Context, updateCount int) {
	p.publish(ctx, subjectBatchApplied, batchAppliedEvent{UpdateCount: updateCount, Timestamp: time.Now()})
}

// PublishBatchBlocked announces a batch blocked by a rude edit or compile failure.
func (p *Publisher) PublishBatchBlocked(ctx context.Context, diagnosticCount int) {
	p.publish(ctx, subjectBatchBlocked, batchBlockedEvent{DiagnosticCount: diagnosticCount, Timestamp: time.Now()})
}

// PublishDiagnosticsError announces error-severity diagnostics.
func (p *Publisher) PublishDiagnosticsError(ctx context.Context, messages []string) {
	p.publish(ctx, subjectDiagnosticsError, diagnosticsErrorEvent{Messages: messages, Timestamp: time.Now()})
}

func (p *Publisher) publish(_ context.Context, subject string, event any) {
	if p == nil || p.conn == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("eventbus: failed to marshal event", "subject", subject, "error", err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		p.logger.Warn("eventbus: publish failed", "subject", subject, "error", err)
	}
}
