// Package applier implements the tool side of delta application: writing an
// update batch to the connected agent and reading back its ack, or, in the
// browser-refresh variant, forwarding the same payload over the
// browser-refresh channel instead of the pipe.
package applier

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/c360studio/hotreload/internal/browserrefresh"
	"github.com/c360studio/hotreload/internal/compiler"
	"github.com/c360studio/hotreload/internal/errs"
	"github.com/c360studio/hotreload/internal/metrics"
	"github.com/c360studio/hotreload/internal/runctx"
	"github.com/c360studio/hotreload/internal/wire"
)

// AckDeadline bounds how long the applier waits for the agent's ack byte
// before treating the batch as failed. A stuck or crashed agent must not
// block the watch loop.
const AckDeadline = 2 * time.Second

// Applier applies an UpdateBatch to a running target process.
type Applier interface {
	// Initialize prepares the applier for a new iteration, e.g. attaching
	// to a newly accepted pipe connection.
	Initialize(ctx context.Context, conn net.Conn)

	// Apply sends batch to the target and reports whether it was applied
	// successfully.
	Apply(ctx context.Context, runCtx runctx.Context, batch compiler.UpdateBatch) (bool, error)

	// ReportDiagnostics forwards diagnostics to whatever channel the
	// applier has available (browser overlay, log only, etc).
	ReportDiagnostics(ctx context.Context, diagnostics []string)
}

// PipeApplier implements Applier over the named duplex pipe, per the
// tool-side protocol: write, flush, read exactly one ack byte within
// AckDeadline.
type PipeApplier struct {
	logger      *slog.Logger
	conn        net.Conn
	ackDeadline time.Duration
	metrics     *metrics.Metrics
}

// NewPipeApplier constructs a PipeApplier. ackDeadline bounds how long Apply
// waits for the agent's ack byte; zero selects AckDeadline. m may be nil, in
// which case ack failures are not recorded. logger may be nil.
func NewPipeApplier(ackDeadline time.Duration, m *metrics.Metrics, logger *slog.Logger) *PipeApplier {
	if logger == nil {
		logger = slog.Default()
	}
	if ackDeadline <= 0 {
		ackDeadline = AckDeadline
	}
	return &PipeApplier{logger: logger, ackDeadline: ackDeadline, metrics: m}
}

// Initialize attaches the applier to a freshly accepted pipe connection.
func (a *PipeApplier) Initialize(_ context.Context, conn net.Conn) {
	a.conn = conn
}

// Apply implements Applier.
func (a *PipeApplier) Apply(_ context.Context, runCtx runctx.Context, batch compiler.UpdateBatch) (bool, error) {
	if a.conn == nil {
		// No agent attached; the host process is not agent-aware.
		return false, nil
	}

	payload := toWirePayload(batch)
	encoded, err := wire.Encode(payload)
	if err != nil {
		return false, errs.NewProtocol(err)
	}
	if _, err := a.conn.Write(encoded); err != nil {
		return false, errs.NewTransient(err)
	}

	if err := a.conn.SetReadDeadline(time.Now().Add(a.ackDeadline)); err != nil {
		return false, errs.NewTransient(err)
	}
	ackByte := make([]byte, 1)
	if _, err := a.conn.Read(ackByte); err != nil {
		a.logger.Warn("applier: ack not received within deadline", "error", err)
		a.recordAckFailure()
		return false, errs.NewProtocol(err)
	}
	_ = a.conn.SetReadDeadline(time.Time{})

	ack := wire.Ack(ackByte[0])
	switch ack {
	case wire.AckFailed:
		a.recordAckFailure()
		return false, nil
	case wire.AckSuccess, wire.AckSuccessRefresh:
		if ack == wire.AckSuccessRefresh && runCtx.BrowserRefreshServer != nil {
			_ = runCtx.BrowserRefreshServer.SendUpdate(payload)
		}
		return true, nil
	default:
		return false, errs.NewProtocol(errUnknownAck(ack))
	}
}

// ReportDiagnostics implements Applier. The pipe applier has no diagnostics
// channel of its own; it only logs.
func (a *PipeApplier) ReportDiagnostics(_ context.Context, diagnostics []string) {
	for _, d := range diagnostics {
		a.logger.Debug("applier: diagnostic", "message", d)
	}
}

func (a *PipeApplier) recordAckFailure() {
	if a.metrics != nil {
		a.metrics.ObserveAckFailure()
	}
}

func toWirePayload(batch compiler.UpdateBatch) wire.UpdatePayload {
	deltas := make([]wire.UpdateDelta, 0, len(batch.Updates))
	for _, u := range batch.Updates {
		deltas = append(deltas, wire.UpdateDelta{
			ModuleID:      u.ModuleID,
			MetadataDelta: u.MetadataDelta,
			ILDelta:       u.ILDelta,
		})
	}
	return wire.UpdatePayload{Deltas: deltas}
}

type errUnknownAck wire.Ack

func (e errUnknownAck) Error() string {
	return "applier: unknown ack byte"
}

// BrowserApplier implements Applier over a browserrefresh.RefreshChannel.
// There is no ack; success is reported optimistically per the
// browser-refresh variant's contract.
type BrowserApplier struct {
	logger  *slog.Logger
	channel browserrefresh.RefreshChannel
}

// NewBrowserApplier constructs a BrowserApplier over channel. logger may be nil.
func NewBrowserApplier(channel browserrefresh.RefreshChannel, logger *slog.Logger) *BrowserApplier {
	if logger == nil {
		logger = slog.Default()
	}
	return &BrowserApplier{logger: logger, channel: channel}
}

// Initialize is a no-op: the browser channel is not a per-connection resource.
func (a *BrowserApplier) Initialize(context.Context, net.Conn) {}

// Apply implements Applier.
func (a *BrowserApplier) Apply(_ context.Context, _ runctx.Context, batch compiler.UpdateBatch) (bool, error) {
	if a.channel == nil {
		return false, nil
	}
	payload := toWirePayload(batch)
	if err := a.channel.SendUpdate(payload); err != nil {
		return false, errs.NewTransient(err)
	}
	return true, nil
}

// ReportDiagnostics implements Applier, forwarding over the same channel.
func (a *BrowserApplier) ReportDiagnostics(_ context.Context, diagnostics []string) {
	if a.channel == nil {
		return
	}
	if err := a.channel.SendDiagnostics(wire.NewDiagnosticsMessage(diagnostics)); err != nil {
		a.logger.Warn("applier: failed to forward diagnostics to browser", "error", err)
	}
}
