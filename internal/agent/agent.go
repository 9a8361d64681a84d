// Package agent implements the in-target-process loop that connects to the
// tool's named channel, applies incoming update batches to the running
// process, and acks each batch. It has zero dependency on any specific
// managed runtime: ModuleLocator and ModuleUpdater are narrow interfaces
// production embedders implement against their own runtime.
package agent

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/hotreload/internal/pipeendpoint"
	"github.com/c360studio/hotreload/internal/wire"
)

// State is the agent's connection lifecycle state.
type State int

const (
	Connecting State = iota
	Connected
	Exited
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// ConnectTimeout bounds how long the agent waits to attach to the tool's
// named channel before giving up.
const ConnectTimeout = 5 * time.Second

// ModuleLocator resolves a wire module identifier to a runtime-loaded
// module handle of type M.
type ModuleLocator[M any] interface {
	Locate(moduleID uuid.UUID) (M, bool)
}

// ModuleUpdater applies a single metadata/IL delta to a located module.
type ModuleUpdater[M any] interface {
	Update(module M, metadataDelta, ilDelta, pdbDelta []byte) error
}

// Agent connects to the tool's pipe endpoint and applies incoming batches
// until the pipe disconnects or ctx is cancelled.
type Agent[M any] struct {
	name           string
	connectTimeout time.Duration
	locator        ModuleLocator[M]
	updater        ModuleUpdater[M]
	logger         *slog.Logger

	mu    sync.Mutex
	state State
}

// New constructs an Agent targeting the named channel. connectTimeout
// bounds the initial dial (see Run); zero selects ConnectTimeout.
func New[M any](name string, connectTimeout time.Duration, locator ModuleLocator[M], updater ModuleUpdater[M], logger *slog.Logger) *Agent[M] {
	if logger == nil {
		logger = slog.Default()
	}
	if connectTimeout <= 0 {
		connectTimeout = ConnectTimeout
	}
	return &Agent[M]{name: name, connectTimeout: connectTimeout, locator: locator, updater: updater, logger: logger, state: Connecting}
}

// State returns the agent's current lifecycle state.
func (a *Agent[M]) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

func (a *Agent[M]) setState(s State) {
	a.mu.Lock()
	a.state = s
	a.mu.Unlock()
}

// Run connects to the tool and processes update batches until the
// connection closes or ctx is cancelled, blocking the caller until then;
// callers typically invoke Run on a background goroutine.
func (a *Agent[M]) Run(ctx context.Context) error {
	connectCtx, cancel := context.WithTimeout(ctx, a.connectTimeout)
	conn, err := pipeendpoint.Dial(connectCtx, a.name)
	cancel()
	if err != nil {
		a.setState(Exited)
		return err
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	a.setState(Connected)
	defer a.setState(Exited)

	reader := bufio.NewReader(conn)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			if err == io.EOF {
				a.logger.Debug("agent: pipe closed by tool")
				return nil
			}
			a.logger.Warn("agent: read failed", "error", err)
			return err
		}

		payload, err := wire.Decode(line)
		if err != nil {
			a.logger.Warn("agent: malformed payload, acking failed", "error", err)
			a.writeAck(conn, wire.AckFailed)
			continue
		}

		ack := a.applyBatch(payload)
		a.writeAck(conn, ack)
	}
}

// applyBatch applies every delta in payload independently (best-effort):
// if any delta fails, the batch's ack is Failed; otherwise Success.
func (a *Agent[M]) applyBatch(payload wire.UpdatePayload) wire.Ack {
	if len(payload.Deltas) == 0 {
		return wire.AckSuccess
	}

	ok := true
	for _, delta := range payload.Deltas {
		module, found := a.locator.Locate(delta.ModuleID)
		if !found {
			a.logger.Warn("agent: module not found", "moduleId", delta.ModuleID)
			ok = false
			continue
		}
		if err := a.updater.Update(module, delta.MetadataDelta, delta.ILDelta, nil); err != nil {
			a.logger.Warn("agent: apply failed", "moduleId", delta.ModuleID, "error", err)
			ok = false
		}
	}

	if !ok {
		return wire.AckFailed
	}
	return wire.AckSuccess
}

func (a *Agent[M]) writeAck(conn net.Conn, ack wire.Ack) {
	if _, err := conn.Write([]byte{byte(ack)}); err != nil {
		a.logger.Warn("agent: failed to write ack", "error", err)
	}
}
