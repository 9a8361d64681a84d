// Package workspace owns the lazily-initialized, one-shot-per-iteration
// workspace: the opened project, its warmed documents, and the
// edit-continuation service bound to them.
package workspace

import (
	"context"
	"log/slog"
	"sync"

	"github.com/c360studio/hotreload/internal/compiler"
	"github.com/c360studio/hotreload/internal/solution"
)

// ProjectOpener discovers the host build system and opens the target
// project, returning its initial Solution. Production embedders implement
// this against a concrete build-system integration; tests supply a fake.
type ProjectOpener interface {
	Open(ctx context.Context, projectPath string) (solution.Solution, error)
}

// Result is what a Holder resolves to: the opened solution paired with the
// edit-continuation service bound to it.
type Result struct {
	Solution solution.Solution
	Service  compiler.EditContinuationService
}

// Holder lazily initializes a Result exactly once and exposes it through a
// one-shot future. A Holder is scoped to a single iteration; call Dispose
// before constructing the next iteration's Holder.
type Holder struct {
	opener  ProjectOpener
	service compiler.EditContinuationService
	logger  *slog.Logger

	once    sync.Once
	result  Result
	err     error
	done    chan struct{}
	dispose sync.Once
}

// NewHolder constructs a Holder bound to opener and service. logger may be
// nil.
func NewHolder(opener ProjectOpener, service compiler.EditContinuationService, logger *slog.Logger) *Holder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Holder{opener: opener, service: service, logger: logger, done: make(chan struct{})}
}

// Init starts asynchronous initialization if it has not already started.
// Calling Init multiple times is safe; only the first call's projectPath is
// used.
func (h *Holder) Init(ctx context.Context, projectPath string) {
	h.once.Do(func() {
		go func() {
			defer close(h.done)
			sol, err := h.opener.Open(ctx, projectPath)
			if err != nil {
				h.err = err
				return
			}
			h.result = Result{Solution: sol, Service: h.service}
		}()
	})
}

// Await blocks until initialization completes or ctx is cancelled,
// returning the resolved Result or the initialization error.
func (h *Holder) Await(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, h.err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Dispose logs that the holder has been released; the holder keeps no
// other state or resources to free. It is safe to call
// multiple times and safe to call even if initialization never completed;
// the orchestrator calls it on every iteration boundary before
// constructing the next Holder.
func (h *Holder) Dispose(context.Context) {
	h.dispose.Do(func() {
		select {
		case <-h.done:
			h.logger.Debug("workspace: disposed")
		default:
			h.logger.Debug("workspace: disposed before initialization completed")
		}
	})
}
