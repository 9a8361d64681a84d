// Package orchestrator wires the workspace holder, edit-session driver,
// applier, and diagnostics router into the single object a daemon or
// embedder constructs once and advances from iteration to iteration.
package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/c360studio/hotreload/internal/applier"
	"github.com/c360studio/hotreload/internal/compiler"
	"github.com/c360studio/hotreload/internal/diagnostics"
	"github.com/c360studio/hotreload/internal/editsession"
	"github.com/c360studio/hotreload/internal/errs"
	"github.com/c360studio/hotreload/internal/eventbus"
	"github.com/c360studio/hotreload/internal/metrics"
	"github.com/c360studio/hotreload/internal/pipeendpoint"
	"github.com/c360studio/hotreload/internal/runctx"
	"github.com/c360studio/hotreload/internal/solution"
	"github.com/c360studio/hotreload/internal/workspace"
)

// Orchestrator is the single object a daemon or embedder constructs once;
// NewIteration moves it to the next iteration. HandleFileChange serializes
// access with a mutex, matching the
// edit-session driver's "only one open session at a time" invariant.
type Orchestrator struct {
	logger *slog.Logger

	opener  workspace.ProjectOpener
	service compiler.EditContinuationService
	router  *diagnostics.Router
	metrics *metrics.Metrics
	events  *eventbus.Publisher

	pipeName   string
	extensions []string

	mu      sync.Mutex
	ctx     runctx.Context
	holder  *workspace.Holder
	pipe    *pipeendpoint.Server
	driver  *editsession.Driver
	current solution.Solution
	app     applier.Applier
}

// Options configures a new Orchestrator.
type Options struct {
	Opener               workspace.ProjectOpener
	Service              compiler.EditContinuationService
	Router               *diagnostics.Router
	Metrics              *metrics.Metrics
	Events               *eventbus.Publisher
	PipeName             string
	SourceExtensions     []string
	AdditionalExtensions []string
	Logger               *slog.Logger
}

// New constructs an Orchestrator. Callers must call NewIteration before
// the first HandleFileChange call.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	driverExtensions := append(append([]string{}, opts.SourceExtensions...), opts.AdditionalExtensions...)
	return &Orchestrator{
		logger:     logger,
		opener:     opts.Opener,
		service:    opts.Service,
		router:     opts.Router,
		metrics:    opts.Metrics,
		events:     opts.Events,
		pipeName:   opts.PipeName,
		extensions: opts.SourceExtensions,
		driver:     editsession.NewDriver(driverExtensions, opts.Router, opts.Metrics, logger),
	}
}

// NewIteration disposes the prior workspace (if any), constructs a fresh
// pipe endpoint, and starts asynchronous workspace initialization for the
// given project path. processSpec is the (possibly force-edit-continuation
// augmented) launch spec for the target process.
func (o *Orchestrator) NewIteration(ctx context.Context, projectPath string, processSpec runctx.ProcessSpec) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.holder != nil {
		o.holder.Dispose(ctx)
	}
	if o.pipe != nil {
		_ = o.pipe.Close()
	}

	if o.ctx.ProjectPath == "" {
		o.ctx = runctx.Context{ProjectPath: projectPath, ProcessSpec: processSpec}
	} else {
		o.ctx = o.ctx.Next(projectPath, processSpec)
	}

	o.pipe = pipeendpoint.NewServer(o.pipeName, o.logger)
	if err := o.pipe.Listen(ctx); err != nil {
		return err
	}

	o.holder = workspace.NewHolder(o.opener, o.service, o.logger)
	o.holder.Init(ctx, projectPath)

	if o.events != nil {
		o.events.PublishIterationStarted(ctx, o.ctx.Iteration)
	}
	return nil
}

// AttachApplier installs the applier this orchestrator hands committed
// batches to. Call once the pipe/browser connection for this iteration is
// established.
func (o *Orchestrator) AttachApplier(app applier.Applier) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.app = app
}

// Pipe returns the pipe server for the current iteration so the caller can
// Accept a connecting agent.
func (o *Orchestrator) Pipe() *pipeendpoint.Server {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.pipe
}

// HandleFileChange serializes against concurrent callers and runs the
// edit-session procedure for a single changed path, applying any resulting
// batch. It returns true when the change was handled (including
// diagnostics-only outcomes), false when it was not handled or the
// iteration should restart.
func (o *Orchestrator) HandleFileChange(ctx context.Context, path string) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	result, err := o.holder.Await(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false, err
		}
		o.logger.Warn("orchestrator: workspace initialization failed", "error", err)
		return false, errs.NewWorkspace(err)
	}

	baseline := o.current
	if baseline.Projects == nil {
		baseline = result.Solution
	}

	outcome, err := o.driver.HandleFileChange(ctx, result.Service, baseline, path)
	if err != nil {
		return false, err
	}
	if !outcome.Handled {
		if outcome.Restart && o.events != nil {
			o.events.PublishBatchBlocked(ctx, len(outcome.Batch.Diagnostics))
		}
		return false, nil
	}

	o.current = outcome.NextSolution

	if outcome.Batch.Empty() {
		if o.metrics != nil {
			o.metrics.ObserveBatch("none", 0)
		}
		return true, nil
	}

	start := time.Now()
	ok := false
	if o.app != nil {
		ok, err = o.app.Apply(ctx, o.ctx, outcome.Batch)
	}
	if o.metrics != nil {
		o.metrics.ObserveApplyLatency(time.Since(start))
	}

	if err != nil {
		if o.metrics != nil {
			o.metrics.ObserveBatch("apply_error", 0)
		}
		return false, err
	}
	if !ok {
		if o.metrics != nil {
			o.metrics.ObserveBatch("apply_failed", 0)
		}
		return false, nil
	}

	if o.metrics != nil {
		o.metrics.ObserveBatch("applied", len(outcome.Batch.Updates))
	}
	if o.events != nil {
		o.events.PublishBatchApplied(ctx, len(outcome.Batch.Updates))
	}
	return true, nil
}
