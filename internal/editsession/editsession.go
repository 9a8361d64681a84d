// Package editsession implements the per-file-change driver: locating the
// changed document, asking the edit-continuation service for an update,
// and classifying the result into a commit, a diagnostics-only no-op, or a
// blocked (rude edit) outcome.
package editsession

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/c360studio/hotreload/internal/compiler"
	"github.com/c360studio/hotreload/internal/diagnostics"
	"github.com/c360studio/hotreload/internal/fsread"
	"github.com/c360studio/hotreload/internal/metrics"
	"github.com/c360studio/hotreload/internal/solution"
)

// DefaultSourceExtensions are processed when the caller supplies none.
var DefaultSourceExtensions = []string{".cs", ".razor"}

// Driver runs the edit-session procedure against a workspace's current
// solution and edit-continuation service.
type Driver struct {
	logger     *slog.Logger
	router     *diagnostics.Router
	metrics    *metrics.Metrics
	extensions map[string]bool
}

// NewDriver constructs a Driver that only processes files with one of
// extensions (each including the leading dot). An empty slice falls back
// to DefaultSourceExtensions. m may be nil, in which case file-read retries
// are not recorded. logger may be nil.
func NewDriver(extensions []string, router *diagnostics.Router, m *metrics.Metrics, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.Default()
	}
	if len(extensions) == 0 {
		extensions = DefaultSourceExtensions
	}
	set := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		set[ext] = true
	}
	return &Driver{logger: logger, router: router, metrics: m, extensions: set}
}

// Handled reports whether path's extension is one this driver processes.
func (d *Driver) Handled(path string) bool {
	return d.extensions[filepath.Ext(path)]
}

// Outcome is the result of handling one file change.
type Outcome struct {
	// Handled is true whenever the driver took ownership of the change,
	// even if the ultimate batch had nothing to apply.
	Handled bool
	// Batch is populated when Handled is true and the status is Ready, and
	// for a Blocked classification, where it carries the diagnostics.
	Batch compiler.UpdateBatch
	// NextSolution is the solution to treat as current going forward. It
	// equals the input baseline unless the batch was committed.
	NextSolution solution.Solution
	// Restart signals the outer loop should consider restarting the
	// iteration (a Blocked classification).
	Restart bool
}

// HandleFileChange runs the full §4.7 procedure for a single changed path
// against baseline, using svc to emit the update. The caller is
// responsible for serializing calls (at most one open session at a time).
func (d *Driver) HandleFileChange(ctx context.Context, svc compiler.EditContinuationService, baseline solution.Solution, path string) (Outcome, error) {
	if !d.Handled(path) {
		return Outcome{Handled: false, NextSolution: baseline}, nil
	}

	text, err := fsread.ReadText(ctx, d.logger, path, d.recordReadRetry)
	if err != nil {
		d.logger.Warn("editsession: failed to read changed file", "path", path, "error", err)
		return Outcome{Handled: false, NextSolution: baseline}, err
	}

	loc := baseline.FindByPath(normalize(path))
	if !loc.Found() {
		d.logger.Debug("editsession: changed file is not part of the solution", "path", path)
		return Outcome{Handled: false, NextSolution: baseline}, nil
	}

	var updated solution.Solution
	if loc.Additional {
		updated, err = baseline.WithAdditionalDocumentText(loc, text)
	} else {
		updated, err = baseline.WithDocumentText(loc, text)
	}
	if err != nil {
		return Outcome{Handled: false, NextSolution: baseline}, err
	}

	session, err := svc.OpenSession(ctx, baseline)
	if err != nil {
		return Outcome{Handled: false, NextSolution: baseline}, err
	}

	batch, err := svc.EmitUpdate(ctx, session, updated)
	if endErr := svc.EndSession(ctx, session); endErr != nil {
		d.logger.Warn("editsession: failed to end session", "error", endErr)
	}
	if err != nil {
		return Outcome{Handled: false, NextSolution: baseline}, err
	}

	switch batch.Status {
	case compiler.None:
		d.routeProjectDiagnosticsIfErrors(ctx, baseline, loc)
		return Outcome{Handled: true, NextSolution: baseline}, nil

	case compiler.Ready:
		if batch.Empty() {
			d.routeProjectDiagnosticsIfErrors(ctx, baseline, loc)
			return Outcome{Handled: true, NextSolution: baseline}, nil
		}
		return Outcome{Handled: true, Batch: batch, NextSolution: updated}, nil

	case compiler.Blocked:
		if d.router != nil {
			d.router.Route(ctx, batch.Diagnostics)
		}
		return Outcome{Handled: false, Batch: batch, NextSolution: baseline, Restart: true}, nil

	default:
		return Outcome{Handled: false, NextSolution: baseline}, nil
	}
}

func (d *Driver) recordReadRetry() {
	if d.metrics != nil {
		d.metrics.ObserveBackoffRetry()
	}
}

func (d *Driver) routeProjectDiagnosticsIfErrors(ctx context.Context, sol solution.Solution, loc solution.DocumentLocation) {
	diags := sol.ProjectDiagnostics(loc)
	hasError := false
	for _, diag := range diags {
		if diag.Severity == solution.Error {
			hasError = true
			break
		}
	}
	if hasError && d.router != nil {
		d.router.Route(ctx, diags)
	}
}

// normalize converts path to the slash-separated form documents are keyed
// by, so a backslash-reported watcher path still matches.
func normalize(path string) string {
	return filepath.ToSlash(filepath.Clean(path))
}
