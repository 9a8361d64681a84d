// Package runctx holds the per-iteration context object threaded through
// the orchestrator: the project under watch, the spec for (re)launching the
// target process, and an optional browser-refresh channel handle.
package runctx

import "github.com/c360studio/hotreload/internal/browserrefresh"

// ForceEditContinuationEnv is the environment variable set on the child
// process to force edit-and-continue-compatible code generation.
const ForceEditContinuationEnv = "COMPLUS_ForceEnc"

// ProcessSpec describes how to (re)launch the target process.
type ProcessSpec struct {
	Path string
	Args []string
	// Env holds additional environment entries layered on top of the
	// process's inherited environment. It is populated once during
	// iteration 0 and must not be mutated while the target process is
	// launching.
	Env map[string]string
}

// WithForceEditContinuation returns a copy of spec with
// ForceEditContinuationEnv set to "1", matching the startup-hook contract.
func (p ProcessSpec) WithForceEditContinuation() ProcessSpec {
	env := make(map[string]string, len(p.Env)+1)
	for k, v := range p.Env {
		env[k] = v
	}
	env[ForceEditContinuationEnv] = "1"
	return ProcessSpec{Path: p.Path, Args: p.Args, Env: env}
}

// Context is the read-mostly object carried through one orchestrator
// iteration. Iteration 0 is the first launch; iteration > 0 is a restart
// after a rude edit or a build failure.
type Context struct {
	Iteration   uint
	ProjectPath string
	ProcessSpec ProcessSpec

	// BrowserRefreshServer is non-nil only when the browser-refresh variant
	// is enabled for this run.
	BrowserRefreshServer *browserrefresh.Hub
}

// Next returns the Context for the following iteration: projectPath and
// processSpec replace the prior iteration's values (a restart may target a
// different path or relaunch with a different spec), Iteration increments,
// and the prior browser-refresh handle is dropped so the caller can attach
// a freshly constructed one.
func (c Context) Next(projectPath string, processSpec ProcessSpec) Context {
	return Context{
		Iteration:   c.Iteration + 1,
		ProjectPath: projectPath,
		ProcessSpec: processSpec,
	}
}
