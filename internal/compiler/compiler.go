// Package compiler defines the narrow contract the edit-session driver uses
// to turn a revised solution.Solution into applicable deltas, without
// depending on any particular managed-runtime compiler. Production
// embedders supply a concrete EditContinuationService; tests use the fake
// in fakecompiler.
package compiler

import (
	"context"

	"github.com/google/uuid"

	"github.com/c360studio/hotreload/internal/solution"
)

// Status classifies the outcome of an EmitUpdate call.
type Status int

const (
	// None indicates no semantic change was detected; nothing to apply.
	None Status = iota
	// Ready indicates deltas were produced and may be committed and applied.
	Ready
	// Blocked indicates a rude edit or a hard compile failure; the solution
	// update must be discarded rather than committed.
	Blocked
)

func (s Status) String() string {
	switch s {
	case None:
		return "none"
	case Ready:
		return "ready"
	case Blocked:
		return "blocked"
	default:
		return "unknown"
	}
}

// ModuleUpdate is a single module's metadata/IL delta, ready for wire
// encoding by internal/wire.
type ModuleUpdate struct {
	ModuleID      uuid.UUID
	MetadataDelta []byte
	ILDelta       []byte
}

// UpdateBatch is the result of one EmitUpdate call.
type UpdateBatch struct {
	Status      Status
	Updates     []ModuleUpdate
	Diagnostics []solution.Diagnostic
}

// Empty reports whether the batch carries no module updates, matching the
// "Ready-but-empty" case the edit-session driver treats like None.
func (b UpdateBatch) Empty() bool {
	return len(b.Updates) == 0
}

// Session represents an open edit-continuation session. It must be ended
// exactly once via EditContinuationService.EndSession after at most one
// EmitUpdate.
type Session interface {
	// ID identifies the session for logging/debugging purposes.
	ID() string
}

// EditContinuationService is the narrow compiler contract the edit-session
// driver depends on. A concrete implementation wraps a specific managed
// runtime's compilation/edit-and-continue API; this package has zero
// dependency on any such runtime.
type EditContinuationService interface {
	// OpenSession begins a new edit-continuation session on baseline. At
	// most one session may be open at a time per service instance.
	OpenSession(ctx context.Context, baseline solution.Solution) (Session, error)

	// EmitUpdate asks the service to diff baseline against updated within
	// the given session and produce an UpdateBatch.
	EmitUpdate(ctx context.Context, session Session, updated solution.Solution) (UpdateBatch, error)

	// EndSession closes the session. It is safe to call after either a
	// successful or failed EmitUpdate, and must be called exactly once per
	// OpenSession.
	EndSession(ctx context.Context, session Session) error
}
