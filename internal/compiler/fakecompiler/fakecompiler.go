// Package fakecompiler provides an in-memory EditContinuationService for
// tests. It captures the solutions it is asked to diff and returns
// configured batches in sequence.
package fakecompiler

import (
	"context"
	"fmt"
	"sync"

	"github.com/c360studio/hotreload/internal/compiler"
	"github.com/c360studio/hotreload/internal/solution"
)

type session struct {
	id       string
	baseline solution.Solution
}

func (s *session) ID() string { return s.id }

// Service is a thread-safe fake compiler.EditContinuationService.
//
// Usage:
//
//	svc := &fakecompiler.Service{
//	    Batches: []compiler.UpdateBatch{
//	        {Status: compiler.Ready, Updates: []compiler.ModuleUpdate{{...}}},
//	    },
//	}
type Service struct {
	mu sync.Mutex

	Batches []compiler.UpdateBatch // returned in sequence from EmitUpdate
	Err     error                  // returned from EmitUpdate if set, takes precedence

	openSessions int
	sessionCount int
	emitCount    int
	lastBaseline solution.Solution
	lastUpdated  solution.Solution
}

// OpenSession implements compiler.EditContinuationService.
func (s *Service) OpenSession(_ context.Context, baseline solution.Solution) (compiler.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openSessions > 0 {
		return nil, fmt.Errorf("fakecompiler: a session is already open")
	}
	s.openSessions++
	s.sessionCount++
	s.lastBaseline = baseline
	return &session{id: fmt.Sprintf("fake-session-%d", s.sessionCount), baseline: baseline}, nil
}

// EmitUpdate implements compiler.EditContinuationService.
func (s *Service) EmitUpdate(_ context.Context, sess compiler.Session, updated solution.Solution) (compiler.UpdateBatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := sess.(*session); !ok {
		return compiler.UpdateBatch{}, fmt.Errorf("fakecompiler: foreign session")
	}
	if s.Err != nil {
		return compiler.UpdateBatch{}, s.Err
	}

	s.lastUpdated = updated
	if s.emitCount < len(s.Batches) {
		batch := s.Batches[s.emitCount]
		s.emitCount++
		return batch, nil
	}
	return compiler.UpdateBatch{Status: compiler.None}, nil
}

// EndSession implements compiler.EditContinuationService.
func (s *Service) EndSession(_ context.Context, _ compiler.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openSessions == 0 {
		return fmt.Errorf("fakecompiler: no session open")
	}
	s.openSessions--
	return nil
}

// EmitCount returns how many times EmitUpdate has been called.
func (s *Service) EmitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitCount
}

// LastUpdated returns the solution passed to the most recent EmitUpdate call.
func (s *Service) LastUpdated() solution.Solution {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUpdated
}
