// Package extprocess implements compiler.EditContinuationService by
// delegating to an external compiler process over JSON on stdin/stdout.
// Actual edit-and-continue compilation is a managed-runtime concern this
// repo does not reimplement; production deployments point Command at the
// runtime-specific compiler host, the same separation the pipe protocol
// uses between this tool and the in-process agent.
package extprocess

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/google/uuid"

	"github.com/c360studio/hotreload/internal/compiler"
	"github.com/c360studio/hotreload/internal/solution"
)

// Service shells out to Command for every OpenSession/EmitUpdate/EndSession
// call, one subprocess invocation per operation. Timeout bounds each
// invocation.
type Service struct {
	Command string
	Args    []string
	Timeout time.Duration
}

type openRequest struct {
	Op       string            `json:"op"`
	Baseline solution.Solution `json:"baseline"`
}

type openResponse struct {
	SessionID string `json:"sessionId"`
	Error     string `json:"error,omitempty"`
}

type emitRequest struct {
	Op        string            `json:"op"`
	SessionID string            `json:"sessionId"`
	Updated   solution.Solution `json:"updated"`
}

type emitResponse struct {
	Status      string                `json:"status"`
	Updates     []wireModuleUpdate    `json:"updates"`
	Diagnostics []solution.Diagnostic `json:"diagnostics"`
	Error       string                `json:"error,omitempty"`
}

type wireModuleUpdate struct {
	ModuleID      uuid.UUID `json:"moduleId"`
	MetadataDelta []byte    `json:"metadataDelta"`
	ILDelta       []byte    `json:"ilDelta"`
}

type endRequest struct {
	Op        string `json:"op"`
	SessionID string `json:"sessionId"`
}

type endResponse struct {
	Error string `json:"error,omitempty"`
}

type session struct {
	id string
}

func (s *session) ID() string { return s.id }

func (s *Service) timeout() time.Duration {
	if s.Timeout <= 0 {
		return 10 * time.Second
	}
	return s.Timeout
}

func (s *Service) run(ctx context.Context, request any, response any) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	payload, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("extprocess: marshal request: %w", err)
	}

	cmd := exec.CommandContext(ctx, s.Command, s.Args...)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("extprocess: %s failed: %w (stderr: %s)", s.Command, err, stderr.String())
	}

	if err := json.Unmarshal(stdout.Bytes(), response); err != nil {
		return fmt.Errorf("extprocess: decode response: %w", err)
	}
	return nil
}

// OpenSession implements compiler.EditContinuationService.
func (s *Service) OpenSession(ctx context.Context, baseline solution.Solution) (compiler.Session, error) {
	var resp openResponse
	if err := s.run(ctx, openRequest{Op: "open", Baseline: baseline}, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("extprocess: open session: %s", resp.Error)
	}
	return &session{id: resp.SessionID}, nil
}

// EmitUpdate implements compiler.EditContinuationService.
func (s *Service) EmitUpdate(ctx context.Context, sess compiler.Session, updated solution.Solution) (compiler.UpdateBatch, error) {
	var resp emitResponse
	if err := s.run(ctx, emitRequest{Op: "emit", SessionID: sess.ID(), Updated: updated}, &resp); err != nil {
		return compiler.UpdateBatch{}, err
	}
	if resp.Error != "" {
		return compiler.UpdateBatch{}, fmt.Errorf("extprocess: emit update: %s", resp.Error)
	}

	status, err := parseStatus(resp.Status)
	if err != nil {
		return compiler.UpdateBatch{}, err
	}

	updates := make([]compiler.ModuleUpdate, 0, len(resp.Updates))
	for _, u := range resp.Updates {
		updates = append(updates, compiler.ModuleUpdate{
			ModuleID:      u.ModuleID,
			MetadataDelta: u.MetadataDelta,
			ILDelta:       u.ILDelta,
		})
	}

	return compiler.UpdateBatch{Status: status, Updates: updates, Diagnostics: resp.Diagnostics}, nil
}

// EndSession implements compiler.EditContinuationService.
func (s *Service) EndSession(ctx context.Context, sess compiler.Session) error {
	var resp endResponse
	if err := s.run(ctx, endRequest{Op: "end", SessionID: sess.ID()}, &resp); err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("extprocess: end session: %s", resp.Error)
	}
	return nil
}

func parseStatus(s string) (compiler.Status, error) {
	switch s {
	case "none":
		return compiler.None, nil
	case "ready":
		return compiler.Ready, nil
	case "blocked":
		return compiler.Blocked, nil
	default:
		return 0, fmt.Errorf("extprocess: unknown status %q", s)
	}
}
