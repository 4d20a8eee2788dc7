package main

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// commandRunner runs external tools. Backends take one so tests can replace
// the real processes.
type commandRunner interface {
	// Output runs the command to completion and returns its stdout.
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// Start launches the command and returns without waiting for it.
	Start(name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, fmt.Errorf("run %s: %w, stderr: %s", name, err, exitErr.Stderr)
		}
		return out, fmt.Errorf("run %s: %w", name, err)
	}
	return out, nil
}

func (execRunner) Start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", name, err)
	}
	// Reap the child in the background; its exit status is not interesting.
	go func() { _ = cmd.Wait() }()
	return nil
}
