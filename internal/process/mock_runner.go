package process

import (
	"context"
	"sync"
)

// MockRunner is a test double that records commands and returns configured results.
type MockRunner struct {
	RunFunc  func(ctx context.Context, cmd Command, ignoreStatus bool) (*Result, error)
	Commands []Command

	mu sync.Mutex
}

// Run records the command and delegates to RunFunc.
// Without RunFunc every command succeeds with empty output.
func (m *MockRunner) Run(ctx context.Context, cmd Command, ignoreStatus bool) (*Result, error) {
	m.mu.Lock()
	m.Commands = append(m.Commands, cmd)
	m.mu.Unlock()
	if m.RunFunc != nil {
		return m.RunFunc(ctx, cmd, ignoreStatus)
	}
	return &Result{Command: cmd.String()}, nil
}

// Calls returns the number of recorded commands
func (m *MockRunner) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Commands)
}

// Status builds a Result the way ExecRunner would for the given exit status,
// returning a *CmdError when the status is non-zero and not ignored.
func Status(cmd Command, ignoreStatus bool, status int, stdout, stderr string) (*Result, error) {
	result := &Result{
		Command:    cmd.String(),
		ExitStatus: status,
		Stdout:     stdout,
		Stderr:     stderr,
	}
	if status != 0 && !ignoreStatus {
		return result, &CmdError{Result: result}
	}
	return result, nil
}
