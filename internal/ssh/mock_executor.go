package ssh

import (
	"context"
	"fmt"

	"github.com/yoanbernabeu/sshsession/internal/process"
)

// MockExecutor is a test double that records commands and returns configured results.
type MockExecutor struct {
	ConnectFunc func(ctx context.Context) (bool, error)
	CmdFunc     func(ctx context.Context, command string, ignoreStatus bool) (*process.Result, error)
	CheckResult bool
	QuitResult  bool
	Commands    []string
	Transfers   []string
	Quits       int
}

// Connect delegates to ConnectFunc, succeeding by default.
func (m *MockExecutor) Connect(ctx context.Context) (bool, error) {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return true, nil
}

// Check returns CheckResult.
func (m *MockExecutor) Check(ctx context.Context) bool {
	return m.CheckResult
}

// Cmd records the command and delegates to CmdFunc.
func (m *MockExecutor) Cmd(ctx context.Context, command string, ignoreStatus bool) (*process.Result, error) {
	m.Commands = append(m.Commands, command)
	if m.CmdFunc != nil {
		return m.CmdFunc(ctx, command, ignoreStatus)
	}
	return &process.Result{Command: command}, nil
}

// Upload records the transfer.
func (m *MockExecutor) Upload(ctx context.Context, localPath, remotePath string) error {
	m.Transfers = append(m.Transfers, fmt.Sprintf("%s -> %s", localPath, remotePath))
	return nil
}

// Download records the transfer.
func (m *MockExecutor) Download(ctx context.Context, remotePath, localPath string) error {
	m.Transfers = append(m.Transfers, fmt.Sprintf("%s <- %s", localPath, remotePath))
	return nil
}

// RawCommandString returns a fixed ssh invocation for command.
func (m *MockExecutor) RawCommandString(command string) string {
	return "ssh mock " + command
}

// Quit counts the call and returns QuitResult.
func (m *MockExecutor) Quit(ctx context.Context) bool {
	m.Quits++
	return m.QuitResult
}
