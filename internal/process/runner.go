package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/yoanbernabeu/sshsession/internal/security"
)

// Command describes a program invocation. Args[0] is the program; the
// remaining elements are passed as-is, without going through a shell.
type Command struct {
	Args []string
	// Env is appended to the current environment.
	Env []string
	// Detach runs the program without stdin, in its own session, with its
	// output discarded. Used for processes that fork into the background.
	Detach bool
}

// String renders the command line, quoting arguments that need it
func (c Command) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = quoteArg(a)
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\"'\\$`|&;<>(){}[]*?~#") {
		return security.ShellEscape(s)
	}
	return s
}

// Runner abstracts local process execution for testability.
type Runner interface {
	Run(ctx context.Context, cmd Command, ignoreStatus bool) (*Result, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct{}

// NewExecRunner creates a runner backed by os/exec
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run executes the command and waits for it to exit.
// A non-zero exit status yields a *CmdError unless ignoreStatus is set;
// failure to start the program is returned as a plain error.
func (r *ExecRunner) Run(ctx context.Context, cmd Command, ignoreStatus bool) (*Result, error) {
	if len(cmd.Args) == 0 {
		return nil, fmt.Errorf("empty command")
	}

	result := &Result{Command: cmd.String()}

	c := exec.CommandContext(ctx, cmd.Args[0], cmd.Args[1:]...)
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	if cmd.Detach {
		c.Stdin = nil
		c.Stdout = io.Discard
		c.Stderr = io.Discard
		detach(c)
	} else {
		c.Stdout = &stdout
		c.Stderr = &stderr
	}

	start := time.Now()
	err := c.Run()
	result.Duration = time.Since(start)
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	if c.ProcessState != nil {
		result.Pid = c.ProcessState.Pid()
	}

	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			result.ExitStatus = -1
			return result, fmt.Errorf("failed to run %s: %w", cmd.Args[0], err)
		}
		result.ExitStatus = exitErr.ExitCode()
	}

	if result.ExitStatus != 0 && !ignoreStatus {
		return result, &CmdError{Result: result}
	}

	return result, nil
}
