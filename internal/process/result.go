package process

import (
	"fmt"
	"strings"
	"time"
)

// Result holds the outcome of a finished command
type Result struct {
	Command    string
	ExitStatus int
	Stdout     string
	Stderr     string
	Duration   time.Duration
	Pid        int
}

// CmdError is returned when a command exits with a non-zero status and the
// caller did not ask to ignore it.
type CmdError struct {
	Result *Result
	// AdditionalText is prepended to the message by callers that know more
	// about the failing command than the runner does.
	AdditionalText string
}

func (e *CmdError) Error() string {
	var b strings.Builder
	if e.AdditionalText != "" {
		b.WriteString(e.AdditionalText)
		b.WriteString(": ")
	}
	if e.Result == nil {
		b.WriteString("command failed")
		return b.String()
	}
	fmt.Fprintf(&b, "command %q failed (exit %d)", e.Result.Command, e.Result.ExitStatus)
	if stderr := strings.TrimSpace(e.Result.Stderr); stderr != "" {
		fmt.Fprintf(&b, ": %s", stderr)
	}
	return b.String()
}

// ExitStatus returns the exit status of the failed command
func (e *CmdError) ExitStatus() int {
	if e.Result == nil {
		return -1
	}
	return e.Result.ExitStatus
}

// Stdout returns the captured standard output of the failed command
func (e *CmdError) Stdout() string {
	if e.Result == nil {
		return ""
	}
	return e.Result.Stdout
}

// Stderr returns the captured standard error of the failed command
func (e *CmdError) Stderr() string {
	if e.Result == nil {
		return ""
	}
	return e.Result.Stderr
}
