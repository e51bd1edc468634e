package ssh

import (
	"errors"
	"fmt"

	"github.com/yoanbernabeu/sshsession/internal/process"
)

var (
	// ErrNotConnected is returned by WithSession when Connect reported no usable connection
	ErrNotConnected = errors.New("ssh session not connected")
	// ErrQuit is returned by Close when the master did not acknowledge the exit request
	ErrQuit = errors.New("ssh master did not exit cleanly")
	// ErrUnsafePassword is returned when a password cannot be handed to ssh through askpass
	ErrUnsafePassword = errors.New("password cannot be passed through askpass")
)

// SessionError means the connection itself failed, as opposed to the remote
// command. The session must be reconnected before it is usable again.
type SessionError struct {
	// Session that failed, for diagnostics
	Session *Session
	// Result of the invocation that exposed the failure, if any
	Result *process.Result
}

func (e *SessionError) Error() string {
	msg := "SSH session error"
	if e.Session != nil {
		msg = fmt.Sprintf("%s (%s)", msg, e.Session)
	}
	if e.Result != nil && e.Result.Stderr != "" {
		msg = fmt.Sprintf("%s: %s", msg, trimOutput(e.Result.Stderr))
	}
	return msg
}

// IsSessionError reports whether err is or wraps a *SessionError
func IsSessionError(err error) bool {
	var sessErr *SessionError
	return errors.As(err, &sessErr)
}
