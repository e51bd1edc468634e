package ssh

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/yoanbernabeu/sshsession/internal/constants"
	"github.com/yoanbernabeu/sshsession/internal/process"
	"github.com/yoanbernabeu/sshsession/internal/security"
)

// Cmd runs command on the remote host through the control socket.
//
// Exit status 255 means ssh itself failed and is always returned as a
// *SessionError. Any other non-zero status yields a *process.CmdError unless
// ignoreStatus is set, in which case the result carries the status. The
// result is returned alongside errors whenever the command ran.
func (s *Session) Cmd(ctx context.Context, command string, ignoreStatus bool) (*process.Result, error) {
	exe, err := s.resolveSSH()
	if err != nil {
		return nil, err
	}
	if err := s.validate(); err != nil {
		return nil, err
	}

	cmd := process.Command{Args: s.commandArgs(exe, command)}
	s.log.WithField("command", security.SanitizeCommandForLog(command)).Debug("Running remote command")

	result, err := s.runner.Run(ctx, cmd, ignoreStatus)
	return result, s.classify(command, result, err)
}

func (s *Session) classify(command string, result *process.Result, err error) error {
	var cmdErr *process.CmdError
	switch {
	case errors.As(err, &cmdErr):
		if cmdErr.ExitStatus() == constants.TransportFailureStatus {
			return &SessionError{Session: s, Result: cmdErr.Result}
		}
		cmdErr.AdditionalText = fmt.Sprintf("Command '%s' failed", command)
		return cmdErr
	case err != nil:
		return fmt.Errorf("failed to run command '%s': %w", command, err)
	case result != nil && result.ExitStatus == constants.TransportFailureStatus:
		return &SessionError{Session: s, Result: result}
	}
	return nil
}

// Output runs command and returns its trimmed stdout, failing on any
// non-zero exit status.
func (s *Session) Output(ctx context.Context, command string) (string, error) {
	result, err := s.Cmd(ctx, command, false)
	if err != nil {
		return "", err
	}
	return trimOutput(result.Stdout), nil
}

// RawCommand returns the argv Cmd would run for command. Most callers want
// Cmd; this is for driving the ssh process directly (interactive use,
// streaming, custom stdin).
func (s *Session) RawCommand(command string) []string {
	exe, err := s.resolveSSH()
	if err != nil {
		exe = Exe{Exe: constants.SSHBinary}
	}
	return s.commandArgs(exe, command)
}

// RawCommandString is RawCommand rendered as a shell command line
func (s *Session) RawCommandString(command string) string {
	return process.Command{Args: s.RawCommand(command)}.String()
}

func (s *Session) commandArgs(exe Exe, command string) []string {
	return s.sshArgs(exe, s.defaultOptions(), []string{"-q"}, command)
}

func trimOutput(s string) string {
	return strings.TrimSpace(s)
}
