package ssh

import (
	"context"
	"fmt"
	"time"

	"github.com/yoanbernabeu/sshsession/internal/process"
	"github.com/yoanbernabeu/sshsession/internal/security"
)

// Connect makes sure a master connection for this endpoint is alive,
// creating one if the control socket does not answer.
//
// It reports false for every ordinary failure: missing client binary,
// unreachable host, rejected credentials. An error is returned only when
// the askpass helper could not be created or removed.
func (s *Session) Connect(ctx context.Context) (bool, error) {
	exe, err := s.resolveSSH()
	if err != nil {
		s.log.WithError(err).Debug("SSH client unavailable, not connecting")
		return false, nil
	}
	if err := s.validate(); err != nil {
		s.log.WithError(err).Warn("Invalid session parameters, not connecting")
		return false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.check(ctx, exe) {
		s.adoptExisting()
		return true, nil
	}

	unlock := s.lockEndpoint(ctx)
	defer unlock()

	// Another session may have created the master while we waited for the lock
	if s.check(ctx, exe) {
		s.adoptExisting()
		return true, nil
	}

	conn, err := s.startMaster(ctx, exe)
	if err != nil {
		return false, err
	}
	if conn == nil {
		return false, nil
	}
	s.conn = conn

	return s.check(ctx, exe), nil
}

// Check reports whether the control socket answers
func (s *Session) Check(ctx context.Context) bool {
	exe, err := s.resolveSSH()
	if err != nil {
		return false
	}
	return s.check(ctx, exe)
}

// Quit asks the master connection to exit and reports whether it did.
// The session is disconnected afterwards either way. Every Session sharing
// the same control socket loses its master too.
func (s *Session) Quit(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.conn = nil }()

	exe, err := s.resolveSSH()
	if err != nil {
		return false
	}
	ok := s.masterCommand(ctx, exe, "exit")
	s.log.WithField("ok", ok).Debug("Requested master exit")
	return ok
}

// Close implements io.Closer. Closing a session that is not connected is a no-op.
func (s *Session) Close() error {
	if !s.Connected() {
		return nil
	}
	if !s.Quit(context.Background()) {
		return ErrQuit
	}
	return nil
}

// WithSession connects s, runs fn and quits s on every exit path.
func WithSession(ctx context.Context, s *Session, fn func(*Session) error) error {
	defer s.Quit(context.WithoutCancel(ctx))

	ok, err := s.Connect(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, s)
	}
	return fn(s)
}

func (s *Session) check(ctx context.Context, exe Exe) bool {
	return s.masterCommand(ctx, exe, "check")
}

// masterCommand sends a control command (-O) to the master
func (s *Session) masterCommand(ctx context.Context, exe Exe, command string) bool {
	cmd := process.Command{Args: s.sshArgs(exe, s.defaultOptions(), []string{"-O", command})}
	result, err := s.runner.Run(ctx, cmd, true)
	if err != nil {
		s.log.WithError(err).WithField("control", command).Debug("Control command failed to run")
		return false
	}
	return result.ExitStatus == 0
}

// adoptExisting records a master found alive by the probe. A handle we
// already own is kept as is.
func (s *Session) adoptExisting() {
	if s.conn != nil {
		return
	}
	path, _ := s.ControlPath()
	s.conn = &Connection{ControlPath: path, Reused: true, EstablishedAt: time.Now()}
	s.log.Debug("Reusing live control socket")
}

// startMaster runs the bootstrap invocation that forks the background
// master. It returns a nil Connection when ssh exits non-zero.
func (s *Session) startMaster(ctx context.Context, exe Exe) (conn *Connection, err error) {
	cmd := process.Command{
		Args:   s.sshArgs(exe, s.masterOptions(), []string{"-n"}),
		Detach: true,
	}

	if s.password != "" {
		path, werr := writeAskpass(s.askpassLocation(), s.password)
		if werr != nil {
			return nil, fmt.Errorf("failed to create askpass helper: %w", werr)
		}
		s.log.WithField("askpass", path).Debug("Created askpass helper")
		cmd.Env = askpassEnv(path)

		defer func() {
			if rmErr := removeAskpass(path); rmErr != nil {
				conn, err = nil, rmErr
			}
		}()
	}

	s.log.WithField("command", security.SanitizeCommandForLog(cmd.String())).Debug("Starting master connection")

	result, runErr := s.runner.Run(ctx, cmd, true)
	if runErr != nil {
		s.log.WithError(runErr).Debug("Master connection could not be started")
		return nil, nil
	}
	if result.ExitStatus != 0 {
		s.log.WithField("exit_status", result.ExitStatus).Debug("Master connection failed")
		return nil, nil
	}

	path, _ := s.ControlPath()
	return &Connection{
		Pid:           result.Pid,
		ControlPath:   path,
		EstablishedAt: time.Now(),
	}, nil
}
