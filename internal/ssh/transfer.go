package ssh

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/yoanbernabeu/sshsession/internal/process"
	"github.com/yoanbernabeu/sshsession/internal/security"
)

// Upload copies a local file to the remote host over the control socket
func (s *Session) Upload(ctx context.Context, localPath, remotePath string) error {
	if _, err := os.Stat(localPath); err != nil {
		return fmt.Errorf("failed to stat local file: %w", err)
	}
	if err := security.ValidateRemotePath(remotePath); err != nil {
		return fmt.Errorf("invalid remote path: %w", err)
	}

	dir := filepath.Dir(remotePath)
	if dir != "." && dir != "/" {
		if err := s.MakeDir(ctx, dir); err != nil {
			return fmt.Errorf("failed to create remote directory: %w", err)
		}
	}

	return s.copy(ctx, localPath, s.remoteSpec(remotePath))
}

// Download copies a remote file to the local filesystem
func (s *Session) Download(ctx context.Context, remotePath, localPath string) error {
	if err := security.ValidateRemotePath(remotePath); err != nil {
		return fmt.Errorf("invalid remote path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return fmt.Errorf("failed to create local directory: %w", err)
	}

	return s.copy(ctx, s.remoteSpec(remotePath), localPath)
}

// MakeDir creates a remote directory and its parents
func (s *Session) MakeDir(ctx context.Context, remotePath string) error {
	_, err := s.Cmd(ctx, "mkdir -p "+security.ShellEscape(remotePath), false)
	return err
}

func (s *Session) copy(ctx context.Context, src, dst string) error {
	exe, err := s.resolveSCP()
	if err != nil {
		return err
	}
	if err := s.validate(); err != nil {
		return err
	}

	cmd := process.Command{Args: s.scpArgs(exe, src, dst)}
	s.log.WithField("src", src).WithField("dst", dst).Debug("Copying file")

	result, err := s.runner.Run(ctx, cmd, false)
	return s.classify(fmt.Sprintf("scp %s %s", src, dst), result, err)
}
