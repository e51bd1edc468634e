package ssh

import (
	"context"

	"github.com/yoanbernabeu/sshsession/internal/process"
)

// Executor abstracts a remote session for testability. *Session implements it.
type Executor interface {
	Connect(ctx context.Context) (bool, error)
	Check(ctx context.Context) bool
	Cmd(ctx context.Context, command string, ignoreStatus bool) (*process.Result, error)
	Upload(ctx context.Context, localPath, remotePath string) error
	Download(ctx context.Context, remotePath, localPath string) error
	RawCommandString(command string) string
	Quit(ctx context.Context) bool
}

var _ Executor = (*Session)(nil)
