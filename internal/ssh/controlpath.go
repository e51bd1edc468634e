package ssh

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"github.com/yoanbernabeu/sshsession/internal/constants"
)

// lockRetryDelay is how often a blocked creation lock is retried
const lockRetryDelay = 100 * time.Millisecond

// ExpandControlPath expands a ControlPath template the way ssh does for the
// tokens we rely on: ~, %r (remote user), %u (local user), %h, %p and %%.
// Unknown tokens are left untouched.
func ExpandControlPath(template, remoteUser, host string, port int) (string, error) {
	localUser := ""
	if strings.Contains(template, "%u") || (remoteUser == "" && strings.Contains(template, "%r")) {
		u, err := user.Current()
		if err != nil {
			return "", fmt.Errorf("cannot determine local user: %w", err)
		}
		localUser = u.Username
	}
	if remoteUser == "" {
		remoteUser = localUser
	}
	if port == 0 {
		port = constants.DefaultSSHPort
	}

	var b strings.Builder
	for i := 0; i < len(template); i++ {
		c := template[i]
		if c != '%' || i+1 == len(template) {
			b.WriteByte(c)
			continue
		}
		i++
		switch template[i] {
		case '%':
			b.WriteByte('%')
		case 'r':
			b.WriteString(remoteUser)
		case 'u':
			b.WriteString(localUser)
		case 'h':
			b.WriteString(host)
		case 'p':
			b.WriteString(strconv.Itoa(port))
		default:
			b.WriteByte('%')
			b.WriteByte(template[i])
		}
	}

	expanded := b.String()
	if expanded == "~" || strings.HasPrefix(expanded, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		expanded = filepath.Join(homeDir, strings.TrimPrefix(expanded, "~"))
	}
	return expanded, nil
}

// lockEndpoint serializes master creation for one (user, host, port) across
// processes. The returned function releases the lock. When the lock cannot
// be taken, creation proceeds unserialized and the probe/create race is left
// to ssh.
func (s *Session) lockEndpoint(ctx context.Context) func() {
	noop := func() {}

	path, err := s.ControlPath()
	if err != nil {
		s.log.WithError(err).Warn("Cannot expand control path, connecting without creation lock")
		return noop
	}
	lockPath := path + constants.LockSuffix

	// SECURITY: the socket directory holds live credentials, owner only
	if err := os.MkdirAll(filepath.Dir(lockPath), 0700); err != nil {
		s.log.WithError(err).Warn("Cannot create control socket directory, connecting without creation lock")
		return noop
	}

	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil || !locked {
		s.log.WithError(err).WithField("lock", lockPath).Warn("Creation lock unavailable, connecting without it")
		return noop
	}

	s.log.WithField("lock", lockPath).Debug("Acquired creation lock")
	return func() {
		if err := fl.Unlock(); err != nil {
			s.log.WithError(err).WithField("lock", lockPath).Warn("Failed to release creation lock")
		}
	}
}
