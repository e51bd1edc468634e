package ssh

import (
	"errors"
	"fmt"
	"os"

	"github.com/mattn/go-shellwords"

	"github.com/yoanbernabeu/sshsession/internal/constants"
)

// ErrClientNotFound is returned when the ssh (or scp) executable cannot be located
var ErrClientNotFound = errors.New("ssh client binary not found")

// Exe is a client executable plus arguments that always precede ours
type Exe struct {
	Exe  string
	Args []string
}

// resolveSSH locates the ssh client. The SSH environment variable may hold
// a full command line such as "ssh -F /path/to/config".
func (s *Session) resolveSSH() (Exe, error) {
	if s.sshExe != nil {
		return *s.sshExe, nil
	}

	exe := Exe{Exe: constants.SSHBinary}
	if env := os.Getenv(constants.EnvSSHBinary); env != "" {
		fields, err := shellwords.Parse(env)
		switch {
		case err != nil:
			s.log.WithError(err).Warnf("Failed to split %s variable into shell tokens, falling back to %q",
				constants.EnvSSHBinary, constants.SSHBinary)
		case len(fields) > 0:
			exe.Exe = fields[0]
			exe.Args = fields[1:]
		}
	}

	return s.locate(exe)
}

func (s *Session) resolveSCP() (Exe, error) {
	if s.scpExe != nil {
		return *s.scpExe, nil
	}
	return s.locate(Exe{Exe: constants.SCPBinary})
}

func (s *Session) locate(exe Exe) (Exe, error) {
	path, err := s.lookPath(exe.Exe)
	if err != nil {
		return Exe{}, fmt.Errorf("%w: %s: %v", ErrClientNotFound, exe.Exe, err)
	}
	exe.Exe = path
	return exe, nil
}
