package ssh

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/yoanbernabeu/sshsession/internal/constants"
	"github.com/yoanbernabeu/sshsession/internal/process"
)

// Session represents one logical connection to one remote host. Commands
// are multiplexed through a master connection owned by the ssh client.
//
// Connect, Quit and Close may be called from several goroutines, but the
// relative ordering of concurrent Cmd calls is up to the caller.
type Session struct {
	Host     string
	Port     int
	User     string
	KeyPath  string
	password string

	controlPath string
	askpassDir  string
	sshExe      *Exe
	scpExe      *Exe
	lookPath    func(string) (string, error)
	runner      process.Runner
	log         *logrus.Entry

	mu   sync.Mutex
	conn *Connection
}

// Connection is the handle of an established master connection
type Connection struct {
	// Pid of the bootstrap process; with ControlPersist the long-lived
	// master is its forked child.
	Pid int
	// ControlPath is the expanded control socket path
	ControlPath string
	// Reused is true when the socket was already alive, possibly created by
	// another Session or process for the same endpoint.
	Reused        bool
	EstablishedAt time.Time
}

// Option configures a Session
type Option func(*Session)

// WithPort sets the remote port
func WithPort(port int) Option {
	return func(s *Session) { s.Port = port }
}

// WithUser sets the remote user
func WithUser(user string) Option {
	return func(s *Session) { s.User = user }
}

// WithKey sets the private key used for public key authentication
func WithKey(path string) Option {
	return func(s *Session) { s.KeyPath = path }
}

// WithPassword enables password authentication through an askpass helper
func WithPassword(password string) Option {
	return func(s *Session) { s.password = password }
}

// WithRunner replaces the process runner
func WithRunner(r process.Runner) Option {
	return func(s *Session) { s.runner = r }
}

// WithLookPath replaces the executable lookup (exec.LookPath by default)
func WithLookPath(fn func(string) (string, error)) Option {
	return func(s *Session) { s.lookPath = fn }
}

// WithBinary pins the ssh executable and its leading arguments,
// bypassing lookup and the SSH environment variable.
func WithBinary(exe string, args ...string) Option {
	return func(s *Session) { s.sshExe = &Exe{Exe: exe, Args: args} }
}

// WithScpBinary pins the scp executable
func WithScpBinary(exe string, args ...string) Option {
	return func(s *Session) { s.scpExe = &Exe{Exe: exe, Args: args} }
}

// WithControlPath sets the ControlPath template passed to ssh
func WithControlPath(template string) Option {
	return func(s *Session) {
		if template != "" {
			s.controlPath = template
		}
	}
}

// WithAskpassDir sets where askpass helpers are written (os.TempDir by default)
func WithAskpassDir(dir string) Option {
	return func(s *Session) { s.askpassDir = dir }
}

// WithLogger sets the logger used for debug output
func WithLogger(l *logrus.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l.WithField("host", s.Host)
		}
	}
}

// New creates a Session for host. Nothing is spawned until Connect.
func New(host string, opts ...Option) *Session {
	s := &Session{
		Host:        host,
		controlPath: constants.DefaultControlPath,
		lookPath:    exec.LookPath,
		runner:      process.NewExecRunner(),
		log:         logrus.WithField("host", host),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// String returns user@host:port as far as it is known
func (s *Session) String() string {
	endpoint := s.Host
	if s.User != "" {
		endpoint = s.User + "@" + endpoint
	}
	if s.Port != 0 {
		endpoint = fmt.Sprintf("%s:%d", endpoint, s.Port)
	}
	return endpoint
}

// HasPassword reports whether password authentication is configured
func (s *Session) HasPassword() bool {
	return s.password != ""
}

// Connection returns a copy of the current master handle, or nil
func (s *Session) Connection() *Connection {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	c := *s.conn
	return &c
}

// Connected reports whether Connect succeeded and Quit has not run since
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// ControlPathTemplate returns the unexpanded ControlPath handed to ssh
func (s *Session) ControlPathTemplate() string {
	return s.controlPath
}

// ControlPath returns the control socket path with ssh's tokens expanded
func (s *Session) ControlPath() (string, error) {
	return ExpandControlPath(s.controlPath, s.User, s.Host, s.Port)
}

func (s *Session) validate() error {
	if s.Host == "" {
		return fmt.Errorf("host cannot be empty")
	}
	if s.Host[0] == '-' {
		return fmt.Errorf("host %q would be parsed as an option", s.Host)
	}
	if s.User != "" && s.User[0] == '-' {
		return fmt.Errorf("user %q would be parsed as an option", s.User)
	}
	return nil
}

func (s *Session) askpassLocation() string {
	if s.askpassDir != "" {
		return s.askpassDir
	}
	return os.TempDir()
}
