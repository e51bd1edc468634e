package constants

// Client binaries
const (
	SSHBinary = "ssh"
	SCPBinary = "scp"
	// EnvSSHBinary overrides the ssh executable, e.g. SSH="ssh -F ~/.ssh/alt_config"
	EnvSSHBinary = "SSH"
)

// Control socket defaults
const (
	// DefaultControlPath is handed to ssh unexpanded; ssh substitutes the
	// remote user (%r), host (%h) and port (%p).
	DefaultControlPath = "~/.ssh/sshsession-master-%r@%h:%p"
	DefaultSSHPort     = 22
	LockSuffix         = ".lock"
)

// Exit status conventions
const (
	// TransportFailureStatus is what ssh exits with when the connection
	// itself failed rather than the remote command.
	TransportFailureStatus = 255
)

// Askpass helper
const (
	AskpassPattern = "sshsession-askpass-*"
	AskpassMode    = 0500
	// AskpassDisplay only needs to be non-empty; older ssh clients ignore
	// SSH_ASKPASS without a DISPLAY.
	AskpassDisplay = "sshsession:0"
)

// CLI environment
const (
	EnvServer   = "SSHSESSION_SERVER"
	EnvPassword = "SSHSESSION_PASSWORD"
)
