package config

import (
	"fmt"
	"os"

	"github.com/yoanbernabeu/sshsession/internal/constants"
)

// GlobalConfig represents the global ~/.config/sshsession/config.yaml
type GlobalConfig struct {
	Servers     map[string]ServerConfig `yaml:"servers"`
	DefaultUser string                  `yaml:"default_user,omitempty"`
	DefaultPort int                     `yaml:"default_port,omitempty"`
	// ControlPath is the ssh ControlPath template shared by all servers
	ControlPath string `yaml:"control_path,omitempty"`
	// SSHBinary and SCPBinary pin the client executables. When empty, the
	// SSH environment variable and then PATH are used.
	SSHBinary  string `yaml:"ssh_binary,omitempty"`
	SCPBinary  string `yaml:"scp_binary,omitempty"`
	AskpassDir string `yaml:"askpass_dir,omitempty"`
}

// ServerConfig represents a configured server
type ServerConfig struct {
	Host    string `yaml:"host"`
	User    string `yaml:"user,omitempty"`
	Port    int    `yaml:"port,omitempty"`
	KeyPath string `yaml:"key_path,omitempty"`
	// PasswordEnv names the environment variable holding the password.
	// Passwords are never stored in the config file.
	PasswordEnv string `yaml:"password_env,omitempty"`
}

// DefaultGlobalConfig returns a default global configuration
func DefaultGlobalConfig() *GlobalConfig {
	return &GlobalConfig{
		Servers:     make(map[string]ServerConfig),
		DefaultPort: constants.DefaultSSHPort,
		ControlPath: constants.DefaultControlPath,
	}
}

// Password returns the password referenced by PasswordEnv, or "" when the
// server does not use password authentication.
func (s ServerConfig) Password() (string, error) {
	if s.PasswordEnv == "" {
		return "", nil
	}
	password := os.Getenv(s.PasswordEnv)
	if password == "" {
		return "", fmt.Errorf("environment variable %s is not set", s.PasswordEnv)
	}
	return password, nil
}

// Endpoint returns user@host:port as far as it is known
func (s ServerConfig) Endpoint() string {
	endpoint := s.Host
	if s.User != "" {
		endpoint = s.User + "@" + endpoint
	}
	if s.Port != 0 {
		endpoint = fmt.Sprintf("%s:%d", endpoint, s.Port)
	}
	return endpoint
}
