package config

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/yoanbernabeu/sshsession/internal/security"
)

// envNameRegex matches portable environment variable names
var envNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors holds multiple validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ValidateGlobalConfig validates the global configuration and every server in it
func ValidateGlobalConfig(config *GlobalConfig) ValidationErrors {
	var errors ValidationErrors

	if config.DefaultUser != "" {
		if err := security.ValidateUnixUser(config.DefaultUser); err != nil {
			errors = append(errors, ValidationError{Field: "default_user", Message: err.Error()})
		}
	}

	if err := security.ValidatePort(config.DefaultPort); err != nil {
		errors = append(errors, ValidationError{Field: "default_port", Message: err.Error()})
	}

	for field, value := range map[string]string{
		"ssh_binary": config.SSHBinary,
		"scp_binary": config.SCPBinary,
	} {
		if strings.HasPrefix(value, "-") {
			errors = append(errors, ValidationError{Field: field, Message: "must be a path, not an option"})
		}
	}

	names := make([]string, 0, len(config.Servers))
	for name := range config.Servers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prefix := "servers." + name
		if err := security.ValidateServerName(name); err != nil {
			errors = append(errors, ValidationError{Field: prefix, Message: err.Error()})
		}
		server := config.Servers[name]
		for _, e := range ValidateServerConfig(&server) {
			errors = append(errors, ValidationError{Field: prefix + "." + e.Field, Message: e.Message})
		}
	}

	return errors
}

// ValidateServerConfig validates a server configuration
func ValidateServerConfig(config *ServerConfig) ValidationErrors {
	var errors ValidationErrors

	if config.Host == "" {
		errors = append(errors, ValidationError{
			Field:   "host",
			Message: "server host is required",
		})
	} else if err := security.ValidateHost(config.Host); err != nil {
		errors = append(errors, ValidationError{Field: "host", Message: err.Error()})
	}

	if config.User != "" {
		if err := security.ValidateUnixUser(config.User); err != nil {
			errors = append(errors, ValidationError{Field: "user", Message: err.Error()})
		}
	}

	if err := security.ValidatePort(config.Port); err != nil {
		errors = append(errors, ValidationError{Field: "port", Message: err.Error()})
	}

	if strings.HasPrefix(config.KeyPath, "-") {
		errors = append(errors, ValidationError{
			Field:   "key_path",
			Message: "key path cannot start with '-'",
		})
	}

	if config.PasswordEnv != "" && !envNameRegex.MatchString(config.PasswordEnv) {
		errors = append(errors, ValidationError{
			Field:   "password_env",
			Message: "must be an environment variable name",
		})
	}

	return errors
}
