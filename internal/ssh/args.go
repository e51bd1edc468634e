package ssh

import (
	"strconv"
	"strings"
)

// sshOption is a "-o Key=Value" pair
type sshOption struct {
	Key   string
	Value string
}

// defaultOptions apply to every invocation. Host keys are accepted without
// confirmation; trust management is left to the ssh client configuration.
func (s *Session) defaultOptions() []sshOption {
	return []sshOption{
		{"StrictHostKeyChecking", "no"},
		{"UpdateHostKeys", "no"},
		{"ControlPath", s.controlPath},
	}
}

func (s *Session) masterOptions() []sshOption {
	opts := append(s.defaultOptions(),
		sshOption{"ControlMaster", "yes"},
		sshOption{"ControlPersist", "yes"},
		sshOption{"PubkeyAuthentication", yesNo(s.KeyPath != "")},
	)
	if s.password == "" {
		return append(opts, sshOption{"PasswordAuthentication", "no"})
	}
	return append(opts,
		sshOption{"PasswordAuthentication", "yes"},
		sshOption{"NumberOfPasswordPrompts", "1"},
	)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func dashO(opts []sshOption) []string {
	args := make([]string, 0, len(opts)*2)
	for _, o := range opts {
		args = append(args, "-o", o.Key+"="+o.Value)
	}
	return args
}

// sshArgs builds a complete ssh argv:
//
//	ssh [exe args] -o K=V... [-l user] [-i key] [-p port] flags... host [command]
func (s *Session) sshArgs(exe Exe, opts []sshOption, flags []string, command ...string) []string {
	args := []string{exe.Exe}
	args = append(args, exe.Args...)
	args = append(args, dashO(opts)...)
	if s.User != "" {
		args = append(args, "-l", s.User)
	}
	if s.KeyPath != "" {
		args = append(args, "-i", s.KeyPath)
	}
	if s.Port != 0 {
		args = append(args, "-p", strconv.Itoa(s.Port))
	}
	args = append(args, flags...)
	args = append(args, s.Host)
	return append(args, command...)
}

// scpArgs builds an scp argv. scp takes the port with -P and has no -l for
// the user (that is its bandwidth limit), so the user goes through -o.
func (s *Session) scpArgs(exe Exe, src, dst string) []string {
	args := []string{exe.Exe}
	args = append(args, exe.Args...)
	args = append(args, dashO(s.defaultOptions())...)
	if s.User != "" {
		args = append(args, "-o", "User="+s.User)
	}
	if s.KeyPath != "" {
		args = append(args, "-i", s.KeyPath)
	}
	if s.Port != 0 {
		args = append(args, "-P", strconv.Itoa(s.Port))
	}
	return append(args, "-q", src, dst)
}

// remoteSpec formats host:path for scp, bracketing IPv6 literals
func (s *Session) remoteSpec(path string) string {
	host := s.Host
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return host + ":" + path
}
