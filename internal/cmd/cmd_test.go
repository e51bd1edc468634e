package cmd

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	gossh "golang.org/x/crypto/ssh"

	"github.com/yoanbernabeu/sshsession/internal/config"
	"github.com/yoanbernabeu/sshsession/internal/process"
	"github.com/yoanbernabeu/sshsession/internal/ssh"
)

type executorCall struct {
	server   config.ServerConfig
	password string
}

// useMockExecutor replaces the session factory for the duration of the test
func useMockExecutor(t *testing.T, mock *ssh.MockExecutor) *[]executorCall {
	t.Helper()
	var calls []executorCall
	original := newExecutor
	newExecutor = func(server *config.ServerConfig, _ *config.GlobalConfig, password string) (ssh.Executor, error) {
		calls = append(calls, executorCall{server: *server, password: password})
		return mock, nil
	}
	t.Cleanup(func() { newExecutor = original })
	return &calls
}

func resetFlags() {
	verbose = false
	yesFlag = true
	askPassword = false
	quitAfter = false
	serverPort = 0
	serverKeyPath = ""
	serverPasswordEnv = ""
	skipSSHTest = false
}

// runCLI executes the root command against a private config file
func runCLI(t *testing.T, cfgPath string, args ...string) (string, error) {
	t.Helper()
	resetFlags()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		config.SetGlobalConfigPath("")
	})

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func newConfig(t *testing.T, servers map[string]config.ServerConfig) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	config.SetGlobalConfigPath(path)
	cfg := config.DefaultGlobalConfig()
	for name, server := range servers {
		cfg.Servers[name] = server
	}
	if err := config.SaveGlobalConfig(cfg); err != nil {
		t.Fatalf("failed to save config: %v", err)
	}
	return path
}

func loadConfig(t *testing.T, path string) *config.GlobalConfig {
	t.Helper()
	config.SetGlobalConfigPath(path)
	cfg, err := config.LoadGlobalConfig()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func writeTestKey(t *testing.T, passphrase string) string {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	var block *pem.Block
	if passphrase != "" {
		block, err = gossh.MarshalPrivateKeyWithPassphrase(priv, "", []byte(passphrase))
	} else {
		block, err = gossh.MarshalPrivateKey(priv, "")
	}
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	path := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(path, pem.EncodeToMemory(block), 0600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}
	return path
}

var prodServer = map[string]config.ServerConfig{
	"prod": {Host: "prod.example.com", User: "deploy"},
}

func TestServerCommands_RoundTrip(t *testing.T) {
	cfgPath := newConfig(t, nil)
	useMockExecutor(t, &ssh.MockExecutor{})

	if _, err := runCLI(t, cfgPath, "server", "add", "prod", "deploy@prod.example.com", "--port", "2222", "--skip-test"); err != nil {
		t.Fatalf("server add: %v", err)
	}
	if _, err := runCLI(t, cfgPath, "server", "add", "db", "10.0.0.5", "--password-env", "DB_PASSWORD", "--skip-test"); err != nil {
		t.Fatalf("server add: %v", err)
	}

	cfg := loadConfig(t, cfgPath)
	prod := cfg.Servers["prod"]
	if prod.Host != "prod.example.com" || prod.User != "deploy" || prod.Port != 2222 {
		t.Errorf("unexpected prod server %+v", prod)
	}
	if db := cfg.Servers["db"]; db.User != "" || db.PasswordEnv != "DB_PASSWORD" {
		t.Errorf("unexpected db server %+v", db)
	}

	out, err := runCLI(t, cfgPath, "server", "list")
	if err != nil {
		t.Fatalf("server list: %v", err)
	}
	for _, want := range []string{"prod", "deploy@prod.example.com:2222", "db", "$DB_PASSWORD"} {
		if !strings.Contains(out, want) {
			t.Errorf("server list output missing %q:\n%s", want, out)
		}
	}

	if _, err := runCLI(t, cfgPath, "server", "set", "prod", "port", "2200"); err != nil {
		t.Fatalf("server set: %v", err)
	}
	if got := loadConfig(t, cfgPath).Servers["prod"].Port; got != 2200 {
		t.Errorf("port after set = %d, want 2200", got)
	}

	if _, err := runCLI(t, cfgPath, "server", "remove", "db"); err != nil {
		t.Fatalf("server remove: %v", err)
	}
	if _, ok := loadConfig(t, cfgPath).Servers["db"]; ok {
		t.Error("db server still configured after remove")
	}
}

func TestServerAdd_Errors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"invalid name", []string{"server", "add", "bad name", "example.com", "--skip-test"}},
		{"option-like host", []string{"server", "add", "evil", "-oProxyCommand=id", "--skip-test"}},
		{"duplicate", []string{"server", "add", "prod", "other.example.com", "--skip-test"}},
		{"missing key", []string{"server", "add", "new", "example.com", "--key", "/nonexistent/id_rsa", "--skip-test"}},
		{"bad password env", []string{"server", "add", "new", "example.com", "--password-env", "NOT VALID", "--skip-test"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := newConfig(t, prodServer)
			if _, err := runCLI(t, cfgPath, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestServerAdd_Keys(t *testing.T) {
	t.Run("valid key", func(t *testing.T) {
		cfgPath := newConfig(t, nil)
		key := writeTestKey(t, "")
		if _, err := runCLI(t, cfgPath, "server", "add", "prod", "root@example.com", "--key", key, "--skip-test"); err != nil {
			t.Fatalf("server add: %v", err)
		}
		if got := loadConfig(t, cfgPath).Servers["prod"].KeyPath; got != key {
			t.Errorf("KeyPath = %q, want %q", got, key)
		}
	})

	t.Run("encrypted key refused", func(t *testing.T) {
		cfgPath := newConfig(t, nil)
		key := writeTestKey(t, "s3cret")
		_, err := runCLI(t, cfgPath, "server", "add", "prod", "root@example.com", "--key", key, "--skip-test")
		if err == nil || !strings.Contains(err.Error(), "passphrase") {
			t.Errorf("expected passphrase error, got %v", err)
		}
		if _, ok := loadConfig(t, cfgPath).Servers["prod"]; ok {
			t.Error("server must not be saved with an encrypted key")
		}
	})
}

func TestServerAdd_TestsConnection(t *testing.T) {
	cfgPath := newConfig(t, nil)
	mock := &ssh.MockExecutor{QuitResult: true}
	calls := useMockExecutor(t, mock)

	if _, err := runCLI(t, cfgPath, "server", "add", "prod", "root@example.com"); err != nil {
		t.Fatalf("server add: %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("expected one session, got %d", len(*calls))
	}
	if (*calls)[0].server.Port != 22 {
		t.Errorf("expected default port applied, got %d", (*calls)[0].server.Port)
	}
	if mock.Quits != 1 {
		t.Errorf("test connection must be closed, got %d quits", mock.Quits)
	}
}

func TestServerSet_Errors(t *testing.T) {
	for _, args := range [][]string{
		{"server", "set", "prod", "color", "blue"},
		{"server", "set", "prod", "port", "abc"},
		{"server", "set", "prod", "port", "70000"},
		{"server", "set", "missing", "port", "22"},
		{"server", "set", "prod", "user", "-lroot"},
	} {
		t.Run(strings.Join(args[2:], " "), func(t *testing.T) {
			cfgPath := newConfig(t, prodServer)
			if _, err := runCLI(t, cfgPath, args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestExec(t *testing.T) {
	tests := []struct {
		name     string
		result   *process.Result
		err      error
		wantOut  string
		wantCode int
		wantErr  bool
	}{
		{
			name:    "success",
			result:  &process.Result{Stdout: "hello\n"},
			wantOut: "hello\n",
		},
		{
			name:     "remote failure",
			result:   &process.Result{ExitStatus: 3, Stdout: "partial\n", Stderr: "boom\n"},
			wantOut:  "partial\nboom\n",
			wantCode: 3,
			wantErr:  true,
		},
		{
			name:    "transport failure",
			result:  &process.Result{ExitStatus: 255},
			err:     &ssh.SessionError{Result: &process.Result{ExitStatus: 255}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := newConfig(t, prodServer)
			mock := &ssh.MockExecutor{
				CmdFunc: func(_ context.Context, command string, ignoreStatus bool) (*process.Result, error) {
					if !ignoreStatus {
						t.Error("exec must collect the exit status itself")
					}
					return tt.result, tt.err
				},
			}
			useMockExecutor(t, mock)

			out, err := runCLI(t, cfgPath, "exec", "prod", "ls", "-la", "/var/log")
			if (err != nil) != tt.wantErr {
				t.Fatalf("exec error = %v, wantErr %v", err, tt.wantErr)
			}
			if out != tt.wantOut {
				t.Errorf("output = %q, want %q", out, tt.wantOut)
			}
			if len(mock.Commands) != 1 || mock.Commands[0] != "ls -la /var/log" {
				t.Errorf("unexpected remote commands %q", mock.Commands)
			}

			var exitErr *ExitError
			if tt.wantCode != 0 {
				if !errors.As(err, &exitErr) || exitErr.Code != tt.wantCode {
					t.Errorf("expected exit code %d, got %v", tt.wantCode, err)
				}
			}
			if tt.err != nil && !ssh.IsSessionError(err) {
				t.Errorf("expected session error, got %v", err)
			}
			if mock.Quits != 0 {
				t.Error("master must stay up without --quit")
			}
		})
	}
}

func TestExec_Quit(t *testing.T) {
	cfgPath := newConfig(t, prodServer)
	mock := &ssh.MockExecutor{QuitResult: true}
	useMockExecutor(t, mock)

	if _, err := runCLI(t, cfgPath, "exec", "--quit", "prod", "uptime"); err != nil {
		t.Fatalf("exec: %v", err)
	}
	if mock.Quits != 1 {
		t.Errorf("expected master to be stopped, got %d quits", mock.Quits)
	}
}

func TestConnectCheckQuit(t *testing.T) {
	cfgPath := newConfig(t, prodServer)

	t.Run("connect", func(t *testing.T) {
		useMockExecutor(t, &ssh.MockExecutor{})
		if _, err := runCLI(t, cfgPath, "connect", "prod"); err != nil {
			t.Errorf("connect: %v", err)
		}
	})

	t.Run("connect failure", func(t *testing.T) {
		useMockExecutor(t, &ssh.MockExecutor{
			ConnectFunc: func(context.Context) (bool, error) { return false, nil },
		})
		_, err := runCLI(t, cfgPath, "connect", "prod")
		if !errors.Is(err, ssh.ErrNotConnected) {
			t.Errorf("connect error = %v, want ErrNotConnected", err)
		}
	})

	t.Run("connect from environment", func(t *testing.T) {
		t.Setenv("SSHSESSION_SERVER", "prod")
		calls := useMockExecutor(t, &ssh.MockExecutor{})
		if _, err := runCLI(t, cfgPath, "connect"); err != nil {
			t.Errorf("connect: %v", err)
		}
		if len(*calls) != 1 || (*calls)[0].server.Host != "prod.example.com" {
			t.Errorf("unexpected sessions %+v", *calls)
		}
	})

	t.Run("no server", func(t *testing.T) {
		t.Setenv("SSHSESSION_SERVER", "")
		useMockExecutor(t, &ssh.MockExecutor{})
		if _, err := runCLI(t, cfgPath, "connect"); err == nil {
			t.Error("expected error without a server")
		}
	})

	t.Run("check", func(t *testing.T) {
		useMockExecutor(t, &ssh.MockExecutor{CheckResult: true})
		if _, err := runCLI(t, cfgPath, "check", "prod"); err != nil {
			t.Errorf("check: %v", err)
		}
		useMockExecutor(t, &ssh.MockExecutor{CheckResult: false})
		if _, err := runCLI(t, cfgPath, "check", "prod"); !errors.Is(err, ssh.ErrNotConnected) {
			t.Errorf("check error = %v, want ErrNotConnected", err)
		}
	})

	t.Run("quit", func(t *testing.T) {
		mock := &ssh.MockExecutor{QuitResult: false}
		useMockExecutor(t, mock)
		if _, err := runCLI(t, cfgPath, "quit", "prod"); err != nil {
			t.Errorf("quit without master must not fail: %v", err)
		}
		if mock.Quits != 1 {
			t.Errorf("expected one quit, got %d", mock.Quits)
		}
	})

	t.Run("unknown server", func(t *testing.T) {
		useMockExecutor(t, &ssh.MockExecutor{})
		if _, err := runCLI(t, cfgPath, "connect", "staging"); err == nil {
			t.Error("expected error for unknown server")
		}
	})
}

func TestRaw(t *testing.T) {
	cfgPath := newConfig(t, prodServer)
	mock := &ssh.MockExecutor{}
	useMockExecutor(t, mock)

	out, err := runCLI(t, cfgPath, "raw", "prod", "tail", "-f", "/var/log/syslog")
	if err != nil {
		t.Fatalf("raw: %v", err)
	}
	if strings.TrimSpace(out) != "ssh mock tail -f /var/log/syslog" {
		t.Errorf("raw output = %q", out)
	}
	if len(mock.Commands) != 0 {
		t.Error("raw must not run anything")
	}
}

func TestPushPull(t *testing.T) {
	cfgPath := newConfig(t, prodServer)
	mock := &ssh.MockExecutor{}
	useMockExecutor(t, mock)

	if _, err := runCLI(t, cfgPath, "push", "prod", "app.tar.gz", "/srv/app.tar.gz"); err != nil {
		t.Fatalf("push: %v", err)
	}

	t.Setenv("SSHSESSION_SERVER", "prod")
	if _, err := runCLI(t, cfgPath, "pull", "/var/log/syslog", "syslog"); err != nil {
		t.Fatalf("pull: %v", err)
	}

	want := []string{"app.tar.gz -> /srv/app.tar.gz", "syslog <- /var/log/syslog"}
	if strings.Join(mock.Transfers, "|") != strings.Join(want, "|") {
		t.Errorf("transfers = %q, want %q", mock.Transfers, want)
	}
}

func TestPasswordResolution(t *testing.T) {
	cfgPath := newConfig(t, map[string]config.ServerConfig{
		"legacy": {Host: "10.0.0.5", User: "root", PasswordEnv: "LEGACY_SSH_PASSWORD"},
		"plain":  {Host: "10.0.0.6", User: "root"},
	})

	t.Run("password_env", func(t *testing.T) {
		t.Setenv("LEGACY_SSH_PASSWORD", "hunter2")
		calls := useMockExecutor(t, &ssh.MockExecutor{})
		if _, err := runCLI(t, cfgPath, "connect", "legacy"); err != nil {
			t.Fatalf("connect: %v", err)
		}
		if (*calls)[0].password != "hunter2" {
			t.Errorf("password = %q", (*calls)[0].password)
		}
	})

	t.Run("password_env unset", func(t *testing.T) {
		t.Setenv("LEGACY_SSH_PASSWORD", "")
		useMockExecutor(t, &ssh.MockExecutor{})
		if _, err := runCLI(t, cfgPath, "connect", "legacy"); err == nil {
			t.Error("expected error when the password variable is empty")
		}
	})

	t.Run("global password", func(t *testing.T) {
		t.Setenv("SSHSESSION_PASSWORD", "fallback")
		calls := useMockExecutor(t, &ssh.MockExecutor{})
		if _, err := runCLI(t, cfgPath, "connect", "plain"); err != nil {
			t.Fatalf("connect: %v", err)
		}
		if (*calls)[0].password != "fallback" {
			t.Errorf("password = %q", (*calls)[0].password)
		}
	})

	t.Run("prompt without terminal", func(t *testing.T) {
		t.Setenv("SSHSESSION_PASSWORD", "")
		useMockExecutor(t, &ssh.MockExecutor{})
		if _, err := runCLI(t, cfgPath, "--ask-password", "connect", "plain"); err == nil {
			t.Error("expected error when a password prompt is impossible")
		}
	})
}

func TestKeys(t *testing.T) {
	key := writeTestKey(t, "")
	cfgPath := newConfig(t, nil)

	out, err := runCLI(t, cfgPath, "keys", filepath.Dir(key))
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	for _, want := range []string{"NAME", "id_ed25519", "ed25519", "SHA256:"} {
		if !strings.Contains(out, want) {
			t.Errorf("keys output missing %q:\n%s", want, out)
		}
	}
}

func TestSessionOptions(t *testing.T) {
	global := config.DefaultGlobalConfig()
	global.SSHBinary = `/opt/ssh/bin/ssh -F "/etc/ssh/alt config"`
	global.ControlPath = "/run/sshsession/%r@%h:%p"
	server := &config.ServerConfig{Host: "example.com", User: "deploy", Port: 2222, KeyPath: "/keys/id_ed25519"}

	exec, err := newExecutor(server, global, "")
	if err != nil {
		t.Fatalf("newExecutor() unexpected error: %v", err)
	}

	line := exec.RawCommandString("uptime")
	for _, want := range []string{
		"/opt/ssh/bin/ssh -F '/etc/ssh/alt config'",
		"ControlPath=/run/sshsession/%r@%h:%p",
		"-l deploy -i /keys/id_ed25519 -p 2222",
		"example.com uptime",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("RawCommandString() = %q, missing %q", line, want)
		}
	}

	global.SSHBinary = `ssh "unterminated`
	if _, err := newExecutor(server, global, ""); err == nil {
		t.Error("expected error for an unparsable ssh_binary")
	}
}

func TestParseHostSpec(t *testing.T) {
	tests := []struct {
		spec, user, host string
	}{
		{"deploy@example.com", "deploy", "example.com"},
		{"example.com", "", "example.com"},
		{"root@fe80::1", "root", "fe80::1"},
	}
	for _, tt := range tests {
		user, host := parseHostSpec(tt.spec)
		if user != tt.user || host != tt.host {
			t.Errorf("parseHostSpec(%q) = %q, %q", tt.spec, user, host)
		}
	}
}

func TestParseSelection(t *testing.T) {
	tests := []struct {
		input    string
		expected int
	}{
		{"1\n", 0},
		{" 3 \n", 2},
		{"0\n", -1},
		{"\n", -1},
		{"4\n", -1},
		{"x\n", -1},
	}
	for _, tt := range tests {
		if got := parseSelection(tt.input, 3); got != tt.expected {
			t.Errorf("parseSelection(%q) = %d, want %d", tt.input, got, tt.expected)
		}
	}
}
