package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/mattn/go-shellwords"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yoanbernabeu/sshsession/internal/config"
	"github.com/yoanbernabeu/sshsession/internal/constants"
	"github.com/yoanbernabeu/sshsession/internal/security"
	"github.com/yoanbernabeu/sshsession/internal/ssh"
)

// ServerConnection holds the session for a configured server along with its config.
type ServerConnection struct {
	Name    string
	Session ssh.Executor
	Server  *config.ServerConfig
	Global  *config.GlobalConfig
}

// newExecutor builds the session for a resolved server. Tests replace it.
var newExecutor = func(server *config.ServerConfig, global *config.GlobalConfig, password string) (ssh.Executor, error) {
	opts, err := sessionOptions(server, global, password)
	if err != nil {
		return nil, err
	}
	return ssh.New(server.Host, opts...), nil
}

// sessionOptions maps configuration onto session options
func sessionOptions(server *config.ServerConfig, global *config.GlobalConfig, password string) ([]ssh.Option, error) {
	opts := []ssh.Option{
		ssh.WithUser(server.User),
		ssh.WithPort(server.Port),
		ssh.WithKey(server.KeyPath),
		ssh.WithPassword(password),
		ssh.WithControlPath(global.ControlPath),
		ssh.WithAskpassDir(global.AskpassDir),
		ssh.WithLogger(logrus.StandardLogger()),
	}

	if global.SSHBinary != "" {
		exe, args, err := splitCommandLine(global.SSHBinary)
		if err != nil {
			return nil, fmt.Errorf("invalid ssh_binary: %w", err)
		}
		opts = append(opts, ssh.WithBinary(exe, args...))
	}
	if global.SCPBinary != "" {
		exe, args, err := splitCommandLine(global.SCPBinary)
		if err != nil {
			return nil, fmt.Errorf("invalid scp_binary: %w", err)
		}
		opts = append(opts, ssh.WithScpBinary(exe, args...))
	}

	return opts, nil
}

func splitCommandLine(line string) (string, []string, error) {
	fields, err := shellwords.Parse(line)
	if err != nil {
		return "", nil, err
	}
	if len(fields) == 0 {
		return "", nil, fmt.Errorf("empty command line")
	}
	return fields[0], fields[1:], nil
}

// serverNameFromArgs returns args[0], or SSHSESSION_SERVER when no server
// argument was given. rest holds the remaining arguments.
func serverNameFromArgs(args []string, minRest int) (name string, rest []string, err error) {
	if len(args) > minRest {
		return args[0], args[1:], nil
	}
	if env := os.Getenv(constants.EnvServer); env != "" {
		return env, args, nil
	}
	return "", nil, fmt.Errorf("no server given (pass it as first argument or set %s)", constants.EnvServer)
}

// serverArgs accepts an optional leading server argument followed by n
// required arguments.
func serverArgs(n int) cobra.PositionalArgs {
	return cobra.RangeArgs(n, n+1)
}

// resolvePassword returns the password for server: its password_env, then
// SSHSESSION_PASSWORD, then an interactive prompt when asked for.
func resolvePassword(server *config.ServerConfig, prompt bool) (string, error) {
	password, err := server.Password()
	if err != nil {
		return "", err
	}
	if password != "" {
		return password, nil
	}
	if env := os.Getenv(constants.EnvPassword); env != "" {
		return env, nil
	}
	if !prompt {
		return "", nil
	}
	if !IsInteractive() {
		return "", fmt.Errorf("password requested but stdin is not a terminal")
	}
	return PromptPassword(fmt.Sprintf("Password for %s: ", server.Endpoint()))
}

// OpenServer validates the server name, loads the global config and builds
// the session without connecting.
func OpenServer(serverName string) (*ServerConnection, error) {
	if err := security.ValidateServerName(serverName); err != nil {
		return nil, fmt.Errorf("invalid server name: %w", err)
	}

	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load global config: %w", err)
	}

	serverCfg, err := globalCfg.GetServer(serverName)
	if err != nil {
		return nil, err
	}

	password, err := resolvePassword(serverCfg, askPassword)
	if err != nil {
		return nil, err
	}

	session, err := newExecutor(serverCfg, globalCfg, password)
	if err != nil {
		return nil, err
	}

	return &ServerConnection{
		Name:    serverName,
		Session: session,
		Server:  serverCfg,
		Global:  globalCfg,
	}, nil
}

// ConnectToServer opens the server and makes sure its master connection is
// alive. The master outlives this process until 'sshsession quit'.
func ConnectToServer(ctx context.Context, serverName string) (*ServerConnection, error) {
	conn, err := OpenServer(serverName)
	if err != nil {
		return nil, err
	}

	PrintVerbose("Connecting to %s (%s)...", serverName, conn.Server.Endpoint())
	ok, err := conn.Session.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", serverName, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s (%s)", ssh.ErrNotConnected, serverName, conn.Server.Endpoint())
	}

	return conn, nil
}

var askPassword bool

var connectCmd = &cobra.Command{
	Use:   "connect [server]",
	Short: "Start the master connection",
	Long: `Starts a background master connection to the server, or reuses the
one that is already running. Later commands reuse it without
authenticating again.

Example:
  sshsession connect production
  sshsession connect production --ask-password`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConnect,
}

var checkCmd = &cobra.Command{
	Use:   "check [server]",
	Short: "Report whether the master connection is alive",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCheck,
}

var quitCmd = &cobra.Command{
	Use:   "quit [server]",
	Short: "Stop the master connection",
	Long: `Asks the master connection to exit. Every command sharing the
connection loses it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runQuit,
}

func init() {
	rootCmd.AddCommand(connectCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(quitCmd)

	rootCmd.PersistentFlags().BoolVarP(&askPassword, "ask-password", "P", false, "Prompt for the SSH password when none is configured")
}

func runConnect(cmd *cobra.Command, args []string) error {
	name, _, err := serverNameFromArgs(args, 0)
	if err != nil {
		return err
	}

	conn, err := ConnectToServer(cmd.Context(), name)
	if err != nil {
		return err
	}

	PrintSuccess("Connected to %s (%s)", name, conn.Server.Endpoint())
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	name, _, err := serverNameFromArgs(args, 0)
	if err != nil {
		return err
	}

	conn, err := OpenServer(name)
	if err != nil {
		return err
	}

	if !conn.Session.Check(cmd.Context()) {
		return fmt.Errorf("%w: %s", ssh.ErrNotConnected, name)
	}
	PrintSuccess("Master connection to %s is alive", name)
	return nil
}

func runQuit(cmd *cobra.Command, args []string) error {
	name, _, err := serverNameFromArgs(args, 0)
	if err != nil {
		return err
	}

	conn, err := OpenServer(name)
	if err != nil {
		return err
	}

	if !conn.Session.Quit(cmd.Context()) {
		PrintWarning("No master connection to %s was running", name)
		return nil
	}
	PrintSuccess("Closed master connection to %s", name)
	return nil
}
