package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yoanbernabeu/sshsession/internal/config"
	"github.com/yoanbernabeu/sshsession/internal/security"
	"github.com/yoanbernabeu/sshsession/internal/ssh"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Manage configured servers",
	Long:  `Commands to add, list, configure, and remove servers.`,
}

var serverAddCmd = &cobra.Command{
	Use:   "add <name> <[user@]host>",
	Short: "Add a new server",
	Long: `Adds a new server to the global configuration and tests the connection.
When the connection fails, the keys found in ~/.ssh are tried in turn.

Passwords are never stored: --password-env names the environment variable
that holds it.

Example:
  sshsession server add production deploy@my-vps.com
  sshsession server add staging user@staging.example.com --port 2222
  sshsession server add legacy root@10.0.0.5 --password-env LEGACY_SSH_PASSWORD`,
	Args: cobra.ExactArgs(2),
	RunE: runServerAdd,
}

var serverListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured servers",
	Args:  cobra.NoArgs,
	RunE:  runServerList,
}

var serverRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Remove a server",
	Args:  cobra.ExactArgs(1),
	RunE:  runServerRemove,
}

var serverSetCmd = &cobra.Command{
	Use:   "set <server> <key> <value>",
	Short: "Set a server configuration value",
	Long: `Sets a configuration value for a server.

Available keys:
  user          Remote user
  port          SSH port
  key_path      Private key file (must not be passphrase protected)
  password_env  Environment variable holding the password

Examples:
  sshsession server set prod port 2222
  sshsession server set prod key_path ~/.ssh/id_ed25519`,
	Args: cobra.ExactArgs(3),
	RunE: runServerSet,
}

var (
	serverPort        int
	serverKeyPath     string
	serverPasswordEnv string
	skipSSHTest       bool
)

func init() {
	rootCmd.AddCommand(serverCmd)
	serverCmd.AddCommand(serverAddCmd)
	serverCmd.AddCommand(serverListCmd)
	serverCmd.AddCommand(serverRemoveCmd)
	serverCmd.AddCommand(serverSetCmd)

	serverAddCmd.Flags().IntVarP(&serverPort, "port", "p", 0, "SSH port (default: default_port from config)")
	serverAddCmd.Flags().StringVarP(&serverKeyPath, "key", "k", "", "SSH private key path")
	serverAddCmd.Flags().StringVar(&serverPasswordEnv, "password-env", "", "Environment variable holding the SSH password")
	serverAddCmd.Flags().BoolVar(&skipSSHTest, "skip-test", false, "Skip SSH connection test")
}

// parseHostSpec splits [user@]host
func parseHostSpec(spec string) (user, host string) {
	if i := strings.LastIndex(spec, "@"); i >= 0 {
		return spec[:i], spec[i+1:]
	}
	return "", spec
}

// checkKey refuses keys that cannot be used by a detached master
func checkKey(path string) (*ssh.KeyInfo, error) {
	info, err := ssh.ValidateKey(path)
	if err != nil {
		return nil, err
	}
	if info.IsEncrypted {
		return nil, fmt.Errorf("key %s is passphrase protected, which is not supported", path)
	}
	return info, nil
}

func runServerAdd(cmd *cobra.Command, args []string) error {
	name := args[0]

	// Validate server name
	if err := security.ValidateServerName(name); err != nil {
		return fmt.Errorf("invalid server name: %w", err)
	}

	user, host := parseHostSpec(args[1])

	// Load global config
	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return fmt.Errorf("failed to load global config: %w", err)
	}

	serverCfg := config.ServerConfig{
		Host:        host,
		User:        user,
		Port:        serverPort,
		KeyPath:     serverKeyPath,
		PasswordEnv: serverPasswordEnv,
	}

	if serverCfg.KeyPath != "" {
		info, err := checkKey(serverCfg.KeyPath)
		if err != nil {
			return fmt.Errorf("invalid key: %w", err)
		}
		PrintVerbose("Using %s key %s (%s)", info.Type, info.Name, info.Fingerprint)
	}

	if err := globalCfg.AddServer(name, serverCfg); err != nil {
		return fmt.Errorf("invalid server configuration: %w", err)
	}

	if err := config.SaveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	PrintSuccess("Added server '%s' (%s)", name, serverCfg.Endpoint())

	if skipSSHTest {
		PrintInfo("Skipping SSH connection test (--skip-test)")
		return nil
	}

	if err := testAndConfigureSSH(cmd.Context(), name, globalCfg); err != nil {
		PrintWarning("SSH connection could not be established: %v", err)
		PrintInfo("You can test the connection manually with: sshsession connect %s", name)
	}

	return nil
}

// tryConnect opens and closes a master connection with server
func tryConnect(ctx context.Context, server *config.ServerConfig, globalCfg *config.GlobalConfig) error {
	password, err := resolvePassword(server, askPassword)
	if err != nil {
		return err
	}

	session, err := newExecutor(server, globalCfg, password)
	if err != nil {
		return err
	}

	ok, err := session.Connect(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return ssh.ErrNotConnected
	}
	session.Quit(ctx)
	return nil
}

// testAndConfigureSSH tests the SSH connection and tries alternative keys if needed
func testAndConfigureSSH(ctx context.Context, name string, globalCfg *config.GlobalConfig) error {
	PrintInfo("Testing SSH connection...")

	serverCfg, err := globalCfg.GetServer(name)
	if err != nil {
		return err
	}

	if err := tryConnect(ctx, serverCfg, globalCfg); err == nil {
		PrintSuccess("SSH connection successful")
		return nil
	}

	if serverCfg.PasswordEnv != "" {
		return fmt.Errorf("password authentication failed")
	}

	PrintWarning("Connection failed with the configured key")

	keyDir, err := ssh.DefaultKeyDir()
	if err != nil {
		return err
	}
	keys, err := ssh.DiscoverKeys(keyDir)
	if err != nil {
		return fmt.Errorf("failed to discover SSH keys: %w", err)
	}

	// Filter out encrypted keys and already tried key
	var availableKeys []ssh.KeyInfo
	for _, key := range keys {
		if key.IsEncrypted {
			PrintVerbose("Skipping encrypted key: %s", key.Name)
			continue
		}
		if serverCfg.KeyPath != "" && key.Path == serverCfg.KeyPath {
			continue
		}
		availableKeys = append(availableKeys, key)
	}

	if len(availableKeys) == 0 {
		return fmt.Errorf("no SSH keys available to try")
	}

	var workingKey *ssh.KeyInfo
	if IsInteractive() {
		workingKey = interactiveKeySelection(ctx, serverCfg, globalCfg, availableKeys)
	} else {
		workingKey = autoTryKeys(ctx, serverCfg, globalCfg, availableKeys)
	}

	if workingKey == nil {
		return fmt.Errorf("no working SSH key found")
	}

	stored := globalCfg.Servers[name]
	stored.KeyPath = workingKey.Path
	globalCfg.Servers[name] = stored

	if err := config.SaveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	PrintSuccess("Updated server config with key: %s", workingKey.Path)
	return nil
}

func withKey(server *config.ServerConfig, path string) *config.ServerConfig {
	candidate := *server
	candidate.KeyPath = path
	return &candidate
}

// interactiveKeySelection prompts the user to select an SSH key
func interactiveKeySelection(ctx context.Context, serverCfg *config.ServerConfig, globalCfg *config.GlobalConfig, keys []ssh.KeyInfo) *ssh.KeyInfo {
	options := make([]string, len(keys))
	for i, key := range keys {
		options[i] = fmt.Sprintf("%s (%s)", key.Name, key.Type)
	}

	fmt.Println()
	PrintInfo("Available SSH keys:")
	choice := PromptSelect("Select SSH key to use:", options)
	if choice < 0 {
		return nil
	}

	selectedKey := &keys[choice]
	PrintInfo("Testing with %s...", selectedKey.Path)

	if err := tryConnect(ctx, withKey(serverCfg, selectedKey.Path), globalCfg); err != nil {
		PrintError("Connection failed: %v", err)
		return nil
	}

	PrintSuccess("Connection successful!")
	return selectedKey
}

// autoTryKeys tries available keys in order
func autoTryKeys(ctx context.Context, serverCfg *config.ServerConfig, globalCfg *config.GlobalConfig, keys []ssh.KeyInfo) *ssh.KeyInfo {
	PrintInfo("Trying available SSH keys automatically...")

	for i := range keys {
		key := &keys[i]
		PrintVerbose("Trying %s...", key.Name)
		if err := tryConnect(ctx, withKey(serverCfg, key.Path), globalCfg); err == nil {
			PrintSuccess("SSH connection successful with %s", key.Name)
			return key
		}
	}

	return nil
}

func runServerList(cmd *cobra.Command, args []string) error {
	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	servers := globalCfg.ListServers()
	if len(servers) == 0 {
		PrintInfo("No servers configured")
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Add a server with:")
		fmt.Fprintln(out, "  sshsession server add <name> <[user@]host>")
		return nil
	}

	fmt.Fprintln(out, "Configured servers:")
	fmt.Fprintln(out)
	for _, name := range servers {
		server, _ := globalCfg.GetServer(name)
		fmt.Fprintf(out, "  %s\n", name)
		fmt.Fprintf(out, "    Host: %s\n", server.Endpoint())
		if server.KeyPath != "" {
			fmt.Fprintf(out, "    Key:  %s\n", server.KeyPath)
		}
		if server.PasswordEnv != "" {
			fmt.Fprintf(out, "    Password: $%s\n", server.PasswordEnv)
		}
		fmt.Fprintln(out)
	}

	return nil
}

func runServerRemove(cmd *cobra.Command, args []string) error {
	name := args[0]

	// Validate server name
	if err := security.ValidateServerName(name); err != nil {
		return fmt.Errorf("invalid server name: %w", err)
	}

	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return err
	}

	if err := globalCfg.RemoveServer(name); err != nil {
		return err
	}

	if err := config.SaveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	PrintSuccess("Removed server '%s'", name)
	return nil
}

func runServerSet(cmd *cobra.Command, args []string) error {
	serverName := args[0]
	key := args[1]
	value := args[2]

	// Validate server name
	if err := security.ValidateServerName(serverName); err != nil {
		return fmt.Errorf("invalid server name: %w", err)
	}

	globalCfg, err := config.LoadGlobalConfig()
	if err != nil {
		return err
	}

	serverCfg, ok := globalCfg.Servers[serverName]
	if !ok {
		return fmt.Errorf("server '%s' not found", serverName)
	}

	switch key {
	case "user":
		serverCfg.User = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid port '%s'", value)
		}
		serverCfg.Port = port
	case "key_path":
		if value != "" {
			if _, err := checkKey(value); err != nil {
				return fmt.Errorf("invalid key: %w", err)
			}
		}
		serverCfg.KeyPath = value
	case "password_env":
		serverCfg.PasswordEnv = value
	default:
		return fmt.Errorf("unknown key '%s' (available: user, port, key_path, password_env)", key)
	}

	if errors := config.ValidateServerConfig(&serverCfg); errors.HasErrors() {
		return fmt.Errorf("invalid server configuration: %w", errors)
	}

	globalCfg.Servers[serverName] = serverCfg
	if err := config.SaveGlobalConfig(globalCfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	PrintSuccess("Set %s=%s for server '%s'", key, value, serverName)
	return nil
}
