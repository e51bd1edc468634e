package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/yoanbernabeu/sshsession/internal/config"
	"github.com/yoanbernabeu/sshsession/internal/security"
)

var (
	// Version is set at build time
	Version = "dev"

	// Global flags
	verbose bool
	cfgFile string
	yesFlag bool // CI/CD: never prompt
)

var rootCmd = &cobra.Command{
	Use:   "sshsession",
	Short: "Run commands on remote hosts over multiplexed SSH",
	Long: `sshsession drives the OpenSSH client with a persistent control master,
so repeated commands against the same host reuse one authenticated
connection.

Quick start:
  sshsession server add prod deploy@my-vps.com   # Register a server
  sshsession connect prod                        # Start the master connection
  sshsession exec prod uptime                    # Run commands through it
  sshsession quit prod                           # Stop the master

Commands:
  connect       Start (or reuse) the master connection
  check         Report whether the master connection is alive
  exec          Run a command through the master connection
  raw           Print the ssh command line for a remote command
  quit          Stop the master connection
  push          Copy a local file to the server
  pull          Copy a file from the server
  server        Manage configured servers
  keys          List local SSH private keys

Environment Variables:
  SSH                    ssh client command line (e.g. "ssh -F ~/.ssh/alt")
  SSHSESSION_SERVER      Default server name
  SSHSESSION_PASSWORD    Password for servers without password_env`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.SetGlobalConfigPath(cfgFile)
		if verbose {
			logrus.SetLevel(logrus.DebugLevel)
		}
	},
}

// Execute runs the root command and returns the process exit code
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	PrintError("%v", err)
	return 1
}

// GetRootCmd returns the root command, for documentation generation
func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed logs")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: $XDG_CONFIG_HOME/sshsession/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&yesFlag, "yes", "y", false, "Never prompt (CI/CD mode)")

	rootCmd.SetVersionTemplate(`sshsession {{.Version}}
`)
}

// ExitError carries the exit status of a remote command to the process exit code
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("remote command exited with status %d", e.Code)
}

// IsVerbose returns true if verbose mode is enabled
func IsVerbose() bool {
	return verbose
}

// IsYesMode returns true if --yes flag is set (CI/CD mode)
func IsYesMode() bool {
	return yesFlag
}

// PrintError prints a formatted error message
func PrintError(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "❌ "+msg+"\n", args...)
}

// PrintSuccess prints a success message
func PrintSuccess(msg string, args ...interface{}) {
	fmt.Printf("✅ "+msg+"\n", args...)
}

// PrintInfo prints an info message
func PrintInfo(msg string, args ...interface{}) {
	fmt.Printf("ℹ️  "+msg+"\n", args...)
}

// PrintWarning prints a warning message
func PrintWarning(msg string, args ...interface{}) {
	fmt.Printf("⚠️  "+msg+"\n", args...)
}

// PrintVerbose prints a message only in verbose mode
func PrintVerbose(msg string, args ...interface{}) {
	if verbose {
		fmt.Printf("   "+msg+"\n", args...)
	}
}

// PrintVerboseCommand prints a command in verbose mode with sensitive values masked
func PrintVerboseCommand(command string) {
	if verbose {
		fmt.Printf("   Running: %s\n", security.SanitizeCommandForLog(command))
	}
}
