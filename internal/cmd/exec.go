package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yoanbernabeu/sshsession/internal/ssh"
)

var execCmd = &cobra.Command{
	Use:   "exec <server> <command>",
	Short: "Run a command through the master connection",
	Long: `Runs a command on the server through its master connection, starting
the connection first if needed. The command's exit status becomes the exit
status of sshsession.

Example:
  sshsession exec production uptime
  sshsession exec production 'ls -la /var/log'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runExec,
}

var rawCmd = &cobra.Command{
	Use:   "raw <server> <command>",
	Short: "Print the ssh command line for a remote command",
	Long: `Prints the ssh invocation that exec would run, for use in scripts or
interactive sessions that need the ssh process itself.

Example:
  sshsession raw production 'tail -f /var/log/syslog'`,
	Args: cobra.MinimumNArgs(2),
	RunE: runRaw,
}

var pushCmd = &cobra.Command{
	Use:   "push [server] <local> <remote>",
	Short: "Copy a local file to the server",
	Args:  serverArgs(2),
	RunE:  runPush,
}

var pullCmd = &cobra.Command{
	Use:   "pull [server] <remote> <local>",
	Short: "Copy a file from the server",
	Args:  serverArgs(2),
	RunE:  runPull,
}

var quitAfter bool

func init() {
	rootCmd.AddCommand(execCmd)
	rootCmd.AddCommand(rawCmd)
	rootCmd.AddCommand(pushCmd)
	rootCmd.AddCommand(pullCmd)

	execCmd.Flags().BoolVar(&quitAfter, "quit", false, "Stop the master connection afterwards")
	execCmd.Flags().SetInterspersed(false)
	rawCmd.Flags().SetInterspersed(false)
}

func runExec(cmd *cobra.Command, args []string) error {
	serverName := args[0]
	command := strings.Join(args[1:], " ")

	conn, err := ConnectToServer(cmd.Context(), serverName)
	if err != nil {
		return err
	}
	if quitAfter {
		defer conn.Session.Quit(cmd.Context())
	}

	PrintVerboseCommand(command)
	result, err := conn.Session.Cmd(cmd.Context(), command, true)
	if result != nil {
		_, _ = io.WriteString(cmd.OutOrStdout(), result.Stdout)
		_, _ = io.WriteString(cmd.ErrOrStderr(), result.Stderr)
	}
	if err != nil {
		var sessErr *ssh.SessionError
		if errors.As(err, &sessErr) {
			return fmt.Errorf("connection to %s failed, run 'sshsession connect %s' again: %w", serverName, serverName, err)
		}
		return err
	}

	if result.ExitStatus != 0 {
		return &ExitError{Code: result.ExitStatus}
	}
	return nil
}

func runRaw(cmd *cobra.Command, args []string) error {
	conn, err := OpenServer(args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), conn.Session.RawCommandString(strings.Join(args[1:], " ")))
	return nil
}

func runPush(cmd *cobra.Command, args []string) error {
	name, rest, err := serverNameFromArgs(args, 2)
	if err != nil {
		return err
	}
	localPath, remotePath := rest[0], rest[1]

	conn, err := ConnectToServer(cmd.Context(), name)
	if err != nil {
		return err
	}

	if err := conn.Session.Upload(cmd.Context(), localPath, remotePath); err != nil {
		return fmt.Errorf("failed to upload %s: %w", localPath, err)
	}

	PrintSuccess("Uploaded %s to %s:%s", localPath, name, remotePath)
	return nil
}

func runPull(cmd *cobra.Command, args []string) error {
	name, rest, err := serverNameFromArgs(args, 2)
	if err != nil {
		return err
	}
	remotePath, localPath := rest[0], rest[1]

	conn, err := ConnectToServer(cmd.Context(), name)
	if err != nil {
		return err
	}

	if err := conn.Session.Download(cmd.Context(), remotePath, localPath); err != nil {
		return fmt.Errorf("failed to download %s: %w", remotePath, err)
	}

	PrintSuccess("Downloaded %s:%s to %s", name, remotePath, localPath)
	return nil
}
