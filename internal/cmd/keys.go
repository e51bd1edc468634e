package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/yoanbernabeu/sshsession/internal/ssh"
)

var keysCmd = &cobra.Command{
	Use:   "keys [dir]",
	Short: "List local SSH private keys",
	Long: `Lists the private keys in ~/.ssh (or dir), preferred keys first.
Passphrase-protected keys are marked: they cannot be used by sshsession.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKeys,
}

func init() {
	rootCmd.AddCommand(keysCmd)
}

func runKeys(cmd *cobra.Command, args []string) error {
	dir := ""
	if len(args) == 1 {
		dir = args[0]
	} else {
		var err error
		if dir, err = ssh.DefaultKeyDir(); err != nil {
			return err
		}
	}

	keys, err := ssh.DiscoverKeys(dir)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		PrintInfo("No SSH keys found in %s", dir)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tFINGERPRINT\tNOTE")
	for _, key := range keys {
		note := ""
		if key.IsEncrypted {
			note = "passphrase protected"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", key.Name, key.Type, key.Fingerprint, note)
	}
	return w.Flush()
}
