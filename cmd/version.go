package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const versionTemplate = `acceldump {{.Version}}

Requires in PATH: mysqldump, mysql, gzip, tar.
Named pipes limit restore to Unix-like systems.
`

// Version is set at build time via ldflags
var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print acceldump version and runtime requirements",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("acceldump %s (commit: %s, built: %s)\n\n", Version, CommitSHA, BuildDate)
		cmd.Println("Requires in PATH: mysqldump, mysql, gzip, tar.")
		cmd.Println("Named pipes limit restore to Unix-like systems.")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)

	// Enable the standard --version flag, matching the `version` subcommand output.
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, CommitSHA, BuildDate)
	rootCmd.SetVersionTemplate(versionTemplate)
}
