package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nethalo/acceldump/internal/engine"
	"github.com/nethalo/acceldump/internal/output"
)

var restoreCmd = &cobra.Command{
	Use:          "restore",
	Short:        "Restore an archive into a database",
	SilenceUsage: true, // Don't show usage on errors
	Long: `Unpack a .accel.dump archive and load it into the target database named
by --database, which may differ from the dumped one.

With --accel-keys the schema is applied in three stages: keyless tables
first, then data, then keys, then foreign keys. Existing tables are not
truncated; restore is not atomic.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := connectionFromFlags()
		if err != nil {
			return err
		}

		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return fmt.Errorf("--file is required")
		}
		accelKeys, _ := cmd.Flags().GetBool("accel-keys")
		skipCreateDB, _ := cmd.Flags().GetBool("skip-create-db")
		postSchema, _ := cmd.Flags().GetString("post-schema-command")
		checkCount, _ := cmd.Flags().GetBool("check-count")

		log := output.NewLogger(os.Stdout, viper.GetBool("verbose"))
		return engine.Restore(engine.RestoreConfig{
			Conn:              conn,
			Directory:         viper.GetString("directory"),
			File:              file,
			Jobs:              viper.GetInt("jobs"),
			AccelKeys:         accelKeys,
			SkipCreateDB:      skipCreateDB,
			PostSchemaCommand: postSchema,
			CheckCount:        checkCount,
		}, log)
	},
}

func init() {
	rootCmd.AddCommand(restoreCmd)
	restoreCmd.Flags().String("file", "", "archive to restore (required)")
	restoreCmd.Flags().Bool("accel-keys", false, "apply keys and foreign keys after the data loads")
	restoreCmd.Flags().Bool("skip-create-db", false, "skip stage-1 DDL (schema already present)")
	restoreCmd.Flags().String("post-schema-command", "", "shell command executed after stage-1 DDL")
	restoreCmd.Flags().Bool("check-count", false, "verify loaded rows against .info sidecars")
}
