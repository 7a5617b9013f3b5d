package cmd

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nethalo/acceldump/internal/engine"
	"github.com/nethalo/acceldump/internal/output"
)

var dumpCmd = &cobra.Command{
	Use:          "dump",
	Short:        "Dump a database into a portable archive",
	SilenceUsage: true, // Don't show usage on errors
	Long: `Dump every base table of a database into sharded .csv.gz files and
archive them, together with the rewritten schema, as <database>.accel.dump.

Tables containing BLOB or TEXT columns (and any listed in
--fallback-tables) are exported through the vendor dumper instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, err := connectionFromFlags()
		if err != nil {
			return err
		}

		sample, _ := cmd.Flags().GetInt("sample")
		checkCount, _ := cmd.Flags().GetBool("check-count")
		pageSize, _ := cmd.Flags().GetInt("page-size")
		fallbackTables, _ := cmd.Flags().GetString("fallback-tables")
		tables, _ := cmd.Flags().GetString("tables")

		log := output.NewLogger(os.Stdout, viper.GetBool("verbose"))
		_, err = engine.Dump(engine.DumpConfig{
			Conn:           conn,
			Directory:      viper.GetString("directory"),
			Jobs:           viper.GetInt("jobs"),
			Sample:         sample,
			CheckCount:     checkCount,
			PageSize:       pageSize,
			FallbackTables: splitCSVFlag(fallbackTables),
			Tables:         splitCSVFlag(tables),
		}, log)
		return err
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().Int("sample", 0, "LIMIT applied to every table export (0 = all rows)")
	dumpCmd.Flags().Bool("check-count", false, "record expected row counts and verify them")
	dumpCmd.Flags().String("fallback-tables", "", "comma-separated tables to force through the vendor exporter")
	dumpCmd.Flags().String("tables", "", "comma-separated tables to include (default: all)")
	dumpCmd.Flags().Int("page-size", 1000, "rows per key-page sidecar")
}
