package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nethalo/acceldump/internal/mysql"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "acceldump",
	Short: "Fast parallel logical dump/restore for MySQL-compatible databases",
	Long: `acceldump snapshots a whole schema (DDL plus row data) into a single
portable archive, and reloads it into a possibly differently named target.

Tables are dumped concurrently as sharded, gzip-compressed CSV; on restore
the shards stream through named pipes into LOAD DATA, and keys and foreign
keys can be applied after the data (--accel-keys), which is dramatically
faster than loading into keyed tables.

It works against remote managed instances where server-local file export
is unavailable, and never emits the per-row INSERT form.`,
}

// Execute is called by main.main(). It adds all child commands to the root
// command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.acceldump/config.yaml)")
	rootCmd.PersistentFlags().StringP("host", "H", "localhost", "MySQL host")
	rootCmd.PersistentFlags().IntP("port", "P", 3306, "MySQL port")
	rootCmd.PersistentFlags().StringP("username", "u", "", "MySQL user (required)")
	rootCmd.PersistentFlags().StringP("password", "p", "", "MySQL password (falls back to MYSQL_PWD, then prompts)")
	rootCmd.PersistentFlags().Lookup("password").NoOptDefVal = "" // -p without value triggers the fallback chain
	rootCmd.PersistentFlags().StringP("database", "d", "", "database to dump or restore into (required)")
	rootCmd.PersistentFlags().String("directory", "/tmp", "working root; the database name is appended")
	rootCmd.PersistentFlags().IntP("jobs", "j", 4, "max tables worked concurrently")
	rootCmd.PersistentFlags().String("tls", "", "TLS mode: disabled, preferred, required, skip-verify, custom")
	rootCmd.PersistentFlags().String("tls-ca", "", "CA certificate file (required with --tls=custom)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Show additional debug info")

	// Bind flags to viper
	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("port", rootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("username", rootCmd.PersistentFlags().Lookup("username"))
	viper.BindPFlag("password", rootCmd.PersistentFlags().Lookup("password"))
	viper.BindPFlag("database", rootCmd.PersistentFlags().Lookup("database"))
	viper.BindPFlag("directory", rootCmd.PersistentFlags().Lookup("directory"))
	viper.BindPFlag("jobs", rootCmd.PersistentFlags().Lookup("jobs"))
	viper.BindPFlag("tls", rootCmd.PersistentFlags().Lookup("tls"))
	viper.BindPFlag("tls-ca", rootCmd.PersistentFlags().Lookup("tls-ca"))
	viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return
		}
		viper.AddConfigPath(home + "/.acceldump")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ACCELDUMP")
	viper.AutomaticEnv()

	// Silently ignore missing config file — it's optional
	viper.ReadInConfig()
}

// connectionFromFlags builds the connection config shared by both actions.
// The password chain is flag, then MYSQL_PWD, then an interactive prompt;
// whichever wins is re-exported through MYSQL_PWD so mysqldump and the
// mysql client inherit it.
func connectionFromFlags() (mysql.ConnectionConfig, error) {
	cfg := mysql.ConnectionConfig{
		Host:     viper.GetString("host"),
		Port:     viper.GetInt("port"),
		User:     viper.GetString("username"),
		Password: viper.GetString("password"),
		Database: viper.GetString("database"),
		TLSMode:  viper.GetString("tls"),
		TLSCA:    viper.GetString("tls-ca"),
	}

	if cfg.User == "" {
		return cfg, fmt.Errorf("--username is required")
	}
	if cfg.Database == "" {
		return cfg, fmt.Errorf("--database is required")
	}

	if cfg.Password == "" {
		cfg.Password = mysql.PasswordFromEnv()
	}
	if cfg.Password == "" {
		cfg.Password = mysql.PromptPassword()
	}
	if err := mysql.ExportPassword(cfg.Password); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// splitCSVFlag turns an "a,b,c" flag value into its non-empty items.
func splitCSVFlag(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
