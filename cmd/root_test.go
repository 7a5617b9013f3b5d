package cmd

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spf13/viper"
)

func TestRootCommandStructure(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd should not be nil")
	}
	if rootCmd.Use != "acceldump" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "acceldump")
	}

	for _, want := range []string{"dump", "restore", "version"} {
		found := false
		for _, cmd := range rootCmd.Commands() {
			if cmd.Use == want {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("%s command not registered with root", want)
		}
	}
}

func TestFlagDefaults(t *testing.T) {
	flags := rootCmd.PersistentFlags()

	tests := []struct {
		name string
		want string
	}{
		{"host", "localhost"},
		{"port", "3306"},
		{"directory", "/tmp"},
		{"jobs", "4"},
	}
	for _, tt := range tests {
		f := flags.Lookup(tt.name)
		if f == nil {
			t.Errorf("flag --%s not defined", tt.name)
			continue
		}
		if f.DefValue != tt.want {
			t.Errorf("--%s default = %q, want %q", tt.name, f.DefValue, tt.want)
		}
	}
}

func TestInitConfigFileNotFound(t *testing.T) {
	origHome := os.Getenv("HOME")
	defer os.Setenv("HOME", origHome)
	os.Setenv("HOME", t.TempDir())

	viper.Reset()
	cfgFile = ""

	// Must not error or panic when no config file exists
	initConfig()
}

func TestInitConfigWithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `host: db.internal
port: 3307
jobs: 8
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	viper.Reset()
	cfgFile = configPath
	initConfig()

	if viper.GetString("host") != "db.internal" {
		t.Errorf("host = %q, want db.internal", viper.GetString("host"))
	}
	if viper.GetInt("port") != 3307 {
		t.Errorf("port = %d, want 3307", viper.GetInt("port"))
	}
	if viper.GetInt("jobs") != 8 {
		t.Errorf("jobs = %d, want 8", viper.GetInt("jobs"))
	}
}

func TestConnectionFromFlagsRequiredValues(t *testing.T) {
	viper.Reset()
	viper.Set("host", "localhost")
	viper.Set("port", 3306)

	if _, err := connectionFromFlags(); err == nil {
		t.Error("expected error when --username is missing")
	}

	viper.Set("username", "app")
	if _, err := connectionFromFlags(); err == nil {
		t.Error("expected error when --database is missing")
	}
}

func TestConnectionFromFlagsExportsPassword(t *testing.T) {
	origPwd := os.Getenv("MYSQL_PWD")
	defer os.Setenv("MYSQL_PWD", origPwd)

	viper.Reset()
	viper.Set("host", "localhost")
	viper.Set("port", 3306)
	viper.Set("username", "app")
	viper.Set("database", "shop")
	viper.Set("password", "secret")

	cfg, err := connectionFromFlags()
	if err != nil {
		t.Fatalf("connectionFromFlags: %v", err)
	}
	if cfg.Password != "secret" {
		t.Errorf("Password = %q, want secret", cfg.Password)
	}
	if os.Getenv("MYSQL_PWD") != "secret" {
		t.Error("password not exported through MYSQL_PWD for child processes")
	}
}

func TestConnectionFromFlagsEnvFallback(t *testing.T) {
	origPwd := os.Getenv("MYSQL_PWD")
	defer os.Setenv("MYSQL_PWD", origPwd)
	os.Setenv("MYSQL_PWD", "from-env")

	viper.Reset()
	viper.Set("host", "localhost")
	viper.Set("port", 3306)
	viper.Set("username", "app")
	viper.Set("database", "shop")

	cfg, err := connectionFromFlags()
	if err != nil {
		t.Fatalf("connectionFromFlags: %v", err)
	}
	if cfg.Password != "from-env" {
		t.Errorf("Password = %q, want the MYSQL_PWD value", cfg.Password)
	}
}

func TestSplitCSVFlag(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"users", []string{"users"}},
		{"users,orders", []string{"users", "orders"}},
		{" users , orders ,", []string{"users", "orders"}},
		{",,", nil},
	}
	for _, tt := range tests {
		if got := splitCSVFlag(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("splitCSVFlag(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
