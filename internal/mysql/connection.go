package mysql

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"os"
	"syscall"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"golang.org/x/term"
)

// Connection retry budget. Managed instances drop connections under load;
// a long pause between attempts rides out failovers.
const (
	ConnectAttempts = 5
	ConnectBackoff  = 60 * time.Second
)

// ConnectionConfig holds MySQL connection parameters.
type ConnectionConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	Socket   string
	TLSMode  string // "", "disabled", "preferred", "required", "skip-verify", "custom"
	TLSCA    string // path to CA certificate file (required when TLSMode == "custom")

	// LocalInfile enables LOAD DATA LOCAL INFILE on sessions opened with
	// this config. Only restore loader sessions set it.
	LocalInfile bool
}

// Connect establishes a MySQL connection and verifies it with a ping.
func Connect(cfg ConnectionConfig) (*sql.DB, error) {
	if cfg.TLSMode == "custom" {
		if cfg.TLSCA == "" {
			return nil, fmt.Errorf("--tls-ca is required when --tls=custom")
		}
		if err := registerCustomTLS(cfg.TLSCA); err != nil {
			return nil, fmt.Errorf("TLS setup failed: %w", err)
		}
	}

	dsn, err := buildDSN(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open connection: %w", err)
	}

	if err := db.PingContext(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping: %w", err)
	}

	// One session per worker; no pooling across workers.
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)

	return db, nil
}

// ConnectRetry opens a session, retrying on failure. The first failure and
// every one after it sleeps for the backoff before the next attempt.
func ConnectRetry(cfg ConnectionConfig, sleep func(time.Duration)) (*sql.DB, error) {
	if sleep == nil {
		sleep = time.Sleep
	}
	var lastErr error
	for attempt := 1; attempt <= ConnectAttempts; attempt++ {
		db, err := Connect(cfg)
		if err == nil {
			return db, nil
		}
		lastErr = err
		if attempt < ConnectAttempts {
			sleep(ConnectBackoff)
		}
	}
	return nil, fmt.Errorf("connect failed after %d attempts: %w", ConnectAttempts, lastErr)
}

// registerCustomTLS reads a CA certificate PEM file and registers it as a named TLS config.
func registerCustomTLS(caPath string) error {
	pem, err := os.ReadFile(caPath)
	if err != nil {
		return fmt.Errorf("reading CA certificate %q: %w", caPath, err)
	}

	rootCAs := x509.NewCertPool()
	if !rootCAs.AppendCertsFromPEM(pem) {
		return fmt.Errorf("no valid certificates found in %q", caPath)
	}

	return mysqldriver.RegisterTLSConfig("acceldump-custom", &tls.Config{
		RootCAs: rootCAs,
	})
}

func buildDSN(cfg ConnectionConfig) (string, error) {
	switch cfg.TLSMode {
	case "", "disabled", "preferred", "required", "skip-verify", "custom":
		// valid
	default:
		return "", fmt.Errorf("invalid TLS mode %q: valid values are disabled, preferred, required, skip-verify, custom", cfg.TLSMode)
	}

	// Format: user:password@protocol(address)/dbname?params
	var addr string
	if cfg.Socket != "" {
		addr = fmt.Sprintf("unix(%s)", cfg.Socket)
	} else {
		addr = fmt.Sprintf("tcp(%s:%d)", cfg.Host, cfg.Port)
	}

	db := cfg.Database
	if db == "" {
		db = "information_schema"
	}

	// compress keeps result paging cheap over WAN links; the server streams
	// rows instead of buffering whole result sets.
	dsn := fmt.Sprintf("%s:%s@%s/%s?parseTime=true&charset=utf8mb4&compress=true",
		cfg.User, cfg.Password, addr, db)

	if cfg.LocalInfile {
		dsn += "&allowAllFiles=true"
	}

	switch cfg.TLSMode {
	case "preferred":
		dsn += "&tls=preferred"
	case "required":
		dsn += "&tls=true"
	case "skip-verify":
		dsn += "&tls=skip-verify"
	case "custom":
		dsn += "&tls=acceldump-custom"
	}

	return dsn, nil
}

// ExportPassword publishes the password through MYSQL_PWD so that child
// processes (mysqldump, mysql) inherit credentials without them appearing
// in argv.
func ExportPassword(password string) error {
	return os.Setenv("MYSQL_PWD", password)
}

// PasswordFromEnv returns the password carried by MYSQL_PWD, if any.
func PasswordFromEnv() string {
	return os.Getenv("MYSQL_PWD")
}

// PromptPassword reads a password from the terminal without echoing.
func PromptPassword() string {
	fmt.Print("Enter password: ")
	password, err := term.ReadPassword(syscall.Stdin)
	fmt.Println() // newline after hidden input
	if err != nil {
		return ""
	}
	return string(password)
}
