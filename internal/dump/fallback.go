package dump

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"

	"github.com/nethalo/acceldump/internal/codec"
	"github.com/nethalo/acceldump/internal/layout"
	"github.com/nethalo/acceldump/internal/mysql"
	"github.com/nethalo/acceldump/internal/output"
)

// FallbackAttempts bounds the vendor-exporter retry loop. The vendor dumper
// fails for transient reasons far more often than the streaming path, hence
// the larger budget.
const FallbackAttempts = 20

// DumpFallback exports one table by shelling out to mysqldump, teeing its
// stdout through gzip into <table>.sql.gz. Any stderr output is treated as
// a failure even when the exit status is zero. The password travels through
// MYSQL_PWD, never argv.
func DumpFallback(conn mysql.ConnectionConfig, dir layout.Dir, table string, log *output.TableLogger) error {
	dest := dir.FallbackPath(table)

	var lastErr error
	for attempt := 1; attempt <= FallbackAttempts; attempt++ {
		if err := fallbackOnce(conn, dest, table); err != nil {
			lastErr = err
			log.Warn("vendor dump attempt %d/%d failed: %v", attempt, FallbackAttempts, err)
			os.Remove(dest)
			continue
		}
		return nil
	}
	log.Error("vendor dump giving up after %d attempts", FallbackAttempts)
	return fmt.Errorf("fallback dump of %s failed after %d attempts: %w",
		table, FallbackAttempts, lastErr)
}

func fallbackOnce(conn mysql.ConnectionConfig, dest, table string) error {
	args := []string{
		"--host", conn.Host,
		"--port", strconv.Itoa(conn.Port),
		"--user", conn.User,
		"--no-create-info",
		"--skip-triggers",
		"--single-transaction=TRUE",
		"--max_allowed_packet=2G",
		conn.Database,
		table,
	}

	cmd := exec.Command("mysqldump", args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}

	gz, err := codec.NewGzipWriter(dest)
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		gz.Abort()
		return fmt.Errorf("starting mysqldump: %w", err)
	}

	_, copyErr := io.Copy(gz, stdout)
	waitErr := cmd.Wait()
	closeErr := gz.Close()

	if waitErr != nil {
		return fmt.Errorf("mysqldump %s: %w (stderr: %s)", table, waitErr, stderr.String())
	}
	if stderr.Len() > 0 {
		return fmt.Errorf("mysqldump %s wrote to stderr: %s", table, stderr.String())
	}
	if copyErr != nil {
		return fmt.Errorf("piping mysqldump output for %s: %w", table, copyErr)
	}
	return closeErr
}
