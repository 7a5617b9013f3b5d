package dump

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strconv"

	"github.com/nethalo/acceldump/internal/mysql"
)

// DumpSchema runs the vendor dumper in schema-only mode (-B keeps the
// CREATE DATABASE statement, --routines carries functions and procedures)
// and writes its raw output to dest.
func DumpSchema(conn mysql.ConnectionConfig, dest string) error {
	args := []string{
		"--host", conn.Host,
		"--port", strconv.Itoa(conn.Port),
		"--user", conn.User,
		"--no-data",
		"--routines",
		"--single-transaction=TRUE",
		"-B", conn.Database,
	}

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}
	defer out.Close()

	cmd := exec.Command("mysqldump", args...)
	cmd.Stdout = out
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("schema dump of %s: %w (stderr: %s)",
			conn.Database, err, stderr.String())
	}
	return nil
}
