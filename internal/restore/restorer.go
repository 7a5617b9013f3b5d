// Package restore loads dumped tables into a target database. Shards are
// decompressed by a gunzip child into a named pipe and streamed into the
// server's bulk loader; the server accepts only a path, so the FIFO is
// what lets a compressed shard flow in without an intermediate file.
package restore

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"github.com/nethalo/acceldump/internal/codec"
	"github.com/nethalo/acceldump/internal/layout"
	"github.com/nethalo/acceldump/internal/mysql"
	"github.com/nethalo/acceldump/internal/output"
)

// ErrRowCountMismatch reports a divergence between loaded rows and the
// count the dump recorded in the table's .info sidecar.
var ErrRowCountMismatch = errors.New("row count mismatch")

// TableRestorer loads single tables. Each Restore call opens its own
// session against the target database.
type TableRestorer struct {
	Conn mysql.ConnectionConfig // target database
	Dir  layout.Dir             // unpacked working dir (source database name)
	Log  *output.Logger

	// CheckCount verifies loaded rows against the .info sidecar.
	CheckCount bool

	// loadSQL replays a fallback dump; defaults to loadFallback. Swapped
	// in tests.
	loadSQL func(table, src string) error
}

// Restore loads one table from its shards (CSV or fallback) in ordinal
// order. With CheckCount, loaded rows are verified against the .info
// sidecar when one is present.
func (r *TableRestorer) Restore(table string) error {
	log := r.Log.Table(table)

	fallback := r.Dir.FallbackPath(table)
	if _, err := os.Stat(fallback); err == nil {
		return r.restoreFallback(table, fallback, log)
	}

	shards, err := r.Dir.ListShards(table)
	if err != nil {
		return err
	}
	if len(shards) == 0 {
		log.Success("no shards, 0 rows")
		if r.CheckCount {
			return r.verify(table, 0, false)
		}
		return nil
	}

	loaded, err := r.loadShards(table, shards)
	if err != nil {
		log.Error("%v", err)
		return err
	}
	if r.CheckCount {
		if err := r.verify(table, loaded, true); err != nil {
			log.Error("%v", err)
			return err
		}
	}
	log.Success("%s rows loaded", humanize.Comma(loaded))
	return nil
}

func (r *TableRestorer) load(table, src string) error {
	if r.loadSQL != nil {
		return r.loadSQL(table, src)
	}
	return r.loadFallback(table, src)
}

// restoreFallback replays a vendor-format dump. The vendor client reports
// nothing, so with CheckCount the table is counted before and after the
// load and only the delta is compared against the sidecar: the target is
// never truncated and may hold rows that are not ours.
func (r *TableRestorer) restoreFallback(table, src string, log *output.TableLogger) error {
	if !r.CheckCount {
		if err := r.load(table, src); err != nil {
			log.Error("%v", err)
			return err
		}
		log.Success("loaded via vendor client")
		return nil
	}

	db, err := mysql.ConnectRetry(r.Conn, nil)
	if err != nil {
		return err
	}
	defer db.Close()
	return r.fallbackChecked(db, table, src, log)
}

func (r *TableRestorer) fallbackChecked(db *sql.DB, table, src string, log *output.TableLogger) error {
	before, err := mysql.GetRowCount(db, r.Conn.Database, table)
	if err != nil {
		return err
	}
	if err := r.load(table, src); err != nil {
		log.Error("%v", err)
		return err
	}
	after, err := mysql.GetRowCount(db, r.Conn.Database, table)
	if err != nil {
		return err
	}

	loaded := after - before
	if err := r.verify(table, loaded, true); err != nil {
		log.Error("%v", err)
		return err
	}
	log.Success("%s rows loaded", humanize.Comma(loaded))
	return nil
}

// loadShards streams every CSV shard through a FIFO into LOAD DATA.
func (r *TableRestorer) loadShards(table string, shards []string) (int64, error) {
	cfg := r.Conn
	cfg.LocalInfile = true
	db, err := mysql.ConnectRetry(cfg, nil)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	cols, err := mysql.GetColumnTypes(db, r.Conn.Database, table)
	if err != nil {
		return 0, err
	}
	imp := mysql.ImportExpressions(cols)

	ctx := context.Background()
	conn, err := db.Conn(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	// Checks are re-enabled by the stage-2/3 ALTERs; during the load the
	// table is keyless anyway.
	if _, err := conn.ExecContext(ctx, "SET foreign_key_checks=0"); err != nil {
		return 0, err
	}
	if _, err := conn.ExecContext(ctx, "SET unique_checks=0"); err != nil {
		return 0, err
	}

	fifo := r.Dir.FIFOPath(table)
	stmt := loadStatement(fifo, table, imp)

	var total int64
	for _, shard := range shards {
		if err := codec.Mkfifo(fifo); err != nil {
			return total, err
		}
		feeder := codec.FeedFIFO(shard, fifo)

		res, execErr := conn.ExecContext(ctx, stmt)
		var feedErr error
		if execErr != nil {
			feedErr = reapFeeder(feeder, fifo)
		} else {
			feedErr = feeder.Wait()
		}
		os.Remove(fifo)

		if execErr != nil {
			return total, fmt.Errorf("bulk load of %s from %s: %w", table, shard, execErr)
		}
		if feedErr != nil {
			return total, feedErr
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

// reapFeeder collects a feeder whose LOAD DATA statement failed. The client
// protocol streams the whole file before the server replies, so on a
// server-side rejection the feeder has usually already exited; when the
// statement failed before the pipe was ever opened, the feeder is still
// blocked in its write-side open and the pipe must be drained.
func reapFeeder(feeder *codec.Feeder, fifo string) error {
	select {
	case err := <-feeder.Done():
		return err
	default:
		drainFIFO(fifo)
		return feeder.Wait()
	}
}

// drainFIFO opens the read side without blocking and discards whatever the
// feeder still has to write. A blocking open would never return if the
// feeder exited between the Done check and the open.
func drainFIFO(fifo string) {
	fd, err := unix.Open(fifo, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		return
	}
	f := os.NewFile(uintptr(fd), fifo)
	defer f.Close()
	io.Copy(io.Discard, f)
}

// loadStatement builds the LOAD DATA statement for one table.
func loadStatement(fifo, table string, imp mysql.ImportList) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "LOAD DATA LOCAL INFILE '%s' INTO TABLE `%s`", fifo, table)
	sb.WriteString(" CHARACTER SET utf8")
	sb.WriteString(` COLUMNS TERMINATED BY ',' OPTIONALLY ENCLOSED BY '"'`)
	sb.WriteString(" IGNORE 1 ROWS")
	sb.WriteString(" (" + strings.Join(imp.Placeholders, ", ") + ")")
	if len(imp.SetClauses) > 0 {
		sb.WriteString(" SET " + strings.Join(imp.SetClauses, ", "))
	}
	return sb.String()
}

// loadFallback replays a vendor-format dump through the mysql client, fed
// from the FIFO by the decompression child.
func (r *TableRestorer) loadFallback(table, src string) error {
	fifo := r.Dir.FIFOPath(table)
	if err := codec.Mkfifo(fifo); err != nil {
		return err
	}
	defer os.Remove(fifo)

	feeder := codec.FeedFIFO(src, fifo)

	in, err := os.Open(fifo) // blocks until the feeder opens the write side
	if err != nil {
		return fmt.Errorf("opening fifo %s for read: %w", fifo, err)
	}
	defer in.Close()

	args := []string{
		"--host", r.Conn.Host,
		"--port", strconv.Itoa(r.Conn.Port),
		"--user", r.Conn.User,
		r.Conn.Database,
	}
	cmd := exec.Command("mysql", args...)
	cmd.Stdin = in
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	feedErr := feeder.Wait()

	if runErr != nil {
		return fmt.Errorf("vendor client load of %s: %w (stderr: %s)",
			table, runErr, stderr.String())
	}
	return feedErr
}

// verify compares loaded rows against the .info sidecar, when one exists.
func (r *TableRestorer) verify(table string, loaded int64, strict bool) error {
	info, ok, err := r.Dir.ReadInfo(table)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if strict && loaded != info.RecordCount {
		return fmt.Errorf("%w for %s: loaded %s, expected %s",
			ErrRowCountMismatch, table, humanize.Comma(loaded), humanize.Comma(info.RecordCount))
	}
	if !strict && info.RecordCount != 0 {
		return fmt.Errorf("no shards for %s but sidecar expects %s rows",
			table, humanize.Comma(info.RecordCount))
	}
	return nil
}
