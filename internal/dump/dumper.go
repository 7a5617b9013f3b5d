// Package dump exports tables into sharded, gzip-compressed CSV files. The
// streaming path pages a single SELECT through a gzip child; tables whose
// rows cannot be streamed safely (BLOB/TEXT columns) go to the fallback
// exporter, which wraps the vendor dumper.
package dump

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nethalo/acceldump/internal/codec"
	"github.com/nethalo/acceldump/internal/layout"
	"github.com/nethalo/acceldump/internal/mysql"
	"github.com/nethalo/acceldump/internal/output"
)

const (
	// PageRows is the driver-level fetch granularity; the shard ordinal is
	// the value of the page counter when the shard is opened.
	PageRows = 10_000

	// ShardRows caps a shard. Bulk loads slow sharply past a million rows,
	// so a new shard is opened once the cap is crossed.
	ShardRows = 1_000_000

	// DumpAttempts bounds the per-table retry loop of the streaming path.
	DumpAttempts = 5
)

// ErrRowCountMismatch reports a divergence between the rows a dump wrote
// and the count recorded before it started. Retryable.
var ErrRowCountMismatch = errors.New("row count mismatch")

// TableDumper exports single tables. Each Dump call opens its own session;
// nothing is shared between concurrent dumpers except the log sink.
type TableDumper struct {
	Conn mysql.ConnectionConfig
	Dir  layout.Dir
	Log  *output.Logger

	Sample     int  // LIMIT clause applied to exports, 0 for none
	CheckCount bool // write .info sidecars and verify row counts
	PageSize   int  // key-page row count

	// ForceFallback routes the table to the vendor exporter regardless of
	// its column types (the --fallback-tables list).
	ForceFallback bool
}

// Dump exports one table into shards (or a fallback dump) inside the
// working directory.
func (d *TableDumper) Dump(table string) error {
	db, err := mysql.ConnectRetry(d.Conn, nil)
	if err != nil {
		d.Log.Table(table).Error("connect: %v", err)
		return err
	}
	defer db.Close()
	return d.dump(db, table)
}

func (d *TableDumper) dump(db *sql.DB, table string) error {
	log := d.Log.Table(table)

	cols, err := mysql.GetColumnTypes(db, d.Conn.Database, table)
	if err != nil {
		log.Error("column discovery: %v", err)
		return err
	}

	var expected int64 = -1
	if d.CheckCount {
		expected, err = mysql.GetRowCount(db, d.Conn.Database, table)
		if err != nil {
			log.Error("row count: %v", err)
			return err
		}
		if err := d.Dir.WriteInfo(table, layout.Info{RecordCount: expected}); err != nil {
			return fmt.Errorf("writing info sidecar for %s: %w", table, err)
		}
	}

	exprs := mysql.ExportExpressions(cols)
	if d.ForceFallback || exprs.PagingRequired {
		if exprs.PagingRequired {
			log.Debug("BLOB/TEXT columns present, using vendor exporter")
			if err := d.writeKeyPages(db, table); err != nil {
				return err
			}
		}
		if err := DumpFallback(d.Conn, d.Dir, table, log); err != nil {
			return err
		}
		if err := d.Dir.RemoveKeyPages(table); err != nil {
			return err
		}
		log.Success("dumped via vendor exporter")
		return nil
	}

	if expected == 0 {
		// Nothing to export and no header-only shard required.
		log.Success("0 rows, no shards written")
		return nil
	}

	var lastErr error
	for attempt := 1; attempt <= DumpAttempts; attempt++ {
		written, err := d.streamOnce(db, table, exprs)
		if err == nil && expected >= 0 && written != expected {
			err = fmt.Errorf("%w for %s: wrote %s, expected %s",
				ErrRowCountMismatch, table, humanize.Comma(written), humanize.Comma(expected))
		}
		if err == nil {
			log.Success("%s rows dumped", humanize.Comma(written))
			return nil
		}
		lastErr = err
		log.Warn("attempt %d/%d failed: %v", attempt, DumpAttempts, err)
		if err := d.Dir.RemoveShards(table); err != nil {
			return fmt.Errorf("cleaning shards of %s: %w", table, err)
		}
	}
	log.Error("giving up after %d attempts", DumpAttempts)
	return fmt.Errorf("dump of %s failed after %d attempts: %w", table, DumpAttempts, lastErr)
}

// streamOnce runs the table's single SELECT scan, slicing rows into shards.
func (d *TableDumper) streamOnce(db *sql.DB, table string, exprs mysql.ExportList) (int64, error) {
	query := fmt.Sprintf("SELECT %s FROM `%s`",
		strings.Join(exprs.Expressions, ", "), table)
	if d.Sample > 0 {
		query += fmt.Sprintf(" LIMIT %d", d.Sample)
	}

	rows, err := db.Query(query)
	if err != nil {
		return 0, fmt.Errorf("export query for %s: %w", table, err)
	}
	defer rows.Close()

	fields := make([]sql.NullString, len(exprs.Names))
	ptrs := make([]any, len(fields))
	for i := range fields {
		ptrs[i] = &fields[i]
	}

	var (
		written int64
		shard   *codec.GzipWriter
		cw      *csvWriter
	)
	closeShard := func() error {
		if shard == nil {
			return nil
		}
		err := shard.Close()
		shard, cw = nil, nil
		return err
	}
	defer func() {
		if shard != nil {
			shard.Abort()
		}
	}()

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return written, fmt.Errorf("scanning %s: %w", table, err)
		}

		if shard == nil {
			page := int(written/PageRows) + 1
			shard, err = codec.NewGzipWriter(d.Dir.ShardPath(table, page))
			if err != nil {
				return written, err
			}
			cw = newCSVWriter(shard)
			if err := cw.writeHeader(exprs.Names); err != nil {
				return written, err
			}
		}

		if err := cw.writeRow(fields); err != nil {
			return written, fmt.Errorf("writing row of %s: %w", table, err)
		}
		written++

		if written%ShardRows == 0 {
			if err := closeShard(); err != nil {
				return written, err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return written, fmt.Errorf("paging %s: %w", table, err)
	}
	if err := closeShard(); err != nil {
		return written, err
	}
	return written, nil
}

// writeKeyPages records the table's primary-or-unique-key values in
// page-sized JSON sidecars. Written only when key discovery succeeds; the
// files are temporary and removed once the table's dump completes.
func (d *TableDumper) writeKeyPages(db *sql.DB, table string) error {
	keys, err := mysql.GetPrimaryOrUniqueKeys(db, d.Conn.Database, table)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}

	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = "`" + k + "`"
	}
	rows, err := db.Query(fmt.Sprintf("SELECT %s FROM `%s`",
		strings.Join(quoted, ", "), table))
	if err != nil {
		return fmt.Errorf("key scan of %s: %w", table, err)
	}
	defer rows.Close()

	fields := make([]sql.NullString, len(keys))
	ptrs := make([]any, len(fields))
	for i := range fields {
		ptrs[i] = &fields[i]
	}

	pageSize := d.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}

	var (
		page   = 1
		inPage int
		values []any
	)
	flush := func() error {
		if len(values) == 0 {
			return nil
		}
		if err := d.Dir.WriteKeyPage(table, page, values); err != nil {
			return err
		}
		page++
		inPage = 0
		values = nil
		return nil
	}

	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return err
		}
		for _, f := range fields {
			if f.Valid {
				values = append(values, f.String)
			} else {
				values = append(values, nil)
			}
		}
		inPage++
		if inPage == pageSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	return flush()
}
