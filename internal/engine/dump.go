// Package engine drives the dump and restore state machines, composing the
// probe, the per-table workers, the DDL rewriter and the worker pool.
package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/nethalo/acceldump/internal/ddl"
	"github.com/nethalo/acceldump/internal/dump"
	"github.com/nethalo/acceldump/internal/layout"
	"github.com/nethalo/acceldump/internal/mysql"
	"github.com/nethalo/acceldump/internal/output"
	"github.com/nethalo/acceldump/internal/pool"
)

// DumpConfig carries everything a dump run needs. It is threaded through
// explicitly; nothing global.
type DumpConfig struct {
	Conn      mysql.ConnectionConfig
	Directory string // working root; the database name is appended
	Jobs      int

	Sample         int
	CheckCount     bool
	PageSize       int
	FallbackTables []string // forced through the vendor exporter
	Tables         []string // include list; empty means all base tables
}

// Dump snapshots the configured database into <directory>/<database>.accel.dump
// and returns the archive path.
func Dump(cfg DumpConfig, log *output.Logger) (string, error) {
	dir := layout.NewDir(cfg.Directory, cfg.Conn.Database)
	if err := dir.Create(); err != nil {
		return "", fmt.Errorf("creating working directory: %w", err)
	}

	// Schema first: raw vendor output, then the tokenised rewrite and the
	// three stage files that restore applies.
	log.Info("dumping schema of %s", cfg.Conn.Database)
	if err := dump.DumpSchema(cfg.Conn, dir.SchemaPath(layout.SchemaOriginal)); err != nil {
		return "", err
	}
	raw, err := os.ReadFile(dir.SchemaPath(layout.SchemaOriginal))
	if err != nil {
		return "", err
	}
	tokenised := ddl.Rewrite(string(raw), cfg.Conn.Database)
	if err := os.WriteFile(dir.SchemaPath(layout.SchemaTokenised), []byte(tokenised), 0o644); err != nil {
		return "", err
	}
	if err := writeStageFiles(dir, tokenised); err != nil {
		return "", err
	}

	db, err := mysql.ConnectRetry(cfg.Conn, nil)
	if err != nil {
		return "", err
	}
	if v, err := mysql.GetServerVersion(db); err == nil {
		log.Debug("server version %s", v)
	}
	tables, err := mysql.ListBaseTables(db, cfg.Conn.Database, cfg.Tables)
	db.Close()
	if err != nil {
		return "", err
	}
	log.Info("%d tables to dump with %d workers", len(tables), cfg.Jobs)

	forced := make(map[string]bool, len(cfg.FallbackTables))
	for _, t := range cfg.FallbackTables {
		forced[t] = true
	}

	workers := pool.New(cfg.Jobs)
	for _, table := range tables {
		d := &dump.TableDumper{
			Conn:          cfg.Conn,
			Dir:           dir,
			Log:           log,
			Sample:        cfg.Sample,
			CheckCount:    cfg.CheckCount,
			PageSize:      cfg.PageSize,
			ForceFallback: forced[table],
		}
		table := table
		workers.Submit(table, func() error { return d.Dump(table) })
	}
	if err := workers.Wait(); err != nil {
		return "", fmt.Errorf("dump of table %s failed: %w", workers.Failed(), err)
	}

	log.Info("archiving %s", dir.Path())
	archive, err := dump.Archive(dir)
	if err != nil {
		return "", err
	}
	log.Success("archive ready: %s", archive)
	return archive, nil
}

// writeStageFiles splits schema DDL into the three application stages and
// writes them under the working directory.
func writeStageFiles(dir layout.Dir, schema string) error {
	split, err := ddl.SplitStages(strings.NewReader(schema))
	if err != nil {
		return err
	}

	if err := os.WriteFile(dir.SchemaPath(layout.Stage1File), []byte(split.Stage1), 0o644); err != nil {
		return err
	}
	for stageDir, stage := range map[string]map[string]string{
		layout.Stage2Dir: split.Stage2,
		layout.Stage3Dir: split.Stage3,
	} {
		if len(stage) == 0 {
			continue
		}
		if err := os.MkdirAll(filepath.Join(dir.Path(), stageDir), 0o755); err != nil {
			return err
		}
		for table, stmt := range stage {
			if err := os.WriteFile(dir.StagePath(stageDir, table), []byte(stmt), 0o644); err != nil {
				return err
			}
		}
	}
	return nil
}
