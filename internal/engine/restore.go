package engine

import (
	"fmt"
	"os"
	"os/exec"
	"regexp"

	"github.com/nethalo/acceldump/internal/codec"
	"github.com/nethalo/acceldump/internal/ddl"
	"github.com/nethalo/acceldump/internal/layout"
	"github.com/nethalo/acceldump/internal/mysql"
	"github.com/nethalo/acceldump/internal/output"
	"github.com/nethalo/acceldump/internal/pool"
	"github.com/nethalo/acceldump/internal/restore"
)

// shardRe recognizes shard file names, capturing the table.
var shardRe = regexp.MustCompile(`^(.+)\.\d{6}\.csv\.gz$`)

// RestoreConfig carries everything a restore run needs. The connection's
// Database is the TARGET name; the archive's source name may differ.
type RestoreConfig struct {
	Conn      mysql.ConnectionConfig
	Directory string // working root for unpacking
	File      string // archive to restore
	Jobs      int

	AccelKeys         bool // three-stage schema application
	SkipCreateDB      bool // skip stage-1 DDL
	PostSchemaCommand string
	CheckCount        bool
}

// Restore unpacks an archive and loads it into the target database.
// Restore is not atomic: a failure leaves partially loaded tables behind.
func Restore(cfg RestoreConfig, log *output.Logger) error {
	source := layout.DatabaseFromArchive(cfg.File)
	target := cfg.Conn.Database
	dir := layout.NewDir(cfg.Directory, source)

	log.Info("unpacking %s", cfg.File)
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return err
	}
	if err := codec.TarExtract(cfg.File, cfg.Directory); err != nil {
		return err
	}

	// Detokenise the schema for the target name and regenerate the stage
	// files from it, overwriting the tokenised ones shipped in the archive.
	tokenised, err := os.ReadFile(dir.SchemaPath(layout.SchemaTokenised))
	if err != nil {
		return fmt.Errorf("reading tokenised schema: %w", err)
	}
	schema := ddl.Detokenise(string(tokenised), target)
	if err := writeStageFiles(dir, schema); err != nil {
		return err
	}

	if !cfg.SkipCreateDB {
		log.Info("applying stage-1 schema to %s", target)
		if err := restore.ApplyStage1(cfg.Conn, dir.SchemaPath(layout.Stage1File)); err != nil {
			return err
		}
	}
	if !cfg.AccelKeys {
		// Without the staged split, the full schema (keys and constraints
		// included) is in place before any data arrives.
		if err := applyStageSequential(cfg, dir, layout.Stage2Dir); err != nil {
			return err
		}
		if err := applyStageSequential(cfg, dir, layout.Stage3Dir); err != nil {
			return err
		}
	}

	if cfg.PostSchemaCommand != "" {
		log.Info("running post-schema command")
		out, err := exec.Command("sh", "-c", cfg.PostSchemaCommand).CombinedOutput()
		if len(out) > 0 {
			log.Debug("post-schema output: %s", out)
		}
		if err != nil {
			return fmt.Errorf("post-schema command failed: %w (output: %s)", err, out)
		}
	}

	if err := checkLocalInfile(cfg.Conn); err != nil {
		return err
	}

	tables, err := tablesInDir(dir)
	if err != nil {
		return err
	}
	log.Info("%d tables to load with %d workers", len(tables), cfg.Jobs)

	loaders := pool.New(cfg.Jobs)
	for _, table := range tables {
		r := &restore.TableRestorer{
			Conn:       cfg.Conn,
			Dir:        dir,
			Log:        log,
			CheckCount: cfg.CheckCount,
		}
		table := table
		loaders.Submit(table, func() error { return r.Restore(table) })
	}
	if err := loaders.Wait(); err != nil {
		return fmt.Errorf("load of table %s failed: %w", loaders.Failed(), err)
	}

	if cfg.AccelKeys {
		// Keys only after every load has returned, constraints only after
		// every key: strict barriers between stages.
		for _, stageDir := range []string{layout.Stage2Dir, layout.Stage3Dir} {
			if err := applyStageParallel(cfg, dir, stageDir, log); err != nil {
				return err
			}
		}
	}

	if err := dir.Remove(); err != nil {
		return fmt.Errorf("removing working directory: %w", err)
	}
	log.Success("restore of %s into %s complete", source, target)
	return nil
}

func applyStageParallel(cfg RestoreConfig, dir layout.Dir, stageDir string, log *output.Logger) error {
	tables, err := dir.ListStageTables(stageDir)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		return nil
	}
	log.Info("applying %s DDL for %d tables", stageDir, len(tables))

	alters := pool.New(cfg.Jobs)
	for _, table := range tables {
		table := table
		alters.Submit(table, func() error {
			return restore.ApplyStageTable(cfg.Conn, dir, stageDir, table)
		})
	}
	if err := alters.Wait(); err != nil {
		return fmt.Errorf("%s DDL for table %s failed: %w", stageDir, alters.Failed(), err)
	}
	return nil
}

func applyStageSequential(cfg RestoreConfig, dir layout.Dir, stageDir string) error {
	tables, err := dir.ListStageTables(stageDir)
	if err != nil {
		return err
	}
	for _, table := range tables {
		if err := restore.ApplyStageTable(cfg.Conn, dir, stageDir, table); err != nil {
			return err
		}
	}
	return nil
}

// checkLocalInfile fails the restore before any data moves when the server
// rejects LOAD DATA LOCAL INFILE.
func checkLocalInfile(conn mysql.ConnectionConfig) error {
	db, err := mysql.ConnectRetry(conn, nil)
	if err != nil {
		return err
	}
	defer db.Close()
	ok, err := mysql.LocalInfileEnabled(db)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("local_infile is disabled on the server; SET GLOBAL local_infile=1 and retry")
	}
	return nil
}

// tablesInDir enumerates the tables present in an unpacked archive: every
// table with CSV shards or a fallback dump.
func tablesInDir(dir layout.Dir) ([]string, error) {
	entries, err := os.ReadDir(dir.Path())
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var tables []string
	add := func(name string) {
		if !seen[name] {
			seen[name] = true
			tables = append(tables, name)
		}
	}
	for _, e := range entries {
		name := e.Name()
		switch {
		case shardRe.MatchString(name):
			add(shardRe.FindStringSubmatch(name)[1])
		case len(name) > 7 && name[len(name)-7:] == ".sql.gz":
			add(name[:len(name)-7])
		}
	}
	return tables, nil
}
