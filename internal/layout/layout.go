// Package layout fixes the on-disk naming of a dump working directory:
// sharded data files, info and key-page sidecars, schema stages and the
// final archive. Every worker owns its table's namespace exclusively, so
// names carry the table and an ordinal and nothing else.
package layout

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Schema file names inside the working directory.
const (
	SchemaOriginal  = "schema.ddl.orig"
	SchemaTokenised = "schema.ddl.tokenised"
	Stage1File      = "accel_schema_stage_1.ddl"
	Stage2Dir       = "stage_2"
	Stage3Dir       = "stage_3"
)

// ArchiveSuffix is the extension of a finished dump archive.
const ArchiveSuffix = ".accel.dump"

// Dir is the working directory of one database's dump or restore,
// `<root>/<database>`.
type Dir struct {
	Root     string
	Database string
}

// NewDir returns the layout rooted at root for the named database.
func NewDir(root, database string) Dir {
	return Dir{Root: root, Database: database}
}

// Path is the working directory itself.
func (d Dir) Path() string {
	return filepath.Join(d.Root, d.Database)
}

// Create makes the working directory.
func (d Dir) Create() error {
	return os.MkdirAll(d.Path(), 0o755)
}

// Remove deletes the working directory and everything under it.
func (d Dir) Remove() error {
	return os.RemoveAll(d.Path())
}

// ShardPath names the n-th data shard of a table. Ordinals are one-based
// and zero-padded so lexical order is load order.
func (d Dir) ShardPath(table string, n int) string {
	return filepath.Join(d.Path(), fmt.Sprintf("%s.%06d.csv.gz", table, n))
}

// FallbackPath names the vendor-format dump of a table.
func (d Dir) FallbackPath(table string) string {
	return filepath.Join(d.Path(), table+".sql.gz")
}

// InfoPath names the row-count sidecar of a table.
func (d Dir) InfoPath(table string) string {
	return filepath.Join(d.Path(), table+".info")
}

// KeyPagePath names the n-th key-page sidecar of a table.
func (d Dir) KeyPagePath(table string, n int) string {
	return filepath.Join(d.Path(), fmt.Sprintf("%s_keys.%06d.json", table, n))
}

// FIFOPath names the named pipe used to stream a table's shards into the
// bulk loader.
func (d Dir) FIFOPath(table string) string {
	return filepath.Join(d.Path(), table+".fifo")
}

// SchemaPath names a schema file inside the working directory.
func (d Dir) SchemaPath(name string) string {
	return filepath.Join(d.Path(), name)
}

// StagePath names a per-table stage-2 or stage-3 DDL file.
func (d Dir) StagePath(stageDir, table string) string {
	return filepath.Join(d.Path(), stageDir, table+".ddl")
}

// TarPath is the intermediate archive name; it is renamed to ArchivePath
// once complete so a crash never leaves a plausible-looking archive behind.
func (d Dir) TarPath() string {
	return filepath.Join(d.Root, d.Database+".tar")
}

// ArchivePath is the final archive name.
func (d Dir) ArchivePath() string {
	return filepath.Join(d.Root, d.Database+ArchiveSuffix)
}

// ListShards returns a table's existing CSV shards in ordinal order.
func (d Dir) ListShards(table string) ([]string, error) {
	pattern := filepath.Join(d.Path(), table+".*.csv.gz")
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// ListStageTables returns the tables that have a DDL file in the given
// stage directory, in name order.
func (d Dir) ListStageTables(stageDir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(d.Path(), stageDir, "*.ddl"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, strings.TrimSuffix(filepath.Base(m), ".ddl"))
	}
	return tables, nil
}

// DatabaseFromArchive derives the database name from an archive path,
// `/backups/shop.accel.dump` -> `shop`.
func DatabaseFromArchive(archive string) string {
	return strings.TrimSuffix(filepath.Base(archive), ArchiveSuffix)
}

// Info is the row-count sidecar written next to a table's shards when
// count verification is requested.
type Info struct {
	RecordCount int64 `json:"record_count"`
}

// WriteInfo writes the sidecar for a table.
func (d Dir) WriteInfo(table string, info Info) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return os.WriteFile(d.InfoPath(table), data, 0o644)
}

// ReadInfo reads a table's sidecar. The second return is false when no
// sidecar exists.
func (d Dir) ReadInfo(table string) (Info, bool, error) {
	data, err := os.ReadFile(d.InfoPath(table))
	if err != nil {
		if os.IsNotExist(err) {
			return Info{}, false, nil
		}
		return Info{}, false, err
	}
	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, false, fmt.Errorf("parsing %s: %w", d.InfoPath(table), err)
	}
	return info, true, nil
}

// WriteKeyPage writes one key-page sidecar: a flat array of primary-or-
// unique-key column values, keyCount values per row.
func (d Dir) WriteKeyPage(table string, n int, values []any) error {
	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return os.WriteFile(d.KeyPagePath(table, n), data, 0o644)
}

// RemoveKeyPages deletes all key-page sidecars of a table. Called when the
// table's dump completes.
func (d Dir) RemoveKeyPages(table string) error {
	matches, err := filepath.Glob(filepath.Join(d.Path(), table+"_keys.*.json"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			return err
		}
	}
	return nil
}

// RemoveShards deletes all CSV shards of a table. Used between dump retry
// attempts so a re-run starts from a clean namespace.
func (d Dir) RemoveShards(table string) error {
	shards, err := d.ListShards(table)
	if err != nil {
		return err
	}
	for _, s := range shards {
		if err := os.Remove(s); err != nil {
			return err
		}
	}
	return nil
}
