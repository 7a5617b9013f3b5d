package engine

import (
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/nethalo/acceldump/internal/layout"
)

func testDir(t *testing.T) layout.Dir {
	t.Helper()
	dir := layout.NewDir(t.TempDir(), "shop")
	if err := dir.Create(); err != nil {
		t.Fatal(err)
	}
	return dir
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestTablesInDir(t *testing.T) {
	dir := testDir(t)

	touch(t, dir.ShardPath("users", 1))
	touch(t, dir.ShardPath("users", 101))
	touch(t, dir.ShardPath("orders", 1))
	touch(t, dir.FallbackPath("blobs"))
	// Non-data files are not tables.
	touch(t, dir.InfoPath("users"))
	touch(t, dir.SchemaPath(layout.SchemaTokenised))
	touch(t, dir.SchemaPath(layout.Stage1File))

	tables, err := tablesInDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]bool{"users": true, "orders": true, "blobs": true}
	if len(tables) != len(want) {
		t.Fatalf("tables = %v, want %v", tables, want)
	}
	for _, table := range tables {
		if !want[table] {
			t.Errorf("unexpected table %q in %v", table, tables)
		}
	}
}

func TestTablesInDirDottedNames(t *testing.T) {
	dir := testDir(t)

	// Dots inside a table name must not confuse shard recognition.
	touch(t, dir.ShardPath("audit.v2", 1))
	tables, err := tablesInDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tables, []string{"audit.v2"}) {
		t.Errorf("tables = %v, want [audit.v2]", tables)
	}
}

const stageSchema = "CREATE DATABASE /*!32312 IF NOT EXISTS*/ `#DATABASE#`;\n" +
	"USE `#DATABASE#`;\n" +
	"-- Table structure for table `users`\n" +
	"CREATE TABLE `users` (\n" +
	"  `id` int NOT NULL AUTO_INCREMENT,\n" +
	"  `email` varchar(255) DEFAULT NULL,\n" +
	"  PRIMARY KEY (`id`),\n" +
	"  UNIQUE KEY `uniq_email` (`email`)\n" +
	") ENGINE=InnoDB;\n" +
	"-- Table structure for table `orders`\n" +
	"CREATE TABLE `orders` (\n" +
	"  `id` int NOT NULL,\n" +
	"  `user_id` int NOT NULL,\n" +
	"  KEY `idx_user` (`user_id`),\n" +
	"  CONSTRAINT `fk_user` FOREIGN KEY (`user_id`) REFERENCES `users` (`id`)\n" +
	") ENGINE=InnoDB;\n"

func TestWriteStageFiles(t *testing.T) {
	dir := testDir(t)

	if err := writeStageFiles(dir, stageSchema); err != nil {
		t.Fatal(err)
	}

	stage1, err := os.ReadFile(dir.SchemaPath(layout.Stage1File))
	if err != nil {
		t.Fatalf("stage-1 file missing: %v", err)
	}
	if strings.Contains(string(stage1), "UNIQUE KEY") || strings.Contains(string(stage1), "CONSTRAINT") {
		t.Errorf("stage-1 still carries keys or constraints:\n%s", stage1)
	}

	stage2, err := os.ReadFile(dir.StagePath(layout.Stage2Dir, "users"))
	if err != nil {
		t.Fatalf("stage-2 file for users missing: %v", err)
	}
	if !strings.Contains(string(stage2), "ADD UNIQUE KEY `uniq_email`") {
		t.Errorf("stage-2 for users lacks the unique key:\n%s", stage2)
	}

	stage3, err := os.ReadFile(dir.StagePath(layout.Stage3Dir, "orders"))
	if err != nil {
		t.Fatalf("stage-3 file for orders missing: %v", err)
	}
	if !strings.Contains(string(stage3), "ADD CONSTRAINT `fk_user`") {
		t.Errorf("stage-3 for orders lacks the constraint:\n%s", stage3)
	}

	// Tables without stage-3 DDL get no file.
	if _, err := os.Stat(dir.StagePath(layout.Stage3Dir, "users")); !os.IsNotExist(err) {
		t.Error("users has a stage-3 file but no constraints")
	}

	tables, err := dir.ListStageTables(layout.Stage2Dir)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tables, []string{"orders", "users"}) {
		t.Errorf("stage-2 tables = %v, want [orders users]", tables)
	}
}

func TestShardPatternRejectsForeignFiles(t *testing.T) {
	for _, name := range []string{
		"users.000001.csv.gz",
		"audit.v2.000101.csv.gz",
	} {
		if !shardRe.MatchString(name) {
			t.Errorf("%q not recognized as a shard", name)
		}
	}
	for _, name := range []string{
		"users.csv.gz",
		"users.1.csv.gz",
		"users.000001.csv",
		"users.sql.gz",
		"users.info",
	} {
		if shardRe.MatchString(name) {
			t.Errorf("%q wrongly recognized as a shard", name)
		}
	}
	if got := shardRe.FindStringSubmatch("audit.v2.000101.csv.gz")[1]; got != "audit.v2" {
		t.Errorf("captured table = %q, want audit.v2", got)
	}
}
