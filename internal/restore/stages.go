package restore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"

	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/nethalo/acceldump/internal/layout"
	"github.com/nethalo/acceldump/internal/mysql"
)

var (
	stageParser    *sqlparser.Parser
	stageParserErr error
	parserOnce     sync.Once
)

func getParser() (*sqlparser.Parser, error) {
	parserOnce.Do(func() {
		stageParser, stageParserErr = sqlparser.New(sqlparser.Options{})
	})
	return stageParser, stageParserErr
}

// ApplyStage1 executes the stage-1 DDL file (tables without keys, plus
// views, functions and procedures) statement by statement. mysqldump output
// is a multi-statement blob; the parser splits it without being confused by
// semicolons inside routine bodies or string literals.
func ApplyStage1(conn mysql.ConnectionConfig, path string) error {
	// Stage 1 creates the database itself, so the session starts unbound.
	cfg := conn
	cfg.Database = ""
	db, err := mysql.ConnectRetry(cfg, nil)
	if err != nil {
		return err
	}
	defer db.Close()
	return applyStage1(db, path)
}

func applyStage1(db *sql.DB, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading stage-1 DDL: %w", err)
	}

	p, err := getParser()
	if err != nil {
		return err
	}
	pieces, err := p.SplitStatementToPieces(string(data))
	if err != nil {
		return fmt.Errorf("splitting stage-1 DDL: %w", err)
	}

	// The blob selects its database with USE, which only binds the session
	// that ran it; the pool may swap sessions between Execs, so every piece
	// runs on one pinned connection.
	ctx := context.Background()
	sess, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	for _, stmt := range pieces {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := sess.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("stage-1 DDL failed: %w (statement: %.120s)", err, stmt)
		}
	}
	return nil
}

// ApplyStageTable executes one table's stage-2 or stage-3 ALTER file.
func ApplyStageTable(conn mysql.ConnectionConfig, dir layout.Dir, stageDir, table string) error {
	data, err := os.ReadFile(dir.StagePath(stageDir, table))
	if err != nil {
		return fmt.Errorf("reading %s DDL for %s: %w", stageDir, table, err)
	}

	db, err := mysql.ConnectRetry(conn, nil)
	if err != nil {
		return err
	}
	defer db.Close()

	stmt := strings.TrimSuffix(strings.TrimSpace(string(data)), ";")
	if stmt == "" {
		return nil
	}
	if _, err := db.Exec(stmt); err != nil {
		return fmt.Errorf("%s ALTER for %s failed: %w", stageDir, table, err)
	}
	return nil
}
