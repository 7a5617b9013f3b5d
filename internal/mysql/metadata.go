package mysql

import (
	"database/sql"
	"fmt"
	"strings"
)

// Column describes one column of a table, as reported by
// information_schema.COLUMNS.
type Column struct {
	Name     string
	DataType string // lowercase DATA_TYPE, e.g. "varchar", "longblob"
	Position int
}

// IsBlob reports whether the column is stored as a BLOB variant.
func (c Column) IsBlob() bool {
	return strings.Contains(strings.ToLower(c.DataType), "blob")
}

// IsText reports whether the column is a TEXT variant.
func (c Column) IsText() bool {
	return strings.Contains(strings.ToLower(c.DataType), "text")
}

// escapeIdentifier safely escapes a MySQL identifier (database, table,
// column name) by wrapping it in backticks and escaping any backticks
// within the identifier.
func escapeIdentifier(identifier string) string {
	escaped := strings.ReplaceAll(identifier, "`", "``")
	return "`" + escaped + "`"
}

// ListBaseTables returns the base-table names of a database in name order.
// A non-empty include list restricts the result to the named tables.
func ListBaseTables(db *sql.DB, database string, include []string) ([]string, error) {
	rows, err := db.Query(`
		SELECT TABLE_NAME
		FROM information_schema.TABLES
		WHERE TABLE_SCHEMA = ? AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`, database)
	if err != nil {
		return nil, fmt.Errorf("querying base tables: %w", err)
	}
	defer rows.Close()

	var wanted map[string]bool
	if len(include) > 0 {
		wanted = make(map[string]bool, len(include))
		for _, t := range include {
			wanted[t] = true
		}
	}

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		if wanted != nil && !wanted[name] {
			continue
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

// GetRowCount returns the exact row count of a table.
func GetRowCount(db *sql.DB, database, table string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s.%s",
		escapeIdentifier(database), escapeIdentifier(table))
	if err := db.QueryRow(query).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting rows in %s: %w", table, err)
	}
	return count, nil
}

// GetColumnTypes returns the columns of a table in ordinal order.
func GetColumnTypes(db *sql.DB, database, table string) ([]Column, error) {
	rows, err := db.Query(`
		SELECT COLUMN_NAME, DATA_TYPE, ORDINAL_POSITION
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION
	`, database, table)
	if err != nil {
		return nil, fmt.Errorf("querying columns of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DataType, &c.Position); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s.%s not found", database, table)
	}
	return cols, rows.Err()
}

// GetPrimaryOrUniqueKeys returns the column names of the table's primary
// key, or of its first unique index when no primary key exists. The result
// is empty when the table has neither.
func GetPrimaryOrUniqueKeys(db *sql.DB, database, table string) ([]string, error) {
	rows, err := db.Query(`
		SELECT INDEX_NAME, COLUMN_NAME
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ? AND NON_UNIQUE = 0
		ORDER BY INDEX_NAME, SEQ_IN_INDEX
	`, database, table)
	if err != nil {
		return nil, fmt.Errorf("querying keys of %s: %w", table, err)
	}
	defer rows.Close()

	indexCols := make(map[string][]string)
	var order []string
	for rows.Next() {
		var idx, col string
		if err := rows.Scan(&idx, &col); err != nil {
			return nil, err
		}
		if _, seen := indexCols[idx]; !seen {
			order = append(order, idx)
		}
		indexCols[idx] = append(indexCols[idx], col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if cols, ok := indexCols["PRIMARY"]; ok {
		return cols, nil
	}
	if len(order) > 0 {
		return indexCols[order[0]], nil
	}
	return nil, nil
}

// ExportList is the derived SELECT list for a table export.
type ExportList struct {
	// Expressions in SELECT-list order: `col` for ordinary columns,
	// HEX(`col`) for BLOB columns.
	Expressions []string
	// Names in column order, used for the CSV header line.
	Names []string
	// PagingRequired is true when any column is BLOB- or TEXT-typed; those
	// rows can exceed the bulk-load packet budget and cannot be streamed.
	PagingRequired bool
}

// ExportExpressions derives the SELECT list for dumping a table.
func ExportExpressions(cols []Column) ExportList {
	out := ExportList{
		Expressions: make([]string, 0, len(cols)),
		Names:       make([]string, 0, len(cols)),
	}
	for _, c := range cols {
		if c.IsBlob() {
			out.Expressions = append(out.Expressions, "HEX("+escapeIdentifier(c.Name)+")")
		} else {
			out.Expressions = append(out.Expressions, escapeIdentifier(c.Name))
		}
		out.Names = append(out.Names, c.Name)
		if c.IsBlob() || c.IsText() {
			out.PagingRequired = true
		}
	}
	return out
}

// ImportList is the derived LOAD DATA column list for a table restore.
type ImportList struct {
	// Placeholders in column order: `col`, or @col for BLOB columns whose
	// hex payload is decoded by a SET clause.
	Placeholders []string
	// SetClauses holds one `col`=UNHEX(@col) fragment per BLOB column.
	SetClauses []string
}

// ImportExpressions derives the LOAD DATA column and SET lists for a table.
func ImportExpressions(cols []Column) ImportList {
	out := ImportList{Placeholders: make([]string, 0, len(cols))}
	for _, c := range cols {
		if c.IsBlob() {
			out.Placeholders = append(out.Placeholders, "@"+c.Name)
			out.SetClauses = append(out.SetClauses,
				escapeIdentifier(c.Name)+"=UNHEX(@"+c.Name+")")
		} else {
			out.Placeholders = append(out.Placeholders, escapeIdentifier(c.Name))
		}
	}
	return out
}
