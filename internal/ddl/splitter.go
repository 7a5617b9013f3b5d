package ddl

import (
	"bufio"
	"io"
	"regexp"
	"strings"
)

// StageSplit is the result of splitting schema DDL into application stages.
// Stage 1 creates tables with column definitions only (plus views, functions
// and procedures); stage 2 adds primary and secondary keys per table; stage
// 3 adds foreign-key constraints per table. Loading into keyless tables and
// adding keys afterwards is far cheaper than loading into keyed ones.
type StageSplit struct {
	Stage1 string
	Stage2 map[string]string // table -> ALTER TABLE statement
	Stage3 map[string]string // table -> ALTER TABLE statement
	Tables []string          // tables in order of appearance
}

type splitState int

const (
	stateSchema splitState = iota // outside any table block
	statePreamble
	stateColumns
)

var (
	reTableComment = regexp.MustCompile("^-- Table structure for table `(.+)`")
	reCreateTable  = regexp.MustCompile("^CREATE TABLE `.+` \\($")
	reTableEnd     = regexp.MustCompile(`^\) ENGINE=`)
)

// SplitStages runs the line-oriented splitter over schema DDL. The input is
// expected to be mysqldump table-structure output (tokenised or already
// detokenised); lines outside table blocks pass through to stage 1
// untouched, which carries views, routines and database statements.
func SplitStages(r io.Reader) (*StageSplit, error) {
	split := &StageSplit{
		Stage2: make(map[string]string),
		Stage3: make(map[string]string),
	}

	var (
		state    = stateSchema
		stage1   strings.Builder
		table    string
		columns  []string
		keyFrags []string // stage-2 fragments
		fkFrags  []string // stage-3 fragments
		hasAutoI bool
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := scanner.Text()

		switch state {
		case stateSchema, statePreamble:
			if m := reTableComment.FindStringSubmatch(line); m != nil {
				table = m[1]
				columns = columns[:0]
				keyFrags = keyFrags[:0]
				fkFrags = fkFrags[:0]
				hasAutoI = false
				state = statePreamble
			} else if reCreateTable.MatchString(line) {
				state = stateColumns
			}
			stage1.WriteString(line)
			stage1.WriteByte('\n')

		case stateColumns:
			if reTableEnd.MatchString(line) {
				stage1.WriteString(strings.Join(columns, ",\n"))
				stage1.WriteByte('\n')
				stage1.WriteString(line)
				stage1.WriteByte('\n')
				closeTable(split, table, keyFrags, fkFrags)
				state = stateSchema
				continue
			}

			def := strings.TrimSuffix(strings.TrimRight(line, " "), ",")
			trimmed := strings.TrimSpace(def)

			switch {
			case strings.HasPrefix(trimmed, "PRIMARY KEY"):
				// Already implied by the stage-2 MODIFY when the table has
				// an AUTO_INCREMENT column.
				if !hasAutoI {
					keyFrags = append(keyFrags, "ADD "+trimmed)
				}
			case strings.HasPrefix(trimmed, "UNIQUE KEY"),
				strings.HasPrefix(trimmed, "KEY"),
				strings.HasPrefix(trimmed, "FULLTEXT KEY"),
				strings.HasPrefix(trimmed, "SPATIAL KEY"),
				strings.HasPrefix(trimmed, "INDEX"):
				keyFrags = append(keyFrags, "ADD "+trimmed)
			case strings.HasPrefix(trimmed, "CONSTRAINT"):
				fkFrags = append(fkFrags, "ADD "+trimmed)
			case strings.Contains(trimmed, "AUTO_INCREMENT"):
				clean := strings.Join(strings.Fields(strings.ReplaceAll(trimmed, "AUTO_INCREMENT", "")), " ")
				columns = append(columns, "  "+clean)
				keyFrags = append(keyFrags, "MODIFY "+clean+" AUTO_INCREMENT PRIMARY KEY")
				hasAutoI = true
			default:
				columns = append(columns, def)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	split.Stage1 = stage1.String()
	return split, nil
}

func closeTable(split *StageSplit, table string, keyFrags, fkFrags []string) {
	if table == "" {
		return
	}
	split.Tables = append(split.Tables, table)
	if len(keyFrags) > 0 {
		split.Stage2[table] = alterStatement(table, keyFrags)
	}
	if len(fkFrags) > 0 {
		split.Stage3[table] = alterStatement(table, fkFrags)
	}
}

func alterStatement(table string, frags []string) string {
	return "ALTER TABLE `" + table + "`\n  " + strings.Join(frags, ",\n  ") + ";\n"
}
