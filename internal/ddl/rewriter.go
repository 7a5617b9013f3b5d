// Package ddl rewrites mysqldump schema output: ownership directives are
// stripped, the source database name is tokenised so an archive can be
// restored under a different name, and CREATE TABLE statements are split
// into three application stages (columns, keys, foreign keys).
package ddl

import (
	"regexp"
	"strings"
)

// DatabaseToken replaces the source database name in tokenised DDL.
const DatabaseToken = "#DATABASE#"

// reDefiner matches DEFINER clauses together with their version-gated
// comment wrappers, e.g.
//
//	/*!50017 DEFINER=`dev`@`%` SQL SECURITY DEFINER */
//	DEFINER=`root`@`localhost`
//
// User and host may be backticked or bare; hosts allow dots and % wildcards.
// The SQL SECURITY DEFINER clause can appear before or after the closing
// wrapper depending on server version.
var reDefiner = regexp.MustCompile(
	"(?:\\*/)?\\s*(?:/\\*!\\d+)?\\s*DEFINER\\s*=\\s*(?:`[^`]*`|[\\w%.]+)\\s*@\\s*(?:`[^`]*`|[\\w%.-]+)" +
		"(?:\\s+SQL\\s+SECURITY\\s+DEFINER)?\\s*(?:\\*/)?(?:\\s+SQL\\s+SECURITY\\s+DEFINER)?")

// StripDefiner removes any DEFINER directive from a single line, collapsing
// the matched run to one space. A match at the start of the line leaves no
// leading whitespace behind.
func StripDefiner(line string) string {
	loc := reDefiner.FindStringIndex(line)
	if loc == nil {
		return line
	}
	out := reDefiner.ReplaceAllString(line, " ")
	if loc[0] == 0 {
		out = strings.TrimLeft(out, " ")
	}
	return out
}

// wordPattern builds a whole-word regex for a literal name.
func wordPattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
}

// Tokenise replaces every whole-word occurrence of the database name with
// the database token.
func Tokenise(text, database string) string {
	return wordPattern(database).ReplaceAllString(text, DatabaseToken)
}

// Detokenise substitutes the target database name for every token.
func Detokenise(text, target string) string {
	return strings.ReplaceAll(text, DatabaseToken, target)
}

// Rewrite turns raw mysqldump schema output into tokenised DDL: DEFINER
// directives are stripped, ALTER DATABASE statements dropped, and the
// source database name tokenised. Deterministic for a given input.
func Rewrite(text, database string) string {
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.HasPrefix(line, "ALTER DATABASE") {
			continue
		}
		out = append(out, StripDefiner(line))
	}
	return Tokenise(strings.Join(out, "\n"), database)
}
