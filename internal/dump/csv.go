package dump

import (
	"database/sql"
	"io"
	"strings"
)

// The shard CSV dialect: comma separator, double-quote quoting, backslash
// escaping, literal \N for NULL, LF terminator. Fields are quoted when they
// contain the separator, a quote, a newline, or leading/trailing
// whitespace. The escape sequences are the ones LOAD DATA decodes with its
// default ESCAPED BY '\\'.

const nullLiteral = `\N`

var fieldEscaper = strings.NewReplacer(
	`\`, `\\`,
	`"`, `\"`,
	"\n", `\n`,
	"\r", `\r`,
)

func needsQuoting(s string) bool {
	if s == "" {
		return false
	}
	if strings.ContainsAny(s, ",\"\n\r") {
		return true
	}
	return s != strings.TrimSpace(s)
}

func encodeField(sb *strings.Builder, field sql.NullString) {
	if !field.Valid {
		sb.WriteString(nullLiteral)
		return
	}
	if needsQuoting(field.String) {
		sb.WriteByte('"')
		sb.WriteString(fieldEscaper.Replace(field.String))
		sb.WriteByte('"')
		return
	}
	sb.WriteString(fieldEscaper.Replace(field.String))
}

// csvWriter streams rows in the shard dialect.
type csvWriter struct {
	w  io.Writer
	sb strings.Builder
}

func newCSVWriter(w io.Writer) *csvWriter {
	return &csvWriter{w: w}
}

// writeHeader emits the comma-joined column-name line.
func (c *csvWriter) writeHeader(names []string) error {
	_, err := io.WriteString(c.w, strings.Join(names, ",")+"\n")
	return err
}

// writeRow encodes one result-set row.
func (c *csvWriter) writeRow(fields []sql.NullString) error {
	c.sb.Reset()
	for i, f := range fields {
		if i > 0 {
			c.sb.WriteByte(',')
		}
		encodeField(&c.sb, f)
	}
	c.sb.WriteByte('\n')
	_, err := io.WriteString(c.w, c.sb.String())
	return err
}
