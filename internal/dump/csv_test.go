package dump

import (
	"database/sql"
	"strings"
	"testing"
)

func valid(s string) sql.NullString {
	return sql.NullString{String: s, Valid: true}
}

func TestCSVWriteRow(t *testing.T) {
	tests := []struct {
		name   string
		fields []sql.NullString
		want   string
	}{
		{
			name:   "plain scalars",
			fields: []sql.NullString{valid("1"), valid("alice"), valid("42.50")},
			want:   "1,alice,42.50\n",
		},
		{
			name:   "null becomes literal",
			fields: []sql.NullString{valid("1"), {}},
			want:   "1,\\N\n",
		},
		{
			name:   "separator forces quoting",
			fields: []sql.NullString{valid("a,b")},
			want:   "\"a,b\"\n",
		},
		{
			name:   "embedded quote escaped by backslash",
			fields: []sql.NullString{valid(`say "hi"`)},
			want:   "\"say \\\"hi\\\"\"\n",
		},
		{
			name:   "newline escaped inside quotes",
			fields: []sql.NullString{valid("line1\nline2")},
			want:   "\"line1\\nline2\"\n",
		},
		{
			name:   "backslash doubled",
			fields: []sql.NullString{valid(`C:\temp`)},
			want:   "C:\\\\temp\n",
		},
		{
			name:   "leading whitespace forces quoting",
			fields: []sql.NullString{valid(" padded")},
			want:   "\" padded\"\n",
		},
		{
			name:   "trailing whitespace forces quoting",
			fields: []sql.NullString{valid("padded ")},
			want:   "\"padded \"\n",
		},
		{
			name:   "empty string stays bare",
			fields: []sql.NullString{valid(""), valid("x")},
			want:   ",x\n",
		},
		{
			name: "mixed separator quote and newline",
			// The value hello,"world"<LF>line2 from a VARCHAR column.
			fields: []sql.NullString{valid("hello,\"world\"\nline2")},
			want:   "\"hello,\\\"world\\\"\\nline2\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			cw := newCSVWriter(&sb)
			if err := cw.writeRow(tt.fields); err != nil {
				t.Fatalf("writeRow: %v", err)
			}
			if got := sb.String(); got != tt.want {
				t.Errorf("writeRow = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCSVWriteHeader(t *testing.T) {
	var sb strings.Builder
	cw := newCSVWriter(&sb)
	if err := cw.writeHeader([]string{"id", "name", "email"}); err != nil {
		t.Fatalf("writeHeader: %v", err)
	}
	if got := sb.String(); got != "id,name,email\n" {
		t.Errorf("writeHeader = %q", got)
	}
}
