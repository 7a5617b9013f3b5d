package ddl

import (
	"strings"
	"testing"
)

func TestStripDefiner(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "version gated wrapper with sql security",
			in:   "/*!50017 DEFINER=`dev`@`%` SQL SECURITY DEFINER */ PROCEDURE foo()",
			want: "PROCEDURE foo()",
		},
		{
			name: "bare definer",
			in:   "CREATE DEFINER=`root`@`localhost` PROCEDURE p()",
			want: "CREATE PROCEDURE p()",
		},
		{
			name: "unquoted user and wildcard host",
			in:   "CREATE DEFINER=admin@% FUNCTION f() RETURNS INT",
			want: "CREATE FUNCTION f() RETURNS INT",
		},
		{
			name: "host with dots",
			in:   "CREATE DEFINER=`app`@`10.0.0.%` TRIGGER trg BEFORE INSERT",
			want: "CREATE TRIGGER trg BEFORE INSERT",
		},
		{
			name: "view definer inside versioned comment",
			in:   "/*!50013 DEFINER=`dev`@`%` SQL SECURITY DEFINER */",
			want: "",
		},
		{
			name: "no definer unchanged",
			in:   "CREATE TABLE `users` (",
			want: "CREATE TABLE `users` (",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := strings.TrimSpace(StripDefiner(tt.in))
			if got != tt.want {
				t.Errorf("StripDefiner(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTokeniseWholeWordOnly(t *testing.T) {
	in := "CREATE DATABASE acme;\nUSE acme;\n-- acme_archive is a different schema\nSELECT 'acmeish';"
	got := Tokenise(in, "acme")

	if strings.Contains(got, "CREATE DATABASE acme;") {
		t.Error("database name survived tokenisation")
	}
	if !strings.Contains(got, "CREATE DATABASE #DATABASE#;") {
		t.Errorf("missing token in %q", got)
	}
	// acme_archive and acmeish are not whole-word matches
	if !strings.Contains(got, "acme_archive") {
		t.Error("tokenised inside identifier acme_archive")
	}
	if !strings.Contains(got, "acmeish") {
		t.Error("tokenised inside word acmeish")
	}
}

func TestDetokenise(t *testing.T) {
	in := "CREATE DATABASE #DATABASE#;\nUSE #DATABASE#;"
	want := "CREATE DATABASE acme_stage;\nUSE acme_stage;"
	if got := Detokenise(in, "acme_stage"); got != want {
		t.Errorf("Detokenise = %q, want %q", got, want)
	}
}

func TestTokeniseDetokeniseFixedPoint(t *testing.T) {
	canonical := "CREATE DATABASE shop;\nUSE shop;\nCREATE TABLE `users` (id int);"

	tokenised := Tokenise(canonical, "shop")
	if Detokenise(tokenised, "shop") != canonical {
		t.Error("detokenise(tokenise(x)) != x")
	}
	if Tokenise(Detokenise(tokenised, "shop"), "shop") != tokenised {
		t.Error("tokenise(detokenise(y)) != y")
	}
}

func TestRewrite(t *testing.T) {
	in := strings.Join([]string{
		"CREATE DATABASE /*!32312 IF NOT EXISTS*/ `shop`;",
		"ALTER DATABASE `shop` CHARACTER SET latin1;",
		"/*!50017 DEFINER=`dev`@`%` SQL SECURITY DEFINER */ PROCEDURE foo()",
		"USE `shop`;",
	}, "\n")

	got := Rewrite(in, "shop")

	if strings.Contains(got, "shop") {
		t.Errorf("source database name survived: %q", got)
	}
	if strings.Contains(got, "DEFINER") {
		t.Errorf("DEFINER survived: %q", got)
	}
	if strings.Contains(got, "ALTER DATABASE") {
		t.Errorf("ALTER DATABASE line survived: %q", got)
	}
	if !strings.Contains(got, "USE `#DATABASE#`;") {
		t.Errorf("USE line not tokenised: %q", got)
	}
}
