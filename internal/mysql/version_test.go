package mysql

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		raw    string
		major  int
		minor  int
		patch  int
		flavor string
	}{
		{"8.0.35", 8, 0, 35, "mysql"},
		{"8.0.35-27-Percona Server", 8, 0, 35, "percona"},
		{"10.11.6-MariaDB", 10, 11, 6, "mariadb"},
		{"8.0.mysql_aurora.3.04.0", 8, 0, 0, "aurora-mysql"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			v, err := ParseVersion(tt.raw)
			if err != nil {
				t.Fatalf("ParseVersion(%q): %v", tt.raw, err)
			}
			if v.Major != tt.major || v.Minor != tt.minor || v.Patch != tt.patch {
				t.Errorf("version = %d.%d.%d, want %d.%d.%d",
					v.Major, v.Minor, v.Patch, tt.major, tt.minor, tt.patch)
			}
			if v.Flavor != tt.flavor {
				t.Errorf("flavor = %q, want %q", v.Flavor, tt.flavor)
			}
		})
	}
}

func TestParseVersionGarbage(t *testing.T) {
	if _, err := ParseVersion("not-a-version"); err == nil {
		t.Error("expected error for unparseable version")
	}
}

func TestLocalInfileEnabled(t *testing.T) {
	tests := []struct {
		value string
		want  bool
	}{
		{"ON", true},
		{"1", true},
		{"OFF", false},
		{"0", false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatal(err)
			}
			defer db.Close()

			mock.ExpectQuery("SHOW GLOBAL VARIABLES").
				WillReturnRows(sqlmock.NewRows([]string{"Variable_name", "Value"}).
					AddRow("local_infile", tt.value))

			got, err := LocalInfileEnabled(db)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("LocalInfileEnabled(%s) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestLocalInfileEnabledMissingVariable(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	mock.ExpectQuery("SHOW GLOBAL VARIABLES").
		WillReturnRows(sqlmock.NewRows([]string{"Variable_name", "Value"}))

	got, err := LocalInfileEnabled(db)
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Error("missing variable should read as disabled")
	}
}
