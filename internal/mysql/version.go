package mysql

import (
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ServerVersion represents a parsed MySQL version.
type ServerVersion struct {
	Raw    string // e.g. "8.0.35-27-Percona Server"
	Major  int
	Minor  int
	Patch  int
	Flavor string // "mysql", "percona", "mariadb", "aurora-mysql"
}

// String returns a human-readable version string.
func (v ServerVersion) String() string {
	return fmt.Sprintf("%d.%d.%d (%s)", v.Major, v.Minor, v.Patch, v.Flavor)
}

var (
	auroraRe  = regexp.MustCompile(`^(\d+)\.(\d+)\.mysql_aurora\.`)
	versionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)`)
)

// GetServerVersion queries and parses the server version.
func GetServerVersion(db *sql.DB) (ServerVersion, error) {
	var raw string
	if err := db.QueryRow("SELECT VERSION()").Scan(&raw); err != nil {
		return ServerVersion{}, fmt.Errorf("querying version: %w", err)
	}
	return ParseVersion(raw)
}

// ParseVersion parses a MySQL version string.
func ParseVersion(raw string) (ServerVersion, error) {
	v := ServerVersion{Raw: raw}

	// Aurora versions have no numeric patch; check first.
	if m := auroraRe.FindStringSubmatch(raw); len(m) >= 3 {
		v.Major, _ = strconv.Atoi(m[1])
		v.Minor, _ = strconv.Atoi(m[2])
		v.Flavor = "aurora-mysql"
		return v, nil
	}

	matches := versionRe.FindStringSubmatch(raw)
	if len(matches) < 4 {
		return v, fmt.Errorf("could not parse version: %s", raw)
	}
	v.Major, _ = strconv.Atoi(matches[1])
	v.Minor, _ = strconv.Atoi(matches[2])
	v.Patch, _ = strconv.Atoi(matches[3])

	lower := strings.ToLower(raw)
	switch {
	case strings.Contains(lower, "percona"):
		v.Flavor = "percona"
	case strings.Contains(lower, "mariadb"):
		v.Flavor = "mariadb"
	default:
		v.Flavor = "mysql"
	}
	return v, nil
}

// LocalInfileEnabled reports whether the server permits LOAD DATA LOCAL
// INFILE. Restore fails fast with a clear message when it is off.
func LocalInfileEnabled(db *sql.DB) (bool, error) {
	var name, value string
	err := db.QueryRow("SHOW GLOBAL VARIABLES LIKE 'local\\_infile'").Scan(&name, &value)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("reading local_infile: %w", err)
	}
	return strings.EqualFold(value, "ON") || value == "1", nil
}
