package cmd

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	origVersion := Version
	origCommitSHA := CommitSHA
	origBuildDate := BuildDate
	Version = "1.2.3"
	CommitSHA = "abc123"
	BuildDate = "2026-01-15"
	defer func() {
		Version = origVersion
		CommitSHA = origCommitSHA
		BuildDate = origBuildDate
	}()

	output := &bytes.Buffer{}
	versionCmd.SetOut(output)
	versionCmd.SetErr(output)

	versionCmd.Run(versionCmd, []string{})

	result := output.String()
	for _, want := range []string{"1.2.3", "abc123", "2026-01-15", "mysqldump", "gzip"} {
		if !strings.Contains(result, want) {
			t.Errorf("version output should contain %q, got: %s", want, result)
		}
	}
}

func TestVersionCommandStructure(t *testing.T) {
	if versionCmd == nil {
		t.Fatal("versionCmd should not be nil")
	}
	if versionCmd.Use != "version" {
		t.Errorf("versionCmd.Use = %q, want version", versionCmd.Use)
	}
	if versionCmd.Short == "" {
		t.Error("versionCmd.Short should not be empty")
	}
}
