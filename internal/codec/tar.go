package codec

import (
	"fmt"
	"os/exec"
)

// TarCreate archives one directory (relative to root) into out. The tar
// binary is invoked directly, never through a shell.
func TarCreate(root, dir, out string) error {
	cmd := exec.Command("tar", "-cf", out, dir)
	cmd.Dir = root
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("tar create failed: %w (output: %s)", err, output)
	}
	return nil
}

// TarExtract unpacks an archive into dir.
func TarExtract(archive, dir string) error {
	cmd := exec.Command("tar", "-xf", archive)
	cmd.Dir = dir
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("tar extract failed: %w (output: %s)", err, output)
	}
	return nil
}
