package dump

import (
	"fmt"
	"os"

	"github.com/nethalo/acceldump/internal/codec"
	"github.com/nethalo/acceldump/internal/layout"
)

// Archive tars the working directory, renames the tar to the final
// <database>.accel.dump name, and removes the working directory. The rename
// is last so a crash never leaves a complete-looking archive behind.
func Archive(dir layout.Dir) (string, error) {
	tar := dir.TarPath()
	if err := codec.TarCreate(dir.Root, dir.Database, tar); err != nil {
		return "", err
	}
	archive := dir.ArchivePath()
	if err := os.Rename(tar, archive); err != nil {
		return "", fmt.Errorf("renaming archive: %w", err)
	}
	if err := dir.Remove(); err != nil {
		return "", fmt.Errorf("removing working directory: %w", err)
	}
	return archive, nil
}

