// Package codec wraps the subprocess compression pipelines: a gzip child
// on the dump side (rows stream through a kernel pipe, so a slow gzip
// applies backpressure all the way to the SQL driver) and a gunzip child
// feeding a named pipe on the restore side.
package codec

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
)

// GzipWriter streams writes through a gzip child into a file.
type GzipWriter struct {
	path   string
	file   *os.File
	cmd    *exec.Cmd
	stdin  *os.File
	stderr bytes.Buffer
	closed bool
}

// NewGzipWriter opens the destination file and starts the gzip child.
func NewGzipWriter(path string) (*GzipWriter, error) {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}

	pr, pw, err := os.Pipe()
	if err != nil {
		file.Close()
		return nil, err
	}

	w := &GzipWriter{path: path, file: file, stdin: pw}
	w.cmd = exec.Command("gzip", "-c")
	w.cmd.Stdin = pr
	w.cmd.Stdout = file
	w.cmd.Stderr = &w.stderr

	if err := w.cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		file.Close()
		return nil, fmt.Errorf("starting gzip for %s: %w", path, err)
	}
	// Parent's copy of the read end; the child holds its own.
	pr.Close()
	return w, nil
}

// Write sends bytes into the gzip child. Blocks when the pipe is full.
func (w *GzipWriter) Write(p []byte) (int, error) {
	return w.stdin.Write(p)
}

// Path returns the destination file path.
func (w *GzipWriter) Path() string {
	return w.path
}

// Close flushes the pipeline: closes the child's stdin, waits for gzip to
// drain, and closes the destination file.
func (w *GzipWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	stdinErr := w.stdin.Close()
	waitErr := w.cmd.Wait()
	fileErr := w.file.Close()

	if waitErr != nil {
		return fmt.Errorf("gzip failed for %s: %w (stderr: %s)",
			w.path, waitErr, w.stderr.String())
	}
	if stdinErr != nil {
		return stdinErr
	}
	return fileErr
}

// Abort tears the pipeline down without caring about gzip's exit status.
// Used when a dump attempt fails and the shard will be deleted anyway.
func (w *GzipWriter) Abort() {
	if w.closed {
		return
	}
	w.closed = true
	w.stdin.Close()
	w.cmd.Wait()
	w.file.Close()
}
