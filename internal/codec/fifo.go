package codec

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// Mkfifo creates a named pipe with mode 0600, removing any stale node at
// the same path first.
func Mkfifo(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale fifo %s: %w", path, err)
	}
	if err := unix.Mkfifo(path, 0o600); err != nil {
		return fmt.Errorf("mkfifo %s: %w", path, err)
	}
	return nil
}

// Feeder decompresses one shard into a FIFO. The write side of the pipe is
// opened in the background: a FIFO open blocks until the other end opens,
// and the reader (the bulk loader, or the vendor client) only appears once
// the caller issues its statement.
type Feeder struct {
	src  string
	fifo string
	done chan error
}

// FeedFIFO starts a gunzip child whose output is written to the FIFO.
func FeedFIFO(src, fifo string) *Feeder {
	f := &Feeder{src: src, fifo: fifo, done: make(chan error, 1)}
	go f.run()
	return f
}

func (f *Feeder) run() {
	out, err := os.OpenFile(f.fifo, os.O_WRONLY, 0)
	if err != nil {
		f.done <- fmt.Errorf("opening fifo %s for write: %w", f.fifo, err)
		return
	}
	defer out.Close()

	var stderr bytes.Buffer
	cmd := exec.Command("gzip", "-dc", f.src)
	cmd.Stdout = out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		f.done <- fmt.Errorf("decompressing %s: %w (stderr: %s)",
			f.src, err, stderr.String())
		return
	}
	f.done <- nil
}

// Wait blocks until the decompression child has exited and reports its
// status. A failed feeder is fatal for the table being loaded.
func (f *Feeder) Wait() error {
	return <-f.done
}

// Done exposes the completion channel for non-blocking checks. The status
// is delivered exactly once: a caller that receives from Done must not
// also call Wait.
func (f *Feeder) Done() <-chan error {
	return f.done
}
