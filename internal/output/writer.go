// Package output streams extracted links as plain lines, one link per line,
// to the console and to an output file.
package output

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// ErrNoDirectory is returned by OpenFile when the file's directory does not
// exist.
var ErrNoDirectory = errors.New("output directory does not exist")

// LineWriter writes each batch of links to w, one per line. Batches from
// concurrent pages never interleave.
type LineWriter struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	lines  int
}

// NewConsole writes links to w, typically os.Stdout. Close does not close w.
func NewConsole(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// OpenFile appends links to the file at path, creating it if needed. The
// directory must already exist.
func OpenFile(path string) (*LineWriter, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("output file %s: %w", path, err)
	}

	dir := filepath.Dir(abs)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoDirectory)
	}

	f, err := os.OpenFile(abs, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}
	return &LineWriter{w: f, closer: f}, nil
}

// Emit writes links, one per line. The page argument is not written.
func (lw *LineWriter) Emit(page string, links []string) error {
	if len(links) == 0 {
		return nil
	}

	lw.mu.Lock()
	defer lw.mu.Unlock()

	buf := bufio.NewWriter(lw.w)
	for _, link := range links {
		if _, err := buf.WriteString(link); err != nil {
			return err
		}
		if err := buf.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := buf.Flush(); err != nil {
		return fmt.Errorf("failed to write links: %w", err)
	}
	lw.lines += len(links)
	return nil
}

// Lines returns how many links have been written.
func (lw *LineWriter) Lines() int {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.lines
}

// Close closes the underlying file, if the writer opened one.
func (lw *LineWriter) Close() error {
	if lw.closer == nil {
		return nil
	}
	return lw.closer.Close()
}
