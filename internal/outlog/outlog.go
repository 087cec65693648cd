// Package outlog is the append-mode output log sink: one line per
// broadcast/delivery event or per decided slot, with explicit flush
// control so the driver can choose between batching (broadcast mode)
// and per-line durability (agreement mode).
package outlog

import (
	"bufio"
	"fmt"
	"os"
)

// Log wraps a line-buffered append-mode file.
type Log struct {
	f *os.File
	w *bufio.Writer
}

// Open creates or appends to the file at path.
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("outlog: %w", err)
	}
	return &Log{f: f, w: bufio.NewWriter(f)}, nil
}

// WriteLine appends one line, newline-terminated.
func (l *Log) WriteLine(line string) error {
	if _, err := l.w.WriteString(line); err != nil {
		return err
	}
	return l.w.WriteByte('\n')
}

// Flush pushes buffered bytes to the underlying file.
func (l *Log) Flush() error {
	return l.w.Flush()
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	if err := l.w.Flush(); err != nil {
		l.f.Close()
		return err
	}
	return l.f.Close()
}
