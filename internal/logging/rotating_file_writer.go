package logging

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// RotatingFileWriter appends log lines to a file and moves it aside to
// path.1 .. path.N once it would grow past the size limit.
type RotatingFileWriter struct {
	mu         sync.Mutex
	path       string
	limit      int64
	maxBackups int
	file       *os.File
	written    int64
}

func NewRotatingFileWriter(path string, limit int64, maxBackups int) (*RotatingFileWriter, error) {
	switch {
	case path == "":
		return nil, errors.New("logging: file path is required")
	case limit <= 0:
		return nil, fmt.Errorf("logging: size limit must be positive, got %d", limit)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logging: create log dir: %w", err)
	}

	w := &RotatingFileWriter{path: path, limit: limit, maxBackups: max(maxBackups, 0)}
	if err := w.open(os.O_APPEND); err != nil {
		return nil, err
	}
	if w.written > w.limit {
		if err := w.rotateLocked(); err != nil {
			_ = w.file.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *RotatingFileWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return 0, os.ErrClosed
	}
	// An empty file always takes the write, so a single line larger than
	// the limit cannot loop rotations.
	if w.written > 0 && w.written+int64(len(p)) > w.limit {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.written += int64(n)
	return n, err
}

func (w *RotatingFileWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	f := w.file
	w.file = nil
	return f.Close()
}

func (w *RotatingFileWriter) open(mode int) error {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return fmt.Errorf("logging: open %s: %w", w.path, err)
	}
	w.file = f
	w.written = 0
	if mode == os.O_APPEND {
		if info, err := f.Stat(); err == nil {
			w.written = info.Size()
		}
	}
	return nil
}

func (w *RotatingFileWriter) rotateLocked() error {
	if err := w.file.Close(); err != nil {
		return err
	}
	w.file = nil

	if w.maxBackups == 0 {
		if err := removeIfExists(w.path); err != nil {
			return err
		}
	} else if err := w.shiftBackups(); err != nil {
		return err
	}
	return w.open(os.O_TRUNC)
}

// shiftBackups drops the oldest backup and renames path.i to path.i+1,
// finishing with the live file becoming path.1.
func (w *RotatingFileWriter) shiftBackups() error {
	if err := removeIfExists(w.backup(w.maxBackups)); err != nil {
		return err
	}
	for i := w.maxBackups - 1; i >= 0; i-- {
		src := w.backup(i)
		if err := os.Rename(src, w.backup(i+1)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("logging: rotate %s: %w", src, err)
		}
	}
	return nil
}

// backup(0) is the live file.
func (w *RotatingFileWriter) backup(i int) string {
	if i == 0 {
		return w.path
	}
	return fmt.Sprintf("%s.%d", w.path, i)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
