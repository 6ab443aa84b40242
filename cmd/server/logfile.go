package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	logFileLimit = 6 << 20
	logFileKeep  = 5 << 20
)

// cappedFile appends to a log file and, once it grows past limit, cuts it
// down to its newest keep bytes.
type cappedFile struct {
	mu    sync.Mutex
	file  *os.File
	limit int64
	keep  int64
}

func openCappedFile(path string, limit, keep int64) (*cappedFile, error) {
	if keep > limit {
		return nil, fmt.Errorf("log keep size %d exceeds limit %d", keep, limit)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	w := &cappedFile{file: file, limit: limit, keep: keep}
	if err := w.trim(); err != nil {
		_ = file.Close()
		return nil, err
	}
	return w, nil
}

func (w *cappedFile) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	n, err := w.file.Write(p)
	if err != nil {
		return n, err
	}
	return n, w.trim()
}

func (w *cappedFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

func (w *cappedFile) trim() error {
	info, err := w.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= w.limit {
		return nil
	}

	tail := make([]byte, w.keep)
	n, err := w.file.ReadAt(tail, size-w.keep)
	if err != nil && err != io.EOF {
		return err
	}
	if err := w.file.Truncate(0); err != nil {
		return err
	}
	// O_APPEND writes go to the new end after truncation.
	_, err = w.file.Write(tail[:n])
	return err
}
