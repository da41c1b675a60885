package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// DefaultLogLimit caps log files at 6 MiB, trimmed back to the newest 5 MiB.
var DefaultLogLimit = LogLimit{MaxBytes: 6 << 20, KeepBytes: 5 << 20}

// LogLimit bounds a log file's size.
type LogLimit struct {
	MaxBytes  int64
	KeepBytes int64
}

// LogFile is an append-only log file that drops its oldest bytes once it
// grows past MaxBytes, keeping the newest KeepBytes.
type LogFile struct {
	mu    sync.Mutex
	file  *os.File
	limit LogLimit
}

var _ io.WriteCloser = (*LogFile)(nil)

// OpenLogFile opens or creates path, creating parent directories.
func OpenLogFile(path string, limit LogLimit) (*LogFile, error) {
	if limit.KeepBytes <= 0 || limit.KeepBytes > limit.MaxBytes {
		return nil, fmt.Errorf("invalid log limit: keep %d of max %d bytes", limit.KeepBytes, limit.MaxBytes)
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
	lf := &LogFile{file: file, limit: limit}
	if err := lf.trim(); err != nil {
		file.Close()
		return nil, err
	}
	return lf, nil
}

func (f *LogFile) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.file.Write(p)
	if err != nil {
		return n, err
	}
	return n, f.trim()
}

func (f *LogFile) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.file.Close()
}

// trim keeps the tail of the file once it exceeds the limit.
func (f *LogFile) trim() error {
	info, err := f.file.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size <= f.limit.MaxBytes {
		return nil
	}

	buf := make([]byte, f.limit.KeepBytes)
	n, err := f.file.ReadAt(buf, size-f.limit.KeepBytes)
	if err != nil && err != io.EOF {
		return err
	}
	if err := f.file.Truncate(0); err != nil {
		return err
	}
	// O_APPEND writes go to the new end after truncation.
	_, err = f.file.Write(buf[:n])
	return err
}
