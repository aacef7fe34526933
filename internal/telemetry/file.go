package telemetry

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileSink appends formatted records, one per line.
type FileSink struct {
	mu     sync.Mutex
	w      io.WriteCloser
	closed bool
}

func openFile(path string, maxSizeMB, maxBackups int) (*FileSink, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if maxSizeMB > 0 {
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
		}
		// lumberjack opens lazily; a zero-length write surfaces open errors now.
		if _, err := lj.Write(nil); err != nil {
			_ = lj.Close()
			return nil, err
		}
		return &FileSink{w: lj}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileSink{w: f}, nil
}

func (s *FileSink) Write(r Record) error {
	line := Format(r) + "\n"
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("telemetry: file sink closed")
	}
	_, err := io.WriteString(s.w, line)
	return err
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.w.Close()
}
