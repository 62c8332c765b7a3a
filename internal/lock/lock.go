// Package lock guards a session's store so only one daemon opens it.
package lock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Owner describes the process recorded in a lock file.
type Owner struct {
	PID     int
	Program string
	Since   time.Time
}

// HeldError is returned when another process holds the lock.
type HeldError struct {
	Owner Owner
	Path  string
}

func (e *HeldError) Error() string {
	if e.Owner.Program != "" {
		return fmt.Sprintf("session lock held by %s (PID %d) since %s (%s)",
			e.Owner.Program, e.Owner.PID, e.Owner.Since.Format(time.RFC3339), e.Path)
	}
	return fmt.Sprintf("session lock held by PID %d (%s)", e.Owner.PID, e.Path)
}

// Lock is an acquired advisory lock on a file.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes an exclusive, non-blocking flock on path, creating the file
// and its directory as needed, and records the calling process in it.
func Acquire(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if !errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, fmt.Errorf("flock %s: %w", path, err)
		}
		owner, _ := ReadOwner(path)
		return nil, &HeldError{Owner: owner, Path: path}
	}

	if err := writeOwner(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write lock owner: %w", err)
	}
	return &Lock{file: f, path: path}, nil
}

// ReadOwner parses the owner recorded in a lock file.
func ReadOwner(path string) (Owner, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Owner{}, err
	}

	var o Owner
	for _, line := range strings.Split(string(data), "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			o.PID, _ = strconv.Atoi(value)
		case "program":
			o.Program = value
		case "since":
			o.Since, _ = time.Parse(time.RFC3339, value)
		}
	}
	return o, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release drops the lock and removes the file. Safe to call on nil receiver
// and more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

func writeOwner(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := fmt.Fprintf(f, "pid=%d\nprogram=%s\nsince=%s\n",
		os.Getpid(), filepath.Base(os.Args[0]), time.Now().UTC().Format(time.RFC3339))
	return err
}
