// Package lock guards a profile directory with an flock so only one daemon
// serves a profile. The lock file records who holds it.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

const fileName = "LOCK"

// Owner describes the process holding a lock.
type Owner struct {
	PID     int
	Program string
	Backend string
	Socket  string
	Since   time.Time
}

// LockHeldError is returned when another process holds the profile lock.
type LockHeldError struct {
	Owner Owner
	Path  string
}

func (e *LockHeldError) Error() string {
	who := fmt.Sprintf("PID %d", e.Owner.PID)
	if e.Owner.Program != "" {
		who = fmt.Sprintf("%s (PID %d)", e.Owner.Program, e.Owner.PID)
	}
	return fmt.Sprintf("profile lock held by %s (%s)", who, e.Path)
}

// Lock is an acquired profile lock.
type Lock struct {
	file *os.File
	path string
}

// Acquire takes the exclusive lock on dir and records owner in it. PID and
// Since are filled in. Returns *LockHeldError if another process holds it.
func Acquire(dir string, owner Owner) (*Lock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create profile dir: %w", err)
	}
	path := filepath.Join(dir, fileName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		data, _ := os.ReadFile(path)
		_ = f.Close()
		return nil, &LockHeldError{Owner: parseOwner(string(data)), Path: path}
	}

	owner.PID = os.Getpid()
	owner.Since = time.Now().UTC().Truncate(time.Second)
	if err := rewrite(f, formatOwner(owner)); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write lock file: %w", err)
	}
	return &Lock{file: f, path: path}, nil
}

func rewrite(f *os.File, content string) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := f.WriteString(content)
	return err
}

// Release removes the lock file and drops the lock. Safe on a nil receiver
// and safe to call twice.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path)
	err := l.file.Close()
	l.file = nil
	return err
}

// Holder reports who holds the lock in dir, or nil when nobody does. A file
// left by a crashed holder is not held. The probe never keeps the lock.
func Holder(dir string) (*Owner, error) {
	path := filepath.Join(dir, fileName)
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open lock file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_SH|syscall.LOCK_NB); err == nil {
		_ = syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	o := parseOwner(string(data))
	return &o, nil
}

func formatOwner(o Owner) string {
	var b strings.Builder
	fmt.Fprintf(&b, "pid=%d\n", o.PID)
	fmt.Fprintf(&b, "time=%s\n", o.Since.Format(time.RFC3339))
	for _, kv := range [][2]string{{"program", o.Program}, {"backend", o.Backend}, {"socket", o.Socket}} {
		if kv[1] != "" {
			fmt.Fprintf(&b, "%s=%s\n", kv[0], kv[1])
		}
	}
	return b.String()
}

// parseOwner reads key=value lines; unknown keys and bad values are ignored.
func parseOwner(content string) Owner {
	var o Owner
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		switch key {
		case "pid":
			o.PID, _ = strconv.Atoi(value)
		case "time":
			o.Since, _ = time.Parse(time.RFC3339, value)
		case "program":
			o.Program = value
		case "backend":
			o.Backend = value
		case "socket":
			o.Socket = value
		}
	}
	return o
}
