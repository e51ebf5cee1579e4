// Package pid guards against two controllers driving the same fans.
package pid

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"golang.org/x/sys/unix"
)

const pidFile = "ipmifanctl.pid"

// DefaultPath returns the PID file location used when none is configured.
func DefaultPath() string {
	return filepath.Join(os.TempDir(), pidFile)
}

// Write records the current process ID at path, failing with
// ErrAlreadyRunning if the file names a live process.
func Write(path string) error {
	errFactory := errors.New()
	if path == "" {
		path = DefaultPath()
	}

	if running, pid := isRunning(path); running {
		return errFactory.WithData(errors.ErrAlreadyRunning, pid)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o600)
	if err != nil {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

// Remove removes the PID file if it still belongs to this process.
func Remove(path string) error {
	errFactory := errors.New()
	if path == "" {
		path = DefaultPath()
	}

	pid, err := read(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err == nil && pid != os.Getpid() {
		return nil
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errFactory.Wrap(errors.ErrInternal, err)
	}

	return nil
}

func read(path string) (int, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	return strconv.Atoi(strings.TrimSpace(string(bytes)))
}

// isRunning treats unreadable or stale files as not running.
func isRunning(path string) (bool, int) {
	pid, err := read(path)
	if err != nil || pid <= 0 || pid == os.Getpid() {
		return false, pid
	}

	// Signal 0 probes for existence; EPERM means it exists under another user.
	err = unix.Kill(pid, 0)

	return err == nil || err == unix.EPERM, pid
}
