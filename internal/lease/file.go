package lease

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// File is a PID-file lease. A file naming a dead process is stale and is
// taken over.
type File struct {
	path   string
	pid    int
	alive  func(pid int) bool
	logger *zap.Logger
}

// NewFile returns a lease backed by the PID file at path.
func NewFile(path string, logger *zap.Logger) *File {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &File{path: path, pid: os.Getpid(), alive: processAlive, logger: logger.Named("lease")}
}

// Acquire writes the current PID, failing with ErrHeld while another live
// process owns the file.
func (l *File) Acquire(_ context.Context) error {
	for range 2 {
		f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			_, werr := f.WriteString(strconv.Itoa(l.pid))
			cerr := f.Close()
			if werr != nil || cerr != nil {
				return fmt.Errorf("write lease file: %w", errors.Join(werr, cerr))
			}
			l.logger.Info("lease acquired", zap.String("path", l.path), zap.Int("pid", l.pid))
			return nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("create lease file: %w", err)
		}

		holder, err := l.holder()
		if err != nil {
			return err
		}
		if holder == l.pid {
			return nil
		}
		if holder > 0 && l.alive(holder) {
			return fmt.Errorf("%w: pid %d (%s)", ErrHeld, holder, l.path)
		}
		l.logger.Warn("removing stale lease file", zap.String("path", l.path), zap.Int("stale_pid", holder))
		if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove stale lease file: %w", err)
		}
	}
	return fmt.Errorf("%w: lost race for %s", ErrHeld, l.path)
}

// Release removes the PID file if this process still owns it.
func (l *File) Release(_ context.Context) error {
	holder, err := l.holder()
	if err != nil {
		return err
	}
	if holder != l.pid {
		return nil
	}
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove lease file: %w", err)
	}
	l.logger.Info("lease released", zap.String("path", l.path))
	return nil
}

// holder returns the PID recorded in the file, 0 for a missing or
// unreadable one.
func (l *File) holder() (int, error) {
	raw, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read lease file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		return 0, nil
	}
	return pid, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
