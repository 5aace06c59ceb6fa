// Package lock provides cross-process mutual exclusion over a shared build
// root using flock(2) advisory locks.
package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// Defaults used when a FileLock leaves Attempts or Delay unset.
const (
	DefaultDir      = "/var/run/lock"
	DefaultAttempts = 10
	DefaultDelay    = 10 * time.Second

	updateSuffix = ".update"
)

// ErrContended reports that every attempt found the lock held by someone else.
var ErrContended = errors.New("lock is held by another process")

// OpenError reports that the lock file itself could not be opened.
type OpenError struct {
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open lock file %s: %v", e.Path, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// Path returns the lock file guarding updates of the (distribution,
// architecture) base. Every process targeting the same base derives the same path.
func Path(dir, distribution, architecture string) string {
	if dir == "" {
		dir = DefaultDir
	}
	return filepath.Join(dir, distribution+"-"+architecture+updateSuffix)
}

// FileLock serializes actions on Path with a bounded, non-blocking retry loop.
type FileLock struct {
	Path     string
	Attempts int
	Delay    time.Duration
	Logger   *slog.Logger
}

func (l *FileLock) logger() *slog.Logger {
	if l != nil && l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// Do runs action while holding an exclusive lock on l.Path.
//
// It returns ErrContended when the lock could not be taken within Attempts
// tries, an *OpenError when the lock file cannot be opened, and otherwise the
// action's own result.
func (l *FileLock) Do(ctx context.Context, action func(ctx context.Context) error) error {
	attempts := l.Attempts
	if attempts <= 0 {
		attempts = DefaultAttempts
	}
	delay := l.Delay
	if delay < 0 {
		delay = 0
	} else if delay == 0 {
		delay = DefaultDelay
	}

	file, err := os.OpenFile(l.Path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return &OpenError{Path: l.Path, Err: err}
	}
	defer file.Close()

	logger := l.logger().With("lock", l.Path)
	fd := int(file.Fd())

	for attempt := 1; ; attempt++ {
		err := tryLock(fd)
		if err == nil {
			break
		}
		if !errors.Is(err, unix.EWOULDBLOCK) {
			return fmt.Errorf("flock %s: %w", l.Path, err)
		}
		if attempt >= attempts {
			logger.Warn("giving up on lock", "attempts", attempt)
			return fmt.Errorf("%s: %w", l.Path, ErrContended)
		}

		logger.Debug("lock busy, retrying", "attempt", attempt, "delay", delay)
		if err := sleep(ctx, delay); err != nil {
			return err
		}
	}
	defer unix.Flock(fd, unix.LOCK_UN)

	logger.Debug("lock acquired")
	return action(ctx)
}

func tryLock(fd int) error {
	for {
		err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB)
		if err != unix.EINTR {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
