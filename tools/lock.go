package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	lockFile      = "docs.lock"
	lockTimeout   = 5 * time.Second // Max time to wait for lock
	lockRetryWait = 100 * time.Millisecond
)

// errLockTimeout is returned when another process keeps the data directory locked
var errLockTimeout = errors.New("timeout waiting for data directory lock")

// dataDirLock serialises writers of the data directory across processes.
// Several MCP server instances may share ~/.docsearch-mcp; the OS releases the
// lock when its holder dies, so stale locks need no cleanup.
type dataDirLock struct {
	path  string
	flock *flock.Flock
}

func newDataDirLock(dataDir string) *dataDirLock {
	path := filepath.Join(dataDir, lockFile)
	return &dataDirLock{path: path, flock: flock.New(path)}
}

// Lock blocks until the lock is held, lockTimeout passes or ctx is done
func (l *dataDirLock) Lock(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	start := time.Now()
	locked, err := l.flock.TryLockContext(ctx, lockRetryWait)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w after %v", errLockTimeout, time.Since(start).Round(100*time.Millisecond))
		}
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return errLockTimeout
	}

	log.Printf("✓ Data directory lock acquired in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

// Unlock releases the lock; unlocking an unheld lock is a no-op
func (l *dataDirLock) Unlock() error {
	if !l.flock.Locked() {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}
