// Package monitor implements the single-instance lock and the scheduler
// state machine that drive the monitor's tick loop.
package monitor

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"telegram-userbot/internal/infra/logger"
)

// lockFilename is the advisory single-instance lock, stored alongside
// the rest of the monitor's data files.
const lockFilename = "monitor.lock"

// takeoverPollInterval and takeoverWaitBudget bound how long a starting
// process waits for a signaled prior holder to exit before giving up.
const (
	takeoverPollInterval = 100 * time.Millisecond
	takeoverWaitBudget   = 5 * time.Second
)

// InstanceLock is the advisory PID-file lock enforcing a single running
// monitor instance per data directory.
type InstanceLock struct {
	path string
}

// NewInstanceLock returns a lock bound to dataDir/monitor.lock.
func NewInstanceLock(dataDir string) *InstanceLock {
	return &InstanceLock{path: lockPath(dataDir)}
}

func lockPath(dataDir string) string {
	if dataDir == "" {
		dataDir = "."
	}
	return dataDir + string(os.PathSeparator) + lockFilename
}

// Acquire attempts to take the lock. If a live process already holds
// it, Acquire signals it to stop (SIGTERM) and waits up to
// takeoverWaitBudget for it to exit before taking over; it returns an
// error only if the prior holder is still alive once the budget is
// exhausted.
func (l *InstanceLock) Acquire() error {
	if pid, ok := l.readLivePID(); ok {
		logger.Warnf("monitor: lock held by live process %d, signaling it to stop", pid)
		if err := signalStop(pid); err != nil {
			logger.Warnf("monitor: failed to signal prior holder %d: %v", pid, err)
		}

		deadline := time.Now().Add(takeoverWaitBudget)
		for time.Now().Before(deadline) {
			if !isAlive(pid) {
				break
			}
			time.Sleep(takeoverPollInterval)
		}
		if isAlive(pid) {
			return fmt.Errorf("monitor: instance lock held by live process %d after waiting %s", pid, takeoverWaitBudget)
		}
		logger.Infof("monitor: prior holder %d exited, taking over the lock", pid)
	}

	return os.WriteFile(l.path, []byte(strconv.Itoa(os.Getpid())), 0o600) //nolint:gosec // lock file, not secret
}

// Release removes the lock file. Safe to call even if the lock was
// never acquired.
func (l *InstanceLock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("monitor: release lock: %w", err)
	}
	return nil
}

func (l *InstanceLock) readLivePID() (int, bool) {
	data, err := os.ReadFile(l.path) //nolint:gosec // lock file path is config-derived
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	if !isAlive(pid) {
		return 0, false
	}
	return pid, true
}

func isAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

func signalStop(pid int) error {
	process, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return process.Signal(syscall.SIGTERM)
}
