package flashq

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// dirLock holds the exclusive, advisory OS-level lock on a data
// directory's .lock file for the backend's lifetime. It's released by
// Close, or left stale by a crash, in which case the next
// process to open the same data_dir can reclaim it — there's no PID file
// to go stale, just the kernel's own lock table.
type dirLock struct {
	file *os.File
}

func acquireDirLock(dataDir string) (*dirLock, error) {
	path := dataDir + string(os.PathSeparator) + ".lock"
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("flashq: open lock file: %w", err)
	}

	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
		f.Close()
		return nil, ErrDataDirLocked{DataDir: dataDir, Cause: err}
	}

	return &dirLock{file: f}, nil
}

func (l *dirLock) release() error {
	if l == nil {
		return nil
	}
	if err := unix.Flock(int(l.file.Fd()), unix.LOCK_UN); err != nil {
		l.file.Close()
		return fmt.Errorf("flashq: unlock: %w", err)
	}
	return l.file.Close()
}
