package cmdutils

import (
	"os"
	"path/filepath"

	"github.com/alexflint/go-filemutex"
	"github.com/pkg/errors"

	"github.com/MasterScott/LLDBagility/pkg/log"
)

// LockDir takes an exclusive lock on the file <dir>.lock, next to dir,
// so that two runs don't delete and write the same directory at the
// same time. The returned function releases the lock.
func LockDir(dir string) (func(), error) {
	lockPath := filepath.Clean(dir) + ".lock"
	err := os.MkdirAll(filepath.Dir(lockPath), 0o755)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	mutex, err := filemutex.New(lockPath)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	err = mutex.TryLock()
	if err != nil {
		_ = mutex.Close()
		if errors.Is(err, filemutex.AlreadyLocked) {
			return nil, errors.Errorf("%s is in use by another process (lock file %s)", dir, lockPath)
		}
		return nil, errors.WithStack(err)
	}
	log.Debugf("Acquired lock %s", lockPath)

	return func() {
		err := mutex.Close()
		if err != nil {
			log.Debugf("Failed to release lock %s: %v", lockPath, err)
		}
	}, nil
}
