package daemon

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sys/unix"
)

// ErrAlreadyRunning indicates a live daemon already holds the pid record.
var ErrAlreadyRunning = errors.New("daemon already running")

// PIDRecord is the JSON body of the pid file.
type PIDRecord struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Port      int       `json:"port"`
}

// PIDFile is the flock-guarded singleton lease. The lock, not the file
// contents, decides whether a daemon is running; stale contents from a
// crashed process never block a restart.
type PIDFile struct {
	path string
	lock *flock.Flock
}

// AcquirePIDFile takes the singleton lease. If the lock is held, the current
// record is read to name the running pid in the returned error.
func AcquirePIDFile(path string) (*PIDFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create pid directory: %w", err)
	}

	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire pid lock: %w", err)
	}
	if !ok {
		if record, readErr := ReadPIDRecord(path); readErr == nil && ProcessAlive(record.PID) {
			return nil, fmt.Errorf("%w (pid %d, port %d)", ErrAlreadyRunning, record.PID, record.Port)
		}
		return nil, ErrAlreadyRunning
	}
	return &PIDFile{path: path, lock: lock}, nil
}

// Write replaces the pid record contents. Whatever a dead process left
// behind is overwritten.
func (f *PIDFile) Write(record PIDRecord) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode pid record: %w", err)
	}
	encoded = append(encoded, '\n')
	if err := os.WriteFile(f.path, encoded, 0o644); err != nil {
		return fmt.Errorf("write pid record: %w", err)
	}
	return nil
}

// Release removes the record and drops the lock.
func (f *PIDFile) Release() error {
	removeErr := os.Remove(f.path)
	if removeErr != nil && errors.Is(removeErr, os.ErrNotExist) {
		removeErr = nil
	}
	if err := f.lock.Unlock(); err != nil {
		return fmt.Errorf("release pid lock: %w", err)
	}
	if removeErr != nil {
		return fmt.Errorf("remove pid record: %w", removeErr)
	}
	return nil
}

// Path returns the pid file location.
func (f *PIDFile) Path() string { return f.path }

// ReadPIDRecord parses the pid file at path.
func ReadPIDRecord(path string) (PIDRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PIDRecord{}, err
	}
	var record PIDRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return PIDRecord{}, fmt.Errorf("parse pid record: %w", err)
	}
	if record.PID <= 0 {
		return PIDRecord{}, errors.New("pid record missing pid")
	}
	return record, nil
}

// ProcessAlive probes pid with a null signal. EPERM still means the process
// exists.
func ProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}
