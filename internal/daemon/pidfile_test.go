package daemon_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"alfred/internal/daemon"
)

func TestPIDFileAcquireWriteRelease(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alferd.pid")

	pidFile, err := daemon.AcquirePIDFile(path)
	if err != nil {
		t.Fatalf("AcquirePIDFile returned error: %v", err)
	}

	record := daemon.PIDRecord{PID: os.Getpid(), StartedAt: time.Now().UTC(), Port: 7654}
	if err := pidFile.Write(record); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}

	got, err := daemon.ReadPIDRecord(path)
	if err != nil {
		t.Fatalf("ReadPIDRecord returned error: %v", err)
	}
	if got.PID != record.PID || got.Port != record.Port {
		t.Fatalf("record = %+v, want %+v", got, record)
	}

	if err := pidFile.Release(); err != nil {
		t.Fatalf("Release returned error: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("pid file still present after release: %v", err)
	}
}

func TestStaleRecordDoesNotBlockAcquire(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alferd.pid")

	// A crashed daemon leaves a record but no lock. The pid is chosen to
	// be almost certainly dead.
	stale, _ := json.Marshal(daemon.PIDRecord{PID: 1 << 22, StartedAt: time.Now(), Port: 7654})
	if err := os.WriteFile(path, stale, 0o644); err != nil {
		t.Fatalf("write stale record: %v", err)
	}

	pidFile, err := daemon.AcquirePIDFile(path)
	if err != nil {
		t.Fatalf("stale record blocked acquire: %v", err)
	}
	defer pidFile.Release() //nolint:errcheck

	fresh := daemon.PIDRecord{PID: os.Getpid(), StartedAt: time.Now().UTC(), Port: 7000}
	if err := pidFile.Write(fresh); err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	got, err := daemon.ReadPIDRecord(path)
	if err != nil {
		t.Fatalf("ReadPIDRecord returned error: %v", err)
	}
	if got.PID != os.Getpid() {
		t.Fatalf("record pid = %d, want %d", got.PID, os.Getpid())
	}
}

func TestReadPIDRecordRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "alferd.pid")
	if err := os.WriteFile(path, []byte("12345\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := daemon.ReadPIDRecord(path); err == nil {
		t.Fatal("expected error for non-JSON pid file")
	}
}

func TestProcessAlive(t *testing.T) {
	if !daemon.ProcessAlive(os.Getpid()) {
		t.Fatal("current process reported dead")
	}
	if daemon.ProcessAlive(0) {
		t.Fatal("pid 0 reported alive")
	}
	if daemon.ProcessAlive(1 << 22) {
		t.Fatal("implausible pid reported alive")
	}
}
