package supervisor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Record is the persisted handle of the supervised worker. Its presence is
// a hint only: the process it names may have exited since it was written.
type Record struct {
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
}

// RecordStore holds at most one Record in a file. It is safe for
// concurrent use; Lock serializes whole operations across processes.
type RecordStore struct {
	mu   sync.Mutex
	path string
}

// NewRecordStore returns a store backed by path.
func NewRecordStore(path string) *RecordStore {
	return &RecordStore{path: path}
}

// Path returns the backing file.
func (s *RecordStore) Path() string {
	return s.path
}

// Load returns the stored record, or nil if there is none.
// Files holding a bare PID are accepted as well.
func (s *RecordStore) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read process record: %w", err)
	}

	var rec Record
	if jsonErr := json.Unmarshal(data, &rec); jsonErr != nil {
		pid, convErr := strconv.Atoi(strings.TrimSpace(string(data)))
		if convErr != nil {
			return nil, fmt.Errorf("parse process record: %w", jsonErr)
		}
		rec = Record{PID: pid}
	}
	if rec.PID <= 0 {
		return nil, fmt.Errorf("parse process record: invalid pid %d", rec.PID)
	}
	return &rec, nil
}

// Save replaces the stored record.
func (s *RecordStore) Save(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create record directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal process record: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("write process record: %w", err)
	}
	return nil
}

// Clear removes the stored record. Clearing an empty store is not an error.
func (s *RecordStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove process record: %w", err)
	}
	return nil
}

// LockPath is the advisory lock file guarding the record.
func (s *RecordStore) LockPath() string {
	return s.path + ".lock"
}

// Lock takes an exclusive flock on LockPath, blocking until every other
// holder in this or another process has released it. Call the returned
// function to release it.
func (s *RecordStore) Lock() (func(), error) {
	path := s.LockPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create record directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open record lock: %w", err)
	}
	for {
		err = unix.Flock(int(f.Fd()), unix.LOCK_EX)
		if !errors.Is(err, unix.EINTR) {
			break
		}
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}
	return func() {
		_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
		_ = f.Close()
	}, nil
}
