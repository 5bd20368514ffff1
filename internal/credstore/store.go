package credstore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/muurk/wifiboot/internal/logging"
)

// RecordFile is the name of the credential record inside the data directory.
const RecordFile = "wifi_info"

var (
	// ErrUnavailable is returned when the backing volume is not mounted.
	ErrUnavailable = errors.New("credential storage unavailable")

	// ErrIO is returned when the record cannot be read or written.
	ErrIO = errors.New("credential storage i/o error")

	// ErrFieldTooLong is returned when a credential field exceeds its capacity.
	ErrFieldTooLong = errors.New("credential field too long")

	// ErrInvalidField is returned when a credential field cannot be stored as-is.
	ErrInvalidField = errors.New("invalid credential field")
)

// Store persists a single credential record in a data directory.
// The zero value is not usable; create one with New.
type Store struct {
	dir string

	mu      sync.Mutex
	mounted bool
}

// New creates a store rooted at dir. Call Mount before Load or Save.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the data directory backing the store.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path of the credential record.
func (s *Store) Path() string {
	return filepath.Join(s.dir, RecordFile)
}

// Mount prepares the data directory, creating it when it does not exist.
// On failure the store stays unmounted and every operation reports ErrUnavailable.
func (s *Store) Mount() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dir == "" {
		return fmt.Errorf("%w: no data directory configured", ErrUnavailable)
	}

	info, err := os.Stat(s.dir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(s.dir, 0700); err != nil {
			return fmt.Errorf("%w: create %s: %v", ErrUnavailable, s.dir, err)
		}
		logging.Info("Created credential data directory", zap.String("dir", s.dir))
	case err != nil:
		return fmt.Errorf("%w: stat %s: %v", ErrUnavailable, s.dir, err)
	case !info.IsDir():
		return fmt.Errorf("%w: %s is not a directory", ErrUnavailable, s.dir)
	}

	s.mounted = true
	logging.Info("Credential storage mounted", zap.String("dir", s.dir))
	return nil
}

// Mounted reports whether Mount succeeded.
func (s *Store) Mounted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted
}

// Load reads the stored record. A missing record yields zero credentials.
func (s *Store) Load() (Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted {
		return Credentials{}, ErrUnavailable
	}

	f, err := os.Open(s.Path())
	if os.IsNotExist(err) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer func() { _ = f.Close() }()

	rec := make([]byte, RecordSize)
	if _, err := io.ReadFull(f, rec); err != nil {
		return Credentials{}, fmt.Errorf("%w: read %s: %v", ErrIO, s.Path(), err)
	}

	var c Credentials
	if err := c.UnmarshalBinary(rec); err != nil {
		return Credentials{}, fmt.Errorf("%w: %v", ErrIO, err)
	}
	return c, nil
}

// Save replaces the stored record. The write goes to a temporary file that is
// renamed over the record so a torn write never leaves a partial record.
func (s *Store) Save(c Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted {
		return ErrUnavailable
	}

	rec, err := c.MarshalBinary()
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, RecordFile+".*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(rec); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: write: %v", ErrIO, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("%w: sync: %v", ErrIO, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrIO, err)
	}
	if err := os.Rename(tmpName, s.Path()); err != nil {
		return fmt.Errorf("%w: rename: %v", ErrIO, err)
	}

	logging.Info("Saved credentials", zap.String("ssid", c.SSID))
	return nil
}

// Clear removes the stored record. Clearing a missing record is not an error.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.mounted {
		return ErrUnavailable
	}

	err := os.Remove(s.Path())
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	return nil
}
