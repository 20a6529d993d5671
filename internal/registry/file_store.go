package registry

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/fsutil"
)

// staleLockAge is how old a lock file must be before a writer may
// assume its owner crashed and break it.
const staleLockAge = 30 * time.Second

// FileStore persists the registry as one JSON file. Writers take an
// exclusive lock file, re-check the version and rename a temp file into
// place.
type FileStore struct {
	path string
	now  func() time.Time
}

// NewFileStore creates a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path, now: time.Now}
}

// Path returns the registry file path.
func (s *FileStore) Path() string { return s.path }

// Load implements Store.
func (s *FileStore) Load() (*Document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewDocument(), nil
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, fmt.Sprintf("failed to read registry %s", s.path), err)
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRegistryCorrupt, fmt.Sprintf("registry %s is unreadable", s.path), err).
			WithSuggestion("Restore the file from version control or delete it to start over")
	}
	return doc, nil
}

// CompareAndSwap implements Store.
func (s *FileStore) CompareAndSwap(expected uint64, next *Document) error {
	l, err := s.lock()
	if err != nil {
		return err
	}
	defer l.release()

	current, err := s.Load()
	if err != nil {
		return err
	}
	if current.Version != expected {
		return ErrVersionMismatch
	}

	data, err := next.Encode()
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode registry", err)
	}
	// Another writer may have broken our lock as stale.
	if !l.held() {
		return ErrLocked
	}
	if err := fsutil.WriteFileAtomic(s.path, append(data, '\n'), 0600); err != nil {
		return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("failed to write registry %s", s.path), err)
	}
	return nil
}

// Close implements Store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) lockPath() string { return s.path + ".lock" }

// fileLock is a held lock file. The token it wrote identifies it, so a
// writer never removes a lock that someone else took over.
type fileLock struct {
	path  string
	token string
}

func (s *FileStore) lock() (*fileLock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := s.createLock()
		if err == nil {
			l := &fileLock{path: s.lockPath(), token: uuid.NewString()}
			_, werr := fmt.Fprintf(f, "%d %s\n", os.Getpid(), l.token)
			if cerr := f.Close(); werr == nil {
				werr = cerr
			}
			if werr != nil {
				os.Remove(l.path)
				return nil, errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to write registry lock", werr)
			}
			return l, nil
		}
		if !stderrors.Is(err, os.ErrExist) {
			return nil, errors.Wrap(errors.ErrCodeFileWriteFailed, "failed to create registry lock", err)
		}
		info, statErr := os.Stat(s.lockPath())
		if statErr != nil || s.now().Sub(info.ModTime()) < staleLockAge {
			return nil, ErrLocked
		}
		os.Remove(s.lockPath())
	}
	return nil, ErrLocked
}

// held reports whether the lock file still carries l's token.
func (l *fileLock) held() bool {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return false
	}
	fields := strings.Fields(string(data))
	return len(fields) == 2 && fields[1] == l.token
}

// release removes the lock file if l still holds it.
func (l *fileLock) release() {
	if l.held() {
		os.Remove(l.path)
	}
}

func (s *FileStore) createLock() (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(s.path), fsutil.DirPerm); err != nil {
		return nil, err
	}
	return os.OpenFile(s.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
}

// LockOwner returns the pid recorded in a held lock, or 0.
func (s *FileStore) LockOwner() int {
	data, err := os.ReadFile(s.lockPath())
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return 0
	}
	pid, _ := strconv.Atoi(fields[0])
	return pid
}
