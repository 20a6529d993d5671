package registry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/felixgeelhaar/pomgen/internal/errors"
	"github.com/felixgeelhaar/pomgen/internal/fsutil"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS registry (
	id       INTEGER PRIMARY KEY CHECK (id = 1),
	version  INTEGER NOT NULL,
	document BLOB    NOT NULL
);
CREATE TABLE IF NOT EXISTS history (
	id      TEXT    PRIMARY KEY,
	stage   TEXT    NOT NULL,
	names   TEXT    NOT NULL,
	version INTEGER NOT NULL,
	at      TEXT    NOT NULL
);`

// SQLiteStore persists the registry in a SQLite database. The version
// check and the write happen in one UPDATE, so SQLite's own locking
// arbitrates between processes. A busy database fails immediately.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens or creates the database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := mkParent(path); err != nil {
		return nil, err
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(0)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to open registry database", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeRegistryCorrupt, "failed to initialize registry schema", err)
	}

	empty, err := NewDocument().Encode()
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO registry (id, version, document) VALUES (1, 0, ?)`, empty); err != nil {
		db.Close()
		return nil, errors.Wrap(errors.ErrCodeRegistryCorrupt, "failed to seed registry", err)
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Load implements Store.
func (s *SQLiteStore) Load() (*Document, error) {
	var data []byte
	if err := s.db.QueryRow(`SELECT document FROM registry WHERE id = 1`).Scan(&data); err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "failed to read registry", err)
	}
	doc, err := DecodeDocument(data)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRegistryCorrupt, "registry database is unreadable", err)
	}
	return doc, nil
}

// CompareAndSwap implements Store.
func (s *SQLiteStore) CompareAndSwap(expected uint64, next *Document) error {
	data, err := next.Encode()
	if err != nil {
		return errors.Wrap(errors.ErrCodeFileMarshal, "failed to encode registry", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return s.classify(err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE registry SET version = ?, document = ? WHERE id = 1 AND version = ?`,
		next.Version, data, expected)
	if err != nil {
		return s.classify(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return s.classify(err)
	}
	if n != 1 {
		return ErrVersionMismatch
	}

	if len(next.History) > 0 {
		h := next.History[len(next.History)-1]
		if h.Version == next.Version {
			if _, err := tx.Exec(`INSERT OR REPLACE INTO history (id, stage, names, version, at) VALUES (?, ?, ?, ?, ?)`,
				h.ID, h.Stage, strings.Join(h.Names, "\n"), h.Version, h.At.UTC().Format(time.RFC3339Nano)); err != nil {
				return s.classify(err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return s.classify(err)
	}
	return nil
}

// HistoryCount returns the number of invocations recorded in the
// history table, which unlike the document is not capped.
func (s *SQLiteStore) HistoryCount() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM history`).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) classify(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked") {
		return ErrLocked
	}
	return errors.Wrap(errors.ErrCodeFileWriteFailed, fmt.Sprintf("registry database %s", s.path), err)
}

func mkParent(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), fsutil.DirPerm); err != nil {
		return errors.Wrap(errors.ErrCodeDirectoryFailed, "failed to create registry directory", err)
	}
	return nil
}
