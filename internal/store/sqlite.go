package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/stellarlinkco/tasktracker/internal/task"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLiteStore keeps the collection in a SQLite database. A position column
// preserves insertion order; Save replaces every row in one transaction.
//
// The database is opened lazily: Load on a missing file returns an empty
// collection without creating anything. A file that exists but is not a
// SQLite database is moved aside to <path>.corrupt and a fresh database is
// created in its place.
type SQLiteStore struct {
	db   *sql.DB
	path string
	lock bool
	log  logrus.FieldLogger
}

func NewSQLiteStore(path string, lock bool, log logrus.FieldLogger) (*SQLiteStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &SQLiteStore{path: path, lock: lock, log: log}

	exists, err := s.exists()
	if err != nil {
		return nil, err
	}
	if exists {
		if err := s.open(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *SQLiteStore) exists() (bool, error) {
	if _, err := os.Stat(s.path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat db: %w", err)
	}
	return true, nil
}

// open connects to the database, quarantining a file that is not one.
func (s *SQLiteStore) open() error {
	if s.db != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}

	err := s.connect()
	if err != nil && isNotADatabase(err) {
		aside := s.path + ".corrupt"
		if rerr := os.Rename(s.path, aside); rerr != nil {
			return fmt.Errorf("move malformed database aside: %w", rerr)
		}
		s.log.WithFields(logrus.Fields{
			"path":  s.path,
			"error": err,
		}).Warn("task database is malformed, starting from an empty list")
		s.log.WithField("path", aside).Warn("malformed task database preserved")
		err = s.connect()
	}
	return err
}

func (s *SQLiteStore) connect() error {
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	s.db = db
	if err := s.configure(); err != nil {
		s.closeDB()
		return err
	}
	if err := s.initSchema(); err != nil {
		s.closeDB()
		return err
	}
	return nil
}

func (s *SQLiteStore) closeDB() {
	if s.db != nil {
		_ = s.db.Close()
		s.db = nil
	}
}

func isNotADatabase(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		return serr.Code()&0xff == sqlite3.SQLITE_NOTADB
	}
	return strings.Contains(err.Error(), "file is not a database")
}

func (s *SQLiteStore) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *SQLiteStore) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			position INTEGER NOT NULL,
			id INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'todo',
			priority INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_position ON tasks(position)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) Path() string { return s.path }

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

func (s *SQLiteStore) Lock() (func() error, error) {
	if !s.lock {
		return func() error { return nil }, nil
	}
	return acquireLock(s.path+".lock", s.log)
}

func (s *SQLiteStore) Load() (Collection, error) {
	if s.db == nil {
		exists, err := s.exists()
		if err != nil {
			return Collection{}, err
		}
		if !exists {
			return Collection{}, nil
		}
		if err := s.open(); err != nil {
			return Collection{}, err
		}
	}

	rows, err := s.db.Query(`SELECT id, description, status, priority, created_at, updated_at
		FROM tasks ORDER BY position`)
	if err != nil {
		return Collection{}, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var c Collection
	for rows.Next() {
		var (
			t                task.Task
			status           string
			created, updated string
		)
		if err := rows.Scan(&t.ID, &t.Description, &status, &t.Priority, &created, &updated); err != nil {
			return Collection{}, fmt.Errorf("scan task: %w", err)
		}
		if t.Status, err = task.ParseStatus(status); err != nil {
			return Collection{}, fmt.Errorf("task %d: %w", t.ID, err)
		}
		if t.CreatedAt, err = task.ParseTimestamp(created); err != nil {
			return Collection{}, fmt.Errorf("task %d: %w", t.ID, err)
		}
		if t.UpdatedAt, err = task.ParseTimestamp(updated); err != nil {
			return Collection{}, fmt.Errorf("task %d: %w", t.ID, err)
		}
		c.Tasks = append(c.Tasks, t)
	}
	if err := rows.Err(); err != nil {
		return Collection{}, fmt.Errorf("iterate tasks: %w", err)
	}

	err = s.db.QueryRow(`SELECT value FROM meta WHERE key = 'last_id'`).Scan(&c.LastID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Collection{}, fmt.Errorf("read last id: %w", err)
	}
	c.LastID = max(c.LastID, maxID(c.Tasks))
	return c, nil
}

func (s *SQLiteStore) Save(c Collection) error {
	c.LastID = max(c.LastID, maxID(c.Tasks))
	if err := s.open(); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM tasks`); err != nil {
		return fmt.Errorf("clear tasks: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO tasks (position, id, description, status, priority, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range c.Tasks {
		if _, err := stmt.Exec(i, t.ID, t.Description, string(t.Status), int(t.Priority),
			t.CreatedAt.String(), t.UpdatedAt.String()); err != nil {
			return fmt.Errorf("insert task %d: %w", t.ID, err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO meta (key, value) VALUES ('last_id', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, c.LastID); err != nil {
		return fmt.Errorf("write last id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tasks: %w", err)
	}
	s.log.WithFields(logrus.Fields{"path": s.path, "count": len(c.Tasks)}).Debug("tasks saved")
	return nil
}
