package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/stellarlinkco/tasktracker/internal/task"
)

// ErrMalformed marks a backing file that exists but cannot be decoded.
var ErrMalformed = errors.New("malformed task file")

// FileStore keeps the collection in a single indented JSON document.
//
// A malformed file loads as an empty collection and is logged. The next Save
// moves it aside to <path>.corrupt before the new file is written.
type FileStore struct {
	path       string
	lock       bool
	log        logrus.FieldLogger
	quarantine bool
}

func NewFileStore(path string, lock bool, log logrus.FieldLogger) *FileStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FileStore{path: path, lock: lock, log: log}
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Close() error { return nil }

func (s *FileStore) Lock() (func() error, error) {
	if !s.lock {
		return func() error { return nil }, nil
	}
	return acquireLock(s.path+".lock", s.log)
}

func (s *FileStore) Load() (Collection, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Collection{}, nil
		}
		return Collection{}, fmt.Errorf("read tasks: %w", err)
	}

	c, err := decodeCollection(data)
	if err != nil {
		s.quarantine = true
		s.log.WithFields(logrus.Fields{
			"path":  s.path,
			"error": err,
		}).Warn("task file is malformed, starting from an empty list")
		return Collection{}, nil
	}
	s.quarantine = false
	return c, nil
}

func (s *FileStore) Save(c Collection) error {
	c.LastID = max(c.LastID, maxID(c.Tasks))
	if c.Tasks == nil {
		c.Tasks = []task.Task{}
	}
	data, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	data = append(data, '\n')

	if s.quarantine {
		aside := s.path + ".corrupt"
		if err := os.Rename(s.path, aside); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("move malformed task file aside: %w", err)
		}
		s.log.WithField("path", aside).Warn("malformed task file preserved")
		s.quarantine = false
	}

	if err := writeFileAtomic(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write tasks: %w", err)
	}
	s.log.WithFields(logrus.Fields{"path": s.path, "count": len(c.Tasks)}).Debug("tasks saved")
	return nil
}

// decodeCollection accepts the current object form and the older bare array of tasks.
func decodeCollection(data []byte) (Collection, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Collection{}, nil
	}

	var c Collection
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &c.Tasks); err != nil {
			return Collection{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	case '{':
		if err := json.Unmarshal(trimmed, &c); err != nil {
			return Collection{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	default:
		return Collection{}, fmt.Errorf("%w: unexpected leading %q", ErrMalformed, trimmed[0])
	}
	if err := c.Validate(); err != nil {
		return Collection{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	c.LastID = max(c.LastID, maxID(c.Tasks))
	return c, nil
}

// writeFileAtomic writes to a temp file in the same directory, syncs it and renames
// it over path, so readers see either the old or the new contents.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		_ = tmp.Close()
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}
	committed = true
	return syncDir(dir)
}

func syncDir(dir string) error {
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	// Some filesystems refuse fsync on directories; the rename already happened.
	_ = f.Sync()
	return nil
}
