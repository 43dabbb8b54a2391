package store

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stellarlinkco/tasktracker/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_LoadMissingFile(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "tasks.json"), false, quietLogger())
	c, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, c.Tasks)
	assert.Equal(t, 1, nextID(t, c))
}

func TestFileStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tasks.json")
	s := NewFileStore(path, false, quietLogger())

	orig := sampleCollection()
	require.NoError(t, s.Save(orig))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	loaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Tasks, len(orig.Tasks))
	for i := range orig.Tasks {
		want, got := orig.Tasks[i], loaded.Tasks[i]
		assert.Equal(t, want.ID, got.ID)
		assert.Equal(t, want.Description, got.Description)
		assert.Equal(t, want.Status, got.Status)
		assert.Equal(t, want.Priority, got.Priority)
		assert.True(t, want.CreatedAt.Equal(got.CreatedAt.Time), "createdAt of %d", want.ID)
		assert.True(t, want.UpdatedAt.Equal(got.UpdatedAt.Time), "updatedAt of %d", want.ID)
	}
	assert.Equal(t, orig.LastID, loaded.LastID)

	require.NoError(t, s.Save(loaded))
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second), "save(load(save(T))) must be byte-identical")
}

func TestFileStore_SaveEmptyWritesArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	s := NewFileStore(path, false, quietLogger())
	require.NoError(t, s.Save(Collection{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tasks": []`)
}

func TestFileStore_LoadLegacyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	legacy := `[
    {
        "id": 1,
        "description": "Old task",
        "priority": 2,
        "status": "done",
        "createdAt": "2024-05-01T10:00:00.123456",
        "updatedAt": "2024-05-01T11:00:00.654321"
    },
    {
        "id": 3,
        "description": "Another",
        "priority": 1,
        "status": "todo",
        "createdAt": "2024-05-02T10:00:00.000001",
        "updatedAt": "2024-05-02T10:00:00.000001"
    }
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))

	c, err := NewFileStore(path, false, quietLogger()).Load()
	require.NoError(t, err)
	require.Len(t, c.Tasks, 2)
	assert.Equal(t, "Old task", c.Tasks[0].Description)
	assert.Equal(t, task.PriorityMid, c.Tasks[0].Priority)
	assert.Equal(t, task.StatusDone, c.Tasks[0].Status)
	assert.Equal(t, 4, nextID(t, c))
}

func TestFileStore_MalformedFailsSoftAndPreservesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	garbage := []byte("{not json at all")
	require.NoError(t, os.WriteFile(path, garbage, 0o644))

	var logs bytes.Buffer
	log := logrus.New()
	log.SetOutput(&logs)
	s := NewFileStore(path, false, log)

	c, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, c.Tasks)
	assert.Contains(t, logs.String(), "malformed")

	c.Add(task.New(nextID(t, c), "fresh", 0, time.Now()))
	require.NoError(t, s.Save(c))

	aside, err := os.ReadFile(path + ".corrupt")
	require.NoError(t, err)
	assert.Equal(t, garbage, aside)

	reloaded, err := s.Load()
	require.NoError(t, err)
	require.Len(t, reloaded.Tasks, 1)
	assert.Equal(t, "fresh", reloaded.Tasks[0].Description)
}

func TestFileStore_InvalidRecordsAreMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	bad := `{"lastId": 1, "tasks": [{"id": 1, "description": "x", "status": "blocked",
		"createdAt": "2024-05-01T10:00:00Z", "updatedAt": "2024-05-01T10:00:00Z"}]}`
	require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

	c, err := NewFileStore(path, false, quietLogger()).Load()
	require.NoError(t, err)
	assert.Empty(t, c.Tasks)
}

func TestFileStore_EmptyFileIsEmptyCollection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	s := NewFileStore(path, false, quietLogger())
	c, err := s.Load()
	require.NoError(t, err)
	assert.Empty(t, c.Tasks)

	require.NoError(t, s.Save(c))
	_, err = os.Stat(path + ".corrupt")
	assert.True(t, os.IsNotExist(err), "an empty file is not quarantined")
}

func TestFileStore_LoadReadErrorIsFatal(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir, false, quietLogger())
	_, err := s.Load()
	assert.Error(t, err, "reading a directory must fail, not fall back to empty")
}

func TestFileStore_SaveFailureLeavesOldFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tasks.json")
	s := NewFileStore(path, false, quietLogger())
	require.NoError(t, s.Save(sampleCollection()))
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	blocked := NewFileStore(filepath.Join(path, "child.json"), false, quietLogger())
	assert.Error(t, blocked.Save(sampleCollection()))

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp."), "temp file left behind: %s", e.Name())
	}
}

func TestFileStore_LockSerializesUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")

	const workers = 8
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s := NewFileStore(path, true, quietLogger())
			unlock, err := s.Lock()
			if err != nil {
				errs <- err
				return
			}
			defer unlock()
			c, err := s.Load()
			if err != nil {
				errs <- err
				return
			}
			id, err := c.NextID()
			if err != nil {
				errs <- err
				return
			}
			c.Add(task.New(id, "concurrent", 0, time.Now()))
			errs <- s.Save(c)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	c, err := NewFileStore(path, false, quietLogger()).Load()
	require.NoError(t, err)
	require.Len(t, c.Tasks, workers)
	for i, tk := range c.Tasks {
		assert.Equal(t, i+1, tk.ID)
	}
}

func TestFileStore_LockDisabledIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.json")
	s := NewFileStore(path, false, quietLogger())
	unlock, err := s.Lock()
	require.NoError(t, err)
	require.NoError(t, unlock())
	_, err = os.Stat(path + ".lock")
	assert.True(t, os.IsNotExist(err))
}
