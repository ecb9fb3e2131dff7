package store

import (
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalWriteNew(t *testing.T) {
	dir := t.TempDir()
	s := NewLocal()

	path := filepath.Join(dir, "a", "b", "file.jpg")
	require.NoError(t, s.MkdirAll(filepath.Dir(path)))
	assert.False(t, s.Exists(path))

	require.NoError(t, s.WriteNew(path, []byte("first")))
	assert.True(t, s.Exists(path))

	err := s.WriteNew(path, []byte("second"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrExists)

	r, err := s.Open(path)
	require.NoError(t, err)
	defer r.Close()
	content, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "first", string(content))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must be cleaned up")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

func TestLocalWriteNewMissingDir(t *testing.T) {
	s := NewLocal()

	err := s.WriteNew(filepath.Join(t.TempDir(), "missing", "file.jpg"), []byte("x"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrExists)
}

func TestLocalWriteNewConcurrent(t *testing.T) {
	dir := t.TempDir()
	s := NewLocal()
	path := filepath.Join(dir, "race.png")

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.WriteNew(path, []byte("same bytes"))
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
			continue
		}
		assert.ErrorIs(t, err, ErrExists)
	}
	assert.Equal(t, 1, won)
}
