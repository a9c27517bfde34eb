package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoStoreStageAndPublish(t *testing.T) {
	root := t.TempDir()
	store, err := NewVideoStore(root, "/videos")
	require.NoError(t, err)

	staged, err := store.Stage(strings.NewReader("frames"), ".MP4", 1024)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(staged.Name, ".mp4"))
	assert.Equal(t, int64(6), staged.Size)
	assert.FileExists(t, filepath.Join(root, ".staging", staged.Name))

	url := store.PublicURL("course-1", staged.Name)
	assert.Equal(t, "/videos/course-1/"+staged.Name, url)

	require.NoError(t, store.Publish(staged, "course-1"))
	assert.NoFileExists(t, filepath.Join(root, ".staging", staged.Name))

	resolved, err := store.Resolve(url)
	require.NoError(t, err)
	data, err := os.ReadFile(resolved)
	require.NoError(t, err)
	assert.Equal(t, "frames", string(data))

	require.NoError(t, store.Delete(url))
	assert.NoFileExists(t, resolved)
	require.NoError(t, store.Delete(url))
}

func TestVideoStoreStageRejectsOversize(t *testing.T) {
	root := t.TempDir()
	store, err := NewVideoStore(root, "/videos")
	require.NoError(t, err)

	_, err = store.Stage(strings.NewReader("0123456789"), ".mp4", 4)
	require.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(filepath.Join(root, ".staging"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestVideoStoreDiscard(t *testing.T) {
	store, err := NewVideoStore(t.TempDir(), "/videos")
	require.NoError(t, err)

	staged, err := store.Stage(strings.NewReader("x"), ".webm", 0)
	require.NoError(t, err)
	require.NoError(t, store.Discard(staged))
	require.NoError(t, store.Discard(staged))
	require.NoError(t, store.Discard(StagedFile{}))
}

func TestVideoStoreResolveRejectsTraversal(t *testing.T) {
	store, err := NewVideoStore(t.TempDir(), "/videos")
	require.NoError(t, err)

	_, err = store.Resolve("/videos/../../etc/passwd")
	assert.Error(t, err)
	_, err = store.Resolve("/videos/.staging/abc.mp4")
	assert.Error(t, err)

	require.Error(t, store.Publish(StagedFile{Name: "a.mp4", path: "x"}, "../escape"))
}

func TestVideoStoreSweepStaging(t *testing.T) {
	root := t.TempDir()
	store, err := NewVideoStore(root, "/videos")
	require.NoError(t, err)

	old, err := store.Stage(strings.NewReader("old"), ".mp4", 0)
	require.NoError(t, err)
	fresh, err := store.Stage(strings.NewReader("fresh"), ".mp4", 0)
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, ".staging", old.Name), past, past))

	removed, err := store.SweepStaging(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{old.Name}, removed)
	assert.FileExists(t, filepath.Join(root, ".staging", fresh.Name))
}
