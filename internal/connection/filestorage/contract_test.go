package connfilestorage

import (
	"context"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tizianocitro/fsbox/pkg/filestorage"
)

const contractContainer = "fsbox-contract"

// runContract exercises the container/object contract shared by the local
// storage and the remote mirrors.
func runContract(t *testing.T, storage filestorage.ContainerStorage) {
	t.Helper()
	ctx := context.Background()

	created, err := storage.CreateContainer(ctx, contractContainer)
	require.NoError(t, err)
	assert.Equal(t, contractContainer, created.Name)

	_, err = storage.CreateContainer(ctx, contractContainer)
	assert.ErrorIs(t, err, filestorage.ErrAlreadyExists)

	objects := map[string]string{
		"top.txt":      "depth 0",
		"a/b.txt":      "hi",
		"a/deep/c.txt": "depth 2",
	}
	for remote, content := range objects {
		require.NoError(t, storage.PutObject(ctx, contractContainer, remote, strings.NewReader(content)), remote)
	}

	files, err := storage.ListObjects(ctx, contractContainer)
	require.NoError(t, err)

	var remotes []string
	for _, f := range files {
		assert.Equal(t, contractContainer, f.Container)
		assert.True(t, strings.HasPrefix(f.Location, contractContainer), f.Location)
		remotes = append(remotes, f.Remote())
	}
	sort.Strings(remotes)
	assert.Equal(t, []string{"a/b.txt", "a/deep/c.txt", "top.txt"}, remotes)

	for remote, content := range objects {
		rc, err := storage.GetObject(ctx, contractContainer, remote)
		require.NoError(t, err, remote)
		data, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.Equal(t, content, string(data), remote)
	}

	_, err = storage.GetObject(ctx, contractContainer, "missing.txt")
	assert.ErrorIs(t, err, filestorage.ErrNotFound)

	err = storage.PutObject(ctx, contractContainer, "../escape.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, filestorage.ErrInvalidName)

	err = storage.DestroyContainer(ctx, "../"+contractContainer)
	assert.ErrorIs(t, err, filestorage.ErrInvalidName)

	require.NoError(t, storage.RemoveObject(ctx, contractContainer, "top.txt"))
	files, err = storage.ListObjects(ctx, contractContainer)
	require.NoError(t, err)
	assert.Len(t, files, 2)

	require.NoError(t, storage.DestroyContainer(ctx, contractContainer))

	_, err = storage.ListObjects(ctx, contractContainer)
	assert.ErrorIs(t, err, filestorage.ErrNotFound)
}
