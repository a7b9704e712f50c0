package fstree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	common "github.com/tizianocitro/fsbox/pkg"
	"github.com/tizianocitro/fsbox/pkg/fserrors"
)

var errInjected = errors.New("injected failure")

// faultyFS fails Remove or Lstat on one chosen path and records removals.
type faultyFS struct {
	billy.Filesystem
	failRemove string
	failLstat  string

	mu      sync.Mutex
	removed []string
}

func (f *faultyFS) Remove(name string) error {
	if name == f.failRemove {
		return errInjected
	}
	if err := f.Filesystem.Remove(name); err != nil {
		return err
	}
	f.mu.Lock()
	f.removed = append(f.removed, name)
	f.mu.Unlock()
	return nil
}

func (f *faultyFS) Lstat(name string) (os.FileInfo, error) {
	if name == f.failLstat {
		return nil, errInjected
	}
	return f.Filesystem.Lstat(name)
}

func writeFile(t *testing.T, fsys billy.Filesystem, name, content string) {
	t.Helper()
	if dir := path.Dir(name); dir != "." {
		require.NoError(t, fsys.MkdirAll(dir, 0o755))
	}
	require.NoError(t, util.WriteFile(fsys, name, []byte(content), 0o644))
}

func keys(files []common.File) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Key())
	}
	return out
}

func exists(fsys billy.Filesystem, name string) bool {
	_, err := fsys.Lstat(name)
	return err == nil
}

//==============================================================================
// List tests
//==============================================================================

// TestList_NestedDepths verifies that files at depth 0, 1 and 2 are each
// listed exactly once and that Location plus Name points at the real file.
func TestList_NestedDepths(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "c1/top.txt", "0")
	writeFile(t, fsys, "c1/a/mid.txt", "11")
	writeFile(t, fsys, "c1/a/b/deep.txt", "222")

	files, err := List(context.Background(), fsys, "c1")
	require.NoError(t, err)
	require.Len(t, files, 3)

	for _, f := range files {
		assert.Equal(t, "c1", f.Container)

		data, err := util.ReadFile(fsys, f.Key())
		require.NoError(t, err, "descriptor %s must resolve to a real file", f.Key())
		assert.Equal(t, f.Size, int64(len(data)))
	}

	assert.ElementsMatch(t, []string{"c1/top.txt", "c1/a/mid.txt", "c1/a/b/deep.txt"}, keys(files))
}

// TestList_LocationIncludesContainer checks the Location convention.
func TestList_LocationIncludesContainer(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "c1/a/b.txt", "hi")

	files, err := List(context.Background(), fsys, "c1")
	require.NoError(t, err)
	require.Len(t, files, 1)

	assert.Equal(t, "b.txt", files[0].Name)
	assert.Equal(t, "c1/a", files[0].Location)
	assert.Equal(t, "a/b.txt", files[0].Remote())
	assert.Equal(t, int64(2), files[0].Size)
}

// TestList_TraversalOrder verifies that results follow directory traversal
// order: each subdirectory is fully listed before its next sibling.
func TestList_TraversalOrder(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "c1/a/x.txt", "")
	writeFile(t, fsys, "c1/a/y/z.txt", "")
	writeFile(t, fsys, "c1/b.txt", "")
	writeFile(t, fsys, "c1/c/d.txt", "")
	writeFile(t, fsys, "c1/e.txt", "")

	want := []string{"c1/a/x.txt", "c1/a/y/z.txt", "c1/b.txt", "c1/c/d.txt", "c1/e.txt"}

	for _, n := range []int{1, 2, 64} {
		t.Run(fmt.Sprintf("concurrency=%d", n), func(t *testing.T) {
			files, err := List(context.Background(), fsys, "c1", WithConcurrency(n))
			require.NoError(t, err)
			assert.Equal(t, want, keys(files))
		})
	}
}

// TestList_OSFilesystemOrder runs the ordering check on the real filesystem.
func TestList_OSFilesystemOrder(t *testing.T) {
	fsys := osfs.New(t.TempDir())
	for i := 0; i < 40; i++ {
		writeFile(t, fsys, fmt.Sprintf("box/f%02d.txt", i), "x")
	}
	writeFile(t, fsys, "box/f05.d/inner.txt", "y")

	files, err := List(context.Background(), fsys, "box")
	require.NoError(t, err)
	require.Len(t, files, 41)

	got := keys(files)
	idx := 0
	for i, k := range got {
		if k == "box/f05.d/inner.txt" {
			idx = i
		}
	}
	assert.Equal(t, "box/f05.txt", got[idx+1], "the subdirectory is listed at its entry position")
	assert.False(t, files[0].MTime.IsZero())
	assert.False(t, files[0].ATime.IsZero())
	assert.False(t, files[0].CTime.IsZero())
}

func TestList_EmptyContainer(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll("c1", 0o755))

	files, err := List(context.Background(), fsys, "c1")
	require.NoError(t, err)
	assert.NotNil(t, files)
	assert.Empty(t, files)
}

func TestList_OnlySubdirectories(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll("c1/a/b/c", 0o755))
	require.NoError(t, fsys.MkdirAll("c1/d", 0o755))

	files, err := List(context.Background(), fsys, "c1")
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestList_MissingContainer(t *testing.T) {
	files, err := List(context.Background(), memfs.New(), "nope")
	require.Error(t, err)
	assert.Nil(t, files)
	assert.ErrorIs(t, err, fserrors.ErrNotFound)
}

func TestList_ContainerIsAFile(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "c1", "not a dir")

	_, err := List(context.Background(), fsys, "c1")
	assert.ErrorIs(t, err, fserrors.ErrNotFound)
}

// TestList_StatFailureReturnsNoPartialResult verifies the fail-fast
// contract: a stat error deep in the tree fails the whole listing.
func TestList_StatFailureReturnsNoPartialResult(t *testing.T) {
	base := memfs.New()
	writeFile(t, base, "c1/a.txt", "")
	writeFile(t, base, "c1/sub/x.txt", "")
	writeFile(t, base, "c1/sub/y.txt", "")

	fsys := &faultyFS{Filesystem: base, failLstat: "c1/sub/y.txt"}

	files, err := List(context.Background(), fsys, "c1")
	require.Error(t, err)
	assert.Nil(t, files)
	assert.ErrorIs(t, err, fserrors.ErrPartialIO)
	assert.ErrorIs(t, err, errInjected)
}

func TestList_SkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	fsys := osfs.New(root)
	writeFile(t, fsys, "c1/real.txt", "r")
	writeFile(t, fsys, "c2/secret/s.txt", "s")
	require.NoError(t, os.Symlink(filepath.Join(root, "c2", "secret"), filepath.Join(root, "c1", "dirlink")))
	require.NoError(t, os.Symlink(filepath.Join(root, "c2", "secret", "s.txt"), filepath.Join(root, "c1", "filelink")))

	files, err := List(context.Background(), fsys, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1/real.txt"}, keys(files))
}

// TestList_DeepTree exercises a nesting depth far beyond what a naive
// recursive walk would be comfortable with.
func TestList_DeepTree(t *testing.T) {
	fsys := memfs.New()
	parts := []string{"c1"}
	for i := 0; i < 300; i++ {
		parts = append(parts, "d")
	}
	deep := strings.Join(parts, "/")
	writeFile(t, fsys, deep+"/leaf.txt", "leaf")

	files, err := List(context.Background(), fsys, "c1")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, deep, files[0].Location)
}

func TestList_CanceledContext(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "c1/a/b.txt", "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := List(ctx, fsys, "c1")
	assert.ErrorIs(t, err, context.Canceled)
}

//==============================================================================
// StatAll tests
//==============================================================================

func TestStatAll_PreservesDirectoryOrder(t *testing.T) {
	fsys := memfs.New()
	var want []string
	for i := 0; i < 50; i++ {
		name := fmt.Sprintf("e%02d", i)
		want = append(want, name)
		writeFile(t, fsys, "dir/"+name, "")
	}

	entries, err := StatAll(context.Background(), fsys, "dir", WithConcurrency(8))
	require.NoError(t, err)

	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.Name)
		assert.Equal(t, e.Name, e.Info.Name())
	}
	assert.Equal(t, want, got)
}

//==============================================================================
// Remove tests
//==============================================================================

func TestRemove_WholeTree(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "c1/a.txt", "")
	writeFile(t, fsys, "c1/sub/b.txt", "")
	writeFile(t, fsys, "c1/sub/deeper/c.txt", "")
	require.NoError(t, fsys.MkdirAll("c1/empty", 0o755))
	writeFile(t, fsys, "c2/keep.txt", "")

	require.NoError(t, Remove(context.Background(), fsys, "c1"))

	assert.False(t, exists(fsys, "c1"))
	assert.True(t, exists(fsys, "c2/keep.txt"), "siblings of the removed tree are untouched")
}

// TestRemove_BottomUpOrder checks that every directory is removed after
// its content and that entries are processed in directory order.
func TestRemove_BottomUpOrder(t *testing.T) {
	base := memfs.New()
	writeFile(t, base, "c1/a/x.txt", "")
	writeFile(t, base, "c1/b.txt", "")
	fsys := &faultyFS{Filesystem: base}

	require.NoError(t, Remove(context.Background(), fsys, "c1"))
	assert.Equal(t, []string{"c1/a/x.txt", "c1/a", "c1/b.txt", "c1"}, fsys.removed)
}

func TestRemove_EmptyDirectory(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll("c1", 0o755))

	require.NoError(t, Remove(context.Background(), fsys, "c1"))
	assert.False(t, exists(fsys, "c1"))
}

func TestRemove_MissingDirectory(t *testing.T) {
	err := Remove(context.Background(), memfs.New(), "ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, fserrors.ErrNotFound)
}

// TestRemove_FailFast verifies that the first failure aborts the walk:
// earlier siblings are gone, later ones and the directory itself remain.
func TestRemove_FailFast(t *testing.T) {
	base := memfs.New()
	writeFile(t, base, "c1/a.txt", "")
	writeFile(t, base, "c1/b.txt", "")
	writeFile(t, base, "c1/c.txt", "")
	fsys := &faultyFS{Filesystem: base, failRemove: "c1/b.txt"}

	err := Remove(context.Background(), fsys, "c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, fserrors.ErrPartialIO)
	assert.ErrorIs(t, err, errInjected)

	assert.False(t, exists(base, "c1/a.txt"))
	assert.True(t, exists(base, "c1/b.txt"))
	assert.True(t, exists(base, "c1/c.txt"), "no sibling is attempted after a failure")
	assert.True(t, exists(base, "c1"))
}

// TestRemove_DoesNotFollowSymlinks verifies that a link to data outside
// the removed tree is unlinked while its target survives.
func TestRemove_DoesNotFollowSymlinks(t *testing.T) {
	root := t.TempDir()
	fsys := osfs.New(root)
	writeFile(t, fsys, "c1/a.txt", "")
	writeFile(t, fsys, "c2/keep.txt", "keep")
	require.NoError(t, os.Symlink(filepath.Join(root, "c2"), filepath.Join(root, "c1", "link")))

	require.NoError(t, Remove(context.Background(), fsys, "c1"))

	assert.False(t, exists(fsys, "c1"))
	data, err := util.ReadFile(fsys, "c2/keep.txt")
	require.NoError(t, err)
	assert.Equal(t, "keep", string(data))
}

func TestRemove_OSFilesystem(t *testing.T) {
	root := t.TempDir()
	fsys := osfs.New(root)
	writeFile(t, fsys, "c1/a/b/c/d.txt", "d")
	writeFile(t, fsys, "c1/e.txt", "e")

	require.NoError(t, Remove(context.Background(), fsys, "c1"))

	_, err := os.Stat(filepath.Join(root, "c1"))
	assert.True(t, os.IsNotExist(err))
}

//==============================================================================
// Ensure tests
//==============================================================================

func TestEnsure_CreatesMissingParents(t *testing.T) {
	fsys := memfs.New()
	require.NoError(t, fsys.MkdirAll("c1", 0o755))

	require.NoError(t, Ensure(fsys, "c1/sub/folder/file.txt"))

	info, err := fsys.Stat("c1/sub/folder")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.False(t, exists(fsys, "c1/sub/folder/file.txt"), "only directories are created")
}

func TestEnsure_Idempotent(t *testing.T) {
	fsys := osfs.New(t.TempDir())

	require.NoError(t, Ensure(fsys, "c1/sub/file.txt"))
	first, err := fsys.ReadDir("c1")
	require.NoError(t, err)

	require.NoError(t, Ensure(fsys, "c1/sub/file.txt"))
	second, err := fsys.ReadDir("c1")
	require.NoError(t, err)

	require.Len(t, second, len(first))
	assert.Equal(t, first[0].Name(), second[0].Name())
}

func TestEnsure_TopLevelTargetIsNoop(t *testing.T) {
	assert.NoError(t, Ensure(memfs.New(), "file.txt"))
}

func TestEnsure_ParentIsAFile(t *testing.T) {
	fsys := memfs.New()
	writeFile(t, fsys, "c1/blocker", "")

	err := Ensure(fsys, "c1/blocker/file.txt")
	require.Error(t, err)
	assert.ErrorIs(t, err, fserrors.ErrAlreadyExists)
}

//==============================================================================
// Confined tests
//==============================================================================

func TestConfined(t *testing.T) {
	root := t.TempDir()
	fsys := osfs.New(root)
	writeFile(t, fsys, "c1/a/file.txt", "")
	outside := t.TempDir()
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "c1", "escape")))

	assert.NoError(t, Confined(fsys, "c1/a/file.txt"))
	assert.NoError(t, Confined(fsys, "c1/a/not/yet/created.txt"))
	assert.ErrorIs(t, Confined(fsys, "c1/escape/file.txt"), fserrors.ErrInvalidName)
	assert.ErrorIs(t, Confined(fsys, "c1/escape"), fserrors.ErrInvalidName)
}

func TestConfined_ComponentIsAFile(t *testing.T) {
	fsys := osfs.New(t.TempDir())
	writeFile(t, fsys, "c1/f.txt", "x")

	err := Confined(fsys, "c1/f.txt/x")
	require.Error(t, err)

	var fe *fserrors.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "confined", fe.Op)
	assert.Equal(t, "c1/f.txt/x", fe.Container)
}
