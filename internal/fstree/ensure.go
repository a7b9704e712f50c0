package fstree

import (
	"errors"
	"io/fs"
	"path/filepath"

	"github.com/go-git/go-billy/v5"

	"github.com/tizianocitro/fsbox/pkg/fserrors"
)

// Ensure makes sure the parent directory of target exists, creating it and
// any missing ancestors. It is a no-op when the parent already is a
// directory, so calling it repeatedly is safe.
func Ensure(fsys billy.Filesystem, target string) error {
	dir := filepath.Dir(target)
	if dir == "." || dir == string(filepath.Separator) || dir == "" {
		return nil
	}

	info, err := fsys.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return nil
	case err == nil:
		return fserrors.New("ensure", dir, "", fserrors.ErrAlreadyExists, errors.New("parent exists and is not a directory"))
	case !errors.Is(err, fs.ErrNotExist):
		return fserrors.New("ensure", dir, "", nil, err)
	}

	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return fserrors.New("ensure", dir, "", nil, err)
	}
	return nil
}
