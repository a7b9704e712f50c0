package fstree

import (
	"context"
	"errors"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"

	common "github.com/tizianocitro/fsbox/pkg"
	"github.com/tizianocitro/fsbox/pkg/fserrors"
)

type listFrame struct {
	dir      string
	location string
	entries  []Entry
	next     int
}

// List returns a descriptor for every regular file below the container
// directory, at any depth.
//
// The walk is depth-first: entries are taken in directory order and a
// subdirectory is listed completely before its next sibling, so the result
// order is the traversal order. Symbolic links and other special files are
// neither listed nor followed. Any read or stat failure aborts the listing
// and no partial result is returned.
func List(ctx context.Context, fsys billy.Filesystem, container string, opts ...Option) ([]common.File, error) {
	const op = "list"
	o := newOptions(opts)

	info, err := fsys.Lstat(container)
	if err != nil {
		return nil, fserrors.New(op, container, "", nil, err)
	}
	if !isDir(info) {
		return nil, fserrors.New(op, container, "", fserrors.ErrNotFound, errors.New("not a directory"))
	}

	entries, err := statAll(ctx, fsys, container, o)
	if err != nil {
		return nil, fserrors.New(op, container, "", nil, err)
	}

	files := []common.File{}
	stack := []*listFrame{{dir: container, location: container, entries: entries}}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.entries) {
			stack = stack[:len(stack)-1]
			continue
		}
		e := top.entries[top.next]
		top.next++

		switch {
		case isDir(e.Info):
			dir := fsys.Join(top.dir, e.Name)
			children, err := statAll(ctx, fsys, dir, o)
			if err != nil {
				return nil, fserrors.New(op, container, path.Join(top.location, e.Name), fserrors.ErrPartialIO, err)
			}
			stack = append(stack, &listFrame{
				dir:      dir,
				location: path.Join(top.location, e.Name),
				entries:  children,
			})
		case e.Info.Mode().IsRegular():
			files = append(files, NewFile(container, top.location, e.Info))
		default:
			o.logger.WithFields(logrus.Fields{
				"container": container,
				"entry":     path.Join(top.location, e.Name),
				"mode":      e.Info.Mode().String(),
			}).Debug("fstree: skipping non-regular entry")
		}
	}

	o.logger.WithFields(logrus.Fields{
		"container": container,
		"files":     len(files),
	}).Debug("fstree: listed container")

	return files, nil
}

// NewFile builds an object descriptor from a stat result.
func NewFile(container, location string, info os.FileInfo) common.File {
	atime, ctime := statTimes(info)
	return common.File{
		Container: container,
		Name:      info.Name(),
		Location:  location,
		Size:      info.Size(),
		ATime:     atime,
		MTime:     info.ModTime(),
		CTime:     ctime,
	}
}

// NewContainer builds a container descriptor from a stat result.
func NewContainer(name string, info os.FileInfo) common.Container {
	atime, ctime := statTimes(info)
	return common.Container{
		Name:  name,
		Size:  info.Size(),
		ATime: atime,
		MTime: info.ModTime(),
		CTime: ctime,
	}
}
