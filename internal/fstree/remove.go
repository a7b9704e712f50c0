package fstree

import (
	"context"
	"errors"

	"github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"

	"github.com/tizianocitro/fsbox/pkg/fserrors"
)

type removeFrame struct {
	dir     string
	entries []Entry
	next    int
}

// Remove deletes dir and everything below it.
//
// Entries are processed in directory order; a subdirectory is removed
// completely before the next sibling and every directory is removed only
// after its entries are gone. Symbolic links are unlinked, never followed.
// The first failure stops the walk and is returned wrapped in
// fserrors.ErrPartialIO; whatever was removed before it stays removed.
// A missing dir is reported as fserrors.ErrNotFound.
func Remove(ctx context.Context, fsys billy.Filesystem, dir string, opts ...Option) error {
	const op = "remove"
	o := newOptions(opts)

	info, err := fsys.Lstat(dir)
	if err != nil {
		return fserrors.New(op, dir, "", nil, err)
	}
	if !isDir(info) {
		return fserrors.New(op, dir, "", fserrors.ErrNotFound, errors.New("not a directory"))
	}

	entries, err := readEntries(ctx, fsys, dir)
	if err != nil {
		return fserrors.New(op, dir, "", nil, err)
	}

	removed := 0
	stack := []*removeFrame{{dir: dir, entries: entries}}
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return fserrors.New(op, dir, "", fserrors.ErrPartialIO, err)
		}

		top := stack[len(stack)-1]
		if top.next == len(top.entries) {
			if err := fsys.Remove(top.dir); err != nil {
				return fserrors.New(op, dir, top.dir, fserrors.ErrPartialIO, err)
			}
			removed++
			stack = stack[:len(stack)-1]
			continue
		}
		e := top.entries[top.next]
		top.next++

		target := fsys.Join(top.dir, e.Name)
		if isDir(e.Info) {
			children, err := readEntries(ctx, fsys, target)
			if err != nil {
				return fserrors.New(op, dir, target, fserrors.ErrPartialIO, err)
			}
			stack = append(stack, &removeFrame{dir: target, entries: children})
			continue
		}
		if err := fsys.Remove(target); err != nil {
			return fserrors.New(op, dir, target, fserrors.ErrPartialIO, err)
		}
		removed++
	}

	o.logger.WithFields(logrus.Fields{
		"dir":     dir,
		"removed": removed,
	}).Debug("fstree: removed tree")

	return nil
}
