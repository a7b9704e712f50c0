// Package fstree implements the recursive parts of the local storage: the
// flat listing of every file in a container, the bottom-up removal of a
// directory tree and the creation of missing parent directories.
//
// All functions work on a billy.Filesystem with slash-separated paths that
// are relative to the filesystem root. Walks use an explicit stack, so the
// nesting depth of a tree is not bounded by the goroutine stack.
package fstree

import (
	"context"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/tizianocitro/fsbox/pkg/fserrors"
)

// DefaultStatConcurrency bounds the stat calls in flight for one directory.
const DefaultStatConcurrency = 16

type options struct {
	concurrency int
	logger      logrus.FieldLogger
}

// Option configures a walk.
type Option func(*options)

// WithConcurrency sets how many sibling entries are stat-ed in parallel.
// Values below 1 keep the default.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(l logrus.FieldLogger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		concurrency: DefaultStatConcurrency,
		logger:      logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Entry is a directory entry together with its Lstat result.
type Entry struct {
	Name string
	Info os.FileInfo
}

// StatAll reads dir and Lstat-s every entry concurrently. The result keeps
// the order in which the filesystem returned the entries, whatever order
// the stat calls complete in. Any failure fails the whole call.
func StatAll(ctx context.Context, fsys billy.Filesystem, dir string, opts ...Option) ([]Entry, error) {
	o := newOptions(opts)
	return statAll(ctx, fsys, dir, o)
}

func statAll(ctx context.Context, fsys billy.Filesystem, dir string, o options) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(infos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for i, fi := range infos {
		i, name := i, fi.Name()
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			info, err := fsys.Lstat(fsys.Join(dir, name))
			if err != nil {
				return err
			}
			entries[i] = Entry{Name: name, Info: info}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

// readEntries returns the entries of dir as reported by ReadDir, in order.
func readEntries(ctx context.Context, fsys billy.Filesystem, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := fsys.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, Entry{Name: fi.Name(), Info: fi})
	}
	return entries, nil
}

// Confined verifies that no existing component of p is a symbolic link, so
// that opening p cannot leave the directory tree it is lexically inside.
// Components that do not exist yet are accepted.
func Confined(fsys billy.Filesystem, p string) error {
	clean := strings.Trim(path.Clean("/"+p), "/")
	if clean == "" {
		return nil
	}

	cur := ""
	for _, part := range strings.Split(clean, "/") {
		cur = path.Join(cur, part)
		info, err := fsys.Lstat(cur)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fserrors.New("confined", p, "", nil, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fserrors.Invalid("confined", p, "path crosses a symbolic link")
		}
	}
	return nil
}

func isDir(info os.FileInfo) bool {
	return info.Mode().IsDir() && info.Mode()&os.ModeSymlink == 0
}
