package filestorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sync"

	"github.com/go-git/go-billy/v5"
	"github.com/google/uuid"

	"github.com/tizianocitro/fsbox/internal/fstree"
	"github.com/tizianocitro/fsbox/internal/validation"
	common "github.com/tizianocitro/fsbox/pkg"
	"github.com/tizianocitro/fsbox/pkg/fserrors"
	"github.com/tizianocitro/fsbox/pkg/transform"
)

// LocalClient exposes a directory tree as an object storage: directories
// directly under the filesystem root are containers and every regular file
// below a container, at any depth, is an object.
type LocalClient struct {
	loggerHolder
	fsys        billy.Filesystem
	properties  common.ConnectionProperties
	concurrency int
}

// NewLocalClient wraps fsys, whose root is the storage root. Production code
// passes osfs.New(root); tests may use memfs.
func NewLocalClient(fsys billy.Filesystem, properties common.ConnectionProperties) (*LocalClient, error) {
	if fsys == nil {
		return nil, fmt.Errorf("failed to create LocalClient: filesystem is nil")
	}

	if _, err := (transform.Factory{}).BuildWritePipeline(properties); err != nil {
		return nil, fmt.Errorf("failed to create LocalClient: %w", err)
	}

	return &LocalClient{
		fsys:        fsys,
		properties:  properties,
		concurrency: fstree.DefaultStatConcurrency,
	}, nil
}

// GetClient returns the underlying filesystem.
func (l *LocalClient) GetClient() billy.Filesystem {
	return l.fsys
}

func (l *LocalClient) GetConnectionProperties() common.ConnectionProperties {
	return l.properties
}

// SetStatConcurrency bounds the parallel stat calls issued per directory.
func (l *LocalClient) SetStatConcurrency(n int) {
	if n > 0 {
		l.concurrency = n
	}
}

func (l *LocalClient) walkOptions() []fstree.Option {
	return []fstree.Option{fstree.WithConcurrency(l.concurrency), fstree.WithLogger(l.log())}
}

// CreateContainer creates the directory name under the root and returns its
// descriptor. An existing entry with the same name is ErrAlreadyExists.
func (l *LocalClient) CreateContainer(ctx context.Context, name string) (common.Container, error) {
	const op = "createContainer"

	if err := validation.ValidateContainerName(name); err != nil {
		return common.Container{}, err
	}
	if err := ctx.Err(); err != nil {
		return common.Container{}, err
	}

	if _, err := l.fsys.Lstat(name); err == nil {
		l.log().WithField("container", name).Warn("container already exists")
		return common.Container{}, fserrors.New(op, name, "", fserrors.ErrAlreadyExists, nil)
	} else if !errors.Is(err, os.ErrNotExist) {
		return common.Container{}, fserrors.New(op, name, "", nil, err)
	}

	if err := l.fsys.MkdirAll(name, 0o755); err != nil {
		return common.Container{}, fserrors.New(op, name, "", nil, err)
	}

	info, err := l.fsys.Stat(name)
	if err != nil {
		return common.Container{}, fserrors.New(op, name, "", nil, err)
	}
	return fstree.NewContainer(name, info), nil
}

// GetContainer returns the descriptor of an existing container.
func (l *LocalClient) GetContainer(ctx context.Context, name string) (common.Container, error) {
	const op = "getContainer"

	if err := validation.ValidateContainerName(name); err != nil {
		return common.Container{}, err
	}
	if err := ctx.Err(); err != nil {
		return common.Container{}, err
	}

	info, err := l.fsys.Lstat(name)
	if err != nil {
		return common.Container{}, fserrors.New(op, name, "", nil, err)
	}
	if !info.IsDir() {
		return common.Container{}, fserrors.New(op, name, "", fserrors.ErrNotFound, errors.New("not a directory"))
	}
	return fstree.NewContainer(name, info), nil
}

// ListContainers returns every directory directly under the root, in
// directory order. Files and symbolic links at the top level are ignored.
func (l *LocalClient) ListContainers(ctx context.Context) ([]common.Container, error) {
	entries, err := fstree.StatAll(ctx, l.fsys, "", l.walkOptions()...)
	if err != nil {
		return nil, fserrors.New("listContainers", "", "", nil, err)
	}

	containers := []common.Container{}
	for _, e := range entries {
		if e.Info.IsDir() && e.Info.Mode()&os.ModeSymlink == 0 {
			containers = append(containers, fstree.NewContainer(e.Name, e.Info))
		}
	}
	return containers, nil
}

// DestroyContainer removes the container and everything inside it. The walk
// stops at the first failure; see fstree.Remove.
func (l *LocalClient) DestroyContainer(ctx context.Context, name string) error {
	if err := validation.ValidateContainerName(name); err != nil {
		return err
	}

	if err := fstree.Remove(ctx, l.fsys, name, l.walkOptions()...); err != nil {
		return err
	}

	l.log().WithField("container", name).Debug("container destroyed")
	return nil
}

// ListObjects returns every object of the container, nested ones included.
func (l *LocalClient) ListObjects(ctx context.Context, container string) ([]common.File, error) {
	if err := validation.ValidateContainerName(container); err != nil {
		return nil, err
	}
	return fstree.List(ctx, l.fsys, container, l.walkOptions()...)
}

// StatObject returns the descriptor of a single object.
func (l *LocalClient) StatObject(ctx context.Context, container, remote string) (common.File, error) {
	const op = "statObject"

	rel, err := l.objectPath(container, remote)
	if err != nil {
		return common.File{}, err
	}
	if err := ctx.Err(); err != nil {
		return common.File{}, err
	}

	info, err := l.fsys.Lstat(rel)
	if err != nil {
		return common.File{}, fserrors.New(op, container, remote, nil, err)
	}
	if !info.Mode().IsRegular() {
		return common.File{}, fserrors.New(op, container, remote, fserrors.ErrNotFound, errors.New("not a regular file"))
	}

	return fstree.NewFile(container, path.Dir(rel), info), nil
}

// Upload opens remote for writing and returns the stream to write the
// object to. Missing directories between the container and the object are
// created before the file is opened; the container itself must exist.
//
// The object is complete once Close returned nil. If properties ask for
// compression or encryption the data is transformed on its way to the file.
func (l *LocalClient) Upload(ctx context.Context, container, remote string) (*UploadStream, error) {
	const op = "upload"

	rel, err := l.objectPath(container, remote)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if info, err := l.fsys.Lstat(container); err != nil {
		return nil, fserrors.New(op, container, remote, nil, err)
	} else if !info.IsDir() {
		return nil, fserrors.New(op, container, remote, fserrors.ErrNotFound, errors.New("container is not a directory"))
	}

	pipe, err := transform.Factory{}.BuildWritePipeline(l.properties)
	if err != nil {
		return nil, fmt.Errorf("build write pipeline: %w", err)
	}

	if err := fstree.Ensure(l.fsys, rel); err != nil {
		return nil, fserrors.New(op, container, remote, nil, err)
	}

	if info, err := l.fsys.Lstat(rel); err == nil && info.IsDir() {
		return nil, fserrors.New(op, container, remote, fserrors.ErrAlreadyExists, errors.New("a directory occupies the object path"))
	}

	tmp := path.Join(path.Dir(rel), uploadPrefix+uuid.NewString())
	file, err := l.fsys.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fserrors.New(op, container, remote, nil, err)
	}

	return newUploadStream(l.fsys, file, tmp, rel, pipe, func(err error) error {
		return fserrors.New(op, container, remote, nil, err)
	}), nil
}

// Download opens remote for reading. No directory is created.
func (l *LocalClient) Download(ctx context.Context, container, remote string) (io.ReadCloser, error) {
	const op = "download"

	rel, err := l.objectPath(container, remote)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := l.fsys.Lstat(rel)
	if err != nil {
		return nil, fserrors.New(op, container, remote, nil, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fserrors.New(op, container, remote, fserrors.ErrNotFound, errors.New("not a regular file"))
	}

	pipe, err := transform.Factory{}.BuildReadPipeline(l.properties)
	if err != nil {
		return nil, fmt.Errorf("build read pipeline: %w", err)
	}

	file, err := l.fsys.Open(rel)
	if err != nil {
		return nil, fserrors.New(op, container, remote, nil, err)
	}

	obj, err := pipe.Apply(file)
	if err != nil {
		return nil, fserrors.New(op, container, remote, nil, fmt.Errorf("fail to transform reader: %w", err))
	}
	return obj, nil
}

// PutObject writes the whole content of reader to remote.
func (l *LocalClient) PutObject(ctx context.Context, container, remote string, reader io.Reader) error {
	if reader == nil {
		return fmt.Errorf("reader is nil")
	}

	stream, err := l.Upload(ctx, container, remote)
	if err != nil {
		return err
	}

	if _, err := io.Copy(stream, contextReader{ctx: ctx, r: reader}); err != nil {
		stream.Abort(err)
		return fserrors.New("putObject", container, remote, nil, err)
	}
	return stream.Close()
}

// GetObject opens remote for reading; see Download.
func (l *LocalClient) GetObject(ctx context.Context, container, remote string) (io.ReadCloser, error) {
	return l.Download(ctx, container, remote)
}

// RemoveObject unlinks a single object. Directories are never removed here.
func (l *LocalClient) RemoveObject(ctx context.Context, container, remote string) error {
	const op = "removeObject"

	rel, err := l.objectPath(container, remote)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	info, err := l.fsys.Lstat(rel)
	if err != nil {
		return fserrors.New(op, container, remote, nil, err)
	}
	if info.IsDir() {
		return fserrors.New(op, container, remote, fserrors.ErrNotFound, errors.New("is a directory"))
	}

	if err := l.fsys.Remove(rel); err != nil {
		return fserrors.New(op, container, remote, nil, err)
	}
	return nil
}

// GetURL returns the host path of an object.
func (l *LocalClient) GetURL(container, remote string) (string, error) {
	return validation.Resolve(l.fsys.Root(), container, remote)
}

// objectPath validates container and remote and returns the object path
// relative to the storage root. No existing component may be a symlink.
func (l *LocalClient) objectPath(container, remote string) (string, error) {
	if _, err := validation.Resolve(l.fsys.Root(), container, remote); err != nil {
		return "", err
	}

	rel := path.Join(container, validation.CleanRemote(remote))
	if err := fstree.Confined(l.fsys, rel); err != nil {
		return "", err
	}
	return rel, nil
}

// uploadPrefix names the temporary sibling an upload writes to before it
// is renamed over the object.
const uploadPrefix = ".fsbox-upload-"

// UploadStream is the write side of an upload. Bytes written to it flow
// through the write pipeline into a temporary file next to the object,
// which replaces the object only once everything was written. A failed or
// aborted upload leaves the previous version of the object in place.
type UploadStream struct {
	pw   *io.PipeWriter
	done chan struct{}
	once sync.Once
	err  error
}

func newUploadStream(fsys billy.Filesystem, file billy.File, tmp, target string, pipe transform.WritePipeline, wrap func(error) error) *UploadStream {
	pr, pw := io.Pipe()
	u := &UploadStream{pw: pw, done: make(chan struct{})}

	go func() {
		defer close(u.done)

		err := flush(file, pr, pipe)
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
		if err == nil {
			err = fsys.Rename(tmp, target)
		}
		if err != nil {
			_ = fsys.Remove(tmp)
			_ = pr.CloseWithError(err)
			u.err = wrap(err)
			return
		}
		_ = pr.Close()
	}()

	return u
}

func flush(dst io.Writer, src io.Reader, pipe transform.WritePipeline) error {
	out, closer, err := pipe.Apply(src)
	if err != nil {
		return fmt.Errorf("apply write pipeline: %w", err)
	}
	defer closer.Close()

	_, err = io.Copy(dst, out)
	return err
}

func (u *UploadStream) Write(p []byte) (int, error) {
	return u.pw.Write(p)
}

// Close ends the object and waits until the file is flushed and closed.
// It returns the first error of the write.
func (u *UploadStream) Close() error {
	u.once.Do(func() { _ = u.pw.Close() })
	<-u.done
	return u.err
}

// Abort ends the upload with err and discards what was written.
func (u *UploadStream) Abort(err error) {
	if err == nil {
		err = io.ErrClosedPipe
	}
	u.once.Do(func() { _ = u.pw.CloseWithError(err) })
	<-u.done
}

// Done is closed once the file has been flushed and closed.
func (u *UploadStream) Done() <-chan struct{} {
	return u.done
}

// Err returns the result of the upload; it is only meaningful after Done.
func (u *UploadStream) Err() error {
	select {
	case <-u.done:
		return u.err
	default:
		return nil
	}
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
