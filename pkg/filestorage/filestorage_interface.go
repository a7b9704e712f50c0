package filestorage

import (
	"context"
	"io"

	common "github.com/tizianocitro/fsbox/pkg"
	"github.com/tizianocitro/fsbox/pkg/fserrors"
)

// FileStorage is the object contract every storage implements: the local
// filesystem provider as well as the remote mirrors.
type FileStorage interface {
	GetObject(ctx context.Context, container string, remote string) (io.ReadCloser, error)
	PutObject(ctx context.Context, container string, remote string, reader io.Reader) error
	RemoveObject(ctx context.Context, container string, remote string) error
	GetConnectionProperties() common.ConnectionProperties
}

// ContainerStorage is implemented by storages that also manage containers.
type ContainerStorage interface {
	FileStorage
	CreateContainer(ctx context.Context, name string) (common.Container, error)
	DestroyContainer(ctx context.Context, name string) error
	ListObjects(ctx context.Context, container string) ([]common.File, error)
}

// Error kinds, see package fserrors.
var (
	ErrInvalidName   = fserrors.ErrInvalidName
	ErrNotFound      = fserrors.ErrNotFound
	ErrAlreadyExists = fserrors.ErrAlreadyExists
	ErrPartialIO     = fserrors.ErrPartialIO
)

var (
	_ ContainerStorage = (*LocalClient)(nil)
	_ ContainerStorage = (*MinioClient)(nil)
	_ ContainerStorage = (*S3Client)(nil)
	_ ContainerStorage = (*AzBlobClient)(nil)
)
