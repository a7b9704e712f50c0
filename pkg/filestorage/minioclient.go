package filestorage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/sirupsen/logrus"

	"github.com/tizianocitro/fsbox/internal/validation"
	common "github.com/tizianocitro/fsbox/pkg"
	"github.com/tizianocitro/fsbox/pkg/fserrors"
	"github.com/tizianocitro/fsbox/pkg/transform"
)

// MinioClient mirrors the container/object contract on a MinIO server.
// Containers are buckets and remote paths are object keys.
type MinioClient struct {
	loggerHolder
	client     *minio.Client
	properties common.ConnectionProperties
}

// NewMinioClient wraps a MinIO client and checks that the server answers.
func NewMinioClient(client *minio.Client, properties common.ConnectionProperties) (*MinioClient, error) {
	if client == nil {
		return nil, fmt.Errorf("failed to create MinIO client: client is nil")
	}

	_, err := client.ListBuckets(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
	}

	return &MinioClient{
		client:     client,
		properties: properties,
	}, nil
}

// GetClient returns the underlying MinIO client.
func (m *MinioClient) GetClient() *minio.Client {
	return m.client
}

func (m *MinioClient) GetConnectionProperties() common.ConnectionProperties {
	return m.properties
}

// CreateContainer creates a bucket.
func (m *MinioClient) CreateContainer(ctx context.Context, name string) (common.Container, error) {
	const op = "createContainer"

	if err := validation.ValidateContainerName(name); err != nil {
		return common.Container{}, err
	}

	if err := m.client.MakeBucket(ctx, name, minio.MakeBucketOptions{}); err != nil {
		err = minioError(op, name, "", err)
		if errors.Is(err, fserrors.ErrAlreadyExists) {
			m.log().WithField("bucket", name).Warn("bucket already exists")
		}
		return common.Container{}, err
	}

	containers, err := m.ListContainers(ctx)
	if err != nil {
		return common.Container{}, err
	}
	for _, c := range containers {
		if c.Name == name {
			return c, nil
		}
	}
	return common.Container{Name: name}, nil
}

// ListContainers lists all buckets.
func (m *MinioClient) ListContainers(ctx context.Context) ([]common.Container, error) {
	buckets, err := m.client.ListBuckets(ctx)
	if err != nil {
		return nil, minioError("listContainers", "", "", err)
	}

	containers := make([]common.Container, 0, len(buckets))
	for _, b := range buckets {
		containers = append(containers, common.Container{
			Name:  b.Name,
			ATime: b.CreationDate,
			MTime: b.CreationDate,
			CTime: b.CreationDate,
		})
	}
	return containers, nil
}

// DestroyContainer removes every object of the bucket, then the bucket.
// The first failed removal stops the operation.
func (m *MinioClient) DestroyContainer(ctx context.Context, name string) error {
	const op = "destroyContainer"

	if err := validation.ValidateContainerName(name); err != nil {
		return err
	}

	for obj := range m.client.ListObjects(ctx, name, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return minioError(op, name, "", obj.Err)
		}
		if err := m.client.RemoveObject(ctx, name, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return fserrors.New(op, name, obj.Key, fserrors.ErrPartialIO, err)
		}
	}

	if err := m.client.RemoveBucket(ctx, name); err != nil {
		return minioError(op, name, "", err)
	}

	m.log().WithField("bucket", name).Debug("bucket destroyed")
	return nil
}

// ListObjects lists every object of the bucket, keys with "/" included.
func (m *MinioClient) ListObjects(ctx context.Context, container string) ([]common.File, error) {
	const op = "listObjects"

	if err := validation.ValidateContainerName(container); err != nil {
		return nil, err
	}

	ok, err := m.client.BucketExists(ctx, container)
	if err != nil {
		return nil, minioError(op, container, "", err)
	}
	if !ok {
		return nil, fserrors.New(op, container, "", fserrors.ErrNotFound, nil)
	}

	files := []common.File{}
	for obj := range m.client.ListObjects(ctx, container, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, minioError(op, container, "", obj.Err)
		}
		if f, ok := fileFromKey(container, obj.Key, obj.Size, obj.LastModified); ok {
			files = append(files, f)
		}
	}
	return files, nil
}

// GetObject retrieves an object and reverses the storage transforms.
func (m *MinioClient) GetObject(ctx context.Context, container string, remote string) (io.ReadCloser, error) {
	const op = "getObject"

	if err := validation.Validate(container, remote); err != nil {
		return nil, err
	}
	key := validation.CleanRemote(remote)

	pipe, err := transform.Factory{}.BuildReadPipeline(m.properties)
	if err != nil {
		return nil, fmt.Errorf("build read pipeline: %w", err)
	}

	if _, err := m.client.StatObject(ctx, container, key, minio.StatObjectOptions{}); err != nil {
		return nil, minioError(op, container, remote, err)
	}

	object, err := m.client.GetObject(ctx, container, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, minioError(op, container, remote, err)
	}

	obj, err := pipe.Apply(object)
	if err != nil {
		return nil, fmt.Errorf("fail to transform reader: %w", err)
	}
	return obj, nil
}

// PutObject uploads an object. Transformed or unsized input is streamed
// with an unknown size.
func (m *MinioClient) PutObject(ctx context.Context, container string, remote string, reader io.Reader) error {
	const op = "putObject"

	if reader == nil {
		return fmt.Errorf("reader is nil")
	}
	if err := validation.Validate(container, remote); err != nil {
		return err
	}

	pipe, err := transform.Factory{}.BuildWritePipeline(m.properties)
	if err != nil {
		return fmt.Errorf("build write pipeline: %w", err)
	}

	size := int64(-1)
	if pipe.Empty() {
		size = readerSize(reader)
	}

	obj, closer, err := pipe.Apply(reader)
	if err != nil {
		return fmt.Errorf("apply write pipeline: %w", err)
	}
	defer closer.Close()

	_, err = m.client.PutObject(ctx, container, validation.CleanRemote(remote), obj, size, minio.PutObjectOptions{})
	if err != nil {
		m.log().WithFields(logrus.Fields{"bucket": container, "object": remote}).
			WithError(err).Warn("failed to put object")
		return minioError(op, container, remote, err)
	}
	return nil
}

// RemoveObject removes an object; a missing object is ErrNotFound.
func (m *MinioClient) RemoveObject(ctx context.Context, container string, remote string) error {
	const op = "removeObject"

	if err := validation.Validate(container, remote); err != nil {
		return err
	}
	key := validation.CleanRemote(remote)

	if _, err := m.client.StatObject(ctx, container, key, minio.StatObjectOptions{}); err != nil {
		return minioError(op, container, remote, err)
	}

	if err := m.client.RemoveObject(ctx, container, key, minio.RemoveObjectOptions{}); err != nil {
		return minioError(op, container, remote, err)
	}
	return nil
}

func minioError(op, container, remote string, err error) error {
	var kind error
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		kind = fserrors.ErrNotFound
	case "BucketAlreadyOwnedByYou", "BucketAlreadyExists":
		kind = fserrors.ErrAlreadyExists
	}
	return fserrors.New(op, container, remote, kind, err)
}
