package filestorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sirupsen/logrus"

	"github.com/tizianocitro/fsbox/internal/validation"
	common "github.com/tizianocitro/fsbox/pkg"
	"github.com/tizianocitro/fsbox/pkg/fserrors"
	"github.com/tizianocitro/fsbox/pkg/transform"
)

// AzBlobClient mirrors the container/object contract on Azure Blob Storage.
type AzBlobClient struct {
	loggerHolder
	client     *azblob.Client
	properties common.ConnectionProperties
}

func NewAzBlobClient(client *azblob.Client, properties common.ConnectionProperties) (*AzBlobClient, error) {
	if client == nil {
		return nil, fmt.Errorf("failed to create AzBlobClient: client is nil")
	}

	pager := client.NewListContainersPager(nil)
	_, err := pager.NextPage(context.TODO())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to azure blob: %w", err)
	}

	return &AzBlobClient{
		client:     client,
		properties: properties,
	}, nil
}

func (a *AzBlobClient) GetClient() *azblob.Client {
	return a.client
}

func (a *AzBlobClient) GetConnectionProperties() common.ConnectionProperties {
	return a.properties
}

func (a *AzBlobClient) CreateContainer(ctx context.Context, name string) (common.Container, error) {
	if err := validation.ValidateContainerName(name); err != nil {
		return common.Container{}, err
	}

	resp, err := a.client.CreateContainer(ctx, name, nil)
	if err != nil {
		err = azError("createContainer", name, "", err)
		if errors.Is(err, fserrors.ErrAlreadyExists) {
			a.log().WithField("container", name).Warn("container already exists")
		}
		return common.Container{}, err
	}

	modified := time.Now()
	if resp.LastModified != nil {
		modified = *resp.LastModified
	}
	return common.Container{Name: name, ATime: modified, MTime: modified, CTime: modified}, nil
}

func (a *AzBlobClient) ListContainers(ctx context.Context) ([]common.Container, error) {
	pager := a.client.NewListContainersPager(&azblob.ListContainersOptions{
		Include: azblob.ListContainersInclude{Metadata: true},
	})

	var containers []common.Container
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, azError("listContainers", "", "", err)
		}

		for _, item := range resp.ContainerItems {
			if item.Name == nil {
				continue
			}
			c := common.Container{Name: *item.Name}
			if item.Properties != nil && item.Properties.LastModified != nil {
				c.ATime, c.MTime, c.CTime = *item.Properties.LastModified, *item.Properties.LastModified, *item.Properties.LastModified
			}
			containers = append(containers, c)
		}
	}
	return containers, nil
}

// DestroyContainer deletes every blob of the container, then the container.
// The first failed deletion stops the operation.
func (a *AzBlobClient) DestroyContainer(ctx context.Context, name string) error {
	const op = "destroyContainer"

	if err := validation.ValidateContainerName(name); err != nil {
		return err
	}

	pager := a.client.NewListBlobsFlatPager(name, nil)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return azError(op, name, "", err)
		}
		for _, blob := range resp.Segment.BlobItems {
			if blob.Name == nil {
				continue
			}
			if _, err := a.client.DeleteBlob(ctx, name, *blob.Name, nil); err != nil {
				return fserrors.New(op, name, *blob.Name, fserrors.ErrPartialIO, err)
			}
		}
	}

	if _, err := a.client.DeleteContainer(ctx, name, nil); err != nil {
		return azError(op, name, "", err)
	}

	a.log().WithField("container", name).Debug("container destroyed")
	return nil
}

func (a *AzBlobClient) ListObjects(ctx context.Context, container string) ([]common.File, error) {
	const op = "listObjects"

	if err := validation.ValidateContainerName(container); err != nil {
		return nil, err
	}

	files := []common.File{}
	pager := a.client.NewListBlobsFlatPager(container, nil)
	for pager.More() {
		resp, err := pager.NextPage(ctx)
		if err != nil {
			return nil, azError(op, container, "", err)
		}

		for _, blob := range resp.Segment.BlobItems {
			if blob.Name == nil {
				continue
			}

			var (
				size     int64
				modified time.Time
			)
			if p := blob.Properties; p != nil {
				if p.ContentLength != nil {
					size = *p.ContentLength
				}
				if p.LastModified != nil {
					modified = *p.LastModified
				}
			}

			f, ok := fileFromKey(container, *blob.Name, size, modified)
			if !ok {
				continue
			}
			if p := blob.Properties; p != nil && p.CreationTime != nil {
				f.CTime = *p.CreationTime
			}
			files = append(files, f)
		}
	}
	return files, nil
}

func (a *AzBlobClient) GetObject(ctx context.Context, container string, remote string) (io.ReadCloser, error) {
	if err := validation.Validate(container, remote); err != nil {
		return nil, err
	}

	pipe, err := transform.Factory{}.BuildReadPipeline(a.properties)
	if err != nil {
		return nil, fmt.Errorf("build read pipeline: %w", err)
	}

	get, err := a.client.DownloadStream(ctx, container, validation.CleanRemote(remote), nil)
	if err != nil {
		return nil, azError("getObject", container, remote, err)
	}

	retryReader := get.NewRetryReader(ctx, &azblob.RetryReaderOptions{})

	obj, err := pipe.Apply(retryReader)
	if err != nil {
		return nil, fmt.Errorf("fail to transform reader: %w", err)
	}
	return obj, nil
}

func (a *AzBlobClient) PutObject(ctx context.Context, container, remote string, reader io.Reader) error {
	if reader == nil {
		return fmt.Errorf("reader is nil")
	}
	if err := validation.Validate(container, remote); err != nil {
		return err
	}

	pipe, err := transform.Factory{}.BuildWritePipeline(a.properties)
	if err != nil {
		return fmt.Errorf("build write pipeline: %w", err)
	}

	obj, closer, err := pipe.Apply(reader)
	if err != nil {
		return fmt.Errorf("apply write pipeline: %w", err)
	}
	defer closer.Close()

	_, err = a.client.UploadStream(ctx, container, validation.CleanRemote(remote), obj, nil)
	if err != nil {
		a.log().WithFields(logrus.Fields{"container": container, "blob": remote}).
			WithError(err).Warn("azure upload stream failed")
		return azError("putObject", container, remote, err)
	}
	return nil
}

func (a *AzBlobClient) RemoveObject(ctx context.Context, container string, remote string) error {
	if err := validation.Validate(container, remote); err != nil {
		return err
	}

	_, err := a.client.DeleteBlob(ctx, container, validation.CleanRemote(remote), nil)
	if err != nil {
		return azError("removeObject", container, remote, err)
	}
	return nil
}

func azError(op, container, remote string, err error) error {
	var kind error
	switch {
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound, bloberror.ResourceNotFound):
		kind = fserrors.ErrNotFound
	case bloberror.HasCode(err, bloberror.ContainerAlreadyExists, bloberror.BlobAlreadyExists):
		kind = fserrors.ErrAlreadyExists
	}
	return fserrors.New(op, container, remote, kind, err)
}
