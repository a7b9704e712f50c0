package filestorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	"github.com/tizianocitro/fsbox/internal/validation"
	common "github.com/tizianocitro/fsbox/pkg"
	"github.com/tizianocitro/fsbox/pkg/fserrors"
	"github.com/tizianocitro/fsbox/pkg/transform"
)

// waitTimeout bounds the S3 waiters used after bucket and object writes.
const waitTimeout = time.Minute

// S3Client mirrors the container/object contract on AWS S3 or a compatible
// endpoint. Containers are buckets and remote paths are object keys.
type S3Client struct {
	loggerHolder
	client     *s3.Client
	properties common.ConnectionProperties
}

func NewS3Client(client *s3.Client, properties common.ConnectionProperties) (*S3Client, error) {
	if client == nil {
		return nil, fmt.Errorf("failed to create S3Client: client is nil")
	}

	_, err := client.ListBuckets(context.TODO(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AWS S3: %w", err)
	}

	return &S3Client{
		client:     client,
		properties: properties,
	}, nil
}

func (s *S3Client) GetClient() *s3.Client {
	return s.client
}

func (s *S3Client) GetConnectionProperties() common.ConnectionProperties {
	return s.properties
}

func (s *S3Client) CreateContainer(ctx context.Context, name string) (common.Container, error) {
	const op = "createContainer"

	if err := validation.ValidateContainerName(name); err != nil {
		return common.Container{}, err
	}

	// us-east-1 answers a repeated create of an owned bucket with success.
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)}); err == nil {
		s.log().WithField("bucket", name).Warn("bucket already exists")
		return common.Container{}, fserrors.New(op, name, "", fserrors.ErrAlreadyExists, nil)
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(name)}
	if region := s.client.Options().Region; region != "" && region != "us-east-1" && region != "no-region" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(region),
		}
	}

	_, err := s.client.CreateBucket(ctx, input)
	if err != nil {
		err = s3Error(op, name, "", err)
		if errors.Is(err, fserrors.ErrAlreadyExists) {
			s.log().WithField("bucket", name).Warn("bucket already exists")
		}
		return common.Container{}, err
	}

	err = s3.NewBucketExistsWaiter(s.client).Wait(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)}, waitTimeout)
	if err != nil {
		s.log().WithField("bucket", name).WithError(err).Warn("failed attempt to wait for bucket to exist")
		return common.Container{}, s3Error(op, name, "", err)
	}

	containers, err := s.ListContainers(ctx)
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

func (s *S3Client) ListContainers(ctx context.Context) ([]common.Container, error) {
	var containers []common.Container

	paginator := s3.NewListBucketsPaginator(s.client, &s3.ListBucketsInput{})
	for paginator.HasMorePages() {
		output, err := paginator.NextPage(ctx)
		if err != nil {
			var apiErr smithy.APIError
			if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDenied" {
				s.log().Warn("no permission to list buckets for this account")
			}
			return nil, s3Error("listContainers", "", "", err)
		}

		for _, b := range output.Buckets {
			created := aws.ToTime(b.CreationDate)
			containers = append(containers, common.Container{
				Name:  aws.ToString(b.Name),
				ATime: created,
				MTime: created,
				CTime: created,
			})
		}
	}
	return containers, nil
}

// DestroyContainer deletes every object of the bucket, then the bucket.
// The first failed deletion stops the operation.
func (s *S3Client) DestroyContainer(ctx context.Context, name string) error {
	const op = "destroyContainer"

	if err := validation.ValidateContainerName(name); err != nil {
		return err
	}

	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: aws.String(name)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return s3Error(op, name, "", err)
		}
		for _, obj := range page.Contents {
			_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(name), Key: obj.Key})
			if err != nil {
				return fserrors.New(op, name, aws.ToString(obj.Key), fserrors.ErrPartialIO, err)
			}
		}
	}

	if _, err := s.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(name)}); err != nil {
		return s3Error(op, name, "", err)
	}

	err := s3.NewBucketNotExistsWaiter(s.client).Wait(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)}, waitTimeout)
	if err != nil {
		s.log().WithField("bucket", name).WithError(err).Warn("failed attempt to wait for bucket to be deleted")
		return s3Error(op, name, "", err)
	}
	return nil
}

func (s *S3Client) ListObjects(ctx context.Context, container string) ([]common.File, error) {
	const op = "listObjects"

	if err := validation.ValidateContainerName(container); err != nil {
		return nil, err
	}

	files := []common.File{}
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{Bucket: aws.String(container)})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, s3Error(op, container, "", err)
		}
		for _, obj := range page.Contents {
			f, ok := fileFromKey(container, aws.ToString(obj.Key), aws.ToInt64(obj.Size), aws.ToTime(obj.LastModified))
			if ok {
				files = append(files, f)
			}
		}
	}
	return files, nil
}

func (s *S3Client) GetObject(ctx context.Context, container string, remote string) (io.ReadCloser, error) {
	const op = "getObject"

	if err := validation.Validate(container, remote); err != nil {
		return nil, err
	}

	pipe, err := transform.Factory{}.BuildReadPipeline(s.properties)
	if err != nil {
		return nil, fmt.Errorf("build read pipeline: %w", err)
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(validation.CleanRemote(remote)),
	})
	if err != nil {
		return nil, s3Error(op, container, remote, err)
	}

	obj, err := pipe.Apply(result.Body)
	if err != nil {
		return nil, fmt.Errorf("fail to transform reader: %w", err)
	}
	return obj, nil
}

// PutObject uploads an object. The SDK signs the payload, so transformed
// output is buffered into a seekable body first.
func (s *S3Client) PutObject(ctx context.Context, container string, remote string, reader io.Reader) error {
	const op = "putObject"

	if reader == nil {
		return fmt.Errorf("reader is nil")
	}
	if err := validation.Validate(container, remote); err != nil {
		return err
	}
	key := validation.CleanRemote(remote)

	pipe, err := transform.Factory{}.BuildWritePipeline(s.properties)
	if err != nil {
		return fmt.Errorf("build write pipeline: %w", err)
	}

	body, err := s.body(pipe, reader)
	if err != nil {
		return fserrors.New(op, container, remote, nil, err)
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		fields := logrus.Fields{"bucket": container, "object": remote}
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "EntityTooLarge" {
			s.log().WithFields(fields).Warn("object too large for a single PutObject")
		} else {
			s.log().WithFields(fields).WithError(err).Warn("failed to upload object")
		}
		return s3Error(op, container, remote, err)
	}

	err = s3.NewObjectExistsWaiter(s.client).Wait(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(key),
	}, waitTimeout)
	if err != nil {
		return s3Error(op, container, remote, err)
	}
	return nil
}

func (s *S3Client) body(pipe transform.WritePipeline, reader io.Reader) (io.Reader, error) {
	if pipe.Empty() {
		if _, ok := reader.(io.ReadSeeker); ok {
			return reader, nil
		}
	}

	obj, closer, err := pipe.Apply(reader)
	if err != nil {
		return nil, fmt.Errorf("apply write pipeline: %w", err)
	}
	defer closer.Close()

	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read input stream: %w", err)
	}
	return bytes.NewReader(buf), nil
}

// RemoveObject deletes an object. S3 deletes are idempotent, so the object
// is looked up first to report a missing one as ErrNotFound.
func (s *S3Client) RemoveObject(ctx context.Context, container string, remote string) error {
	const op = "removeObject"

	if err := validation.Validate(container, remote); err != nil {
		return err
	}
	key := aws.String(validation.CleanRemote(remote))

	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(container), Key: key}); err != nil {
		return s3Error(op, container, remote, err)
	}

	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(container), Key: key}); err != nil {
		return s3Error(op, container, remote, err)
	}

	err := s3.NewObjectNotExistsWaiter(s.client).Wait(ctx, &s3.HeadObjectInput{Bucket: aws.String(container), Key: key}, waitTimeout)
	if err != nil {
		s.log().WithFields(logrus.Fields{"bucket": container, "object": remote}).
			Warn("failed attempt to wait for object to be deleted")
		return s3Error(op, container, remote, err)
	}
	return nil
}

func s3Error(op, container, remote string, err error) error {
	var (
		noKey    *types.NoSuchKey
		noBucket *types.NoSuchBucket
		notFound *types.NotFound
		owned    *types.BucketAlreadyOwnedByYou
		exists   *types.BucketAlreadyExists
		apiErr   smithy.APIError
		kind     error
	)

	switch {
	case errors.As(err, &noKey), errors.As(err, &noBucket), errors.As(err, &notFound):
		kind = fserrors.ErrNotFound
	case errors.As(err, &owned), errors.As(err, &exists):
		kind = fserrors.ErrAlreadyExists
	case errors.As(err, &apiErr):
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			kind = fserrors.ErrNotFound
		}
	}
	return fserrors.New(op, container, remote, kind, err)
}
