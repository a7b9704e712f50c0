package connfilestorage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/azurite"
	"github.com/testcontainers/testcontainers-go/modules/localstack"
	tcminio "github.com/testcontainers/testcontainers-go/modules/minio"

	"github.com/tizianocitro/fsbox/internal/connection"
	common "github.com/tizianocitro/fsbox/pkg"
)

const (
	minioUser     = "fsboxUser"
	minioPassword = "fsboxPassword"
)

// Containers are started on first use and shared by the tests of the package.
var (
	minioOnce     sync.Once
	minioEndpoint string
	minioErr      error

	localstackOnce     sync.Once
	localstackEndpoint string
	localstackErr      error

	azuriteOnce     sync.Once
	azuriteEndpoint string
	azuriteErr      error
)

func startMinio(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	minioOnce.Do(func() {
		ctx := context.Background()
		c, err := tcminio.Run(ctx, "minio/minio:latest",
			tcminio.WithUsername(minioUser),
			tcminio.WithPassword(minioPassword),
		)
		if err != nil {
			minioErr = err
			return
		}
		minioEndpoint, minioErr = c.ConnectionString(ctx)
	})
	require.NoError(t, minioErr, "failed to start MinIO container")
	return minioEndpoint
}

func startLocalstack(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	localstackOnce.Do(func() {
		ctx := context.Background()
		c, err := localstack.Run(ctx, "localstack/localstack:latest")
		if err != nil {
			localstackErr = err
			return
		}
		host, err := c.Host(ctx)
		if err != nil {
			localstackErr = err
			return
		}
		mappedPort, err := c.MappedPort(ctx, nat.Port("4566/tcp"))
		if err != nil {
			localstackErr = fmt.Errorf("failed to retrieve mapped port: %w", err)
			return
		}
		localstackEndpoint = fmt.Sprintf("http://%s:%s", host, mappedPort.Port())
	})
	require.NoError(t, localstackErr, "failed to start LocalStack container")
	return localstackEndpoint
}

func startAzurite(t *testing.T) string {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	azuriteOnce.Do(func() {
		ctx := context.Background()
		c, err := azurite.Run(ctx, "mcr.microsoft.com/azure-storage/azurite:latest",
			azurite.WithInMemoryPersistence(64),
		)
		if err != nil {
			azuriteErr = err
			return
		}
		azuriteEndpoint = fmt.Sprintf("%s/%s", c.MustServiceURL(ctx, azurite.BlobService), azurite.AccountName)
	})
	require.NoError(t, azuriteErr, "failed to start Azurite container")
	return azuriteEndpoint
}

func credentialConfig(user, secret string) *connection.AuthConfig {
	config := connection.NewAuthConfig()
	config.SetConnectType(connection.WithCredential)
	config.SetAccessKey(user)
	config.SetSecretKey(secret)
	config.SetProperties(common.ConnectionProperties{IsMainInstance: true})
	return config
}

func TestCreateMinioConnection_InvalidConfig(t *testing.T) {
	_, err := CreateMinioConnection("", nil, nil)
	assert.ErrorContains(t, err, "AuthConfig cannot be nil")

	_, err = CreateMinioConnection("", credentialConfig("", ""), nil)
	assert.ErrorContains(t, err, "access key and/or secret key not set")

	config := connection.NewAuthConfig()
	config.SetConnectType(connection.WithConnectionString)
	_, err = CreateMinioConnection("", config, nil)
	assert.ErrorContains(t, err, "invalid connection type for MinIO")
}

func TestCreateMinioConnection_WithEnvMissing(t *testing.T) {
	t.Setenv("MINIO_ACCESS_KEY", "")
	t.Setenv("MINIO_SECRET_KEY", "")

	config := connection.NewAuthConfig()
	config.SetConnectType(connection.WithEnv)
	_, err := CreateMinioConnection("", config, nil)
	assert.ErrorContains(t, err, "MINIO_ACCESS_KEY")
}

func TestCreateS3Connection_InvalidConfig(t *testing.T) {
	_, err := CreateS3Connection("", nil, "")
	assert.ErrorContains(t, err, "AuthConfig cannot be nil")

	_, err = CreateS3Connection("", credentialConfig("", ""), "")
	assert.ErrorContains(t, err, "access key and/or secret key not set")

	t.Setenv("AWS_ACCESS_KEY_ID", "")
	config := connection.NewAuthConfig()
	config.SetConnectType(connection.WithEnv)
	_, err = CreateS3Connection("", config, "")
	assert.ErrorContains(t, err, "AWS_ACCESS_KEY_ID")
}

func TestCreateAzBlobConnection_InvalidConfig(t *testing.T) {
	_, err := CreateAzBlobConnection("", nil)
	assert.ErrorContains(t, err, "AuthConfig cannot be nil")

	_, err = CreateAzBlobConnection("", credentialConfig("", ""))
	assert.ErrorContains(t, err, "account name and/or account key not set")

	config := connection.NewAuthConfig()
	config.SetConnectType(connection.WithRoot)
	_, err = CreateAzBlobConnection("", config)
	assert.ErrorContains(t, err, "invalid connection type")
}

func TestMinioContract(t *testing.T) {
	endpoint := startMinio(t)

	client, err := CreateMinioConnection("http://"+strings.TrimPrefix(endpoint, "http://"), credentialConfig(minioUser, minioPassword), nil)
	require.NoError(t, err)

	runContract(t, client)
}

func TestS3Contract(t *testing.T) {
	endpoint := startLocalstack(t)

	client, err := CreateS3Connection(endpoint, credentialConfig("test", "test"), "us-east-1")
	require.NoError(t, err)

	runContract(t, client)
}

func TestAzBlobContract(t *testing.T) {
	endpoint := startAzurite(t)

	client, err := CreateAzBlobConnection(endpoint, credentialConfig(azurite.AccountName, azurite.AccountKey))
	require.NoError(t, err)

	runContract(t, client)
}

func TestAzBlobContract_ConnectionStringEncrypted(t *testing.T) {
	endpoint := startAzurite(t)

	config := connection.NewAuthConfig()
	config.SetConnectType(connection.WithConnectionString)
	config.SetConnectionString(fmt.Sprintf("DefaultEndpointsProtocol=http;AccountName=%s;AccountKey=%s;BlobEndpoint=%s;",
		azurite.AccountName, azurite.AccountKey, endpoint))
	config.SetProperties(common.ConnectionProperties{
		IsMainInstance: true,
		SaveEncrypt:    common.AES256_ENCRYPTION,
		EncryptKey:     "contract-key",
	})

	client, err := CreateAzBlobConnection("", config)
	require.NoError(t, err)

	runContract(t, client)
}
