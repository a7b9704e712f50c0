package fsbox

import (
	"fmt"

	"github.com/minio/minio-go/v7"

	"github.com/tizianocitro/fsbox/internal/connection"
	connfilestorage "github.com/tizianocitro/fsbox/internal/connection/filestorage"
	common "github.com/tizianocitro/fsbox/pkg"
	"github.com/tizianocitro/fsbox/pkg/filestorage"
)

// ConnectionOptions holds the options for creating a connection.
// parameters:
// - ConnectionMethod: The method used to establish the connection.
// - IsMainInstance: Indicates if this is the main instance (reads and writes).
// - SaveEncrypt: The algorithm used to encrypt objects at rest.
// - SaveCompress: The algorithm used to compress objects at rest.
// - EncryptKey: The passphrase used when SaveEncrypt is not NO_ENCRYPTION.
type ConnectionOptions struct {
	ConnectionMethod connectionFunc
	IsMainInstance   bool
	SaveEncrypt      EncryptionAlgorithm
	SaveCompress     CompressionAlgorithm
	EncryptKey       string
}

type connectionFunc *connection.AuthConfig

func (o ConnectionOptions) properties() common.ConnectionProperties {
	return common.ConnectionProperties{
		IsMainInstance: o.IsMainInstance,
		SaveEncrypt:    o.SaveEncrypt,
		SaveCompress:   o.SaveCompress,
		EncryptKey:     o.EncryptKey,
	}
}

// authConfig checks that the connection method is one of allowed.
func (o ConnectionOptions) authConfig(backend string, allowed ...string) (*connection.AuthConfig, error) {
	var authConfig *connection.AuthConfig = o.ConnectionMethod
	if authConfig == nil {
		return nil, fmt.Errorf("connectionMethod cannot be nil")
	}

	for _, a := range allowed {
		if authConfig.GetConnectType() == a {
			authConfig.SetProperties(o.properties())
			return authConfig, nil
		}
	}
	return nil, fmt.Errorf("invalid connection method for %s: %s", backend, authConfig.GetConnectType())
}

// NewLocalConnection creates a storage over a local directory tree.
// With a nil ConnectionMethod the given root is used; ConnectWithEnvRoot
// reads the root from FSBOX_STORAGE_ROOT instead.
func NewLocalConnection(root string, connectionOptions ConnectionOptions) (*filestorage.LocalClient, error) {
	if connectionOptions.ConnectionMethod == nil {
		connectionOptions.ConnectionMethod = ConnectWithRoot(root)
	}

	authConfig, err := connectionOptions.authConfig("local storage", connection.WithRoot, connection.WithEnv)
	if err != nil {
		return nil, fmt.Errorf("%w; use: ConnectWithRoot or ConnectWithEnvRoot", err)
	}
	if authConfig.GetConnectType() == connection.WithRoot && authConfig.GetRoot() == "" {
		authConfig.SetRoot(root)
	}

	return connfilestorage.CreateLocalConnection(authConfig)
}

// NewMinIOConnection creates a new MinIO connection.
// It takes an endpoint, connection options, and optional MinIO options.
func NewMinIOConnection(endpoint string, connectionOptions ConnectionOptions, minioOptions *minio.Options) (*filestorage.MinioClient, error) {
	authConfig, err := connectionOptions.authConfig("MinIO", connection.WithCredential, connection.WithEnv)
	if err != nil {
		return nil, fmt.Errorf("%w; use: ConnectWithCredentials or ConnectWithEnvCredentials", err)
	}

	return connfilestorage.CreateMinioConnection(endpoint, authConfig, minioOptions)
}

// NewAzBlobConnection creates a new Azure Blob Storage connection.
func NewAzBlobConnection(endpoint string, connectionOptions ConnectionOptions) (*filestorage.AzBlobClient, error) {
	authConfig, err := connectionOptions.authConfig("Azure Blob",
		connection.WithCredential, connection.WithEnv, connection.WithConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%w; use: ConnectWithCredentials, ConnectWithEnvCredentials or ConnectWithConnectionString", err)
	}

	return connfilestorage.CreateAzBlobConnection(endpoint, authConfig)
}

// NewS3Connection creates a new AWS S3 connection.
func NewS3Connection(endpoint string, connectionOptions ConnectionOptions, awsRegion string) (*filestorage.S3Client, error) {
	authConfig, err := connectionOptions.authConfig("AWS S3", connection.WithCredential, connection.WithEnv)
	if err != nil {
		return nil, fmt.Errorf("%w; use: ConnectWithCredentials or ConnectWithEnvCredentials", err)
	}

	return connfilestorage.CreateS3Connection(endpoint, authConfig, awsRegion)
}

// ConnectWithRoot returns a connectionFunc for a local storage rooted at root.
func ConnectWithRoot(root string) connectionFunc {
	authConfig := connection.NewAuthConfig()
	authConfig.SetConnectType(connection.WithRoot)
	authConfig.SetRoot(root)
	return authConfig
}

// ConnectWithEnvRoot returns a connectionFunc for a local storage whose root
// is read from FSBOX_STORAGE_ROOT.
func ConnectWithEnvRoot() connectionFunc {
	authConfig := connection.NewAuthConfig()
	authConfig.SetConnectType(connection.WithEnv)
	return authConfig
}

// ConnectWithCredentials returns a connectionFunc configured with the provided credentials.
func ConnectWithCredentials(identity string, secretAccessKey string) connectionFunc {
	authConfig := connection.NewAuthConfig()
	authConfig.SetConnectType(connection.WithCredential)
	authConfig.SetAccessKey(identity)
	authConfig.SetSecretKey(secretAccessKey)
	return authConfig
}

// ConnectWithEnvCredentials returns a connectionFunc configured to use environment credentials.
func ConnectWithEnvCredentials() connectionFunc {
	authConfig := connection.NewAuthConfig()
	authConfig.SetConnectType(connection.WithEnv)
	return authConfig
}

// ConnectWithConnectionString returns a connectionFunc configured with the connection string.
func ConnectWithConnectionString(connectionString string) connectionFunc {
	authConfig := connection.NewAuthConfig()
	authConfig.SetConnectType(connection.WithConnectionString)
	authConfig.SetConnectionString(connectionString)
	return authConfig
}
