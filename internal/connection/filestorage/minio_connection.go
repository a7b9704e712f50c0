package connfilestorage

import (
	"fmt"
	"os"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tizianocitro/fsbox/internal/connection"
	"github.com/tizianocitro/fsbox/pkg/filestorage"
)

// CreateMinioConnection creates a new MinioClient.
// An empty or "default" endpoint means localhost:9000; a scheme prefix is
// stripped because minio-go takes a host:port.
func CreateMinioConnection(endpoint string, config *connection.AuthConfig, minioOptions *minio.Options) (*filestorage.MinioClient, error) {
	if config == nil {
		return nil, fmt.Errorf("AuthConfig cannot be nil")
	}

	if minioOptions == nil {
		minioOptions = &minio.Options{
			Secure: false,
		}
	}

	if endpoint == "" || endpoint == "default" {
		endpoint = "localhost:9000"
	}
	endpoint = strings.TrimPrefix(endpoint, "http://")
	endpoint = strings.TrimPrefix(endpoint, "https://")

	switch config.GetConnectType() {
	case connection.WithCredential:
		if config.GetAccessKey() == "" || config.GetSecretKey() == "" {
			return nil, fmt.Errorf("access key and/or secret key not set")
		}
		minioOptions.Creds = credentials.NewStaticV4(config.GetAccessKey(), config.GetSecretKey(), "")
	case connection.WithEnv:
		accessKey := os.Getenv("MINIO_ACCESS_KEY")
		secretKey := os.Getenv("MINIO_SECRET_KEY")
		if accessKey == "" || secretKey == "" {
			return nil, fmt.Errorf("environment variables MINIO_ACCESS_KEY and/or MINIO_SECRET_KEY are not set")
		}
		minioOptions.Creds = credentials.NewStaticV4(accessKey, secretKey, "")
	default:
		return nil, fmt.Errorf("invalid connection type for MinIO: %s", config.GetConnectType())
	}

	minioClient, err := minio.New(endpoint, minioOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return filestorage.NewMinioClient(minioClient, config.GetProperties())
}
