package connfilestorage

import (
	"fmt"
	"os"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/tizianocitro/fsbox/internal/connection"
	"github.com/tizianocitro/fsbox/pkg/filestorage"
)

// CreateAzBlobConnection creates a new AzBlobClient.
// For credential based methods an empty or "default" endpoint means the
// public account URL; otherwise endpoint is the full service URL, e.g. the
// one of an Azurite emulator. Connection strings carry their own endpoint.
func CreateAzBlobConnection(endpoint string, config *connection.AuthConfig) (*filestorage.AzBlobClient, error) {
	if config == nil {
		return nil, fmt.Errorf("AuthConfig cannot be nil")
	}

	var client *azblob.Client
	switch config.GetConnectType() {
	case connection.WithCredential:
		c, err := sharedKeyClient(endpoint, config.GetAccessKey(), config.GetSecretKey())
		if err != nil {
			return nil, err
		}
		client = c
	case connection.WithEnv:
		accountName, ok := os.LookupEnv("AZURE_STORAGE_ACCOUNT_NAME")
		if !ok {
			return nil, fmt.Errorf("environment variable AZURE_STORAGE_ACCOUNT_NAME is not set")
		}
		accountKey, ok := os.LookupEnv("AZURE_STORAGE_ACCOUNT_KEY")
		if !ok {
			return nil, fmt.Errorf("environment variable AZURE_STORAGE_ACCOUNT_KEY is not set")
		}
		c, err := sharedKeyClient(endpoint, accountName, accountKey)
		if err != nil {
			return nil, err
		}
		client = c
	case connection.WithConnectionString:
		c, err := azblob.NewClientFromConnectionString(config.GetConnectionString(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create Azure Blob Storage client: %w", err)
		}
		client = c
	default:
		return nil, fmt.Errorf("invalid connection type: %s", config.GetConnectType())
	}

	return filestorage.NewAzBlobClient(client, config.GetProperties())
}

func sharedKeyClient(endpoint, accountName, accountKey string) (*azblob.Client, error) {
	if accountName == "" || accountKey == "" {
		return nil, fmt.Errorf("account name and/or account key not set")
	}

	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}

	accountURL := endpoint
	if accountURL == "" || accountURL == "default" {
		accountURL = fmt.Sprintf("https://%s.blob.core.windows.net", accountName)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(accountURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure Blob Storage client: %w", err)
	}
	return client, nil
}
