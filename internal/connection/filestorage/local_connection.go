package connfilestorage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"

	"github.com/tizianocitro/fsbox/internal/connection"
	"github.com/tizianocitro/fsbox/pkg/filestorage"
)

// CreateLocalConnection creates a LocalClient over a directory of the host.
// The root must exist and be a directory; it is never created here.
func CreateLocalConnection(config *connection.AuthConfig) (*filestorage.LocalClient, error) {
	if config == nil {
		return nil, fmt.Errorf("AuthConfig cannot be nil")
	}

	var root string
	switch config.GetConnectType() {
	case connection.WithRoot:
		root = config.GetRoot()
	case connection.WithEnv:
		var ok bool
		root, ok = os.LookupEnv(connection.RootEnv)
		if !ok {
			return nil, fmt.Errorf("environment variable %s is not set", connection.RootEnv)
		}
	default:
		return nil, fmt.Errorf("invalid connection type for local storage: %s", config.GetConnectType())
	}

	if root == "" {
		return nil, fmt.Errorf("storage root not set")
	}

	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve storage root %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("path does not exist: %s", abs)
		}
		return nil, fmt.Errorf("failed to stat storage root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("invalid directory: %s", abs)
	}

	return filestorage.NewLocalClient(osfs.New(abs), config.GetProperties())
}
