package connfilestorage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tizianocitro/fsbox/internal/connection"
	common "github.com/tizianocitro/fsbox/pkg"
)

func localConfig(connectType, root string, props common.ConnectionProperties) *connection.AuthConfig {
	config := connection.NewAuthConfig()
	config.SetConnectType(connectType)
	config.SetRoot(root)
	config.SetProperties(props)
	return config
}

func TestCreateLocalConnection_NilConfig(t *testing.T) {
	_, err := CreateLocalConnection(nil)
	assert.ErrorContains(t, err, "AuthConfig cannot be nil")
}

func TestCreateLocalConnection_WithRoot(t *testing.T) {
	root := t.TempDir()

	client, err := CreateLocalConnection(localConfig(connection.WithRoot, root, common.ConnectionProperties{IsMainInstance: true}))
	require.NoError(t, err)
	assert.True(t, client.GetConnectionProperties().IsMainInstance)

	_, err = client.CreateContainer(context.Background(), "c1")
	require.NoError(t, err)
	assert.DirExists(t, filepath.Join(root, "c1"))
}

func TestCreateLocalConnection_WithEnv(t *testing.T) {
	root := t.TempDir()
	t.Setenv(connection.RootEnv, root)

	client, err := CreateLocalConnection(localConfig(connection.WithEnv, "", common.ConnectionProperties{}))
	require.NoError(t, err)

	url, err := client.GetURL("c1", "x.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "c1", "x.txt"), url)
}

func TestCreateLocalConnection_WithEnvUnset(t *testing.T) {
	t.Setenv(connection.RootEnv, "")
	require.NoError(t, os.Unsetenv(connection.RootEnv))

	_, err := CreateLocalConnection(localConfig(connection.WithEnv, "", common.ConnectionProperties{}))
	assert.ErrorContains(t, err, connection.RootEnv)
}

func TestCreateLocalConnection_InvalidRoot(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	cases := map[string]struct {
		root string
		want string
	}{
		"empty":   {"", "storage root not set"},
		"missing": {filepath.Join(dir, "missing"), "path does not exist"},
		"not dir": {file, "invalid directory"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := CreateLocalConnection(localConfig(connection.WithRoot, tc.root, common.ConnectionProperties{}))
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tc.want), err.Error())
		})
	}
}

func TestCreateLocalConnection_InvalidConnectType(t *testing.T) {
	_, err := CreateLocalConnection(localConfig(connection.WithCredential, t.TempDir(), common.ConnectionProperties{}))
	assert.ErrorContains(t, err, "invalid connection type for local storage")
}

func TestCreateLocalConnection_RelativeRoot(t *testing.T) {
	root := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(wd, root)
	require.NoError(t, err)

	client, err := CreateLocalConnection(localConfig(connection.WithRoot, rel, common.ConnectionProperties{}))
	require.NoError(t, err)

	url, err := client.GetURL("c1", "a")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "c1", "a"), url)
}

func TestLocalContract(t *testing.T) {
	client, err := CreateLocalConnection(localConfig(connection.WithRoot, t.TempDir(), common.ConnectionProperties{
		IsMainInstance: true,
		SaveCompress:   common.GZIP_COMPRESSION,
	}))
	require.NoError(t, err)

	runContract(t, client)
}
