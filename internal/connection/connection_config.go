package connection

import common "github.com/tizianocitro/fsbox/pkg"

// Connection methods understood by the connection creators.
const (
	WithCredential       = "withCredential"
	WithEnv              = "withEnv"
	WithConnectionString = "withConnectionString"
	WithRoot             = "withRoot"
)

// RootEnv names the variable holding the storage root for WithEnv local connections.
const RootEnv = "FSBOX_STORAGE_ROOT"

type AuthConfig struct {
	connectType          string
	accessKey            string
	secretKey            string
	connectionString     string
	root                 string
	connectionProperties common.ConnectionProperties
}

func NewAuthConfig() *AuthConfig {
	return &AuthConfig{}
}

func (a *AuthConfig) GetConnectType() string {
	return a.connectType
}

func (a *AuthConfig) GetAccessKey() string {
	return a.accessKey
}

func (a *AuthConfig) GetSecretKey() string {
	return a.secretKey
}

func (a *AuthConfig) GetConnectionString() string {
	return a.connectionString
}

// GetRoot returns the storage root of a local connection.
func (a *AuthConfig) GetRoot() string {
	return a.root
}

func (a *AuthConfig) SetConnectType(connectType string) {
	a.connectType = connectType
}

func (a *AuthConfig) SetAccessKey(accessKey string) {
	a.accessKey = accessKey
}

func (a *AuthConfig) SetSecretKey(secretKey string) {
	a.secretKey = secretKey
}

func (a *AuthConfig) SetConnectionString(connectionString string) {
	a.connectionString = connectionString
}

func (a *AuthConfig) SetRoot(root string) {
	a.root = root
}

func (a *AuthConfig) GetProperties() common.ConnectionProperties {
	return a.connectionProperties
}

func (a *AuthConfig) SetProperties(properties common.ConnectionProperties) {
	a.connectionProperties = properties
}
