package common

import (
	"path"
	"strings"
	"time"
)

// ConnectionProperties defines the properties for a connection.
// IsMainInstance indicates if this is the main instance (can read and write).
// SaveEncrypt indicates the algorithm used to encrypt data at rest.
// SaveCompress indicates the algorithm used to compress data at rest.
// EncryptKey is the passphrase used when SaveEncrypt is not NO_ENCRYPTION.
type ConnectionProperties struct {
	IsMainInstance bool
	SaveEncrypt    EncryptionAlgorithm
	SaveCompress   CompressionAlgorithm
	EncryptKey     string
}

// Transforms reports whether objects are transformed before being stored.
func (p ConnectionProperties) Transforms() bool {
	return p.SaveCompress != NO_COMPRESSION || p.SaveEncrypt != NO_ENCRYPTION
}

type CompressionAlgorithm int

const (
	NO_COMPRESSION CompressionAlgorithm = iota
	GZIP_COMPRESSION
)

type EncryptionAlgorithm int

const (
	NO_ENCRYPTION EncryptionAlgorithm = iota
	AES256_ENCRYPTION
)

// Container describes a top-level directory (bucket) of a storage.
// It is a snapshot taken at enumeration time.
type Container struct {
	Name  string
	Size  int64
	ATime time.Time
	MTime time.Time
	CTime time.Time
}

// File describes a stored object.
//
// Location is the slash-separated path of the object's parent directory
// relative to the storage root, container name included: object "a/b.txt"
// in container "c1" has Location "c1/a" and Name "b.txt".
type File struct {
	Container string
	Name      string
	Location  string
	Size      int64
	ATime     time.Time
	MTime     time.Time
	CTime     time.Time
}

// Remote returns the object path inside its container, e.g. "a/b.txt".
func (f File) Remote() string {
	sub := strings.TrimPrefix(f.Location, f.Container)
	sub = strings.TrimPrefix(sub, "/")
	if sub == "" {
		return f.Name
	}
	return path.Join(sub, f.Name)
}

// Key returns the object path relative to the storage root, e.g. "c1/a/b.txt".
func (f File) Key() string {
	return path.Join(f.Location, f.Name)
}
