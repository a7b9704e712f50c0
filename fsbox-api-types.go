package fsbox

import (
	common "github.com/tizianocitro/fsbox/pkg"
	"github.com/tizianocitro/fsbox/pkg/fserrors"
)

// ReplicationMode defines the replication modes for file storage.
// SYNC_REPLICATION indicates that the replication is synchronous.
// ASYNC_REPLICATION indicates that the replication is asynchronous.
type ReplicationMode int

const (
	SYNC_REPLICATION ReplicationMode = iota
	ASYNC_REPLICATION
)

// LoadBalancingStrategy selects the storage a read is served from.
type LoadBalancingStrategy int

const (
	READ_REPLICA_FIRST LoadBalancingStrategy = iota
	ROUND_ROBIN
)

// Re-export types (type alias)
type (
	CompressionAlgorithm = common.CompressionAlgorithm
	EncryptionAlgorithm  = common.EncryptionAlgorithm
	Container            = common.Container
	File                 = common.File
)

// Re-export constants
const (
	NO_COMPRESSION   = common.NO_COMPRESSION
	GZIP_COMPRESSION = common.GZIP_COMPRESSION

	NO_ENCRYPTION     = common.NO_ENCRYPTION
	AES256_ENCRYPTION = common.AES256_ENCRYPTION
)

// Error kinds, match them with errors.Is.
var (
	ErrInvalidName   = fserrors.ErrInvalidName
	ErrNotFound      = fserrors.ErrNotFound
	ErrAlreadyExists = fserrors.ErrAlreadyExists
	ErrPartialIO     = fserrors.ErrPartialIO
)
