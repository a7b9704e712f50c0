package transform

import (
	"fmt"
	"io"

	common "github.com/tizianocitro/fsbox/pkg"
	"github.com/tizianocitro/fsbox/pkg/transform/compression"
	"github.com/tizianocitro/fsbox/pkg/transform/encryption"
)

// WriterTransform applies a write-time transformation to reader
type WriterTransform interface {
	Name() string
	Apply(reader io.Reader) (out io.Reader, closer io.Closer, err error)
}

// ReaderTransform applies a read-time inverse transformation to reader
type ReaderTransform interface {
	Name() string
	Apply(readerCloser io.ReadCloser) (out io.ReadCloser, err error)
}

// WritePipeline chains the transforms applied before an object is stored.
type WritePipeline struct{ steps []WriterTransform }

func NewWritePipeline(steps ...WriterTransform) WritePipeline { return WritePipeline{steps: steps} }

// Empty reports whether the pipeline leaves data untouched.
func (p WritePipeline) Empty() bool { return len(p.steps) == 0 }

// Apply runs every step in order. The returned closer releases the
// resources of all steps and must be called once the output is consumed.
func (p WritePipeline) Apply(reader io.Reader) (io.Reader, io.Closer, error) {
	var closers multiCloser
	cur := reader
	for _, s := range p.steps {
		out, c, err := s.Apply(cur)
		if err != nil {
			_ = closers.Close()
			return nil, nil, fmt.Errorf("%s: %w", s.Name(), err)
		}
		if c != nil {
			closers = append(closers, c)
		}
		cur = out
	}
	return cur, closers, nil
}

// ReadPipeline chains the inverse transforms applied when an object is read.
type ReadPipeline struct{ steps []ReaderTransform }

func NewReadPipeline(steps ...ReaderTransform) ReadPipeline { return ReadPipeline{steps: steps} }

// Empty reports whether the pipeline leaves data untouched.
func (p ReadPipeline) Empty() bool { return len(p.steps) == 0 }

func (p ReadPipeline) Apply(readerCloser io.ReadCloser) (io.ReadCloser, error) {
	cur := readerCloser
	for _, s := range p.steps {
		out, err := s.Apply(cur)
		if err != nil {
			_ = cur.Close()
			return nil, fmt.Errorf("%s: %w", s.Name(), err)
		}
		cur = out
	}
	return cur, nil
}

type multiCloser []io.Closer

func (m multiCloser) Close() error {
	var first error
	for i := len(m) - 1; i >= 0; i-- {
		if err := m[i].Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Factory builds pipelines from storage properties.
type Factory struct{}

// BuildWritePipeline compresses first, then encrypts.
func (Factory) BuildWritePipeline(props common.ConnectionProperties) (WritePipeline, error) {
	var steps []WriterTransform

	switch props.SaveCompress {
	case common.NO_COMPRESSION:
	case common.GZIP_COMPRESSION:
		steps = append(steps, &compression.GzipCompress{})
	default:
		return WritePipeline{}, fmt.Errorf("unsupported compression algorithm: %v", props.SaveCompress)
	}

	switch props.SaveEncrypt {
	case common.NO_ENCRYPTION:
	case common.AES256_ENCRYPTION:
		if props.EncryptKey == "" {
			return WritePipeline{}, fmt.Errorf("missing encryption key for AES256_ENCRYPTION")
		}
		steps = append(steps, &encryption.AESGCMEncrypt{Key: props.EncryptKey})
	default:
		return WritePipeline{}, fmt.Errorf("unsupported encryption algorithm: %v", props.SaveEncrypt)
	}

	return NewWritePipeline(steps...), nil
}

// BuildReadPipeline reverses BuildWritePipeline: decrypt, then decompress.
func (Factory) BuildReadPipeline(props common.ConnectionProperties) (ReadPipeline, error) {
	var steps []ReaderTransform

	switch props.SaveEncrypt {
	case common.NO_ENCRYPTION:
	case common.AES256_ENCRYPTION:
		if props.EncryptKey == "" {
			return ReadPipeline{}, fmt.Errorf("missing decryption key for AES256_ENCRYPTION")
		}
		steps = append(steps, &encryption.AESGCMDecrypt{Key: props.EncryptKey})
	default:
		return ReadPipeline{}, fmt.Errorf("unsupported encryption algorithm: %v", props.SaveEncrypt)
	}

	switch props.SaveCompress {
	case common.NO_COMPRESSION:
	case common.GZIP_COMPRESSION:
		steps = append(steps, &compression.GzipDecompress{})
	default:
		return ReadPipeline{}, fmt.Errorf("unsupported compression algorithm: %v", props.SaveCompress)
	}

	return NewReadPipeline(steps...), nil
}
