package compression

import (
	"compress/gzip"
	"fmt"
	"io"
)

// GzipCompress compresses the stream on the fly through a pipe.
type GzipCompress struct{}

func (*GzipCompress) Name() string { return "gzip-compress" }

// Apply returns a reader yielding the compressed form of r. The returned
// closer stops the background compression if the output is abandoned.
func (*GzipCompress) Apply(r io.Reader) (io.Reader, io.Closer, error) {
	pr, pw := io.Pipe()

	go func() {
		zw := gzip.NewWriter(pw)
		if _, err := io.Copy(zw, r); err != nil {
			_ = zw.Close()
			_ = pw.CloseWithError(fmt.Errorf("gzip: copy: %w", err))
			return
		}
		if err := zw.Close(); err != nil {
			_ = pw.CloseWithError(fmt.Errorf("gzip: close: %w", err))
			return
		}
		_ = pw.Close()
	}()

	return pr, pr, nil
}

type GzipDecompress struct{}

func (GzipDecompress) Name() string { return "gzip-decompress" }

func (GzipDecompress) Apply(readerCloser io.ReadCloser) (io.ReadCloser, error) {
	gr, err := gzip.NewReader(readerCloser)
	if err != nil {
		_ = readerCloser.Close()
		return nil, fmt.Errorf("gzip: %w", err)
	}

	return &gzipReadCloser{Reader: gr, src: readerCloser}, nil
}

// gzipReadCloser closes both the gzip reader and the stream below it.
type gzipReadCloser struct {
	*gzip.Reader
	src io.Closer
}

func (g *gzipReadCloser) Close() error {
	err := g.Reader.Close()
	if cerr := g.src.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
