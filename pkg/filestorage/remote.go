package filestorage

import (
	"bytes"
	"io"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	common "github.com/tizianocitro/fsbox/pkg"
)

type loggerHolder struct {
	logger logrus.FieldLogger
}

// SetLogger replaces the logger, nil restores the standard logrus logger.
func (h *loggerHolder) SetLogger(logger logrus.FieldLogger) {
	h.logger = logger
}

func (h *loggerHolder) log() logrus.FieldLogger {
	if h.logger == nil {
		return logrus.StandardLogger()
	}
	return h.logger
}

// fileFromKey maps a flat object key onto the descriptor layout of the local
// storage, so "a/b.txt" in bucket "c1" gets Name "b.txt" and Location "c1/a".
// Keys ending in "/" are directory markers and are reported as not ok.
func fileFromKey(container, key string, size int64, modified time.Time) (common.File, bool) {
	if key == "" || strings.HasSuffix(key, "/") {
		return common.File{}, false
	}

	return common.File{
		Container: container,
		Name:      path.Base(key),
		Location:  path.Join(container, path.Dir(key)),
		Size:      size,
		ATime:     modified,
		MTime:     modified,
		CTime:     modified,
	}, true
}

// readerSize returns the length of the in-memory readers the clients are
// usually handed, or -1 when it cannot be known without consuming reader.
func readerSize(reader io.Reader) int64 {
	switch r := reader.(type) {
	case *bytes.Reader:
		return int64(r.Len())
	case *strings.Reader:
		return int64(r.Len())
	case *bytes.Buffer:
		return int64(r.Len())
	}

	seeker, ok := reader.(io.Seeker)
	if !ok {
		return -1
	}
	cur, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return -1
	}
	end, err := seeker.Seek(0, io.SeekEnd)
	if err != nil {
		return -1
	}
	if _, err := seeker.Seek(cur, io.SeekStart); err != nil {
		return -1
	}
	return end - cur
}
