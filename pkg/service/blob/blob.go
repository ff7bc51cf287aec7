package blob

import (
	"errors"
	"io"

	"github.com/m-mizutani/goerr/v2"
)

// DefaultMaxSize is the largest attachment accepted by the stores
const DefaultMaxSize int64 = 10 << 20

// ErrTooLarge is returned when an object exceeds the store's size limit
var ErrTooLarge = errors.New("object exceeds size limit")

// limitedReader fails with ErrTooLarge once more than max bytes were read
type limitedReader struct {
	r    io.Reader
	left int64
	max  int64
}

func limit(r io.Reader, max int64) io.Reader {
	return &limitedReader{r: r, left: max + 1, max: max}
}

func (l *limitedReader) Read(p []byte) (int, error) {
	if int64(len(p)) > l.left {
		p = p[:l.left]
	}
	n, err := l.r.Read(p)
	l.left -= int64(n)
	if l.left <= 0 {
		return n, goerr.Wrap(ErrTooLarge, "attachment too large", goerr.V("max_size", l.max))
	}
	return n, err
}
