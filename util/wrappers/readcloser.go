package wrappers

import (
	"errors"
	"io"
	"sync/atomic"
)

var ErrClosed = errors.New("closed")

// ReaderWrapper gives a reader its own Close, so closing it leaves the wrapped reader open
type ReaderWrapper struct {
	isClosed atomic.Bool
	wrapped  io.Reader
}

// Close implements repl.ReadCloser.
func (r *ReaderWrapper) Close() error {
	r.isClosed.Store(true)
	return nil
}

// Read implements repl.ReadCloser.
func (r *ReaderWrapper) Read(p []byte) (n int, err error) {
	if r.isClosed.Load() {
		return 0, ErrClosed
	}
	return r.wrapped.Read(p)
}

func (r *ReaderWrapper) IsClosed() bool {
	return r.isClosed.Load()
}

func NewReaderWrapper(wraps io.Reader) *ReaderWrapper {
	return &ReaderWrapper{wrapped: wraps}
}
