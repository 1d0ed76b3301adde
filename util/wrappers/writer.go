package wrappers

import (
	"io"
	"sync/atomic"
)

// WriterWrapper is the writing counterpart of ReaderWrapper
type WriterWrapper struct {
	isClosed atomic.Bool
	wrapped  io.Writer
}

func NewWriterWrapper(wraps io.Writer) *WriterWrapper {
	return &WriterWrapper{wrapped: wraps}
}

func (r *WriterWrapper) Close() error {
	r.isClosed.Store(true)
	return nil
}

func (r *WriterWrapper) Write(p []byte) (n int, err error) {
	if r.isClosed.Load() {
		return 0, ErrClosed
	}
	return r.wrapped.Write(p)
}

func (r *WriterWrapper) IsClosed() bool {
	return r.isClosed.Load()
}
