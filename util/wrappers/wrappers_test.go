package wrappers

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReaderWrapperClose(t *testing.T) {
	r := NewReaderWrapper(strings.NewReader("hello"))
	buf := make([]byte, 2)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "he", string(buf[:n]))

	require.NoError(t, r.Close())
	assert.True(t, r.IsClosed())
	_, err = r.Read(buf)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestWriterWrapperLeavesWrappedOpen(t *testing.T) {
	var out bytes.Buffer
	w := NewWriterWrapper(&out)
	_, err := io.WriteString(w, "one")
	require.NoError(t, err)

	require.NoError(t, w.Close())
	_, err = io.WriteString(w, "two")
	assert.ErrorIs(t, err, ErrClosed)
	out.WriteString("!")
	assert.Equal(t, "one!", out.String())
}
