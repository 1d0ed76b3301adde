package repl

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/mstarongithub/wayshell/util/wrappers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepl(input string) (*Repl, *wrappers.ReaderWrapper, *wrappers.WriterWrapper, *bytes.Buffer) {
	var out bytes.Buffer
	in := wrappers.NewReaderWrapper(strings.NewReader(input))
	w := wrappers.NewWriterWrapper(&out)
	return NewRepl(in, w), in, w, &out
}

func echo(in string, _ *Repl) (string, error) {
	switch {
	case in == "quit":
		return "bye", ErrQuit
	case strings.HasPrefix(in, "echo "):
		return strings.TrimPrefix(in, "echo "), nil
	case in == "boom":
		return "", errors.New("boom")
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCommand, in)
}

func TestReplAnswersAndQuits(t *testing.T) {
	r, in, w, out := newTestRepl("echo hi\n\nnope\nquit\necho never\n")
	require.NoError(t, r.Run(echo))
	assert.Equal(t, "hi\nunknown command: nope\nbye\n", out.String())
	assert.True(t, in.IsClosed())
	assert.True(t, w.IsClosed())
}

func TestReplStopsOnHandlerError(t *testing.T) {
	r, in, _, out := newTestRepl("echo a\nboom\necho b\n")
	err := r.Run(echo)
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, "a\n", out.String())
	assert.True(t, in.IsClosed())
}

func TestReplEndOfInput(t *testing.T) {
	r, _, _, out := newTestRepl("echo last")
	require.NoError(t, r.Run(echo))
	require.NoError(t, r.Print("event"))
	assert.Equal(t, "last\nevent\n", out.String())
}
