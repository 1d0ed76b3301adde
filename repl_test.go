package main

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/mstarongithub/wayshell/repl"
	"github.com/mstarongithub/wayshell/shell"
	"github.com/mstarongithub/wayshell/util/wrappers"
	"github.com/mstarongithub/wayshell/wayland/wltest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRepl() *repl.Repl {
	return repl.NewRepl(wrappers.NewReaderWrapper(strings.NewReader("")), wrappers.NewWriterWrapper(&bytes.Buffer{}))
}

func TestReplUnknownCommand(t *testing.T) {
	server := newHeadlessServer(t)
	_, err := server.handleReplCommand("frobnicate now", testRepl())
	assert.ErrorIs(t, err, repl.ErrUnknownCommand)
}

func TestReplInspect(t *testing.T) {
	server := newHeadlessServer(t)
	c := connect(t, server)
	_, topLevel := c.mapWindow(t, server, 200, 100)

	res, err := server.handleReplCommand("inspect windows", testRepl())
	require.NoError(t, err)
	assert.Contains(t, res, fmt.Sprintf("id: \"%#x\"", topLevel.ID()))
	assert.Contains(t, res, "kind: toplevel")
	assert.Contains(t, res, "active: true")

	res, err = server.handleReplCommand("inspect outputs", testRepl())
	require.NoError(t, err)
	assert.Contains(t, res, "name: HEADLESS-1")
	assert.Contains(t, res, "refresh_mhz: 60000")

	res, err = server.handleReplCommand("inspect drm", testRepl())
	require.NoError(t, err)
	assert.Contains(t, res, "headless")

	res, err = server.handleReplCommand("inspect nothing", testRepl())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res, "Inspect one of"))
}

func TestReplWindowCommands(t *testing.T) {
	server := newHeadlessServer(t)
	c := connect(t, server)
	_, first := c.mapWindow(t, server, 200, 100)
	_, second := c.mapWindow(t, server, 200, 100)

	res, err := server.handleReplCommand(fmt.Sprintf("focus %#x", first.ID()), testRepl())
	require.NoError(t, err)
	assert.Contains(t, res, fmt.Sprintf("Focused %#x", first.ID()))

	res, err = server.handleReplCommand(fmt.Sprintf("maximize %d", second.ID()), testRepl())
	require.NoError(t, err)
	assert.Contains(t, res, "maximize mode full")
	wltest.Run(t, server.display, func() {
		assert.Equal(t, shell.MaximizeFull, second.RequestedMaximizeMode())
	})

	res, err = server.handleReplCommand(fmt.Sprintf("minimize %#x", first.ID()), testRepl())
	require.NoError(t, err)
	assert.Contains(t, res, fmt.Sprintf("Focused %#x", second.ID()))

	res, err = server.handleReplCommand("close 0xdead", testRepl())
	require.NoError(t, err)
	assert.Equal(t, "No window 0xdead", res)

	res, err = server.handleReplCommand("ping nope", testRepl())
	require.NoError(t, err)
	assert.Equal(t, `Bad window id "nope"`, res)
}

func TestReplPointer(t *testing.T) {
	server := newHeadlessServer(t)
	res, err := server.handleReplCommand("pointer 10 20", testRepl())
	require.NoError(t, err)
	assert.Equal(t, "Cursor at (10,20) (PassThrough)", res)

	res, err = server.handleReplCommand("pointer 10", testRepl())
	require.NoError(t, err)
	assert.Equal(t, "Usage: pointer <x> <y>", res)
}

func TestReplWatchTwice(t *testing.T) {
	server := newHeadlessServer(t)
	r := testRepl()
	res, err := server.handleReplCommand("watch", r)
	require.NoError(t, err)
	assert.Equal(t, "Watching window events", res)
	res, _ = server.handleReplCommand("watch", r)
	assert.Equal(t, "Already watching", res)
	res, _ = server.handleReplCommand("unwatch", r)
	assert.Equal(t, "Stopped watching", res)
	assert.Equal(t, 0, server.events.Receivers())
}
