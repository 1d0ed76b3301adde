// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

var (
	// ErrUnknownCommand is reported back to the user, the repl keeps running
	ErrUnknownCommand = errors.New("unknown command")
	// ErrQuit stops the repl after writing the result
	ErrQuit = errors.New("quit")
)

type MessageHandler func(string, *Repl) (string, error)

// ReadCloser combines the Reader and Closer interfaces
type ReadCloser interface {
	io.Reader
	io.Closer
}

type Repl struct {
	Input   ReadCloser
	Output  io.WriteCloser
	scanner *bufio.Scanner
	writer  *bufio.Writer
	// Print may be called from other goroutines while a command is answered
	lock sync.Mutex
}

// Creates a new repl
// If no input is given, stdin will be used
// If no output is given, stdout will be used
// Note: The given reader and writer will be closed if the repl is started and then stops
func NewRepl(in ReadCloser, out io.WriteCloser) *Repl {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	return &Repl{
		Input:   in,
		Output:  out,
		scanner: bufio.NewScanner(in),
		writer:  bufio.NewWriter(out),
	}
}

// Starts the repl
// Blocks execution until the repl closes
// All input will be passed to the handler func
// If it receives an error from the message handler or during writing, it calls Close
// ErrUnknownCommand is printed instead, ErrQuit ends the repl without an error
func (r *Repl) Run(onMessage MessageHandler) error {
	for r.scanner.Scan() {
		newMessage := r.scanner.Text()
		if newMessage == "" {
			continue
		}
		res, err := onMessage(newMessage, r)
		quit := errors.Is(err, ErrQuit)
		switch {
		case err == nil, quit:
		case errors.Is(err, ErrUnknownCommand):
			res = err.Error()
		default:
			r.Close()
			return fmt.Errorf("message handler errored out on message \"%s\": %w", newMessage, err)
		}
		if err := r.write(res); err != nil {
			r.Close()
			return err
		}
		if quit {
			r.Close()
			return nil
		}
	}
	return r.scanner.Err()
}

// Print writes a line outside of a command response, for example for streamed events
func (r *Repl) Print(line string) error {
	return r.write(line)
}

func (r *Repl) write(res string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, err := r.writer.WriteString(res + "\n"); err != nil {
		return fmt.Errorf("failed to write result \"%s\": %w", res, err)
	}
	if err := r.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush writer: %w", err)
	}
	return nil
}

// Close stops the repl if it was still running
// This will also close the reader and writer
func (r *Repl) Close() {
	r.Input.Close()
	r.Output.Close()
}
