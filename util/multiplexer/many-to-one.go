// Copyright (c) 2024 mStar
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package multiplexer

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("multiplexer has been closed")

// A many to one multiplexer
// Yes, channels technically already are that, but there are a bunch of problems with using raw channels as multiplexer:
// If any of the senders tries to send to a closed channel, it explodes
// Thus, the outbound channel is never closed. Closing only wakes up and rejects senders
type ManyToOne[T any] struct {
	outbound  chan T
	done      chan struct{}
	closeOnce sync.Once
}

// NewManyToOne creates a new ManyToOne multiplexer
// The given channel will be where all messages will be sent to
func NewManyToOne[T any](receiver chan T) *ManyToOne[T] {
	return &ManyToOne[T]{
		outbound: receiver,
		done:     make(chan struct{}),
	}
}

// Send a message to this many to one plexer
// Blocks while the receiver is full. If closed, the message won't get sent
func (m *ManyToOne[T]) Send(msg T) error {
	select {
	case <-m.done:
		return ErrClosed
	default:
	}
	select {
	case m.outbound <- msg:
		return nil
	case <-m.done:
		return ErrClosed
	}
}

// Receiver returns the channel all messages arrive on
func (m *ManyToOne[T]) Receiver() <-chan T {
	return m.outbound
}

// Done is closed once the plexer is closed
func (m *ManyToOne[T]) Done() <-chan struct{} {
	return m.done
}

// Marks the plexer as closed. Safe to call more than once
func (m *ManyToOne[T]) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
}

func (m *ManyToOne[T]) Closed() bool {
	select {
	case <-m.done:
		return true
	default:
		return false
	}
}
