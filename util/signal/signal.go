// Package signal provides synchronous observer lists.
//
// Handlers run on the emitting goroutine, in connection order, before Emit returns.
// Everything in the compositor runs on the event loop, so there is no locking here.
package signal

type handler[T any] struct {
	id uint64
	fn func(T)
}

// Signal is a list of handlers for one kind of event. The zero value is ready to use.
type Signal[T any] struct {
	nextID   uint64
	handlers []handler[T]
}

// Connect registers fn and returns a function that removes it again
func (s *Signal[T]) Connect(fn func(T)) (disconnect func()) {
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, handler[T]{id: id, fn: fn})
	return func() {
		for i, h := range s.handlers {
			if h.id == id {
				s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

// Emit calls every connected handler with v.
// Handlers connected or disconnected during the emission take effect on the next one.
func (s *Signal[T]) Emit(v T) {
	handlers := s.handlers
	for _, h := range handlers {
		h.fn(v)
	}
}

func (s *Signal[T]) Len() int {
	return len(s.handlers)
}

// Reset drops every handler
func (s *Signal[T]) Reset() {
	s.handlers = nil
}

// Void is the payload of signals that carry no data
type Void struct{}
