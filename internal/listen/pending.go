package listen

import (
	"context"
	"sync"
)

type outcome struct {
	text string
	err  error
}

// slot is the single-assignment pending result for one listen request.
// It is fulfilled at most once; later attempts are dropped. The waiter
// channel has capacity one so fulfillment never blocks the capture
// loop.
type slot struct {
	mu   sync.Mutex
	ch   chan outcome
	done bool
}

func newSlot() *slot {
	return &slot{ch: make(chan outcome, 1)}
}

func (s *slot) fulfill(text string) bool {
	return s.deliver(outcome{text: text})
}

func (s *slot) fail(err error) bool {
	return s.deliver(outcome{err: err})
}

func (s *slot) deliver(o outcome) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return false
	}
	s.done = true
	s.ch <- o
	return true
}

func (s *slot) wait(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case o := <-s.ch:
		return o.text, o.err
	}
}
