package monitor

import (
	"sync"

	"github.com/skobkin/nputop-web/internal/tab"
)

type subscriber struct {
	ch     chan tab.View
	mu     sync.Mutex
	closed bool
}

func newSubscriber() *subscriber {
	return &subscriber{
		ch: make(chan tab.View, 1),
	}
}

func (s *subscriber) channel() <-chan tab.View {
	return s.ch
}

func (s *subscriber) send(view tab.View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- view:
		return
	default:
		// Drop oldest to make room for the new view.
		select {
		case <-s.ch:
		default:
		}
		select {
		case s.ch <- view:
		default:
		}
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	close(s.ch)
	s.closed = true
}
