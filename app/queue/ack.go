package queue

import "sync"

// ackSequencer releases acknowledgements in the order messages arrived.
// MQTT 3.1.1 requires PUBACKs to follow the order of the PUBLISH packets,
// while rejections and sharded workers finish out of order.
type ackSequencer struct {
	mu      sync.Mutex
	issued  uint64
	next    uint64
	pending map[uint64]func()
}

func newAckSequencer() *ackSequencer {
	return &ackSequencer{pending: make(map[uint64]func())}
}

// track reserves the next slot for ack and returns the callback that marks
// it complete. Calling the callback more than once has no effect.
func (s *ackSequencer) track(ack func()) func() {
	s.mu.Lock()
	seq := s.issued
	s.issued++
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { s.complete(seq, ack) })
	}
}

// complete records seq and runs every ack that is now contiguous with the
// last released one. Acks run under the lock so concurrent completions
// cannot interleave their releases.
func (s *ackSequencer) complete(seq uint64, ack func()) {
	if ack == nil {
		ack = func() {}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[seq] = ack
	for {
		fn, ok := s.pending[s.next]
		if !ok {
			return
		}
		delete(s.pending, s.next)
		s.next++
		fn()
	}
}

// outstanding reports how many tracked acks have not been released yet.
func (s *ackSequencer) outstanding() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.issued - s.next)
}
