package playback

import "sync"

// Subscription delivers every published [PlayerState] in order. Snapshots are buffered without
// bound, so a slow reader never stalls the engine and never misses a transition.
type Subscription struct {
	out  chan PlayerState
	wake chan struct{}
	done chan struct{}
	once sync.Once

	mu      sync.Mutex
	pending []PlayerState
}

func newSubscription() *Subscription {
	s := &Subscription{
		out:  make(chan PlayerState),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go s.pump()
	return s
}

// States returns the snapshot channel. It is closed after Close or when the engine shuts down.
func (s *Subscription) States() <-chan PlayerState { return s.out }

// Close stops delivery. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscription) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Subscription) push(state PlayerState) {
	s.mu.Lock()
	s.pending = append(s.pending, state)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		next := s.pending[0]
		s.pending[0] = PlayerState{}
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}
