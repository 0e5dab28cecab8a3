package bus

import (
	"fmt"
	"time"
)

// subscriber is one event consumer with its own FIFO queue and worker.
type subscriber struct {
	id    uint64
	fn    func(Event)
	queue chan Event
	quit  *closeOnce
}

// Subscribe registers fn to receive every event published from now on.
//
// Each subscriber has a bounded queue drained by its own goroutine, so events
// reach fn in the order they were produced and a slow subscriber never
// blocks the read loop or other subscribers. When the queue is full the
// event is dropped and counted in Stats.Dropped. Panics in fn are recovered.
//
// Parameters:
//   - fn: Event handler
//
// Returns:
//   - cancel: Stops delivery to fn; safe to call more than once
func (s *Session) Subscribe(fn func(Event)) (cancel func()) {
	if fn == nil {
		return func() {}
	}

	s.subsMu.Lock()
	s.nextSub++
	sub := &subscriber{
		id:    s.nextSub,
		fn:    fn,
		queue: make(chan Event, s.cfg.QueueSize),
		quit:  newCloseOnce(),
	}
	s.subs[sub.id] = sub
	s.subsMu.Unlock()

	go s.runSubscriber(sub)

	return func() {
		s.subsMu.Lock()
		delete(s.subs, sub.id)
		s.subsMu.Unlock()
		sub.quit.Close()
	}
}

func (s *Session) runSubscriber(sub *subscriber) {
	for {
		select {
		case <-sub.quit.Done():
			return
		case ev := <-sub.queue:
			s.deliver(sub, ev)
		}
	}
}

func (s *Session) deliver(sub *subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			s.log().Error("subscriber panic", "subscriber", sub.id, "error", fmt.Errorf("%v", r))
		}
	}()
	sub.fn(ev)
}

// publish offers ev to every subscriber without blocking. Nothing is queued
// once the session has begun closing.
func (s *Session) publish(ev Event) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()

	if !s.accepting {
		return
	}
	s.offerLocked(ev)
}

// beginClosing moves an open session to Closing, queues that event and stops
// publishing, all under the write lock. A publish in progress finishes first
// and no later one gets through.
func (s *Session) beginClosing() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	if s.state.CompareAndSwap(int32(StateOpen), int32(StateClosing)) {
		s.log().Info("bus session state", "state", StateClosing.String())
		if s.accepting {
			s.offerLocked(EventSessionState{Time: time.Now(), State: StateClosing})
		}
	}
	s.accepting = false
}

// offerLocked queues ev for every subscriber. Callers hold subsMu.
func (s *Session) offerLocked(ev Event) {
	for _, sub := range s.subs {
		select {
		case sub.queue <- ev:
		default:
			s.dropped.Add(1)
			s.log().Warn("subscriber queue full, dropping event", "subscriber", sub.id, "event", fmt.Sprintf("%T", ev))
		}
	}
}

// setAccepting gates publish. Taking the write lock waits out any publish
// already in progress.
func (s *Session) setAccepting(on bool) {
	s.subsMu.Lock()
	s.accepting = on
	s.subsMu.Unlock()
}
