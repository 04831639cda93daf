// Package proxy forwards spike count frames from one upstream producer to any
// number of plotters.
package proxy

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"spikeplot.dev/spikeplot/common"
	"spikeplot.dev/spikeplot/wire"
)

// ErrSubscriberClosed is returned by Next once the hub dropped a subscriber,
// either because it was unsubscribed or because the producer went away.
var ErrSubscriberClosed = errors.New("subscriber closed")

// Hub fans frames out to subscribers. Each subscriber has a bounded queue;
// when it is full the oldest frame is dropped.
type Hub struct {
	m sync.Mutex
	// +checklocks:m
	subs map[*Subscriber]struct{}

	queue int

	frames    atomic.Uint64
	dropped   atomic.Uint64
	connected atomic.Bool
}

// NewHub returns a Hub whose subscribers buffer up to queue frames.
func NewHub(queue int) *Hub {
	if queue < 1 {
		queue = 1
	}
	return &Hub{
		subs:  make(map[*Subscriber]struct{}),
		queue: queue,
	}
}

// Subscriber receives the counts at a fixed set of frame positions.
type Subscriber struct {
	indices []int

	m sync.Mutex
	// +checklocks:m
	ring *common.Ring[[]byte]
	// +checklocks:m
	closed bool

	notify chan struct{}
	done   chan struct{}
	once   sync.Once

	dropped atomic.Uint64
}

// Subscribe registers a subscriber for the given frame positions.
func (h *Hub) Subscribe(indices []int) *Subscriber {
	s := &Subscriber{
		indices: indices,
		ring:    common.NewRing[[]byte](h.queue),
		notify:  make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	h.m.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.m.Unlock()
	logrus.Debugf("proxy: subscriber added, %d active", n)
	return s
}

// Unsubscribe removes s and wakes any pending Next.
func (h *Hub) Unsubscribe(s *Subscriber) {
	h.m.Lock()
	delete(h.subs, s)
	n := len(h.subs)
	h.m.Unlock()
	s.close()
	logrus.Debugf("proxy: subscriber removed, %d active", n)
}

// Publish delivers a full frame to every subscriber, projected onto the
// positions each one asked for.
func (h *Hub) Publish(frame []byte) {
	h.frames.Add(1)
	h.m.Lock()
	defer h.m.Unlock()
	for s := range h.subs {
		if s.push(wire.Project(frame, s.indices)) {
			h.dropped.Add(1)
		}
	}
}

// CloseAll drops every subscriber. Their connections observe the end of
// stream the same way they would if they were attached to the producer.
func (h *Hub) CloseAll() {
	h.m.Lock()
	subs := h.subs
	h.subs = make(map[*Subscriber]struct{})
	h.m.Unlock()
	for s := range subs {
		s.close()
	}
	if len(subs) > 0 {
		logrus.Infof("proxy: disconnected %d subscribers", len(subs))
	}
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.m.Lock()
	defer h.m.Unlock()
	return len(h.subs)
}

// Frames returns the number of frames published so far.
func (h *Hub) Frames() uint64 {
	return h.frames.Load()
}

// Dropped returns the number of frames discarded because a subscriber fell
// behind.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// SetConnected records whether a producer is attached.
func (h *Hub) SetConnected(c bool) {
	h.connected.Store(c)
}

// Connected reports whether a producer is attached.
func (h *Hub) Connected() bool {
	return h.connected.Load()
}

func (s *Subscriber) push(frame []byte) (dropped bool) {
	s.m.Lock()
	if s.closed {
		s.m.Unlock()
		return false
	}
	dropped = s.ring.Push(frame)
	s.m.Unlock()
	if dropped {
		s.dropped.Add(1)
	}
	select {
	case s.notify <- struct{}{}:
	default:
	}
	return dropped
}

func (s *Subscriber) close() {
	s.once.Do(func() {
		s.m.Lock()
		s.closed = true
		s.m.Unlock()
		close(s.done)
	})
}

// Indices returns the frame positions the subscriber receives.
func (s *Subscriber) Indices() []int {
	return s.indices
}

// Dropped returns how many frames this subscriber lost to a full queue.
func (s *Subscriber) Dropped() uint64 {
	return s.dropped.Load()
}

// Next blocks until a frame is queued, the subscriber is closed, or ctx is
// done. Queued frames are discarded once the subscriber is closed.
func (s *Subscriber) Next(ctx context.Context) ([]byte, error) {
	for {
		s.m.Lock()
		if s.closed {
			s.m.Unlock()
			return nil, ErrSubscriberClosed
		}
		frame, ok := s.ring.Pop()
		s.m.Unlock()
		if ok {
			return frame, nil
		}
		select {
		case <-s.notify:
		case <-s.done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
