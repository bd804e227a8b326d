// Package link implements AccessInterface: the asynchronous, bidirectional
// message pipe between a parent node and one child node in the scan-network
// tree (spec §4.1). Each Interface owns two unbounded FIFOs — one carrying
// requests upward from the child (client) to the parent (host), one
// carrying responses back down to the child — each drained by its own
// goroutine into a single registered callback.
package link

import (
	"sync"

	"github.com/bradfordvt/P2654Model/pkg/rvf"
)

// Stop is a shared cancellation token. All Interfaces in a topology share
// one Stop so that tearing down the tree terminates every dispatch
// goroutine in one step, mirroring the Python source's process-wide
// AccessInterface.stop_event.
type Stop struct {
	mu        sync.Mutex
	triggered bool
	members   []*Interface
}

// NewStop creates a fresh, un-triggered Stop token.
func NewStop() *Stop {
	return &Stop{}
}

// register attaches an Interface so Trigger can close its queues. If the
// token has already fired, the Interface is closed immediately.
func (s *Stop) register(i *Interface) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.triggered {
		i.Close()
		return
	}
	s.members = append(s.members, i)
}

// Trigger signals every Interface sharing this token to stop, unblocking
// any goroutine parked in a queue wait. Safe to call more than once.
func (s *Stop) Trigger() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.triggered {
		return
	}
	s.triggered = true
	for _, i := range s.members {
		i.Close()
	}
}

// queue is an unbounded FIFO of frames, built on a slice guarded by a
// mutex/cond rather than a buffered channel, since the interface contract
// requires request/response to never block the caller regardless of queue
// depth.
type queue struct {
	mu    sync.Mutex
	cond  *sync.Cond
	items []rvf.Frame
	closed bool
}

func newQueue() *queue {
	q := &queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue) push(f rvf.Frame) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.items = append(q.items, f)
	q.cond.Signal()
}

// pop blocks until an item is available or the queue is closed. ok is false
// only when the queue was closed and drained.
func (q *queue) pop() (f rvf.Frame, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return rvf.Frame{}, false
	}
	f = q.items[0]
	q.items = q.items[1:]
	return f, true
}

func (q *queue) close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	q.cond.Broadcast()
}

// Interface is one AccessInterface edge between a parent (host side) and a
// child (client side).
type Interface struct {
	stop *Stop

	reqQ  *queue
	respQ *queue

	reqCB  func(rvf.Frame)
	respCB func(rvf.Frame)

	started bool
}

// New creates an Interface sharing the given Stop token. Request/Response
// callbacks must be registered with SetRequestCallback/SetResponseCallback
// before Start is called.
func New(stop *Stop) *Interface {
	i := &Interface{
		stop:  stop,
		reqQ:  newQueue(),
		respQ: newQueue(),
	}
	stop.register(i)
	return i
}

// SetRequestCallback registers the handler invoked for every frame sent via
// Request — the parent/host side's host-callback dispatcher.
func (i *Interface) SetRequestCallback(cb func(rvf.Frame)) {
	i.reqCB = cb
}

// SetResponseCallback registers the handler invoked for every frame sent
// via Response — the child/client side's resp_handler.
func (i *Interface) SetResponseCallback(cb func(rvf.Frame)) {
	i.respCB = cb
}

// Start launches the two dispatch goroutines. Safe to call once per
// Interface; subsequent calls are no-ops.
func (i *Interface) Start() {
	if i.started {
		return
	}
	i.started = true
	go i.dispatch(i.reqQ, func() func(rvf.Frame) { return i.reqCB })
	go i.dispatch(i.respQ, func() func(rvf.Frame) { return i.respCB })
}

// dispatch drains q until it is closed (directly, or transitively via the
// shared Stop token firing), invoking whatever callback is registered at
// the time each frame is popped.
func (i *Interface) dispatch(q *queue, cb func() func(rvf.Frame)) {
	for {
		f, ok := q.pop()
		if !ok {
			return
		}
		if handler := cb(); handler != nil {
			handler(f)
		}
	}
}

// Request enqueues a frame travelling from client to host (upward). It
// never blocks regardless of queue depth.
func (i *Interface) Request(f rvf.Frame) {
	i.reqQ.push(f)
}

// Response enqueues a frame travelling from host to client (downward). It
// never blocks regardless of queue depth.
func (i *Interface) Response(f rvf.Frame) {
	i.respQ.push(f)
}

// Close drains and stops this Interface's two dispatch goroutines. Called
// when the shared Stop token fires; also safe to call directly to retire a
// single edge.
func (i *Interface) Close() {
	i.reqQ.close()
	i.respQ.close()
}
