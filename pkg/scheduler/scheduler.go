// Package scheduler drives the apply cycle: a worker goroutine that wakes
// on demand and keeps calling the tree's root Apply until no leaf is left
// pending, plus the path-based Write/WriteRead/Read/Apply façade spec §6
// exposes to callers. Grounded on original_source/scheduler/Scheduler.py.
package scheduler

import (
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/bradfordvt/P2654Model/pkg/assembly"
	"github.com/bradfordvt/P2654Model/pkg/bitvector"
	"github.com/bradfordvt/P2654Model/pkg/modelerr"
	"github.com/bradfordvt/P2654Model/pkg/topology"
)

// discardLogger is the default Scheduler.Logger: quiet unless a caller opts
// in, matching pkg/topology's Logger convention.
var discardLogger = log.New(io.Discard, "", 0)

// Scheduler owns a Topology and the cycle-driving worker goroutine. It
// implements assembly.PendingTracker so every node constructed through its
// Topology reports leaf activity back here (spec §9 "Globals").
type Scheduler struct {
	top *topology.Topology

	watchdog time.Duration // 0 disables the watchdog (source's fullpending_option)

	pendingLeaves int32

	applyStart chan struct{}
	applyEnd   chan error
	stopCh     chan struct{}
	stopped    chan struct{}

	started int32

	// Logger receives one line per apply cycle start/end and watchdog
	// timeout, if set. Defaults to a discarding logger.
	Logger *log.Logger
}

// New constructs a Scheduler with no topology attached yet. A caller needs
// the Scheduler itself (it implements assembly.PendingTracker) before it
// can build the Topology that will use it, so construction is two steps:
// New, then Attach once topology.New(sched, stop) has been called.
// watchdog bounds how long a single cycle wait may run before giving up on
// convergence; 0 means wait indefinitely, matching the source's
// watchdog_us==0 case.
func New(watchdog time.Duration) *Scheduler {
	return &Scheduler{
		watchdog:   watchdog,
		applyStart: make(chan struct{}, 1),
		applyEnd:   make(chan error, 1),
		stopCh:     make(chan struct{}),
		stopped:    make(chan struct{}),
		Logger:     discardLogger,
	}
}

// Attach binds top as the tree this Scheduler drives. Must be called
// before Start.
func (s *Scheduler) Attach(top *topology.Topology) {
	s.top = top
}

// SetLogger installs l as the Scheduler's diagnostic logger. Passing nil
// restores the default discarding logger.
func (s *Scheduler) SetLogger(l *log.Logger) {
	if l == nil {
		l = discardLogger
	}
	s.Logger = l
}

func (s *Scheduler) logf(format string, args ...any) {
	if s.Logger == nil {
		return
	}
	s.Logger.Output(2, fmt.Sprintf(format, args...))
}

// Topology returns the Scheduler's underlying tree.
func (s *Scheduler) Topology() *topology.Topology {
	return s.top
}

// MarkPending implements assembly.PendingTracker.
func (s *Scheduler) MarkPending() { atomic.AddInt32(&s.pendingLeaves, 1) }

// ClearPending implements assembly.PendingTracker, clamped at zero so an
// over-eager clear (a response arriving for an already-cleared leaf)
// never drives the counter negative (spec §7 accounting tolerance).
func (s *Scheduler) ClearPending() {
	for {
		cur := atomic.LoadInt32(&s.pendingLeaves)
		if cur <= 0 {
			atomic.StoreInt32(&s.pendingLeaves, 0)
			return
		}
		if atomic.CompareAndSwapInt32(&s.pendingLeaves, cur, cur-1) {
			return
		}
	}
}

// Pending reports the current outstanding-leaf count.
func (s *Scheduler) Pending() int32 { return atomic.LoadInt32(&s.pendingLeaves) }

// Start launches the worker goroutine. Safe to call once.
func (s *Scheduler) Start() {
	if !atomic.CompareAndSwapInt32(&s.started, 0, 1) {
		return
	}
	go s.run()
}

// Stop signals the worker goroutine to exit and waits for it to do so.
func (s *Scheduler) Stop() {
	if !atomic.CompareAndSwapInt32(&s.started, 1, 2) {
		return
	}
	close(s.stopCh)
	select {
	case s.applyStart <- struct{}{}:
	default:
	}
	<-s.stopped
}

func (s *Scheduler) run() {
	defer close(s.stopped)
	root := s.top.Root()
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.applyStart:
		}
		select {
		case <-s.stopCh:
			return
		default:
		}
		s.logf("scheduler: cycle start, pending=%d", atomic.LoadInt32(&s.pendingLeaves))
		var cycleErr error
		for atomic.LoadInt32(&s.pendingLeaves) > 0 {
			if err := root.Apply(); err != nil {
				cycleErr = err
				// A failed cycle aborts rather than carrying stale pending
				// state into the next cycle (spec §7: a failed cycle
				// aborts and is surfaced, not silently retried).
				atomic.StoreInt32(&s.pendingLeaves, 0)
				break
			}
		}
		if cycleErr != nil {
			s.logf("scheduler: cycle aborted: %v", cycleErr)
		}
		s.logf("scheduler: cycle end, pending=%d", atomic.LoadInt32(&s.pendingLeaves))
		select {
		case s.applyEnd <- cycleErr:
		default:
		}
	}
}

// Apply requests one cycle and blocks until the worker reports the tree
// has drained (or the watchdog, if set, elapses first), returning whatever
// error aborted the cycle, if any.
func (s *Scheduler) Apply() error {
	select {
	case s.applyStart <- struct{}{}:
	default:
	}
	if s.watchdog > 0 {
		select {
		case err := <-s.applyEnd:
			return err
		case <-time.After(s.watchdog):
			s.logf("scheduler: apply cycle watchdog expired after %s", s.watchdog)
			return modelerr.New("scheduler: apply cycle did not converge within watchdog %s", s.watchdog)
		}
	}
	return <-s.applyEnd
}

func (s *Scheduler) leaf(path string) (*assembly.Leaf, error) {
	uid, err := s.top.GetAssemblyUID(path)
	if err != nil {
		return nil, modelerr.New("scheduler: resolving %q: %v", path, err)
	}
	n, ok := s.top.GetAssembly(uid)
	if !ok {
		return nil, modelerr.New("scheduler: uid %d not registered", uid)
	}
	leaf, ok := n.(*assembly.Leaf)
	if !ok {
		return nil, modelerr.New("scheduler: %q does not name a leaf register", path)
	}
	return leaf, nil
}

// Write stages a plain write on the register named by path (spec §6).
func (s *Scheduler) Write(path string, value bitvector.Value) error {
	leaf, err := s.leaf(path)
	if err != nil {
		return err
	}
	return leaf.Write(value)
}

// WriteRead stages a write-with-capture on the register named by path.
func (s *Scheduler) WriteRead(path string, value bitvector.Value) error {
	leaf, err := s.leaf(path)
	if err != nil {
		return err
	}
	return leaf.WriteRead(value)
}

// Read returns the most recently captured value of the register named by
// path.
func (s *Scheduler) Read(path string) (bitvector.Value, error) {
	leaf, err := s.leaf(path)
	if err != nil {
		return bitvector.Value{}, err
	}
	return leaf.Read()
}
