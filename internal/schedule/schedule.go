// Package schedule coalesces tab lifecycle events into debounced
// per-window reorganization passes.
//
// At most one pass runs at a time across all windows. A debounce timer that
// expires while a pass is running is dropped, not retried; the running pass
// sees the current tabs anyway and the next qualifying event schedules again.
package schedule

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lotas/tabheinzel/internal/applog"
	"github.com/lotas/tabheinzel/internal/types"
)

// DefaultDebounce is the quiet period after the last qualifying event.
const DefaultDebounce = 2 * time.Second

const allWindows = -1

// State is a window's scheduling state.
type State int

const (
	Idle State = iota
	Scheduled
	Running
)

func (s State) String() string {
	switch s {
	case Scheduled:
		return "scheduled"
	case Running:
		return "running"
	default:
		return "idle"
	}
}

// WindowFunc runs a pass over one window.
type WindowFunc func(ctx context.Context, windowID int) error

// AllFunc runs a manual pass over every window.
type AllFunc func(ctx context.Context) error

type pending struct {
	timer *time.Timer
	gen   uint64
}

type fire struct {
	windowID int
	gen      uint64
}

// Scheduler owns the per-window debounce timers and the busy flag.
type Scheduler struct {
	debounce time.Duration
	window   WindowFunc
	all      AllFunc

	busy   atomic.Bool
	events chan types.Event
	fires  chan fire
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	mu      sync.Mutex
	timers  map[int]*pending
	gen     uint64
	running int
}

// New returns a Scheduler. A non-positive debounce uses DefaultDebounce.
func New(window WindowFunc, all AllFunc, debounce time.Duration) *Scheduler {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Scheduler{
		debounce: debounce,
		window:   window,
		all:      all,
		events:   make(chan types.Event, 256),
		fires:    make(chan fire, 16),
		done:     make(chan struct{}),
		timers:   make(map[int]*pending),
	}
}

// Submit queues an event for the Run loop. It never blocks; when the queue
// is full the event is dropped and logged.
func (s *Scheduler) Submit(ev types.Event) {
	select {
	case s.events <- ev:
	default:
		applog.Warn("sched.queue_full", "event", string(ev.Kind), "window", ev.WindowID)
	}
}

// Run processes events and timer expiries until ctx is done. On return all
// timers are stopped and any running pass has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	defer s.stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-s.events:
			s.handle(ev)
		case f := <-s.fires:
			s.expire(ctx, f)
		}
	}
}

func (s *Scheduler) handle(ev types.Event) {
	switch {
	case ev.Kind == types.EventCreated, ev.NavigationComplete():
		if ev.WindowID <= 0 {
			return
		}
		s.Reschedule(ev.WindowID, s.debounce)
	}
}

// Reschedule (re)starts windowID's timer with delay. A pending timer for
// the window is replaced.
func (s *Scheduler) Reschedule(windowID int, delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.timers[windowID]; ok {
		p.timer.Stop()
	}
	s.gen++
	f := fire{windowID: windowID, gen: s.gen}
	s.timers[windowID] = &pending{
		gen: f.gen,
		timer: time.AfterFunc(delay, func() {
			select {
			case s.fires <- f:
			case <-s.done:
			}
		}),
	}
}

func (s *Scheduler) expire(ctx context.Context, f fire) {
	s.mu.Lock()
	p, ok := s.timers[f.windowID]
	if !ok || p.gen != f.gen {
		// Superseded by a newer event.
		s.mu.Unlock()
		return
	}
	delete(s.timers, f.windowID)
	s.mu.Unlock()

	if !s.acquire(f.windowID) {
		applog.Info("sched.dropped", "window", f.windowID)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release()
		if err := s.window(ctx, f.windowID); err != nil {
			applog.Error("sched.pass", err, "window", f.windowID)
		}
	}()
}

// OrganizeNow runs a pass over every window on the caller's goroutine. It
// returns false without running anything when a pass is already running.
func (s *Scheduler) OrganizeNow(ctx context.Context) (bool, error) {
	if !s.acquire(allWindows) {
		applog.Info("sched.manual_dropped")
		return false, nil
	}
	defer s.release()
	return true, s.all(ctx)
}

func (s *Scheduler) acquire(windowID int) bool {
	if !s.busy.CompareAndSwap(false, true) {
		return false
	}
	s.mu.Lock()
	s.running = windowID
	s.mu.Unlock()
	return true
}

func (s *Scheduler) release() {
	s.mu.Lock()
	s.running = 0
	s.mu.Unlock()
	s.busy.Store(false)
}

// Busy reports whether a pass is running.
func (s *Scheduler) Busy() bool {
	return s.busy.Load()
}

// State returns windowID's scheduling state.
func (s *Scheduler) State(windowID int) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running != 0 && (s.running == windowID || s.running == allWindows) {
		return Running
	}
	if _, ok := s.timers[windowID]; ok {
		return Scheduled
	}
	return Idle
}

func (s *Scheduler) stop() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		for id, p := range s.timers {
			p.timer.Stop()
			delete(s.timers, id)
		}
		s.mu.Unlock()
		s.wg.Wait()
	})
}
