// Package timer implements the TimerController: the tick-dispatch hook
// for elements that need periodic wakeups (rate-limited sources, clock
// drift correction, keepalive emission) while playing.
package timer

import (
	"sync"
	"time"
)

// Tick is the message an element's mailbox receives for each fired
// interval. Deliver is the owning element's responsibility; Controller
// only drives the ticker and hands Tick values to a sink function.
type Tick struct {
	Name     string
	Interval time.Duration
}

// Sink receives fired ticks. Implementations typically post the tick
// onto the owning element's own mailbox rather than acting on it inline,
// since Controller invokes Sink from its own per-timer goroutine.
type Sink func(Tick)

// Controller owns zero or more named interval timers for a single
// element. It is safe for concurrent use: Start/Stop may be called from
// the element's goroutine while ticks arrive on the Sink from timer
// goroutines.
type Controller struct {
	mu      sync.Mutex
	sink    Sink
	timers  map[string]*entry
}

type entry struct {
	ticker *time.Ticker
	stop   chan struct{}
}

// New returns a Controller that delivers every fired tick to sink.
func New(sink Sink) *Controller {
	return &Controller{sink: sink, timers: make(map[string]*entry)}
}

// Start registers (or replaces) a named interval timer. Re-calling Start
// with a name already running stops the previous ticker first.
func (c *Controller) Start(name string, interval time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.timers[name]; ok {
		existing.ticker.Stop()
		close(existing.stop)
	}

	e := &entry{ticker: time.NewTicker(interval), stop: make(chan struct{})}
	c.timers[name] = e

	go func() {
		for {
			select {
			case <-e.ticker.C:
				c.sink(Tick{Name: name, Interval: interval})
			case <-e.stop:
				return
			}
		}
	}()
}

// Stop cancels a single named timer. Stopping an unknown name is a no-op.
func (c *Controller) Stop(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.timers[name]
	if !ok {
		return
	}
	e.ticker.Stop()
	close(e.stop)
	delete(c.timers, name)
}

// StopAll cancels every running timer; called when the owning element's
// service stops. Leaving playing does not stop timers by itself.
func (c *Controller) StopAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for name, e := range c.timers {
		e.ticker.Stop()
		close(e.stop)
		delete(c.timers, name)
	}
}
