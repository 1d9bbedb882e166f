// Package reactor provides the host's timer-driven event loop. Periodic
// work such as state broadcasts and servo move polling runs as timers on
// one dispatch goroutine, so handlers never need their own locking
// against each other.
package reactor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Timer wake time sentinels, in seconds on the reactor's monotonic clock.
const (
	Now   = 0.0
	Never = 9999999999999999.0
)

// TimerCallback runs when a timer fires. It receives the event time and
// returns the next wake time, or Never to stop firing.
type TimerCallback func(eventtime float64) float64

// Timer is a registered periodic or one-shot timer.
type Timer struct {
	mu       sync.Mutex
	id       uint64
	callback TimerCallback
	waketime float64
	running  bool
}

// Waketime returns the timer's current wake time.
func (t *Timer) Waketime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.waketime
}

// Completion carries the result of an asynchronous operation to a
// waiter.
type Completion struct {
	reactor *Reactor
	result  interface{}
	done    chan struct{}
	once    sync.Once
}

// Test reports whether the completion already has a result.
func (c *Completion) Test() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// Complete sets the result and wakes any waiters. Only the first call
// takes effect.
func (c *Completion) Complete(result interface{}) {
	c.once.Do(func() {
		c.result = result
		close(c.done)
	})
}

// Wait blocks until the completion is done, the timeout expires, or the
// reactor shuts down. On timeout or shutdown it returns timeoutResult.
func (c *Completion) Wait(timeout time.Duration, timeoutResult interface{}) interface{} {
	select {
	case <-c.done:
		return c.result
	case <-time.After(timeout):
		return timeoutResult
	case <-c.reactor.ctx.Done():
		return timeoutResult
	}
}

// Reactor dispatches timers and cross-goroutine callbacks on a single
// goroutine.
type Reactor struct {
	mu          sync.Mutex
	timers      []*Timer
	nextTimerID uint64
	nextWake    float64

	asyncQueue chan func()

	ctx    context.Context
	cancel context.CancelFunc

	running atomic.Bool
	wg      sync.WaitGroup

	startTime time.Time
}

// New creates a Reactor. Call Run to start dispatching.
func New() *Reactor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Reactor{
		nextWake:   Never,
		asyncQueue: make(chan func(), 256),
		ctx:        ctx,
		cancel:     cancel,
		startTime:  time.Now(),
	}
}

// Monotonic returns seconds elapsed on the reactor's clock. All timer
// wake times are expressed on this clock.
func (r *Reactor) Monotonic() float64 {
	return time.Since(r.startTime).Seconds()
}

// RegisterTimer adds a timer that first fires at waketime.
func (r *Reactor) RegisterTimer(callback TimerCallback, waketime float64) *Timer {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextTimerID++
	timer := &Timer{
		id:       r.nextTimerID,
		callback: callback,
		waketime: waketime,
	}
	r.timers = append(r.timers, timer)
	if waketime < r.nextWake {
		r.nextWake = waketime
	}
	return timer
}

// UnregisterTimer removes a timer. A timer callback may instead return
// Never to stop itself.
func (r *Reactor) UnregisterTimer(timer *Timer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	timer.mu.Lock()
	timer.waketime = Never
	timer.mu.Unlock()

	for i, t := range r.timers {
		if t.id == timer.id {
			r.timers = append(r.timers[:i], r.timers[i+1:]...)
			break
		}
	}
}

// UpdateTimer reschedules a timer. If the timer's callback is currently
// running, the callback's return value wins and the update is dropped.
func (r *Reactor) UpdateTimer(timer *Timer, waketime float64) {
	timer.mu.Lock()
	if timer.running {
		timer.mu.Unlock()
		return
	}
	timer.waketime = waketime
	timer.mu.Unlock()

	r.mu.Lock()
	if waketime < r.nextWake {
		r.nextWake = waketime
	}
	r.mu.Unlock()
}

// Completion creates a Completion bound to this reactor's lifetime.
func (r *Reactor) Completion() *Completion {
	return &Completion{
		reactor: r,
		done:    make(chan struct{}),
	}
}

// RegisterCallback schedules a one-shot callback at waketime and returns
// a Completion holding its result.
func (r *Reactor) RegisterCallback(callback func(eventtime float64) interface{}, waketime float64) *Completion {
	completion := r.Completion()
	r.RegisterTimer(func(eventtime float64) float64 {
		completion.Complete(callback(eventtime))
		return Never
	}, waketime)
	return completion
}

// RegisterAsyncCallback schedules a callback from another goroutine. The
// callback runs on the dispatch goroutine. If the queue is full the
// callback is dropped and the completion resolves to nil.
func (r *Reactor) RegisterAsyncCallback(callback func(eventtime float64) interface{}) *Completion {
	completion := r.Completion()
	select {
	case r.asyncQueue <- func() {
		completion.Complete(callback(r.Monotonic()))
	}:
	default:
		completion.Complete(nil)
	}
	return completion
}

// Pause sleeps until waketime or reactor shutdown and returns the
// current event time.
func (r *Reactor) Pause(waketime float64) float64 {
	now := r.Monotonic()
	if waketime <= now {
		return now
	}
	if waketime >= Never {
		<-r.ctx.Done()
		return r.Monotonic()
	}
	select {
	case <-time.After(time.Duration((waketime - now) * float64(time.Second))):
	case <-r.ctx.Done():
	}
	return r.Monotonic()
}

// Run starts the dispatch loop on its own goroutine.
func (r *Reactor) Run() {
	if r.running.Swap(true) {
		return
	}
	r.wg.Add(1)
	go r.dispatchLoop()
}

// End signals the dispatch loop to stop.
func (r *Reactor) End() {
	r.running.Store(false)
	r.cancel()
}

// Wait blocks until the dispatch loop has exited.
func (r *Reactor) Wait() {
	r.wg.Wait()
}

func (r *Reactor) dispatchLoop() {
	defer r.wg.Done()

	for r.running.Load() {
		r.drainAsyncQueue()

		delay := r.checkTimers(r.Monotonic())
		if delay <= 0 {
			continue
		}
		// Cap the sleep so newly registered timers are noticed promptly.
		d := time.Duration(delay * float64(time.Second))
		if d > time.Second {
			d = time.Second
		}
		select {
		case <-time.After(d):
		case fn := <-r.asyncQueue:
			fn()
		case <-r.ctx.Done():
			return
		}
	}
}

func (r *Reactor) drainAsyncQueue() {
	for {
		select {
		case fn := <-r.asyncQueue:
			fn()
		default:
			return
		}
	}
}

// checkTimers fires every due timer and returns seconds until the next
// wake time.
func (r *Reactor) checkTimers(eventtime float64) float64 {
	r.mu.Lock()
	if eventtime < r.nextWake {
		delay := r.nextWake - eventtime
		r.mu.Unlock()
		return delay
	}
	timers := make([]*Timer, len(r.timers))
	copy(timers, r.timers)
	r.nextWake = Never
	r.mu.Unlock()

	for _, timer := range timers {
		timer.mu.Lock()
		waketime := timer.waketime
		if eventtime >= waketime {
			timer.waketime = Never
			timer.running = true
			timer.mu.Unlock()

			next := timer.callback(eventtime)

			timer.mu.Lock()
			timer.running = false
			if next < timer.waketime {
				timer.waketime = next
			}
		}
		waketime = timer.waketime
		timer.mu.Unlock()

		r.mu.Lock()
		if waketime < r.nextWake {
			r.nextWake = waketime
		}
		r.mu.Unlock()
	}

	r.mu.Lock()
	delay := r.nextWake - eventtime
	r.mu.Unlock()
	if delay < 0 {
		delay = 0
	}
	return delay
}
