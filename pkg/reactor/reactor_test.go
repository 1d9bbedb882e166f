package reactor

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestMonotonic(t *testing.T) {
	r := New()
	defer r.End()

	t1 := r.Monotonic()
	time.Sleep(10 * time.Millisecond)
	t2 := r.Monotonic()

	if t2 <= t1 {
		t.Errorf("monotonic time not increasing: %f <= %f", t2, t1)
	}
}

func TestTimerOneShot(t *testing.T) {
	r := New()

	var called atomic.Int32
	r.RegisterTimer(func(eventtime float64) float64 {
		called.Add(1)
		return Never
	}, Now)

	r.Run()
	time.Sleep(50 * time.Millisecond)
	r.End()
	r.Wait()

	if called.Load() != 1 {
		t.Errorf("timer fired %d times, expected 1", called.Load())
	}
}

func TestTimerRepeat(t *testing.T) {
	r := New()

	var called atomic.Int32
	r.RegisterTimer(func(eventtime float64) float64 {
		if called.Add(1) < 3 {
			return eventtime + 0.01
		}
		return Never
	}, Now)

	r.Run()
	time.Sleep(100 * time.Millisecond)
	r.End()
	r.Wait()

	if called.Load() < 3 {
		t.Errorf("timer fired %d times, expected at least 3", called.Load())
	}
}

func TestUnregisterTimer(t *testing.T) {
	r := New()

	var called atomic.Int32
	timer := r.RegisterTimer(func(eventtime float64) float64 {
		called.Add(1)
		return Never
	}, r.Monotonic()+0.05)
	r.UnregisterTimer(timer)

	r.Run()
	time.Sleep(100 * time.Millisecond)
	r.End()
	r.Wait()

	if called.Load() != 0 {
		t.Errorf("unregistered timer fired %d times", called.Load())
	}
}

func TestUpdateTimer(t *testing.T) {
	r := New()

	var called atomic.Int32
	// Parked far in the future, then pulled in.
	timer := r.RegisterTimer(func(eventtime float64) float64 {
		called.Add(1)
		return Never
	}, Never)
	r.UpdateTimer(timer, Now)

	r.Run()
	time.Sleep(50 * time.Millisecond)
	r.End()
	r.Wait()

	if called.Load() != 1 {
		t.Errorf("rescheduled timer fired %d times, expected 1", called.Load())
	}
}

func TestCompletion(t *testing.T) {
	r := New()
	defer r.End()

	comp := r.Completion()
	if comp.Test() {
		t.Error("completion should not be done yet")
	}

	comp.Complete("result")
	if !comp.Test() {
		t.Error("completion should be done")
	}
	if got := comp.Wait(time.Second, nil); got != "result" {
		t.Errorf("Wait = %v, expected result", got)
	}

	// Later completes are ignored.
	comp.Complete("other")
	if got := comp.Wait(time.Second, nil); got != "result" {
		t.Errorf("Wait after double complete = %v", got)
	}
}

func TestCompletionWaitTimeout(t *testing.T) {
	r := New()
	defer r.End()

	comp := r.Completion()
	start := time.Now()
	result := comp.Wait(50*time.Millisecond, "timeout")
	elapsed := time.Since(start)

	if result != "timeout" {
		t.Errorf("Wait = %v, expected timeout", result)
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("Wait returned too early: %v", elapsed)
	}
}

func TestRegisterCallback(t *testing.T) {
	r := New()

	completion := r.RegisterCallback(func(eventtime float64) interface{} {
		return "done"
	}, Now)

	r.Run()
	result := completion.Wait(time.Second, nil)
	r.End()
	r.Wait()

	if result != "done" {
		t.Errorf("callback result = %v, expected done", result)
	}
}

func TestRegisterAsyncCallback(t *testing.T) {
	r := New()
	r.Run()

	completion := r.RegisterAsyncCallback(func(eventtime float64) interface{} {
		return 42
	})
	result := completion.Wait(time.Second, nil)

	r.End()
	r.Wait()

	if result != 42 {
		t.Errorf("async callback result = %v, expected 42", result)
	}
}

func TestPause(t *testing.T) {
	r := New()
	defer r.End()

	start := r.Monotonic()
	result := r.Pause(start + 0.05)
	if result < start+0.04 {
		t.Errorf("Pause returned too early: %f", result-start)
	}

	// A wake time in the past returns immediately.
	now := r.Monotonic()
	if got := r.Pause(now - 1); got < now {
		t.Errorf("Pause(past) = %f, expected >= %f", got, now)
	}
}
