// Package sim provides the single-threaded, virtual-clock event loop every node runs on.
package sim

import (
	"context"
	"time"

	"github.com/emirpasic/gods/trees/binaryheap"
)

// Clock is the read-only view of virtual time.
type Clock interface {
	Now() time.Duration
}

// Timer schedules callbacks on the virtual clock.
type Timer interface {
	Clock
	ScheduleAfter(delay time.Duration, callback func())
}

type event struct {
	at       time.Duration
	seq      uint64
	callback func()
}

// Scheduler is an event queue ordered by deadline. Events with equal deadlines run in
// the order they were scheduled. Callbacks never run concurrently.
type Scheduler struct {
	now     time.Duration
	seq     uint64
	queue   *binaryheap.Heap
	stopped bool
}

func NewScheduler() *Scheduler {
	return &Scheduler{
		queue: binaryheap.NewWith(func(a, b interface{}) int {
			ea, eb := a.(*event), b.(*event)
			switch {
			case ea.at < eb.at:
				return -1
			case ea.at > eb.at:
				return 1
			case ea.seq < eb.seq:
				return -1
			case ea.seq > eb.seq:
				return 1
			default:
				return 0
			}
		}),
	}
}

// Now returns the virtual time elapsed since the start of the run.
func (s *Scheduler) Now() time.Duration {
	return s.now
}

// ScheduleAfter runs callback once the virtual clock has advanced by delay.
// Negative delays are treated as zero.
func (s *Scheduler) ScheduleAfter(delay time.Duration, callback func()) {
	if delay < 0 {
		delay = 0
	}
	s.seq++
	s.queue.Push(&event{at: s.now + delay, seq: s.seq, callback: callback})
}

// Pending returns the number of queued events.
func (s *Scheduler) Pending() int {
	return s.queue.Size()
}

// Stop makes Run return after the current callback.
func (s *Scheduler) Stop() {
	s.stopped = true
}

// Run executes events in deadline order until the queue drains, the next event lies
// beyond until (zero means no limit), Stop is called, or ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context, until time.Duration) error {
	s.stopped = false
	for !s.stopped {
		if err := ctx.Err(); err != nil {
			return err
		}
		top, ok := s.queue.Peek()
		if !ok {
			return nil
		}
		ev := top.(*event)
		if until > 0 && ev.at > until {
			s.now = until
			return nil
		}
		s.queue.Pop()
		s.now = ev.at
		ev.callback()
	}
	return nil
}
