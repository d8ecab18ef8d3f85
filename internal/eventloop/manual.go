package eventloop

import (
	"sort"
	"time"
)

// Manual is a deterministic Scheduler driven by the caller. Time only moves on
// Advance, and queued tasks only run on Drain or Advance. It is not safe for
// concurrent use.
type Manual struct {
	now     time.Duration
	seq     int
	queue   []func()
	timers  []*manualTimer
	holding bool
	spawned []func()
}

type manualTimer struct {
	at       time.Duration
	seq      int
	fn       func()
	canceled bool
}

func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) Post(fn func()) {
	m.queue = append(m.queue, fn)
}

func (m *Manual) After(d time.Duration, fn func()) func() {
	if d < 0 {
		d = 0
	}
	m.seq++
	t := &manualTimer{at: m.now + d, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return func() { t.canceled = true }
}

// Spawn queues fn like a task, or holds it while HoldSpawns(true) is in effect.
func (m *Manual) Spawn(fn func()) {
	if m.holding {
		m.spawned = append(m.spawned, fn)
		return
	}
	m.queue = append(m.queue, fn)
}

// HoldSpawns parks spawned work so a test can deliver responses late.
func (m *Manual) HoldSpawns(hold bool) {
	m.holding = hold
}

// ReleaseSpawned runs parked work in spawn order, then drains.
func (m *Manual) ReleaseSpawned() {
	parked := m.spawned
	m.spawned = nil
	m.queue = append(m.queue, parked...)
	m.Drain()
}

// Pending returns the number of parked spawns.
func (m *Manual) Pending() int {
	return len(m.spawned)
}

// Drain runs queued tasks, including ones they queue, until none are left.
func (m *Manual) Drain() {
	for len(m.queue) > 0 {
		task := m.queue[0]
		m.queue = m.queue[1:]
		task()
	}
}

// Advance moves virtual time forward by d, firing due timers in order.
func (m *Manual) Advance(d time.Duration) {
	m.Drain()
	target := m.now + d
	for {
		t := m.nextTimer(target)
		if t == nil {
			break
		}
		m.now = t.at
		if !t.canceled {
			t.canceled = true
			t.fn()
		}
		m.Drain()
	}
	m.now = target
}

// Now returns the virtual time elapsed since creation.
func (m *Manual) Now() time.Duration {
	return m.now
}

// ActiveTimers counts timers that have neither fired nor been canceled.
func (m *Manual) ActiveTimers() int {
	n := 0
	for _, t := range m.timers {
		if !t.canceled {
			n++
		}
	}
	return n
}

func (m *Manual) nextTimer(limit time.Duration) *manualTimer {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.canceled {
			live = append(live, t)
		}
	}
	m.timers = live
	if len(live) == 0 {
		return nil
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].at != live[j].at {
			return live[i].at < live[j].at
		}
		return live[i].seq < live[j].seq
	})
	if live[0].at > limit {
		return nil
	}
	return live[0]
}
