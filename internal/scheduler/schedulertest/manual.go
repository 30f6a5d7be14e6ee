// Package schedulertest provides a deterministic ports.Scheduler for tests.
package schedulertest

import (
	"sort"
	"sync"
	"time"

	"github.com/bnema/afkguard/internal/ports"
)

// Manual runs RunNow tasks inline and fires delayed and periodic tasks only
// when Advance moves its clock past their due time. The clock is shared with
// the components under test.
type Manual struct {
	Clock *Clock

	mu     sync.Mutex
	nextID int
	tasks  map[int]*entry
}

type entry struct {
	id       int
	key      string
	due      time.Time
	interval time.Duration
	task     func()
}

var _ ports.Scheduler = (*Manual)(nil)

func NewManual(clock *Clock) *Manual {
	return &Manual{Clock: clock, tasks: map[int]*entry{}}
}

func (m *Manual) RunNow(_ string, task func()) {
	task()
}

func (m *Manual) RunAfter(key string, delay time.Duration, task func()) ports.CancelFunc {
	return m.add(key, delay, 0, task)
}

func (m *Manual) RunEvery(key string, interval time.Duration, task func()) ports.CancelFunc {
	return m.add(key, interval, interval, task)
}

// Pending reports how many timers are still registered.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tasks)
}

// Advance moves the clock forward by d, firing due timers in order.
func (m *Manual) Advance(d time.Duration) {
	target := m.Clock.Now().Add(d)

	for {
		m.mu.Lock()
		next := m.nextDue(target)
		if next == nil {
			m.mu.Unlock()
			m.Clock.Set(target)
			return
		}
		m.Clock.Set(next.due)
		if next.interval > 0 {
			next.due = next.due.Add(next.interval)
		} else {
			delete(m.tasks, next.id)
		}
		task := next.task
		m.mu.Unlock()

		task()
	}
}

func (m *Manual) add(key string, delay, interval time.Duration, task func()) ports.CancelFunc {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	id := m.nextID
	m.tasks[id] = &entry{id: id, key: key, due: m.Clock.Now().Add(delay), interval: interval, task: task}

	return func() {
		m.mu.Lock()
		delete(m.tasks, id)
		m.mu.Unlock()
	}
}

func (m *Manual) nextDue(limit time.Time) *entry {
	due := make([]*entry, 0, len(m.tasks))
	for _, e := range m.tasks {
		if !e.due.After(limit) {
			due = append(due, e)
		}
	}
	if len(due) == 0 {
		return nil
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].due.Equal(due[j].due) {
			return due[i].id < due[j].id
		}
		return due[i].due.Before(due[j].due)
	})
	return due[0]
}
