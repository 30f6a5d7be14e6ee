// Package scheduler implements ports.Scheduler with a bounded worker pool and
// per-key serialization.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bnema/afkguard/internal/ports"
	"github.com/go-logr/logr"
	"github.com/sourcegraph/conc/pool"
)

const defaultWorkers = 8

type Scheduler struct {
	ctx    context.Context
	cancel context.CancelFunc
	pool   *pool.Pool
	keys   *KeyedMutex
	log    logr.Logger

	mu       sync.Mutex
	stopped  bool
	inflight sync.WaitGroup
	timers   sync.WaitGroup
}

var _ ports.Scheduler = (*Scheduler)(nil)

func New(log logr.Logger, workers int) *Scheduler {
	if workers <= 0 {
		workers = defaultWorkers
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
		pool:   pool.New().WithMaxGoroutines(workers),
		keys:   NewKeyedMutex(),
		log:    log,
	}
}

// RunNow queues task on the worker pool. Tasks queued after Stop are dropped.
func (s *Scheduler) RunNow(key string, task func()) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.inflight.Add(1)
	s.mu.Unlock()

	s.pool.Go(func() {
		defer s.inflight.Done()
		s.run(key, task)
	})
}

func (s *Scheduler) RunAfter(key string, delay time.Duration, task func()) ports.CancelFunc {
	if delay < 0 {
		delay = 0
	}

	done := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	if !s.startTimer() {
		cancel()
		return cancel
	}

	go func() {
		defer s.timers.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
			select {
			case <-done:
				return
			default:
			}
			s.RunNow(key, task)
		case <-done:
		case <-s.ctx.Done():
		}
	}()

	return cancel
}

// RunEvery runs task on every tick until cancelled. A slow tick delays the
// next one instead of overlapping it.
func (s *Scheduler) RunEvery(key string, interval time.Duration, task func()) ports.CancelFunc {
	done := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(done) }) }

	if interval <= 0 {
		s.log.Error(fmt.Errorf("invalid interval %s", interval), "periodic task not scheduled", "key", key)
		cancel()
		return cancel
	}
	if !s.startTimer() {
		cancel()
		return cancel
	}

	go func() {
		defer s.timers.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				select {
				case <-done:
					return
				default:
				}
				s.run(key, task)
			case <-done:
				return
			case <-s.ctx.Done():
				return
			}
		}
	}()

	return cancel
}

// Stop cancels every timer and waits for queued tasks to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.cancel()
	s.timers.Wait()
	s.inflight.Wait()
	s.pool.Wait()
}

func (s *Scheduler) startTimer() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.timers.Add(1)
	return true
}

func (s *Scheduler) run(key string, task func()) {
	unlock := s.keys.Lock(key)
	defer unlock()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error(fmt.Errorf("panic: %v", r), "scheduled task failed", "key", key)
		}
	}()

	task()
}
