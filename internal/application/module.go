package application

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Module is one lifecycle participant. Init runs in registration order,
// Shutdown in reverse.
type Module interface {
	Name() string
	Init(ctx context.Context) error
	Reload(settings Settings)
	Shutdown(ctx context.Context) error
}

type moduleFuncs struct {
	name     string
	init     func(ctx context.Context) error
	reload   func(settings Settings)
	shutdown func(ctx context.Context) error
}

func (m moduleFuncs) Name() string { return m.name }

func (m moduleFuncs) Init(ctx context.Context) error {
	if m.init == nil {
		return nil
	}
	return m.init(ctx)
}

func (m moduleFuncs) Reload(settings Settings) {
	if m.reload != nil {
		m.reload(settings)
	}
}

func (m moduleFuncs) Shutdown(ctx context.Context) error {
	if m.shutdown == nil {
		return nil
	}
	return m.shutdown(ctx)
}

func (e *Engine) defaultModules() []Module {
	return []Module{
		moduleFuncs{
			name:   "activity",
			reload: func(s Settings) { e.tracker.Reconfigure(s.Tracker) },
		},
		moduleFuncs{
			name:   "pattern",
			reload: func(s Settings) { e.classifier.Reconfigure(s.Classifier) },
		},
		moduleFuncs{
			name:   "afk",
			reload: func(s Settings) { e.machine.Reconfigure(s.Machine) },
		},
		moduleFuncs{
			name: "credit",
			// A failed load keeps the ledger serving from memory.
			init: func(ctx context.Context) error {
				_ = e.ledger.Load(ctx)
				return nil
			},
			reload:   func(s Settings) { e.ledger.Reconfigure(s.Ledger) },
			shutdown: e.ledger.Shutdown,
		},
		moduleFuncs{
			name:   "action",
			reload: func(s Settings) { e.actions.Reconfigure(s.Action) },
			shutdown: func(context.Context) error {
				for _, id := range e.machine.Sessions() {
					e.actions.Cancel(id)
				}
				return nil
			},
		},
	}
}

// Register appends a module after the built-in ones.
func (e *Engine) Register(m Module) {
	e.mu.Lock()
	e.modules = append(e.modules, m)
	e.mu.Unlock()
}

// Start initializes every module and schedules the periodic sweeps.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	modules := append([]Module(nil), e.modules...)
	e.mu.Unlock()

	for _, m := range modules {
		if err := m.Init(ctx); err != nil {
			return fmt.Errorf("init %s module: %w", m.Name(), err)
		}
	}

	e.mu.Lock()
	e.started = true
	e.scheduleSweepsLocked()
	e.mu.Unlock()
	e.log.Info("engine started", "modules", len(modules))
	return nil
}

// Reload applies new settings to every module and reschedules the sweeps.
func (e *Engine) Reload(settings Settings) {
	settings = normalize(settings)

	e.mu.Lock()
	e.settings = settings
	modules := append([]Module(nil), e.modules...)
	e.mu.Unlock()

	for _, m := range modules {
		m.Reload(settings)
	}

	e.mu.Lock()
	if e.started {
		e.cancelSweepsLocked()
		e.scheduleSweepsLocked()
	}
	e.mu.Unlock()
	e.log.Info("engine settings reloaded")
}

// Stop cancels the sweeps and shuts modules down in reverse order. Every
// module is shut down even when an earlier one fails.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	e.cancelSweepsLocked()
	e.started = false
	modules := append([]Module(nil), e.modules...)
	e.mu.Unlock()

	var result *multierror.Error
	for i := len(modules) - 1; i >= 0; i-- {
		if err := modules[i].Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("shutdown %s module: %w", modules[i].Name(), err))
		}
	}
	e.log.Info("engine stopped")
	return result.ErrorOrNil()
}

func (e *Engine) scheduleSweepsLocked() {
	if e.sched == nil {
		return
	}
	s := e.settings
	every := func(key string, interval time.Duration, task func()) {
		e.sweeps = append(e.sweeps, e.sched.RunEvery(key, interval, task))
	}

	every("sweep:check", s.CheckInterval, func() { e.CheckSweep() })
	if s.Classifier.Enabled {
		every("sweep:pattern", s.Classifier.Interval, e.PatternSweep)
	}
	if s.Ledger.Enabled {
		every("sweep:earn", s.Ledger.EarnInterval, func() { e.EarnSweep() })
		if s.Ledger.Decay.Enabled {
			every("sweep:decay", s.Ledger.Decay.Interval, func() { e.DecaySweep() })
		}
	}
	every("sweep:flush", s.Ledger.FlushInterval, func() {
		_ = e.FlushSweep(context.Background())
	})
}

func (e *Engine) cancelSweepsLocked() {
	for _, cancel := range e.sweeps {
		cancel()
	}
	e.sweeps = nil
}

func normalize(s Settings) Settings {
	def := DefaultSettings()
	if s.CheckInterval <= 0 {
		s.CheckInterval = def.CheckInterval
	}
	if s.Classifier.Interval <= 0 {
		s.Classifier.Interval = def.Classifier.Interval
	}
	if s.Ledger.EarnInterval <= 0 {
		s.Ledger.EarnInterval = def.Ledger.EarnInterval
	}
	if s.Ledger.FlushInterval <= 0 {
		s.Ledger.FlushInterval = def.Ledger.FlushInterval
	}
	if s.Ledger.Decay.Interval <= 0 {
		s.Ledger.Decay.Interval = def.Ledger.Decay.Interval
	}
	if s.Ledger.Tiers == nil {
		s.Ledger.Tiers = def.Ledger.Tiers
	}
	return s
}
