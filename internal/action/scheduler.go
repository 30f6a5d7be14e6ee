// Package action runs the removal countdown for AFK sessions that have no
// credits to spend, and performs the terminal kick or relocation.
package action

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/hooks"
	"github.com/bnema/afkguard/internal/ports"
	"github.com/go-logr/logr"
)

const actionTimeout = 5 * time.Second

type Mode string

const (
	ModeKick     Mode = "kick"
	ModeRelocate Mode = "relocate"
)

func ParseMode(raw string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case ModeKick:
		return ModeKick, true
	case ModeRelocate:
		return ModeRelocate, true
	default:
		return "", false
	}
}

type Config struct {
	Enabled        bool
	Mode           Mode
	Delay          time.Duration
	Tick           time.Duration
	WarningSeconds []int
	ApplyToManual  bool
	KickReason     string
	KickMessage    string
	WarningMessage string
}

func DefaultConfig() Config {
	return Config{
		Enabled:        true,
		Mode:           ModeKick,
		Delay:          time.Minute,
		Tick:           time.Second,
		WarningSeconds: []int{30, 10, 5},
		KickReason:     "afk",
		KickMessage:    "You were removed for being AFK.",
		WarningMessage: "You will be removed for being AFK in {seconds} seconds.",
	}
}

// Credits is the slice of the credit ledger the scheduler drives.
type Credits interface {
	StartConsumption(id domain.SessionID, at *domain.Location) bool
	InZone(id domain.SessionID) bool
	Relocate(ctx context.Context, id domain.SessionID) bool
}

type States interface {
	State(id domain.SessionID) domain.AFKState
}

type Locator interface {
	LastLocation(id domain.SessionID) (domain.Location, bool)
}

type Deps struct {
	Credits   Credits
	States    States
	Locator   Locator
	Sink      ports.SessionSink
	Notifier  ports.Notifier
	Scheduler ports.Scheduler
	Bus       *hooks.Bus
	Clock     ports.Clock
	Log       logr.Logger
}

// Outcome reports what OnAFK decided for a session.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeConsuming
	OutcomeInZone
	OutcomeCountdown
	OutcomeDisabled
)

type Scheduler struct {
	mu         sync.Mutex
	countdowns map[domain.SessionID]*countdown
	cfg        Config

	credits  Credits
	states   States
	locator  Locator
	sink     ports.SessionSink
	notifier ports.Notifier
	sched    ports.Scheduler
	bus      *hooks.Bus
	clock    ports.Clock
	log      logr.Logger
}

type countdown struct {
	deadline time.Time
	warned   map[int]bool
	cancel   ports.CancelFunc
}

func New(cfg Config, deps Deps) *Scheduler {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Bus == nil {
		deps.Bus = hooks.NewBus()
	}
	return &Scheduler{
		countdowns: map[domain.SessionID]*countdown{},
		cfg:        normalize(cfg),
		credits:    deps.Credits,
		states:     deps.States,
		locator:    deps.Locator,
		sink:       deps.Sink,
		notifier:   deps.Notifier,
		sched:      deps.Scheduler,
		bus:        deps.Bus,
		clock:      deps.Clock,
		log:        deps.Log,
	}
}

func (s *Scheduler) Reconfigure(cfg Config) {
	s.mu.Lock()
	s.cfg = normalize(cfg)
	s.mu.Unlock()
}

func (s *Scheduler) config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// OnAFK handles a session that just became AFK: spend credits if it has
// any, otherwise start the removal countdown.
func (s *Scheduler) OnAFK(id domain.SessionID, state domain.AFKState) Outcome {
	cfg := s.config()
	if state == domain.StateManualAFK && !cfg.ApplyToManual {
		return OutcomeNone
	}

	if s.credits != nil {
		if s.credits.InZone(id) {
			return OutcomeInZone
		}
		var at *domain.Location
		if s.locator != nil {
			if loc, ok := s.locator.LastLocation(id); ok {
				at = &loc
			}
		}
		if s.credits.StartConsumption(id, at) {
			return OutcomeConsuming
		}
	}

	if !cfg.Enabled {
		return OutcomeDisabled
	}
	s.startCountdown(id, cfg)
	return OutcomeCountdown
}

// OnCreditsExhausted starts the countdown for a session whose credits ran
// out but could not be relocated.
func (s *Scheduler) OnCreditsExhausted(id domain.SessionID, relocated bool) {
	if relocated {
		return
	}
	cfg := s.config()
	if !cfg.Enabled || (s.states != nil && !s.states.State(id).IsAFK()) {
		return
	}
	s.startCountdown(id, cfg)
}

// Cancel stops a running countdown and reports whether one existed.
func (s *Scheduler) Cancel(id domain.SessionID) bool {
	s.mu.Lock()
	cd, ok := s.countdowns[id]
	delete(s.countdowns, id)
	s.mu.Unlock()
	if !ok {
		return false
	}
	if cd.cancel != nil {
		cd.cancel()
	}
	s.log.V(1).Info("removal countdown cancelled", "session", id)
	return true
}

// Remaining reports the time left on a session's countdown.
func (s *Scheduler) Remaining(id domain.SessionID) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cd, ok := s.countdowns[id]
	if !ok {
		return 0, false
	}
	return cd.deadline.Sub(s.clock.Now()), true
}

func (s *Scheduler) startCountdown(id domain.SessionID, cfg Config) {
	s.mu.Lock()
	if _, ok := s.countdowns[id]; ok {
		s.mu.Unlock()
		return
	}
	cd := &countdown{deadline: s.clock.Now().Add(cfg.Delay), warned: map[int]bool{}}
	s.countdowns[id] = cd
	s.mu.Unlock()

	s.log.Info("removal countdown started", "session", id, "delay", cfg.Delay)
	cancel := s.sched.RunEvery("action:"+string(id), cfg.Tick, func() { s.tick(id) })

	s.mu.Lock()
	if s.countdowns[id] == cd {
		cd.cancel = cancel
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	cancel()
}

func (s *Scheduler) tick(id domain.SessionID) {
	cfg := s.config()

	s.mu.Lock()
	cd, ok := s.countdowns[id]
	if !ok {
		s.mu.Unlock()
		return
	}
	if s.states != nil && !s.states.State(id).IsAFK() {
		delete(s.countdowns, id)
		s.mu.Unlock()
		if cd.cancel != nil {
			cd.cancel()
		}
		return
	}

	remaining := cd.deadline.Sub(s.clock.Now())
	if remaining <= 0 {
		delete(s.countdowns, id)
		s.mu.Unlock()
		if cd.cancel != nil {
			cd.cancel()
		}
		s.execute(id, cfg)
		return
	}

	due := -1
	for _, sec := range cfg.WarningSeconds {
		if remaining <= time.Duration(sec)*time.Second && !cd.warned[sec] {
			cd.warned[sec] = true
			due = sec
		}
	}
	s.mu.Unlock()

	if due < 0 {
		return
	}
	event := hooks.Warning{
		Session:          id,
		Stage:            hooks.StageRemoval,
		SecondsRemaining: due,
		Message:          strings.ReplaceAll(cfg.WarningMessage, "{seconds}", strconv.Itoa(due)),
	}
	if s.bus.Warning.Fire(&event) == hooks.Cancel {
		return
	}
	if s.notifier != nil {
		s.notifier.Notify(id, event.Message)
	}
}

func (s *Scheduler) execute(id domain.SessionID, cfg Config) {
	ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
	defer cancel()

	switch cfg.Mode {
	case ModeRelocate:
		if s.credits == nil || !s.credits.Relocate(ctx, id) {
			s.log.Info("relocation unavailable, session left in place", "session", id)
		}
	default:
		if s.sink == nil {
			return
		}
		if err := s.sink.RemoveSession(ctx, id, cfg.KickReason, cfg.KickMessage); err != nil {
			s.log.Error(err, "remove afk session", "session", id)
			return
		}
		s.log.Info("afk session removed", "session", id)
	}
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if _, ok := ParseMode(string(cfg.Mode)); !ok {
		cfg.Mode = def.Mode
	}
	if cfg.KickReason == "" {
		cfg.KickReason = def.KickReason
	}
	if cfg.WarningMessage == "" {
		cfg.WarningMessage = def.WarningMessage
	}
	warnings := make([]int, 0, len(cfg.WarningSeconds))
	for _, sec := range cfg.WarningSeconds {
		if sec > 0 {
			warnings = append(warnings, sec)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(warnings)))
	cfg.WarningSeconds = warnings
	return cfg
}
