// Package application composes the AFK components into the engine that the
// transport layer drives. Every signal that can change a session's state is
// serialized on that session's key.
package application

import (
	"context"
	"sync"
	"time"

	"github.com/bnema/afkguard/internal/action"
	"github.com/bnema/afkguard/internal/activity"
	"github.com/bnema/afkguard/internal/afk"
	"github.com/bnema/afkguard/internal/credit"
	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/hooks"
	"github.com/bnema/afkguard/internal/pattern"
	"github.com/bnema/afkguard/internal/ports"
	"github.com/bnema/afkguard/internal/scheduler"
	"github.com/go-logr/logr"
)

const (
	DefaultCheckInterval = time.Second
	flushTimeout         = 10 * time.Second
)

// Settings carries every component configuration plus the engine's own
// sweep cadence.
type Settings struct {
	Tracker        activity.Config
	Classifier     pattern.Config
	Machine        afk.Config
	Ledger         credit.Config
	Action         action.Config
	CheckInterval  time.Duration
	PatternMessage string

	// HoldAgainstMovement stops move activity from reactivating a session
	// the classifier forced AFK.
	HoldAgainstMovement bool
}

func DefaultSettings() Settings {
	return Settings{
		Tracker:             activity.DefaultConfig(),
		Classifier:          pattern.DefaultConfig(),
		Machine:             afk.DefaultConfig(),
		Ledger:              credit.DefaultConfig(),
		Action:              action.DefaultConfig(),
		CheckInterval:       DefaultCheckInterval,
		PatternMessage:      "Suspicious movement detected. You have been marked AFK.",
		HoldAgainstMovement: true,
	}
}

type Deps struct {
	Store ports.CreditStore
	// Transactions is nil when the store keeps no history.
	Transactions ports.TransactionLog
	Permissions  ports.PermissionResolver
	// Scorer replaces the tracker's own activity score when set.
	Scorer    ports.ActivityScorer
	Sink      ports.SessionSink
	Notifier  ports.Notifier
	World     ports.WorldProbe
	Scheduler ports.Scheduler
	Bus       *hooks.Bus
	Clock     ports.Clock
	Log       logr.Logger
}

type Engine struct {
	tracker    *activity.Tracker
	classifier *pattern.Classifier
	machine    *afk.Machine
	ledger     *credit.Ledger
	actions    *action.Scheduler

	locks    *scheduler.KeyedMutex
	sched    ports.Scheduler
	bus      *hooks.Bus
	notifier ports.Notifier
	clock    ports.Clock
	log      logr.Logger

	mu       sync.Mutex
	settings Settings
	modules  []Module
	sweeps   []ports.CancelFunc
	started  bool
	// held sessions were forced AFK by a movement pattern; with
	// HoldAgainstMovement only non-move activity returns them to Active.
	held map[domain.SessionID]bool
}

func NewEngine(settings Settings, deps Deps) *Engine {
	if deps.Clock == nil {
		deps.Clock = ports.SystemClock{}
	}
	if deps.Bus == nil {
		deps.Bus = hooks.NewBus()
	}
	settings = normalize(settings)
	log := deps.Log

	tracker := activity.NewTracker(settings.Tracker, deps.Permissions, deps.Clock, log.WithName("activity"))
	classifier := pattern.NewClassifier(settings.Classifier, tracker, deps.Clock, log.WithName("pattern"))
	machine := afk.NewMachine(settings.Machine, tracker, deps.Permissions, deps.Notifier, deps.Bus, deps.Clock, log.WithName("afk"))

	scorer := deps.Scorer
	if scorer == nil {
		scorer = tracker
	}
	ledger := credit.NewLedger(settings.Ledger, credit.Deps{
		Store:        deps.Store,
		Transactions: deps.Transactions,
		Permissions:  deps.Permissions,
		Scorer:       scorer,
		Kinds:        tracker,
		States:       machine,
		Sink:         deps.Sink,
		Notifier:     deps.Notifier,
		World:        deps.World,
		Scheduler:    deps.Scheduler,
		Bus:          deps.Bus,
		Clock:        deps.Clock,
		Log:          log.WithName("ledger"),
	})
	actions := action.New(settings.Action, action.Deps{
		Credits:   ledger,
		States:    machine,
		Locator:   tracker,
		Sink:      deps.Sink,
		Notifier:  deps.Notifier,
		Scheduler: deps.Scheduler,
		Bus:       deps.Bus,
		Clock:     deps.Clock,
		Log:       log.WithName("action"),
	})
	ledger.SetExhaustedHandler(actions.OnCreditsExhausted)

	e := &Engine{
		tracker:    tracker,
		classifier: classifier,
		machine:    machine,
		ledger:     ledger,
		actions:    actions,
		locks:      scheduler.NewKeyedMutex(),
		sched:      deps.Scheduler,
		bus:        deps.Bus,
		notifier:   deps.Notifier,
		clock:      deps.Clock,
		log:        log.WithName("engine"),
		settings:   settings,
		held:       map[domain.SessionID]bool{},
	}
	e.modules = e.defaultModules()
	return e
}

func (e *Engine) Bus() *hooks.Bus {
	return e.bus
}

func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// OnSessionJoin registers a connected session as Active.
func (e *Engine) OnSessionJoin(id domain.SessionID) {
	unlock := e.locks.Lock(string(id))
	defer unlock()

	e.tracker.Start(id)
	e.machine.Join(id)
	e.ledger.Join(id)
	e.log.V(1).Info("session joined", "session", id)
}

// OnSessionQuit cancels every timer of the session, saves its account and
// fires the session summary.
func (e *Engine) OnSessionQuit(id domain.SessionID) (domain.SessionSummary, bool) {
	unlock := e.locks.Lock(string(id))
	defer unlock()

	e.actions.Cancel(id)
	e.ledger.Leave(id)
	summary, ok := e.machine.Leave(id)
	e.tracker.End(id)
	e.classifier.Forget(id)
	e.setHeld(id, false)
	if ok {
		e.log.V(1).Info("session quit", "session", id, "afkEpisodes", summary.AFKEpisodes, "afkTotal", summary.AFKTotal)
	}
	return summary, ok
}

// OnActivity records a signal and returns an AFK session to Active when the
// signal qualifies.
func (e *Engine) OnActivity(id domain.SessionID, kind domain.ActivityKind, pos *domain.Location) bool {
	unlock := e.locks.Lock(string(id))
	defer unlock()

	if !e.tracker.RecordActivity(id, pos, kind) {
		return false
	}
	if kind == domain.ActivityMove && e.isHeld(id) {
		return true
	}
	if tr, ok := e.machine.OnActivity(id); ok {
		e.afterTransition(tr)
	}
	return true
}

func (e *Engine) IsAFK(id domain.SessionID) bool {
	return e.machine.IsAFK(id)
}

func (e *Engine) State(id domain.SessionID) domain.AFKState {
	return e.machine.State(id)
}

func (e *Engine) TimeSinceLastActivity(id domain.SessionID) time.Duration {
	return e.tracker.TimeSinceLastActivity(id)
}

func (e *Engine) Balance(id domain.SessionID) int {
	return e.ledger.Balance(id)
}

func (e *Engine) MaxBalance(id domain.SessionID) int {
	return e.ledger.MaxBalance(id)
}

func (e *Engine) Account(id domain.SessionID) (domain.CreditAccount, bool) {
	return e.ledger.Account(id)
}

func (e *Engine) Accounts() []domain.CreditAccount {
	return e.ledger.Accounts()
}

func (e *Engine) Tier(id domain.SessionID) domain.Tier {
	return e.ledger.Tier(id)
}

// Countdown reports the time left before the session is removed.
func (e *Engine) Countdown(id domain.SessionID) (time.Duration, bool) {
	return e.actions.Remaining(id)
}

func (e *Engine) Sessions() []domain.SessionID {
	return e.machine.Sessions()
}

// ToggleManualAFK flips manual AFK and reports whether the session is AFK
// afterwards.
func (e *Engine) ToggleManualAFK(id domain.SessionID) bool {
	unlock := e.locks.Lock(string(id))
	defer unlock()

	nowAFK, tr, ok := e.machine.Toggle(id)
	if ok {
		e.afterTransition(tr)
	}
	return nowAFK
}

// ForceAFK sets or clears AFK on behalf of an administrator and reports
// whether the state changed.
func (e *Engine) ForceAFK(id domain.SessionID, afk bool) bool {
	unlock := e.locks.Lock(string(id))
	defer unlock()

	tr, ok := e.machine.Force(id, afk, domain.ReasonAdmin)
	if ok {
		e.afterTransition(tr)
	}
	return ok
}

func (e *Engine) AdminGive(id domain.SessionID, minutes int) domain.AdminResult {
	return e.ledger.Give(id, minutes)
}

func (e *Engine) AdminTake(id domain.SessionID, minutes int) domain.AdminResult {
	return e.ledger.Take(id, minutes)
}

func (e *Engine) AdminSet(id domain.SessionID, minutes int) domain.AdminResult {
	return e.ledger.Set(id, minutes)
}

func (e *Engine) AdminReset(id domain.SessionID) domain.AdminResult {
	return e.ledger.Reset(id)
}

// ReturnFromZone moves a relocated session back to where it was when its
// credits started running, measured from its last known position.
func (e *Engine) ReturnFromZone(ctx context.Context, id domain.SessionID) domain.ReturnResult {
	unlock := e.locks.Lock(string(id))
	defer unlock()

	var current *domain.Location
	if loc, ok := e.tracker.LastLocation(id); ok {
		current = &loc
	}
	return e.ledger.ReturnFromZone(ctx, id, current)
}

func (e *Engine) History(ctx context.Context, id domain.SessionID, limit int) ([]domain.Transaction, error) {
	return e.ledger.History(ctx, id, limit)
}

// afterTransition runs the follow-up of a state change. Callers hold the
// session's key.
func (e *Engine) afterTransition(tr domain.Transition) {
	id := tr.Session
	if tr.From.IsAFK() {
		e.actions.Cancel(id)
		e.ledger.StopConsumption(id)
	}

	if !tr.To.IsAFK() {
		e.setHeld(id, false)
		if tr.Reason != domain.ReasonActivity {
			e.tracker.Touch(id)
		}
		return
	}

	outcome := e.actions.OnAFK(id, tr.To)
	e.log.V(1).Info("afk follow-up", "session", id, "state", tr.To, "outcome", outcome)
}

func (e *Engine) setHeld(id domain.SessionID, held bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if held {
		e.held[id] = true
		return
	}
	delete(e.held, id)
}

func (e *Engine) isHeld(id domain.SessionID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings.HoldAgainstMovement && e.held[id]
}
