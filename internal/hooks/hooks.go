// Package hooks dispatches cancelable notifications to external listeners.
//
// Dispatch is synchronous. Listeners run on the caller's goroutine in
// subscription order and may mutate the exported fields of the event they
// receive; the caller reads them back after Fire returns.
package hooks

import (
	"sync"
	"time"

	"github.com/bnema/afkguard/internal/domain"
)

type Decision int

const (
	Proceed Decision = iota
	Cancel
)

type Handler[E any] func(event *E) Decision

type Dispatcher[E any] struct {
	mu       sync.RWMutex
	handlers []Handler[E]
}

func (d *Dispatcher[E]) Subscribe(h Handler[E]) {
	if h == nil {
		return
	}
	d.mu.Lock()
	d.handlers = append(d.handlers, h)
	d.mu.Unlock()
}

// Fire runs every handler. A single Cancel cancels the event, later handlers
// still observe it.
func (d *Dispatcher[E]) Fire(event *E) Decision {
	d.mu.RLock()
	handlers := d.handlers
	d.mu.RUnlock()

	decision := Proceed
	for _, h := range handlers {
		if h(event) == Cancel {
			decision = Cancel
		}
	}
	return decision
}

type StateChange struct {
	Session domain.SessionID
	From    domain.AFKState
	To      domain.AFKState
	Reason  domain.TransitionReason
	At      time.Time
}

type WarningStage string

const (
	StageAFK        WarningStage = "afk"
	StageRemoval    WarningStage = "removal"
	StageLowBalance WarningStage = "low_balance"
	StageDecay      WarningStage = "decay"
)

type Warning struct {
	Session          domain.SessionID
	Stage            WarningStage
	SecondsRemaining int
	Message          string
}

type PatternDetected struct {
	Session    domain.SessionID
	Patterns   []domain.PatternType
	Confidence float64
	Violations int
	// Forced is set when the violation threshold was reached and the session
	// is about to be forced into AutoAFK. Cancel keeps it Active.
	Forced bool
}

type CreditKind string

const (
	CreditEarned   CreditKind = "earned"
	CreditConsumed CreditKind = "consumed"
)

type CreditChange struct {
	Session domain.SessionID
	Kind    CreditKind
	// Amount may be adjusted by listeners before it is applied.
	Amount  int
	Balance int
}

// Bus groups the dispatchers the engine fires.
type Bus struct {
	StateChange Dispatcher[StateChange]
	Warning     Dispatcher[Warning]
	Pattern     Dispatcher[PatternDetected]
	Credit      Dispatcher[CreditChange]
	SessionEnd  Dispatcher[domain.SessionSummary]
}

func NewBus() *Bus {
	return &Bus{}
}
