package application

import (
	"context"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/hooks"
	"github.com/bnema/afkguard/internal/pattern"
)

// CheckSweep evaluates every session against its inactivity threshold.
func (e *Engine) CheckSweep() int {
	changed := 0
	for _, id := range e.machine.Sessions() {
		if e.check(id) {
			changed++
		}
	}
	return changed
}

func (e *Engine) check(id domain.SessionID) bool {
	unlock := e.locks.Lock(string(id))
	defer unlock()

	tr, ok := e.machine.Evaluate(id)
	if ok {
		e.afterTransition(tr)
	}
	return ok
}

// PatternSweep analyses the recent movement of every Active session.
func (e *Engine) PatternSweep() {
	ids := make([]domain.SessionID, 0)
	for _, id := range e.machine.Sessions() {
		if !e.machine.IsAFK(id) {
			ids = append(ids, id)
		}
	}
	e.classifier.Sweep(ids, e.onVerdict)
}

func (e *Engine) onVerdict(v pattern.Verdict) {
	event := hooks.PatternDetected{
		Session:    v.Session,
		Patterns:   v.Patterns(),
		Confidence: v.Confidence,
		Violations: v.Violations,
		Forced:     v.ThresholdReached,
	}
	if e.bus.Pattern.Fire(&event) == hooks.Cancel || !event.Forced {
		return
	}

	unlock := e.locks.Lock(string(v.Session))
	defer unlock()

	tr, ok := e.machine.Force(v.Session, true, domain.ReasonPattern)
	if !ok {
		return
	}
	e.setHeld(v.Session, true)
	e.log.Info("session forced afk by movement pattern", "session", v.Session, "patterns", event.Patterns, "confidence", v.Confidence)
	if e.notifier != nil {
		if msg := e.Settings().PatternMessage; msg != "" {
			e.notifier.Notify(v.Session, msg)
		}
	}
	e.afterTransition(tr)
}

// EarnSweep converts active time into credits for every session.
func (e *Engine) EarnSweep() int {
	earned := 0
	for _, id := range e.machine.Sessions() {
		since, active := e.machine.ActiveSince(id)
		earned += e.ledger.EarnTick(id, active, since)
	}
	return earned
}

func (e *Engine) DecaySweep() int {
	return e.ledger.DecaySweep()
}

// FlushSweep saves dirty accounts. Failures are logged by the ledger and
// retried on the next sweep.
func (e *Engine) FlushSweep(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, flushTimeout)
	defer cancel()
	return e.ledger.Flush(ctx)
}
