package credit

import (
	"context"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/hooks"
)

// StartConsumption begins spending credits for an AFK session and reports
// whether credits are now covering it. at is captured as the return point.
// Calling it while consumption is already running is a no-op that reports
// true.
func (l *Ledger) StartConsumption(id domain.SessionID, at *domain.Location) bool {
	cfg := l.Config()
	if !cfg.Enabled || !cfg.ConsumeEnabled {
		return false
	}
	e := l.entry(id, false)
	if e == nil {
		return false
	}

	e.mu.Lock()
	switch {
	case e.acct.Consuming:
		e.mu.Unlock()
		return true
	case e.acct.InZone, e.acct.BalanceMinutes <= 0:
		e.mu.Unlock()
		return false
	}

	e.acct.Consuming = true
	if at != nil {
		loc := *at
		e.acct.ReturnLocation = &loc
	}
	e.touch()
	if l.sched != nil {
		e.stop = l.sched.RunEvery("credit:"+string(id), cfg.ConsumeInterval, func() { l.ConsumeTick(id) })
	}
	balance := e.acct.BalanceMinutes
	e.mu.Unlock()

	l.log.Info("credit consumption started", "session", id, "balance", balance)
	l.notify(id, render(cfg.Messages.ConsumeStarted, balance, 0))
	l.commit(e)
	return true
}

// ConsumeTick spends one minute. When the balance runs out consumption stops
// and the session is relocated; later ticks do nothing.
func (l *Ledger) ConsumeTick(id domain.SessionID) {
	cfg := l.Config()
	e := l.entry(id, false)
	if e == nil {
		return
	}

	e.mu.Lock()
	if !e.acct.Consuming {
		e.mu.Unlock()
		return
	}
	if l.states != nil && !l.states.IsAFK(id) {
		l.stopLocked(e)
		e.mu.Unlock()
		l.commit(e)
		return
	}

	l.capLocked(cfg, e)
	exhausted := e.acct.BalanceMinutes <= 0
	warn := false
	if !exhausted {
		event := hooks.CreditChange{Session: id, Kind: hooks.CreditConsumed, Amount: 1, Balance: e.acct.BalanceMinutes}
		if l.bus.Credit.Fire(&event) == hooks.Proceed && event.Amount > 0 {
			spent := min(event.Amount, e.acct.BalanceMinutes)
			e.acct.BalanceMinutes -= spent
			e.touch()
			l.record(cfg, e, domain.TxConsume, -spent, e.acct.BalanceMinutes, "afk")
		}
		exhausted = e.acct.BalanceMinutes == 0
	}

	balance := e.acct.BalanceMinutes
	if exhausted {
		l.stopLocked(e)
	} else if cfg.LowBalanceThreshold > 0 && balance <= cfg.LowBalanceThreshold && e.acct.LowBalanceWarnedAt != balance {
		e.acct.LowBalanceWarnedAt = balance
		warn = true
	}
	e.mu.Unlock()

	if warn {
		l.warn(id, hooks.StageLowBalance, balance*60, render(cfg.Messages.LowBalance, balance, 0))
	}
	l.commit(e)

	if exhausted {
		l.log.Info("credits exhausted", "session", id)
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		relocated := l.Relocate(ctx, id)
		if l.onExhausted != nil {
			l.onExhausted(id, relocated)
		}
	}
}

// StopConsumption cancels the consumption timer, if any.
func (l *Ledger) StopConsumption(id domain.SessionID) {
	e := l.entry(id, false)
	if e == nil {
		return
	}
	e.mu.Lock()
	stopped := l.stopLocked(e)
	e.mu.Unlock()
	if stopped {
		l.log.V(1).Info("credit consumption stopped", "session", id)
		l.commit(e)
	}
}

// Relocate moves the session to the AFK zone, or to its world's spawn when
// no zone is configured, and reports whether a destination was found.
func (l *Ledger) Relocate(ctx context.Context, id domain.SessionID) bool {
	cfg := l.Config()
	e := l.entry(id, true)

	e.mu.Lock()
	dest, ok := l.relocationTarget(cfg, e)
	if !ok {
		e.mu.Unlock()
		l.log.Info("no relocation target, session left in place", "session", id)
		return false
	}
	e.acct.InZone = true
	e.acct.RelocatedAt = l.clock.Now()
	e.touch()
	e.mu.Unlock()

	if l.sink != nil {
		if err := l.sink.RelocateSession(ctx, id, dest); err != nil {
			l.log.Error(err, "relocate session", "session", id, "world", dest.World)
		}
	}
	l.notify(id, cfg.Messages.Relocated)
	l.commit(e)
	return true
}

func (l *Ledger) relocationTarget(cfg Config, e *entry) (domain.Location, bool) {
	if cfg.Zone.Enabled {
		return cfg.Zone.Location, true
	}
	if l.world == nil || e.acct.ReturnLocation == nil {
		return domain.Location{}, false
	}
	return l.world.Spawn(e.acct.ReturnLocation.World)
}

// stopLocked must be called with e.mu held.
func (l *Ledger) stopLocked(e *entry) bool {
	if e.stop != nil {
		e.stop()
		e.stop = nil
	}
	if !e.acct.Consuming {
		return false
	}
	e.acct.Consuming = false
	e.touch()
	return true
}

func (l *Ledger) warn(id domain.SessionID, stage hooks.WarningStage, seconds int, message string) {
	event := hooks.Warning{Session: id, Stage: stage, SecondsRemaining: seconds, Message: message}
	if l.bus.Warning.Fire(&event) == hooks.Cancel {
		return
	}
	l.notify(id, event.Message)
}
