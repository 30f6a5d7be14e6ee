package credit

import "github.com/bnema/afkguard/internal/domain"

func (l *Ledger) Give(id domain.SessionID, minutes int) domain.AdminResult {
	return l.adjust(id, domain.TxAdminGive, minutes, func(balance int) int { return balance + minutes })
}

func (l *Ledger) Take(id domain.SessionID, minutes int) domain.AdminResult {
	return l.adjust(id, domain.TxAdminTake, minutes, func(balance int) int { return balance - minutes })
}

func (l *Ledger) Set(id domain.SessionID, minutes int) domain.AdminResult {
	return l.adjust(id, domain.TxAdminSet, minutes, func(int) int { return minutes })
}

func (l *Ledger) Reset(id domain.SessionID) domain.AdminResult {
	return l.adjust(id, domain.TxAdminReset, 0, func(int) int { return 0 })
}

// adjust applies an administrative change clamped to [0, tier max]. Negative
// input only trims a balance above the max; a disabled system leaves the
// balance unchanged.
func (l *Ledger) adjust(id domain.SessionID, kind domain.TransactionType, minutes int, apply func(int) int) domain.AdminResult {
	cfg := l.Config()
	max := l.MaxBalance(id)
	if !cfg.Enabled {
		return domain.AdminResult{Balance: l.Balance(id), Max: max}
	}
	if e := l.entry(id, false); e != nil {
		l.enforceMax(e)
	}
	if minutes < 0 {
		return domain.AdminResult{Balance: l.Balance(id), Max: max}
	}

	e := l.entry(id, true)
	e.mu.Lock()
	before := e.acct.BalanceMinutes
	after := domain.ClampBalance(apply(before), max)
	if after == before {
		e.mu.Unlock()
		return domain.AdminResult{Balance: before, Max: max}
	}
	e.acct.BalanceMinutes = after
	e.acct.LowBalanceWarnedAt = -1
	e.touch()
	l.record(cfg, e, kind, after-before, after, "admin")
	e.mu.Unlock()

	l.log.Info("credits adjusted", "session", id, "type", kind, "before", before, "after", after)
	l.commit(e)
	return domain.AdminResult{Changed: true, Balance: after, Max: max}
}
