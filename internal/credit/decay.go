package credit

import (
	"time"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/hooks"
)

const day = 24 * time.Hour

// DecaySweep zeroes balances that have not earned anything for the
// configured number of days and warns accounts in the final warning window
// at most once a day. It returns the number of expired accounts.
func (l *Ledger) DecaySweep() int {
	cfg := l.Config()
	if !cfg.Enabled || !cfg.Decay.Enabled || cfg.Decay.ExpireAfterDays <= 0 {
		return 0
	}
	now := l.clock.Now()
	lifetime := time.Duration(cfg.Decay.ExpireAfterDays) * day
	window := time.Duration(cfg.Decay.WarningDays) * day

	expired := 0
	for _, e := range l.entries() {
		e.mu.Lock()
		if e.acct.BalanceMinutes <= 0 {
			e.mu.Unlock()
			continue
		}
		id := e.acct.SessionID
		if e.acct.LastEarnedAt.IsZero() {
			e.acct.LastEarnedAt = now
			e.touch()
			e.mu.Unlock()
			continue
		}

		expiry := e.acct.LastEarnedAt.Add(lifetime)
		if !now.Before(expiry) {
			lost := e.acct.BalanceMinutes
			e.acct.BalanceMinutes = 0
			e.acct.LowBalanceWarnedAt = -1
			e.acct.DecayWarnedAt = time.Time{}
			e.touch()
			l.record(cfg, e, domain.TxDecay, -lost, 0, "expired")
			e.mu.Unlock()

			expired++
			l.log.Info("credits expired", "session", id, "minutes", lost)
			l.notify(id, cfg.Messages.Expired)
			l.commit(e)
			continue
		}

		warn := window > 0 && !now.Before(expiry.Add(-window)) &&
			(e.acct.DecayWarnedAt.IsZero() || now.Sub(e.acct.DecayWarnedAt) >= day)
		if warn {
			e.acct.DecayWarnedAt = now
			e.touch()
		}
		e.mu.Unlock()

		if warn {
			remaining := expiry.Sub(now)
			days := int((remaining + day - 1) / day)
			l.warn(id, hooks.StageDecay, int(remaining/time.Second), render(cfg.Messages.DecayWarning, 0, days))
		}
	}
	return expired
}
