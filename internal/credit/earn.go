package credit

import (
	"time"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/hooks"
)

// EarnTick runs one earning interval for a session and returns the minutes
// credited. active reports whether the session is currently Active and
// activeSince when it became so.
func (l *Ledger) EarnTick(id domain.SessionID, active bool, activeSince time.Time) int {
	cfg := l.Config()
	if !cfg.Enabled {
		return 0
	}

	e := l.entry(id, false)
	if e == nil {
		return 0
	}
	l.enforceMax(e)
	if !active || l.bypassed(id, cfg) || (cfg.EarnPermission != "" && !l.hasPermission(id, cfg.EarnPermission)) {
		e.mu.Lock()
		e.pending = 0
		e.mu.Unlock()
		return 0
	}

	now := l.clock.Now()
	if cfg.MinActivityScore > 0 && l.scorer != nil && l.scorer.ActivityScore(id) < cfg.MinActivityScore {
		return 0
	}
	if cfg.MinDistinctKinds > 0 && l.kinds != nil && l.kinds.DistinctKinds(id, now.Add(-cfg.KindsWindow)) < cfg.MinDistinctKinds {
		return 0
	}

	tier := cfg.tier(l.tierOf(id, cfg))

	e.mu.Lock()
	e.pending += cfg.EarnInterval.Minutes()
	if now.Sub(activeSince) < cfg.MinSession {
		e.mu.Unlock()
		return 0
	}

	conversions := int(e.pending / float64(tier.RatioActive))
	if conversions == 0 {
		e.mu.Unlock()
		return 0
	}
	e.pending -= float64(conversions * tier.RatioActive)
	e.acct.LastEarnedAt = now
	e.acct.DecayWarnedAt = time.Time{}
	e.touch()

	earned := l.creditLocked(cfg, e, conversions*tier.RatioCredit, tier.MaxBalance, domain.TxEarn, "active play")
	if cfg.Rewards.Enabled && cfg.Rewards.BonusMinutes > 0 {
		earned += l.creditLocked(cfg, e, cfg.Rewards.BonusMinutes, tier.MaxBalance, domain.TxBonus, "reward bonus")
	}

	balance := e.acct.BalanceMinutes
	e.mu.Unlock()

	if earned > 0 {
		l.log.V(1).Info("credits earned", "session", id, "minutes", earned, "balance", balance)
	}
	l.commit(e)
	return earned
}

// creditLocked adds up to amount minutes, capped at max, after listeners had
// a chance to adjust or cancel it.
func (l *Ledger) creditLocked(cfg Config, e *entry, amount, max int, kind domain.TransactionType, note string) int {
	if amount <= 0 {
		return 0
	}
	id := e.acct.SessionID
	event := hooks.CreditChange{Session: id, Kind: hooks.CreditEarned, Amount: amount, Balance: e.acct.BalanceMinutes}
	if l.bus.Credit.Fire(&event) == hooks.Cancel || event.Amount <= 0 {
		return 0
	}

	before := e.acct.BalanceMinutes
	after := domain.ClampBalance(before+event.Amount, max)
	if after <= before {
		return 0
	}
	e.acct.BalanceMinutes = after
	e.acct.LowBalanceWarnedAt = -1
	e.touch()
	l.record(cfg, e, kind, after-before, after, note)
	return after - before
}

func (l *Ledger) bypassed(id domain.SessionID, cfg Config) bool {
	return cfg.BypassPermission != "" && l.hasPermission(id, cfg.BypassPermission)
}
