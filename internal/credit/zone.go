package credit

import (
	"context"

	"github.com/bnema/afkguard/internal/domain"
)

// ReturnFromZone sends a relocated session back to the location captured
// when its consumption began. current is the session's present location, if
// known.
func (l *Ledger) ReturnFromZone(ctx context.Context, id domain.SessionID, current *domain.Location) domain.ReturnResult {
	cfg := l.Config()
	if !cfg.Enabled {
		return domain.ReturnSystemDisabled
	}
	e := l.entry(id, false)
	if e == nil {
		return domain.ReturnNotInZone
	}

	e.mu.Lock()
	switch {
	case !e.acct.InZone:
		e.mu.Unlock()
		return domain.ReturnNotInZone
	case e.acct.ReturnLocation == nil:
		e.mu.Unlock()
		return domain.ReturnNoSavedLocation
	case l.clock.Now().Sub(e.acct.RelocatedAt) < cfg.Zone.ReturnCooldown:
		e.mu.Unlock()
		return domain.ReturnCooldown
	case cfg.Zone.Enabled && cfg.Zone.MaxReturnDistance > 0 &&
		(current == nil || current.DistanceTo(cfg.Zone.Location) > cfg.Zone.MaxReturnDistance):
		e.mu.Unlock()
		return domain.ReturnTooFar
	}

	dest := *e.acct.ReturnLocation
	result := domain.ReturnSuccess
	if l.world != nil && !l.world.IsSafe(dest) {
		spawn, ok := l.world.Spawn(dest.World)
		if !ok || !l.world.IsSafe(spawn) {
			e.mu.Unlock()
			l.log.Info("return location unsafe and no safe spawn", "session", id, "world", dest.World)
			return domain.ReturnUnsafeLocation
		}
		dest = spawn
		result = domain.ReturnUnsafeLocation
	}

	e.acct.InZone = false
	e.acct.ReturnLocation = nil
	e.touch()
	e.mu.Unlock()

	if l.sink != nil {
		if err := l.sink.RelocateSession(ctx, id, dest); err != nil {
			l.log.Error(err, "return session from zone", "session", id)
		}
	}
	l.notify(id, cfg.Messages.Returned)
	l.commit(e)
	return result
}
