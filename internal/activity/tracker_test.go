package activity

import (
	"testing"
	"time"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/scheduler/schedulertest"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type grants map[domain.SessionID][]string

func (g grants) HasPermission(id domain.SessionID, permission string) bool {
	for _, p := range g[id] {
		if p == permission {
			return true
		}
	}
	return false
}

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestTracker(cfg Config, perms grants) (*Tracker, *schedulertest.Clock) {
	clock := schedulertest.NewClock(start)
	return NewTracker(cfg, perms, clock, logr.Discard()), clock
}

func at(x, z float64) *domain.Location {
	return &domain.Location{World: "world", X: x, Y: 64, Z: z}
}

func TestTrackerUnseenSessionIsJustActive(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker(DefaultConfig(), nil)

	assert.Zero(t, tr.TimeSinceLastActivity("ghost"))
	assert.Nil(t, tr.History("ghost"))
	assert.Zero(t, tr.ActivityScore("ghost"))
}

func TestTrackerMovementBelowEpsilonDoesNotQualify(t *testing.T) {
	t.Parallel()

	tr, clock := newTestTracker(DefaultConfig(), nil)
	tr.Start("s1")

	require.True(t, tr.RecordActivity("s1", at(0, 0), domain.ActivityMove))
	clock.Advance(30 * time.Second)

	assert.False(t, tr.RecordActivity("s1", at(0.05, 0), domain.ActivityMove))
	assert.Equal(t, 30*time.Second, tr.TimeSinceLastActivity("s1"))

	assert.True(t, tr.RecordActivity("s1", at(1, 0), domain.ActivityMove))
	assert.Zero(t, tr.TimeSinceLastActivity("s1"))
}

func TestTrackerNonMoveKindsAlwaysQualify(t *testing.T) {
	t.Parallel()

	tr, clock := newTestTracker(DefaultConfig(), nil)
	tr.Start("s1")
	clock.Advance(time.Minute)

	for _, kind := range []domain.ActivityKind{domain.ActivityChat, domain.ActivityCommand, domain.ActivityInventory, domain.ActivityInteract} {
		assert.True(t, tr.RecordActivity("s1", nil, kind), kind)
	}
	assert.False(t, tr.RecordActivity("s1", nil, domain.ActivityMove))
	assert.False(t, tr.RecordActivity("s1", nil, domain.ActivityKind("wave")))
	assert.Equal(t, 4, tr.DistinctKinds("s1", start))
}

func TestTrackerIgnoresSessionsThatNeverStarted(t *testing.T) {
	t.Parallel()

	tr, clock := newTestTracker(DefaultConfig(), nil)

	assert.False(t, tr.RecordActivity("ghost", nil, domain.ActivityChat))
	assert.False(t, tr.RecordActivity("ghost", at(1, 1), domain.ActivityMove))
	tr.Touch("ghost")
	assert.Empty(t, tr.Sessions())

	tr.Start("ghost")
	clock.Advance(time.Minute)
	assert.True(t, tr.RecordActivity("ghost", nil, domain.ActivityChat))
	assert.Equal(t, []domain.SessionID{"ghost"}, tr.Sessions())

	tr.End("ghost")
	assert.False(t, tr.RecordActivity("ghost", nil, domain.ActivityChat))
	assert.Empty(t, tr.Sessions())
}

func TestTrackerBypassSessionsAreNotTracked(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker(DefaultConfig(), grants{"admin": {"afkguard.bypass"}})

	assert.False(t, tr.RecordActivity("admin", at(5, 5), domain.ActivityMove))
	tr.Start("admin")
	assert.Empty(t, tr.Sessions())
}

func TestTrackerHistoryIsBoundedAndOrdered(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.HistoryCapacity = 5
	tr, clock := newTestTracker(cfg, nil)
	tr.Start("s1")

	for i := 0; i < 8; i++ {
		tr.RecordActivity("s1", at(float64(i), 0), domain.ActivityMove)
		clock.Advance(time.Second)
	}

	history := tr.History("s1")
	require.Len(t, history, 5)
	assert.Equal(t, 3.0, history[0].X)
	assert.Equal(t, 7.0, history[4].X)
	for i := 1; i < len(history); i++ {
		assert.True(t, history[i].At.After(history[i-1].At))
	}

	history[0].X = 100
	assert.Equal(t, 3.0, tr.History("s1")[0].X)
}

func TestTrackerSameInstantSamplesAreDropped(t *testing.T) {
	t.Parallel()

	tr, _ := newTestTracker(DefaultConfig(), nil)
	tr.Start("s1")

	tr.RecordActivity("s1", at(0, 0), domain.ActivityMove)
	tr.RecordActivity("s1", at(2, 0), domain.ActivityMove)

	assert.Len(t, tr.History("s1"), 1)
	loc, ok := tr.LastLocation("s1")
	require.True(t, ok)
	assert.Equal(t, 2.0, loc.X)
}

func TestTrackerWorldChangeResetsHistory(t *testing.T) {
	t.Parallel()

	tr, clock := newTestTracker(DefaultConfig(), nil)
	tr.Start("s1")
	for i := 0; i < 3; i++ {
		tr.RecordActivity("s1", at(float64(i), 0), domain.ActivityMove)
		clock.Advance(time.Second)
	}

	nether := &domain.Location{World: "nether", X: 0, Y: 64, Z: 0}
	assert.True(t, tr.RecordActivity("s1", nether, domain.ActivityMove))
	assert.Len(t, tr.History("s1"), 1)
}

func TestTrackerActivityScore(t *testing.T) {
	t.Parallel()

	tr, clock := newTestTracker(DefaultConfig(), nil)
	tr.Start("s1")

	for i := 0; i < 5; i++ {
		if i > 0 {
			clock.Advance(time.Minute)
		}
		tr.RecordActivity("s1", nil, domain.ActivityChat)
	}
	assert.InDelta(t, 100.0, tr.ActivityScore("s1"), 0.001)

	clock.Advance(3 * time.Minute)
	assert.InDelta(t, 40.0, tr.ActivityScore("s1"), 0.001)
}

func TestTrackerEndDropsRecord(t *testing.T) {
	t.Parallel()

	tr, clock := newTestTracker(DefaultConfig(), nil)
	tr.Start("s1")
	tr.RecordActivity("s1", nil, domain.ActivityChat)
	clock.Advance(time.Minute)
	tr.End("s1")

	assert.Zero(t, tr.TimeSinceLastActivity("s1"))
	assert.Empty(t, tr.Sessions())
}

func TestTrackerReconfigureShrinksHistory(t *testing.T) {
	t.Parallel()

	tr, clock := newTestTracker(DefaultConfig(), nil)
	tr.Start("s1")
	for i := 0; i < 10; i++ {
		tr.RecordActivity("s1", at(float64(i), 0), domain.ActivityMove)
		clock.Advance(time.Second)
	}

	cfg := DefaultConfig()
	cfg.HistoryCapacity = 4
	tr.Reconfigure(cfg)

	history := tr.History("s1")
	require.Len(t, history, 4)
	assert.Equal(t, 9.0, history[3].X)
}
