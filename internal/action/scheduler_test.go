package action

import (
	"context"
	"testing"
	"time"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/hooks"
	"github.com/bnema/afkguard/internal/ports/mocks"
	"github.com/bnema/afkguard/internal/scheduler/schedulertest"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeCredits struct {
	balance   int
	inZone    bool
	consuming bool
	startedAt *domain.Location
	relocated int
	relocates bool
}

func (f *fakeCredits) StartConsumption(_ domain.SessionID, at *domain.Location) bool {
	if f.balance <= 0 || f.inZone {
		return false
	}
	f.consuming = true
	f.startedAt = at
	return true
}

func (f *fakeCredits) InZone(domain.SessionID) bool { return f.inZone }

func (f *fakeCredits) Relocate(context.Context, domain.SessionID) bool {
	if !f.relocates {
		return false
	}
	f.relocated++
	f.inZone = true
	return true
}

type stateMap map[domain.SessionID]domain.AFKState

func (s stateMap) State(id domain.SessionID) domain.AFKState { return s[id] }

type locator map[domain.SessionID]domain.Location

func (l locator) LastLocation(id domain.SessionID) (domain.Location, bool) {
	loc, ok := l[id]
	return loc, ok
}

type fixture struct {
	scheduler *Scheduler
	credits   *fakeCredits
	states    stateMap
	sink      *mocks.MockSessionSink
	sched     *schedulertest.Manual
	bus       *hooks.Bus
}

func newFixture(t *testing.T, cfg Config) *fixture {
	t.Helper()

	f := &fixture{
		credits: &fakeCredits{},
		states:  stateMap{},
		sink:    mocks.NewMockSessionSink(t),
		sched:   schedulertest.NewManual(schedulertest.NewClock(start)),
		bus:     hooks.NewBus(),
	}
	f.scheduler = New(cfg, Deps{
		Credits:   f.credits,
		States:    f.states,
		Locator:   locator{"s1": {World: "world", X: 4, Y: 64, Z: 2}},
		Sink:      f.sink,
		Scheduler: f.sched,
		Bus:       f.bus,
		Clock:     f.sched.Clock,
		Log:       logr.Discard(),
	})
	return f
}

func TestSchedulerConsumesCreditsInsteadOfCountdown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	f.credits.balance = 10
	f.states["s1"] = domain.StateAutoAFK

	assert.Equal(t, OutcomeConsuming, f.scheduler.OnAFK("s1", domain.StateAutoAFK))
	require.NotNil(t, f.credits.startedAt)
	assert.Equal(t, 4.0, f.credits.startedAt.X)
	assert.Zero(t, f.sched.Pending())
}

func TestSchedulerCountdownWarnsThenKicks(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	f.states["s1"] = domain.StateAutoAFK

	var warnings []int
	f.bus.Warning.Subscribe(func(e *hooks.Warning) hooks.Decision {
		assert.Equal(t, hooks.StageRemoval, e.Stage)
		warnings = append(warnings, e.SecondsRemaining)
		return hooks.Proceed
	})
	f.sink.EXPECT().RemoveSession(mock.Anything, domain.SessionID("s1"), "afk", "You were removed for being AFK.").Return(nil).Once()

	require.Equal(t, OutcomeCountdown, f.scheduler.OnAFK("s1", domain.StateAutoAFK))
	remaining, ok := f.scheduler.Remaining("s1")
	require.True(t, ok)
	assert.Equal(t, time.Minute, remaining)

	f.sched.Advance(time.Minute)

	assert.Equal(t, []int{30, 10, 5}, warnings)
	_, ok = f.scheduler.Remaining("s1")
	assert.False(t, ok)
	assert.Zero(t, f.sched.Pending())
}

func TestSchedulerCountdownCancelledByActivity(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	f.states["s1"] = domain.StateAutoAFK
	f.scheduler.OnAFK("s1", domain.StateAutoAFK)

	f.sched.Advance(20 * time.Second)
	f.states["s1"] = domain.StateActive
	f.sched.Advance(time.Minute)

	assert.Zero(t, f.sched.Pending())
}

func TestSchedulerCancel(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	f.states["s1"] = domain.StateAutoAFK
	f.scheduler.OnAFK("s1", domain.StateAutoAFK)

	assert.True(t, f.scheduler.Cancel("s1"))
	assert.False(t, f.scheduler.Cancel("s1"))
	f.sched.Advance(2 * time.Minute)
	assert.Zero(t, f.sched.Pending())
}

func TestSchedulerManualAFKRespectsConfig(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	assert.Equal(t, OutcomeNone, f.scheduler.OnAFK("s1", domain.StateManualAFK))

	cfg := DefaultConfig()
	cfg.ApplyToManual = true
	f.scheduler.Reconfigure(cfg)
	f.states["s1"] = domain.StateManualAFK
	assert.Equal(t, OutcomeCountdown, f.scheduler.OnAFK("s1", domain.StateManualAFK))
}

func TestSchedulerSkipsSessionsInZone(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	f.credits.inZone = true

	assert.Equal(t, OutcomeInZone, f.scheduler.OnAFK("s1", domain.StateAutoAFK))
	assert.Zero(t, f.sched.Pending())
}

func TestSchedulerDisabledDoesNotCountDown(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Enabled = false
	f := newFixture(t, cfg)

	assert.Equal(t, OutcomeDisabled, f.scheduler.OnAFK("s1", domain.StateAutoAFK))
}

func TestSchedulerRelocateMode(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Mode = ModeRelocate
	cfg.Delay = 10 * time.Second
	f := newFixture(t, cfg)
	f.credits.relocates = true
	f.states["s1"] = domain.StateAutoAFK

	f.scheduler.OnAFK("s1", domain.StateAutoAFK)
	f.sched.Advance(10 * time.Second)

	assert.Equal(t, 1, f.credits.relocated)
}

func TestSchedulerExhaustedWithoutRelocationStartsCountdown(t *testing.T) {
	t.Parallel()

	f := newFixture(t, DefaultConfig())
	f.states["s1"] = domain.StateAutoAFK

	f.scheduler.OnCreditsExhausted("s1", true)
	_, ok := f.scheduler.Remaining("s1")
	assert.False(t, ok)

	f.scheduler.OnCreditsExhausted("s1", false)
	_, ok = f.scheduler.Remaining("s1")
	assert.True(t, ok)
}

func TestNormalizeSortsWarnings(t *testing.T) {
	t.Parallel()

	cfg := normalize(Config{Mode: "teleport", WarningSeconds: []int{5, 0, 30, 10}})
	assert.Equal(t, []int{30, 10, 5}, cfg.WarningSeconds)
	assert.Equal(t, ModeKick, cfg.Mode)
	assert.Equal(t, time.Second, cfg.Tick)
}
