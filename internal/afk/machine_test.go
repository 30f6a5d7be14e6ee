package afk

import (
	"sync"
	"testing"
	"time"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/hooks"
	"github.com/bnema/afkguard/internal/scheduler/schedulertest"
	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var start = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeActivity struct {
	idle  map[domain.SessionID]time.Duration
	world map[domain.SessionID]string
}

func (f *fakeActivity) TimeSinceLastActivity(id domain.SessionID) time.Duration {
	return f.idle[id]
}

func (f *fakeActivity) LastLocation(id domain.SessionID) (domain.Location, bool) {
	w, ok := f.world[id]
	return domain.Location{World: w}, ok
}

type grants map[domain.SessionID][]string

func (g grants) HasPermission(id domain.SessionID, permission string) bool {
	for _, p := range g[id] {
		if p == permission {
			return true
		}
	}
	return false
}

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ domain.SessionID, message string) {
	n.mu.Lock()
	n.messages = append(n.messages, message)
	n.mu.Unlock()
}

type fixture struct {
	machine  *Machine
	activity *fakeActivity
	notifier *recordingNotifier
	bus      *hooks.Bus
	clock    *schedulertest.Clock
}

func newFixture(cfg Config, perms grants) *fixture {
	f := &fixture{
		activity: &fakeActivity{idle: map[domain.SessionID]time.Duration{}, world: map[domain.SessionID]string{}},
		notifier: &recordingNotifier{},
		bus:      hooks.NewBus(),
		clock:    schedulertest.NewClock(start),
	}
	f.machine = NewMachine(cfg, f.activity, perms, f.notifier, f.bus, f.clock, logr.Discard())
	return f
}

func TestMachineUnknownSessionIsActive(t *testing.T) {
	t.Parallel()

	f := newFixture(DefaultConfig(), nil)

	assert.False(t, f.machine.IsAFK("ghost"))
	_, changed := f.machine.Evaluate("ghost")
	assert.False(t, changed)
	_, changed = f.machine.Force("ghost", true, domain.ReasonAdmin)
	assert.False(t, changed)
}

func TestMachineInactivityMovesToAutoAFK(t *testing.T) {
	t.Parallel()

	f := newFixture(DefaultConfig(), nil)
	f.machine.Join("s1")

	f.activity.idle["s1"] = 4 * time.Minute
	_, changed := f.machine.Evaluate("s1")
	require.False(t, changed)

	f.activity.idle["s1"] = 5 * time.Minute
	tr, changed := f.machine.Evaluate("s1")
	require.True(t, changed)
	assert.Equal(t, domain.StateActive, tr.From)
	assert.Equal(t, domain.StateAutoAFK, tr.To)
	assert.Equal(t, domain.ReasonInactivity, tr.Reason)
	assert.True(t, f.machine.IsAFK("s1"))
}

func TestMachineThresholdOverridePriority(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Overrides = []ThresholdOverride{
		{Permission: "afk.long", Threshold: 20 * time.Minute, Priority: 1},
		{Permission: "afk.staff", Threshold: 10 * time.Minute, Priority: 5},
	}
	f := newFixture(cfg, grants{"both": {"afk.long", "afk.staff"}, "long": {"afk.long"}})

	assert.Equal(t, 10*time.Minute, f.machine.ThresholdFor("both"))
	assert.Equal(t, 20*time.Minute, f.machine.ThresholdFor("long"))
	assert.Equal(t, DefaultThreshold, f.machine.ThresholdFor("plain"))
}

func TestMachineBypassNeverAutoTransitionsButCanToggle(t *testing.T) {
	t.Parallel()

	f := newFixture(DefaultConfig(), grants{"staff": {"afkguard.bypass"}})
	f.machine.Join("staff")
	f.activity.idle["staff"] = time.Hour

	_, changed := f.machine.Evaluate("staff")
	assert.False(t, changed)

	nowAFK, _, changed := f.machine.Toggle("staff")
	assert.True(t, changed)
	assert.True(t, nowAFK)

	_, changed = f.machine.OnActivity("staff")
	assert.False(t, changed)
	assert.Equal(t, domain.StateManualAFK, f.machine.State("staff"))
}

func TestMachineWorldAllowList(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.EnabledWorlds = []string{"world"}
	f := newFixture(cfg, nil)
	for _, id := range []domain.SessionID{"inside", "outside", "unknown"} {
		f.machine.Join(id)
		f.activity.idle[id] = time.Hour
	}
	f.activity.world["inside"] = "world"
	f.activity.world["outside"] = "lobby"

	_, changed := f.machine.Evaluate("inside")
	assert.True(t, changed)
	_, changed = f.machine.Evaluate("outside")
	assert.False(t, changed)
	_, changed = f.machine.Evaluate("unknown")
	assert.False(t, changed)
}

func TestMachineToggleTwiceRestoresState(t *testing.T) {
	t.Parallel()

	f := newFixture(DefaultConfig(), nil)
	f.machine.Join("s1")

	nowAFK, tr, changed := f.machine.Toggle("s1")
	require.True(t, changed)
	assert.True(t, nowAFK)
	assert.Equal(t, domain.StateManualAFK, tr.To)

	nowAFK, tr, changed = f.machine.Toggle("s1")
	require.True(t, changed)
	assert.False(t, nowAFK)
	assert.Equal(t, domain.StateActive, tr.To)
}

func TestMachineToggleFromAutoAFK(t *testing.T) {
	t.Parallel()

	f := newFixture(DefaultConfig(), nil)
	f.machine.Join("s1")
	f.machine.Force("s1", true, domain.ReasonPattern)

	nowAFK, _, changed := f.machine.Toggle("s1")
	assert.True(t, changed)
	assert.True(t, nowAFK)
	assert.Equal(t, domain.StateManualAFK, f.machine.State("s1"))

	nowAFK, tr, changed := f.machine.Toggle("s1")
	assert.True(t, changed)
	assert.False(t, nowAFK)
	assert.Equal(t, domain.StateManualAFK, tr.From)
	assert.Equal(t, domain.StateActive, f.machine.State("s1"))
}

func TestMachineActivityClearsAFK(t *testing.T) {
	t.Parallel()

	f := newFixture(DefaultConfig(), nil)
	f.machine.Join("s1")
	f.machine.Toggle("s1")

	tr, changed := f.machine.OnActivity("s1")
	require.True(t, changed)
	assert.Equal(t, domain.StateManualAFK, tr.From)
	assert.Equal(t, domain.ReasonActivity, tr.Reason)

	_, changed = f.machine.OnActivity("s1")
	assert.False(t, changed)
}

func TestMachineForceIsIdempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(DefaultConfig(), nil)
	f.machine.Join("s1")

	_, changed := f.machine.Force("s1", true, domain.ReasonPattern)
	assert.True(t, changed)
	_, changed = f.machine.Force("s1", true, domain.ReasonPattern)
	assert.False(t, changed)

	_, changed = f.machine.Force("s1", false, domain.ReasonAdmin)
	assert.True(t, changed)
	_, changed = f.machine.Force("s1", false, domain.ReasonAdmin)
	assert.False(t, changed)
}

func TestMachineListenerCanCancelTransition(t *testing.T) {
	t.Parallel()

	f := newFixture(DefaultConfig(), nil)
	f.bus.StateChange.Subscribe(func(e *hooks.StateChange) hooks.Decision {
		if e.Reason == domain.ReasonPattern {
			return hooks.Cancel
		}
		return hooks.Proceed
	})
	f.machine.Join("s1")

	_, changed := f.machine.Force("s1", true, domain.ReasonPattern)
	assert.False(t, changed)
	assert.False(t, f.machine.IsAFK("s1"))
}

func TestMachineStagedWarningsFireOncePerCycle(t *testing.T) {
	t.Parallel()

	f := newFixture(DefaultConfig(), nil)
	f.machine.Join("s1")

	var staged []int
	f.bus.Warning.Subscribe(func(e *hooks.Warning) hooks.Decision {
		staged = append(staged, e.SecondsRemaining)
		return hooks.Proceed
	})

	for _, idle := range []time.Duration{3 * time.Minute, 4 * time.Minute, 4*time.Minute + 5*time.Second, 4*time.Minute + 35*time.Second, 4*time.Minute + 36*time.Second} {
		f.activity.idle["s1"] = idle
		f.machine.Evaluate("s1")
	}
	assert.Equal(t, []int{60, 30}, staged)

	f.activity.idle["s1"] = time.Minute
	f.machine.Evaluate("s1")
	f.activity.idle["s1"] = 4*time.Minute + 55*time.Second
	f.machine.Evaluate("s1")

	assert.Equal(t, []int{60, 30, 10}, staged)
	assert.Equal(t, "You will be marked AFK in 10 seconds.", f.notifier.messages[2])
}

func TestMachineLeaveEmitsSummary(t *testing.T) {
	t.Parallel()

	f := newFixture(DefaultConfig(), nil)
	f.machine.Join("s1")

	var got domain.SessionSummary
	f.bus.SessionEnd.Subscribe(func(s *domain.SessionSummary) hooks.Decision {
		got = *s
		return hooks.Proceed
	})

	f.machine.Toggle("s1")
	f.clock.Advance(2 * time.Minute)
	f.machine.Toggle("s1")
	f.machine.Force("s1", true, domain.ReasonAdmin)
	f.clock.Advance(time.Minute)

	summary, ok := f.machine.Leave("s1")
	require.True(t, ok)
	assert.Equal(t, summary, got)
	assert.Equal(t, 2, summary.AFKEpisodes)
	assert.Equal(t, 3*time.Minute, summary.AFKTotal)
	assert.Equal(t, domain.StateAutoAFK, summary.FinalState)
	assert.Empty(t, f.machine.Sessions())
}
