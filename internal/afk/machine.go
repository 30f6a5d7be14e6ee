// Package afk owns each session's Active / AutoAFK / ManualAFK state.
package afk

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/hooks"
	"github.com/bnema/afkguard/internal/ports"
	"github.com/go-logr/logr"
)

const DefaultThreshold = 5 * time.Minute

// ThresholdOverride replaces the default inactivity threshold for sessions
// holding Permission. The highest Priority wins.
type ThresholdOverride struct {
	Permission string
	Threshold  time.Duration
	Priority   int
}

type Config struct {
	Threshold        time.Duration
	Overrides        []ThresholdOverride
	WarningSeconds   []int
	WarningMessage   string
	EnabledWorlds    []string
	BypassPermission string
}

func DefaultConfig() Config {
	return Config{
		Threshold:        DefaultThreshold,
		WarningSeconds:   []int{60, 30, 10},
		WarningMessage:   "You will be marked AFK in {seconds} seconds.",
		BypassPermission: "afkguard.bypass",
	}
}

// ActivitySource is the slice of the activity tracker the machine reads.
type ActivitySource interface {
	TimeSinceLastActivity(id domain.SessionID) time.Duration
	LastLocation(id domain.SessionID) (domain.Location, bool)
}

type Machine struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*session
	cfg      Config

	activity ActivitySource
	perms    ports.PermissionResolver
	notifier ports.Notifier
	bus      *hooks.Bus
	clock    ports.Clock
	log      logr.Logger
}

type session struct {
	mu          sync.Mutex
	state       domain.AFKState
	since       time.Time
	joinedAt    time.Time
	warned      map[int]bool
	afkEpisodes int
	afkTotal    time.Duration
}

func NewMachine(cfg Config, activity ActivitySource, perms ports.PermissionResolver, notifier ports.Notifier, bus *hooks.Bus, clock ports.Clock, log logr.Logger) *Machine {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if bus == nil {
		bus = hooks.NewBus()
	}
	return &Machine{
		sessions: map[domain.SessionID]*session{},
		cfg:      normalize(cfg),
		activity: activity,
		perms:    perms,
		notifier: notifier,
		bus:      bus,
		clock:    clock,
		log:      log,
	}
}

func (m *Machine) Reconfigure(cfg Config) {
	m.mu.Lock()
	m.cfg = normalize(cfg)
	m.mu.Unlock()
}

// Join starts a session in the Active state. Joining twice keeps the
// existing state.
func (m *Machine) Join(id domain.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		return
	}
	now := m.clock.Now()
	m.sessions[id] = &session{state: domain.StateActive, since: now, joinedAt: now, warned: map[int]bool{}}
}

// Leave discards the session and emits its summary.
func (m *Machine) Leave(id domain.SessionID) (domain.SessionSummary, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return domain.SessionSummary{}, false
	}

	now := m.clock.Now()
	s.mu.Lock()
	summary := domain.SessionSummary{
		Session:     id,
		FinalState:  s.state,
		JoinedAt:    s.joinedAt,
		EndedAt:     now,
		AFKEpisodes: s.afkEpisodes,
		AFKTotal:    s.afkTotal,
	}
	if s.state.IsAFK() {
		summary.AFKTotal += now.Sub(s.since)
	}
	s.mu.Unlock()

	m.bus.SessionEnd.Fire(&summary)
	return summary, true
}

// State reports Active for unknown sessions.
func (m *Machine) State(id domain.SessionID) domain.AFKState {
	s := m.session(id)
	if s == nil {
		return domain.StateActive
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (m *Machine) IsAFK(id domain.SessionID) bool {
	return m.State(id).IsAFK()
}

// ActiveSince returns when the session last entered the Active state.
func (m *Machine) ActiveSince(id domain.SessionID) (time.Time, bool) {
	s := m.session(id)
	if s == nil {
		return time.Time{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateActive {
		return time.Time{}, false
	}
	return s.since, true
}

func (m *Machine) Sessions() []domain.SessionID {
	m.mu.RLock()
	ids := make([]domain.SessionID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ThresholdFor resolves the inactivity threshold for a session.
func (m *Machine) ThresholdFor(id domain.SessionID) time.Duration {
	cfg := m.config()
	best := -1 << 31
	threshold := cfg.Threshold
	for _, o := range cfg.Overrides {
		if o.Priority > best && m.hasPermission(id, o.Permission) {
			best = o.Priority
			threshold = o.Threshold
		}
	}
	return threshold
}

// Evaluate is the periodic check for one session. It issues staged warnings
// and moves an idle Active session to AutoAFK.
func (m *Machine) Evaluate(id domain.SessionID) (domain.Transition, bool) {
	s := m.session(id)
	if s == nil {
		return domain.Transition{}, false
	}
	cfg := m.config()
	if m.bypassed(id, cfg) || !m.worldEnabled(id, cfg) {
		s.mu.Lock()
		clear(s.warned)
		s.mu.Unlock()
		return domain.Transition{}, false
	}

	threshold := m.ThresholdFor(id)
	idle := m.activity.TimeSinceLastActivity(id)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != domain.StateActive {
		return domain.Transition{}, false
	}

	if idle >= threshold {
		return m.transition(id, s, domain.StateAutoAFK, domain.ReasonInactivity)
	}

	m.stageWarning(id, s, cfg, threshold-idle)
	return domain.Transition{}, false
}

// OnActivity returns an AFK session to Active. Bypass-exempt sessions keep
// their state.
func (m *Machine) OnActivity(id domain.SessionID) (domain.Transition, bool) {
	s := m.session(id)
	if s == nil {
		return domain.Transition{}, false
	}
	if m.bypassed(id, m.config()) {
		return domain.Transition{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.state.IsAFK() {
		return domain.Transition{}, false
	}
	return m.transition(id, s, domain.StateActive, domain.ReasonActivity)
}

// Toggle flips manual AFK and reports whether the session is AFK afterwards.
// From AutoAFK the first toggle goes to ManualAFK and the second to Active,
// so toggling twice only restores a session that started Active or
// ManualAFK.
func (m *Machine) Toggle(id domain.SessionID) (bool, domain.Transition, bool) {
	s := m.session(id)
	if s == nil {
		return false, domain.Transition{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := domain.StateManualAFK
	if s.state == domain.StateManualAFK {
		target = domain.StateActive
	}
	tr, ok := m.transition(id, s, target, domain.ReasonToggle)
	return s.state.IsAFK(), tr, ok
}

// Force sets or clears AFK regardless of activity. Forcing AFK on a session
// that is already AFK is a no-op.
func (m *Machine) Force(id domain.SessionID, afk bool, reason domain.TransitionReason) (domain.Transition, bool) {
	s := m.session(id)
	if s == nil {
		return domain.Transition{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case afk && s.state.IsAFK():
		return domain.Transition{}, false
	case afk:
		return m.transition(id, s, domain.StateAutoAFK, reason)
	case !s.state.IsAFK():
		return domain.Transition{}, false
	default:
		return m.transition(id, s, domain.StateActive, reason)
	}
}

// transition must be called with s.mu held.
func (m *Machine) transition(id domain.SessionID, s *session, to domain.AFKState, reason domain.TransitionReason) (domain.Transition, bool) {
	if s.state == to {
		return domain.Transition{}, false
	}
	now := m.clock.Now()
	event := hooks.StateChange{Session: id, From: s.state, To: to, Reason: reason, At: now}
	if m.bus.StateChange.Fire(&event) == hooks.Cancel {
		m.log.V(1).Info("state change cancelled by listener", "session", id, "from", s.state, "to", to)
		return domain.Transition{}, false
	}

	if s.state.IsAFK() {
		s.afkTotal += now.Sub(s.since)
	}
	if to.IsAFK() && !s.state.IsAFK() {
		s.afkEpisodes++
	}

	tr := domain.Transition{Session: id, From: s.state, To: to, Reason: reason, At: now}
	s.state = to
	s.since = now
	clear(s.warned)

	m.log.Info("afk state changed", "session", id, "from", tr.From, "to", tr.To, "reason", reason)
	return tr, true
}

// stageWarning must be called with s.mu held.
func (m *Machine) stageWarning(id domain.SessionID, s *session, cfg Config, remaining time.Duration) {
	if len(cfg.WarningSeconds) == 0 {
		return
	}
	if remaining > time.Duration(cfg.WarningSeconds[0])*time.Second {
		clear(s.warned)
		return
	}

	due := -1
	for _, sec := range cfg.WarningSeconds {
		if remaining <= time.Duration(sec)*time.Second && !s.warned[sec] {
			s.warned[sec] = true
			due = sec
		}
	}
	if due < 0 {
		return
	}

	event := hooks.Warning{
		Session:          id,
		Stage:            hooks.StageAFK,
		SecondsRemaining: due,
		Message:          strings.ReplaceAll(cfg.WarningMessage, "{seconds}", strconv.Itoa(due)),
	}
	if m.bus.Warning.Fire(&event) == hooks.Cancel {
		return
	}
	if m.notifier != nil {
		m.notifier.Notify(id, event.Message)
	}
}

func (m *Machine) session(id domain.SessionID) *session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id]
}

func (m *Machine) config() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Machine) bypassed(id domain.SessionID, cfg Config) bool {
	return cfg.BypassPermission != "" && m.hasPermission(id, cfg.BypassPermission)
}

func (m *Machine) hasPermission(id domain.SessionID, permission string) bool {
	return m.perms != nil && m.perms.HasPermission(id, permission)
}

// worldEnabled is false when an allow-list exists and the session's world is
// unknown or not on it.
func (m *Machine) worldEnabled(id domain.SessionID, cfg Config) bool {
	if len(cfg.EnabledWorlds) == 0 {
		return true
	}
	loc, ok := m.activity.LastLocation(id)
	if !ok {
		return false
	}
	for _, w := range cfg.EnabledWorlds {
		if w == loc.World {
			return true
		}
	}
	return false
}

func normalize(cfg Config) Config {
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.WarningMessage == "" {
		cfg.WarningMessage = DefaultConfig().WarningMessage
	}
	warnings := make([]int, 0, len(cfg.WarningSeconds))
	for _, sec := range cfg.WarningSeconds {
		if sec > 0 {
			warnings = append(warnings, sec)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(warnings)))
	cfg.WarningSeconds = warnings
	return cfg
}
