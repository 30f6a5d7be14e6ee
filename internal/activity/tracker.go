// Package activity records when each session last did something that counts
// as presence, and keeps a bounded trail of its positions.
package activity

import (
	"sort"
	"sync"
	"time"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/ports"
	"github.com/go-logr/logr"
)

const (
	DefaultHistoryCapacity = 100
	DefaultMovementEpsilon = 0.1
	DefaultScoreWindow     = 5 * time.Minute
)

type Config struct {
	HistoryCapacity  int
	MovementEpsilon  float64
	ScoreWindow      time.Duration
	BypassPermission string
}

func DefaultConfig() Config {
	return Config{
		HistoryCapacity:  DefaultHistoryCapacity,
		MovementEpsilon:  DefaultMovementEpsilon,
		ScoreWindow:      DefaultScoreWindow,
		BypassPermission: "afkguard.bypass",
	}
}

type Tracker struct {
	mu      sync.RWMutex
	records map[domain.SessionID]*record
	cfg     Config

	perms ports.PermissionResolver
	clock ports.Clock
	log   logr.Logger
}

type record struct {
	mu             sync.Mutex
	lastActivityAt time.Time
	history        *ring
	location       *domain.Location
	kinds          map[domain.ActivityKind]time.Time
	// minutes holds the start of every minute with qualifying activity
	// inside the score window.
	minutes []time.Time
}

var _ ports.ActivityScorer = (*Tracker)(nil)

func NewTracker(cfg Config, perms ports.PermissionResolver, clock ports.Clock, log logr.Logger) *Tracker {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Tracker{
		records: map[domain.SessionID]*record{},
		cfg:     normalize(cfg),
		perms:   perms,
		clock:   clock,
		log:     log,
	}
}

func (t *Tracker) Reconfigure(cfg Config) {
	cfg = normalize(cfg)

	t.mu.Lock()
	t.cfg = cfg
	records := make([]*record, 0, len(t.records))
	for _, rec := range t.records {
		records = append(records, rec)
	}
	t.mu.Unlock()

	for _, rec := range records {
		rec.mu.Lock()
		rec.history.resize(cfg.HistoryCapacity)
		rec.mu.Unlock()
	}
}

// Start opens a record for a joining session, stamping it as just active.
func (t *Tracker) Start(id domain.SessionID) {
	if t.bypassed(id) {
		return
	}
	rec := t.recordFor(id, true)
	rec.mu.Lock()
	rec.lastActivityAt = t.clock.Now()
	rec.mu.Unlock()
}

// RecordActivity stores a signal and reports whether it qualifies as
// presence. Only sessions opened with Start are tracked, and bypass-exempt
// sessions never are.
func (t *Tracker) RecordActivity(id domain.SessionID, pos *domain.Location, kind domain.ActivityKind) bool {
	if !kind.Valid() {
		t.log.V(1).Info("ignoring unknown activity kind", "session", id, "kind", kind)
		return false
	}
	if t.bypassed(id) {
		return false
	}

	rec := t.recordFor(id, false)
	if rec == nil {
		t.log.V(1).Info("ignoring activity from unknown session", "session", id, "kind", kind)
		return false
	}
	cfg := t.config()
	now := t.clock.Now()

	rec.mu.Lock()
	defer rec.mu.Unlock()

	moved := false
	if pos != nil {
		moved = rec.observe(*pos, now, cfg.MovementEpsilon)
	}

	qualifying := kind != domain.ActivityMove || moved
	if !qualifying {
		return false
	}

	rec.lastActivityAt = now
	rec.kinds[kind] = now
	rec.markMinute(now, cfg.ScoreWindow)
	return true
}

// Touch refreshes the activity timestamp without a signal.
func (t *Tracker) Touch(id domain.SessionID) {
	if t.bypassed(id) {
		return
	}
	rec := t.recordFor(id, false)
	if rec == nil {
		return
	}
	rec.mu.Lock()
	rec.lastActivityAt = t.clock.Now()
	rec.mu.Unlock()
}

// TimeSinceLastActivity returns zero for unseen sessions.
func (t *Tracker) TimeSinceLastActivity(id domain.SessionID) time.Duration {
	rec := t.recordFor(id, false)
	if rec == nil {
		return 0
	}
	rec.mu.Lock()
	last := rec.lastActivityAt
	rec.mu.Unlock()

	if last.IsZero() {
		return 0
	}
	elapsed := t.clock.Now().Sub(last)
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// History returns a copy of the session's position trail, oldest first.
func (t *Tracker) History(id domain.SessionID) []domain.Sample {
	rec := t.recordFor(id, false)
	if rec == nil {
		return nil
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.history.snapshot()
}

func (t *Tracker) LastLocation(id domain.SessionID) (domain.Location, bool) {
	rec := t.recordFor(id, false)
	if rec == nil {
		return domain.Location{}, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.location == nil {
		return domain.Location{}, false
	}
	return *rec.location, true
}

// DistinctKinds counts activity kinds seen since the given time.
func (t *Tracker) DistinctKinds(id domain.SessionID, since time.Time) int {
	rec := t.recordFor(id, false)
	if rec == nil {
		return 0
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	count := 0
	for _, at := range rec.kinds {
		if !at.Before(since) {
			count++
		}
	}
	return count
}

// ActivityScore is the share of minutes in the score window that saw
// qualifying activity, scaled to [0,100].
func (t *Tracker) ActivityScore(id domain.SessionID) float64 {
	rec := t.recordFor(id, false)
	if rec == nil {
		return 0
	}
	window := t.config().ScoreWindow
	now := t.clock.Now()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.pruneMinutes(now, window)

	slots := int(window / time.Minute)
	if slots < 1 {
		slots = 1
	}
	score := float64(len(rec.minutes)) / float64(slots) * 100
	if score > 100 {
		score = 100
	}
	return score
}

func (t *Tracker) End(id domain.SessionID) {
	t.mu.Lock()
	delete(t.records, id)
	t.mu.Unlock()
}

func (t *Tracker) Sessions() []domain.SessionID {
	t.mu.RLock()
	ids := make([]domain.SessionID, 0, len(t.records))
	for id := range t.records {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (t *Tracker) config() Config {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cfg
}

func (t *Tracker) bypassed(id domain.SessionID) bool {
	bypass := t.config().BypassPermission
	return bypass != "" && t.perms != nil && t.perms.HasPermission(id, bypass)
}

func (t *Tracker) recordFor(id domain.SessionID, create bool) *record {
	t.mu.RLock()
	rec, ok := t.records[id]
	t.mu.RUnlock()
	if ok || !create {
		return rec
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok = t.records[id]; ok {
		return rec
	}
	rec = &record{
		history: newRing(t.cfg.HistoryCapacity),
		kinds:   map[domain.ActivityKind]time.Time{},
	}
	t.records[id] = rec
	return rec
}

// observe updates the position trail and reports whether the session moved
// farther than epsilon.
func (r *record) observe(pos domain.Location, now time.Time, epsilon float64) bool {
	if r.location == nil || r.location.World != pos.World {
		r.history.clear()
		loc := pos
		r.location = &loc
		r.history.push(domain.SampleAt(pos, now))
		return true
	}

	delta := r.location.DistanceTo(pos)
	if delta == 0 {
		return false
	}
	*r.location = pos

	if last, ok := r.history.last(); !ok || now.After(last.At) {
		r.history.push(domain.SampleAt(pos, now))
	}
	return delta > epsilon
}

func (r *record) markMinute(now time.Time, window time.Duration) {
	minute := now.Truncate(time.Minute)
	r.pruneMinutes(now, window)
	if n := len(r.minutes); n > 0 && r.minutes[n-1].Equal(minute) {
		return
	}
	r.minutes = append(r.minutes, minute)
}

func (r *record) pruneMinutes(now time.Time, window time.Duration) {
	cutoff := now.Add(-window)
	keep := r.minutes[:0]
	for _, m := range r.minutes {
		if m.After(cutoff) {
			keep = append(keep, m)
		}
	}
	r.minutes = keep
}

func normalize(cfg Config) Config {
	if cfg.HistoryCapacity <= 0 {
		cfg.HistoryCapacity = DefaultHistoryCapacity
	}
	if cfg.MovementEpsilon < 0 {
		cfg.MovementEpsilon = 0
	}
	if cfg.ScoreWindow <= 0 {
		cfg.ScoreWindow = DefaultScoreWindow
	}
	return cfg
}
