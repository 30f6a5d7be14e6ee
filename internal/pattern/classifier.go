// Package pattern looks for scripted movement in a session's position trail.
package pattern

import (
	"sync"
	"time"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/ports"
	"github.com/go-logr/logr"
	"github.com/sourcegraph/conc/pool"
)

type Config struct {
	Enabled            bool
	Interval           time.Duration
	Window             int
	ViolationThreshold int
	Workers            int
	Thresholds         Thresholds
}

func DefaultConfig() Config {
	return Config{
		Enabled:            true,
		Interval:           10 * time.Second,
		Window:             40,
		ViolationThreshold: 3,
		Workers:            4,
		Thresholds:         DefaultThresholds(),
	}
}

// Stats are the per-session counters kept between analyses.
type Stats struct {
	Counts       map[domain.PatternType]int
	Violations   int
	Detections   int
	LastAnalysis time.Time
}

func (s Stats) clone() Stats {
	counts := make(map[domain.PatternType]int, len(s.Counts))
	for k, v := range s.Counts {
		counts[k] = v
	}
	s.Counts = counts
	return s
}

// Verdict is the outcome of one analysis cycle for one session.
type Verdict struct {
	Session    domain.SessionID
	Detections []Detection
	Confidence float64
	Violations int
	// ThresholdReached is set on the cycle that hit the violation
	// threshold. The violation count is already reset when it is returned.
	ThresholdReached bool
}

func (v Verdict) Fired() bool {
	return len(v.Detections) > 0
}

func (v Verdict) Patterns() []domain.PatternType {
	out := make([]domain.PatternType, 0, len(v.Detections))
	for _, d := range v.Detections {
		out = append(out, d.Pattern)
	}
	return out
}

type HistorySource interface {
	History(id domain.SessionID) []domain.Sample
}

type Classifier struct {
	mu    sync.Mutex
	stats map[domain.SessionID]*Stats
	cfg   Config

	source HistorySource
	clock  ports.Clock
	log    logr.Logger
}

func NewClassifier(cfg Config, source HistorySource, clock ports.Clock, log logr.Logger) *Classifier {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &Classifier{
		stats:  map[domain.SessionID]*Stats{},
		cfg:    normalize(cfg),
		source: source,
		clock:  clock,
		log:    log,
	}
}

func (c *Classifier) Reconfigure(cfg Config) {
	c.mu.Lock()
	c.cfg = normalize(cfg)
	c.mu.Unlock()
}

func (c *Classifier) Config() Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Analyze runs one cycle for a session. Short histories are skipped without
// touching the counters.
func (c *Classifier) Analyze(id domain.SessionID) Verdict {
	cfg := c.Config()
	verdict := Verdict{Session: id}

	samples := c.source.History(id)
	if len(samples) < cfg.Thresholds.MinSamples {
		return verdict
	}
	if len(samples) > cfg.Window {
		samples = samples[len(samples)-cfg.Window:]
	}

	var scoreSum float64
	for _, d := range Detect(samples, cfg.Thresholds) {
		if d.Detected {
			verdict.Detections = append(verdict.Detections, d)
			scoreSum += d.Score
		}
	}
	if n := len(verdict.Detections); n > 0 {
		verdict.Confidence = scoreSum / float64(n)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	st, ok := c.stats[id]
	if !ok {
		st = &Stats{Counts: map[domain.PatternType]int{}}
		c.stats[id] = st
	}
	st.LastAnalysis = c.clock.Now()

	if verdict.Fired() {
		for _, d := range verdict.Detections {
			st.Counts[d.Pattern]++
			st.Detections++
		}
		st.Violations++
	} else if st.Violations > 0 {
		st.Violations--
	}

	verdict.Violations = st.Violations
	if cfg.ViolationThreshold > 0 && st.Violations >= cfg.ViolationThreshold {
		verdict.ThresholdReached = true
		st.Violations = 0
	}

	if verdict.Fired() {
		c.log.V(1).Info("suspicious movement", "session", id, "patterns", verdict.Patterns(), "violations", verdict.Violations, "confidence", verdict.Confidence)
	}
	return verdict
}

// Sweep analyzes ids on a bounded worker pool and hands every verdict with
// at least one detection to onVerdict, which may run concurrently.
func (c *Classifier) Sweep(ids []domain.SessionID, onVerdict func(Verdict)) {
	cfg := c.Config()
	if !cfg.Enabled || len(ids) == 0 {
		return
	}

	p := pool.New().WithMaxGoroutines(cfg.Workers)
	for _, id := range ids {
		id := id
		p.Go(func() {
			v := c.Analyze(id)
			if v.Fired() && onVerdict != nil {
				onVerdict(v)
			}
		})
	}
	p.Wait()
}

func (c *Classifier) Stats(id domain.SessionID) (Stats, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.stats[id]
	if !ok {
		return Stats{}, false
	}
	return st.clone(), true
}

func (c *Classifier) Forget(id domain.SessionID) {
	c.mu.Lock()
	delete(c.stats, id)
	c.mu.Unlock()
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.Thresholds.MinSamples <= 0 {
		cfg.Thresholds.MinSamples = def.Thresholds.MinSamples
	}
	if cfg.Window < cfg.Thresholds.MinSamples {
		cfg.Window = cfg.Thresholds.MinSamples
	}
	return cfg
}
