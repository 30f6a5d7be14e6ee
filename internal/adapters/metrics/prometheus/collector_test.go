package prometheus

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/hooks"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorCountsBusEvents(t *testing.T) {
	t.Parallel()

	bus := hooks.NewBus()
	c := NewCollector()
	c.Attach(bus)

	assert.Equal(t, hooks.Proceed, bus.StateChange.Fire(&hooks.StateChange{
		Session: "steve", To: domain.StateAutoAFK, Reason: domain.ReasonInactivity,
	}))
	bus.StateChange.Fire(&hooks.StateChange{Session: "alex", To: domain.StateAutoAFK, Reason: domain.ReasonInactivity})
	bus.Warning.Fire(&hooks.Warning{Session: "steve", Stage: hooks.StageRemoval, SecondsRemaining: 30})
	bus.Pattern.Fire(&hooks.PatternDetected{
		Session:  "steve",
		Patterns: []domain.PatternType{domain.PatternCircular, domain.PatternRepetitive},
	})
	bus.Credit.Fire(&hooks.CreditChange{Session: "steve", Kind: hooks.CreditEarned, Amount: 3})
	bus.Credit.Fire(&hooks.CreditChange{Session: "steve", Kind: hooks.CreditConsumed, Amount: 1})
	bus.SessionEnd.Fire(&domain.SessionSummary{Session: "steve", AFKTotal: 90 * time.Second})

	assert.InDelta(t, 2, testutil.ToFloat64(c.transitions.WithLabelValues("auto_afk", "inactivity")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.warnings.WithLabelValues("removal")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.patterns.WithLabelValues(string(domain.PatternCircular))), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(c.credits.WithLabelValues("earned")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.credits.WithLabelValues("consumed")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(c.sessions), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(c.afkSeconds))
}

func TestCollectorHandlerServesMetrics(t *testing.T) {
	t.Parallel()

	bus := hooks.NewBus()
	c := NewCollector()
	c.Attach(bus)
	bus.Warning.Fire(&hooks.Warning{Stage: hooks.StageAFK})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `afkguard_warnings_total{stage="afk"} 1`)
}
