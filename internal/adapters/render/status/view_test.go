package status

import (
	"testing"
	"time"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
)

func TestRenderSingleBalance(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

	output := Render([]Balance{{
		Account: domain.CreditAccount{
			SessionID:      "steve",
			BalanceMinutes: 30,
			LastEarnedAt:   now.Add(-5 * time.Minute),
		},
		Tier: domain.TierVIP,
		Max:  120,
	}}, RenderOptions{Now: now})

	assert.Contains(t, output, "sessions: 1")
	assert.Contains(t, output, "steve (vip)")
	assert.Contains(t, output, "balance:")
	assert.Contains(t, output, "30/120 min")
	assert.Contains(t, output, "[")
	assert.Contains(t, output, "last earned 5 minutes ago")
	assert.NotContains(t, output, "in zone")
}

func TestRenderMultipleBalancesAndZone(t *testing.T) {
	now := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

	output := Render([]Balance{
		{
			Account: domain.CreditAccount{SessionID: "alex", BalanceMinutes: 0, InZone: true, RelocatedAt: now.Add(-2 * time.Hour)},
			Max:     60,
		},
		{
			Account: domain.CreditAccount{SessionID: "steve", BalanceMinutes: 45, LastEarnedAt: now.Add(-3 * 24 * time.Hour)},
			Tier:    domain.TierAdmin,
			Max:     -1,
		},
	}, RenderOptions{Now: now})

	assert.Contains(t, output, "sessions: 2")
	assert.Contains(t, output, "alex (default)")
	assert.Contains(t, output, "0/60 min")
	assert.Contains(t, output, "never earned")
	assert.Contains(t, output, "[in zone for 2 hours]")
	assert.Contains(t, output, "steve (admin)")
	assert.Contains(t, output, "balance: 45 min")
	assert.Contains(t, output, "last earned 3 days ago")
}

func TestRenderEmpty(t *testing.T) {
	output := Render(nil, RenderOptions{})

	assert.Contains(t, output, "sessions: 0")
	assert.Contains(t, output, "No credit accounts stored.")
}

func TestRenderHistory(t *testing.T) {
	at := time.Date(2026, 2, 14, 11, 0, 0, 0, time.UTC)

	output := RenderHistory("steve", []domain.Transaction{
		{Type: domain.TxConsume, AmountMinutes: -1, BalanceAfter: 9, At: at.Add(time.Minute)},
		{Type: domain.TxAdminGive, AmountMinutes: 10, BalanceAfter: 10, At: at, Note: "console"},
	})

	assert.Contains(t, output, "Credit history: steve")
	assert.Contains(t, output, "entries: 2")
	assert.Contains(t, output, "2026-02-14 11:01:00")
	assert.Contains(t, output, "CONSUME")
	assert.Contains(t, output, "-1")
	assert.Contains(t, output, "+10")
	assert.Contains(t, output, "-> 10")
	assert.Contains(t, output, "console")

	assert.Contains(t, RenderHistory("alex", nil), "No transactions recorded.")
}

func TestRenderProgressBarWidth(t *testing.T) {
	s := newStyles()

	tests := []struct {
		name    string
		percent float64
		filled  int
	}{
		{name: "empty", percent: 0, filled: 0},
		{name: "half", percent: 50, filled: 12},
		{name: "full", percent: 100, filled: 24},
		{name: "over", percent: 180, filled: 24},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := renderProgressBar(tt.percent, barWidth, s)
			assert.Equal(t, barWidth+2, lipgloss.Width(bar))
			assert.Equal(t, tt.filled, countRune(bar, '='))
		})
	}
}

func countRune(s string, r rune) int {
	n := 0
	for _, c := range s {
		if c == r {
			n++
		}
	}
	return n
}

func TestInterpolateColorBounds(t *testing.T) {
	assert.Equal(t, lipgloss.Color("240"), interpolateColor(-5, 0, 100))
	assert.Equal(t, lipgloss.Color("255"), interpolateColor(100, 0, 100))
	assert.Equal(t, lipgloss.Color("255"), interpolateColor(1, 1, 1))
}
