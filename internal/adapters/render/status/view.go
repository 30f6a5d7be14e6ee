// Package status renders credit balances and history for the terminal.
package status

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/afkguard/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

// Balance is one session's row in the balance view.
type Balance struct {
	Account domain.CreditAccount
	Tier    domain.Tier
	Max     int
}

type RenderOptions struct {
	Now time.Time
}

const barWidth = 24

func Render(balances []Balance, opts RenderOptions) string {
	s := newStyles()
	lines := []string{
		s.title.Render("AFK Credits"),
		s.header.Render(fmt.Sprintf("sessions: %d", len(balances))),
	}

	if len(balances) == 0 {
		lines = append(lines, s.empty.Render("No credit accounts stored."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, b := range balances {
		lines = append(lines, s.section.Render(renderBalance(b, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderBalance(b Balance, opts RenderOptions, s styles) string {
	tier := b.Tier
	if tier == "" {
		tier = domain.TierDefault
	}
	parts := []string{
		s.session.Render(fmt.Sprintf("%s (%s)", b.Account.SessionID, tier)),
		balanceLine(b, s),
		s.meta.Render(earnedLine(b.Account.LastEarnedAt, opts.Now)),
	}

	if b.Account.InZone {
		zone := "[in zone]"
		if !b.Account.RelocatedAt.IsZero() && !opts.Now.IsZero() {
			zone = fmt.Sprintf("[in zone for %s]", formatDuration(opts.Now.Sub(b.Account.RelocatedAt)))
		}
		parts = append(parts, s.warning.Render(zone))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func balanceLine(b Balance, s styles) string {
	label := s.key.Render("balance:")
	if b.Max <= 0 {
		return lipgloss.JoinHorizontal(lipgloss.Top, label, " ", s.detail.Render(fmt.Sprintf("%d min", b.Account.BalanceMinutes)))
	}

	percent := clampPercent(100 * float64(b.Account.BalanceMinutes) / float64(b.Max))
	amountStyle := lipgloss.NewStyle().Foreground(interpolateColor(percent, 0, 100))
	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		label,
		" ",
		renderProgressBar(percent, barWidth, s),
		" ",
		amountStyle.Render(fmt.Sprintf("%d/%d min", b.Account.BalanceMinutes, b.Max)),
	)
}

func earnedLine(lastEarned, now time.Time) string {
	if lastEarned.IsZero() {
		return "never earned"
	}
	if now.IsZero() {
		return "last earned " + lastEarned.Format(time.RFC3339)
	}
	if !lastEarned.Before(now) {
		return "last earned just now"
	}
	return fmt.Sprintf("last earned %s ago", formatDuration(now.Sub(lastEarned)))
}

// RenderHistory renders transactions in the order given.
func RenderHistory(id domain.SessionID, txs []domain.Transaction) string {
	s := newStyles()
	lines := []string{
		s.title.Render(fmt.Sprintf("Credit history: %s", id)),
		s.header.Render(fmt.Sprintf("entries: %d", len(txs))),
	}
	if len(txs) == 0 {
		lines = append(lines, s.empty.Render("No transactions recorded."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, tx := range txs {
		amount := s.gain.Render(fmt.Sprintf("%+d", tx.AmountMinutes))
		if tx.AmountMinutes < 0 {
			amount = s.loss.Render(fmt.Sprintf("%+d", tx.AmountMinutes))
		}
		line := lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.meta.Render(tx.At.UTC().Format("2006-01-02 15:04:05")),
			" ",
			s.key.Render(fmt.Sprintf("%-11s", tx.Type)),
			" ",
			amount,
			" ",
			s.detail.Render(fmt.Sprintf("-> %d", tx.BalanceAfter)),
		)
		if tx.Note != "" {
			line += " " + s.empty.Render(tx.Note)
		}
		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderProgressBar(percent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	filled := int(math.Round(float64(width) * clampPercent(percent) / 100))
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "under a minute"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minute")
	case d < 48*time.Hour:
		return plural(int(d/time.Hour), "hour")
	default:
		return plural(int(d/(24*time.Hour)), "day")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// interpolateColor maps value onto the 240..255 greyscale ramp.
func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	code := int(240 + 15*normalized)
	return lipgloss.Color(fmt.Sprintf("%d", code))
}
