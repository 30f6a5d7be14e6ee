package toml

import (
	"fmt"
	"time"

	"github.com/bnema/afkguard/internal/domain"
)

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Accounts []accountSchema `toml:"accounts"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported credits schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type accountSchema struct {
	ID             string          `toml:"id"`
	BalanceMinutes int             `toml:"balance_minutes"`
	LastEarnedAt   string          `toml:"last_earned_at,omitempty"`
	InZone         bool            `toml:"in_zone,omitempty"`
	RelocatedAt    string          `toml:"relocated_at,omitempty"`
	ReturnLocation *locationSchema `toml:"return_location,omitempty"`
	DecayWarnedAt  string          `toml:"decay_warned_at,omitempty"`
	UpdatedAt      string          `toml:"updated_at,omitempty"`
}

type locationSchema struct {
	World string  `toml:"world"`
	X     float64 `toml:"x"`
	Y     float64 `toml:"y"`
	Z     float64 `toml:"z"`
}

func toSchema(account domain.CreditAccount) accountSchema {
	encoded := accountSchema{
		ID:             string(account.SessionID),
		BalanceMinutes: account.BalanceMinutes,
		LastEarnedAt:   formatTime(account.LastEarnedAt),
		InZone:         account.InZone,
		RelocatedAt:    formatTime(account.RelocatedAt),
		DecayWarnedAt:  formatTime(account.DecayWarnedAt),
		UpdatedAt:      formatTime(account.UpdatedAt),
	}
	if loc := account.ReturnLocation; loc != nil {
		encoded.ReturnLocation = &locationSchema{World: loc.World, X: loc.X, Y: loc.Y, Z: loc.Z}
	}
	return encoded
}

func fromSchema(account accountSchema) domain.CreditAccount {
	decoded := domain.NewCreditAccount(domain.SessionID(account.ID))
	decoded.BalanceMinutes = account.BalanceMinutes
	decoded.LastEarnedAt = parseTime(account.LastEarnedAt)
	decoded.InZone = account.InZone
	decoded.RelocatedAt = parseTime(account.RelocatedAt)
	decoded.DecayWarnedAt = parseTime(account.DecayWarnedAt)
	decoded.UpdatedAt = parseTime(account.UpdatedAt)
	if loc := account.ReturnLocation; loc != nil {
		decoded.ReturnLocation = &domain.Location{World: loc.World, X: loc.X, Y: loc.Y, Z: loc.Z}
	}
	return decoded
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.UTC().Format(time.RFC3339Nano)
}
