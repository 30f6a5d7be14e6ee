package credit

import (
	"strconv"
	"strings"
	"time"

	"github.com/bnema/afkguard/internal/domain"
)

// TierConfig converts RatioActive active minutes into RatioCredit credit
// minutes, up to MaxBalance.
type TierConfig struct {
	Permission  string
	RatioActive int
	RatioCredit int
	MaxBalance  int
}

type RewardsConfig struct {
	Enabled      bool
	BonusMinutes int
}

type DecayConfig struct {
	Enabled         bool
	ExpireAfterDays int
	WarningDays     int
	Interval        time.Duration
}

type ZoneConfig struct {
	Enabled           bool
	Location          domain.Location
	ReturnCooldown    time.Duration
	MaxReturnDistance float64
}

// Messages are sent through the notifier. Placeholders: {minutes}, {days}.
type Messages struct {
	ConsumeStarted string
	LowBalance     string
	Relocated      string
	DecayWarning   string
	Expired        string
	Returned       string
}

type Config struct {
	Enabled          bool
	EarnPermission   string
	BypassPermission string

	EarnInterval     time.Duration
	MinSession       time.Duration
	MinActivityScore float64
	MinDistinctKinds int
	KindsWindow      time.Duration

	Tiers   map[domain.Tier]TierConfig
	Rewards RewardsConfig

	ConsumeEnabled      bool
	ConsumeInterval     time.Duration
	LowBalanceThreshold int

	Decay DecayConfig
	Zone  ZoneConfig

	FlushInterval time.Duration
	RecordHistory bool
	Messages      Messages
}

func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		EarnPermission:   "afkguard.credits.earn",
		BypassPermission: "afkguard.bypass",
		EarnInterval:     time.Minute,
		MinSession:       5 * time.Minute,
		MinActivityScore: 30,
		KindsWindow:      5 * time.Minute,
		Tiers: map[domain.Tier]TierConfig{
			domain.TierDefault: {RatioActive: 5, RatioCredit: 1, MaxBalance: 120},
			domain.TierVIP:     {Permission: "afkguard.tier.vip", RatioActive: 4, RatioCredit: 1, MaxBalance: 240},
			domain.TierPremium: {Permission: "afkguard.tier.premium", RatioActive: 3, RatioCredit: 1, MaxBalance: 480},
			domain.TierAdmin:   {Permission: "afkguard.tier.admin", RatioActive: 1, RatioCredit: 1, MaxBalance: 1440},
		},
		Rewards:             RewardsConfig{BonusMinutes: 1},
		ConsumeEnabled:      true,
		ConsumeInterval:     time.Minute,
		LowBalanceThreshold: 5,
		Decay: DecayConfig{
			Enabled:         true,
			ExpireAfterDays: 30,
			WarningDays:     3,
			Interval:        24 * time.Hour,
		},
		Zone: ZoneConfig{
			ReturnCooldown: 30 * time.Second,
		},
		FlushInterval: 30 * time.Second,
		RecordHistory: true,
		Messages: Messages{
			ConsumeStarted: "You are AFK. Using AFK credits: {minutes} minutes left.",
			LowBalance:     "Only {minutes} AFK credit minutes left.",
			Relocated:      "Your AFK credits ran out. You were moved to the AFK zone.",
			DecayWarning:   "Your AFK credits expire in {days} days. Play actively to keep them.",
			Expired:        "Your AFK credits expired after a long period without earning.",
			Returned:       "Welcome back. You were returned to your previous location.",
		},
	}
}

func (c Config) tier(t domain.Tier) TierConfig {
	tc, ok := c.Tiers[t]
	if !ok {
		tc = c.Tiers[domain.TierDefault]
	}
	if tc.RatioActive < 1 {
		tc.RatioActive = 1
	}
	if tc.RatioCredit < 0 {
		tc.RatioCredit = 0
	}
	if tc.MaxBalance < 0 {
		tc.MaxBalance = 0
	}
	return tc
}

func normalize(cfg Config) Config {
	def := DefaultConfig()
	if cfg.EarnInterval <= 0 {
		cfg.EarnInterval = def.EarnInterval
	}
	if cfg.ConsumeInterval <= 0 {
		cfg.ConsumeInterval = def.ConsumeInterval
	}
	if cfg.KindsWindow <= 0 {
		cfg.KindsWindow = def.KindsWindow
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.Decay.Interval <= 0 {
		cfg.Decay.Interval = def.Decay.Interval
	}
	if cfg.Tiers == nil {
		cfg.Tiers = def.Tiers
	}
	if _, ok := cfg.Tiers[domain.TierDefault]; !ok {
		tiers := make(map[domain.Tier]TierConfig, len(cfg.Tiers)+1)
		for k, v := range cfg.Tiers {
			tiers[k] = v
		}
		tiers[domain.TierDefault] = def.Tiers[domain.TierDefault]
		cfg.Tiers = tiers
	}
	return cfg
}

func render(template string, minutes, days int) string {
	return strings.NewReplacer(
		"{minutes}", strconv.Itoa(minutes),
		"{days}", strconv.Itoa(days),
	).Replace(template)
}
