// Package config loads afkguard settings from a TOML file through viper and
// converts them into the per-component configuration types.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/afkguard/internal/action"
	"github.com/bnema/afkguard/internal/activity"
	"github.com/bnema/afkguard/internal/adapters/world"
	"github.com/bnema/afkguard/internal/afk"
	"github.com/bnema/afkguard/internal/application"
	"github.com/bnema/afkguard/internal/credit"
	"github.com/bnema/afkguard/internal/domain"
	"github.com/bnema/afkguard/internal/pattern"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/viper"
)

const (
	configName = "afkguard"
	configType = "toml"
	configDir  = ".afkguard"

	BackendSQLite = "sqlite"
	BackendTOML   = "toml"
)

type Config struct {
	Detection   DetectionConfig   `mapstructure:"detection"`
	Activity    ActivityConfig    `mapstructure:"activity"`
	Patterns    PatternsConfig    `mapstructure:"patterns"`
	Action      ActionConfig      `mapstructure:"action"`
	Credits     CreditsConfig     `mapstructure:"credits"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Worlds      []WorldConfig     `mapstructure:"worlds"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

type DetectionConfig struct {
	Threshold        time.Duration       `mapstructure:"threshold"`
	CheckInterval    time.Duration       `mapstructure:"check_interval"`
	WarningSeconds   []int               `mapstructure:"warning_seconds"`
	WarningMessage   string              `mapstructure:"warning_message"`
	EnabledWorlds    []string            `mapstructure:"enabled_worlds"`
	BypassPermission string              `mapstructure:"bypass_permission"`
	Overrides        []ThresholdOverride `mapstructure:"overrides"`
}

type ThresholdOverride struct {
	Permission string        `mapstructure:"permission"`
	Threshold  time.Duration `mapstructure:"threshold"`
	Priority   int           `mapstructure:"priority"`
}

type ActivityConfig struct {
	HistoryCapacity int           `mapstructure:"history_capacity"`
	MovementEpsilon float64       `mapstructure:"movement_epsilon"`
	ScoreWindow     time.Duration `mapstructure:"score_window"`
}

type PatternsConfig struct {
	Enabled              bool          `mapstructure:"enabled"`
	Interval             time.Duration `mapstructure:"interval"`
	Window               int           `mapstructure:"window"`
	MinSamples           int           `mapstructure:"min_samples"`
	ViolationThreshold   int           `mapstructure:"violation_threshold"`
	Workers              int           `mapstructure:"workers"`
	ConfinedExtent       float64       `mapstructure:"confined_extent"`
	CircleRadius         float64       `mapstructure:"circle_radius"`
	CircleMinDelta       float64       `mapstructure:"circle_min_delta"`
	CircleMaxDelta       float64       `mapstructure:"circle_max_delta"`
	CircleRatio          float64       `mapstructure:"circle_ratio"`
	RepetitionSimilarity float64       `mapstructure:"repetition_similarity"`
	RepetitionScale      float64       `mapstructure:"repetition_scale"`
	PendulumStep         float64       `mapstructure:"pendulum_step"`
	PendulumRatio        float64       `mapstructure:"pendulum_ratio"`
	Message              string        `mapstructure:"message"`

	// HoldAgainstMovement keeps a pattern-flagged session AFK until a
	// non-move signal arrives.
	HoldAgainstMovement bool `mapstructure:"hold_against_movement"`
}

type ActionConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Mode           string        `mapstructure:"mode"`
	Delay          time.Duration `mapstructure:"delay"`
	WarningSeconds []int         `mapstructure:"warning_seconds"`
	ApplyToManual  bool          `mapstructure:"apply_to_manual"`
	KickReason     string        `mapstructure:"kick_reason"`
	KickMessage    string        `mapstructure:"kick_message"`
	WarningMessage string        `mapstructure:"warning_message"`
}

type TierConfig struct {
	Permission  string `mapstructure:"permission"`
	RatioActive int    `mapstructure:"ratio_active"`
	RatioCredit int    `mapstructure:"ratio_credit"`
	MaxBalance  int    `mapstructure:"max_balance"`
}

type LocationConfig struct {
	World string  `mapstructure:"world"`
	X     float64 `mapstructure:"x"`
	Y     float64 `mapstructure:"y"`
	Z     float64 `mapstructure:"z"`
}

func (l LocationConfig) Location() domain.Location {
	return domain.Location{World: l.World, X: l.X, Y: l.Y, Z: l.Z}
}

type CreditsConfig struct {
	Enabled             bool                  `mapstructure:"enabled"`
	EarnPermission      string                `mapstructure:"earn_permission"`
	EarnInterval        time.Duration         `mapstructure:"earn_interval"`
	MinSession          time.Duration         `mapstructure:"min_session"`
	MinActivityScore    float64               `mapstructure:"min_activity_score"`
	MinDistinctKinds    int                   `mapstructure:"min_distinct_kinds"`
	ConsumeEnabled      bool                  `mapstructure:"consume_enabled"`
	ConsumeInterval     time.Duration         `mapstructure:"consume_interval"`
	LowBalanceThreshold int                   `mapstructure:"low_balance_threshold"`
	FlushInterval       time.Duration         `mapstructure:"flush_interval"`
	RecordHistory       bool                  `mapstructure:"record_history"`
	Tiers               map[string]TierConfig `mapstructure:"tiers"`
	Rewards             RewardsConfig         `mapstructure:"rewards"`
	Decay               DecayConfig           `mapstructure:"decay"`
	Zone                ZoneConfig            `mapstructure:"zone"`
}

type RewardsConfig struct {
	Enabled      bool `mapstructure:"enabled"`
	BonusMinutes int  `mapstructure:"bonus_minutes"`
}

type DecayConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ExpireAfterDays int           `mapstructure:"expire_after_days"`
	WarningDays     int           `mapstructure:"warning_days"`
	Interval        time.Duration `mapstructure:"interval"`
}

type ZoneConfig struct {
	Enabled           bool           `mapstructure:"enabled"`
	Location          LocationConfig `mapstructure:"location"`
	ReturnCooldown    time.Duration  `mapstructure:"return_cooldown"`
	MaxReturnDistance float64        `mapstructure:"max_return_distance"`
}

type StorageConfig struct {
	Backend    string `mapstructure:"backend"`
	Path       string `mapstructure:"path"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type PermissionsConfig struct {
	Defaults []string `mapstructure:"defaults"`
	Grants   []Grant  `mapstructure:"grants"`
}

type Grant struct {
	Session     string   `mapstructure:"session"`
	Permissions []string `mapstructure:"permissions"`
}

type BoxConfig struct {
	Min LocationConfig `mapstructure:"min"`
	Max LocationConfig `mapstructure:"max"`
}

type WorldConfig struct {
	Name  string         `mapstructure:"name"`
	Spawn LocationConfig `mapstructure:"spawn"`
	Solid []BoxConfig    `mapstructure:"solid"`
}

type SchedulerConfig struct {
	Workers int `mapstructure:"workers"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// NewViper prepares a viper instance with every default registered and the
// config file read. A missing file is not an error. An explicit path wins
// over the default location under the home directory.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}
	SetDefaults(v, filepath.Join(homeDir, configDir))

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %q: %w", path, err)
		}
		return v, nil
	}

	v.SetConfigName(configName)
	v.SetConfigType(configType)
	v.AddConfigPath(filepath.Join(homeDir, configDir))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

// Load decodes and validates the settings held by v.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var result *multierror.Error
	positive := map[string]time.Duration{
		"detection.threshold":      c.Detection.Threshold,
		"detection.check_interval": c.Detection.CheckInterval,
		"patterns.interval":        c.Patterns.Interval,
		"credits.earn_interval":    c.Credits.EarnInterval,
		"credits.consume_interval": c.Credits.ConsumeInterval,
		"credits.flush_interval":   c.Credits.FlushInterval,
		"credits.decay.interval":   c.Credits.Decay.Interval,
	}
	for _, key := range sortedKeys(positive) {
		if positive[key] <= 0 {
			result = multierror.Append(result, fmt.Errorf("%s must be positive", key))
		}
	}
	if c.Patterns.Window < c.Patterns.MinSamples {
		result = multierror.Append(result, errors.New("patterns.window must be at least patterns.min_samples"))
	}
	if _, ok := action.ParseMode(c.Action.Mode); !ok {
		result = multierror.Append(result, fmt.Errorf("action.mode %q must be kick or relocate", c.Action.Mode))
	}
	switch c.Storage.Backend {
	case BackendSQLite, BackendTOML:
	default:
		result = multierror.Append(result, fmt.Errorf("storage.backend %q must be sqlite or toml", c.Storage.Backend))
	}
	for _, name := range sortedKeys(c.Credits.Tiers) {
		tier := c.Credits.Tiers[name]
		if _, ok := domain.ParseTier(name); !ok {
			result = multierror.Append(result, fmt.Errorf("credits.tiers.%s is not a known tier", name))
		}
		if tier.RatioActive < 1 || tier.RatioCredit < 1 {
			result = multierror.Append(result, fmt.Errorf("credits.tiers.%s ratios must be at least 1", name))
		}
		if tier.MaxBalance < 0 {
			result = multierror.Append(result, fmt.Errorf("credits.tiers.%s.max_balance must not be negative", name))
		}
	}
	return result.ErrorOrNil()
}

func (c Config) TrackerConfig() activity.Config {
	return activity.Config{
		HistoryCapacity:  c.Activity.HistoryCapacity,
		MovementEpsilon:  c.Activity.MovementEpsilon,
		ScoreWindow:      c.Activity.ScoreWindow,
		BypassPermission: c.Detection.BypassPermission,
	}
}

func (c Config) ClassifierConfig() pattern.Config {
	p := c.Patterns
	return pattern.Config{
		Enabled:            p.Enabled,
		Interval:           p.Interval,
		Window:             p.Window,
		ViolationThreshold: p.ViolationThreshold,
		Workers:            p.Workers,
		Thresholds: pattern.Thresholds{
			MinSamples:           p.MinSamples,
			ConfinedExtent:       p.ConfinedExtent,
			CircleRadius:         p.CircleRadius,
			CircleMinDelta:       p.CircleMinDelta,
			CircleMaxDelta:       p.CircleMaxDelta,
			CircleRatio:          p.CircleRatio,
			RepetitionSimilarity: p.RepetitionSimilarity,
			RepetitionScale:      p.RepetitionScale,
			PendulumStep:         p.PendulumStep,
			PendulumRatio:        p.PendulumRatio,
		},
	}
}

func (c Config) MachineConfig() afk.Config {
	overrides := make([]afk.ThresholdOverride, 0, len(c.Detection.Overrides))
	for _, o := range c.Detection.Overrides {
		overrides = append(overrides, afk.ThresholdOverride{Permission: o.Permission, Threshold: o.Threshold, Priority: o.Priority})
	}
	return afk.Config{
		Threshold:        c.Detection.Threshold,
		Overrides:        overrides,
		WarningSeconds:   c.Detection.WarningSeconds,
		WarningMessage:   c.Detection.WarningMessage,
		EnabledWorlds:    c.Detection.EnabledWorlds,
		BypassPermission: c.Detection.BypassPermission,
	}
}

func (c Config) LedgerConfig() credit.Config {
	cfg := credit.DefaultConfig()
	cc := c.Credits

	cfg.Enabled = cc.Enabled
	cfg.EarnPermission = cc.EarnPermission
	cfg.BypassPermission = c.Detection.BypassPermission
	cfg.EarnInterval = cc.EarnInterval
	cfg.MinSession = cc.MinSession
	cfg.MinActivityScore = cc.MinActivityScore
	cfg.MinDistinctKinds = cc.MinDistinctKinds
	cfg.ConsumeEnabled = cc.ConsumeEnabled
	cfg.ConsumeInterval = cc.ConsumeInterval
	cfg.LowBalanceThreshold = cc.LowBalanceThreshold
	cfg.FlushInterval = cc.FlushInterval
	cfg.RecordHistory = cc.RecordHistory
	cfg.Rewards = credit.RewardsConfig{Enabled: cc.Rewards.Enabled, BonusMinutes: cc.Rewards.BonusMinutes}
	cfg.Decay = credit.DecayConfig{
		Enabled:         cc.Decay.Enabled,
		ExpireAfterDays: cc.Decay.ExpireAfterDays,
		WarningDays:     cc.Decay.WarningDays,
		Interval:        cc.Decay.Interval,
	}
	cfg.Zone = credit.ZoneConfig{
		Enabled:           cc.Zone.Enabled,
		Location:          cc.Zone.Location.Location(),
		ReturnCooldown:    cc.Zone.ReturnCooldown,
		MaxReturnDistance: cc.Zone.MaxReturnDistance,
	}

	if len(cc.Tiers) > 0 {
		tiers := make(map[domain.Tier]credit.TierConfig, len(cc.Tiers))
		for name, t := range cc.Tiers {
			tier, ok := domain.ParseTier(name)
			if !ok {
				continue
			}
			tiers[tier] = credit.TierConfig{
				Permission:  t.Permission,
				RatioActive: t.RatioActive,
				RatioCredit: t.RatioCredit,
				MaxBalance:  t.MaxBalance,
			}
		}
		cfg.Tiers = tiers
	}
	return cfg
}

func (c Config) ActionConfig() action.Config {
	mode, _ := action.ParseMode(c.Action.Mode)
	return action.Config{
		Enabled:        c.Action.Enabled,
		Mode:           mode,
		Delay:          c.Action.Delay,
		WarningSeconds: c.Action.WarningSeconds,
		ApplyToManual:  c.Action.ApplyToManual,
		KickReason:     c.Action.KickReason,
		KickMessage:    c.Action.KickMessage,
		WarningMessage: c.Action.WarningMessage,
	}
}

// SessionGrants converts configured grants into a per-session map.
func (c Config) SessionGrants() map[domain.SessionID][]string {
	out := make(map[domain.SessionID][]string, len(c.Permissions.Grants))
	for _, g := range c.Permissions.Grants {
		if g.Session == "" {
			continue
		}
		id := domain.SessionID(g.Session)
		out[id] = append(out[id], g.Permissions...)
	}
	return out
}

// Settings assembles the engine settings from every section.
func (c Config) Settings() application.Settings {
	return application.Settings{
		Tracker:             c.TrackerConfig(),
		Classifier:          c.ClassifierConfig(),
		Machine:             c.MachineConfig(),
		Ledger:              c.LedgerConfig(),
		Action:              c.ActionConfig(),
		CheckInterval:       c.Detection.CheckInterval,
		PatternMessage:      c.Patterns.Message,
		HoldAgainstMovement: c.Patterns.HoldAgainstMovement,
	}
}

func (c Config) WorldList() []world.World {
	out := make([]world.World, 0, len(c.Worlds))
	for _, w := range c.Worlds {
		if w.Name == "" {
			continue
		}
		solid := make([]world.Box, 0, len(w.Solid))
		for _, b := range w.Solid {
			solid = append(solid, world.Box{Min: b.Min.Location(), Max: b.Max.Location()})
		}
		out = append(out, world.World{Name: w.Name, Spawn: w.Spawn.Location(), Solid: solid})
	}
	return out
}
