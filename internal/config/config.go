// Package config provides configuration loading for learnd.
//
// Configuration is assembled from hardcoded defaults, an optional YAML file and
// environment variables (highest precedence). See LoadWithFile.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete learnd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Observability ObservabilityConfig `koanf:"observability"`
	Learning      LearningConfig      `koanf:"learning"`
	Experiments   ExperimentsConfig   `koanf:"experiments"`
	Knowledge     KnowledgeConfig     `koanf:"knowledge"`
	MemoryStore   MemoryStoreConfig   `koanf:"memorystore"`
	Events        EventsConfig        `koanf:"events"`
	Maintenance   MaintenanceConfig   `koanf:"maintenance"`
	Privacy       PrivacyConfig       `koanf:"privacy"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string   `koanf:"http_host"`
	Port            int      `koanf:"http_port"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	// RateLimit is the sustained interactions/second accepted per client.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`
	// TrustedProxies are CIDRs allowed to set X-Forwarded-For.
	TrustedProxies []string `koanf:"trusted_proxies"`
}

// ObservabilityConfig holds logging and OpenTelemetry configuration.
type ObservabilityConfig struct {
	EnableTelemetry bool   `koanf:"enable_telemetry"`
	ServiceName     string `koanf:"service_name"`
	Endpoint        string `koanf:"otlp_endpoint"`
	LogLevel        string `koanf:"log_level"`
	LogFormat       string `koanf:"log_format"`
}

// LearningConfig holds the insight and preference heuristics.
type LearningConfig struct {
	MinInteractions        int      `koanf:"min_interactions"`
	MaxInsightsPerCategory int      `koanf:"max_insights_per_category"`
	RecentWindow           int      `koanf:"recent_window"`
	ReinforceThreshold     float64  `koanf:"reinforce_threshold"`
	ContradictThreshold    float64  `koanf:"contradict_threshold"`
	ReinforceDelta         float64  `koanf:"reinforce_delta"`
	ContradictDelta        float64  `koanf:"contradict_delta"`
	LearningRate           float64  `koanf:"learning_rate"`
	StaleAfter             Duration `koanf:"stale_after"`
	DecayDelta             float64  `koanf:"decay_delta"`
	EnabledCategories      []string `koanf:"enabled_categories"`

	// Reinforcements needed to reach each confidence level.
	ConfirmedReinforcements int `koanf:"confirmed_reinforcements"`
	ProbableReinforcements  int `koanf:"probable_reinforcements"`
	EmergingReinforcements  int `koanf:"emerging_reinforcements"`
	// Contradictions tolerated at CONFIRMED and PROBABLE. Nil keeps the
	// built-in limit; zero means none are tolerated.
	ConfirmedMaxContradictions  *int    `koanf:"confirmed_max_contradictions"`
	ProbableMaxContradictions   *int    `koanf:"probable_max_contradictions"`
	ConfirmedConfidenceFloor    float64 `koanf:"confirmed_confidence_floor"`
	DeactivateMinContradictions int     `koanf:"deactivate_min_contradictions"`
}

// ExperimentsConfig holds experiment resolution thresholds.
type ExperimentsConfig struct {
	ConfirmThreshold float64 `koanf:"confirm_threshold"`
	RejectThreshold  float64 `koanf:"reject_threshold"`
}

// KnowledgeConfig holds connection discovery and reflection parameters.
type KnowledgeConfig struct {
	SimilarityThreshold float64 `koanf:"similarity_threshold"`
	MaxCandidates       int     `koanf:"max_candidates"`
	// KeepDuplicateConnections records every re-discovery of a pair instead
	// of deduplicating by (source, target, relationship).
	KeepDuplicateConnections bool     `koanf:"keep_duplicate_connections"`
	GapThreshold             float64  `koanf:"gap_threshold"`
	ConflictConfidence       float64  `koanf:"conflict_confidence"`
	GrowthWindow             Duration `koanf:"growth_window"`
	GrowthThreshold          int      `koanf:"growth_threshold"`
}

// MemoryStoreConfig selects the Memory Store backend.
type MemoryStoreConfig struct {
	// Driver is one of "sqlite", "postgres" or "memory".
	Driver string `koanf:"driver"`
	// Path is the sqlite database file.
	Path string `koanf:"path"`
	// DSN is the postgres connection string.
	DSN Secret `koanf:"dsn"`
}

// EventsConfig configures NATS event publishing.
type EventsConfig struct {
	Enabled       bool   `koanf:"enabled"`
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// MaintenanceConfig configures the background decay scheduler.
type MaintenanceConfig struct {
	Enabled         bool     `koanf:"enabled"`
	Interval        Duration `koanf:"interval"`
	PreferenceDecay float64  `koanf:"preference_decay"`
}

// PrivacyConfig controls redaction of credentials and personal identifiers
// in text the engine persists or publishes. Redaction is on unless disabled.
type PrivacyConfig struct {
	Disabled    bool     `koanf:"disabled"`
	Replacement string   `koanf:"replacement"`
	AllowList   []string `koanf:"allow_list"`
}

// Default returns a Config populated with defaults.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 0 {
		return errors.New("rate limit and burst cannot be negative")
	}
	if c.Observability.EnableTelemetry && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}

	l := c.Learning
	if l.LearningRate <= 0 || l.LearningRate > 1 {
		return fmt.Errorf("learning.learning_rate must be in (0,1], got %v", l.LearningRate)
	}
	if l.ReinforceThreshold <= 0 || l.ReinforceThreshold > 1 {
		return fmt.Errorf("learning.reinforce_threshold must be in (0,1], got %v", l.ReinforceThreshold)
	}
	if l.ContradictThreshold >= 0 || l.ContradictThreshold < -1 {
		return fmt.Errorf("learning.contradict_threshold must be in [-1,0), got %v", l.ContradictThreshold)
	}
	if l.MaxInsightsPerCategory < 1 {
		return errors.New("learning.max_insights_per_category must be at least 1")
	}
	if l.EmergingReinforcements > l.ProbableReinforcements || l.ProbableReinforcements > l.ConfirmedReinforcements {
		return fmt.Errorf("learning reinforcement counts must not decrease by level, got emerging=%d probable=%d confirmed=%d",
			l.EmergingReinforcements, l.ProbableReinforcements, l.ConfirmedReinforcements)
	}
	if (l.ConfirmedMaxContradictions != nil && *l.ConfirmedMaxContradictions < 0) ||
		(l.ProbableMaxContradictions != nil && *l.ProbableMaxContradictions < 0) {
		return errors.New("learning max contradiction limits cannot be negative")
	}
	if l.ConfirmedConfidenceFloor <= 0 || l.ConfirmedConfidenceFloor > 1 {
		return fmt.Errorf("learning.confirmed_confidence_floor must be in (0,1], got %v", l.ConfirmedConfidenceFloor)
	}

	e := c.Experiments
	if e.RejectThreshold >= e.ConfirmThreshold {
		return fmt.Errorf("experiments.reject_threshold (%v) must be below confirm_threshold (%v)",
			e.RejectThreshold, e.ConfirmThreshold)
	}

	k := c.Knowledge
	if k.SimilarityThreshold <= 0 || k.SimilarityThreshold >= 1 {
		return fmt.Errorf("knowledge.similarity_threshold must be in (0,1), got %v", k.SimilarityThreshold)
	}

	switch c.MemoryStore.Driver {
	case "memory", "sqlite":
	case "postgres":
		if !c.MemoryStore.DSN.IsSet() {
			return errors.New("memorystore.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown memorystore.driver %q", c.MemoryStore.Driver)
	}

	if c.Events.Enabled && c.Events.URL == "" {
		return errors.New("events.url is required when events are enabled")
	}
	if c.Maintenance.Enabled && c.Maintenance.Interval.Duration() <= 0 {
		return errors.New("maintenance.interval must be positive when maintenance is enabled")
	}

	return nil
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9191
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}
	if cfg.Server.RateLimit == 0 {
		cfg.Server.RateLimit = 20
	}
	if cfg.Server.RateBurst == 0 {
		cfg.Server.RateBurst = 40
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "learnd"
	}
	if cfg.Observability.Endpoint == "" {
		cfg.Observability.Endpoint = "localhost:4317"
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = "info"
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = "json"
	}

	l := &cfg.Learning
	if l.MinInteractions == 0 {
		l.MinInteractions = 10
	}
	if l.MaxInsightsPerCategory == 0 {
		l.MaxInsightsPerCategory = 5
	}
	if l.RecentWindow == 0 {
		l.RecentWindow = 50
	}
	if l.ReinforceThreshold == 0 {
		l.ReinforceThreshold = 0.7
	}
	if l.ContradictThreshold == 0 {
		l.ContradictThreshold = -0.5
	}
	if l.ReinforceDelta == 0 {
		l.ReinforceDelta = 0.05
	}
	if l.ContradictDelta == 0 {
		l.ContradictDelta = 0.1
	}
	if l.LearningRate == 0 {
		l.LearningRate = 0.1
	}
	if l.StaleAfter == 0 {
		l.StaleAfter = Duration(30 * 24 * time.Hour)
	}
	if l.DecayDelta == 0 {
		l.DecayDelta = 0.02
	}
	if l.ConfirmedReinforcements == 0 {
		l.ConfirmedReinforcements = 10
	}
	if l.ProbableReinforcements == 0 {
		l.ProbableReinforcements = 5
	}
	if l.EmergingReinforcements == 0 {
		l.EmergingReinforcements = 3
	}
	if l.ConfirmedConfidenceFloor == 0 {
		l.ConfirmedConfidenceFloor = 0.9
	}
	if l.DeactivateMinContradictions == 0 {
		l.DeactivateMinContradictions = 3
	}

	if cfg.Experiments.ConfirmThreshold == 0 {
		cfg.Experiments.ConfirmThreshold = 0.7
	}
	if cfg.Experiments.RejectThreshold == 0 {
		cfg.Experiments.RejectThreshold = 0.3
	}

	k := &cfg.Knowledge
	if k.SimilarityThreshold == 0 {
		k.SimilarityThreshold = 0.4
	}
	if k.MaxCandidates == 0 {
		k.MaxCandidates = 20
	}
	if k.GapThreshold == 0 {
		k.GapThreshold = 0.3
	}
	if k.ConflictConfidence == 0 {
		k.ConflictConfidence = 0.6
	}
	if k.GrowthWindow == 0 {
		k.GrowthWindow = Duration(7 * 24 * time.Hour)
	}
	if k.GrowthThreshold == 0 {
		k.GrowthThreshold = 20
	}

	if cfg.MemoryStore.Driver == "" {
		cfg.MemoryStore.Driver = "sqlite"
	}
	if cfg.MemoryStore.Path == "" {
		cfg.MemoryStore.Path = "~/.config/learnd/memory.db"
	}

	if cfg.Events.URL == "" {
		cfg.Events.URL = "nats://localhost:4222"
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "learnd"
	}

	if cfg.Maintenance.Interval == 0 {
		cfg.Maintenance.Interval = Duration(24 * time.Hour)
	}
	if cfg.Maintenance.PreferenceDecay == 0 {
		cfg.Maintenance.PreferenceDecay = 0.05
	}

	if cfg.Privacy.Replacement == "" {
		cfg.Privacy.Replacement = "[REDACTED]"
	}
}
