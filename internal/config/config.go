// Package config defines the Config struct the router consumes and
// validates it with struct tags. Loading a Config from YAML, flags, or a
// forge-specific discovery mechanism is the out-of-scope CLI front-end;
// this package only defines and validates the shape.
package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MitigationOverride disables or re-scores a built-in mitigation pattern
// without forking the catalog.
type MitigationOverride struct {
	PatternID         string  `yaml:"pattern_id" json:"patternId" validate:"required"`
	Disabled          bool    `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	Confidence        string  `yaml:"confidence,omitempty" json:"confidence,omitempty" validate:"omitempty,oneof=high medium low"`
	Deprecated        bool    `yaml:"deprecated,omitempty" json:"deprecated,omitempty"`
	DeprecationReason string  `yaml:"deprecation_reason,omitempty" json:"deprecationReason,omitempty"`
}

// Limits bounds token/time/size usage across the run.
type Limits struct {
	MaxCompletionTokens int `yaml:"max_completion_tokens" json:"maxCompletionTokens" validate:"required,gt=0"`
	BudgetTimeMs        int `yaml:"budget_time_ms" json:"budgetTimeMs" validate:"required,gt=0"`
	BudgetMaxLines      int `yaml:"budget_max_lines" json:"budgetMaxLines" validate:"required,gt=0"`
}

// AgentConfig holds the per-agent knobs the router applies when building
// an AgentContext: its timeout and, for LLM agents, the model override.
type AgentConfig struct {
	TimeoutMs int    `yaml:"timeout_ms" json:"timeoutMs" validate:"required,gt=0"`
	Model     string `yaml:"model,omitempty" json:"model,omitempty"`
	Disabled  bool   `yaml:"disabled,omitempty" json:"disabled,omitempty"`
}

// Config is everything the router needs beyond the diff and the process
// environment.
type Config struct {
	Limits Limits `yaml:"limits" json:"limits" validate:"required"`

	// DefaultModel is the config-level fallback model name, lowest
	// precedence: the MODEL environment variable always wins over this.
	DefaultModel string `yaml:"default_model,omitempty" json:"defaultModel,omitempty"`

	Agents map[string]AgentConfig `yaml:"agents,omitempty" json:"agents,omitempty" validate:"dive"`

	// MitigationOverrides lets operators disable or re-score built-in
	// mitigation patterns without forking the catalog.
	MitigationOverrides []MitigationOverride `yaml:"mitigation_overrides,omitempty" json:"mitigationOverrides,omitempty" validate:"dive"`

	// PatternTimeoutMs bounds every ReDoS-guarded regex evaluation;
	// clamped to [10, 1000] by the regex package itself.
	PatternTimeoutMs int `yaml:"pattern_timeout_ms,omitempty" json:"patternTimeoutMs,omitempty"`

	// RedosBypassPatternIDs lists pattern ids exempted from static ReDoS
	// validation at catalog load.
	RedosBypassPatternIDs []string `yaml:"redos_bypass_pattern_ids,omitempty" json:"redosBypassPatternIds,omitempty"`

	// CacheRedisAddr selects the Redis-backed result cache when set;
	// empty selects the in-process LRU.
	CacheRedisAddr string `yaml:"cache_redis_addr,omitempty" json:"cacheRedisAddr,omitempty"`
	CacheCapacity  int    `yaml:"cache_capacity,omitempty" json:"cacheCapacity,omitempty"`

	// AuditLogPath enables the JSONL audit trail when non-empty.
	AuditLogPath string `yaml:"audit_log_path,omitempty" json:"auditLogPath,omitempty"`

	// LogLevel is one of debug|info|warn|error.
	LogLevel string `yaml:"log_level,omitempty" json:"logLevel,omitempty" validate:"omitempty,oneof=debug info warn error"`

	// MergeCap bounds the merged finding list after sort; defaults to 200.
	MergeCap int `yaml:"merge_cap,omitempty" json:"mergeCap,omitempty"`
}

// Validate runs struct-tag validation and fills in documented defaults
// for zero-valued optional fields.
func (c *Config) Validate() error {
	if c.MergeCap == 0 {
		c.MergeCap = 200
	}
	if c.PatternTimeoutMs == 0 {
		c.PatternTimeoutMs = 100
	}
	if c.CacheCapacity == 0 {
		c.CacheCapacity = 1000
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}

	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
