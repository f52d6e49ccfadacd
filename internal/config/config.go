package config

import (
	"time"

	"github.com/Qredence/skill-fleet/internal/inference"
	"github.com/Qredence/skill-fleet/internal/llm"
	"github.com/Qredence/skill-fleet/internal/quality"
)

// Config is the root configuration for skillfleet.
// Environment variables can be interpolated using ${VAR_NAME} syntax.
type Config struct {
	Core      CoreConfig         `mapstructure:"core" yaml:"core"`
	Database  DBConfig           `mapstructure:"database" yaml:"database"`
	Provider  llm.ProviderConfig `mapstructure:"provider" yaml:"provider" validate:"required"`
	Inference InferenceConfig    `mapstructure:"inference" yaml:"inference"`
	Quality   quality.Thresholds `mapstructure:"quality" yaml:"quality"`
	Taxonomy  TaxonomyConfig     `mapstructure:"taxonomy" yaml:"taxonomy"`
	Pipeline  PipelineConfig     `mapstructure:"pipeline" yaml:"pipeline"`
	Logging   LoggingConfig      `mapstructure:"logging" yaml:"logging"`
	Events    EventsConfig       `mapstructure:"events" yaml:"events"`
}

// CoreConfig contains core application settings.
type CoreConfig struct {
	HomeDir string `mapstructure:"home_dir" yaml:"home_dir"`
	Debug   bool   `mapstructure:"debug" yaml:"debug"`
}

// DBConfig contains job store configuration.
type DBConfig struct {
	Path           string        `mapstructure:"path" yaml:"path"`
	MaxConnections int           `mapstructure:"max_connections" yaml:"max_connections" validate:"min=1,max=100"`
	BusyTimeout    time.Duration `mapstructure:"busy_timeout" yaml:"busy_timeout"`
}

// InferenceConfig contains gateway settings: retry policy, per-call timeout,
// and sampling.
type InferenceConfig struct {
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries" validate:"min=0,max=10"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
	MaxDelay     time.Duration `mapstructure:"max_delay" yaml:"max_delay"`
	CallTimeout  time.Duration `mapstructure:"call_timeout" yaml:"call_timeout"`
	Temperature  float64       `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens    int           `mapstructure:"max_tokens" yaml:"max_tokens" validate:"min=0"`
}

// RetryPolicy converts the settings into the gateway's policy, falling back
// to defaults for unset durations.
func (c InferenceConfig) RetryPolicy() inference.RetryPolicy {
	policy := inference.DefaultRetryPolicy()
	policy.MaxRetries = c.MaxRetries
	if c.InitialDelay > 0 {
		policy.InitialDelay = c.InitialDelay
	}
	if c.MaxDelay > 0 {
		policy.MaxDelay = c.MaxDelay
	}
	return policy
}

// TaxonomyConfig contains the skill tree location.
type TaxonomyConfig struct {
	Root string `mapstructure:"root" yaml:"root"`
}

// PipelineConfig contains pipeline behavior defaults.
type PipelineConfig struct {
	Style         string `mapstructure:"style" yaml:"style" validate:"omitempty,oneof=minimal comprehensive navigation_hub"`
	EnablePreview bool   `mapstructure:"enable_preview" yaml:"enable_preview"`
	EnableReview  bool   `mapstructure:"enable_review" yaml:"enable_review"`
}

// LoggingConfig contains logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"omitempty,oneof=text json"`
}

// EventsConfig contains event bus configuration.
type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size" yaml:"buffer_size" validate:"min=0"`
}
