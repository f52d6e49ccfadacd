package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/Qredence/skill-fleet/internal/llm"
	"github.com/Qredence/skill-fleet/internal/quality"
	"github.com/Qredence/skill-fleet/internal/skill"
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	homeDir := getDefaultHomeDir()

	return &Config{
		Core: CoreConfig{
			HomeDir: homeDir,
			Debug:   false,
		},
		Database: DBConfig{
			Path:           filepath.Join(homeDir, "skillfleet.db"),
			MaxConnections: 10,
			BusyTimeout:    5 * time.Second,
		},
		Provider: llm.ProviderConfig{
			Type: llm.ProviderAnthropic,
		},
		Inference: InferenceConfig{
			MaxRetries:   3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     8 * time.Second,
			CallTimeout:  2 * time.Minute,
			Temperature:  0.7,
			MaxTokens:    4096,
		},
		Quality: quality.DefaultThresholds(),
		Taxonomy: TaxonomyConfig{
			Root: filepath.Join(homeDir, "taxonomy"),
		},
		Pipeline: PipelineConfig{
			Style:         skill.StyleComprehensive.String(),
			EnablePreview: false,
			EnableReview:  false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Events: EventsConfig{
			BufferSize: 64,
		},
	}
}

// getDefaultHomeDir returns the default skillfleet home directory.
func getDefaultHomeDir() string {
	if dir := os.Getenv("SKILLFLEET_HOME"); dir != "" {
		return dir
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ".skillfleet"
	}
	return filepath.Join(home, ".skillfleet")
}
