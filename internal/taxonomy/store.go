package taxonomy

import (
	"context"
	"time"

	"github.com/Qredence/skill-fleet/internal/types"
)

const (
	ErrStoreUnavailable types.ErrorCode = "TAXONOMY_STORE_UNAVAILABLE"
	ErrInvalidPath      types.ErrorCode = "TAXONOMY_INVALID_PATH"
	ErrSkillNotFound    types.ErrorCode = "TAXONOMY_SKILL_NOT_FOUND"
	ErrWriteFailed      types.ErrorCode = "TAXONOMY_WRITE_FAILED"
)

// SkillDocument is a finished skill as stored in the taxonomy tree: YAML
// frontmatter metadata plus the markdown body.
type SkillDocument struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Tags        []string  `yaml:"tags,omitempty"`
	Category    string    `yaml:"category,omitempty"`
	Score       float64   `yaml:"score,omitempty"`
	CreatedAt   time.Time `yaml:"created_at,omitempty"`

	// Content is the markdown body, without frontmatter.
	Content string `yaml:"-"`
}

// Store is the taxonomy tree the pipeline reads placements from and writes
// finished skills into.
type Store interface {
	// Structure returns the category tree as nested maps, keyed by path
	// segment. Leaf skill names map to nil.
	Structure(ctx context.Context) (map[string]any, error)

	// ListSkills returns the slash-separated paths of all stored skills.
	ListSkills(ctx context.Context) ([]string, error)

	// Load reads a skill document by its slash-separated path (without the
	// .md extension).
	Load(ctx context.Context, path string) (*SkillDocument, error)

	// Write stores a skill document under a taxonomy path, creating
	// intermediate categories as needed.
	Write(ctx context.Context, path string, doc *SkillDocument) error
}
