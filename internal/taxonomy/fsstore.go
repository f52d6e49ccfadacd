package taxonomy

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Qredence/skill-fleet/internal/skill"
	"github.com/Qredence/skill-fleet/internal/types"
)

const skillExtension = ".md"

// FSStore keeps the taxonomy as a directory tree of markdown files with YAML
// frontmatter. Categories are directories, skills are files.
type FSStore struct {
	root string
}

var _ Store = (*FSStore)(nil)

// NewFSStore creates a filesystem-backed taxonomy store rooted at dir,
// creating the root if it does not exist.
func NewFSStore(dir string) (*FSStore, error) {
	if dir == "" {
		return nil, types.NewError(ErrStoreUnavailable, "taxonomy root directory not set")
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, types.WrapError(ErrStoreUnavailable,
			fmt.Sprintf("cannot create taxonomy root %s", dir), err)
	}

	return &FSStore{root: dir}, nil
}

// Root returns the root directory of the store.
func (s *FSStore) Root() string {
	return s.root
}

// Structure implements Store.
func (s *FSStore) Structure(ctx context.Context) (map[string]any, error) {
	structure := make(map[string]any)

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil || rel == "." {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.IsDir() && !strings.HasSuffix(d.Name(), skillExtension) {
			return nil
		}

		segments := strings.Split(filepath.ToSlash(rel), "/")
		node := structure
		for i, segment := range segments {
			last := i == len(segments)-1
			if last && !d.IsDir() {
				node[strings.TrimSuffix(segment, skillExtension)] = nil
				break
			}
			child, ok := node[segment].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[segment] = child
			}
			node = child
		}
		return nil
	})
	if err != nil {
		return nil, types.WrapError(ErrStoreUnavailable, "failed to walk taxonomy tree", err)
	}

	return structure, nil
}

// ListSkills implements Store.
func (s *FSStore) ListSkills(ctx context.Context) ([]string, error) {
	var skills []string

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}
		if !strings.HasSuffix(d.Name(), skillExtension) {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		skills = append(skills, strings.TrimSuffix(filepath.ToSlash(rel), skillExtension))
		return nil
	})
	if err != nil {
		return nil, types.WrapError(ErrStoreUnavailable, "failed to list skills", err)
	}

	sort.Strings(skills)
	return skills, nil
}

// Load implements Store.
func (s *FSStore) Load(ctx context.Context, path string) (*SkillDocument, error) {
	if err := skill.ValidateTaxonomyPath(path); err != nil {
		return nil, types.WrapError(ErrInvalidPath, fmt.Sprintf("invalid skill path %q", path), err)
	}

	data, err := os.ReadFile(filepath.Join(s.root, filepath.FromSlash(path)+skillExtension))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.NewError(ErrSkillNotFound, fmt.Sprintf("skill not found: %s", path))
		}
		return nil, types.WrapError(ErrStoreUnavailable, fmt.Sprintf("failed to read skill %s", path), err)
	}

	doc, err := parseDocument(string(data))
	if err != nil {
		return nil, types.WrapError(ErrStoreUnavailable, fmt.Sprintf("failed to parse skill %s", path), err)
	}
	return doc, nil
}

// Write implements Store.
func (s *FSStore) Write(ctx context.Context, path string, doc *SkillDocument) error {
	if err := skill.ValidateTaxonomyPath(path); err != nil {
		return types.WrapError(ErrInvalidPath, fmt.Sprintf("invalid skill path %q", path), err)
	}
	if doc == nil || strings.TrimSpace(doc.Content) == "" {
		return types.NewError(ErrWriteFailed, "skill document has no content")
	}

	target := filepath.Join(s.root, filepath.FromSlash(path)+skillExtension)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return types.WrapError(ErrWriteFailed, fmt.Sprintf("cannot create category for %s", path), err)
	}

	rendered, err := renderDocument(doc)
	if err != nil {
		return types.WrapError(ErrWriteFailed, fmt.Sprintf("cannot render skill %s", path), err)
	}

	// Write-then-rename so readers never see a half-written skill.
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, []byte(rendered), 0o644); err != nil {
		return types.WrapError(ErrWriteFailed, fmt.Sprintf("cannot write skill %s", path), err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return types.WrapError(ErrWriteFailed, fmt.Sprintf("cannot finalize skill %s", path), err)
	}

	return nil
}

// renderDocument serializes frontmatter plus body. Content that already
// carries frontmatter is trusted as-is; the generator emits it and the
// validator has checked it.
func renderDocument(doc *SkillDocument) (string, error) {
	body := strings.TrimLeft(doc.Content, "\n")
	if strings.HasPrefix(body, "---\n") {
		return doc.Content, nil
	}

	meta := *doc
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}

	frontmatter, err := yaml.Marshal(&meta)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(frontmatter)
	b.WriteString("---\n\n")
	b.WriteString(body)
	return b.String(), nil
}

// parseDocument splits frontmatter from the body.
func parseDocument(raw string) (*SkillDocument, error) {
	doc := &SkillDocument{}

	if !strings.HasPrefix(raw, "---\n") {
		doc.Content = raw
		return doc, nil
	}

	rest := raw[4:]
	end := strings.Index(rest, "\n---")
	if end < 0 {
		return nil, fmt.Errorf("unterminated frontmatter")
	}

	if err := yaml.Unmarshal([]byte(rest[:end]), doc); err != nil {
		return nil, fmt.Errorf("invalid frontmatter: %w", err)
	}

	body := rest[end+4:]
	doc.Content = strings.TrimLeft(body, "\n")
	return doc, nil
}
