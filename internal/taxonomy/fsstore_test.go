package taxonomy

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qredence/skill-fleet/internal/types"
)

func testStore(t *testing.T) *FSStore {
	t.Helper()
	store, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestNewFSStoreCreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "taxonomy")
	store, err := NewFSStore(root)
	require.NoError(t, err)

	info, err := os.Stat(store.Root())
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = NewFSStore("")
	assert.Error(t, err)
}

func TestFSStoreWriteLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	doc := &SkillDocument{
		Name:        "go-testing",
		Description: "Practical Go testing techniques.",
		Tags:        []string{"go", "testing"},
		Category:    "engineering",
		Score:       0.87,
		Content:     "# Go Testing\n\nPractical guidance.\n",
	}
	require.NoError(t, store.Write(ctx, "engineering/go/go-testing", doc))

	loaded, err := store.Load(ctx, "engineering/go/go-testing")
	require.NoError(t, err)

	assert.Equal(t, "go-testing", loaded.Name)
	assert.Equal(t, "Practical Go testing techniques.", loaded.Description)
	assert.Equal(t, []string{"go", "testing"}, loaded.Tags)
	assert.Equal(t, "engineering", loaded.Category)
	assert.InDelta(t, 0.87, loaded.Score, 1e-9)
	assert.False(t, loaded.CreatedAt.IsZero(), "created_at is stamped on first write")
	assert.Contains(t, loaded.Content, "# Go Testing")
	assert.NotContains(t, loaded.Content, "---", "frontmatter is split from the body")
}

func TestFSStoreWritePreservesExistingFrontmatter(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	content := "---\nname: go-testing\ndescription: Authored frontmatter.\n---\n\n# Go Testing\n"
	doc := &SkillDocument{Name: "ignored", Content: content}
	require.NoError(t, store.Write(ctx, "engineering/go/go-testing", doc))

	raw, err := os.ReadFile(filepath.Join(store.Root(), "engineering", "go", "go-testing.md"))
	require.NoError(t, err)
	assert.Equal(t, content, string(raw), "generator frontmatter is trusted as-is")

	loaded, err := store.Load(ctx, "engineering/go/go-testing")
	require.NoError(t, err)
	assert.Equal(t, "go-testing", loaded.Name)
	assert.Equal(t, "Authored frontmatter.", loaded.Description)
}

func TestFSStoreWriteRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)
	doc := &SkillDocument{Name: "x", Content: "body"}

	var fleetErr *types.FleetError

	err := store.Write(ctx, "../escape", doc)
	require.ErrorAs(t, err, &fleetErr)
	assert.Equal(t, ErrInvalidPath, fleetErr.Code)

	err = store.Write(ctx, "engineering/Bad Path", doc)
	assert.Error(t, err)

	err = store.Write(ctx, "engineering/empty", &SkillDocument{Name: "empty"})
	require.ErrorAs(t, err, &fleetErr)
	assert.Equal(t, ErrWriteFailed, fleetErr.Code)

	err = store.Write(ctx, "engineering/nil-doc", nil)
	assert.Error(t, err)
}

func TestFSStoreLoadMissing(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	_, err := store.Load(ctx, "engineering/go/absent")
	var fleetErr *types.FleetError
	require.ErrorAs(t, err, &fleetErr)
	assert.Equal(t, ErrSkillNotFound, fleetErr.Code)
}

func TestFSStoreStructure(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	write := func(path string) {
		require.NoError(t, store.Write(ctx, path, &SkillDocument{Content: "# " + path + "\n"}))
	}
	write("engineering/go/go-testing")
	write("engineering/go/go-modules")
	write("engineering/python/pytest-basics")
	write("writing/technical-docs")

	// Dot-directories and stray files stay invisible.
	require.NoError(t, os.MkdirAll(filepath.Join(store.Root(), ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(store.Root(), "engineering", "notes.txt"), []byte("x"), 0o644))

	structure, err := store.Structure(ctx)
	require.NoError(t, err)

	engineering, ok := structure["engineering"].(map[string]any)
	require.True(t, ok)
	goBranch, ok := engineering["go"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, goBranch, "go-testing")
	assert.Contains(t, goBranch, "go-modules")
	assert.Nil(t, goBranch["go-testing"], "skills are leaves")
	assert.NotContains(t, structure, ".git")
	assert.NotContains(t, engineering, "notes.txt")

	writing, ok := structure["writing"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, writing, "technical-docs")
}

func TestFSStoreListSkills(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	empty, err := store.ListSkills(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for _, path := range []string{
		"writing/technical-docs",
		"engineering/go/go-testing",
		"engineering/python/pytest-basics",
	} {
		require.NoError(t, store.Write(ctx, path, &SkillDocument{Content: "# skill\n"}))
	}

	skills, err := store.ListSkills(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"engineering/go/go-testing",
		"engineering/python/pytest-basics",
		"writing/technical-docs",
	}, skills, "slash paths, sorted")
}

func TestFSStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	store := testStore(t)

	require.NoError(t, store.Write(ctx, "engineering/go/go-testing", &SkillDocument{
		Name: "go-testing", Content: "# First\n",
	}))
	require.NoError(t, store.Write(ctx, "engineering/go/go-testing", &SkillDocument{
		Name: "go-testing", Content: "# Second\n",
	}))

	loaded, err := store.Load(ctx, "engineering/go/go-testing")
	require.NoError(t, err)
	assert.Contains(t, loaded.Content, "# Second")

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Join(store.Root(), "engineering", "go"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "go-testing.md", entries[0].Name())
}
