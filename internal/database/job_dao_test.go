package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Qredence/skill-fleet/internal/pipeline"
	"github.com/Qredence/skill-fleet/internal/skill"
	"github.com/Qredence/skill-fleet/internal/types"
)

func testDAO(t *testing.T) *JobDAO {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "skillfleet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(context.Background()))
	return NewJobDAO(db)
}

func TestJobDAOCreateAndGet(t *testing.T) {
	ctx := context.Background()
	dao := testDAO(t)

	job := pipeline.NewJob("create a go testing skill", map[string]string{"team": "platform"})
	job.SetProgress(pipeline.PhaseUnderstanding, "analyzing task requirements")
	require.NoError(t, dao.Create(ctx, job))

	got, err := dao.Get(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, pipeline.JobStatusPending, got.Status)
	assert.Equal(t, "create a go testing skill", got.TaskDescription)
	assert.Equal(t, map[string]string{"team": "platform"}, got.UserContext)
	assert.Equal(t, pipeline.PhaseUnderstanding, got.CurrentPhase)
	assert.Equal(t, "analyzing task requirements", got.ProgressMessage)
	assert.Nil(t, got.Resumption)
	assert.WithinDuration(t, job.CreatedAt, got.CreatedAt, time.Second)
}

func TestJobDAOResumptionBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	dao := testDAO(t)

	plan := &skill.Plan{
		SkillName:       "go-testing",
		Description:     "Practical Go testing techniques.",
		TaxonomyPath:    "engineering/go",
		ContentOutline:  []string{"Overview"},
		EstimatedLength: "medium",
	}

	job := pipeline.NewJob("a vague testing skill", nil)
	require.NoError(t, job.Transition(pipeline.JobStatusRunning))
	require.NoError(t, job.Transition(pipeline.JobStatusPendingHITL))
	job.Resumption = &pipeline.ResumptionContext{
		Phase: pipeline.PhaseGeneration,
		Request: &pipeline.HITLRequest{
			Kind:    pipeline.HITLPreview,
			Preview: &pipeline.PreviewPayload{Summary: "a preview", WordCount: 42},
		},
		Understanding: &pipeline.UnderstandingBundle{Plan: plan},
		Generation:    &skill.GenerationResult{Content: "# Go Testing", Sections: []string{"Overview"}},
		Style:         skill.StyleComprehensive,
		EnablePreview: true,
	}
	require.NoError(t, dao.Create(ctx, job))

	got, err := dao.Get(ctx, job.ID)
	require.NoError(t, err)

	require.NotNil(t, got.Resumption)
	assert.Equal(t, pipeline.PhaseGeneration, got.Resumption.Phase)
	assert.Equal(t, pipeline.HITLPreview, got.Resumption.Request.Kind)
	assert.Equal(t, 42, got.Resumption.Request.Preview.WordCount)
	assert.Equal(t, "go-testing", got.Resumption.Understanding.Plan.SkillName)
	assert.Equal(t, "# Go Testing", got.Resumption.Generation.Content)
	assert.True(t, got.Resumption.EnablePreview)
}

func TestJobDAODuplicateCreate(t *testing.T) {
	ctx := context.Background()
	dao := testDAO(t)

	job := pipeline.NewJob("task", nil)
	require.NoError(t, dao.Create(ctx, job))

	err := dao.Create(ctx, job)
	require.Error(t, err)

	var fleetErr *types.FleetError
	require.ErrorAs(t, err, &fleetErr)
	assert.Equal(t, pipeline.ErrInvalidState, fleetErr.Code)
}

func TestJobDAOUpdate(t *testing.T) {
	ctx := context.Background()
	dao := testDAO(t)

	job := pipeline.NewJob("task", nil)
	require.NoError(t, dao.Create(ctx, job))

	require.NoError(t, job.Transition(pipeline.JobStatusRunning))
	job.SetProgress(pipeline.PhaseGeneration, "generating skill content")
	require.NoError(t, dao.Update(ctx, job))

	got, err := dao.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, pipeline.JobStatusRunning, got.Status)
	assert.Equal(t, pipeline.PhaseGeneration, got.CurrentPhase)

	// Clearing the resumption on resume must clear the stored blob too.
	job.Resumption = nil
	require.NoError(t, dao.Update(ctx, job))
	got, err = dao.Get(ctx, job.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Resumption)
}

func TestJobDAONotFound(t *testing.T) {
	ctx := context.Background()
	dao := testDAO(t)
	missing := types.NewID()

	_, err := dao.Get(ctx, missing)
	var fleetErr *types.FleetError
	require.ErrorAs(t, err, &fleetErr)
	assert.Equal(t, pipeline.ErrJobNotFound, fleetErr.Code)

	err = dao.Update(ctx, pipeline.NewJob("never created", nil))
	require.ErrorAs(t, err, &fleetErr)
	assert.Equal(t, pipeline.ErrJobNotFound, fleetErr.Code)

	err = dao.Delete(ctx, missing)
	require.ErrorAs(t, err, &fleetErr)
	assert.Equal(t, pipeline.ErrJobNotFound, fleetErr.Code)
}

func TestJobDAODelete(t *testing.T) {
	ctx := context.Background()
	dao := testDAO(t)

	job := pipeline.NewJob("task", nil)
	require.NoError(t, dao.Create(ctx, job))

	require.NoError(t, dao.Delete(ctx, job.ID))
	_, err := dao.Get(ctx, job.ID)
	assert.Error(t, err)
}

func TestJobDAOList(t *testing.T) {
	ctx := context.Background()
	dao := testDAO(t)

	first := pipeline.NewJob("first", nil)
	require.NoError(t, dao.Create(ctx, first))

	second := pipeline.NewJob("second", nil)
	second.CreatedAt = first.CreatedAt.Add(time.Second)
	require.NoError(t, dao.Create(ctx, second))
	require.NoError(t, second.Transition(pipeline.JobStatusRunning))
	require.NoError(t, dao.Update(ctx, second))

	third := pipeline.NewJob("third", nil)
	third.CreatedAt = first.CreatedAt.Add(2 * time.Second)
	require.NoError(t, dao.Create(ctx, third))

	all, err := dao.List(ctx, pipeline.JobFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].TaskDescription, "newest first")
	assert.Equal(t, "first", all[2].TaskDescription)

	running := pipeline.JobStatusRunning
	filtered, err := dao.List(ctx, pipeline.JobFilter{Status: &running})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "second", filtered[0].TaskDescription)

	limited, err := dao.List(ctx, pipeline.JobFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestMigrateIsIdempotent(t *testing.T) {
	ctx := context.Background()

	db, err := Open(filepath.Join(t.TempDir(), "skillfleet.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate(ctx))
	require.NoError(t, db.Migrate(ctx))

	version, err := db.SchemaVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
}
