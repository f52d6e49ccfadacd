package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Qredence/skill-fleet/internal/pipeline"
	"github.com/Qredence/skill-fleet/internal/types"
)

// JobDAO persists pipeline jobs in SQLite. It implements pipeline.JobStore:
// the resumption context is stored as the versioned, checksummed blob the
// pipeline codec produces, never as loose columns.
type JobDAO struct {
	db *DB
}

var _ pipeline.JobStore = (*JobDAO)(nil)

// NewJobDAO creates a job DAO.
func NewJobDAO(db *DB) *JobDAO {
	return &JobDAO{db: db}
}

// Create implements pipeline.JobStore.
func (d *JobDAO) Create(ctx context.Context, job *pipeline.Job) error {
	if job.ID.IsZero() {
		job.ID = types.NewID()
	}

	userContext, resumption, err := marshalJobFields(job)
	if err != nil {
		return err
	}

	_, err = d.db.conn.ExecContext(ctx, `
		INSERT INTO jobs (id, status, task_description, user_context, current_phase,
			progress_message, error, resumption, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID.String(),
		job.Status.String(),
		job.TaskDescription,
		userContext,
		string(job.CurrentPhase),
		job.ProgressMessage,
		job.Error,
		resumption,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return types.NewError(pipeline.ErrInvalidState,
				fmt.Sprintf("job already exists: %s", job.ID))
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// Get implements pipeline.JobStore.
func (d *JobDAO) Get(ctx context.Context, id types.ID) (*pipeline.Job, error) {
	row := d.db.conn.QueryRowContext(ctx, `
		SELECT id, status, task_description, user_context, current_phase,
			progress_message, error, resumption, created_at, updated_at
		FROM jobs WHERE id = ?`, id.String())

	job, err := scanJob(row)
	if err == sql.ErrNoRows {
		return nil, pipeline.NewJobNotFoundError(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// Update implements pipeline.JobStore.
func (d *JobDAO) Update(ctx context.Context, job *pipeline.Job) error {
	userContext, resumption, err := marshalJobFields(job)
	if err != nil {
		return err
	}

	result, err := d.db.conn.ExecContext(ctx, `
		UPDATE jobs SET status = ?, task_description = ?, user_context = ?,
			current_phase = ?, progress_message = ?, error = ?, resumption = ?,
			updated_at = ?
		WHERE id = ?`,
		job.Status.String(),
		job.TaskDescription,
		userContext,
		string(job.CurrentPhase),
		job.ProgressMessage,
		job.Error,
		resumption,
		job.UpdatedAt,
		job.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if affected == 0 {
		return pipeline.NewJobNotFoundError(job.ID)
	}

	return nil
}

// List implements pipeline.JobStore.
func (d *JobDAO) List(ctx context.Context, filter pipeline.JobFilter) ([]*pipeline.Job, error) {
	query := `
		SELECT id, status, task_description, user_context, current_phase,
			progress_message, error, resumption, created_at, updated_at
		FROM jobs`
	var args []any

	if filter.Status != nil {
		query += " WHERE status = ?"
		args = append(args, filter.Status.String())
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := d.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*pipeline.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}

	return jobs, rows.Err()
}

// Delete implements pipeline.JobStore.
func (d *JobDAO) Delete(ctx context.Context, id types.ID) error {
	result, err := d.db.conn.ExecContext(ctx, "DELETE FROM jobs WHERE id = ?", id.String())
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return pipeline.NewJobNotFoundError(id)
	}

	return nil
}

// marshalJobFields serializes the JSON and blob columns.
func marshalJobFields(job *pipeline.Job) (userContext sql.NullString, resumption []byte, err error) {
	if job.UserContext != nil {
		data, merr := json.Marshal(job.UserContext)
		if merr != nil {
			return userContext, nil, fmt.Errorf("failed to marshal user context: %w", merr)
		}
		userContext = sql.NullString{String: string(data), Valid: true}
	}

	if job.Resumption != nil {
		resumption, err = pipeline.EncodeResumption(job.Resumption)
		if err != nil {
			return userContext, nil, fmt.Errorf("failed to encode resumption context: %w", err)
		}
	}

	return userContext, resumption, nil
}

// rowScanner covers sql.Row and sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*pipeline.Job, error) {
	var (
		job             pipeline.Job
		id              string
		status          string
		userContext     sql.NullString
		currentPhase    sql.NullString
		progressMessage sql.NullString
		errMessage      sql.NullString
		resumption      []byte
		createdAt       time.Time
		updatedAt       time.Time
	)

	err := row.Scan(&id, &status, &job.TaskDescription, &userContext, &currentPhase,
		&progressMessage, &errMessage, &resumption, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	job.ID = types.ID(id)
	job.Status = pipeline.JobStatus(status)
	job.CurrentPhase = pipeline.PhaseName(currentPhase.String)
	job.ProgressMessage = progressMessage.String
	job.Error = errMessage.String
	job.CreatedAt = createdAt
	job.UpdatedAt = updatedAt

	if userContext.Valid && userContext.String != "" {
		if err := json.Unmarshal([]byte(userContext.String), &job.UserContext); err != nil {
			return nil, fmt.Errorf("failed to unmarshal user context: %w", err)
		}
	}

	if len(resumption) > 0 {
		rc, err := pipeline.DecodeResumption(resumption)
		if err != nil {
			return nil, pipeline.NewResumptionCorruptError(err)
		}
		job.Resumption = rc
	}

	return &job, nil
}
