package pipeline

import (
	"context"
	"sort"
	"sync"

	"github.com/Qredence/skill-fleet/internal/types"
)

// JobFilter narrows a List call.
type JobFilter struct {
	Status *JobStatus
	Limit  int
}

// JobStore persists jobs across suspensions and process restarts. The
// Controller writes through it at every status transition.
type JobStore interface {
	// Create inserts a new job. Fails if the ID already exists.
	Create(ctx context.Context, job *Job) error

	// Get retrieves a job by ID. Returns ErrJobNotFound when absent.
	Get(ctx context.Context, id types.ID) (*Job, error)

	// Update overwrites an existing job.
	Update(ctx context.Context, job *Job) error

	// List returns jobs matching the filter, newest first.
	List(ctx context.Context, filter JobFilter) ([]*Job, error)

	// Delete removes a job.
	Delete(ctx context.Context, id types.ID) error
}

// MemoryStore is an in-process JobStore for tests and ephemeral runs.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[types.ID]*Job
}

var _ JobStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory job store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[types.ID]*Job)}
}

// Create implements JobStore.
func (s *MemoryStore) Create(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return types.NewError(ErrInvalidState, "job already exists: "+job.ID.String())
	}

	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

// Get implements JobStore.
func (s *MemoryStore) Get(ctx context.Context, id types.ID) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, NewJobNotFoundError(id)
	}

	copied := *job
	return &copied, nil
}

// Update implements JobStore.
func (s *MemoryStore) Update(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[job.ID]; !ok {
		return NewJobNotFoundError(job.ID)
	}

	copied := *job
	s.jobs[job.ID] = &copied
	return nil
}

// List implements JobStore.
func (s *MemoryStore) List(ctx context.Context, filter JobFilter) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := make([]*Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.Status != nil && job.Status != *filter.Status {
			continue
		}
		copied := *job
		jobs = append(jobs, &copied)
	}

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})

	if filter.Limit > 0 && len(jobs) > filter.Limit {
		jobs = jobs[:filter.Limit]
	}

	return jobs, nil
}

// Delete implements JobStore.
func (s *MemoryStore) Delete(ctx context.Context, id types.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[id]; !ok {
		return NewJobNotFoundError(id)
	}

	delete(s.jobs, id)
	return nil
}
