package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStore keeps factorization job records in memory, newest last.
type JobStore struct {
	mu    sync.Mutex
	jobs  map[string]*Job
	order []string
}

func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*Job)}
}

// Create registers a running job and returns its snapshot.
func (s *JobStore) Create(rows, devices int, upper, clean bool, now time.Time) Job {
	job := Job{
		ID:        newJobID(),
		Object:    jobObject,
		Status:    jobStatusRunning,
		CreatedAt: now.Unix(),
		Rows:      rows,
		Devices:   devices,
		Upper:     upper,
		Clean:     clean,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := job
	s.jobs[job.ID] = &stored
	s.order = append(s.order, job.ID)
	return job
}

// Complete marks the job done and records the partition it ran with.
func (s *JobStore) Complete(id string, blocks, blockSize int, took time.Duration, now time.Time) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	completedAt := now.Unix()
	job.Status = jobStatusCompleted
	job.CompletedAt = &completedAt
	job.Blocks = blocks
	job.BlockSize = blockSize
	job.DurationMS = float64(took) / float64(time.Millisecond)
	return *job, true
}

// Fail marks the job failed with its cause.
func (s *JobStore) Fail(id string, cause ResponseError, now time.Time) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	completedAt := now.Unix()
	job.Status = jobStatusFailed
	job.CompletedAt = &completedAt
	job.Error = &cause
	return *job, true
}

func (s *JobStore) Get(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

func (s *JobStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	for i, jid := range s.order {
		if jid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// List returns all jobs in creation order.
func (s *JobStore) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.jobs[id])
	}
	return out
}

func newJobID() string {
	return "job_" + uuid.NewString()
}
