package worker

import (
	"sync"
	"time"

	"github.com/thebtf/promptvault/internal/ingest"
)

// maxJobs is how many import jobs are remembered. Older finished jobs are
// forgotten first.
const maxJobs = 256

// Job is the visible state of one import.
type Job struct {
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Report     *ingest.Report  `json:"report,omitempty"`
	ID         string          `json:"id"`
	UserID     string          `json:"-"`
	FileName   string          `json:"file_name"`
	State      ingest.State    `json:"state"`
	Message    string          `json:"message"`
	Error      string          `json:"error,omitempty"`
	Progress   ingest.Progress `json:"progress"`
}

type jobRegistry struct {
	jobs  map[string]*Job
	order []string
	max   int
	mu    sync.RWMutex
}

func newJobRegistry(max int) *jobRegistry {
	if max <= 0 {
		max = maxJobs
	}
	return &jobRegistry{jobs: make(map[string]*Job), max: max}
}

func (r *jobRegistry) add(job *Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = job
	r.order = append(r.order, job.ID)
	r.evictLocked()
}

// evictLocked drops the oldest finished jobs while over capacity. Running
// jobs are never dropped.
func (r *jobRegistry) evictLocked() {
	for i := 0; len(r.jobs) > r.max && i < len(r.order); {
		id := r.order[i]
		if j, ok := r.jobs[id]; ok && !j.State.Terminal() {
			i++
			continue
		}
		delete(r.jobs, id)
		r.order = append(r.order[:i], r.order[i+1:]...)
	}
}

// apply records a pipeline event.
func (r *jobRegistry) apply(e ingest.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[e.JobID]
	if !ok {
		return
	}
	j.State = e.State
	j.Message = e.Message
	j.Error = e.Error
	if e.State != ingest.StateError {
		j.Progress = e.Progress
	}
}

// finish stores the final report.
func (r *jobRegistry) finish(id string, rep *ingest.Report, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return
	}
	j.Report = rep
	j.State = rep.State
	if rep.Error != "" {
		j.Message = rep.Error
	}
	j.FinishedAt = &at
	r.evictLocked()
}

// get returns a copy of a job owned by userID.
func (r *jobRegistry) get(userID, id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok || j.UserID != userID {
		return Job{}, false
	}
	return *j, true
}

// list returns the user's jobs, newest first.
func (r *jobRegistry) list(userID string) []Job {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []Job{}
	for i := len(r.order) - 1; i >= 0; i-- {
		if j, ok := r.jobs[r.order[i]]; ok && j.UserID == userID {
			out = append(out, *j)
		}
	}
	return out
}
