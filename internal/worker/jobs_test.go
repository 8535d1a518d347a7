package worker

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/thebtf/promptvault/internal/ingest"
)

func TestJobRegistry_ApplyAndFinish(t *testing.T) {
	r := newJobRegistry(10)
	r.add(&Job{ID: "j1", UserID: "alice", State: ingest.StateIdle})

	r.apply(ingest.Event{JobID: "j1", State: ingest.StateEnriching, Message: "Analyzing prompt 1/2", Progress: ingest.Progress{Completed: 0, Total: 2}})
	job, ok := r.get("alice", "j1")
	assert.True(t, ok)
	assert.Equal(t, ingest.StateEnriching, job.State)
	assert.Equal(t, 2, job.Progress.Total)

	r.apply(ingest.Event{JobID: "unknown", State: ingest.StateDone})

	r.finish("j1", &ingest.Report{State: ingest.StateDone, Saved: 2}, time.Now())
	job, _ = r.get("alice", "j1")
	assert.Equal(t, ingest.StateDone, job.State)
	assert.Equal(t, 2, job.Report.Saved)
	assert.NotNil(t, job.FinishedAt)

	_, ok = r.get("bob", "j1")
	assert.False(t, ok)
}

func TestJobRegistry_ErrorKeepsProgress(t *testing.T) {
	r := newJobRegistry(10)
	r.add(&Job{ID: "j1", UserID: "alice"})
	r.apply(ingest.Event{JobID: "j1", State: ingest.StateSaving, Progress: ingest.Progress{Total: 3}})
	r.apply(ingest.Event{JobID: "j1", State: ingest.StateError, Message: "Saving prompts failed.", Error: "disk full"})

	job, _ := r.get("alice", "j1")
	assert.Equal(t, ingest.StateError, job.State)
	assert.Equal(t, "disk full", job.Error)
	assert.Equal(t, 3, job.Progress.Total)
}

func TestJobRegistry_EvictsOldestFinished(t *testing.T) {
	r := newJobRegistry(3)
	r.add(&Job{ID: "running", UserID: "alice", State: ingest.StateParsing})
	for i := 0; i < 4; i++ {
		r.add(&Job{ID: fmt.Sprintf("done-%d", i), UserID: "alice", State: ingest.StateDone})
	}

	_, ok := r.get("alice", "running")
	assert.True(t, ok)
	_, ok = r.get("alice", "done-0")
	assert.False(t, ok)

	ids := []string{}
	for _, j := range r.list("alice") {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{"done-3", "done-2", "running"}, ids)
}
