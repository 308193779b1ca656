package inmemory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/finance-ledger/internal/jobs"
)

func TestPublishSweepDefaults(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store)
	defer q.Close()

	job := &jobs.SweepJob{}
	if err := q.PublishSweep(context.Background(), job); err != nil {
		t.Fatalf("PublishSweep failed: %v", err)
	}

	if job.JobID == "" {
		t.Error("JobID not generated")
	}
	if job.Status != jobs.JobStatusPending {
		t.Errorf("Status = %v, want %v", job.Status, jobs.JobStatusPending)
	}
	if job.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if job.MaxRetries != 3 {
		t.Errorf("MaxRetries = %d, want 3", job.MaxRetries)
	}

	saved, err := store.GetJob(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("job not saved to store: %v", err)
	}
	if saved.Status != jobs.JobStatusPending {
		t.Errorf("stored status = %v, want %v", saved.Status, jobs.JobStatusPending)
	}
}

func TestQueueProcessesJobs(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store)

	var mu sync.Mutex
	handled := make(map[string]int)
	done := make(chan string, 4)

	handler := func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		handled[job.GetID()]++
		mu.Unlock()
		done <- job.GetID()
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	published := []*jobs.SweepJob{
		{DefinitionID: "r1"},
		{},
	}
	for _, job := range published {
		if err := q.PublishSweep(ctx, job); err != nil {
			t.Fatalf("PublishSweep failed: %v", err)
		}
	}

	for range published {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for jobs to be handled")
		}
	}

	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	for _, job := range published {
		mu.Lock()
		count := handled[job.JobID]
		mu.Unlock()
		if count != 1 {
			t.Errorf("job %s handled %d times, want 1", job.JobID, count)
		}
		saved, err := store.GetJob(context.Background(), job.JobID)
		if err != nil {
			t.Fatalf("GetJob(%s) failed: %v", job.JobID, err)
		}
		if saved.Status != jobs.JobStatusCompleted {
			t.Errorf("job %s status = %v, want %v", job.JobID, saved.Status, jobs.JobStatusCompleted)
		}
		if saved.StartedAt == nil || saved.CompletedAt == nil {
			t.Errorf("job %s missing timestamps: started=%v completed=%v",
				job.JobID, saved.StartedAt, saved.CompletedAt)
		}
	}
}

func TestQueueRetriesFailedJob(t *testing.T) {
	store := NewStore()
	q := NewQueue(4, store)

	var mu sync.Mutex
	attempts := 0
	done := make(chan struct{}, 8)

	handler := func(ctx context.Context, job jobs.Job) error {
		mu.Lock()
		attempts++
		n := attempts
		mu.Unlock()
		done <- struct{}{}
		if n == 1 {
			return fmt.Errorf("transient failure")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := q.Start(ctx, handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	job := &jobs.SweepJob{MaxRetries: 2}
	if err := q.PublishSweep(ctx, job); err != nil {
		t.Fatalf("PublishSweep failed: %v", err)
	}

	// First attempt fails, the retry (after backoff) succeeds.
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(10 * time.Second):
			t.Fatal("timed out waiting for job attempts")
		}
	}

	// Let the second attempt's status write land before inspecting.
	deadline := time.Now().Add(5 * time.Second)
	for {
		saved, err := store.GetJob(context.Background(), job.JobID)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if saved.Status == jobs.JobStatusCompleted {
			if saved.RetryCount != 1 {
				t.Errorf("RetryCount = %d, want 1", saved.RetryCount)
			}
			if saved.Error != "" {
				t.Errorf("Error = %q, want empty after successful retry", saved.Error)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("job never completed, status = %v", saved.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestPublishAfterCloseFails(t *testing.T) {
	q := NewQueue(1, NewStore())
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := q.PublishSweep(context.Background(), &jobs.SweepJob{}); err == nil {
		t.Error("PublishSweep succeeded on a closed queue")
	}
}

func TestJobStoreFilters(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	seed := []*jobs.SweepJob{
		{JobID: "j1", DefinitionID: "r1", Status: jobs.JobStatusCompleted},
		{JobID: "j2", DefinitionID: "r1", Status: jobs.JobStatusFailed},
		{JobID: "j3", Status: jobs.JobStatusCompleted},
	}
	for _, job := range seed {
		if err := store.SaveJob(ctx, job); err != nil {
			t.Fatalf("SaveJob(%s) failed: %v", job.JobID, err)
		}
	}

	byDef, err := store.ListJobs(ctx, jobs.JobFilter{DefinitionID: "r1"})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(byDef) != 2 {
		t.Errorf("filter by definition returned %d jobs, want 2", len(byDef))
	}

	byStatus, err := store.ListJobs(ctx, jobs.JobFilter{Status: jobs.JobStatusFailed})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(byStatus) != 1 || byStatus[0].JobID != "j2" {
		t.Errorf("filter by status returned %+v", byStatus)
	}

	limited, err := store.ListJobs(ctx, jobs.JobFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListJobs failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limit 1 returned %d jobs", len(limited))
	}
}
