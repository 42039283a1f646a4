package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/joseph-ayodele/reviews-extractor/constants"
	"github.com/joseph-ayodele/reviews-extractor/internal/entity"
)

func job(batchID, locationID string) entity.ExtractionJob {
	return entity.ExtractionJob{
		BatchID:     batchID,
		LocationID:  locationID,
		Status:      constants.JobStatusSubmitted,
		SubmittedAt: time.Now(),
	}
}

func TestBatchBindingPutGetOverwrite(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchBindingRepository(10, time.Hour, nil)

	if _, ok := repo.Get(ctx, "missing"); ok {
		t.Fatal("expected miss for unknown batch")
	}
	repo.Put(ctx, job("xyz", "2311597048265282150"))
	if got, ok := repo.Get(ctx, "xyz"); !ok || got.LocationID != "2311597048265282150" {
		t.Fatalf("unexpected binding %+v ok=%v", got, ok)
	}
	repo.Put(ctx, job("xyz", "42"))
	if got, _ := repo.Get(ctx, "xyz"); got.LocationID != "42" {
		t.Fatalf("overwrite not applied, got %+v", got)
	}
	if repo.Len() != 1 {
		t.Fatalf("expected 1 binding, got %d", repo.Len())
	}
}

func TestBatchBindingSetStatus(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchBindingRepository(10, time.Hour, nil)

	if repo.SetStatus(ctx, "missing", constants.JobStatusPending) {
		t.Fatal("SetStatus on an unbound batch must report false")
	}
	if repo.Len() != 0 {
		t.Fatal("SetStatus must not create bindings")
	}

	submitted := job("xyz", "7")
	repo.Put(ctx, submitted)
	for _, status := range []constants.JobStatus{constants.JobStatusPending, constants.JobStatusFinished} {
		if !repo.SetStatus(ctx, "xyz", status) {
			t.Fatalf("SetStatus(%s) reported unbound", status)
		}
		got, _ := repo.Get(ctx, "xyz")
		if got.Status != status || got.LocationID != "7" || !got.SubmittedAt.Equal(submitted.SubmittedAt) {
			t.Fatalf("after SetStatus(%s): %+v", status, got)
		}
	}
}

func TestBatchBindingCapacityEvictsOldest(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchBindingRepository(2, 0, nil)
	repo.Put(ctx, job("a", "1"))
	repo.Put(ctx, job("b", "2"))
	repo.Put(ctx, job("c", "3"))

	if _, ok := repo.Get(ctx, "a"); ok {
		t.Fatal("oldest binding should be evicted")
	}
	if got, ok := repo.Get(ctx, "c"); !ok || got.LocationID != "3" {
		t.Fatalf("newest binding missing: %+v %v", got, ok)
	}
}

func TestBatchBindingExpires(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchBindingRepository(10, 20*time.Millisecond, nil)
	repo.Put(ctx, job("a", "1"))
	time.Sleep(60 * time.Millisecond)
	if _, ok := repo.Get(ctx, "a"); ok {
		t.Fatal("binding should have expired")
	}
}

func TestBatchBindingConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchBindingRepository(1000, time.Hour, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			batch := fmt.Sprintf("batch-%d", i)
			repo.Put(ctx, job(batch, fmt.Sprintf("%d", i)))
			repo.SetStatus(ctx, batch, constants.JobStatusPending)
			if got, ok := repo.Get(ctx, batch); !ok || got.LocationID != fmt.Sprintf("%d", i) {
				t.Errorf("batch %s: got %+v ok=%v", batch, got, ok)
			}
		}(i)
	}
	wg.Wait()
	if repo.Len() != 50 {
		t.Fatalf("expected 50 bindings, got %d", repo.Len())
	}
}
