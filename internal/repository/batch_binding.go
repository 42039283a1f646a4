package repository

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/joseph-ayodele/reviews-extractor/constants"
	"github.com/joseph-ayodele/reviews-extractor/internal/entity"
)

// BatchBindingRepository remembers the extraction job behind each upstream batch.
// Bindings live only in memory; a restart forgets them.
type BatchBindingRepository interface {
	Put(ctx context.Context, job entity.ExtractionJob)
	Get(ctx context.Context, batchID string) (entity.ExtractionJob, bool)
	// SetStatus records the latest status for batchID. It reports false when the batch is not bound.
	SetStatus(ctx context.Context, batchID string, status constants.JobStatus) bool
	Len() int
}

type batchBindingRepo struct {
	mu    sync.Mutex
	cache *expirable.LRU[string, entity.ExtractionJob]
	log   *slog.Logger
}

// NewBatchBindingRepository bounds the table to capacity entries, each kept for at most ttl.
// A non-positive ttl disables expiry; eviction by capacity still applies.
func NewBatchBindingRepository(capacity int, ttl time.Duration, log *slog.Logger) BatchBindingRepository {
	if capacity <= 0 {
		capacity = 10000
	}
	if ttl < 0 {
		ttl = 0
	}
	if log == nil {
		log = slog.Default()
	}
	r := &batchBindingRepo{log: log}
	r.cache = expirable.NewLRU[string, entity.ExtractionJob](capacity, func(batchID string, job entity.ExtractionJob) {
		r.log.Debug("batch_binding evicted", "batch_id", batchID, "location_id", job.LocationID, "status", job.Status)
	}, ttl)
	return r
}

// Put inserts or overwrites the binding for job.BatchID.
func (r *batchBindingRepo) Put(_ context.Context, job entity.ExtractionJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Add(job.BatchID, job)
	r.log.Debug("batch_binding stored", "batch_id", job.BatchID, "location_id", job.LocationID)
}

func (r *batchBindingRepo) Get(_ context.Context, batchID string) (entity.ExtractionJob, bool) {
	return r.cache.Get(batchID)
}

func (r *batchBindingRepo) SetStatus(_ context.Context, batchID string, status constants.JobStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.cache.Peek(batchID)
	if !ok {
		return false
	}
	if job.Status != status {
		r.log.Debug("batch_binding status", "batch_id", batchID, "from", job.Status, "to", status)
	}
	job.Status = status
	r.cache.Add(batchID, job)
	return true
}

func (r *batchBindingRepo) Len() int {
	return r.cache.Len()
}
