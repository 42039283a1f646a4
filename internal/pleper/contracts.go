package pleper

import "github.com/joseph-ayodele/reviews-extractor/internal/entity"

// Submission is what the service reports after accepting a batch.
// Only BatchID is used by this system; the rest is passed through for display.
type Submission struct {
	BatchID     string `json:"batchId"`
	JobID       string `json:"jobId"`
	QueriesLeft string `json:"queriesRemaining"`
}

// BatchResults is one status/results poll.
type BatchResults struct {
	Status   string
	Finished bool
	Reviews  []entity.Review
}
