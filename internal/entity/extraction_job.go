package entity

import (
	"time"

	"github.com/joseph-ayodele/reviews-extractor/constants"
)

// ExtractionJob is the local view of one upstream batch.
type ExtractionJob struct {
	LocationID  string              `json:"location_id"`
	BatchID     string              `json:"batch_id"`
	Status      constants.JobStatus `json:"status"`
	SubmittedAt time.Time           `json:"submitted_at"`
}

// Artifact describes a generated export file.
type Artifact struct {
	FileName    string `json:"fileName"`
	ReviewCount int    `json:"reviewCount"`
}
