package extract

import (
	"context"

	"github.com/joseph-ayodele/reviews-extractor/internal/entity"
	"github.com/joseph-ayodele/reviews-extractor/internal/pleper"
)

// BatchSource starts batches and reports their progress.
type BatchSource interface {
	Submit(ctx context.Context, cid string) (pleper.Submission, error)
	Results(ctx context.Context, batchID string) (pleper.BatchResults, error)
}

// ArtifactWriter materializes a finished review set.
type ArtifactWriter interface {
	Generate(ctx context.Context, locationID string, reviews []entity.Review) (entity.Artifact, error)
}

// PollResult is one poll outcome. When Ready is false only Status is set.
type PollResult struct {
	Ready    bool
	Status   string
	Artifact entity.Artifact
}
