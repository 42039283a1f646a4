package extract

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/reviews-extractor/constants"
	"github.com/joseph-ayodele/reviews-extractor/internal/common"
	"github.com/joseph-ayodele/reviews-extractor/internal/entity"
	"github.com/joseph-ayodele/reviews-extractor/internal/pleper"
	"github.com/joseph-ayodele/reviews-extractor/internal/repository"
)

// Service submits extraction batches and turns finished ones into artifacts.
type Service struct {
	source   BatchSource
	bindings repository.BatchBindingRepository
	exporter ArtifactWriter
	logger   *slog.Logger
}

func NewService(source BatchSource, bindings repository.BatchBindingRepository, exporter ArtifactWriter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{source: source, bindings: bindings, exporter: exporter, logger: logger}
}

// Submit validates locationID, starts a batch for it and records batchId -> locationId.
func (s *Service) Submit(ctx context.Context, locationID string) (pleper.Submission, error) {
	locationID = strings.TrimSpace(locationID)
	v := common.NewValidator().Field("locationId", locationID, common.Required, common.Numeric)
	if err := common.ValidateAndReturnError(v); err != nil {
		return pleper.Submission{}, err
	}

	sub, err := s.source.Submit(ctx, locationID)
	if err != nil {
		return pleper.Submission{}, err
	}
	job := entity.ExtractionJob{
		LocationID:  locationID,
		BatchID:     sub.BatchID,
		Status:      constants.JobStatusSubmitted,
		SubmittedAt: time.Now().UTC(),
	}
	s.bindings.Put(ctx, job)

	s.logger.Info("extract.submit.ok",
		"location_id", locationID,
		"batch_id", sub.BatchID,
		"job_id", sub.JobID,
		"queries_left", sub.QueriesLeft,
	)
	return sub, nil
}

// Poll checks batchID once. Unknown batch ids are still polled; they only lose their location
// in the artifact name.
func (s *Service) Poll(ctx context.Context, batchID string) (PollResult, error) {
	batchID = strings.TrimSpace(batchID)
	v := common.NewValidator().Field("batchId", batchID, common.Required, common.MaxLength(256))
	if err := common.ValidateAndReturnError(v); err != nil {
		return PollResult{}, err
	}

	res, err := s.source.Results(ctx, batchID)
	if err != nil {
		s.bindings.SetStatus(ctx, batchID, constants.JobStatusFailed)
		return PollResult{}, err
	}
	status := constants.StatusFromUpstream(res.Status)
	if !res.Finished || !status.IsTerminal() {
		s.bindings.SetStatus(ctx, batchID, constants.JobStatusPending)
		s.logger.Debug("extract.poll.pending", "batch_id", batchID, "status", res.Status)
		return PollResult{Ready: false, Status: res.Status}, nil
	}

	job, ok := s.bindings.Get(ctx, batchID)
	locationID := job.LocationID
	if !ok {
		s.logger.Warn("extract.poll.unbound", "batch_id", batchID)
		locationID = constants.UnknownLocation
	}

	art, err := s.exporter.Generate(ctx, locationID, res.Reviews)
	if err != nil {
		s.bindings.SetStatus(ctx, batchID, constants.JobStatusFailed)
		return PollResult{}, err
	}
	s.bindings.SetStatus(ctx, batchID, constants.JobStatusFinished)

	attrs := []any{
		"batch_id", batchID,
		"location_id", locationID,
		"file", art.FileName,
		"reviews", art.ReviewCount,
	}
	if ok {
		attrs = append(attrs, "since_submit_ms", time.Since(job.SubmittedAt).Milliseconds())
	}
	s.logger.Info("extract.poll.ready", attrs...)
	return PollResult{Ready: true, Status: res.Status, Artifact: art}, nil
}
