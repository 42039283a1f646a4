package constants

// JobStatus is the canonical status of an extraction job.
type JobStatus string

// Stable values. Pending covers every non-terminal status the upstream reports
// ("Processing", "Queued", ...); the raw upstream text is kept alongside.
const (
	JobStatusSubmitted JobStatus = "SUBMITTED" // batch id obtained
	JobStatusPending   JobStatus = "PENDING"   // polled, not finished yet
	JobStatusFinished  JobStatus = "FINISHED"  // terminal, results extracted
	JobStatusFailed    JobStatus = "FAILED"    // terminal failure
)

// UpstreamFinished is the only status string the scraping service uses for a completed batch.
const UpstreamFinished = "Finished"

// StatusFromUpstream maps a raw upstream batch status onto a JobStatus.
func StatusFromUpstream(raw string) JobStatus {
	if raw == UpstreamFinished {
		return JobStatusFinished
	}
	return JobStatusPending
}

// IsTerminal reports whether no further polling is expected for s.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusFinished || s == JobStatusFailed
}
