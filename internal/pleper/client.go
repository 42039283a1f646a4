package pleper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/joseph-ayodele/reviews-extractor/internal/common"
	"github.com/joseph-ayodele/reviews-extractor/internal/credential"
)

const defaultRejectMessage = "Failed to initiate review extraction"

// Submit starts a reviews batch for the Google Maps location cid.
func (c *Client) Submit(ctx context.Context, cid string) (Submission, error) {
	start := time.Now()
	apiKey := c.credentials.Read()

	form := url.Values{}
	form.Set("api-key", apiKey)
	form.Set("batch_id", NewBatchTag)
	form.Set("profile_url", fmt.Sprintf(profileURLFmt, cid))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+submitPath, strings.NewReader(form.Encode()))
	if err != nil {
		return Submission{}, common.UpstreamUnavailable("build submit request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.log.Info("pleper.submit.start", "cid", cid, "credential", credential.Mask(apiKey))
	raw, status, err := c.send(ctx, req, "submit")
	if err != nil {
		return Submission{}, common.UpstreamUnavailable("scraping service unreachable", err)
	}

	doc, decodeErr := decodeDocument(raw)
	if decodeErr == nil {
		decodeErr = validateDocument(submitSchema, doc)
	}
	if decodeErr != nil {
		c.log.Error("pleper.submit.malformed", "cid", cid, "status", status, "error", decodeErr)
		return Submission{}, common.UpstreamUnavailable(fmt.Sprintf("unexpected submit response (status %d)", status), decodeErr)
	}
	obj := doc.(map[string]any)

	if ok, _ := obj["success"].(bool); !ok {
		msg := firstString(obj, "message", "error")
		if msg == "" {
			msg = defaultRejectMessage
		}
		c.log.Warn("pleper.submit.rejected", "cid", cid, "status", status, "message", msg)
		return Submission{}, common.UpstreamRejected(msg)
	}
	if status/100 != 2 {
		return Submission{}, common.UpstreamUnavailable(fmt.Sprintf("submit returned status %d", status), nil)
	}

	sub := Submission{
		BatchID:     stringify(obj["batch_id"]),
		JobID:       stringify(obj["job_id"]),
		QueriesLeft: stringify(obj["queries_left"]),
	}
	if sub.BatchID == "" {
		return Submission{}, common.UpstreamUnavailable("submit response has no batch_id", errors.New("missing batch_id"))
	}

	c.log.Info("pleper.submit.ok",
		"cid", cid,
		"batch_id", sub.BatchID,
		"job_id", sub.JobID,
		"queries_left", sub.QueriesLeft,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return sub, nil
}

// Results fetches the status of batchID and, once it is Finished, the flattened reviews.
func (c *Client) Results(ctx context.Context, batchID string) (BatchResults, error) {
	start := time.Now()
	apiKey := c.credentials.Read()

	q := url.Values{}
	q.Set("api_key", apiKey)
	q.Set("batch_id", batchID)
	endpoint := c.cfg.BaseURL + resultsPath + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return BatchResults{}, common.UpstreamUnavailable("build results request", err)
	}

	raw, status, err := c.send(ctx, req, "results")
	if err != nil {
		return BatchResults{}, common.UpstreamUnavailable("scraping service unreachable", err)
	}
	if status/100 != 2 {
		c.log.Warn("pleper.results.status", "batch_id", batchID, "status", status)
		return BatchResults{}, common.UpstreamUnavailable(fmt.Sprintf("results returned status %d", status), nil)
	}

	doc, decodeErr := decodeDocument(raw)
	if decodeErr == nil {
		decodeErr = validateDocument(resultsSchema, doc)
	}
	if decodeErr != nil {
		c.log.Error("pleper.results.malformed", "batch_id", batchID, "status", status, "error", decodeErr)
		return BatchResults{}, common.UpstreamUnavailable(fmt.Sprintf("unexpected results response (status %d)", status), decodeErr)
	}
	obj := doc.(map[string]any)
	batchStatus := obj["status"].(string)

	if batchStatus != finishedStatus {
		c.log.Info("pleper.results.pending", "batch_id", batchID, "status", batchStatus, "elapsed_ms", time.Since(start).Milliseconds())
		return BatchResults{Status: batchStatus}, nil
	}

	reviews := FlattenReviews(obj["results"])
	c.log.Info("pleper.results.finished",
		"batch_id", batchID,
		"reviews", len(reviews),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return BatchResults{Status: batchStatus, Finished: true, Reviews: reviews}, nil
}
