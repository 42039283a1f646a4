package pleper

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/reviews-extractor/internal/common"
)

const maxResponseBytes = 64 << 20

// send issues req and returns the raw body with the status code. A non-2xx status is
// not an error here; callers decide how to read the body.
func (c *Client) send(ctx context.Context, req *http.Request, op string) ([]byte, int, error) {
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	start := time.Now()

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)

	c.log.Info("pleper.http.request",
		"req_id", reqID,
		"op", op,
		"method", req.Method,
		"path", req.URL.Path,
	)

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		c.log.Error("pleper.http.send_error", "req_id", reqID, "op", op, "error", redact(err.Error()), "elapsed_ms", time.Since(start).Milliseconds())
		return nil, 0, err
	}
	defer func(Body io.ReadCloser) {
		err := Body.Close()
		if err != nil {
			c.log.Warn("pleper.http.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.log.Error("pleper.http.read_error", "req_id", reqID, "op", op, "error", err)
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	c.log.Info("pleper.http.response",
		"req_id", reqID,
		"op", op,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return raw, resp.StatusCode, nil
}

// decodeDocument parses a JSON body keeping numbers as json.Number so large ids survive.
func decodeDocument(raw []byte) (any, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// redact strips query strings from transport errors; the results URL carries the api key.
func redact(msg string) string {
	idx := strings.Index(msg, "?")
	if idx < 0 {
		return msg
	}
	end := strings.IndexAny(msg[idx:], "\" ")
	if end < 0 {
		return msg[:idx] + "?<redacted>"
	}
	return msg[:idx] + "?<redacted>" + msg[idx+end:]
}
