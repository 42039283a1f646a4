package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/reviews-extractor/internal/common"
	"github.com/joseph-ayodele/reviews-extractor/internal/entity"
	"github.com/joseph-ayodele/reviews-extractor/internal/extract"
	"github.com/joseph-ayodele/reviews-extractor/internal/pleper"
)

// API is the extraction service as seen from a client.
type API interface {
	Submit(ctx context.Context, locationID string) (pleper.Submission, error)
	Results(ctx context.Context, batchID string) (extract.PollResult, error)
}

// APIError is a {success:false,message,code} reply. It unwraps to the error class named by
// Code, falling back to the HTTP status when the reply carries no code.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string { return e.Message }

func (e *APIError) Unwrap() error {
	if sentinel, ok := common.SentinelForCode(e.Code); ok {
		return sentinel
	}
	switch {
	case e.StatusCode == http.StatusNotFound:
		return common.ErrNotFound
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return common.ErrInvalidInput
	default:
		return common.ErrUpstreamUnavailable
	}
}

// CredentialInfo is the masked view of the active credential.
type CredentialInfo struct {
	Credential string `json:"credential"`
	Source     string `json:"source"`
}

// Client talks to a running reviews service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 5 * time.Second,
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		logger:     logger,
	}
}

type envelope struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	Code        string            `json:"code"`
	Data        pleper.Submission `json:"data"`
	Ready       bool              `json:"ready"`
	Status      string            `json:"status"`
	FileName    string            `json:"fileName"`
	ReviewCount int               `json:"reviewCount"`
}

func (c *Client) Submit(ctx context.Context, locationID string) (pleper.Submission, error) {
	body, _ := json.Marshal(map[string]string{"locationId": locationID})
	var env envelope
	if err := c.doJSON(ctx, http.MethodPost, "/extract-reviews", body, &env); err != nil {
		return pleper.Submission{}, err
	}
	return env.Data, nil
}

func (c *Client) Results(ctx context.Context, batchID string) (extract.PollResult, error) {
	var env envelope
	if err := c.doJSON(ctx, http.MethodGet, "/get-results/"+url.PathEscape(batchID), nil, &env); err != nil {
		return extract.PollResult{}, err
	}
	if !env.Ready {
		return extract.PollResult{Status: env.Status}, nil
	}
	return extract.PollResult{
		Ready:    true,
		Status:   env.Status,
		Artifact: entity.Artifact{FileName: env.FileName, ReviewCount: env.ReviewCount},
	}, nil
}

// Credential returns the masked active credential.
func (c *Client) Credential(ctx context.Context) (CredentialInfo, error) {
	var info CredentialInfo
	err := c.doJSON(ctx, http.MethodGet, "/config/credential", nil, &info)
	return info, err
}

func (c *Client) UpdateCredential(ctx context.Context, value string) error {
	body, _ := json.Marshal(map[string]string{"credential": value})
	return c.doJSON(ctx, http.MethodPost, "/config/credential", body, &envelope{})
}

// Download copies the artifact fileName into w.
func (c *Client) Download(ctx context.Context, fileName string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, "/download/"+url.PathEscape(fileName), nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, readAPIError(resp)
	}
	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("download %s: %w", fileName, err)
	}
	return n, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	reqID := uuid.NewString()
	req.Header.Set("X-Request-Id", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Error("client.http.send_error", "req_id", reqID, "method", method, "path", path, "error", err)
		return nil, common.UpstreamUnavailable("reviews service unreachable", err)
	}
	c.logger.Debug("client.http.response",
		"req_id", reqID,
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return common.UpstreamUnavailable("malformed response from reviews service", err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	var env envelope
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(raw, &env); err != nil || env.Message == "" {
		env.Message = fmt.Sprintf("reviews service returned status %d", resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Message}
}

// IsRetryable reports whether err is a transient failure rather than a rejection.
func IsRetryable(err error) bool {
	return errors.Is(err, common.ErrUpstreamUnavailable)
}
