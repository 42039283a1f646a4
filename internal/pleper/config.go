package pleper

import (
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/joseph-ayodele/reviews-extractor/internal/credential"
)

// Upstream endpoints and form values.
const (
	DefaultBaseURL  = "https://scrape.pleper.com"
	submitPath      = "/v3/google/by-profile/reviews"
	resultsPath     = "/v3/batch_get_results"
	NewBatchTag     = "new_commit"
	ReviewsGroupKey = "google/by-profile/reviews"
	profileURLFmt   = "https://maps.google.com/?cid=%s"
)

// Config for the Pleper client.
type Config struct {
	BaseURL string        // default https://scrape.pleper.com
	Timeout time.Duration // http client timeout, bounds every upstream call
}

// Client talks to the scraping service. The credential is resolved on every call.
type Client struct {
	cfg         Config
	credentials credential.Reader
	httpClient  *http.Client
	log         *slog.Logger
}

func NewClient(cfg Config, credentials credential.Reader, logger *slog.Logger) *Client {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:         cfg,
		credentials: credentials,
		httpClient:  newHTTPClient(cfg.Timeout),
		log:         logger,
	}
}

// newHTTPClient creates an HTTP client tuned for outbound calls to the scraping service.
func newHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 5 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
