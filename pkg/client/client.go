// Package client fetches tag-listing pages over HTTP and classifies the
// outcome of each request.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Sternrassler/tagpages/pkg/tags"
)

// Prometheus metrics for page requests.
var (
	pageRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagpages_requests_total",
		Help: "Total page requests by HTTP status",
	}, []string{"status"})

	pageRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tagpages_request_duration_seconds",
		Help:    "Page request duration in seconds",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	pageErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tagpages_errors_total",
		Help: "Total page fetch errors by kind",
	}, []string{"kind"})
)

// StatusNetworkError labels tagpages_requests_total when no response arrived.
const StatusNetworkError = "network_error"

// DefaultBaseURL is the tag listing endpoint.
const DefaultBaseURL = "https://gelbooru.com/index.php"

// PageFetcher fetches a single page by index.
type PageFetcher interface {
	// FetchPage returns the decoded page and the verbatim response body.
	FetchPage(ctx context.Context, page int) (*tags.PageResult, []byte, error)
}

// Config holds the client configuration.
type Config struct {
	// BaseURL of the listing endpoint, without query string.
	BaseURL string

	// Credentials sent as query parameters.
	APIKey string
	UserID string

	// UserAgent header; optional.
	UserAgent string

	// Timeout per request.
	Timeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig(apiKey, userID string) Config {
	return Config{
		BaseURL:   DefaultBaseURL,
		APIKey:    apiKey,
		UserID:    userID,
		UserAgent: "tagpages/1.0",
		Timeout:   30 * time.Second,
	}
}

// Client fetches pages. A Client owns its connection pool and is meant to be
// used by a single worker.
type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	config     Config
	logger     zerolog.Logger
}

// New creates a new client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base url must be http or https (got %q)", cfg.BaseURL)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
		},
		baseURL: base,
		config:  cfg,
		logger:  log.With().Str("component", "page-client").Logger(),
	}, nil
}

// PageURL builds the request URL for a page index.
func (c *Client) PageURL(page int) string {
	u := *c.baseURL
	q := u.Query()
	q.Set("page", "dapi")
	q.Set("s", "tag")
	q.Set("q", "index")
	q.Set("json", "1")
	q.Set("pid", strconv.Itoa(page))
	q.Set("api_key", c.config.APIKey)
	q.Set("user_id", c.config.UserID)
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchPage performs one GET for the page and classifies the response.
func (c *Client) FetchPage(ctx context.Context, page int) (*tags.PageResult, []byte, error) {
	startTime := time.Now()
	defer func() {
		pageRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PageURL(page), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	c.logger.Debug().Int("page", page).Msg("Executing page request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		pageRequestsTotal.WithLabelValues(StatusNetworkError).Inc()
		pageErrorsTotal.WithLabelValues(string(KindTransport)).Inc()
		return nil, nil, &TransportError{Page: page, Err: err}
	}
	defer resp.Body.Close()

	pageRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		pageErrorsTotal.WithLabelValues(string(KindTransport)).Inc()
		return nil, nil, &TransportError{Page: page, StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		pageErrorsTotal.WithLabelValues(string(KindTransport)).Inc()
		c.logger.Debug().
			Int("page", page).
			Int("status_code", resp.StatusCode).
			Msg("Page request returned non-success status")
		return nil, nil, &TransportError{Page: page, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status %s", resp.Status)}
	}

	result, err := tags.Decode(body)
	if err != nil {
		pageErrorsTotal.WithLabelValues(string(KindDeserialization)).Inc()
		return nil, nil, &DeserializationError{Page: page, Body: body, Err: err}
	}

	if result.IsEmpty() {
		pageErrorsTotal.WithLabelValues(string(KindEmpty)).Inc()
		return nil, nil, &EmptyResultError{Page: page}
	}

	return result, body, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
