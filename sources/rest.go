package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/5amCurfew/tap-pagerduty/metrics"
	"github.com/5amCurfew/tap-pagerduty/models"
	gojson "github.com/goccy/go-json"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const maxErrorBody = 512

// Fetcher performs one logical GET against the API, retries included
type Fetcher interface {
	Fetch(ctx context.Context, path string, params models.Params) (models.Record, error)
}

// ClientConfig configures the REST client
type ClientConfig struct {
	BaseURL   string
	Token     string
	Email     string
	UserAgent string

	// MaxElapsed caps the total time spent retrying one request.
	MaxElapsed time.Duration
	Backoff    BackoffStrategy

	// RateLimit in requests per second; zero disables client-side limiting.
	RateLimit float64
	Timeout   time.Duration

	// Transport allows injecting a custom HTTP transport (for tests/stubs).
	Transport http.RoundTripper
}

// Client is the retrying fetcher. It holds no per-request state and is
// shared by every stream in a run.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	retries    int64

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

func NewClient(config ClientConfig) *Client {
	if config.BaseURL == "" {
		config.BaseURL = models.DefaultBaseURL
	}
	config.BaseURL = strings.TrimSuffix(config.BaseURL, "/")
	if config.UserAgent == "" {
		config.UserAgent = models.DefaultUserAgent
	}
	if config.MaxElapsed == 0 {
		config.MaxElapsed = models.DefaultRetrySeconds * time.Second
	}
	if config.Backoff == nil {
		config.Backoff = DefaultFibonacciBackoff()
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: config.Transport,
		},
		limiter: rate.NewLimiter(limit, 1),
		now:     time.Now,
		sleep:   wait,
	}
}

// NewClientFromConfig builds the client described by config.json
func NewClientFromConfig(cfg *models.Config) *Client {
	return NewClient(ClientConfig{
		BaseURL:    cfg.APIBaseURL(),
		Token:      cfg.Token,
		Email:      cfg.Email,
		UserAgent:  cfg.Agent(),
		MaxElapsed: cfg.RetryBudget(),
		RateLimit:  cfg.RateLimit,
	})
}

// Retries returns how many attempts have been retried over the client's lifetime
func (c *Client) Retries() int {
	return int(atomic.LoadInt64(&c.retries))
}

// Fetch GETs path with params and returns the decoded JSON object.
// Network failures, 5xx and 429 are retried with Fibonacci backoff until
// MaxElapsed has passed; other 4xx responses fail immediately.
func (c *Client) Fetch(ctx context.Context, path string, params models.Params) (models.Record, error) {
	url := c.config.BaseURL + path
	if query := params.Encode(); query != "" {
		url += "?" + query
	}

	start := c.now()
	for attempt := 1; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		status, body, err := c.getRequest(ctx, url)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("request to %s cancelled: %w", url, ctx.Err())
		}

		if err == nil && status >= 200 && status < 300 {
			var response map[string]interface{}
			if jsonErr := gojson.Unmarshal(body, &response); jsonErr != nil {
				metrics.HTTPRequests.WithLabelValues("giveup").Inc()
				return nil, &models.FetchError{Kind: models.FetchDecode, URL: url, StatusCode: status, Attempts: attempt, Err: jsonErr}
			}
			metrics.HTTPRequests.WithLabelValues("success").Inc()
			log.WithFields(log.Fields{"url": url, "attempt": attempt, "status": status}).Debug("request succeeded")
			return response, nil
		}

		if err == nil && !retryableStatus(status) {
			metrics.HTTPRequests.WithLabelValues("giveup").Inc()
			log.WithFields(log.Fields{"url": url, "attempt": attempt, "status": status}).Error("giving up on request: client error")
			return nil, &models.FetchError{Kind: models.FetchClient, URL: url, StatusCode: status, Attempts: attempt, Body: truncate(body)}
		}

		elapsed := c.now().Sub(start)
		if elapsed >= c.config.MaxElapsed {
			metrics.HTTPRequests.WithLabelValues("giveup").Inc()
			log.WithFields(log.Fields{"url": url, "attempt": attempt, "status": status, "elapsed": elapsed.String(), "error": err}).Error("giving up on request: retry budget exhausted")
			return nil, &models.FetchError{Kind: models.FetchTransient, URL: url, StatusCode: status, Attempts: attempt, Body: truncate(body), Err: err}
		}

		delay := c.config.Backoff.NextDelay(attempt)
		if remaining := c.config.MaxElapsed - elapsed; delay > remaining {
			delay = remaining
		}

		atomic.AddInt64(&c.retries, 1)
		metrics.HTTPRequests.WithLabelValues("retry").Inc()
		metrics.HTTPRetries.Inc()
		log.WithFields(log.Fields{"url": url, "attempt": attempt, "status": status, "delay": delay.String(), "error": err}).Warn("retrying request")

		if err := c.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("retry cancelled: %w", err)
		}
	}
}

// getRequest performs a single GET with the PagerDuty headers
func (c *Client) getRequest(ctx context.Context, url string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("error creating get request: %w", err)
	}

	req.Header.Set("Accept", "application/vnd.pagerduty+json;version=2")
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Authorization", "Token token="+c.config.Token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("From", c.config.Email)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("error executing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("error reading response body: %w", err)
	}
	return resp.StatusCode, body, nil
}

func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody] + "..."
	}
	return s
}
