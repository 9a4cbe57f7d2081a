// Package fetcher provides the rate-limited, retrying HTTP client every
// network access in the pipeline funnels through.
package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config controls client behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	MinDelay  time.Duration
}

// Result carries the response of a successful GET.
type Result struct {
	URL        string
	StatusCode int
	Body       []byte
}

// StatusError tags a non-2xx HTTP response. Codes 429 and 5xx are treated as
// transient by the retry policy; other client errors are returned immediately.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http status %d for %s", e.Code, e.URL)
}

// Transient reports whether the status is worth retrying.
func (e *StatusError) Transient() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// RetryPolicy decides whether a failed attempt is repeated and how long to
// wait before the next one.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Client implements rate-limited HTTP GET with bounded retries on top of a
// Colly collector. Failures come back as tagged error values; nothing panics
// past this boundary.
type Client struct {
	cfg           Config
	baseCollector *colly.Collector
	limiter       *rate.Limiter
	retry         RetryPolicy
	logger        *zap.Logger
}

// New constructs a configured Client.
func New(cfg Config, retry RetryPolicy, logger *zap.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = 300 * time.Millisecond
	}
	base := colly.NewCollector(colly.UserAgent(cfg.UserAgent))
	base.AllowURLRevisit = true
	base.WithTransport(&http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          32,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       30 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: cfg.Timeout,
		ForceAttemptHTTP2:     true,
	})
	base.SetRequestTimeout(cfg.Timeout)

	return &Client{
		cfg:           cfg,
		baseCollector: base,
		limiter:       rate.NewLimiter(rate.Every(cfg.MinDelay), 1),
		retry:         retry,
		logger:        logger,
	}
}

// Get retrieves a URL, inserting the minimum inter-request delay before every
// attempt and retrying transient failures per the retry policy.
func (c *Client) Get(ctx context.Context, rawURL string) (Result, error) {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return Result{}, fmt.Errorf("rate limit wait: %w", err)
		}
		requestsTotal.Inc()
		res, err := c.fetchOnce(rawURL)
		if err == nil {
			return res, nil
		}
		requestErrorsTotal.Inc()
		lastErr = err
		if !c.retry.ShouldRetry(err, attempt+1) {
			break
		}
		retriesTotal.Inc()
		delay := c.retry.Backoff(attempt)
		c.logger.Warn("Retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if err := sleepCtx(ctx, delay); err != nil {
			return Result{}, err
		}
	}
	return Result{}, fmt.Errorf("fetch %s: %w", rawURL, lastErr)
}

// fetchOnce executes a single GET via a collector clone.
func (c *Client) fetchOnce(rawURL string) (Result, error) {
	collector := c.baseCollector.Clone()
	resultCh := make(chan fetchResult, 1)
	var once sync.Once
	send := func(res fetchResult) {
		once.Do(func() {
			resultCh <- res
		})
	}

	collector.OnResponse(func(r *colly.Response) {
		send(fetchResult{result: Result{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte{}, r.Body...),
		}})
	})

	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			send(fetchResult{err: &StatusError{Code: r.StatusCode, URL: rawURL}})
			return
		}
		if err == nil {
			err = errors.New("unknown colly error")
		}
		send(fetchResult{err: err})
	})

	// Visit itself reports non-2xx responses as a bare error, after the
	// OnError callback has already queued the tagged StatusError. The queued
	// result wins so callers and the retry policy see the typed error.
	visitErr := collector.Visit(rawURL)
	collector.Wait()

	select {
	case res := <-resultCh:
		return res.result, res.err
	default:
	}
	if visitErr != nil {
		return Result{}, visitErr
	}
	return Result{}, errors.New("colly fetch produced no result")
}

type fetchResult struct {
	result Result
	err    error
}

func sleepCtx(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
