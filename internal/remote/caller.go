// Package remote calls stateless HTTP data services with bounded
// retries, exponential backoff and explicit error classes.
//
// Each attempt runs on a freshly built client with keep-alives disabled,
// so a stale pooled socket can never turn a retry into a hang. Transient
// failures (connection errors, per-attempt timeouts, HTTP 429/500/502/
// 503/504) are retried; malformed payloads are reported at once as
// [DataError] and never retried.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/nugget/tao-agent/internal/httpkit"
)

// Defaults match the Open-Meteo politeness policy used by the labs.
const (
	DefaultMaxAttempts   = 3
	DefaultBackoffFactor = 1.5
	DefaultTimeout       = 15 * time.Second

	// maxBodyBytes bounds how much of a success response is read.
	maxBodyBytes = 1 << 20
)

// DefaultTransientStatuses are the HTTP statuses worth retrying.
var DefaultTransientStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// Config controls retry behavior for one service.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// BackoffFactor is the base of the exponential delay. The wait
	// before attempt n+1 is BackoffFactor^n seconds (1.5s, 2.25s, ...).
	BackoffFactor float64

	// Timeout bounds each attempt. Exceeding it is a transient failure.
	Timeout time.Duration

	// TransientStatuses lists retryable HTTP statuses. Nil uses
	// DefaultTransientStatuses.
	TransientStatuses map[int]bool

	// RequestsPerSecond caps outbound requests. Zero disables limiting.
	RequestsPerSecond float64
}

// DefaultConfig returns the standard retry policy.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   DefaultMaxAttempts,
		BackoffFactor: DefaultBackoffFactor,
		Timeout:       DefaultTimeout,
	}
}

// Backoff returns the delay before the attempt following attempt n
// (1-based).
func (c Config) Backoff(n int) time.Duration {
	secs := math.Pow(c.BackoffFactor, float64(n))
	return time.Duration(secs * float64(time.Second))
}

// Option customizes a Caller.
type Option func(*Caller)

// WithSleep replaces the backoff sleep. Tests use it to record delays
// without waiting for them.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Caller) { c.sleep = fn }
}

// WithClientFactory replaces the per-attempt client constructor.
func WithClientFactory(fn func() *http.Client) Option {
	return func(c *Caller) { c.newClient = fn }
}

// Caller performs GET requests against one named service.
type Caller struct {
	service   string
	cfg       Config
	logger    *slog.Logger
	limiter   *rate.Limiter
	newClient func() *http.Client
	sleep     func(ctx context.Context, d time.Duration) error
}

// New creates a Caller for the named service ("weather", "geocoding").
func New(service string, cfg Config, logger *slog.Logger, opts ...Option) *Caller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = DefaultBackoffFactor
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TransientStatuses == nil {
		cfg.TransientStatuses = DefaultTransientStatuses
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Caller{
		service: service,
		cfg:     cfg,
		logger:  logger.With("service", service),
		sleep:   sleepContext,
	}
	c.newClient = func() *http.Client {
		return httpkit.NewClient(
			httpkit.WithTimeout(c.cfg.Timeout),
			httpkit.WithDisableKeepAlives(),
		)
	}
	if cfg.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Service returns the service name the caller was built for.
func (c *Caller) Service() string {
	return c.service
}

// Fetch GETs url and hands the response body to decode. decode should
// return a *DataError for payloads with missing or mistyped fields; any
// other decode error is wrapped in one. Fetch returns the decode error,
// a *StatusError for non-retryable statuses, an *ExhaustedError once
// every attempt failed transiently, or the context's error.
func (c *Caller) Fetch(ctx context.Context, url string, decode func(body []byte) error) error {
	var lastErr error
	var lastKind string

	for attempt := 1; attempt <= c.cfg.MaxAttempts; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		body, err := c.attempt(ctx, url)
		if err == nil {
			return c.decode(body, decode)
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		kind, retry := c.classify(err)
		if !retry {
			c.logger.Debug("non-retryable failure", "attempt", attempt, "error", err)
			return err
		}
		lastErr, lastKind = err, kind

		if attempt == c.cfg.MaxAttempts {
			break
		}
		delay := c.cfg.Backoff(attempt)
		c.logger.Warn("transient failure, retrying",
			"attempt", attempt,
			"max_attempts", c.cfg.MaxAttempts,
			"error_kind", kind,
			"delay", delay,
		)
		if err := c.sleep(ctx, delay); err != nil {
			return err
		}
	}

	c.logger.Warn("retries exhausted", "attempts", c.cfg.MaxAttempts, "last_error", lastKind)
	return &ExhaustedError{
		Service:  c.service,
		Attempts: c.cfg.MaxAttempts,
		LastKind: lastKind,
		LastErr:  lastErr,
	}
}

func (c *Caller) decode(body []byte, decode func([]byte) error) error {
	err := decode(body)
	if err == nil {
		return nil
	}
	var de *DataError
	if errors.As(err, &de) {
		if de.Service == "" {
			de.Service = c.service
		}
		return de
	}
	return &DataError{Service: c.service, Reason: err.Error()}
}

// transportError marks a failure that happened before a complete
// response was read.
type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// attempt performs one request on a fresh client.
func (c *Caller) attempt(ctx context.Context, url string) ([]byte, error) {
	actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	client := c.newClient()
	defer httpkit.CloseIdle(client)

	resp, err := client.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Body:       httpkit.ReadErrorBody(resp.Body, 256),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &transportError{err: err}
	}
	return body, nil
}

// classify returns a short label for err and whether it is retryable.
func (c *Caller) classify(err error) (string, bool) {
	var se *StatusError
	if errors.As(err, &se) {
		return fmt.Sprintf("HTTP %d", se.StatusCode), c.cfg.TransientStatuses[se.StatusCode]
	}

	var te *transportError
	if !errors.As(err, &te) {
		return "request error", false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout", true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "timeout", true
	}
	return "connection error", true
}

// sleepContext waits for d or until ctx is done.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
