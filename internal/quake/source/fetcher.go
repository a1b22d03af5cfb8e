package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// maxPageBytes caps how much of a single page is read into memory.
const maxPageBytes = 32 << 20

// ErrFetch matches every *FetchError.
var ErrFetch = errors.New("fetch failed")

var (
	errServerStatus = errors.New("server error")
	errClientStatus = errors.New("unexpected status")
	errCircuitOpen  = errors.New("circuit breaker open")
)

// FetchError is returned when no markup could be obtained for a URL.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

// ClientOptions tunes the page client. Zero values fall back to defaults.
type ClientOptions struct {
	UserAgent  string
	MaxRetries int
	Backoff    time.Duration // initial retry delay
	MaxBackoff time.Duration
}

// Client fetches source pages over HTTP. It never caches.
//
// Transport failures, 429 and 5xx responses are retried with exponential
// backoff behind a circuit breaker. Other non-2xx statuses fail at once and
// do not count against the breaker.
type Client struct {
	http    *http.Client
	opts    ClientOptions
	circuit *gobreaker.CircuitBreaker
}

// NewClient creates a page client. The http.Client is expected to carry the
// per-request timeout.
func NewClient(client *http.Client, opts ClientOptions) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "quake-monitor/1.0"
	}

	return &Client{
		http: client,
		opts: opts,
		circuit: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:         "source",
			MaxRequests:  1,
			Interval:     1 * time.Minute,
			Timeout:      2 * time.Minute,
			IsSuccessful: hostHealthy,
		}),
	}
}

// Fetch returns the raw body of url. Every failure is a *FetchError.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.get(ctx, url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// get performs the GET with retries. The caller owns the returned body.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		resp, err := c.attempt(ctx, url)
		switch {
		case err == nil:
			return resp, nil
		case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		case errors.Is(err, errClientStatus), attempt >= c.opts.MaxRetries:
			return nil, err
		}

		timer := time.NewTimer(c.delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) attempt(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "text/html")

	result, err := c.circuit.Execute(func() (interface{}, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if err := statusError(resp.StatusCode); err != nil {
			resp.Body.Close()
			return nil, err
		}
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*http.Response), nil
}

// hostHealthy reports whether err leaves the breaker closed. A missing page
// says nothing about the health of the host.
func hostHealthy(err error) bool {
	return err == nil || errors.Is(err, errClientStatus)
}

func statusError(code int) error {
	switch {
	case code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("%w: %d", errServerStatus, code)
	case code < 200 || code >= 300:
		return fmt.Errorf("%w: %d", errClientStatus, code)
	default:
		return nil
	}
}

// delay is the backoff before retry number attempt+1, doubling up to MaxBackoff.
func (c *Client) delay(attempt int) time.Duration {
	d := c.opts.Backoff
	for i := 0; i < attempt && d < c.opts.MaxBackoff; i++ {
		d *= 2
	}
	return min(d, c.opts.MaxBackoff)
}
