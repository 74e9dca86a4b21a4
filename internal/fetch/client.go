package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second
	DefaultTimeout     = 5 * time.Second
)

// StatusError is returned for a non-success HTTP response
type StatusError struct {
	URL, Status string
	StatusCode  int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.URL, e.Status)
}

// TransportFailure is returned once every attempt for a URL has failed
type TransportFailure struct {
	URL      string
	Attempts int
	Err      error
}

func (e *TransportFailure) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Err)
}

func (e *TransportFailure) Unwrap() error {
	return e.Err
}

// Options tunes the retry behaviour of a Client
type Options struct {
	MaxAttempts int
	Backoff     time.Duration
	Timeout     time.Duration

	// OnRetry is called before every back-off sleep. Defaults to a log line.
	OnRetry func(url string, err error, wait time.Duration)
}

// Client performs JSON GET requests with a fixed retry budget.
// Each attempt has its own timeout; the delay between attempts is constant.
type Client struct {
	http *http.Client
	opts Options
}

// NewClient creates a Client. A nil httpClient uses a fresh http.Client
// without a global timeout, since attempts are bounded individually.
func NewClient(httpClient *http.Client, opts Options) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff < 0 {
		opts.Backoff = 0
	}
	if opts.OnRetry == nil {
		opts.OnRetry = func(url string, err error, wait time.Duration) {
			log.Printf("Fetch: retrying %s in %v: %v", url, wait, err)
		}
	}
	return &Client{http: httpClient, opts: opts}
}

// GetJSON fetches url and decodes the JSON body into v
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	redacted := redact(rawURL)
	attempts := 0

	var b backoff.BackOff = backoff.NewConstantBackOff(c.opts.Backoff)
	b = backoff.WithMaxRetries(b, uint64(c.opts.MaxAttempts-1))
	b = backoff.WithContext(b, ctx)

	err := backoff.RetryNotify(func() error {
		attempts++
		err := c.attempt(ctx, rawURL, v)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, wait time.Duration) {
		c.opts.OnRetry(redacted, err, wait)
	})
	if err != nil {
		return &TransportFailure{URL: redacted, Attempts: attempts, Err: err}
	}
	return nil
}

func (c *Client) attempt(ctx context.Context, rawURL string, v any) error {
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{URL: redact(rawURL), Status: resp.Status, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}
	return nil
}

// IsTransportFailure reports whether err came from an exhausted retry budget
func IsTransportFailure(err error) bool {
	var tf *TransportFailure
	return errors.As(err, &tf)
}

func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	return u.Redacted()
}
