package common

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultTimeout = 20 * time.Second
	DefaultRetries = 3
	DefaultBackoff = 600 * time.Millisecond
)

type ClientOptions struct {
	Timeout time.Duration
	Retries int
	Backoff time.Duration
	// Transport replaces the default round tripper, e.g. with an anti-bot wrapper.
	Transport func(http.RoundTripper) http.RoundTripper
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.Backoff <= 0 {
		o.Backoff = DefaultBackoff
	}
	return o
}

// NewClient returns a resty client that retries transport errors, 429 and 5xx
// a fixed number of times with a fixed pause between attempts.
func NewClient(opts ClientOptions) *resty.Client {
	opts = opts.withDefaults()

	client := resty.New()
	client.SetTimeout(opts.Timeout)
	client.SetHeader("User-Agent", DesktopUserAgent)
	client.SetHeader("Accept-Language", AcceptLanguage)

	client.SetRetryCount(opts.Retries)
	client.SetRetryWaitTime(opts.Backoff)
	client.SetRetryMaxWaitTime(opts.Backoff)
	client.SetRetryAfter(func(*resty.Client, *resty.Response) (time.Duration, error) {
		return opts.Backoff, nil
	})
	client.AddRetryCondition(IsTransient)

	if opts.Transport != nil {
		client.SetTransport(opts.Transport(client.GetClient().Transport))
	}
	return client
}

func IsTransient(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return false
	}
	code := resp.StatusCode()
	return code == http.StatusTooManyRequests || code >= 500
}

// StatusError reports a non-2xx response after retries were exhausted.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.Status, e.URL)
}

func CheckResponse(resp *resty.Response) error {
	if resp.IsSuccess() {
		return nil
	}
	return &StatusError{URL: resp.Request.URL, Status: resp.StatusCode()}
}
