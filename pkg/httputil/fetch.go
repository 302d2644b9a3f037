// Package httputil provides shared HTTP plumbing for asset and manifest
// fetching: a retry helper for transient failures and a small GET wrapper
// with upstream status classification.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const clientTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when the upstream reports the resource
	// doesn't exist.
	ErrNotFound = errors.New("resource not found")

	// ErrUpstream is returned for HTTP failures (timeouts, connection
	// errors, non-OK responses).
	ErrUpstream = errors.New("upstream error")
)

// NewClient creates an HTTP client with the standard timeout for
// upstream asset requests.
func NewClient() *http.Client {
	return &http.Client{Timeout: clientTimeout}
}

// GetBytes performs an HTTP GET with retries and returns the response body.
func GetBytes(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	var data []byte
	err := RetryWithBackoff(ctx, func() error {
		body, err := get(ctx, client, url)
		if err != nil {
			return err
		}
		defer body.Close()
		data, err = io.ReadAll(body)
		return err
	})
	return data, err
}

func get(ctx context.Context, client *http.Client, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &RetryableError{Err: fmt.Errorf("%w: %v", ErrUpstream, err)}
	}

	if err := checkStatus(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func checkStatus(code int) error {
	switch {
	case code == http.StatusOK:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code >= 500:
		return &RetryableError{Err: fmt.Errorf("%w: status %d", ErrUpstream, code)}
	default:
		return fmt.Errorf("%w: status %d", ErrUpstream, code)
	}
}
