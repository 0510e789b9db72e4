package integrations

import (
	"errors"
	"net/http"
	"time"

	"github.com/depreview/reviewbot/pkg/httputil"
)

const httpTimeout = 10 * time.Second

var (
	// ErrNotFound is returned when the requested resource doesn't exist.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with a standard timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// NewCache creates a file-based cache with the given TTL in the default cache directory.
// See [httputil.NewCache] for details on cache location and behavior.
func NewCache(ttl time.Duration) (*httputil.Cache, error) {
	return httputil.NewCache("", ttl)
}

// NewCacheIn creates a file-based cache with the given TTL, rooted at dir.
// An empty dir falls back to the default cache directory.
func NewCacheIn(dir string, ttl time.Duration) (*httputil.Cache, error) {
	return httputil.NewCache(dir, ttl)
}
