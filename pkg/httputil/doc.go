// Package httputil provides HTTP utilities for package registry clients.
//
// # Overview
//
// This package provides infrastructure used by all registry API clients:
//
//   - [Cache]: File-based HTTP response caching
//   - [Retry]: Automatic retry with exponential backoff
//
// # Caching
//
// [Cache] stores HTTP responses in the filesystem (~/.cache/reviewbot/)
// with configurable TTL. This dramatically speeds up repeated operations
// and reduces load on package registries.
//
// Usage:
//
//	cache, err := httputil.NewCache("", 24*time.Hour)
//	var data MyType
//	ok, err := cache.Get("pypi:fastapi", &data)  // Check cache
//	if !ok {
//	    data = fetchFromAPI()
//	    cache.Set("pypi:fastapi", data)   // Store for later
//	}
//
// Cache keys should be namespaced by registry to avoid collisions.
//
// # Retry
//
// [Retry] runs an operation again only when it fails with an error wrapped
// in [RetryableError]; any other error is returned at once. The
// integrations client wraps these transient failures that way:
//
//   - Network errors
//   - 5xx server errors
//
// Other statuses, 429 included, are not retried. The delay doubles after
// each failed attempt, with no jitter:
//
//	err := httputil.Retry(ctx, 3, time.Second, func() error {
//	    return fetch()
//	})
//
// # Configuration
//
// Default settings are suitable for most use cases:
//
//   - Cache directory: ~/.cache/reviewbot/
//   - TTL: set by the caller (serve uses 24 hours; 0 means no expiry)
//   - Attempts: 3 in [RetryWithBackoff] (the first try plus two retries)
//   - Base backoff: 1 second
//
// The cache can be cleared by deleting the cache directory.
package httputil
