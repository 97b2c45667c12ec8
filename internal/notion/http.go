package notion

import (
	"net/http"
	"time"
)

// NewHTTPClient creates an HTTP client with connection pooling.
//
// The sync driver queries the same host every few minutes, so keep-alive
// connections are kept around long enough to be reused between runs.
//
// Connection pool configuration:
//   - MaxIdleConns: 20 total idle connections
//   - MaxIdleConnsPerHost: 4 (only api.notion.com is ever contacted)
//   - IdleConnTimeout: 90 seconds
//
// Parameters:
//   - timeout: Maximum time for a complete request (including reading response)
//
// Returns:
//   - *http.Client: Configured HTTP client
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        20,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			ForceAttemptHTTP2:   true,
		},
	}
}
