package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"complaintsync/internal/config"
	apperrors "complaintsync/internal/errors"
	"complaintsync/internal/logger"
)

// Query describes one database query.
type Query struct {
	// After restricts results to pages edited strictly after this instant. Nil means no filter.
	After *time.Time
	// Sort orders results by last_edited_time. Empty means the API default order.
	Sort SortDirection
	// PageSize overrides the client default when positive.
	PageSize int
}

// QueryResult holds the pages collected across followed result pages.
type QueryResult struct {
	Pages      []Page
	HasMore    bool   // true if pages were left unread because of the page limit
	NextCursor string // cursor of the first unread page
}

// APIError is the error object the API returns with non-2xx responses.
type APIError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion api %d %s: %s", e.Status, e.Code, e.Message)
}

// retryable reports whether the request may succeed if sent again.
func (e *APIError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Client queries a single Notion database.
type Client struct {
	baseURL    string
	token      string
	version    string
	databaseID string
	pageSize   int
	maxPages   int
	maxRetries int
	retryDelay time.Duration
	http       *http.Client
	log        *logger.Logger
}

// NewClient builds a client from configuration using the pooled HTTP transport.
func NewClient(cfg *config.Config, log *logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.NotionBaseURL, "/"),
		token:      cfg.NotionAPIKey,
		version:    cfg.NotionVersion,
		databaseID: cfg.NotionDatabaseID,
		pageSize:   cfg.NotionPageSize,
		maxPages:   cfg.MaxPages,
		maxRetries: cfg.MaxFetchRetries,
		retryDelay: cfg.FetchRetryDelay,
		http:       NewHTTPClient(cfg.HTTPTimeout),
		log:        log.With("component", "notion"),
	}
}

type timestampFilter struct {
	Timestamp      string            `json:"timestamp"`
	LastEditedTime map[string]string `json:"last_edited_time"`
}

type timestampSort struct {
	Timestamp string        `json:"timestamp"`
	Direction SortDirection `json:"direction"`
}

type queryRequest struct {
	Filter      *timestampFilter `json:"filter,omitempty"`
	Sorts       []timestampSort  `json:"sorts,omitempty"`
	PageSize    int              `json:"page_size,omitempty"`
	StartCursor string           `json:"start_cursor,omitempty"`
}

type queryResponse struct {
	Results    []Page  `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// QueryDatabase runs the query and follows next_cursor up to the configured
// page limit. Results that are not pages (no property bag) are dropped.
func (c *Client) QueryDatabase(ctx context.Context, q Query) (*QueryResult, error) {
	req := queryRequest{PageSize: c.pageSize}
	if q.PageSize > 0 {
		req.PageSize = q.PageSize
	}
	if q.After != nil {
		req.Filter = &timestampFilter{
			Timestamp:      "last_edited_time",
			LastEditedTime: map[string]string{"after": q.After.UTC().Format(time.RFC3339)},
		}
	}
	if q.Sort != "" {
		req.Sorts = []timestampSort{{Timestamp: "last_edited_time", Direction: q.Sort}}
	}

	result := &QueryResult{}
	for page := 1; ; page++ {
		resp, err := c.queryOnce(ctx, req)
		if err != nil {
			return nil, apperrors.NewFetchError(fmt.Sprintf("query database %s (page %d)", c.databaseID, page), err)
		}
		for _, p := range resp.Results {
			if p.Properties == nil {
				continue
			}
			result.Pages = append(result.Pages, p)
		}
		if !resp.HasMore || resp.NextCursor == nil {
			return result, nil
		}
		if page >= c.maxPages {
			result.HasMore = true
			result.NextCursor = *resp.NextCursor
			c.log.Warn("Result pages left unread", "max_pages", c.maxPages, "next_cursor", result.NextCursor)
			return result, nil
		}
		req.StartCursor = *resp.NextCursor
	}
}

// queryOnce sends one query request, retrying 429 and 5xx answers.
func (c *Client) queryOnce(ctx context.Context, body queryRequest) (*queryResponse, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.log.Warn("Retrying query", "attempt", attempt, "max_retries", c.maxRetries, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}

		resp, err := c.do(ctx, payload)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		apiErr, ok := err.(*APIError)
		if !ok || !apiErr.retryable() {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, payload []byte) (*queryResponse, error) {
	url := fmt.Sprintf("%s/databases/%s/query", c.baseURL, c.databaseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(raw, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(raw))
		}
		apiErr.Status = resp.StatusCode
		return nil, apiErr
	}

	var out queryResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return &out, nil
}
