package notion

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"complaintsync/internal/config"
	apperrors "complaintsync/internal/errors"
	"complaintsync/internal/logger"
)

const pageJSON = `{
  "object": "page",
  "id": "0c1f",
  "created_time": "2025-05-12T00:00:00.000Z",
  "last_edited_time": "2025-05-12T01:30:00.000Z",
  "properties": {
    "ID-2": {"id": "a", "type": "unique_id", "unique_id": {"prefix": "CALL", "number": 42}},
    "터미널": {"id": "b", "type": "multi_select", "multi_select": [{"name": "A"}, {"name": "B"}]},
    "처리상태": {"id": "c", "type": "status", "status": {"name": "완료"}},
    "민원제목": {"id": "d", "type": "rich_text", "rich_text": [{"plain_text": "first"}, {"plain_text": "second"}]},
    "금액": {"id": "e", "type": "number", "number": 12.5}
  }
}`

func testClient(t *testing.T, srv *httptest.Server, mutate func(c *config.Config)) *Client {
	t.Helper()
	cfg := &config.Config{
		NotionBaseURL:    srv.URL,
		NotionAPIKey:     "secret",
		NotionVersion:    "2022-06-28",
		NotionDatabaseID: "db123",
		NotionPageSize:   100,
		MaxPages:         1,
		MaxFetchRetries:  2,
		FetchRetryDelay:  time.Millisecond,
		HTTPTimeout:      5 * time.Second,
	}
	if mutate != nil {
		mutate(cfg)
	}
	return NewClient(cfg, logger.Nop())
}

func TestQueryDatabase_SendsFilterAndDecodesPages(t *testing.T) {
	var got queryRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/databases/db123/query", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "2022-06-28", r.Header.Get("Notion-Version"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))

		io.WriteString(w, `{"object":"list","results":[`+pageJSON+`,{"object":"database","id":"x"}],"has_more":false,"next_cursor":null}`)
	}))
	defer srv.Close()

	after := time.Date(2025, 5, 12, 9, 0, 0, 0, time.FixedZone("KST", 9*3600))
	res, err := testClient(t, srv, nil).QueryDatabase(context.Background(), Query{After: &after, Sort: Descending})
	require.NoError(t, err)

	require.NotNil(t, got.Filter)
	assert.Equal(t, "last_edited_time", got.Filter.Timestamp)
	assert.Equal(t, "2025-05-12T00:00:00Z", got.Filter.LastEditedTime["after"])
	require.Len(t, got.Sorts, 1)
	assert.Equal(t, Descending, got.Sorts[0].Direction)
	assert.Equal(t, 100, got.PageSize)

	require.Len(t, res.Pages, 1, "non-page results are dropped")
	p := res.Pages[0]
	assert.Equal(t, "2025-05-12T00:00:00.000Z", p.CreatedTime)
	assert.Equal(t, int64(42), *p.Properties["ID-2"].UniqueID.Number)
	assert.Len(t, p.Properties["터미널"].MultiSelect, 2)
	assert.Equal(t, 12.5, *p.Properties["금액"].Number)
	assert.False(t, res.HasMore)
}

func TestQueryDatabase_FollowsCursorUpToMaxPages(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		var req queryRequest
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		if n == 2 {
			assert.Equal(t, "cursor-1", req.StartCursor)
		}
		io.WriteString(w, `{"results":[`+pageJSON+`],"has_more":true,"next_cursor":"cursor-`+string(rune('0'+n))+`"}`)
	}))
	defer srv.Close()

	res, err := testClient(t, srv, func(c *config.Config) { c.MaxPages = 2 }).QueryDatabase(context.Background(), Query{})
	require.NoError(t, err)

	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Len(t, res.Pages, 2)
	assert.True(t, res.HasMore)
	assert.Equal(t, "cursor-2", res.NextCursor)
}

func TestQueryDatabase_RetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			io.WriteString(w, `{"object":"error","status":429,"code":"rate_limited","message":"slow down"}`)
			return
		}
		io.WriteString(w, `{"results":[],"has_more":false}`)
	}))
	defer srv.Close()

	res, err := testClient(t, srv, nil).QueryDatabase(context.Background(), Query{})
	require.NoError(t, err)
	assert.Empty(t, res.Pages)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestQueryDatabase_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, `{"object":"error","status":401,"code":"unauthorized","message":"API token is invalid."}`)
	}))
	defer srv.Close()

	_, err := testClient(t, srv, nil).QueryDatabase(context.Background(), Query{})
	require.Error(t, err)
	assert.True(t, apperrors.IsFetchError(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "unauthorized", apiErr.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
