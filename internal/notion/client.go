package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

const (
	defaultBaseURL = "https://api.notion.com"

	// apiVersion pins the Notion API protocol. Data source endpoints
	// only exist from 2025-09-03 on.
	apiVersion = "2025-09-03"

	childPageSize = 100
)

// APIError is a non-2xx reply from the Notion API. Transport failures
// are returned as-is, not wrapped in an APIError.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("notion API error %d: %s", e.Status, e.Body)
}

// DataSourceInfo identifies one data source exposed by a database.
type DataSourceInfo struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// Parent locates a page inside the Notion hierarchy. Pages under a
// database carry both the data source and the database id.
type Parent struct {
	Type         string `json:"type"`
	DatabaseID   string `json:"database_id,omitempty"`
	DataSourceID string `json:"data_source_id,omitempty"`
	PageID       string `json:"page_id,omitempty"`
}

// PageMetadata is the slice of a page object the mirror consumes.
// Properties hold decoded values: string or []string. Title carries
// the page's title-typed property, empty when the page has none.
type PageMetadata struct {
	ID             string
	URL            string
	CreatedTime    string
	LastEditedTime string
	Title          string
	Parent         Parent
	Properties     map[string]any
}

// Client talks to the Notion HTTP API with rate limiting.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	limiter    *RateLimiter
	logger     *slog.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at a different API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient swaps the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a rate-limited Notion client.
func NewClient(token string, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		token:      token,
		limiter:    DefaultRateLimiter(),
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// do issues one API request. body is JSON-encoded when non-nil and the
// reply is decoded into out when non-nil. A 429 feeds its Retry-After
// header back into the limiter before the APIError is returned.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", apiVersion)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := ParseRetryAfter(resp.Header.Get("Retry-After"))
			c.limiter.SetRetryAfter(retryAfter)
			c.logger.Warn("rate limited by Notion API", "retry_after", retryAfter)
		}
		return &APIError{Status: resp.StatusCode, Body: string(data)}
	}
	c.limiter.MarkRequestSuccess()

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}

// ListDataSources returns the data sources a database exposes.
func (c *Client) ListDataSources(ctx context.Context, databaseID string) ([]DataSourceInfo, error) {
	c.logger.Debug("listing data sources", "database_id", databaseID)

	var resp struct {
		DataSources []DataSourceInfo `json:"data_sources"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/databases/"+databaseID, nil, &resp); err != nil {
		return nil, err
	}
	return resp.DataSources, nil
}

type dataSourceQuery struct {
	StartCursor string `json:"start_cursor,omitempty"`
}

type dataSourceQueryResponse struct {
	Results []struct {
		ID string `json:"id"`
	} `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// QueryDataSourcePageIDs lists every page id in a data source,
// following pagination.
func (c *Client) QueryDataSourcePageIDs(ctx context.Context, dataSourceID string) ([]string, error) {
	var ids []string
	cursor := ""
	for {
		c.logger.Debug("querying data source", "data_source_id", dataSourceID, "cursor", cursor)

		var resp dataSourceQueryResponse
		err := c.do(ctx, http.MethodPost, "/v1/data_sources/"+dataSourceID+"/query", dataSourceQuery{StartCursor: cursor}, &resp)
		if err != nil {
			return nil, err
		}
		for _, result := range resp.Results {
			ids = append(ids, result.ID)
		}
		if !resp.HasMore || resp.NextCursor == nil {
			return ids, nil
		}
		cursor = *resp.NextCursor
	}
}

type pageResponse struct {
	ID             string                    `json:"id"`
	URL            string                    `json:"url"`
	CreatedTime    string                    `json:"created_time"`
	LastEditedTime string                    `json:"last_edited_time"`
	Parent         Parent                    `json:"parent"`
	Properties     map[string]map[string]any `json:"properties"`
}

// GetPageMetadata fetches a page and decodes its properties into flat
// string values.
func (c *Client) GetPageMetadata(ctx context.Context, pageID string) (*PageMetadata, error) {
	c.logger.Debug("fetching page metadata", "page_id", pageID)

	var resp pageResponse
	if err := c.do(ctx, http.MethodGet, "/v1/pages/"+pageID, nil, &resp); err != nil {
		return nil, err
	}

	meta := &PageMetadata{
		ID:             resp.ID,
		URL:            resp.URL,
		CreatedTime:    resp.CreatedTime,
		LastEditedTime: resp.LastEditedTime,
		Parent:         resp.Parent,
		Properties:     make(map[string]any, len(resp.Properties)),
	}
	for name, obj := range resp.Properties {
		value := DecodeTypedValue(obj)
		if value == nil {
			continue
		}
		meta.Properties[name] = value
		if typ, _ := obj["type"].(string); typ == "title" {
			if title, ok := value.(string); ok {
				meta.Title = title
			}
		}
	}
	return meta, nil
}

// GetPageParent fetches only the parent pointer of a page.
func (c *Client) GetPageParent(ctx context.Context, pageID string) (Parent, error) {
	c.logger.Debug("fetching page parent", "page_id", pageID)

	var resp struct {
		Parent Parent `json:"parent"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/pages/"+pageID, nil, &resp); err != nil {
		return Parent{}, err
	}
	return resp.Parent, nil
}

type blockListResponse struct {
	Results    []Block `json:"results"`
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
}

// fetchChildren lists the direct children of a block, following
// pagination.
func (c *Client) fetchChildren(ctx context.Context, blockID string) ([]Block, error) {
	var blocks []Block
	cursor := ""
	for {
		path := fmt.Sprintf("/v1/blocks/%s/children?page_size=%d", blockID, childPageSize)
		if cursor != "" {
			path += "&start_cursor=" + url.QueryEscape(cursor)
		}

		var resp blockListResponse
		if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
			return nil, err
		}
		blocks = append(blocks, resp.Results...)
		if !resp.HasMore || resp.NextCursor == nil {
			return blocks, nil
		}
		cursor = *resp.NextCursor
	}
}

// FetchBlocks returns the content under rootID flattened in pre-order.
// maxDepth bounds the expansion: 0 returns only the direct children,
// and each expanded parent is followed by a synthetic children marker
// before its inlined subtree.
func (c *Client) FetchBlocks(ctx context.Context, rootID string, maxDepth int) ([]Block, error) {
	c.logger.Debug("fetching blocks", "block_id", rootID, "max_depth", maxDepth)

	children, err := c.fetchChildren(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if maxDepth <= 0 {
		return children, nil
	}
	return c.expandBlocks(ctx, children, maxDepth)
}

func (c *Client) expandBlocks(ctx context.Context, blocks []Block, depth int) ([]Block, error) {
	out := make([]Block, 0, len(blocks))
	for _, block := range blocks {
		out = append(out, block)
		if depth <= 0 || !block.HasChildren {
			continue
		}

		children, err := c.fetchChildren(ctx, block.ID)
		if err != nil {
			return nil, err
		}
		expanded, err := c.expandBlocks(ctx, children, depth-1)
		if err != nil {
			return nil, err
		}
		out = append(out, ChildrenMarker(block.ID))
		out = append(out, expanded...)
	}
	return out, nil
}
