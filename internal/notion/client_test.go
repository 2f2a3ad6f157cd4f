package notion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-token", nil, WithBaseURL(srv.URL))
}

func TestClient_SendsHeaders(t *testing.T) {
	var gotAuth, gotVersion, gotContentType string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotVersion = r.Header.Get("Notion-Version")
		gotContentType = r.Header.Get("Content-Type")
		io.WriteString(w, `{"data_sources":[]}`)
	}))

	if _, err := client.ListDataSources(context.Background(), "db1"); err != nil {
		t.Fatalf("ListDataSources() error = %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer test-token")
	}
	if gotVersion != "2025-09-03" {
		t.Errorf("Notion-Version = %q, want %q", gotVersion, "2025-09-03")
	}
	if gotContentType != "application/json" {
		t.Errorf("Content-Type = %q, want %q", gotContentType, "application/json")
	}
}

func TestClient_ListDataSources(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/databases/db1" {
			t.Errorf("path = %q, want /v1/databases/db1", r.URL.Path)
		}
		io.WriteString(w, `{"data_sources":[{"id":"ds1","name":"Main"},{"id":"ds2"}]}`)
	}))

	got, err := client.ListDataSources(context.Background(), "db1")
	if err != nil {
		t.Fatalf("ListDataSources() error = %v", err)
	}
	want := []DataSourceInfo{{ID: "ds1", Name: "Main"}, {ID: "ds2"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListDataSources() = %+v, want %+v", got, want)
	}
}

func TestClient_QueryDataSourcePageIDs(t *testing.T) {
	var bodies []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/data_sources/ds1/query" {
			t.Errorf("path = %q, want /v1/data_sources/ds1/query", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		bodies = append(bodies, string(body))
		if len(bodies) == 1 {
			io.WriteString(w, `{"results":[{"id":"p1"},{"id":"p2"}],"has_more":true,"next_cursor":"c2"}`)
			return
		}
		io.WriteString(w, `{"results":[{"id":"p3"}],"has_more":false,"next_cursor":null}`)
	}))

	got, err := client.QueryDataSourcePageIDs(context.Background(), "ds1")
	if err != nil {
		t.Fatalf("QueryDataSourcePageIDs() error = %v", err)
	}
	if want := []string{"p1", "p2", "p3"}; !reflect.DeepEqual(got, want) {
		t.Errorf("QueryDataSourcePageIDs() = %v, want %v", got, want)
	}

	if len(bodies) != 2 {
		t.Fatalf("expected 2 query requests, got %d", len(bodies))
	}
	if bodies[0] != "{}" {
		t.Errorf("first query body = %q, want {}", bodies[0])
	}
	if bodies[1] != `{"start_cursor":"c2"}` {
		t.Errorf("second query body = %q, want start_cursor", bodies[1])
	}
}

// blockServer serves canned child lists keyed by parent block id.
func blockServer(t *testing.T, children map[string]string) (*Client, *int) {
	t.Helper()
	calls := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		id := r.URL.Path[len("/v1/blocks/") : len(r.URL.Path)-len("/children")]
		if r.URL.Query().Get("page_size") != "100" {
			t.Errorf("page_size = %q, want 100", r.URL.Query().Get("page_size"))
		}
		payload, ok := children[id]
		if !ok {
			t.Errorf("unexpected child fetch for %q", id)
			payload = "[]"
		}
		io.WriteString(w, `{"results":`+payload+`,"has_more":false,"next_cursor":null}`)
	}))
	return client, &calls
}

func TestClient_FetchBlocksFlat(t *testing.T) {
	client, calls := blockServer(t, map[string]string{
		"root": `[{"id":"a","type":"paragraph","has_children":true,"paragraph":{"rich_text":[]}},
		          {"id":"b","type":"divider","has_children":false}]`,
	})

	got, err := client.FetchBlocks(context.Background(), "root", 0)
	if err != nil {
		t.Fatalf("FetchBlocks() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 blocks, got %d", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("block order = %s, %s", got[0].ID, got[1].ID)
	}
	if *calls != 1 {
		t.Errorf("expected 1 fetch at depth 0, got %d", *calls)
	}
}

func TestClient_FetchBlocksExpands(t *testing.T) {
	children := map[string]string{
		"root": `[{"id":"a","type":"paragraph","has_children":true,"paragraph":{"rich_text":[]}},
		          {"id":"b","type":"divider","has_children":false}]`,
		"a": `[{"id":"a1","type":"paragraph","has_children":true,"paragraph":{"rich_text":[]}},
		       {"id":"a2","type":"divider","has_children":false}]`,
		"a1": `[{"id":"a1x","type":"divider","has_children":false}]`,
	}

	tests := []struct {
		name      string
		maxDepth  int
		wantIDs   []string
		wantCalls int
	}{
		{
			name:      "depth one stops at grandchildren",
			maxDepth:  1,
			wantIDs:   []string{"a", "a::children", "a1", "a2", "b"},
			wantCalls: 2,
		},
		{
			name:      "depth two expands grandchildren",
			maxDepth:  2,
			wantIDs:   []string{"a", "a::children", "a1", "a1::children", "a1x", "a2", "b"},
			wantCalls: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, calls := blockServer(t, children)
			got, err := client.FetchBlocks(context.Background(), "root", tt.maxDepth)
			if err != nil {
				t.Fatalf("FetchBlocks() error = %v", err)
			}
			ids := make([]string, len(got))
			for i, b := range got {
				ids[i] = b.ID
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("block ids = %v, want %v", ids, tt.wantIDs)
			}
			if *calls != tt.wantCalls {
				t.Errorf("fetch calls = %d, want %d", *calls, tt.wantCalls)
			}
			for _, b := range got {
				if b.Type == ChildrenMarkerType && b.HasChildren {
					t.Errorf("marker %s must not report children", b.ID)
				}
			}
		})
	}
}

func TestClient_FetchBlocksPagination(t *testing.T) {
	var cursors []string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursors = append(cursors, r.URL.Query().Get("start_cursor"))
		if len(cursors) == 1 {
			io.WriteString(w, `{"results":[{"id":"a","type":"divider"}],"has_more":true,"next_cursor":"next"}`)
			return
		}
		io.WriteString(w, `{"results":[{"id":"b","type":"divider"}],"has_more":false,"next_cursor":null}`)
	}))

	got, err := client.FetchBlocks(context.Background(), "root", 0)
	if err != nil {
		t.Fatalf("FetchBlocks() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("unexpected blocks: %+v", got)
	}
	if want := []string{"", "next"}; !reflect.DeepEqual(cursors, want) {
		t.Errorf("cursors = %v, want %v", cursors, want)
	}
}

func TestClient_APIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"not found"}`)
	}))

	_, err := client.ListDataSources(context.Background(), "missing")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", apiErr.Status)
	}
	if apiErr.Body != `{"message":"not found"}` {
		t.Errorf("Body = %q", apiErr.Body)
	}
}

func TestClient_RetryAfterFeedsLimiter(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	_, err := client.ListDataSources(context.Background(), "db1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests {
		t.Fatalf("expected 429 APIError, got %v", err)
	}
	if d := time.Until(client.limiter.pauseUntil); d < 5*time.Second {
		t.Errorf("limiter pause = %v, want about 7s", d)
	}
}

func TestClient_GetPageMetadata(t *testing.T) {
	page := map[string]any{
		"id":               "p1",
		"url":              "https://www.notion.so/p1",
		"created_time":     "2026-08-01T00:00:00.000Z",
		"last_edited_time": "2026-08-20T10:30:00.000Z",
		"parent": map[string]any{
			"type":           "data_source_id",
			"data_source_id": "ds1",
			"database_id":    "db1",
		},
		"properties": map[string]any{
			"Name":  map[string]any{"type": "title", "title": []any{map[string]any{"plain_text": "Hello"}}},
			"Tags":  map[string]any{"type": "multi_select", "multi_select": []any{map[string]any{"name": "a"}, map[string]any{"name": "b"}}},
			"Empty": map[string]any{"type": "select", "select": nil},
		},
	}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/pages/p1" {
			t.Errorf("path = %q, want /v1/pages/p1", r.URL.Path)
		}
		json.NewEncoder(w).Encode(page)
	}))

	meta, err := client.GetPageMetadata(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetPageMetadata() error = %v", err)
	}
	if meta.ID != "p1" {
		t.Errorf("ID = %q, want p1", meta.ID)
	}
	if meta.URL != "https://www.notion.so/p1" {
		t.Errorf("URL = %q", meta.URL)
	}
	if meta.CreatedTime != "2026-08-01T00:00:00.000Z" {
		t.Errorf("CreatedTime = %q", meta.CreatedTime)
	}
	if meta.LastEditedTime != "2026-08-20T10:30:00.000Z" {
		t.Errorf("LastEditedTime = %q", meta.LastEditedTime)
	}
	if meta.Title != "Hello" {
		t.Errorf("Title = %q, want Hello", meta.Title)
	}
	if meta.Parent.DataSourceID != "ds1" || meta.Parent.DatabaseID != "db1" {
		t.Errorf("Parent = %+v", meta.Parent)
	}
	if got := meta.Properties["Name"]; got != "Hello" {
		t.Errorf("Name = %v, want Hello", got)
	}
	if got, want := meta.Properties["Tags"], []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Tags = %v, want %v", got, want)
	}
	if _, ok := meta.Properties["Empty"]; ok {
		t.Error("empty select should be omitted from properties")
	}
}

func TestClient_GetPageParent(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":"p1","parent":{"type":"database_id","database_id":"db9"}}`)
	}))

	parent, err := client.GetPageParent(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetPageParent() error = %v", err)
	}
	if parent.DatabaseID != "db9" {
		t.Errorf("DatabaseID = %q, want db9", parent.DatabaseID)
	}
}
