//go:build integration

package notion_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/natikgadzhi/notion-mirror/internal/notion"
)

// Integration tests require NOTION_TOKEN and NOTION_TEST_DATABASE_ID
// environment variables. Run with:
//
//	go test -tags=integration ./internal/notion/...

func integrationClient(t *testing.T) *notion.Client {
	t.Helper()

	_ = godotenv.Load("../../.env")

	token := os.Getenv("NOTION_TOKEN")
	if token == "" {
		t.Skip("NOTION_TOKEN not set, skipping integration test")
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	return notion.NewClient(token, logger)
}

func integrationDatabaseID(t *testing.T) string {
	t.Helper()

	id := os.Getenv("NOTION_TEST_DATABASE_ID")
	if id == "" {
		t.Skip("NOTION_TEST_DATABASE_ID not set, skipping integration test")
	}
	return notion.NormalizeDatabaseID(id)
}

func TestIntegration_ListDataSources(t *testing.T) {
	client := integrationClient(t)
	databaseID := integrationDatabaseID(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	dataSources, err := client.ListDataSources(ctx, databaseID)
	if err != nil {
		t.Fatalf("ListDataSources failed: %v", err)
	}
	if len(dataSources) == 0 {
		t.Fatal("ListDataSources returned no data sources")
	}

	for i, ds := range dataSources {
		if ds.ID == "" {
			t.Errorf("dataSources[%d].ID is empty", i)
		}
		t.Logf("  - %s (%s)", ds.Name, ds.ID)
	}
}

func TestIntegration_QueryAndFetchPage(t *testing.T) {
	client := integrationClient(t)
	databaseID := integrationDatabaseID(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	dataSources, err := client.ListDataSources(ctx, databaseID)
	if err != nil {
		t.Fatalf("ListDataSources failed: %v", err)
	}
	if len(dataSources) == 0 {
		t.Skip("database has no data sources")
	}

	pageIDs, err := client.QueryDataSourcePageIDs(ctx, dataSources[0].ID)
	if err != nil {
		t.Fatalf("QueryDataSourcePageIDs failed: %v", err)
	}
	t.Logf("Found %d pages in data source %s", len(pageIDs), dataSources[0].ID)
	if len(pageIDs) == 0 {
		t.Skip("data source has no pages")
	}

	pageID := pageIDs[0]

	meta, err := client.GetPageMetadata(ctx, pageID)
	if err != nil {
		t.Fatalf("GetPageMetadata failed: %v", err)
	}
	if meta.ID == "" {
		t.Error("page metadata has empty ID")
	}

	parent, err := client.GetPageParent(ctx, pageID)
	if err != nil {
		t.Fatalf("GetPageParent failed: %v", err)
	}
	if parent.DataSourceID == "" && parent.DatabaseID == "" {
		t.Errorf("page %s has no data source or database parent", pageID)
	}

	blocks, err := client.FetchBlocks(ctx, pageID, 2)
	if err != nil {
		t.Fatalf("FetchBlocks failed: %v", err)
	}
	t.Logf("Fetched %d blocks from page %s", len(blocks), pageID)
}
