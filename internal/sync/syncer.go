package sync

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/natikgadzhi/notion-mirror/internal/notion"
	"github.com/natikgadzhi/notion-mirror/internal/render"
)

// blobTimeout bounds a single attachment download.
const blobTimeout = 60 * time.Second

// Upstream is the slice of the Notion API the syncer consumes.
type Upstream interface {
	GetPageMetadata(ctx context.Context, pageID string) (*notion.PageMetadata, error)
	GetPageParent(ctx context.Context, pageID string) (notion.Parent, error)
	FetchBlocks(ctx context.Context, rootID string, maxDepth int) ([]notion.Block, error)
	QueryDataSourcePageIDs(ctx context.Context, dataSourceID string) ([]string, error)
}

// Syncer mirrors single Notion pages into their bound storage as
// Markdown plus downloaded attachments.
type Syncer struct {
	upstream   Upstream
	bindings   *Bindings
	maxDepth   int
	blobClient *http.Client
	logger     *slog.Logger
}

// NewSyncer creates a Syncer. maxDepth caps nested block expansion.
func NewSyncer(upstream Upstream, bindings *Bindings, maxDepth int, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		upstream:   upstream,
		bindings:   bindings,
		maxDepth:   maxDepth,
		blobClient: &http.Client{Timeout: blobTimeout},
		logger:     logger,
	}
}

// SyncPageByID resolves the page's parent first and syncs the page
// when the parent belongs to a configured database. Pages outside
// configured databases are skipped, not failed, so retries of webhook
// noise never pile up.
func (s *Syncer) SyncPageByID(ctx context.Context, pageID string) error {
	parent, err := s.upstream.GetPageParent(ctx, pageID)
	if err != nil {
		return fmt.Errorf("resolving parent for %s: %w", pageID, err)
	}

	binding, ok := s.bindings.ForParent(parent)
	if !ok {
		s.logger.Info("page parent is not configured, skipping", "page_id", pageID)
		return nil
	}
	return s.SyncPage(ctx, binding, pageID)
}

// SyncPage fetches, renders and writes one page and its attachments.
func (s *Syncer) SyncPage(ctx context.Context, binding *Binding, pageID string) error {
	meta, err := s.upstream.GetPageMetadata(ctx, pageID)
	if err != nil {
		return fmt.Errorf("fetching page metadata for %s: %w", pageID, err)
	}
	blocks, err := s.upstream.FetchBlocks(ctx, pageID, s.maxDepth)
	if err != nil {
		return fmt.Errorf("fetching blocks for %s: %w", pageID, err)
	}

	rendered, err := render.Page(meta, blocks, binding.KeyMap, binding.Includes)
	if err != nil {
		return fmt.Errorf("rendering page %s: %w", pageID, err)
	}

	path := "pages/" + pageID + ".md"
	if err := binding.Store.Write(ctx, path, []byte(rendered.Markdown)); err != nil {
		return fmt.Errorf("writing markdown to %s: %w", path, err)
	}
	if err := s.syncBlobs(ctx, binding, rendered.Blobs); err != nil {
		return err
	}

	s.logger.Info("synced page",
		"page_id", pageID,
		"database_id", binding.DatabaseID,
		"blobs", len(rendered.Blobs),
	)
	return nil
}

// syncBlobs downloads and stores every referenced attachment.
// Duplicate paths keep the first reference.
func (s *Syncer) syncBlobs(ctx context.Context, binding *Binding, blobs []render.BlobRef) error {
	seen := make(map[string]struct{}, len(blobs))
	for _, blob := range blobs {
		if _, ok := seen[blob.Path]; ok {
			continue
		}
		seen[blob.Path] = struct{}{}

		data, err := s.downloadBlob(ctx, blob.URL)
		if err != nil {
			return err
		}
		if err := binding.Store.Write(ctx, blob.Path, data); err != nil {
			return fmt.Errorf("writing blob %s: %w", blob.Path, err)
		}
	}
	return nil
}

func (s *Syncer) downloadBlob(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("downloading blob %s: %w", url, err)
	}
	resp, err := s.blobClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading blob %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("downloading blob %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("downloading blob %s: %w", url, err)
	}
	return data, nil
}
