package server

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/natikgadzhi/notion-mirror/internal/queue"
)

// signatureHeader carries the HMAC of the raw request body.
const signatureHeader = "X-Notion-Signature"

// handleWebhook accepts webhook deliveries. Events we understand but
// drop on purpose still answer 200 so the upstream does not retry
// them forever.
func (s *Server) handleWebhook(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		s.logger.Warn("failed to read webhook body", "error", err)
		return c.NoContent(http.StatusBadRequest)
	}

	var event map[string]any
	if err := json.Unmarshal(body, &event); err != nil {
		s.logger.Warn("failed to parse webhook payload", "error", err)
		return c.NoContent(http.StatusBadRequest)
	}

	// subscription handshake; arrives before any secret is exchanged,
	// so it is answered ahead of signature verification
	if _, ok := event["verification_token"]; ok {
		s.logger.Info("webhook verification requested")
		return c.JSON(http.StatusOK, map[string]bool{"ok": true})
	}

	if s.secret != "" {
		// the signature covers the raw bytes off the wire, never a
		// re-serialized form of the payload
		if err := verifySignature(body, c.Request().Header.Get(signatureHeader), s.secret); err != nil {
			s.logger.Warn("webhook signature rejected", "error", err)
			return c.NoContent(http.StatusUnauthorized)
		}
	}

	if s.stale(event) {
		s.logger.Info("dropping stale webhook event")
		return c.NoContent(http.StatusOK)
	}

	return s.dispatch(c, event)
}

// dispatch classifies the event and enqueues work. Extraction order:
// page id, then data source id, then database id.
func (s *Server) dispatch(c echo.Context, event map[string]any) error {
	data := nestedMap(event, "data")
	parent := nestedMap(data, "parent")

	if pageID := firstString(stringField(event, "page_id"), stringField(data, "id")); pageID != "" {
		s.enqueue(c.Request().Context(), queue.Job{SyncPageByID: &queue.SyncPageByID{PageID: pageID}})
		return c.NoContent(http.StatusOK)
	}

	dsID := firstString(
		stringField(event, "data_source_id"),
		stringField(data, "data_source_id"),
		stringField(parent, "data_source_id"),
	)
	if dsID != "" {
		binding, ok := s.bindings.ByDataSourceID(dsID)
		if !ok {
			s.logger.Info("data source not configured, skipping", "data_source_id", dsID)
			return c.NoContent(http.StatusOK)
		}
		s.enqueue(c.Request().Context(), queue.Job{ScanDataSource: &queue.ScanDataSource{
			DatabaseID:   binding.DatabaseID,
			DataSourceID: dsID,
		}})
		return c.NoContent(http.StatusOK)
	}

	dbID := firstString(
		stringField(event, "database_id"),
		stringField(data, "database_id"),
		stringField(parent, "database_id"),
	)
	if dbID != "" {
		binding, ok := s.bindings.ByDatabaseID(dbID)
		if !ok {
			s.logger.Info("database not configured, skipping", "database_id", dbID)
			return c.NoContent(http.StatusOK)
		}
		for _, ds := range binding.DataSources {
			s.enqueue(c.Request().Context(), queue.Job{ScanDataSource: &queue.ScanDataSource{
				DatabaseID:   binding.DatabaseID,
				DataSourceID: ds.ID,
			}})
		}
		return c.NoContent(http.StatusOK)
	}

	s.logger.Warn("webhook event carries no actionable id")
	return c.NoContent(http.StatusBadRequest)
}

// enqueue logs failures but never fails the request; the upstream
// retries the delivery on its own schedule.
func (s *Server) enqueue(ctx context.Context, job queue.Job) {
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.logger.Warn("enqueue failed", "job", job.Describe(), "error", err)
		return
	}
	s.logger.Info("queued job", "job", job.Describe())
}

// stale reports whether the event's timestamp lies outside the
// configured freshness window. Events without a parseable timestamp
// pass.
func (s *Server) stale(event map[string]any) bool {
	raw, ok := event["timestamp"].(string)
	if !ok || raw == "" {
		return false
	}
	ts, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return false
	}

	age := s.now().Sub(ts)
	if age < 0 {
		age = -age
	}
	return age > s.maxAge
}

// verifySignature checks HMAC-SHA256(secret, body) against the header
// value, accepting an optional "sha256=" prefix, in constant time.
func verifySignature(body []byte, header, secret string) error {
	header = strings.TrimSpace(header)
	if header == "" {
		return errors.New("missing " + signatureHeader + " header")
	}
	header = strings.TrimPrefix(header, "sha256=")

	got, err := hex.DecodeString(header)
	if err != nil {
		return errors.New("signature is not valid hex")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return errors.New("signature mismatch")
	}
	return nil
}

func stringField(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func nestedMap(m map[string]any, key string) map[string]any {
	if m == nil {
		return nil
	}
	nested, _ := m[key].(map[string]any)
	return nested
}

func firstString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
