// Package notion provides a client for the Notion API with rate
// limiting, block tree fetching and property decoding.
package notion

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// hexIDPattern matches a 32-character hex id.
var hexIDPattern = regexp.MustCompile(`[a-f0-9]{32}`)

// NormalizeDatabaseID resolves a configured database identifier. It
// accepts a raw 32-character hex id, a UUID, or a full share URL and
// returns the dash-formatted id. Values carrying no recognizable id
// pass through unchanged; the API stays the authority on what ids
// are valid.
//
// Recognized forms:
//   - {id} (raw 32-char hex or UUID)
//   - https://www.notion.so/{workspace}/{title}-{id}
//   - https://www.notion.so/{workspace}/{id}?v={view_id}
//   - https://www.notion.so/{id}
func NormalizeDatabaseID(input string) string {
	s := strings.TrimSpace(input)

	if raw := extractHexID(s); raw != "" {
		return formatAsUUID(raw)
	}

	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return s
	}
	segments := strings.Split(strings.TrimPrefix(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if raw := extractHexID(segments[i]); raw != "" {
			return formatAsUUID(raw)
		}
	}
	return s
}

// extractHexID pulls a 32-character hex id out of s. It handles a
// plain hex string, a UUID, and a title slug ending in an id.
func extractHexID(s string) string {
	noDashes := strings.ReplaceAll(s, "-", "")
	if len(noDashes) == 32 && hexIDPattern.MatchString(noDashes) {
		return noDashes
	}

	if match := hexIDPattern.FindString(s); match != "" {
		return match
	}

	// a UUID at the end of a longer segment: its dashes defeat the
	// plain pattern, so strip them from the last 36 characters
	if len(s) >= 36 {
		noDashes := strings.ReplaceAll(s[len(s)-36:], "-", "")
		if len(noDashes) == 32 && hexIDPattern.MatchString(noDashes) {
			return noDashes
		}
	}

	return ""
}

// formatAsUUID formats a 32-character hex id as UUID (8-4-4-4-12).
func formatAsUUID(raw string) string {
	if len(raw) != 32 {
		return raw
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s",
		raw[0:8],
		raw[8:12],
		raw[12:16],
		raw[16:20],
		raw[20:32],
	)
}
