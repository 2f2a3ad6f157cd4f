package render

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/natikgadzhi/notion-mirror/internal/notion"
)

func TestFrontMatterMinimal(t *testing.T) {
	meta := &notion.PageMetadata{ID: "p1", Properties: map[string]any{}}

	got, err := frontMatter(meta, nil, nil)
	if err != nil {
		t.Fatalf("frontMatter() error = %v", err)
	}
	want := "---\n_notion:\n  page_id: p1\n---\n\n"
	if got != want {
		t.Errorf("frontMatter() = %q, want %q", got, want)
	}
}

func TestFrontMatterIncludesDatabaseID(t *testing.T) {
	meta := &notion.PageMetadata{
		ID:         "p1",
		Parent:     notion.Parent{Type: "data_source_id", DataSourceID: "ds1", DatabaseID: "db1"},
		Properties: map[string]any{},
	}

	got, err := frontMatter(meta, nil, nil)
	if err != nil {
		t.Fatalf("frontMatter() error = %v", err)
	}
	want := "---\n_notion:\n  page_id: p1\n  database_id: db1\n---\n\n"
	if got != want {
		t.Errorf("frontMatter() = %q, want %q", got, want)
	}
}

func TestFrontMatterSortsAndMapsProperties(t *testing.T) {
	meta := &notion.PageMetadata{
		ID: "p1",
		Properties: map[string]any{
			"Zeta":   "last",
			"Alpha":  "first",
			"Name":   "Title",
			"Hidden": "secret",
		},
	}
	keyMap := map[string]string{
		"Name":   "title",
		"Hidden": "",
	}

	got, err := frontMatter(meta, keyMap, nil)
	if err != nil {
		t.Fatalf("frontMatter() error = %v", err)
	}

	// ordered by the upstream names: Alpha, Name (as title), Zeta
	want := "---\n_notion:\n  page_id: p1\nAlpha: first\ntitle: Title\nZeta: last\n---\n\n"
	if got != want {
		t.Errorf("frontMatter() = %q, want %q", got, want)
	}
	if strings.Contains(got, "secret") {
		t.Error("property mapped to an empty key must be dropped")
	}
}

func TestFrontMatterIncludesFilter(t *testing.T) {
	meta := &notion.PageMetadata{
		ID: "p1",
		Properties: map[string]any{
			"Keep": "yes",
			"Drop": "no",
		},
	}

	got, err := frontMatter(meta, nil, map[string]struct{}{"Keep": {}})
	if err != nil {
		t.Fatalf("frontMatter() error = %v", err)
	}
	if !strings.Contains(got, "Keep: yes") {
		t.Errorf("included property missing from %q", got)
	}
	if strings.Contains(got, "Drop") {
		t.Errorf("filtered property leaked into %q", got)
	}
}

func TestFrontMatterEmptyIncludesDropsEverything(t *testing.T) {
	meta := &notion.PageMetadata{
		ID:         "p1",
		Properties: map[string]any{"Name": "x"},
	}

	got, err := frontMatter(meta, nil, map[string]struct{}{})
	if err != nil {
		t.Fatalf("frontMatter() error = %v", err)
	}
	want := "---\n_notion:\n  page_id: p1\n---\n\n"
	if got != want {
		t.Errorf("frontMatter() = %q, want %q", got, want)
	}
}

func TestFrontMatterListsAndStringTyping(t *testing.T) {
	meta := &notion.PageMetadata{
		ID: "p1",
		Properties: map[string]any{
			"Tags":    []string{"a", "b"},
			"Done":    "true",
			"Count":   "42",
			"Comment": "plain words",
		},
	}

	got, err := frontMatter(meta, nil, nil)
	if err != nil {
		t.Fatalf("frontMatter() error = %v", err)
	}

	// the document must parse back with every value still a string
	body := strings.TrimSuffix(strings.TrimPrefix(got, "---\n"), "---\n\n")
	var parsed map[string]any
	if err := yaml.Unmarshal([]byte(body), &parsed); err != nil {
		t.Fatalf("front matter does not parse as YAML: %v", err)
	}
	if v, ok := parsed["Done"].(string); !ok || v != "true" {
		t.Errorf("Done = %#v, want the string \"true\"", parsed["Done"])
	}
	if v, ok := parsed["Count"].(string); !ok || v != "42" {
		t.Errorf("Count = %#v, want the string \"42\"", parsed["Count"])
	}
	tags, ok := parsed["Tags"].([]any)
	if !ok || len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Errorf("Tags = %#v, want [a b]", parsed["Tags"])
	}
	inner, ok := parsed["_notion"].(map[string]any)
	if !ok || inner["page_id"] != "p1" {
		t.Errorf("_notion = %#v, want page_id p1", parsed["_notion"])
	}
}

func TestFrontMatterNotionBlockComesFirst(t *testing.T) {
	meta := &notion.PageMetadata{
		ID:         "p1",
		Properties: map[string]any{"AAA": "sorts before underscore"},
	}

	got, err := frontMatter(meta, nil, nil)
	if err != nil {
		t.Fatalf("frontMatter() error = %v", err)
	}
	if !strings.HasPrefix(got, "---\n_notion:\n") {
		t.Errorf("_notion must lead the front matter, got %q", got)
	}
}
