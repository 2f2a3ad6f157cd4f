package render

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/natikgadzhi/notion-mirror/internal/notion"
)

// frontMatter builds the YAML header for a page: a _notion mapping
// first, then the decoded properties ordered by their upstream name.
// keyMap renames properties on output; a mapping to "" drops the
// property. When includes is non-nil only listed upstream names are
// emitted.
func frontMatter(meta *notion.PageMetadata, keyMap map[string]string, includes map[string]struct{}) (string, error) {
	notionNode := &yaml.Node{Kind: yaml.MappingNode}
	appendPair(notionNode, "page_id", stringNode(meta.ID))
	if meta.Parent.DatabaseID != "" {
		appendPair(notionNode, "database_id", stringNode(meta.Parent.DatabaseID))
	}

	root := &yaml.Node{Kind: yaml.MappingNode}
	appendPair(root, "_notion", notionNode)

	names := make([]string, 0, len(meta.Properties))
	for name := range meta.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if includes != nil {
			if _, ok := includes[name]; !ok {
				continue
			}
		}
		outKey := name
		if mapped, ok := keyMap[name]; ok {
			outKey = mapped
		}
		if outKey == "" {
			continue
		}
		node, err := valueNode(meta.Properties[name])
		if err != nil {
			return "", fmt.Errorf("property %q: %w", name, err)
		}
		appendPair(root, outKey, node)
	}

	var sb strings.Builder
	sb.WriteString("---\n")
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(root); err != nil {
		return "", fmt.Errorf("encoding front matter: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encoding front matter: %w", err)
	}
	sb.WriteString("---\n\n")
	return sb.String(), nil
}

// stringNode forces string semantics so values like "true" or "123"
// survive a YAML round trip as strings.
func stringNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func appendPair(mapping *yaml.Node, key string, value *yaml.Node) {
	mapping.Content = append(mapping.Content, stringNode(key), value)
}

func valueNode(value any) (*yaml.Node, error) {
	switch v := value.(type) {
	case string:
		return stringNode(v), nil
	case []string:
		seq := &yaml.Node{Kind: yaml.SequenceNode}
		for _, item := range v {
			seq.Content = append(seq.Content, stringNode(item))
		}
		return seq, nil
	default:
		return nil, fmt.Errorf("unsupported property value %T", value)
	}
}
