package render

import (
	"strings"

	"github.com/natikgadzhi/notion-mirror/internal/notion"
)

// renderRichText flattens a run of rich text into inline Markdown.
func renderRichText(items []notion.RichText) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(renderRichTextItem(item))
	}
	return sb.String()
}

// renderRichTextItem styles one segment. A code annotation wraps in
// backticks and suppresses the other styles; otherwise bold, italic,
// strikethrough and underline wrap in that order. An href wraps the
// styled result last.
func renderRichTextItem(item notion.RichText) string {
	text := item.PlainText
	if a := item.Annotations; a != nil {
		if a.Code {
			text = "`" + text + "`"
		} else {
			if a.Bold {
				text = "**" + text + "**"
			}
			if a.Italic {
				text = "*" + text + "*"
			}
			if a.Strikethrough {
				text = "~~" + text + "~~"
			}
			if a.Underline {
				text = "<u>" + text + "</u>"
			}
		}
	}
	if item.Href != nil {
		text = "[" + text + "](" + *item.Href + ")"
	}
	return text
}

// plainText concatenates segments without any styling. Code blocks use
// this so their contents stay verbatim.
func plainText(items []notion.RichText) string {
	var sb strings.Builder
	for _, item := range items {
		sb.WriteString(item.PlainText)
	}
	return sb.String()
}
