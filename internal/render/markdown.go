package render

import (
	"strconv"
	"strings"

	"github.com/natikgadzhi/notion-mirror/internal/notion"
)

// BlobRef points at a binary asset a page references, with the storage
// path it will be mirrored to.
type BlobRef struct {
	Path string
	URL  string
}

// Rendered is the outcome of rendering one page.
type Rendered struct {
	Markdown string
	Blobs    []BlobRef
}

// Page renders a page into Markdown with YAML front matter and
// collects the blob references the caller must mirror. Pure: the same
// inputs always produce the same output and no I/O happens here.
func Page(meta *notion.PageMetadata, blocks []notion.Block, keyMap map[string]string, includes map[string]struct{}) (*Rendered, error) {
	fm, err := frontMatter(meta, keyMap, includes)
	if err != nil {
		return nil, err
	}

	r := &renderer{numbered: 1}
	r.out.WriteString(fm)
	for _, block := range blocks {
		r.renderBlock(block)
	}
	r.flushTable()

	return &Rendered{Markdown: r.out.String(), Blobs: r.blobs}, nil
}

type renderer struct {
	out      strings.Builder
	blobs    []BlobRef
	numbered int
	table    *tableState
}

// tableState buffers a table block and its rows until a non-row block
// or the end of the page flushes it.
type tableState struct {
	width           int
	hasColumnHeader bool
	hasRowHeader    bool
	rows            [][]string
}

func (r *renderer) renderBlock(b notion.Block) {
	if r.table != nil {
		switch b.Type {
		case "table_row":
			if b.TableRow != nil {
				row := make([]string, 0, len(b.TableRow.Cells))
				for _, cell := range b.TableRow.Cells {
					row = append(row, renderRichText(cell))
				}
				r.table.rows = append(r.table.rows, row)
			}
			return
		case notion.ChildrenMarkerType:
			// the separator lands before the buffered table
			r.out.WriteString("\n")
			r.numbered = 1
			return
		default:
			r.flushTable()
		}
	}

	switch b.Type {
	case "paragraph":
		if c := b.Paragraph; c != nil {
			r.para(renderRichText(c.RichText))
		}
	case "heading_1":
		if c := b.Heading1; c != nil {
			r.para("# " + renderRichText(c.RichText))
		}
	case "heading_2":
		if c := b.Heading2; c != nil {
			r.para("## " + renderRichText(c.RichText))
		}
	case "heading_3":
		if c := b.Heading3; c != nil {
			r.para("### " + renderRichText(c.RichText))
		}
	case "bulleted_list_item":
		if c := b.BulletedListItem; c != nil {
			r.line("- " + renderRichText(c.RichText))
		}
	case "numbered_list_item":
		if c := b.NumberedListItem; c != nil {
			r.line(strconv.Itoa(r.numbered) + ". " + renderRichText(c.RichText))
			r.numbered++
		}
	case "to_do":
		if c := b.ToDo; c != nil {
			box := "- [ ] "
			if c.Checked {
				box = "- [x] "
			}
			r.line(box + renderRichText(c.RichText))
		}
	case "quote":
		if c := b.Quote; c != nil {
			r.para("> " + renderRichText(c.RichText))
		}
	case "code":
		if c := b.Code; c != nil {
			r.para("```" + c.Language + "\n" + plainText(c.RichText) + "\n```")
		}
	case "callout":
		if c := b.Callout; c != nil {
			r.para("> [!NOTE]\n> " + renderRichText(c.RichText))
		}
	case "divider":
		r.para("---")
	case "image":
		if c := b.Image; c != nil {
			if url := c.ResolveURL(); url != "" {
				path := blobPath(b.ID, c.Name, url)
				r.para("![](../" + path + ")")
				r.blobs = append(r.blobs, BlobRef{Path: path, URL: url})
			}
		}
	case "file", "pdf", "video", "audio":
		if c := fileContainer(b); c != nil {
			if url := c.ResolveURL(); url != "" {
				path := blobPath(b.ID, c.Name, url)
				label := c.Name
				if label == "" {
					label = "File"
				}
				r.para("[" + label + "](../" + path + ")")
				r.blobs = append(r.blobs, BlobRef{Path: path, URL: url})
			}
		}
	case "bookmark":
		if c := b.Bookmark; c != nil {
			r.para("[" + c.URL + "](" + c.URL + ")")
		}
	case "embed":
		if c := b.Embed; c != nil {
			r.para("[Embed](" + c.URL + ")")
		}
	case "toggle":
		if c := b.Toggle; c != nil {
			r.para("> **Toggle:** " + renderRichText(c.RichText))
		}
	case "equation":
		if c := b.Equation; c != nil {
			r.para("$$\n" + c.Expression + "\n$$")
		}
	case "child_page":
		if c := b.ChildPage; c != nil {
			r.para("- [Page] " + c.Title)
		}
	case "child_database":
		if c := b.ChildDatabase; c != nil {
			r.para("- [Database] " + c.Title)
		}
	case "link_to_page":
		if c := b.LinkToPage; c != nil {
			target := c.PageID
			if target == "" {
				target = c.DatabaseID
			}
			if target == "" {
				target = "unknown"
			}
			r.para("[Link] " + target)
		}
	case "table":
		if c := b.Table; c != nil {
			r.table = &tableState{
				width:           c.TableWidth,
				hasColumnHeader: c.HasColumnHeader,
				hasRowHeader:    c.HasRowHeader,
			}
		}
	case "table_row":
		// a row with no open table has nothing to attach to
	case notion.ChildrenMarkerType:
		r.out.WriteString("\n")
	}

	if b.Type != "numbered_list_item" {
		r.numbered = 1
	}
}

func (r *renderer) para(s string) {
	r.out.WriteString(s)
	r.out.WriteString("\n\n")
}

func (r *renderer) line(s string) {
	r.out.WriteString(s)
	r.out.WriteString("\n")
}

// flushTable emits the buffered table, if any. Width grows to the
// longest row, short rows pad with empty cells, and a table without a
// column header gets a blank header row so the Markdown stays valid.
func (r *renderer) flushTable() {
	t := r.table
	if t == nil {
		return
	}
	r.table = nil
	if len(t.rows) == 0 {
		return
	}

	width := t.width
	for _, row := range t.rows {
		if len(row) > width {
			width = len(row)
		}
	}
	rows := make([][]string, len(t.rows))
	for i, row := range t.rows {
		padded := make([]string, width)
		copy(padded, row)
		rows[i] = padded
	}

	var header []string
	body := rows
	if t.hasColumnHeader {
		header = rows[0]
		body = rows[1:]
	} else {
		header = make([]string, width)
	}
	headerCells := make([]string, width)
	for i, cell := range header {
		if cell == "" {
			headerCells[i] = " "
		} else {
			headerCells[i] = cell
		}
	}
	r.writeTableRow(headerCells)

	separator := make([]string, width)
	for i := range separator {
		separator[i] = "---"
	}
	r.writeTableRow(separator)

	for _, row := range body {
		if t.hasRowHeader && width > 0 {
			row[0] = "**" + row[0] + "**"
		}
		r.writeTableRow(row)
	}
	r.out.WriteString("\n")
}

func (r *renderer) writeTableRow(cells []string) {
	r.out.WriteString("| " + strings.Join(cells, " | ") + " |\n")
}

func fileContainer(b notion.Block) *notion.FileContainer {
	switch b.Type {
	case "file":
		return b.File
	case "pdf":
		return b.PDF
	case "video":
		return b.Video
	case "audio":
		return b.Audio
	}
	return nil
}

// blobPath derives the storage path for a block's asset. The extension
// comes from the attachment name when it has one, then from the URL
// path, then falls back to "bin".
func blobPath(blockID, name, rawURL string) string {
	ext := extensionFromName(name)
	if ext == "" {
		ext = extensionFromURL(rawURL)
	}
	if ext == "" {
		ext = "bin"
	}
	return "blobs/" + blockID + "." + ext
}

func extensionFromName(name string) string {
	name = strings.TrimSpace(name)
	i := strings.LastIndexByte(name, '.')
	if i < 0 || i == len(name)-1 {
		return ""
	}
	return strings.ToLower(name[i+1:])
}

func extensionFromURL(rawURL string) string {
	u := rawURL
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}
	if i := strings.LastIndexByte(u, '/'); i >= 0 {
		u = u[i+1:]
	}
	return extensionFromName(u)
}
