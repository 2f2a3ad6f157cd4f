package notion

// ChildrenMarkerType labels the synthetic block inserted between an
// expanded parent and its inlined children.
const ChildrenMarkerType = "children"

// ChildrenMarker builds the synthetic separator block for parentID.
func ChildrenMarker(parentID string) Block {
	return Block{ID: parentID + "::children", Type: ChildrenMarkerType}
}

// Block is one node of a page's content tree. The container matching
// Type is set; the rest stay nil. Unknown types decode with every
// container nil and are skipped by the renderer.
type Block struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	HasChildren bool   `json:"has_children"`

	Paragraph        *RichTextContainer   `json:"paragraph,omitempty"`
	Heading1         *RichTextContainer   `json:"heading_1,omitempty"`
	Heading2         *RichTextContainer   `json:"heading_2,omitempty"`
	Heading3         *RichTextContainer   `json:"heading_3,omitempty"`
	BulletedListItem *RichTextContainer   `json:"bulleted_list_item,omitempty"`
	NumberedListItem *RichTextContainer   `json:"numbered_list_item,omitempty"`
	Quote            *RichTextContainer   `json:"quote,omitempty"`
	Toggle           *RichTextContainer   `json:"toggle,omitempty"`
	Callout          *RichTextContainer   `json:"callout,omitempty"`
	ToDo             *ToDoContainer       `json:"to_do,omitempty"`
	Code             *CodeContainer       `json:"code,omitempty"`
	Equation         *EquationContainer   `json:"equation,omitempty"`
	Bookmark         *URLContainer        `json:"bookmark,omitempty"`
	Embed            *URLContainer        `json:"embed,omitempty"`
	ChildPage        *TitleContainer      `json:"child_page,omitempty"`
	ChildDatabase    *TitleContainer      `json:"child_database,omitempty"`
	Image            *FileContainer       `json:"image,omitempty"`
	File             *FileContainer       `json:"file,omitempty"`
	PDF              *FileContainer       `json:"pdf,omitempty"`
	Video            *FileContainer       `json:"video,omitempty"`
	Audio            *FileContainer       `json:"audio,omitempty"`
	LinkToPage       *LinkToPageContainer `json:"link_to_page,omitempty"`
	Table            *TableContainer      `json:"table,omitempty"`
	TableRow         *TableRowContainer   `json:"table_row,omitempty"`
}

// RichText is one run of styled text.
type RichText struct {
	PlainText   string       `json:"plain_text"`
	Href        *string      `json:"href,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
}

// Annotations are the inline styles of a rich text run.
type Annotations struct {
	Bold          bool `json:"bold"`
	Italic        bool `json:"italic"`
	Strikethrough bool `json:"strikethrough"`
	Underline     bool `json:"underline"`
	Code          bool `json:"code"`
}

// RichTextContainer backs paragraph, heading, list, quote, toggle and
// callout blocks.
type RichTextContainer struct {
	RichText []RichText `json:"rich_text"`
}

type ToDoContainer struct {
	RichText []RichText `json:"rich_text"`
	Checked  bool       `json:"checked"`
}

type CodeContainer struct {
	RichText []RichText `json:"rich_text"`
	Language string     `json:"language,omitempty"`
}

type EquationContainer struct {
	Expression string `json:"expression"`
}

type URLContainer struct {
	URL string `json:"url"`
}

type TitleContainer struct {
	Title string `json:"title"`
}

// FileContainer backs image, file, pdf, video and audio blocks. Name
// is only present on the file family.
type FileContainer struct {
	Name     string          `json:"name,omitempty"`
	File     *FileObject     `json:"file,omitempty"`
	External *ExternalObject `json:"external,omitempty"`
}

// ResolveURL picks the hosted file URL, preferring the Notion-managed
// object over an external link. Empty when the block has neither.
func (f *FileContainer) ResolveURL() string {
	if f.File != nil && f.File.URL != "" {
		return f.File.URL
	}
	if f.External != nil && f.External.URL != "" {
		return f.External.URL
	}
	return ""
}

type FileObject struct {
	URL string `json:"url"`
}

type ExternalObject struct {
	URL string `json:"url"`
}

type LinkToPageContainer struct {
	Type       string `json:"type"`
	PageID     string `json:"page_id,omitempty"`
	DatabaseID string `json:"database_id,omitempty"`
}

type TableContainer struct {
	TableWidth      int  `json:"table_width"`
	HasColumnHeader bool `json:"has_column_header"`
	HasRowHeader    bool `json:"has_row_header"`
}

type TableRowContainer struct {
	Cells [][]RichText `json:"cells"`
}
