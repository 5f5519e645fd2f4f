package domain

// ExtractedDocument is the flat result of a "read" extraction.
// It lives for one analyze request and is never persisted.
type ExtractedDocument struct {
	Content       string         `json:"content"`
	Pages         []Page         `json:"pages"`
	Tables        []Table        `json:"tables"`
	KeyValuePairs []KeyValuePair `json:"keyValuePairs"`
}

// Page is a single page of an extracted document
type Page struct {
	PageNumber int     `json:"pageNumber"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Unit       string  `json:"unit"`
	Lines      []Line  `json:"lines"`
}

// Line is one line of text on a page
type Line struct {
	Text string `json:"text"`
}

// Table is a grid detected in the document. Cells are sparse.
type Table struct {
	RowCount    int         `json:"rowCount"`
	ColumnCount int         `json:"columnCount"`
	Cells       []TableCell `json:"cells"`
}

// TableCell is a single cell of a Table
type TableCell struct {
	RowIndex    int    `json:"rowIndex"`
	ColumnIndex int    `json:"columnIndex"`
	Content     string `json:"content"`
}

// InBounds reports whether the cell indices fit the table's declared dimensions
func (t *Table) InBounds(c TableCell) bool {
	return c.RowIndex >= 0 && c.RowIndex < t.RowCount &&
		c.ColumnIndex >= 0 && c.ColumnIndex < t.ColumnCount
}

// KeyValuePair is a detected key/value with an optional confidence in [0,1]
type KeyValuePair struct {
	Key        *string  `json:"key"`
	Value      *string  `json:"value"`
	Confidence *float64 `json:"confidence"`
}

// Normalize replaces nil collections with empty ones and drops table cells
// that fall outside their table's bounds. It returns the receiver.
func (d *ExtractedDocument) Normalize() *ExtractedDocument {
	if d.Pages == nil {
		d.Pages = []Page{}
	}
	for i := range d.Pages {
		if d.Pages[i].Lines == nil {
			d.Pages[i].Lines = []Line{}
		}
	}

	if d.Tables == nil {
		d.Tables = []Table{}
	}
	for i := range d.Tables {
		t := &d.Tables[i]
		cells := make([]TableCell, 0, len(t.Cells))
		for _, c := range t.Cells {
			if t.InBounds(c) {
				cells = append(cells, c)
			}
		}
		t.Cells = cells
	}

	if d.KeyValuePairs == nil {
		d.KeyValuePairs = []KeyValuePair{}
	}
	return d
}
