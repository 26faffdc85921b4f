// Package transform turns decoded input rows into output rows by running the
// field extractor over each row's Content column and merging the result with
// the row's identity columns.
package transform

// Column names read from and written to rows.
const (
	ColContent         = "Content"
	ColPageTitle       = "PageTitle"
	ColStaticContentID = "StaticContentID"
	ColKeepDelete      = "Keep / Delete"

	// ColOutPageTitle carries the input PageTitle column through to the
	// output, separate from the PageTitle extracted from the markup.
	ColOutPageTitle = "page_title"

	// KeepNew is the status value that selects reference rows in join mode.
	KeepNew = "Keep - New"
)

// Row is one decoded record keyed by column header.
// A missing key reads as the empty string.
type Row map[string]string

// Table is an ordered header plus the rows under it.
type Table struct {
	Header []string
	Rows   []Row
}

// Len returns the number of rows.
func (t Table) Len() int {
	return len(t.Rows)
}

// Record returns the row's values in header order.
func (t Table) Record(i int) []string {
	rec := make([]string, len(t.Header))
	row := t.Rows[i]
	for j, col := range t.Header {
		rec[j] = row[col]
	}
	return rec
}
