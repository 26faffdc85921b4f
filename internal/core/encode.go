package core

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/JonMunkholm/ContentExtract/internal/transform"
)

// OutputFileName is the attachment name used for CSV responses.
const OutputFileName = "filtered_data.csv"

// EncodeCSV writes t as CSV: the header row, then one record per row in
// header order, with CRLF line endings. A table with no rows still gets its
// header.
func EncodeCSV(w io.Writer, t transform.Table) error {
	cw := csv.NewWriter(w)
	cw.UseCRLF = true

	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i := range t.Rows {
		if err := cw.Write(t.Record(i)); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// EncodeCSVBytes is EncodeCSV into a new buffer.
func EncodeCSVBytes(t transform.Table) ([]byte, error) {
	var buf bytes.Buffer
	if err := EncodeCSV(&buf, t); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
