package core

// decode.go turns uploaded bytes into a transform.Table.
//
// The format comes from the file extension. Uploads without an extension are
// sniffed with mimetype. Every format goes through buildTable so the header
// and empty-row rules are the same for CSV, XLSX and XLS.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/ContentExtract/internal/transform"
	"github.com/extrame/xls"
	"github.com/gabriel-vasile/mimetype"
	"github.com/xuri/excelize/v2"
)

// Format is a supported input file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
)

// DetectFormat resolves the format of an upload from its name, falling back
// to content sniffing when the name has no extension.
func DetectFormat(name string, data []byte) (Format, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case "csv":
		return FormatCSV, nil
	case "xlsx":
		return FormatXLSX, nil
	case "xls":
		return FormatXLS, nil
	case "":
		return sniffFormat(data)
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, ext)
}

func sniffFormat(data []byte) (Format, error) {
	mt := mimetype.Detect(data)
	switch {
	case mt.Is("application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"):
		return FormatXLSX, nil
	case mt.Is("application/vnd.ms-excel"):
		return FormatXLS, nil
	}
	for m := mt; m != nil; m = m.Parent() {
		if m.Is("text/plain") {
			return FormatCSV, nil
		}
	}
	return "", fmt.Errorf("%w: detected %s", ErrUnsupportedFileType, mt.String())
}

// Decode parses an upload into a table. The first row is the header.
func Decode(u Upload) (transform.Table, error) {
	format, err := DetectFormat(u.Name, u.Data)
	if err != nil {
		return transform.Table{}, err
	}

	var records [][]string
	switch format {
	case FormatCSV:
		records, err = readCSV(bytes.NewReader(u.Data))
	case FormatXLSX:
		records, err = readXLSX(u.Data)
	case FormatXLS:
		records, err = readXLS(u.Data)
	}
	if err != nil {
		return transform.Table{}, fmt.Errorf("%w: %s: %v", ErrDecode, u.Name, err)
	}

	return buildTable(records), nil
}

func readCSV(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(WrapForStreaming(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var records [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	return f.GetRows(sheets[0])
}

// readXLS reads the first worksheet. The xls reader panics on some
// malformed files, so panics are turned into errors.
func readXLS(data []byte) (records [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			records, err = nil, fmt.Errorf("malformed workbook: %v", r)
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, err
	}
	if wb == nil {
		return nil, errors.New("no workbook stream")
	}
	if wb.NumSheets() == 0 {
		return nil, nil
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, nil
	}

	// MaxRow is the last row index, not a count.
	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			records = append(records, nil)
			continue
		}
		rec := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			if c < row.FirstCol() {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, row.Col(c))
		}
		records = append(records, rec)
	}
	return records, nil
}

// xlsRow returns row i, or nil when the sheet has no record for it.
// WorkSheet.Row dereferences missing rows.
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

// buildTable applies the shared rules: the first non-empty record is the
// header, duplicate header names get _1, _2 suffixes, empty records are
// skipped and short records read missing cells as "".
func buildTable(records [][]string) transform.Table {
	var t transform.Table

	i := 0
	for ; i < len(records); i++ {
		if !isEmptyRow(records[i]) {
			t.Header = uniqueHeader(records[i])
			i++
			break
		}
	}

	for ; i < len(records); i++ {
		rec := records[i]
		if isEmptyRow(rec) {
			continue
		}
		row := make(transform.Row, len(t.Header))
		for j, col := range t.Header {
			if j < len(rec) {
				row[col] = rec[j]
			} else {
				row[col] = ""
			}
		}
		t.Rows = append(t.Rows, row)
	}

	return t
}

func uniqueHeader(raw []string) []string {
	header := make([]string, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, h := range raw {
		seen[h] = true
	}

	used := make(map[string]bool, len(raw))
	for i, h := range raw {
		// A suffixed name may not take a header that appears in the file.
		name := h
		for n := 1; used[name] || (name != h && seen[name]); n++ {
			name = h + "_" + strconv.Itoa(n)
		}
		used[name] = true
		header[i] = name
	}
	return header
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
