// Package core runs content-extract jobs independent of any transport.
//
// The web server and the extract CLI both drive the same [Service]. A run
// decodes one or two uploads, hands the rows to the transform package and
// returns the output table with per-run statistics.
//
// # Runs
//
// A run is either single-file or join:
//
//	svc, _ := core.NewService(core.ServiceConfig{Workers: 4})
//	res, err := svc.Extract(ctx, "ml-n3", core.Upload{Name: "pages.csv", Data: data})
//	res, err = svc.Join(ctx, "", reference, content)
//
// In join mode the reference file selects which content rows survive: a row
// is kept when its StaticContentID appears in the reference with a
// "Keep / Delete" value of exactly "Keep - New". Identifiers compare as
// numbers, so "7" and "7.0" match.
//
// # Input formats
//
// [Decode] reads CSV, XLSX and XLS. The first non-empty row is the header.
// Blank rows are skipped and short rows read missing cells as "". CSV input
// goes through [WrapForStreaming], which strips a UTF-8 BOM and replaces
// invalid byte sequences. [EncodeCSV] writes the result with CRLF line
// endings.
//
// # Concurrency
//
// A [RunLimiter] caps simultaneous runs. Callers that cannot get a slot
// within the configured wait receive [ErrTooManyUploads].
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages using [MapError].
// Each category has a code for support reference:
//
//   - FILE001-FILE006: upload errors (size, format, decoding)
//   - EXT001-EXT002: profile errors
//   - RUN001-RUN003: run errors (busy, cancelled, timeout)
//   - DB001-DB005: history store errors
//
// # History
//
// When a [HistoryStore] is configured every run, failed or not, is recorded
// with its statistics. Row data is never stored.
package core
