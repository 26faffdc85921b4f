package web

import (
	"errors"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/JonMunkholm/ContentExtract/internal/core"
	"github.com/JonMunkholm/ContentExtract/internal/logging"
	"github.com/JonMunkholm/ContentExtract/internal/transform"
)

const (
	// multipartMemory is how much of a form is kept in memory before
	// spilling to temp files.
	multipartMemory = 32 << 20

	maxPreviewRows = 500
	modalField     = "modal_content"
)

// errFileTooLarge maps to FILE001 in core.MapError.
var errFileTooLarge = errors.New("file too large")

// handleExtract runs single-file mode and streams the CSV result.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	s.handleRun(w, r, core.ModeSingle)
}

// handleJoin runs join mode. The first file is the reference, the second the
// content export.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	s.handleRun(w, r, core.ModeJoin)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request, mode core.Mode) {
	req, err := s.readRunRequest(w, r, mode)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	res, err := s.service.Run(withClient(r), req)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", core.OutputFileName))
	w.Header().Set("X-Run-ID", res.ID)
	if err := core.EncodeCSV(w, res.Table); err != nil {
		// Headers are gone; all that is left is to log.
		logging.FromContext(r.Context()).Error("write csv response", "run_id", res.ID, "error", err)
	}
}

type previewRow struct {
	Values    transform.Row `json:"values"`
	ModalText string        `json:"modal_text"`
}

type previewResponse struct {
	RunID     string          `json:"run_id"`
	Profile   string          `json:"profile"`
	Header    []string        `json:"header"`
	Rows      []previewRow    `json:"rows"`
	TotalRows int             `json:"total_rows"`
	Stats     transform.Stats `json:"stats"`
}

// handlePreview runs single-file mode and returns the first rows as JSON,
// with a plain-text rendering of the modal markup.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, err := s.readRunRequest(w, r, core.ModeSingle)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	// limit may come from the query string or the form.
	limit := min(parsePositiveInt(r.FormValue("limit"), s.cfg.Extract.PreviewRows), maxPreviewRows)

	res, err := s.service.Run(withClient(r), req)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	n := min(limit, len(res.Table.Rows))
	rows := make([]previewRow, n)
	for i := range n {
		row := res.Table.Rows[i]
		rows[i] = previewRow{Values: row, ModalText: s.plainText(row[modalField])}
	}

	writeJSON(w, r, previewResponse{
		RunID:     res.ID,
		Profile:   res.Profile,
		Header:    res.Table.Header,
		Rows:      rows,
		TotalRows: len(res.Table.Rows),
		Stats:     res.Stats,
	})
}

// plainText strips all markup and collapses whitespace.
func (s *Server) plainText(markup string) string {
	if markup == "" {
		return ""
	}
	text := html.UnescapeString(s.policy.Sanitize(markup))
	return strings.Join(strings.Fields(text), " ")
}

// readRunRequest parses the multipart form and reads every "file" part.
// The service checks that mode got enough files.
func (s *Server) readRunRequest(w http.ResponseWriter, r *http.Request, mode core.Mode) (core.RunRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) || strings.Contains(err.Error(), "request body too large") {
			return core.RunRequest{}, fmt.Errorf("%w: %v", errFileTooLarge, err)
		}
		return core.RunRequest{}, fmt.Errorf("%w: %v", core.ErrMissingInput, err)
	}

	req := core.RunRequest{
		Mode:    mode,
		Profile: strings.TrimSpace(r.FormValue("profile")),
	}
	for _, fh := range r.MultipartForm.File["file"] {
		up, err := readUpload(fh)
		if err != nil {
			return core.RunRequest{}, err
		}
		req.Files = append(req.Files, up)
	}
	return req, nil
}

func readUpload(fh *multipart.FileHeader) (core.Upload, error) {
	f, err := fh.Open()
	if err != nil {
		return core.Upload{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return core.Upload{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return core.Upload{Name: fh.Filename, Data: data}, nil
}
