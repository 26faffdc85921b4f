// Package templates renders the HTML pages served by the web package.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// ProfileOption is one entry of the profile selector.
type ProfileOption struct {
	Name        string
	Description string
	Default     bool
}

// UploadPageParams holds the data for the upload page.
type UploadPageParams struct {
	Profiles       []ProfileOption
	MaxFileSizeMB  int64
	HistoryEnabled bool
}

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Content Extract</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; padding: 0 1rem; color: #1f2937; }
form { border: 1px solid #d1d5db; border-radius: .5rem; padding: 1rem; margin-bottom: 1.5rem; }
label { display: block; margin: .5rem 0 .25rem; font-weight: 600; }
button { margin-top: 1rem; padding: .5rem 1rem; }
.alert { border: 1px solid #fca5a5; background: #fef2f2; padding: .75rem; border-radius: .5rem; }
.muted { color: #6b7280; font-size: .875rem; }
</style>
</head>
<body>
`

const pageFoot = `</body>
</html>
`

// UploadPage renders the single-file and join upload forms.
func UploadPage(p UploadPageParams) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, pageHead); err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, `<h1>Content Extract</h1>
<p class="muted">Upload a CSV, XLSX or XLS export (up to %d MB). The result downloads as filtered_data.csv.</p>
`, p.MaxFileSizeMB); err != nil {
			return err
		}

		if _, err := io.WriteString(w, `<form method="post" action="/api/extract" enctype="multipart/form-data">
<h2>Single file</h2>
<label for="single-file">Content export</label>
<input id="single-file" type="file" name="file" accept=".csv,.xlsx,.xls" required>
`); err != nil {
			return err
		}
		if err := profileSelect(w, "single-profile", p.Profiles); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<button type="submit">Extract</button>
</form>
<form method="post" action="/api/extract/join" enctype="multipart/form-data">
<h2>Join</h2>
<label for="join-ref">Reference file (StaticContentID, Keep / Delete)</label>
<input id="join-ref" type="file" name="file" accept=".csv,.xlsx,.xls" required>
<label for="join-content">Content file</label>
<input id="join-content" type="file" name="file" accept=".csv,.xlsx,.xls" required>
`); err != nil {
			return err
		}
		if err := profileSelect(w, "join-profile", p.Profiles); err != nil {
			return err
		}
		if _, err := io.WriteString(w, `<button type="submit">Extract kept rows</button>
</form>
`); err != nil {
			return err
		}

		if p.HistoryEnabled {
			if _, err := io.WriteString(w, `<p class="muted"><a href="/api/history">Recent runs</a></p>
`); err != nil {
				return err
			}
		}

		_, err := io.WriteString(w, pageFoot)
		return err
	})
}

func profileSelect(w io.Writer, id string, profiles []ProfileOption) error {
	if _, err := fmt.Fprintf(w, `<label for="%s">Profile</label>
<select id="%s" name="profile">
`, id, id); err != nil {
		return err
	}
	for _, p := range profiles {
		selected := ""
		if p.Default {
			selected = " selected"
		}
		if _, err := fmt.Fprintf(w, `<option value="%s" title="%s"%s>%s</option>
`, templ.EscapeString(p.Name), templ.EscapeString(p.Description), selected, templ.EscapeString(p.Name)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "</select>\n")
	return err
}

// ErrorAlert renders an error fragment for HTMX requests.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="alert" role="alert"><strong>%s</strong>`, templ.EscapeString(message))
		if err != nil {
			return err
		}
		if action != "" {
			if _, err := fmt.Fprintf(w, ` <span>%s</span>`, templ.EscapeString(action)); err != nil {
				return err
			}
		}
		_, err = fmt.Fprintf(w, ` <span class="muted">(Code: %s)</span></div>`, templ.EscapeString(code))
		return err
	})
}
