// Package templates holds the HTML views of the import UI.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/contacts/internal/core"
	"github.com/JonMunkholm/contacts/internal/importer"
)

const pageHead = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Contact import</title>
<script src="https://unpkg.com/htmx.org@2.0.3"></script>
</head>
<body>
`

// UploadPage is the landing page with the import form. Results are swapped
// into #result by HTMX.
func UploadPage() templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := io.WriteString(w, pageHead+`<h1>Import contacts</h1>
<form hx-post="/api/contacts/import" hx-encoding="multipart/form-data" hx-target="#result">
<input type="file" name="file" accept=".csv,.txt,text/plain" required>
<button type="submit">Import</button>
</form>
<div id="result"></div>
</body>
</html>
`)
		return err
	})
}

// ImportSummary renders the outcome of one run.
func ImportSummary(run *core.ImportRun) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<section class="import-run" id="run-%s">`, templ.EscapeString(run.ID))
		fmt.Fprintf(&b, `<h2>%s</h2>`, templ.EscapeString(run.FileName))
		fmt.Fprintf(&b, `<p>%d rows in %d ms</p>`, run.Rows, run.DurationMS)

		if run.Error != nil {
			if _, err := io.WriteString(w, b.String()); err != nil {
				return err
			}
			if err := ErrorAlert(run.Error.Message, run.Error.Action, run.Error.Code).Render(ctx, w); err != nil {
				return err
			}
			_, err := io.WriteString(w, `</section>`)
			return err
		}

		res := run.Result
		fmt.Fprintf(&b, `<ul><li>%d contacts</li><li>%d duplicated</li><li>%d invalid</li><li>%d tags</li></ul>`,
			len(res.Contacts), len(res.Duplicated), len(res.Invalid), len(res.Tags))
		writeContacts(&b, res.Contacts)
		writeInvalid(&b, res.Invalid)
		fmt.Fprintf(&b, `<button hx-post="/api/imports/%s/store" hx-swap="outerHTML">Save contacts</button>`,
			templ.EscapeString(run.ID))
		b.WriteString(`</section>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func writeContacts(b *strings.Builder, contacts []importer.Contact) {
	if len(contacts) == 0 {
		return
	}
	b.WriteString(`<table><thead><tr><th>Email</th><th>Name</th><th>Also known as</th><th>Tags</th></tr></thead><tbody>`)
	for _, c := range contacts {
		name := ""
		if c.Name != nil {
			name = *c.Name
		}
		fmt.Fprintf(b, `<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
			templ.EscapeString(c.Email),
			templ.EscapeString(name),
			templ.EscapeString(strings.Join(c.AlternateNames, ", ")),
			templ.EscapeString(strings.Join(nonEmpty(c.Tags), ", ")))
	}
	b.WriteString(`</tbody></table>`)
}

func writeInvalid(b *strings.Builder, rows []importer.Row) {
	if len(rows) == 0 {
		return
	}
	b.WriteString(`<details><summary>Rows without an email address</summary><ol>`)
	for _, r := range rows {
		fmt.Fprintf(b, `<li><code>%s</code></li>`, templ.EscapeString(r.Data))
	}
	b.WriteString(`</ol></details>`)
}

func nonEmpty(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="alert alert-error" role="alert"><strong>%s</strong><p>%s</p><small>Code: %s</small></div>`,
			templ.EscapeString(message), templ.EscapeString(action), templ.EscapeString(code))
		return err
	})
}
