// Package templates renders the HTMX partials served by the web package.
package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/gradebook/internal/core"
)

func write(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

func esc(s string) string { return templ.EscapeString(s) }

// ErrorAlert is the inline alert shown when a request fails.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if err := write(w, `<div class="alert alert-error" role="alert"><p class="alert-message">%s</p>`, esc(message)); err != nil {
			return err
		}
		if action != "" {
			if err := write(w, `<p class="alert-action">%s</p>`, esc(action)); err != nil {
				return err
			}
		}
		return write(w, `<span class="alert-code">%s</span></div>`, esc(code))
	})
}

// StagePreview shows the detected kind, its rationale and the first rows of
// a staged file, with the button that starts the import.
func StagePreview(stage *core.StagedBatch) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		class := stage.Classification
		if err := write(w, `<section class="stage" id="stage-%s"><h3>%s</h3><p class="kind kind-%s">%s</p><p class="rationale">%s</p>`,
			esc(stage.ID), esc(stage.FileName), esc(string(class.Kind)), esc(string(class.Kind)), esc(class.Rationale)); err != nil {
			return err
		}

		if err := write(w, `<table><thead><tr>`); err != nil {
			return err
		}
		for _, label := range stage.Labels {
			if err := write(w, `<th>%s</th>`, esc(label)); err != nil {
				return err
			}
		}
		if err := write(w, `</tr></thead><tbody>`); err != nil {
			return err
		}
		for _, row := range stage.Preview {
			if err := write(w, `<tr>`); err != nil {
				return err
			}
			for _, label := range stage.Labels {
				if err := write(w, `<td>%s</td>`, esc(row[label])); err != nil {
					return err
				}
			}
			if err := write(w, `</tr>`); err != nil {
				return err
			}
		}
		if err := write(w, `</tbody></table><p class="row-count">%d row(s)</p>`, stage.RowCount); err != nil {
			return err
		}

		if class.Kind == core.KindUnrecognized {
			return write(w, `<p class="hint">Choose the record kind to import this file.</p></section>`)
		}
		return write(w, `<button hx-post="/api/imports/%s/run" hx-target="#import-status">Import %s</button></section>`,
			esc(stage.ID), esc(string(class.Kind)))
	})
}

// ImportSummary renders a run's summary line, or its failure.
func ImportSummary(res *core.RunResult) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if res.Outcome == nil {
			if res.Error != "" {
				return write(w, `<div class="import-summary failed"><p>%s</p></div>`, esc(res.Error))
			}
			return write(w, `<div class="import-summary running" hx-get="/api/imports/runs/%s" hx-trigger="load delay:1s" hx-swap="outerHTML"><p>%s</p></div>`,
				esc(res.RunID), esc(string(res.Progress.State)))
		}

		state := "done"
		if res.Outcome.Failed > 0 {
			state = "partial"
		}
		if err := write(w, `<div class="import-summary %s"><p>%s</p>`, state, esc(res.Summary)); err != nil {
			return err
		}
		if res.Error != "" {
			if err := write(w, `<p class="run-error">%s</p>`, esc(res.Error)); err != nil {
				return err
			}
		}
		if len(res.Outcome.Errors) > 0 {
			if err := ErrorList(res.Outcome.Errors).Render(ctx, w); err != nil {
				return err
			}
			if err := write(w, `<a href="/api/imports/runs/%s/errors.txt" download>Download error report</a>`, esc(res.RunID)); err != nil {
				return err
			}
		}
		return write(w, `</div>`)
	})
}

// ErrorList lists row errors as "Line N: record - reason".
func ErrorList(errs []core.RowError) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<ul class="row-errors">`)
		for _, e := range errs {
			fmt.Fprintf(&b, `<li class="row-error %s">%s</li>`, esc(string(e.Kind)), esc(e.Text()))
		}
		b.WriteString(`</ul>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// History lists past import runs, newest first.
func History(runs []core.ImportRun) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		if len(runs) == 0 {
			return write(w, `<p class="empty">No imports yet.</p>`)
		}
		if err := write(w, `<table class="history"><thead><tr><th>When</th><th>File</th><th>Kind</th><th>New</th><th>Updated</th><th>Errors</th></tr></thead><tbody>`); err != nil {
			return err
		}
		for _, run := range runs {
			if err := write(w, `<tr class="%s"><td>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%d</td><td>%d</td></tr>`,
				esc(string(run.State)),
				run.FinishedAt.Format("2006-01-02 15:04"),
				esc(run.FileName),
				esc(string(run.Kind)),
				run.Inserted, run.Updated, run.Failed,
			); err != nil {
				return err
			}
		}
		return write(w, `</tbody></table>`)
	})
}
