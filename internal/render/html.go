// Package render paints session views as HTML table rows or terminal text.
// Result items are untrusted and always escaped.
package render

import (
	"bytes"
	"fmt"
	"html/template"
	"sync"

	"github.com/kailas-cloud/shakesearch/internal/session"
)

var rowsTmpl = template.Must(template.New("rows").Parse(
	`{{range .}}<tr><td>{{.}}</td></tr>{{end}}`,
))

// Fragment is the last rendered state of an HTML result table.
type Fragment struct {
	Rows    template.HTML
	Count   int
	HasMore bool
	Error   string
}

// HTML keeps the rendered <tbody> contents of the results table.
// Each Render replaces the previous contents entirely.
type HTML struct {
	mu   sync.RWMutex
	frag Fragment
}

// NewHTML creates an empty HTML renderer.
func NewHTML() *HTML {
	return &HTML{}
}

// Render rebuilds the table rows from v.
func (h *HTML) Render(v session.View) error {
	var buf bytes.Buffer
	if err := rowsTmpl.Execute(&buf, v.Items); err != nil {
		return fmt.Errorf("execute rows template: %w", err)
	}

	frag := Fragment{
		Rows:    template.HTML(buf.String()), //nolint:gosec // produced by html/template with escaping
		Count:   len(v.Items),
		HasMore: v.HasMore,
	}
	if v.Err != nil {
		frag.Error = v.Err.Error()
	}

	h.mu.Lock()
	h.frag = frag
	h.mu.Unlock()
	return nil
}

// Fragment returns the most recently rendered table state.
func (h *HTML) Fragment() Fragment {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.frag
}
