package views

import (
	"embed"
	"fmt"
	"html/template"
	"io"
	"math"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Renderer executes the embedded page templates.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded templates.
func New() (*Renderer, error) {
	funcMap := template.FuncMap{
		"percent": func(v float64) int {
			return int(math.Round(math.Max(0, math.Min(100, v))))
		},
		"safeURL": func(s string) template.URL {
			// Illustrations are data: URLs produced by the server itself.
			return template.URL(s)
		},
	}

	tmpl, err := template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// Render writes the full page for m.
func (r *Renderer) Render(w io.Writer, m Model) error {
	return r.tmpl.ExecuteTemplate(w, "base", m)
}
