// Package views renders the server-side HTML pages of the student module.
// Templates are embedded in the binary; each page is parsed together with
// the shared layout into its own template set.
package views

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/aanand-mishra/students-web/internal/types"
)

//go:embed templates
var files embed.FS

// Page names accepted by Render.
const (
	StudentIndex  = "student/index"
	StudentCreate = "student/create"
	StudentUpdate = "student/update"
)

// IndexPage is the data of student/index.
type IndexPage struct {
	Title    string
	Prefix   string
	Keyword  string
	Students []types.Student
}

// CreatePage is the data of student/create. Form echoes what was typed.
type CreatePage struct {
	Title  string
	Prefix string
	Form   types.StudentForm
	Errors []types.ValidationError
}

// UpdatePage is the data of student/update.
type UpdatePage struct {
	Title   string
	Prefix  string
	Student types.Student
	Errors  []types.ValidationError
}

// Views holds the parsed page templates.
type Views struct {
	pages map[string]*template.Template
}

// New parses every page. It fails only if an embedded template is broken.
func New() (*Views, error) {
	v := &Views{pages: make(map[string]*template.Template)}

	for _, name := range []string{StudentIndex, StudentCreate, StudentUpdate} {
		t, err := template.ParseFS(files, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("views: parse %s: %w", name, err)
		}
		v.pages[name] = t
	}

	return v, nil
}

// MustNew is New that panics.
func MustNew() *Views {
	v, err := New()
	if err != nil {
		panic(err)
	}
	return v
}

// Render executes page into a buffer and writes it with status. Nothing is
// written if execution fails.
func (v *Views) Render(w http.ResponseWriter, status int, page string, data any) error {
	t, ok := v.pages[page]
	if !ok {
		return fmt.Errorf("views: unknown page %q", page)
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return fmt.Errorf("views: render %s: %w", page, err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
