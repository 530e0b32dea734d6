package modkit

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
)

// ModelAndView pairs a model with the view name used to render it, or
// names a redirect target instead.
type ModelAndView struct {
	View     string
	Model    *Model
	Redirect string
	// RedirectCode overrides the redirect status. Zero means 302.
	RedirectCode int
}

// NewModelAndView pairs a view name with a model.
func NewModelAndView(view string, model *Model) *ModelAndView {
	if model == nil {
		model = ModelOf(nil)
	}
	return &ModelAndView{View: view, Model: model}
}

// NewRedirect builds a redirect result. Commands return it to send the
// client elsewhere instead of rendering a view.
func NewRedirect(url string) *ModelAndView {
	return &ModelAndView{Redirect: url}
}

// IsRedirect reports whether this result redirects instead of rendering.
func (mv *ModelAndView) IsRedirect() bool {
	return mv.Redirect != ""
}

// viewExtensions are tried in order during view path lookup.
var viewExtensions = []string{".html", ".tmpl"}

// viewSet holds the templates parsed from a module's view roots.
// Templates are parsed once at module init; the first root containing a
// view name wins.
type viewSet struct {
	templates map[string]*template.Template
}

// loadViews walks the view roots and parses every template file found.
func loadViews(roots []string) (*viewSet, error) {
	vs := &viewSet{templates: make(map[string]*template.Template)}

	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("read view root %s: %w", root, err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := filepath.Ext(entry.Name())
			if !isViewExtension(ext) {
				continue
			}
			name := entry.Name()[:len(entry.Name())-len(ext)]
			if _, exists := vs.templates[name]; exists {
				continue
			}
			path := filepath.Join(root, entry.Name())
			tmpl, err := template.ParseFiles(path)
			if err != nil {
				return nil, fmt.Errorf("parse view %s: %w", path, err)
			}
			vs.templates[name] = tmpl
		}
	}

	return vs, nil
}

func isViewExtension(ext string) bool {
	for _, e := range viewExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// render executes the named view with data as dot.
func (vs *viewSet) render(w io.Writer, name string, data any) error {
	if vs == nil {
		return fmt.Errorf("%w: %s (module has no view roots)", ErrViewNotFound, name)
	}
	tmpl, ok := vs.templates[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrViewNotFound, name)
	}
	return tmpl.Execute(w, data)
}

// has reports whether the named view exists.
func (vs *viewSet) has(name string) bool {
	if vs == nil {
		return false
	}
	_, ok := vs.templates[name]
	return ok
}
