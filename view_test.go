package modkit

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeView(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write view %s: %v", name, err)
	}
}

func TestLoadViews(t *testing.T) {
	dir := t.TempDir()
	writeView(t, dir, "index.html", "index")
	writeView(t, dir, "about.tmpl", "about")
	writeView(t, dir, "notes.txt", "ignored")

	vs, err := loadViews([]string{dir})
	if err != nil {
		t.Fatalf("loadViews failed: %v", err)
	}

	if !vs.has("index") {
		t.Error("index view missing")
	}
	if !vs.has("about") {
		t.Error("about view missing")
	}
	if vs.has("notes") {
		t.Error("non-template file loaded as view")
	}
}

func TestLoadViewsFirstRootWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	writeView(t, first, "page.html", "from first")
	writeView(t, second, "page.html", "from second")
	writeView(t, second, "extra.html", "extra")

	vs, err := loadViews([]string{first, second})
	if err != nil {
		t.Fatalf("loadViews failed: %v", err)
	}

	var buf strings.Builder
	if err := vs.render(&buf, "page", nil); err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if buf.String() != "from first" {
		t.Errorf("page = %q, want first root to win", buf.String())
	}
	if !vs.has("extra") {
		t.Error("extra view from second root missing")
	}
}

func TestRenderViewNotFound(t *testing.T) {
	vs, err := loadViews([]string{t.TempDir()})
	if err != nil {
		t.Fatalf("loadViews failed: %v", err)
	}

	var buf strings.Builder
	err = vs.render(&buf, "missing", nil)
	if !errors.Is(err, ErrViewNotFound) {
		t.Errorf("render err = %v, want ErrViewNotFound", err)
	}

	var nilSet *viewSet
	err = nilSet.render(&buf, "missing", nil)
	if !errors.Is(err, ErrViewNotFound) {
		t.Errorf("nil set render err = %v, want ErrViewNotFound", err)
	}
}

func TestLoadViewsBadRoot(t *testing.T) {
	if _, err := loadViews([]string{"/no/such/dir"}); err == nil {
		t.Error("loadViews succeeded with a missing root")
	}
}

func TestModelAndViewHelpers(t *testing.T) {
	mv := NewModelAndView("home", nil)
	if mv.Model == nil {
		t.Error("NewModelAndView left Model nil")
	}
	if mv.IsRedirect() {
		t.Error("plain view reports redirect")
	}

	rd := NewRedirect("/login")
	if !rd.IsRedirect() {
		t.Error("redirect not reported")
	}
	if rd.Redirect != "/login" {
		t.Errorf("Redirect = %q, want /login", rd.Redirect)
	}
}
