package modkit

import (
	"net/http"
	"strings"
)

// staticMapping serves a directory under a path prefix through the
// wrapped framework's file server. Directory traversal outside the root
// is rejected by http.FileServer itself.
type staticMapping struct {
	prefix  string // normalized, relative to the module mount
	dir     string
	handler http.Handler
}

// build constructs the file-serving handler. Called once at module init.
func (sm *staticMapping) build(mount string) {
	full := sm.prefix
	if mount != "/" {
		full = mount + sm.prefix
	}
	sm.handler = http.StripPrefix(full, http.FileServer(http.Dir(sm.dir)))
}

// matches reports whether a mount-relative path falls under this mapping.
func (sm *staticMapping) matches(rel string) bool {
	if sm.prefix == "/" {
		return true
	}
	return rel == sm.prefix || strings.HasPrefix(rel, sm.prefix+"/")
}
