package modkit

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/modkit-go/modkit/session"
)

// Module is a named route scope. It holds endpoint definitions, filters,
// view roots, static-content mappings, and an optional session store.
// Registration methods are meant to run before the module serves traffic;
// route compilation and view parsing happen lazily on the first matching
// request, and registrations after that point are ignored.
type Module struct {
	name  string
	mount string

	mu        sync.Mutex
	endpoints []*endpoint
	filters   []Filter
	viewRoots []string
	statics   []*staticMapping
	store     session.Store

	initOnce sync.Once
	initErr  error
	views    *viewSet

	// Snapshots taken at initialize. The serving path reads these
	// without the lock; registrations after init never reach them.
	routes    []*endpoint
	filterSet []Filter
	staticSet []*staticMapping
}

// endpoint maps a method and path pattern to a command factory.
type endpoint struct {
	method  string
	pattern string
	factory CommandFactory
	view    string
	timeout time.Duration

	re *regexp.Regexp // compiled at module init
}

// EndpointOption customizes a single endpoint registration.
type EndpointOption func(*endpoint)

// WithView names the view rendered when the command returns a bare model
// or value.
func WithView(name string) EndpointOption {
	return func(ep *endpoint) { ep.view = name }
}

// WithTimeout overrides the manager's dispatch timeout for one endpoint.
func WithTimeout(d time.Duration) EndpointOption {
	return func(ep *endpoint) { ep.timeout = d }
}

// NewModule creates a module mounted at the given path prefix. Mount "/"
// matches every path not claimed by a longer mount.
func NewModule(name, mount string) *Module {
	return &Module{
		name:  name,
		mount: normalizeMount(mount),
	}
}

func normalizeMount(mount string) string {
	if mount == "" {
		return "/"
	}
	if !strings.HasPrefix(mount, "/") {
		mount = "/" + mount
	}
	if mount != "/" {
		mount = strings.TrimRight(mount, "/")
	}
	return mount
}

// Name returns the module name.
func (m *Module) Name() string {
	return m.name
}

// Mount returns the normalized mount prefix.
func (m *Module) Mount() string {
	return m.mount
}

// Handle registers an endpoint. The pattern is a regular expression
// matched against the full path relative to the module mount; capture
// groups become positional parameters ("1", "2", …) and named groups
// become named parameters. An empty method matches every method.
func (m *Module) Handle(method, pattern string, factory CommandFactory, opts ...EndpointOption) *Module {
	ep := &endpoint{
		method:  strings.ToUpper(method),
		pattern: pattern,
		factory: factory,
	}
	for _, opt := range opts {
		opt(ep)
	}

	m.mu.Lock()
	m.endpoints = append(m.endpoints, ep)
	m.mu.Unlock()
	return m
}

// Use appends a filter to the module's chain. Filters run in
// registration order.
func (m *Module) Use(f Filter) *Module {
	m.mu.Lock()
	m.filters = append(m.filters, f)
	m.mu.Unlock()
	return m
}

// Views adds a view root. Roots are searched in registration order; the
// first one containing a view name wins.
func (m *Module) Views(dir string) *Module {
	m.mu.Lock()
	m.viewRoots = append(m.viewRoots, dir)
	m.mu.Unlock()
	return m
}

// Static maps a path prefix under the module mount to a directory on
// disk. Static mappings are consulted before endpoint patterns.
func (m *Module) Static(prefix, dir string) *Module {
	m.mu.Lock()
	m.statics = append(m.statics, &staticMapping{prefix: normalizeMount(prefix), dir: dir})
	m.mu.Unlock()
	return m
}

// Sessions binds a session store to the module, overriding the manager
// default.
func (m *Module) Sessions(store session.Store) *Module {
	m.mu.Lock()
	m.store = store
	m.mu.Unlock()
	return m
}

// initialize compiles route patterns, parses views, and builds static
// handlers. It runs at most once; a failed init is sticky and returned to
// every request hitting the module.
func (m *Module) initialize(logger *slog.Logger) error {
	m.initOnce.Do(func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		for _, ep := range m.endpoints {
			re, err := regexp.Compile("^" + ep.pattern + "$")
			if err != nil {
				m.initErr = fmt.Errorf("module %s: compile pattern %q: %w", m.name, ep.pattern, err)
				return
			}
			ep.re = re
		}

		if len(m.viewRoots) > 0 {
			views, err := loadViews(m.viewRoots)
			if err != nil {
				m.initErr = fmt.Errorf("module %s: %w", m.name, err)
				return
			}
			m.views = views
		}

		for _, sm := range m.statics {
			sm.build(m.mount)
		}

		m.routes = append([]*endpoint(nil), m.endpoints...)
		m.filterSet = append([]Filter(nil), m.filters...)
		m.staticSet = append([]*staticMapping(nil), m.statics...)

		if logger != nil {
			logger.Debug("module initialized",
				"module", m.name,
				"mount", m.mount,
				"endpoints", len(m.endpoints),
				"filters", len(m.filters),
			)
		}
	})
	return m.initErr
}

// match finds the endpoint for a method and mount-relative path. A path
// that matches a pattern registered for a different method reports 405.
// HEAD requests fall back to GET endpoints.
func (m *Module) match(method, rel string) (*endpoint, url.Values, error) {
	methodMismatch := false

	for _, ep := range m.routes {
		groups := ep.re.FindStringSubmatch(rel)
		if groups == nil {
			continue
		}
		if !methodAllowed(ep.method, method) {
			methodMismatch = true
			continue
		}
		return ep, captureParams(ep.re, groups), nil
	}

	if methodMismatch {
		return nil, nil, NewStatusError(http.StatusMethodNotAllowed, "method not allowed")
	}
	return nil, nil, ErrNoRoute
}

func methodAllowed(want, got string) bool {
	if want == "" || got == "" || want == got {
		return true
	}
	if got == http.MethodHead && want == http.MethodGet {
		return true
	}
	return false
}

// captureParams turns regexp capture groups into parameters. Named
// groups keep their names; unnamed groups are keyed by position.
func captureParams(re *regexp.Regexp, groups []string) url.Values {
	params := url.Values{}
	names := re.SubexpNames()
	for i := 1; i < len(groups); i++ {
		key := names[i]
		if key == "" {
			key = strconv.Itoa(i)
		}
		params.Add(key, groups[i])
	}
	return params
}

// matchStatic returns the handler for a mount-relative path covered by a
// static mapping.
func (m *Module) matchStatic(rel string) (http.Handler, bool) {
	for _, sm := range m.staticSet {
		if sm.matches(rel) {
			return sm.handler, true
		}
	}
	return nil, false
}
