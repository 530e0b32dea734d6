package modkit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/modkit-go/modkit/session"
)

// Manager is the process-wide module registry. It owns the HTTP surface:
// requests are matched to the module with the longest mount prefix, the
// module is initialized lazily on first hit, and the request is handed to
// its dispatch chain.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	mu       sync.RWMutex
	modules  map[string]*Module
	mounted  map[string]http.Handler
	sessions session.Store
}

// NewManager creates a manager with the given config.
func NewManager(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()

	return &Manager{
		cfg:     cfg,
		logger:  logger,
		modules: make(map[string]*Module),
		mounted: make(map[string]http.Handler),
	}
}

// Config returns the manager's effective configuration.
func (mgr *Manager) Config() Config {
	return mgr.cfg
}

// UseSessions sets the default session store for modules that do not
// bind their own.
func (mgr *Manager) UseSessions(store session.Store) {
	mgr.mu.Lock()
	mgr.sessions = store
	mgr.mu.Unlock()
}

// Register adds a module. Module names are unique per manager.
func (mgr *Manager) Register(m *Module) error {
	if m == nil {
		return errors.New("nil module")
	}

	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if _, exists := mgr.modules[m.name]; exists {
		return fmt.Errorf("%w: %s", ErrModuleExists, m.name)
	}
	mgr.modules[m.name] = m

	mgr.logger.Info("module registered", "module", m.name, "mount", m.mount)
	return nil
}

// Unregister removes a module by name.
func (mgr *Manager) Unregister(name string) error {
	mgr.mu.Lock()
	defer mgr.mu.Unlock()

	if _, exists := mgr.modules[name]; !exists {
		return fmt.Errorf("%w: %s", ErrUnknownModule, name)
	}
	delete(mgr.modules, name)
	return nil
}

// Module returns a registered module by name.
func (mgr *Manager) Module(name string) (*Module, bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	m, ok := mgr.modules[name]
	return m, ok
}

// Mount attaches a raw http.Handler at an exact path, bypassing module
// dispatch. The socket gateway uses this for its upgrade endpoint.
func (mgr *Manager) Mount(path string, h http.Handler) {
	mgr.mu.Lock()
	mgr.mounted[path] = h
	mgr.mu.Unlock()
}

// ServeHTTP implements http.Handler.
func (mgr *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mgr.mu.RLock()
	raw, ok := mgr.mounted[r.URL.Path]
	mgr.mu.RUnlock()
	if ok {
		raw.ServeHTTP(w, r)
		return
	}

	mod, rel, ok := mgr.resolveModule(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	if err := mod.initialize(mgr.logger); err != nil {
		mgr.logger.Error("module init failed", "module", mod.name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	mgr.dispatch(w, r, mod, rel)
}

// resolveModule picks the module with the longest mount prefix covering
// the path and returns the mount-relative remainder.
func (mgr *Manager) resolveModule(path string) (*Module, string, bool) {
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()

	var best *Module
	for _, m := range mgr.modules {
		if !mountCovers(m.mount, path) {
			continue
		}
		if best == nil || len(m.mount) > len(best.mount) {
			best = m
		}
	}
	if best == nil {
		return nil, "", false
	}

	rel := strings.TrimPrefix(path, best.mount)
	if best.mount == "/" {
		rel = path
	}
	if rel == "" {
		rel = "/"
	}
	return best, rel, true
}

func mountCovers(mount, path string) bool {
	if mount == "/" {
		return true
	}
	return path == mount || strings.HasPrefix(path, mount+"/")
}

// sessionStore returns the store bound to a module, falling back to the
// manager default.
func (mgr *Manager) sessionStore(mod *Module) session.Store {
	if mod.store != nil {
		return mod.store
	}
	mgr.mu.RLock()
	defer mgr.mu.RUnlock()
	return mgr.sessions
}

// dispatchTimeout returns the effective deadline for an endpoint.
func (mgr *Manager) dispatchTimeout(ep *endpoint) time.Duration {
	if ep.timeout > 0 {
		return ep.timeout
	}
	return mgr.cfg.DispatchTimeout
}

// Run serves HTTP until ctx ends, then shuts down gracefully.
func (mgr *Manager) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              mgr.cfg.Addr,
		Handler:           mgr,
		ReadHeaderTimeout: mgr.cfg.ReadHeaderTimeout,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		mgr.logger.Info("listening", "addr", mgr.cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), mgr.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	})

	return g.Wait()
}
