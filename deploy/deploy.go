package deploy

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/modkit-go/modkit"
)

// Registry resolves descriptor command names to factories.
type Registry interface {
	Command(name string) (modkit.CommandFactory, bool)
}

// FactoryMap is a Registry backed by a plain map.
type FactoryMap map[string]modkit.CommandFactory

// Command returns the factory registered under name.
func (fm FactoryMap) Command(name string) (modkit.CommandFactory, bool) {
	f, ok := fm[name]
	return f, ok
}

// Deploy scans dir for module directories and registers each one on the
// manager. A module that fails to deploy does not stop the others; all
// failures are joined into the returned error. The returned names list
// the modules that deployed.
func Deploy(mgr *modkit.Manager, dir string, reg Registry, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read deploy dir: %w", err)
	}

	var deployed []string
	var errs []error

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		moduleDir := filepath.Join(dir, entry.Name())
		descPath := filepath.Join(moduleDir, DescriptorFile)
		if _, err := os.Stat(descPath); err != nil {
			continue
		}

		desc, err := Load(descPath)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", entry.Name(), err))
			continue
		}

		mod, err := build(desc, moduleDir, reg)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		if err := mgr.Register(mod); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", desc.Name, err))
			continue
		}

		logger.Info("module deployed",
			"module", desc.Name,
			"mount", desc.Mount,
			"endpoints", len(desc.Endpoints),
		)
		deployed = append(deployed, desc.Name)
	}

	return deployed, errors.Join(errs...)
}

// build turns a descriptor into a module. Relative descriptor paths
// resolve against the module directory.
func build(desc *Descriptor, moduleDir string, reg Registry) (*modkit.Module, error) {
	mod := modkit.NewModule(desc.Name, desc.Mount)

	if desc.Views != "" {
		mod.Views(resolvePath(moduleDir, desc.Views))
	}
	for _, st := range desc.Static {
		mod.Static(st.Prefix, resolvePath(moduleDir, st.Dir))
	}

	for _, ep := range desc.Endpoints {
		factory, ok := reg.Command(ep.Command)
		if !ok {
			return nil, fmt.Errorf("module %s: unknown command %q", desc.Name, ep.Command)
		}

		var opts []modkit.EndpointOption
		if ep.View != "" {
			opts = append(opts, modkit.WithView(ep.View))
		}
		timeout, err := ep.ParseTimeout()
		if err != nil {
			return nil, fmt.Errorf("module %s: %w", desc.Name, err)
		}
		if timeout > 0 {
			opts = append(opts, modkit.WithTimeout(timeout))
		}

		mod.Handle(ep.Method, ep.Pattern, factory, opts...)
	}

	return mod, nil
}

func resolvePath(base, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}
