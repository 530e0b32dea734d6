package deploy

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DescriptorFile is the file name looked for in each module directory.
const DescriptorFile = "module.yaml"

// Descriptor is the on-disk description of one module.
type Descriptor struct {
	Name      string       `yaml:"name"`
	Mount     string       `yaml:"mount"`
	Views     string       `yaml:"views"`
	Static    []StaticRule `yaml:"static"`
	Endpoints []Endpoint   `yaml:"endpoints"`
}

// StaticRule maps a path prefix to a directory.
type StaticRule struct {
	Prefix string `yaml:"prefix"`
	Dir    string `yaml:"dir"`
}

// Endpoint describes one route registration.
type Endpoint struct {
	Method  string `yaml:"method"`
	Pattern string `yaml:"pattern"`
	Command string `yaml:"command"`
	View    string `yaml:"view"`

	// Timeout is a duration string such as "5s". Empty keeps the
	// manager default.
	Timeout string `yaml:"timeout"`
}

// ParseTimeout returns the endpoint's dispatch timeout.
func (e Endpoint) ParseTimeout() (time.Duration, error) {
	if e.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 0, fmt.Errorf("parse timeout %q: %w", e.Timeout, err)
	}
	return d, nil
}

// Load reads a descriptor file and expands environment variables.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor: %w", err)
	}

	// Expand ${VAR} environment variables
	expanded := os.ExpandEnv(string(data))

	var desc Descriptor
	if err := yaml.Unmarshal([]byte(expanded), &desc); err != nil {
		return nil, fmt.Errorf("parse descriptor yaml: %w", err)
	}

	if err := desc.Validate(); err != nil {
		return nil, err
	}
	return &desc, nil
}

// Validate checks the descriptor for required fields.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("descriptor missing name")
	}
	if d.Mount == "" {
		return fmt.Errorf("module %s: descriptor missing mount", d.Name)
	}
	if len(d.Endpoints) == 0 && len(d.Static) == 0 {
		return fmt.Errorf("module %s: descriptor has no endpoints or static mappings", d.Name)
	}
	for i, ep := range d.Endpoints {
		if ep.Pattern == "" {
			return fmt.Errorf("module %s: endpoint %d missing pattern", d.Name, i)
		}
		if ep.Command == "" {
			return fmt.Errorf("module %s: endpoint %d missing command", d.Name, i)
		}
		if _, err := ep.ParseTimeout(); err != nil {
			return fmt.Errorf("module %s: endpoint %d: %w", d.Name, i, err)
		}
	}
	for i, st := range d.Static {
		if st.Prefix == "" || st.Dir == "" {
			return fmt.Errorf("module %s: static mapping %d missing prefix or dir", d.Name, i)
		}
	}
	return nil
}
