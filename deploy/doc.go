// Package deploy registers modkit modules from a directory of YAML
// descriptors.
//
// Each subdirectory containing a module.yaml becomes one module. The
// descriptor names the mount, views, static mappings, and endpoints;
// command names resolve against a caller-supplied factory registry.
// Environment variables in descriptors expand before parsing.
package deploy
