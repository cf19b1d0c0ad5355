package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/tliron/commonlog"
)

// ResolvedDep represents a dependency that has been resolved to a local path.
type ResolvedDep struct {
	Name      string    // dependency name
	LocalPath string    // local filesystem path
	Manifest  *Manifest // the dependency's own manifest (may be nil)
}

// ClassPathDirs returns the classpath roots contributed by the dependency:
// its own configured dirs when it has a som.toml, otherwise its root.
func (d ResolvedDep) ClassPathDirs() []string {
	if d.Manifest != nil {
		return d.Manifest.ClassPathDirs()
	}
	return []string{d.LocalPath}
}

// Resolver manages dependency resolution.
type Resolver struct {
	manifest *Manifest
	log      commonlog.Logger
}

// NewResolver creates a new dependency resolver.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{
		manifest: m,
		log:      commonlog.GetLogger("som.manifest"),
	}
}

// Resolve resolves all dependencies and returns them in load order
// (dependencies before dependents).
func (r *Resolver) Resolve() ([]ResolvedDep, error) {
	resolved := make(map[string]bool)
	return r.resolveAll(r.manifest.Dependencies, resolved)
}

// ClassPath returns the project's classpath roots followed by those of
// every resolved dependency. A class found in the project shadows one of
// the same name in a dependency.
func (r *Resolver) ClassPath() ([]string, error) {
	deps, err := r.Resolve()
	if err != nil {
		return nil, err
	}
	paths := r.manifest.ClassPathDirs()
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		seen[p] = true
	}
	for i := len(deps) - 1; i >= 0; i-- {
		for _, p := range deps[i].ClassPathDirs() {
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	return paths, nil
}

// resolveAll resolves a set of dependencies recursively, in name order.
func (r *Resolver) resolveAll(deps map[string]Dependency, resolved map[string]bool) ([]ResolvedDep, error) {
	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	var order []ResolvedDep
	for _, name := range names {
		if resolved[name] {
			continue // already resolved
		}
		resolved[name] = true

		rd, err := r.resolveOne(name, deps[name])
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", name, err)
		}

		// Check for transitive dependencies
		if rd.Manifest != nil && len(rd.Manifest.Dependencies) > 0 {
			transitive, err := r.resolveAll(rd.Manifest.Dependencies, resolved)
			if err != nil {
				return nil, err
			}
			order = append(order, transitive...)
		}

		order = append(order, *rd)
	}

	return order, nil
}

// resolveOne resolves a single dependency.
func (r *Resolver) resolveOne(name string, dep Dependency) (*ResolvedDep, error) {
	if dep.Path != "" {
		localPath := dep.Path
		if !filepath.IsAbs(localPath) {
			localPath = filepath.Join(r.manifest.Dir, localPath)
		}

		localPath, err := filepath.Abs(localPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", dep.Path, err)
		}

		if _, err := os.Stat(localPath); err != nil {
			return nil, fmt.Errorf("local dependency %q not found at %s: %w", name, localPath, err)
		}

		return &ResolvedDep{
			Name:      name,
			LocalPath: localPath,
			Manifest:  loadOptional(localPath),
		}, nil
	}

	if dep.Git != "" {
		depDir := filepath.Join(r.manifest.DepsDir(), name)

		if _, err := os.Stat(depDir); os.IsNotExist(err) {
			if err := os.MkdirAll(r.manifest.DepsDir(), 0o755); err != nil {
				return nil, fmt.Errorf("creating deps dir: %w", err)
			}
			r.log.Infof("cloning %s from %s", name, dep.Git)
			if err := gitClone(dep.Git, depDir); err != nil {
				return nil, err
			}
		} else if dep.Tag != "" && !gitHasRef(depDir, dep.Tag) {
			// Already cloned before the requested tag existed.
			r.log.Infof("fetching %s", name)
			if err := gitFetch(depDir); err != nil {
				return nil, err
			}
		}

		if dep.Tag != "" {
			if err := gitCheckout(depDir, dep.Tag); err != nil {
				return nil, err
			}
		}

		return &ResolvedDep{
			Name:      name,
			LocalPath: depDir,
			Manifest:  loadOptional(depDir),
		}, nil
	}

	return nil, fmt.Errorf("dependency %q has no git or path specified", name)
}

func loadOptional(dir string) *Manifest {
	if _, err := os.Stat(filepath.Join(dir, FileName)); err != nil {
		return nil
	}
	m, _ := Load(dir)
	return m
}
