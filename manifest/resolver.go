package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ResolvedArchive is an archive entry resolved to a file on disk.
type ResolvedArchive struct {
	Name    string // label used in logs and reports
	Path    string // absolute path
	Project string // name of the project that declared it
}

// Resolver expands a manifest's archive entries, and those of its
// dependencies, into a load order.
type Resolver struct {
	manifest *Manifest
}

// NewResolver creates a new archive resolver.
func NewResolver(m *Manifest) *Resolver {
	return &Resolver{manifest: m}
}

// Resolve returns every archive to load, dependencies before dependents.
// Within a project, archives keep their declaration order and glob matches
// are sorted. An archive reachable twice is loaded once. Problems in
// independent entries are reported together.
func (r *Resolver) Resolve() ([]ResolvedArchive, error) {
	st := &resolveState{
		seenPaths: make(map[string]bool),
		names:     make(map[string]string),
		visiting:  make(map[string]bool),
		done:      make(map[string]bool),
	}
	r.resolveProject(r.manifest, st)
	if err := st.errs.ErrorOrNil(); err != nil {
		return nil, err
	}
	return st.order, nil
}

type resolveState struct {
	order     []ResolvedArchive
	seenPaths map[string]bool
	names     map[string]string // archive name -> path
	visiting  map[string]bool
	done      map[string]bool
	errs      *multierror.Error
}

func (r *Resolver) resolveProject(m *Manifest, st *resolveState) {
	if st.done[m.Dir] {
		return
	}
	if st.visiting[m.Dir] {
		st.errs = multierror.Append(st.errs, fmt.Errorf("dependency cycle through %s", m.Dir))
		return
	}
	st.visiting[m.Dir] = true
	defer delete(st.visiting, m.Dir)

	// Dependencies first, in name order so the result is stable.
	names := make([]string, 0, len(m.Dependencies))
	for name := range m.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		dep, err := resolveDependency(m, name, m.Dependencies[name])
		if err != nil {
			st.errs = multierror.Append(st.errs, fmt.Errorf("resolving %s: %w", name, err))
			continue
		}
		r.resolveProject(dep, st)
	}

	for _, a := range m.Archives {
		paths, err := expandArchive(m.Dir, a.Path)
		if err != nil {
			st.errs = multierror.Append(st.errs, fmt.Errorf("%s: %w", m.Project.Name, err))
			continue
		}
		if a.Name != "" && len(paths) > 1 {
			st.errs = multierror.Append(st.errs,
				fmt.Errorf("%s: archive %q names %d files; drop the name or narrow the path", m.Project.Name, a.Name, len(paths)))
			continue
		}
		for _, path := range paths {
			if st.seenPaths[path] {
				continue
			}
			st.seenPaths[path] = true

			name := ArchiveName(a, path)
			if other, ok := st.names[name]; ok {
				st.errs = multierror.Append(st.errs,
					fmt.Errorf("archive name %q used by both %s and %s", name, other, path))
				continue
			}
			st.names[name] = path
			st.order = append(st.order, ResolvedArchive{Name: name, Path: path, Project: m.Project.Name})
		}
	}
	st.done[m.Dir] = true
}

// resolveDependency loads the manifest of a path dependency.
func resolveDependency(m *Manifest, name string, dep Dependency) (*Manifest, error) {
	if dep.Path == "" {
		return nil, fmt.Errorf("dependency %q has no path specified", name)
	}
	localPath := dep.Path
	if !filepath.IsAbs(localPath) {
		localPath = filepath.Join(m.Dir, localPath)
	}
	if _, err := os.Stat(localPath); err != nil {
		return nil, fmt.Errorf("local dependency %q not found at %s: %w", name, localPath, err)
	}
	return Load(localPath)
}

// expandArchive resolves an archive path relative to dir. A plain path must
// exist; a glob must match at least one file.
func expandArchive(dir, pattern string) ([]string, error) {
	if !filepath.IsAbs(pattern) {
		pattern = filepath.Join(dir, pattern)
	}

	if !strings.ContainsAny(pattern, "*?[") {
		abs, err := filepath.Abs(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", pattern, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, fmt.Errorf("archive not found: %w", err)
		}
		return []string{abs}, nil
	}

	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad archive pattern %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no archives match %s", pattern)
	}
	sort.Strings(matches)
	for i, match := range matches {
		if matches[i], err = filepath.Abs(match); err != nil {
			return nil, err
		}
	}
	return matches, nil
}
