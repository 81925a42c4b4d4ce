package project

// ID identifies a project within the engine. The value is opaque to the core;
// the host decides what it denotes (a path, a GUID, a solution-relative name).
type ID string

// State is an immutable snapshot of what the host last reported for one
// project: whether the query succeeded and the installed packages it returned.
// A State is replaced wholesale on every scan and never mutated in place, so
// a reference handed to a reader stays valid on any goroutine.
type State struct {
	enabled  bool
	packages map[string][]string
}

// NewState builds a snapshot from a package-name to installed-versions
// mapping. The input is deep-copied; the caller keeps ownership of its map.
func NewState(enabled bool, packages map[string][]string) *State {
	copied := make(map[string][]string, len(packages))
	for name, versions := range packages {
		vs := make([]string, len(versions))
		copy(vs, versions)
		copied[name] = vs
	}
	return &State{enabled: enabled, packages: copied}
}

// NewDisabled builds the snapshot stored when the host query failed: the
// project is marked unqueryable and carries no package data.
func NewDisabled() *State {
	return &State{enabled: false, packages: map[string][]string{}}
}

// Enabled reports whether the host could be queried for this project.
func (s *State) Enabled() bool {
	return s.enabled
}

// Installed reports whether at least one version of the named package is
// installed.
func (s *State) Installed(name string) bool {
	return len(s.packages[name]) > 0
}

// Versions returns a copy of the installed versions of the named package.
func (s *State) Versions(name string) []string {
	versions := s.packages[name]
	if len(versions) == 0 {
		return nil
	}
	out := make([]string, len(versions))
	copy(out, versions)
	return out
}

// Packages returns a deep copy of the package-name to versions mapping.
func (s *State) Packages() map[string][]string {
	out := make(map[string][]string, len(s.packages))
	for name, versions := range s.packages {
		vs := make([]string, len(versions))
		copy(vs, versions)
		out[name] = vs
	}
	return out
}

// PackageCount returns the number of distinct installed packages.
func (s *State) PackageCount() int {
	return len(s.packages)
}
