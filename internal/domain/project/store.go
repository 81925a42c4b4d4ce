// Package project holds the per-project installed-package snapshots and the
// concurrent store that publishes them to readers.
package project

import (
	"sync"

	"github.com/forgeide/pkgsync/internal/domain/version"
)

// Store maps project identities to their cached package state. Reads never
// block: entries are replaced atomically per key, so a reader always observes
// either the previous or the next fully-formed State, never a partial one.
//
// An absent entry means "not yet scanned" and callers must treat the project
// as enabled with no known packages, not as disabled.
type Store struct {
	entries sync.Map // ID -> *State
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Get returns the cached state for a project, if any.
func (s *Store) Get(id ID) (*State, bool) {
	val, ok := s.entries.Load(id)
	if !ok {
		return nil, false
	}
	return val.(*State), true
}

// Set replaces the state for a project. The orchestrator is the only logical
// writer, but the replace is safe against incidental concurrent writers.
func (s *Store) Set(id ID, state *State) {
	s.entries.Store(id, state)
}

// Remove drops a project from the store.
func (s *Store) Remove(id ID) {
	s.entries.Delete(id)
}

// IDs returns the identities of all tracked projects.
func (s *Store) IDs() []ID {
	var ids []ID
	s.entries.Range(func(key, _ interface{}) bool {
		ids = append(ids, key.(ID))
		return true
	})
	return ids
}

// Snapshot returns a point-in-time view of every tracked project. The States
// themselves are immutable and safe to share.
func (s *Store) Snapshot() map[ID]*State {
	out := make(map[ID]*State)
	s.entries.Range(func(key, value interface{}) bool {
		out[key.(ID)] = value.(*State)
		return true
	})
	return out
}

// Len returns the number of tracked projects.
func (s *Store) Len() int {
	n := 0
	s.entries.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

// Enabled reports whether a project can be queried. Unscanned projects
// default to enabled.
func (s *Store) Enabled(id ID) bool {
	state, ok := s.Get(id)
	if !ok {
		return true
	}
	return state.Enabled()
}

// Installed reports whether a project has at least one version of the named
// package installed. Unscanned projects have no known packages.
func (s *Store) Installed(id ID, name string) bool {
	state, ok := s.Get(id)
	if !ok {
		return false
	}
	return state.Installed(name)
}

// InstalledVersions aggregates the installed versions of a package across all
// tracked projects, deduplicated and ordered newest-looking first.
func (s *Store) InstalledVersions(name string) []string {
	seen := make(map[string]struct{})
	var versions []string
	s.entries.Range(func(_, value interface{}) bool {
		for _, v := range value.(*State).Versions(name) {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			versions = append(versions, v)
		}
		return true
	})
	version.Sort(versions)
	return versions
}

// ProjectsWith returns the projects that have the named package installed at
// the given version.
func (s *Store) ProjectsWith(name, ver string) []ID {
	var ids []ID
	s.entries.Range(func(key, value interface{}) bool {
		for _, v := range value.(*State).Versions(name) {
			if v == ver {
				ids = append(ids, key.(ID))
				break
			}
		}
		return true
	})
	return ids
}
