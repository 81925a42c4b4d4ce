package project

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnscannedDefaults(t *testing.T) {
	s := NewStore()

	assert.True(t, s.Enabled("never-seen"), "unscanned projects default to enabled")
	assert.False(t, s.Installed("never-seen", "Foo"))
	assert.Empty(t, s.InstalledVersions("Foo"))
}

func TestSetGetRemove(t *testing.T) {
	s := NewStore()

	s.Set("p1", NewState(true, map[string][]string{"Foo": {"1.0"}}))

	state, ok := s.Get("p1")
	require.True(t, ok)
	assert.True(t, state.Enabled())
	assert.True(t, s.Installed("p1", "Foo"))
	assert.Contains(t, s.InstalledVersions("Foo"), "1.0")

	s.Remove("p1")
	_, ok = s.Get("p1")
	assert.False(t, ok)
	assert.True(t, s.Enabled("p1"), "removed project falls back to unscanned defaults")
}

func TestDisabledEntry(t *testing.T) {
	s := NewStore()
	s.Set("p1", NewDisabled())

	assert.False(t, s.Enabled("p1"))
	assert.False(t, s.Installed("p1", "Foo"))
}

func TestInstalledVersionsDeduplicated(t *testing.T) {
	s := NewStore()
	s.Set("p1", NewState(true, map[string][]string{"Foo": {"1.0", "1.9"}}))
	s.Set("p2", NewState(true, map[string][]string{"Foo": {"1.0", "1.10"}}))
	s.Set("p3", NewState(true, map[string][]string{"Bar": {"2.0"}}))

	assert.Equal(t, []string{"1.10", "1.9", "1.0"}, s.InstalledVersions("Foo"))
}

func TestProjectsWith(t *testing.T) {
	s := NewStore()
	s.Set("p1", NewState(true, map[string][]string{"Foo": {"1.0"}}))
	s.Set("p2", NewState(true, map[string][]string{"Foo": {"2.0"}}))
	s.Set("p3", NewState(true, map[string][]string{"Foo": {"1.0", "2.0"}}))

	ids := s.ProjectsWith("Foo", "1.0")
	assert.ElementsMatch(t, []ID{"p1", "p3"}, ids)
	assert.Empty(t, s.ProjectsWith("Foo", "3.0"))
}

func TestStateImmutability(t *testing.T) {
	packages := map[string][]string{"Foo": {"1.0"}}
	state := NewState(true, packages)

	// Mutating the input after construction must not leak into the state.
	packages["Foo"][0] = "9.9"
	packages["Bar"] = []string{"1.0"}
	assert.Equal(t, []string{"1.0"}, state.Versions("Foo"))
	assert.False(t, state.Installed("Bar"))

	// Mutating a returned copy must not leak back in.
	state.Versions("Foo")[0] = "8.8"
	state.Packages()["Foo"][0] = "7.7"
	assert.Equal(t, []string{"1.0"}, state.Versions("Foo"))
}

func TestConcurrentReadersAndWriter(t *testing.T) {
	s := NewStore()
	const projects = 8

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// One writer replacing entries, many readers aggregating.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			id := ID(fmt.Sprintf("p%d", i%projects))
			s.Set(id, NewState(true, map[string][]string{"Foo": {fmt.Sprintf("1.%d", i)}}))
		}
		close(stop)
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				for id, state := range s.Snapshot() {
					assert.True(t, state.Enabled(), "project %s", id)
				}
				s.InstalledVersions("Foo")
			}
		}()
	}

	wg.Wait()
}
