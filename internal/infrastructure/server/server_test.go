package server

import (
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/forgeide/pkgsync/internal/domain/project"
	"github.com/forgeide/pkgsync/internal/host"
)

func TestChangeRelayDropsEventsBeforeBind(t *testing.T) {
	relay := &changeRelay{}

	// Must not panic with no handler installed.
	relay.Handle(host.ChangeEvent{Kind: host.EventSolutionChanged})

	var got []host.ChangeEvent
	relay.Bind(func(event host.ChangeEvent) {
		got = append(got, event)
	})
	relay.Handle(host.ChangeEvent{Kind: host.EventProjectChanged, Project: "app"})

	assert.Equal(t, []host.ChangeEvent{
		{Kind: host.EventProjectChanged, Project: project.ID("app")},
	}, got)
}

func TestChangeRelayBindDuringDelivery(t *testing.T) {
	relay := &changeRelay{}

	var mu stdsync.Mutex
	delivered := 0

	var wg stdsync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			relay.Handle(host.ChangeEvent{Kind: host.EventProjectChanged, Project: "app"})
		}
	}()
	go func() {
		defer wg.Done()
		relay.Bind(func(host.ChangeEvent) {
			mu.Lock()
			delivered++
			mu.Unlock()
		})
	}()
	wg.Wait()

	// Delivery count depends on timing; the invariant is that concurrent
	// Bind and Handle are safe, which the race detector checks.
	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, delivered, 0)
}
