package gatekeeper_test

import (
	"testing"

	gatekeeper "github.com/paddockhq/go-gatekeeper"
	"github.com/stretchr/testify/assert"
)

func TestIdentityHubPublishReachesAllSubscribers(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()

	var first, second []gatekeeper.IdentityEvent
	hub.Subscribe(func(ev gatekeeper.IdentityEvent) { first = append(first, ev) })
	hub.Subscribe(func(ev gatekeeper.IdentityEvent) { second = append(second, ev) })

	hub.Publish(gatekeeper.IdentityEvent{Principal: gatekeeper.NewPrincipal("user-1", "", "admin")})

	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
	assert.Equal(t, 2, hub.Listeners())
}

func TestIdentityHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()

	var events []gatekeeper.IdentityEvent
	unsubscribe := hub.Subscribe(func(ev gatekeeper.IdentityEvent) { events = append(events, ev) })

	hub.Publish(gatekeeper.IdentityEvent{})
	unsubscribe()
	hub.Publish(gatekeeper.IdentityEvent{})

	assert.Len(t, events, 1)
	assert.Equal(t, 0, hub.Listeners())

	// idempotent
	unsubscribe()
	assert.Equal(t, 0, hub.Listeners())
}

func TestIdentityHubUnsubscribeOnlyReleasesItsOwnListener(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()

	var kept int
	unsubscribe := hub.Subscribe(func(gatekeeper.IdentityEvent) {})
	hub.Subscribe(func(gatekeeper.IdentityEvent) { kept++ })

	unsubscribe()
	hub.Publish(gatekeeper.IdentityEvent{})

	assert.Equal(t, 1, kept)
	assert.Equal(t, 1, hub.Listeners())
}

func TestIdentityHubReplaysLastEventToNewSubscribers(t *testing.T) {
	hub := gatekeeper.NewIdentityHub(gatekeeper.WithReplayLastEvent())

	hub.Publish(gatekeeper.IdentityEvent{Principal: gatekeeper.NewPrincipal("user-1", "", "follower")})

	var events []gatekeeper.IdentityEvent
	hub.Subscribe(func(ev gatekeeper.IdentityEvent) { events = append(events, ev) })

	assert.Len(t, events, 1)
	assert.Equal(t, "user-1", events[0].Principal.ID())
}

func TestIdentityHubNoReplayByDefault(t *testing.T) {
	hub := gatekeeper.NewIdentityHub()

	hub.Publish(gatekeeper.IdentityEvent{Principal: gatekeeper.NewPrincipal("user-1", "", "")})

	var events []gatekeeper.IdentityEvent
	hub.Subscribe(func(ev gatekeeper.IdentityEvent) { events = append(events, ev) })

	assert.Empty(t, events)
}
