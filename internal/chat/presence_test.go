package chat

import "testing"

func TestRegistryRegisterAndLookup(t *testing.T) {
	reg := NewRegistry()

	alice := NewClient("c1", 1, "alice")
	prev := reg.Register(alice)
	if prev != nil {
		t.Fatalf("expected no previous handle, got %+v", prev)
	}

	if got := reg.Lookup(1); got != alice {
		t.Fatalf("lookup returned wrong client: %+v", got)
	}
	if got := reg.Lookup(2); got != nil {
		t.Fatalf("expected nil for offline user, got %+v", got)
	}
}

func TestRegistryReplaceReturnsPreviousHandle(t *testing.T) {
	reg := NewRegistry()

	first := NewClient("c1", 1, "alice")
	second := NewClient("c2", 1, "alice")

	reg.Register(first)
	prev := reg.Register(second)

	if prev != first {
		t.Fatalf("expected first handle back, got %+v", prev)
	}
	if got := reg.Lookup(1); got != second {
		t.Fatalf("expected new handle to win, got %+v", got)
	}
}

func TestRegistryStaleUnregisterIsSilent(t *testing.T) {
	reg := NewRegistry()

	stale := NewClient("c1", 1, "alice")
	fresh := NewClient("c2", 1, "alice")
	observer := NewClient("c3", 2, "bob")

	reg.Register(stale)
	reg.Register(observer)
	reg.Register(fresh)

	// Drain the observer's own online broadcast before the interesting part.
	// fresh replaced a live handle, so it broadcast nothing.
	mustEvent(t, observer.Events(), EventPresence)

	if reg.Unregister(stale) {
		t.Fatal("stale handle must not evict the fresh registration")
	}
	if got := reg.Lookup(1); got != fresh {
		t.Fatalf("fresh registration was lost: %+v", got)
	}

	// The stale unregister must not broadcast offline.
	mustNoEvent(t, observer.Events(), EventPresence)

	if !reg.Unregister(fresh) {
		t.Fatal("current handle should unregister")
	}
	ev := mustEvent(t, observer.Events(), EventPresence)
	if ev.UserID != 1 || ev.Status != StatusOffline {
		t.Fatalf("unexpected presence event: %+v", ev)
	}
}

func TestRegistryBroadcastsOnlineToAllMembers(t *testing.T) {
	reg := NewRegistry()

	alice := NewClient("c1", 1, "alice")
	bob := NewClient("c2", 2, "bob")

	reg.Register(alice)
	reg.Register(bob)

	// Alice sees her own online transition, then Bob's.
	ev := mustEvent(t, alice.Events(), EventPresence)
	if ev.UserID != 1 || ev.Status != StatusOnline {
		t.Fatalf("unexpected presence event: %+v", ev)
	}
	ev = mustEvent(t, alice.Events(), EventPresence)
	if ev.UserID != 2 || ev.Status != StatusOnline {
		t.Fatalf("unexpected presence event: %+v", ev)
	}
	// Bob sees exactly his own single online transition.
	ev = mustEvent(t, bob.Events(), EventPresence)
	if ev.UserID != 2 || ev.Status != StatusOnline {
		t.Fatalf("unexpected presence event: %+v", ev)
	}
}

func TestRegistryReconnectBroadcastsNoSecondOnline(t *testing.T) {
	reg := NewRegistry()

	first := NewClient("c1", 1, "alice")
	second := NewClient("c2", 1, "alice")
	observer := NewClient("c3", 2, "bob")

	reg.Register(first)
	reg.Register(observer)

	// The observer's own online broadcast.
	ev := mustEvent(t, observer.Events(), EventPresence)
	if ev.UserID != 2 || ev.Status != StatusOnline {
		t.Fatalf("unexpected presence event: %+v", ev)
	}

	reg.Register(second)

	// Third parties observe a single online transition across the whole
	// reconnect; the replace is silent.
	mustNoEvent(t, observer.Events(), EventPresence)

	// The offline transition still fires once the user truly leaves.
	if !reg.Unregister(second) {
		t.Fatal("current handle should unregister")
	}
	ev = mustEvent(t, observer.Events(), EventPresence)
	if ev.UserID != 1 || ev.Status != StatusOffline {
		t.Fatalf("unexpected presence event: %+v", ev)
	}
}

func TestClientTrySendAfterCloseReturnsFalse(t *testing.T) {
	c := NewClient("c1", 1, "alice")
	c.Close()
	if c.TrySend(&Event{Kind: EventPresence}) {
		t.Fatal("TrySend must fail on a closed client")
	}
	// Double close must be safe.
	c.Close()
}
