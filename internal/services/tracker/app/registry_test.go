package server

import (
	"testing"

	"github.com/veritest/veritest/internal/services/tracker/notify"
)

type fakePeer struct {
	events []notify.Event
}

func (p *fakePeer) SendEvent(event notify.Event) error {
	p.events = append(p.events, event)
	return nil
}

func TestRegistrySendToUser(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	peer := &fakePeer{}
	registry.Register("u1", peer)

	event := notify.Event{Type: "defect-assigned", Message: "hello"}
	if !registry.SendToUser("u1", event) {
		t.Fatal("SendToUser = false, want true")
	}
	if len(peer.events) != 1 || peer.events[0].Type != "defect-assigned" {
		t.Errorf("events = %+v", peer.events)
	}

	if registry.SendToUser("nobody", event) {
		t.Error("SendToUser for unknown user = true, want false")
	}
}

func TestRegistrySendToRoom(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	member := &fakePeer{}
	outsider := &fakePeer{}
	registry.Register("u1", member)
	registry.Register("u2", outsider)
	registry.JoinRoom(member, "cycle_c1")

	registry.SendToRoom("cycle_c1", notify.Event{Type: "test-cycle-started"})
	if len(member.events) != 1 {
		t.Errorf("member events = %d, want 1", len(member.events))
	}
	if len(outsider.events) != 0 {
		t.Errorf("outsider events = %d, want 0", len(outsider.events))
	}
}

func TestRegistryReplaceEvictsOldConnection(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	old := &fakePeer{}
	registry.Register("u1", old)
	registry.JoinRoom(old, "cycle_c1")

	fresh := &fakePeer{}
	replaced := registry.Register("u1", fresh)
	if replaced != Peer(old) {
		t.Fatalf("replaced = %v, want old peer", replaced)
	}

	registry.SendToRoom("cycle_c1", notify.Event{Type: "test-cycle-started"})
	if len(old.events) != 0 {
		t.Errorf("evicted peer still in room: events = %d", len(old.events))
	}

	if !registry.SendToUser("u1", notify.Event{Type: "defect-assigned"}) {
		t.Fatal("SendToUser after replace = false")
	}
	if len(fresh.events) != 1 {
		t.Errorf("fresh events = %d, want 1", len(fresh.events))
	}
}

func TestRegistryStaleUnregisterIgnored(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	old := &fakePeer{}
	registry.Register("u1", old)
	fresh := &fakePeer{}
	registry.Register("u1", fresh)

	// The old connection's deferred cleanup must not drop the new one.
	registry.Unregister(old)
	if !registry.SendToUser("u1", notify.Event{Type: "defect-assigned"}) {
		t.Error("fresh connection lost after stale unregister")
	}
}

func TestRegistryJoinRequiresRegistration(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	stranger := &fakePeer{}
	registry.JoinRoom(stranger, "cycle_c1")

	registry.SendToRoom("cycle_c1", notify.Event{Type: "test-cycle-started"})
	if len(stranger.events) != 0 {
		t.Errorf("unregistered peer joined room: events = %d", len(stranger.events))
	}
}

func TestRegistryLeaveRoom(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	peer := &fakePeer{}
	registry.Register("u1", peer)
	registry.JoinRoom(peer, "category_backend")
	registry.LeaveRoom(peer, "category_backend")

	registry.SendToRoom("category_backend", notify.Event{Type: "defect-assigned-to-category"})
	if len(peer.events) != 0 {
		t.Errorf("peer still in room after leave: events = %d", len(peer.events))
	}
}
