package server

import (
	"sync"

	"github.com/veritest/veritest/internal/services/tracker/notify"
)

// Peer is one live websocket connection able to receive events.
type Peer interface {
	SendEvent(event notify.Event) error
}

// Registry tracks which user owns which connection and which rooms a
// connection has joined. A user has at most one connection; a new one
// replaces the old, which is evicted from every room. It implements
// notify.Sender.
type Registry struct {
	mu        sync.Mutex
	byUser    map[string]Peer
	byPeer    map[Peer]string
	rooms     map[string]map[Peer]struct{}
	peerRooms map[Peer]map[string]struct{}
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:    make(map[string]Peer),
		byPeer:    make(map[Peer]string),
		rooms:     make(map[string]map[Peer]struct{}),
		peerRooms: make(map[Peer]map[string]struct{}),
	}
}

// Register binds a connection to a user, replacing any previous one.
// The replaced connection is returned so the transport can close it.
func (r *Registry) Register(userID string, peer Peer) Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous := r.byUser[userID]
	if previous != nil {
		r.removePeerLocked(previous)
	}
	r.byUser[userID] = peer
	r.byPeer[peer] = userID
	return previous
}

// Unregister removes a connection and its room memberships. A stale
// connection that was already replaced is ignored.
func (r *Registry) Unregister(peer Peer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userID, ok := r.byPeer[peer]
	if !ok {
		return
	}
	r.removePeerLocked(peer)
	if r.byUser[userID] == peer {
		delete(r.byUser, userID)
	}
}

func (r *Registry) removePeerLocked(peer Peer) {
	for room := range r.peerRooms[peer] {
		delete(r.rooms[room], peer)
		if len(r.rooms[room]) == 0 {
			delete(r.rooms, room)
		}
	}
	delete(r.peerRooms, peer)
	if userID, ok := r.byPeer[peer]; ok {
		delete(r.byPeer, peer)
		if r.byUser[userID] == peer {
			delete(r.byUser, userID)
		}
	}
}

// JoinRoom adds a registered connection to a room.
func (r *Registry) JoinRoom(peer Peer, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byPeer[peer]; !ok {
		return
	}
	if r.rooms[room] == nil {
		r.rooms[room] = make(map[Peer]struct{})
	}
	r.rooms[room][peer] = struct{}{}
	if r.peerRooms[peer] == nil {
		r.peerRooms[peer] = make(map[string]struct{})
	}
	r.peerRooms[peer][room] = struct{}{}
}

// LeaveRoom removes a connection from a room.
func (r *Registry) LeaveRoom(peer Peer, room string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.rooms[room], peer)
	if len(r.rooms[room]) == 0 {
		delete(r.rooms, room)
	}
	delete(r.peerRooms[peer], room)
}

// Resolve returns the live connection for a user, if any.
func (r *Registry) Resolve(userID string) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	peer, ok := r.byUser[userID]
	return peer, ok
}

// ResolveRoom snapshots the members of a room.
func (r *Registry) ResolveRoom(room string) []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := make([]Peer, 0, len(r.rooms[room]))
	for peer := range r.rooms[room] {
		members = append(members, peer)
	}
	return members
}

// SendToUser delivers an event to one user's connection. It reports
// whether the user was connected; write errors count as delivered
// because delivery is at most once.
func (r *Registry) SendToUser(userID string, event notify.Event) bool {
	peer, ok := r.Resolve(userID)
	if !ok {
		return false
	}
	_ = peer.SendEvent(event)
	return true
}

// SendToRoom delivers an event to every member of a room.
func (r *Registry) SendToRoom(room string, event notify.Event) {
	for _, peer := range r.ResolveRoom(room) {
		_ = peer.SendEvent(event)
	}
}
