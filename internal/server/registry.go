package server

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/Chase-Garrett/towhee/internal/auth"
	"github.com/Chase-Garrett/towhee/internal/metrics"
	"github.com/Chase-Garrett/towhee/internal/protocol"
)

// RoomID names a set of connections used purely for addressing. A room with
// no members simply does not exist.
type RoomID string

// NotificationsRoom is the global broadcast room every connection joins.
const NotificationsRoom RoomID = "notifications"

// UserRoom is the personal room targeting all of one user's connections.
func UserRoom(userID string) RoomID {
	return RoomID("user:" + userID)
}

// MeetingRoom is the ad-hoc room for one meeting's participants.
func MeetingRoom(meetingID string) RoomID {
	return RoomID("meeting:" + meetingID)
}

// Sink is the delivery side of a connection. Send is best-effort and must not
// block; it reports false when the event was dropped.
type Sink interface {
	Send(evt protocol.Event) bool
}

// Session is one live connection: transport id, resolved identity, and the
// rooms it belongs to. The registry owns it for the connection's lifetime.
type Session struct {
	ID       string
	Identity auth.Identity

	sink  Sink
	rooms map[RoomID]struct{} // guarded by the registry's mutex
}

// NewSession binds an identity to a connection's delivery sink.
func NewSession(id string, identity auth.Identity, sink Sink) *Session {
	return &Session{
		ID:       id,
		Identity: identity,
		sink:     sink,
		rooms:    make(map[RoomID]struct{}),
	}
}

// Registry tracks live connections and the room membership index. It is the
// only shared mutable structure in the relay; every mutation is a single
// locked step.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Session
	rooms map[RoomID]map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Session),
		rooms: make(map[RoomID]map[string]*Session),
	}
}

// Register records a connection and auto-joins it to its personal room and
// the notifications room. Registering the same connection id twice is a no-op.
func (r *Registry) Register(sess *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conns[sess.ID]; ok {
		return
	}
	r.conns[sess.ID] = sess
	r.joinLocked(sess, UserRoom(sess.Identity.ID))
	r.joinLocked(sess, NotificationsRoom)

	metrics.ConnectionsActive.Inc()
	log.WithFields(log.Fields{
		"conn":     sess.ID,
		"user":     sess.Identity.ID,
		"verified": sess.Identity.Verified,
	}).Info("connection registered")
}

// Unregister removes the connection from every room and drops it from the
// registry. Safe to call for an already-removed connection.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.conns[connID]
	if !ok {
		return
	}
	for room := range sess.rooms {
		r.leaveLocked(sess, room)
	}
	delete(r.conns, connID)

	metrics.ConnectionsActive.Dec()
	log.WithFields(log.Fields{"conn": connID, "user": sess.Identity.ID}).Info("connection unregistered")
}

// Join adds a room membership. Idempotent; unknown connections are ignored.
func (r *Registry) Join(connID string, room RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.conns[connID]; ok {
		r.joinLocked(sess, room)
	}
}

// Leave removes a room membership. Idempotent; not being a member is fine.
func (r *Registry) Leave(connID string, room RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if sess, ok := r.conns[connID]; ok {
		r.leaveLocked(sess, room)
	}
}

// Rooms returns a snapshot of the rooms a connection belongs to.
func (r *Registry) Rooms(connID string) []RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.conns[connID]
	if !ok {
		return nil
	}
	out := make([]RoomID, 0, len(sess.rooms))
	for room := range sess.rooms {
		out = append(out, room)
	}
	return out
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

func (r *Registry) joinLocked(sess *Session, room RoomID) {
	members, ok := r.rooms[room]
	if !ok {
		members = make(map[string]*Session)
		r.rooms[room] = members
	}
	members[sess.ID] = sess
	sess.rooms[room] = struct{}{}
}

func (r *Registry) leaveLocked(sess *Session, room RoomID) {
	if members, ok := r.rooms[room]; ok {
		delete(members, sess.ID)
		if len(members) == 0 {
			delete(r.rooms, room)
		}
	}
	delete(sess.rooms, room)
}
