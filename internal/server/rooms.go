package server

import (
	"github.com/Chase-Garrett/towhee/internal/metrics"
	"github.com/Chase-Garrett/towhee/internal/protocol"
)

type addressKind int

const (
	addrConnection addressKind = iota
	addrUser
	addrRoom
	addrBroadcast
)

// Address selects the set of connections an event is delivered to: one
// connection, one user's personal room, one named room, or every connection.
// Any form may exclude a single connection, typically the sender.
type Address struct {
	kind   addressKind
	conn   string
	room   RoomID
	except string
}

// ToConnection addresses a single connection.
func ToConnection(connID string) Address {
	return Address{kind: addrConnection, conn: connID}
}

// ToUser addresses every connection in a user's personal room.
func ToUser(userID string) Address {
	return Address{kind: addrUser, room: UserRoom(userID)}
}

// ToRoom addresses every member of a room.
func ToRoom(room RoomID) Address {
	return Address{kind: addrRoom, room: room}
}

// BroadcastExcept addresses every registered connection but the given one.
func BroadcastExcept(connID string) Address {
	return Address{kind: addrBroadcast, except: connID}
}

// Except returns the address with one connection excluded.
func (a Address) Except(connID string) Address {
	a.except = connID
	return a
}

// ResolveTargets reads the membership index at dispatch time and returns the
// connections an address currently selects. A user or room with no live
// members resolves to an empty set.
func (r *Registry) ResolveTargets(addr Address) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	switch addr.kind {
	case addrConnection:
		if sess, ok := r.conns[addr.conn]; ok && sess.ID != addr.except {
			return []*Session{sess}
		}
		return nil
	case addrUser, addrRoom:
		members := r.rooms[addr.room]
		out := make([]*Session, 0, len(members))
		for id, sess := range members {
			if id == addr.except {
				continue
			}
			out = append(out, sess)
		}
		return out
	case addrBroadcast:
		out := make([]*Session, 0, len(r.conns))
		for id, sess := range r.conns {
			if id == addr.except {
				continue
			}
			out = append(out, sess)
		}
		return out
	}
	return nil
}

// Deliver fans an event out to the address's current targets and reports how
// many sends were accepted. Delivery is best-effort: a full buffer or a
// connection gone mid-flight drops the event silently.
func (r *Registry) Deliver(addr Address, evt protocol.Event) int {
	targets := r.ResolveTargets(addr)

	delivered := 0
	for _, target := range targets {
		if target.sink.Send(evt) {
			delivered++
			metrics.Deliveries.Inc()
		} else {
			metrics.DeliveriesDropped.Inc()
		}
	}
	return delivered
}
