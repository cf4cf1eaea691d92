package server

import (
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/Chase-Garrett/towhee/internal/protocol"
)

// Gateway is the server-initiated send surface used by the task and meeting
// services. It is a pure producer on top of the registry's addressing and
// delivery; a target with no live connections is silently a no-op.
type Gateway struct {
	registry *Registry
}

func NewGateway(registry *Registry) *Gateway {
	return &Gateway{registry: registry}
}

// NotifyUser pushes a notification to all of one user's connections. Returns
// the number of connections it reached.
func (g *Gateway) NotifyUser(userID string, payload json.RawMessage) int {
	return g.registry.Deliver(ToUser(userID), protocol.Event{
		Type:    protocol.NotificationReceived,
		Payload: payload,
	})
}

// NotifyAll pushes a notification to the global notifications room.
func (g *Gateway) NotifyAll(payload json.RawMessage) int {
	return g.registry.Deliver(ToRoom(NotificationsRoom), protocol.Event{
		Type:    protocol.NotificationReceived,
		Payload: payload,
	})
}

// SendMeetingReminder fans a templated reminder out to each attendee's
// personal room.
func (g *Gateway) SendMeetingReminder(meeting protocol.Meeting) int {
	raw, err := json.Marshal(meeting)
	if err != nil {
		log.WithError(err).Warn("could not encode meeting for reminder")
		return 0
	}
	out, err := protocol.NewEvent(protocol.MeetingReminder, protocol.ReminderPayload{
		Meeting: raw,
		Kind:    "reminder",
		Message: fmt.Sprintf("Meeting %q starts in 10 minutes", meeting.Title),
	})
	if err != nil {
		return 0
	}

	delivered := 0
	for _, attendee := range meeting.Attendees {
		if attendee.ID == "" {
			continue
		}
		delivered += g.registry.Deliver(ToUser(attendee.ID), out)
	}
	return delivered
}
