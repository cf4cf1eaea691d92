package server

import (
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/Chase-Garrett/towhee/internal/metrics"
	"github.com/Chase-Garrett/towhee/internal/protocol"
)

// Dispatcher maps inbound client events to fan-out rules. It holds no state
// of its own; membership is read from the registry at dispatch time.
type Dispatcher struct {
	registry *Registry
}

func NewDispatcher(registry *Registry) *Dispatcher {
	return &Dispatcher{registry: registry}
}

// Dispatch applies the routing rule for one inbound event. Malformed routing
// payloads skip the rule; unrecognized event names are ignored. Nothing here
// returns an error to the sender.
func (d *Dispatcher) Dispatch(sender *Session, evt protocol.Event) {
	metrics.EventsDispatched.WithLabelValues(evt.Type).Inc()

	switch evt.Type {
	case protocol.TaskUpdate:
		d.registry.Deliver(BroadcastExcept(sender.ID), protocol.Event{
			Type:    protocol.TaskUpdated,
			Payload: evt.Payload,
		})

	case protocol.MeetingUpdate:
		var p protocol.MeetingUpdatePayload
		if err := json.Unmarshal(evt.Payload, &p); err != nil || len(p.Attendees) == 0 {
			log.WithField("conn", sender.ID).Debug("meeting update without attendees, skipping")
			return
		}
		out := protocol.Event{Type: protocol.MeetingUpdated, Payload: evt.Payload}
		for _, attendee := range p.Attendees {
			if attendee.ID == "" {
				continue
			}
			d.registry.Deliver(ToUser(attendee.ID).Except(sender.ID), out)
		}

	case protocol.NotificationSend:
		var p protocol.NotificationPayload
		_ = json.Unmarshal(evt.Payload, &p)
		out := protocol.Event{Type: protocol.NotificationReceived, Payload: evt.Payload}
		if p.UserID != "" {
			d.registry.Deliver(ToUser(p.UserID).Except(sender.ID), out)
		} else {
			d.registry.Deliver(BroadcastExcept(sender.ID), out)
		}

	case protocol.TypingStart:
		d.broadcastTagged(sender, protocol.TypingStarted, evt.Payload)

	case protocol.TypingStop:
		d.broadcastTagged(sender, protocol.TypingStopped, evt.Payload)

	case protocol.MeetingJoin:
		meetingID, ok := parseMeetingID(evt.Payload)
		if !ok {
			log.WithField("conn", sender.ID).Debug("meeting join without meetingId, skipping")
			return
		}
		room := MeetingRoom(meetingID)
		d.registry.Join(sender.ID, room)
		out, err := protocol.NewEvent(protocol.MeetingUserJoined, protocol.MeetingPresence{
			MeetingID: meetingID,
			UserID:    sender.Identity.ID,
			UserName:  sender.Identity.DisplayName,
		})
		if err != nil {
			return
		}
		d.registry.Deliver(ToRoom(room).Except(sender.ID), out)

	case protocol.MeetingLeave:
		meetingID, ok := parseMeetingID(evt.Payload)
		if !ok {
			log.WithField("conn", sender.ID).Debug("meeting leave without meetingId, skipping")
			return
		}
		room := MeetingRoom(meetingID)
		d.registry.Leave(sender.ID, room)
		out, err := protocol.NewEvent(protocol.MeetingUserLeft, protocol.MeetingPresence{
			MeetingID: meetingID,
			UserID:    sender.Identity.ID,
		})
		if err != nil {
			return
		}
		d.registry.Deliver(ToRoom(room), out)

	default:
		log.WithFields(log.Fields{"conn": sender.ID, "type": evt.Type}).Debug("ignoring unknown event")
	}
}

// broadcastTagged wraps the payload with the sender's identity id and fans it
// out to everyone else.
func (d *Dispatcher) broadcastTagged(sender *Session, eventType string, payload json.RawMessage) {
	out, err := protocol.NewEvent(eventType, protocol.SenderTagged{
		UserID: sender.Identity.ID,
		Data:   payload,
	})
	if err != nil {
		return
	}
	d.registry.Deliver(BroadcastExcept(sender.ID), out)
}

func parseMeetingID(payload json.RawMessage) (string, bool) {
	var p protocol.MeetingRoomPayload
	if err := json.Unmarshal(payload, &p); err != nil || p.MeetingID == "" {
		return "", false
	}
	return p.MeetingID, true
}
