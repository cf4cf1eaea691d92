package protocol

import "encoding/json"

// Event names accepted from clients.
const (
	TaskUpdate       = "task:update"
	MeetingUpdate    = "meeting:update"
	NotificationSend = "notification:send"
	TypingStart      = "typing:start"
	TypingStop       = "typing:stop"
	MeetingJoin      = "meeting:join"
	MeetingLeave     = "meeting:leave"
)

// Event names emitted to clients.
const (
	TaskUpdated          = "task:updated"
	MeetingUpdated       = "meeting:updated"
	NotificationReceived = "notification:received"
	TypingStarted        = "typing:started"
	TypingStopped        = "typing:stopped"
	MeetingUserJoined    = "meeting:user_joined"
	MeetingUserLeft      = "meeting:user_left"
	MeetingReminder      = "meeting:reminder"
)

// Event is the wire envelope for every websocket message, both directions.
// The payload is opaque to the transport; the dispatcher only decodes the
// routing keys it needs for a given event type.
type Event struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an outbound event from a typed payload.
func NewEvent(eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{Type: eventType, Payload: raw}, nil
}

// Attendee identifies one meeting participant in routing payloads.
type Attendee struct {
	ID string `json:"id"`
}

// Meeting carries the routing keys for reminders and attendee fan-out.
// Business fields beyond these are passed through untouched.
type Meeting struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Attendees []Attendee `json:"attendees"`
}

// MeetingUpdatePayload is the routing view of a meeting:update payload.
type MeetingUpdatePayload struct {
	MeetingID string     `json:"meetingId"`
	Attendees []Attendee `json:"attendees"`
}

// NotificationPayload is the routing view of a notification:send payload.
type NotificationPayload struct {
	UserID string `json:"userId"`
}

// MeetingRoomPayload is the routing view of meeting:join / meeting:leave.
type MeetingRoomPayload struct {
	MeetingID string `json:"meetingId"`
}

// SenderTagged wraps a client payload with the sender's identity id. The
// dispatcher adds the tag; clients never set it themselves.
type SenderTagged struct {
	UserID string          `json:"userId"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// MeetingPresence announces a join or leave to the remaining room members.
type MeetingPresence struct {
	MeetingID string `json:"meetingId"`
	UserID    string `json:"userId"`
	UserName  string `json:"userName,omitempty"`
}

// ReminderPayload is the body of a meeting:reminder push.
type ReminderPayload struct {
	Meeting json.RawMessage `json:"meeting"`
	Kind    string          `json:"type"`
	Message string          `json:"message"`
}
