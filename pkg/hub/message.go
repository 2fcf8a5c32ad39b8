// Package hub fans monitoring events out to websocket subscribers using a
// single goroutine that owns the client set.
package hub

import "encoding/json"

// Event names the kind of payload carried by a Message.
type Event string

const (
	// EventStatus carries a snapshot after every frame.
	EventStatus Event = "status"
	// EventAlert is sent once when a session turns DROWSY.
	EventAlert Event = "alert"
	// EventRecover carries the finished episode when the driver is awake again.
	EventRecover Event = "recover"
	// EventConfig carries the engine configuration after a change.
	EventConfig Event = "config"
)

// Envelope is the JSON shape written to subscribers.
type Envelope struct {
	Type Event           `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Message is an encoded envelope queued for broadcast.
type Message struct {
	Event Event
	Data  []byte
}

// Encode wraps v in an envelope of the given event type.
func Encode(ev Event, v any) (Message, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	data, err := json.Marshal(Envelope{Type: ev, Data: payload})
	if err != nil {
		return Message{}, err
	}
	return Message{Event: ev, Data: data}, nil
}
