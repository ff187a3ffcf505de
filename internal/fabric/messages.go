package fabric

import (
	"time"

	"github.com/google/uuid"
)

// QoS mirrors MQTT's three delivery levels. The in-process fabric carries the
// level on each Envelope and the MQTT bridge passes it to the broker; local
// delivery is the same for every level: one attempt into the subscriber's
// bounded queue, with no redelivery and no deduplication by message ID.
type QoS int

const (
	QoS0 QoS = 0
	QoS1 QoS = 1
	QoS2 QoS = 2
)

// Envelope is the unit carried on every topic: the payload plus the
// delivery metadata a subscriber needs to do its own QoS/dedup bookkeeping.
type Envelope struct {
	ID            string    `msgpack:"id" json:"id"`
	Topic         string    `msgpack:"topic" json:"topic"`
	QoS           QoS       `msgpack:"qos" json:"qos"`
	Retain        bool      `msgpack:"retain,omitempty" json:"retain,omitempty"`
	Critical      bool      `msgpack:"critical,omitempty" json:"critical,omitempty"`
	Timestamp     time.Time `msgpack:"ts" json:"ts"`
	Payload       []byte    `msgpack:"payload" json:"payload"`
	CorrelationID string    `msgpack:"correlation_id,omitempty" json:"correlation_id,omitempty"`
}

// NewEnvelope stamps a new envelope with a fresh message ID and the current
// time. Callers encode their own payload into Payload beforehand via Codec.
func NewEnvelope(topic string, payload []byte, qos QoS, retain bool) Envelope {
	return Envelope{
		ID:        uuid.NewString(),
		Topic:     topic,
		QoS:       qos,
		Retain:    retain,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// RequestMessage is the envelope payload shape for register_request_handler
// round trips: a command name plus opaque parameters, correlated back to
// the caller by CorrelationID on the containing Envelope.
type RequestMessage struct {
	Command string         `json:"command"`
	Params  map[string]any `json:"params,omitempty"`
}

// ResponseMessage answers a RequestMessage. Error is non-empty exactly when
// the handler failed.
type ResponseMessage struct {
	Result map[string]any `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}
