package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Message is a Kafka message plus the metadata headers shared by services
// consuming the appointments event stream.
type Message struct {
	Key       string            // partition key (appointment id)
	Value     []byte            // JSON-encoded payload
	Headers   map[string]string // message headers
	Topic     string
	Timestamp time.Time
}

// Header keys understood by downstream consumers.
const (
	HeaderEventID       = "event-id"
	HeaderEventType     = "event-type"
	HeaderCorrelationID = "correlation-id"
	HeaderSchemaVersion = "schema-version"
	HeaderSource        = "source"
	HeaderTimestamp     = "timestamp"
)

// MessageBuilder provides a fluent interface for building messages.
type MessageBuilder struct {
	msg      Message
	buildErr error
}

func NewMessage() *MessageBuilder {
	return &MessageBuilder{
		msg: Message{
			Headers:   make(map[string]string),
			Timestamp: time.Now(),
		},
	}
}

func (mb *MessageBuilder) WithKey(key string) *MessageBuilder {
	mb.msg.Key = key
	return mb
}

// WithValue JSON-encodes the payload; encoding errors surface from Build.
func (mb *MessageBuilder) WithValue(value any) *MessageBuilder {
	data, err := json.Marshal(value)
	if err != nil {
		mb.buildErr = err
		return mb
	}
	mb.msg.Value = data
	return mb
}

func (mb *MessageBuilder) WithHeader(key, value string) *MessageBuilder {
	mb.msg.Headers[key] = value
	return mb
}

// WithEventType stamps the event metadata headers, assigning a fresh event ID.
func (mb *MessageBuilder) WithEventType(eventType, source string) *MessageBuilder {
	mb.msg.Headers[HeaderEventID] = uuid.NewString()
	mb.msg.Headers[HeaderEventType] = eventType
	mb.msg.Headers[HeaderSource] = source
	mb.msg.Headers[HeaderSchemaVersion] = "1"
	mb.msg.Headers[HeaderTimestamp] = mb.msg.Timestamp.Format(time.RFC3339)
	return mb
}

func (mb *MessageBuilder) WithCorrelationID(id string) *MessageBuilder {
	if id != "" {
		mb.msg.Headers[HeaderCorrelationID] = id
	}
	return mb
}

func (mb *MessageBuilder) Build() (Message, error) {
	if mb.buildErr != nil {
		return Message{}, mb.buildErr
	}
	if mb.msg.Key == "" {
		return Message{}, ErrEmptyKey
	}
	if len(mb.msg.Value) == 0 {
		return Message{}, ErrEmptyValue
	}
	return mb.msg, nil
}
