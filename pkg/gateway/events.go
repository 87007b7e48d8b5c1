package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rubiojr/huddle/pkg/chat"
)

// Inbound event names.
const (
	EventMessageSend = "message:send"
	EventMessageRead = "message:read"
	EventTypingStart = "typing:start"
	EventTypingStop  = "typing:stop"
	EventCardStatus  = "demand:statusUpdate"
	EventChannelJoin = "channel:join"
)

// Outbound event names.
const (
	EventUserOnline     = "user:online"
	EventUserOffline    = "user:offline"
	EventOnlineSnapshot = "users:online"
	EventMessageNew     = "message:new"
	EventReadUpdate     = "read:update"
	EventTyping         = "typing"
	EventMessageUpdated = "message:updated"
)

var ErrUnknownEvent = errors.New("unknown event")

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Inbound is one decoded client event. The concrete types below are the
// only implementations.
type Inbound interface {
	Event() string
}

type SendMessage struct {
	ChannelID   string            `json:"channelId"`
	Content     string            `json:"content"`
	ReplyToID   string            `json:"replyToId,omitempty"`
	Mentions    []string          `json:"mentions,omitempty"`
	Attachments []chat.Attachment `json:"attachments,omitempty"`
}

type MarkRead struct {
	ChannelID string `json:"channelId"`
}

type TypingStart struct {
	ChannelID string `json:"channelId"`
}

type TypingStop struct {
	ChannelID string `json:"channelId"`
}

// CardStatusUpdate asks for the status field of the newest card carrying
// DemandID to be rewritten.
type CardStatusUpdate struct {
	DemandID string `json:"demandId"`
	Status   string `json:"status"`
}

type JoinChannel struct {
	ChannelID string `json:"channelId"`
}

func (SendMessage) Event() string      { return EventMessageSend }
func (MarkRead) Event() string         { return EventMessageRead }
func (TypingStart) Event() string      { return EventTypingStart }
func (TypingStop) Event() string       { return EventTypingStop }
func (CardStatusUpdate) Event() string { return EventCardStatus }
func (JoinChannel) Event() string      { return EventChannelJoin }

// Decode parses a raw frame into its typed event.
func Decode(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}

	var (
		ev  Inbound
		err error
	)
	switch env.Event {
	case EventMessageSend:
		ev, err = decodeData[SendMessage](env.Data)
	case EventMessageRead:
		ev, err = decodeData[MarkRead](env.Data)
	case EventTypingStart:
		ev, err = decodeData[TypingStart](env.Data)
	case EventTypingStop:
		ev, err = decodeData[TypingStop](env.Data)
	case EventCardStatus:
		ev, err = decodeData[CardStatusUpdate](env.Data)
	case EventChannelJoin:
		ev, err = decodeData[JoinChannel](env.Data)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s data: %w", env.Event, err)
	}
	return ev, nil
}

// decodeData decodes data into T. Missing data decodes to the zero value.
func decodeData[T Inbound](data json.RawMessage) (Inbound, error) {
	var v T
	if len(data) == 0 || string(data) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// Encode builds an outbound frame.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encoding %s data: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// PresenceChange is the payload of user:online and user:offline.
type PresenceChange struct {
	UserID string `json:"userId"`
}

type ReadUpdate struct {
	ChannelID  string    `json:"channelId"`
	UserID     string    `json:"userId"`
	LastReadAt time.Time `json:"lastReadAt"`
}

// Typing is relayed for both typing and typing:stop.
type Typing struct {
	ChannelID string `json:"channelId"`
	UserID    string `json:"userId"`
}
