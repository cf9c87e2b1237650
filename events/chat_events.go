// Package events defines the room-scoped events pushed to live connections.
package events

import (
	"encoding/json"

	domain "github.com/sungchulkim/sung-kim-capstone-server/domain/chat"
)

// Wire names of the room events.
const (
	TypeMessageCreated = "message"
	TypeMessageEdited  = "messageEdited"
	TypeMessageDeleted = "messageDeleted"
	TypeReactionAdded  = "reaction"
)

// Event is a domain event routed to the members of one room.
type Event interface {
	// Type returns the wire name used as the frame type.
	Type() string
	// RoomID returns the routing key. It is never persisted.
	RoomID() uint
	// Payload returns the value serialized into the frame.
	Payload() any
}

// MessageCreated carries the same view that was returned to the author.
type MessageCreated struct {
	Message domain.MessageView
}

func (e MessageCreated) Type() string { return TypeMessageCreated }
func (e MessageCreated) RoomID() uint { return e.Message.RoomID }
func (e MessageCreated) Payload() any { return e.Message }

// MessageEdited announces new content for an existing message.
type MessageEdited struct {
	MessageID uint   `json:"messageId"`
	Content   string `json:"content"`
	Room      uint   `json:"roomId"`
}

func (e MessageEdited) Type() string { return TypeMessageEdited }
func (e MessageEdited) RoomID() uint { return e.Room }
func (e MessageEdited) Payload() any { return e }

// MessageDeleted announces that a message and its reactions are gone.
type MessageDeleted struct {
	MessageID uint `json:"messageId"`
	Room      uint `json:"roomId"`
}

func (e MessageDeleted) Type() string { return TypeMessageDeleted }
func (e MessageDeleted) RoomID() uint { return e.Room }
func (e MessageDeleted) Payload() any { return e }

// ReactionAdded announces a new reaction on a message.
type ReactionAdded struct {
	MessageID uint   `json:"messageId"`
	UserID    uint   `json:"userId"`
	Emoji     string `json:"emoji"`
	Room      uint   `json:"roomId"`
}

func (e ReactionAdded) Type() string { return TypeReactionAdded }
func (e ReactionAdded) RoomID() uint { return e.Room }
func (e ReactionAdded) Payload() any { return e }

// Frame is the JSON envelope written to websocket clients.
type Frame struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Encode serializes an event into its wire frame.
func Encode(e Event) ([]byte, error) {
	return json.Marshal(Frame{Type: e.Type(), Payload: e.Payload()})
}
