package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
)

// Inbound command types.
const (
	cmdAuthenticate = "authenticate"
	cmdJoinRoom     = "joinRoom"
	cmdLeaveRoom    = "leaveRoom"
	cmdPing         = "ping"
)

// Outbound frame types sent only to the originating connection.
const (
	frameAuthenticated = "authenticated"
	frameJoinedRoom    = "joinedRoom"
	framePong          = "pong"
	frameError         = "error"
)

var errInvalidRoomID = errors.New("invalid room id")

// command is a client frame.
type command struct {
	Type   string `json:"type"`
	RoomID RoomID `json:"roomId"`
	Token  string `json:"token,omitempty"`
}

// RoomID accepts a JSON number or a numeric string.
type RoomID uint

// UnmarshalJSON implements json.Unmarshaler.
func (r *RoomID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = 0
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return errInvalidRoomID
		}
		raw = s
	}

	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return errInvalidRoomID
	}
	*r = RoomID(id)
	return nil
}

type authenticatedPayload struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
}

type joinedRoomPayload struct {
	RoomID        uint `json:"roomId"`
	LastMessageID uint `json:"lastMessageId"`
}

type errorPayload struct {
	Message string `json:"message"`
}
