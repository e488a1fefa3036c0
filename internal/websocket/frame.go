package websocket

import (
	"encoding/json"
)

// Event names used on the wire.
const (
	// inbound
	EventConnected     = "connected"
	EventJoinChat      = "joinChat"
	EventLeaveChat     = "leaveChat"
	EventStartTyping   = "startTyping"
	EventStopTyping    = "stopTyping"
	EventMessage       = "message"
	EventEditMessage   = "editMessage"
	EventDeleteMessage = "deleteMessage"
	EventReadChat      = "readChat"

	// outbound
	EventServerMessage    = "serverMessage"
	EventSocketError      = "socketError"
	EventUserOnlineStatus = "userOnlineStatus"
	EventNewChat          = "newChat"
	EventUpdateGroupName  = "updateGroupName"
	EventMessageEdited    = "messageEdited"
	EventMessageDeleted   = "messageDeleted"
	EventMessageReaction  = "messageReaction"
	EventUnreadReset      = "unreadReset"
)

// Frame is the envelope of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode builds a wire frame for event with data marshalled as JSON.
func Encode(event string, data interface{}) ([]byte, error) {
	f := Frame{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		f.Data = raw
	}
	return json.Marshal(f)
}

// StatusPayload is carried by userOnlineStatus.
type StatusPayload struct {
	MemberID     string `json:"memberId"`
	ChatID       string `json:"chatId"`
	OnlineStatus bool   `json:"onlineStatus"`
}

// TypingPayload is carried by startTyping and stopTyping.
type TypingPayload struct {
	ChatID string `json:"chatId"`
	UserID string `json:"userId"`
}
