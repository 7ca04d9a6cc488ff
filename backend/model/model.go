package model

// Server-to-client event types.
const (
	EventSystemMessage = "system-message"
	EventChatMessage   = "chat-message"
	EventRoomPresence  = "room-presence"
)

// Client-to-server command types.
const (
	CommandJoin    = "join"
	CommandMessage = "message"
	CommandLeave   = "leave"
)

// Event is a single server-to-client notification.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// ChatMessage is the payload of a chat-message event.
type ChatMessage struct {
	Sender   string `json:"sender"`
	Text     string `json:"text"`
	SenderID string `json:"senderId"`
}

// RoomPresence is the payload of a room-presence event.
type RoomPresence struct {
	ParticipantCount int `json:"participantCount"`
}

// Command is a single client-to-server request received over a websocket
// session. Text is only meaningful for CommandMessage.
type Command struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Wire is the outbound path from the engine to a single websocket session.
type Wire struct {
	TX chan Event
}

func NewWire() Wire {
	return Wire{
		TX: make(chan Event),
	}
}
