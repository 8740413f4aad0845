package domain

import "time"

// Frame is one message delivered to a session's client channel.
type Frame struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ConnectionState reports the upstream connection status to the client.
type ConnectionState struct {
	IsConnected  bool   `json:"isConnected"`
	IsConnecting bool   `json:"isConnecting"`
	Error        string `json:"error,omitempty"`
	RoomID       string `json:"roomId,omitempty"`
	Upgraded     bool   `json:"upgraded,omitempty"`
}

// AIResponse is the generated-response frame delivered to the client.
type AIResponse struct {
	Event     ResponseKind `json:"event"`
	Text      string       `json:"text"`
	AudioURL  string       `json:"audioUrl,omitempty"`
	UserData  UserData     `json:"userData"`
	Timestamp time.Time    `json:"timestamp"`
}

// Frame types for connection signals and generated responses. Raw platform
// events pass through under their own event kind.
const (
	FrameConnected    = "connected"
	FrameDisconnected = "disconnected"
	FrameAIResponse   = "aiResponse"
)
