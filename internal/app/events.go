// Package app provides the core application service for Wails bindings.
package app

// Event names for frontend communication.
const (
	EventVoiceState  = "voice-state"
	EventChatMessage = "chat-message"
)
